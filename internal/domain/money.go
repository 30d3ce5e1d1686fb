package domain

import "math"

// MoneyEpsilon is the tolerance used when comparing monetary amounts. All
// amounts are plain float64 values matching the stored document shape, so
// equality checks must allow for accumulated rounding error.
const MoneyEpsilon = 1e-6

// CartTotals is the derived monetary breakdown of a cart.
type CartTotals struct {
	Subtotal float64
	Tax      float64
	Total    float64
}

// AmountDue returns the outstanding balance given an amount already paid.
func (t CartTotals) AmountDue(amountPaid float64) float64 {
	due := t.Total - amountPaid
	if due < 0 && due > -MoneyEpsilon {
		return 0
	}
	return due
}

// MoneyEqual reports whether two amounts are equal within MoneyEpsilon.
func MoneyEqual(a, b float64) bool {
	return math.Abs(a-b) < MoneyEpsilon
}

// RoundMoney rounds an amount to two decimal places. Totals are rounded once,
// after summation, so line arithmetic stays exact against the stored prices.
func RoundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}
