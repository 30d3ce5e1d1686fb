package textutil

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a monetary amount with digit grouping and the ISO 4217
// currency code, e.g. "KES 1,234.50". Unknown codes are upper-cased and used
// as-is.
func FormatAmount(code string, amount float64) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if unit, err := currency.ParseISO(code); err == nil {
		code = unit.String()
	}
	return amountPrinter.Sprintf("%s %.2f", code, amount)
}
