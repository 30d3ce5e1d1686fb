package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/platform/textutil"
	"github.com/duka-pos/api/internal/repositories"
)

const (
	maxCustomerNameLength = 120
	maxNotesLength        = 2000
)

// CustomerServiceDeps bundles the collaborators required to construct a customer service.
type CustomerServiceDeps struct {
	Customers   repositories.CustomerRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type customerService struct {
	customers repositories.CustomerRepository
	clock     func() time.Time
	newID     func() string
}

// NewCustomerService wires dependencies into a concrete CustomerService implementation.
func NewCustomerService(deps CustomerServiceDeps) (CustomerService, error) {
	if deps.Customers == nil {
		return nil, errors.New("customer service: customer repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &customerService{
		customers: deps.Customers,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
	}, nil
}

func (s *customerService) CreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (Customer, error) {
	customer, err := buildCustomer(cmd.ShopID, "", cmd.Name, cmd.Email, cmd.Phone, cmd.AvatarURL, cmd.Notes)
	if err != nil {
		return Customer{}, err
	}
	customer.ID = s.newID()
	customer.CreatedAt = s.clock()

	if err := s.customers.Insert(ctx, customer); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

func (s *customerService) UpdateCustomer(ctx context.Context, cmd UpdateCustomerCommand) (Customer, error) {
	if strings.TrimSpace(cmd.CustomerID) == "" {
		return Customer{}, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}

	existing, err := s.customers.FindByID(ctx, cmd.ShopID, cmd.CustomerID)
	if err != nil {
		return Customer{}, mapNotFound(err, ErrCustomerNotFound)
	}

	customer, err := buildCustomer(cmd.ShopID, cmd.CustomerID, cmd.Name, cmd.Email, cmd.Phone, cmd.AvatarURL, cmd.Notes)
	if err != nil {
		return Customer{}, err
	}
	customer.TotalSpent = existing.TotalSpent
	customer.LastSeen = existing.LastSeen
	customer.CreatedAt = existing.CreatedAt

	if err := s.customers.Update(ctx, customer); err != nil {
		return Customer{}, mapNotFound(err, ErrCustomerNotFound)
	}
	return customer, nil
}

func (s *customerService) DeleteCustomer(ctx context.Context, shopID, customerID string) error {
	if strings.TrimSpace(customerID) == "" {
		return fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}
	return mapNotFound(s.customers.Delete(ctx, shopID, customerID), ErrCustomerNotFound)
}

func (s *customerService) GetCustomer(ctx context.Context, shopID, customerID string) (Customer, error) {
	customer, err := s.customers.FindByID(ctx, shopID, customerID)
	if err != nil {
		return Customer{}, mapNotFound(err, ErrCustomerNotFound)
	}
	return customer, nil
}

func (s *customerService) ListCustomers(ctx context.Context, shopID string, filter CustomerListFilter) (domain.CursorPage[Customer], error) {
	return s.customers.List(ctx, shopID, repositories.CustomerListFilter{
		NamePrefix: strings.TrimSpace(filter.NamePrefix),
		Pagination: filter.Pagination,
	})
}

func buildCustomer(shopID, customerID, name, email, phone, avatarURL, notes string) (Customer, error) {
	if strings.TrimSpace(shopID) == "" {
		return Customer{}, fmt.Errorf("%w: shop id is required", ErrInvalidInput)
	}
	name = textutil.SanitizeName(name, maxCustomerNameLength)
	if name == "" {
		return Customer{}, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}

	notes = textutil.SanitizePlainText(notes)
	if len(notes) > maxNotesLength {
		notes = notes[:maxNotesLength]
	}

	return domain.Customer{
		ID:        customerID,
		ShopID:    strings.TrimSpace(shopID),
		Name:      name,
		Email:     strings.TrimSpace(email),
		Phone:     strings.TrimSpace(phone),
		AvatarURL: strings.TrimSpace(avatarURL),
		Notes:     notes,
	}, nil
}
