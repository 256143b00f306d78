package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/agrimart/internal/address"
	"github.com/dukerupert/agrimart/internal/domain"
)

// AddressService manages a user's address book. Every operation is scoped to
// the owning user.
type AddressService interface {
	List(ctx context.Context, userID string) ([]*domain.Address, error)
	Get(ctx context.Context, userID, id string) (*domain.Address, error)
	Add(ctx context.Context, userID string, params AddressParams) (*domain.Address, error)

	// Update overwrites the non-empty fields; IsDefault is tri-state.
	Update(ctx context.Context, userID, id string, patch domain.AddressPatch) (*domain.Address, error)

	// Delete removes the address. Orders keep their snapshot, and no other
	// address is promoted to default.
	Delete(ctx context.Context, userID, id string) error

	SetDefault(ctx context.Context, userID, id string) (*domain.Address, error)
}

// AddressParams holds the fields for a new address.
type AddressParams struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Street    string
	City      string
	State     string
	ZipCode   string
	Country   string
	IsDefault bool
}

type addressService struct {
	store     domain.AddressStore
	validator address.Validator
	timeout   time.Duration
	logger    *slog.Logger
}

// NewAddressService creates a new AddressService instance. A nil validator
// uses the basic format validator.
func NewAddressService(store domain.AddressStore, validator address.Validator, timeout time.Duration, logger *slog.Logger) AddressService {
	if validator == nil {
		validator = address.NewBasicValidator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &addressService{
		store:     store,
		validator: validator,
		timeout:   timeout,
		logger:    logger.With("service", "address"),
	}
}

func (s *addressService) List(ctx context.Context, userID string) ([]*domain.Address, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	list, err := s.store.ListAddresses(ctx, userID)
	if err != nil {
		return nil, domain.StoreError(err, "address.list", "failed to load addresses")
	}
	if list == nil {
		list = []*domain.Address{}
	}
	return list, nil
}

func (s *addressService) Get(ctx context.Context, userID, id string) (*domain.Address, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()
	return s.load(ctx, "address.get", userID, id)
}

func (s *addressService) Add(ctx context.Context, userID string, params AddressParams) (*domain.Address, error) {
	const op = "address.add"

	a := &domain.Address{
		UserID:    userID,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Email:     params.Email,
		Phone:     params.Phone,
		Street:    params.Street,
		City:      params.City,
		State:     params.State,
		ZipCode:   params.ZipCode,
		Country:   params.Country,
		IsDefault: params.IsDefault,
	}

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	if err := s.validate(ctx, op, a); err != nil {
		return nil, err
	}
	if err := s.store.SaveAddress(ctx, a); err != nil {
		return nil, domain.StoreError(err, op, "failed to save address")
	}

	s.logger.Info("address added", "user_id", userID, "address_id", a.ID, "default", a.IsDefault)
	return a, nil
}

func (s *addressService) Update(ctx context.Context, userID, id string, patch domain.AddressPatch) (*domain.Address, error) {
	const op = "address.update"

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	a, err := s.load(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(a)
	if err := s.validate(ctx, op, a); err != nil {
		return nil, err
	}
	if err := s.store.SaveAddress(ctx, a); err != nil {
		return nil, domain.StoreError(err, op, "failed to save address")
	}
	return a, nil
}

func (s *addressService) Delete(ctx context.Context, userID, id string) error {
	const op = "address.delete"

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	if err := s.store.DeleteAddress(ctx, userID, id); err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return domain.AddressNotFound(op, id)
		}
		return domain.StoreError(err, op, "failed to delete address")
	}
	s.logger.Info("address deleted", "user_id", userID, "address_id", id)
	return nil
}

func (s *addressService) SetDefault(ctx context.Context, userID, id string) (*domain.Address, error) {
	const op = "address.set_default"

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	a, err := s.load(ctx, op, userID, id)
	if err != nil {
		return nil, err
	}
	if a.IsDefault {
		return a, nil
	}
	a.IsDefault = true
	if err := s.store.SaveAddress(ctx, a); err != nil {
		return nil, domain.StoreError(err, op, "failed to set default address")
	}
	return a, nil
}

func (s *addressService) load(ctx context.Context, op, userID, id string) (*domain.Address, error) {
	a, err := s.store.GetAddress(ctx, userID, id)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.AddressNotFound(op, id)
		}
		return nil, domain.StoreError(err, op, "failed to load address")
	}
	return a, nil
}

// validate runs the address validator and copies the normalized fields back
// onto a.
func (s *addressService) validate(ctx context.Context, op string, a *domain.Address) error {
	result, err := s.validator.Validate(ctx, address.Address{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Phone:     a.Phone,
		Street:    a.Street,
		City:      a.City,
		State:     a.State,
		ZipCode:   a.ZipCode,
		Country:   a.Country,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to validate address")
	}
	if !result.IsValid {
		verr := &domain.ValidationError{Op: op, Fields: make(map[string]string, len(result.Errors))}
		for _, fe := range result.Errors {
			verr.Fields[fe.Field] = fe.Message
		}
		return verr
	}

	if n := result.NormalizedAddress; n != nil {
		a.FirstName, a.LastName = n.FirstName, n.LastName
		a.Email, a.Phone = n.Email, n.Phone
		a.Street, a.City, a.State = n.Street, n.City, n.State
		a.ZipCode, a.Country = n.ZipCode, n.Country
	}
	return nil
}
