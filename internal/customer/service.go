package customer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-interio/internal/common"
	"github.com/noah-isme/backend-interio/internal/store"
)

// ErrHasQuotations is returned when deleting a customer that still owns
// quotations. Quotations must be deleted first so their cascades run.
var ErrHasQuotations = errors.New("customer: quotations still reference this customer")

// Service manages the customer directory quotations are prepared against.
type Service struct {
	Store  *store.Store
	Logger zerolog.Logger
}

// Input carries the caller-provided customer fields.
type Input struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// Create registers a new customer.
func (s *Service) Create(ctx context.Context, in Input) (store.Customer, error) {
	now := time.Now().UTC()
	c := store.Customer{
		ID:        uuid.New(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Store.PutCustomer(c)
	s.Logger.Info().Str("customer_id", c.ID.String()).Msg("customer created")
	return c, nil
}

// Update replaces the mutable fields of an existing customer.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (store.Customer, error) {
	c, err := s.Store.GetCustomer(id)
	if err != nil {
		return store.Customer{}, err
	}
	c.Name = in.Name
	c.Email = in.Email
	c.Phone = in.Phone
	c.Address = in.Address
	c.UpdatedAt = time.Now().UTC()
	s.Store.PutCustomer(c)
	return c, nil
}

// Delete removes a customer. It refuses while any quotation still points at
// the customer to keep the ownership graph intact.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Store.GetCustomer(id); err != nil {
		return err
	}
	for _, q := range s.Store.ListQuotations() {
		if q.CustomerID == id {
			return common.NewAppError("CONFLICT", "quotations still reference this customer", http.StatusConflict, ErrHasQuotations)
		}
	}
	return s.Store.DeleteCustomer(id)
}
