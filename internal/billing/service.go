package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-interio/internal/events"
	"github.com/noah-isme/backend-interio/internal/obs"
	"github.com/noah-isme/backend-interio/internal/pricing"
	"github.com/noah-isme/backend-interio/internal/store"
)

var (
	// ErrNotAccepted is returned when converting a quotation that has not
	// been accepted by the customer.
	ErrNotAccepted = errors.New("billing: quotation must be accepted before conversion")
	// ErrAlreadyConverted is returned when a quotation already has a sales order.
	ErrAlreadyConverted = errors.New("billing: quotation already converted")
	// ErrOverpayment is returned when a payment would exceed the invoice's
	// outstanding balance.
	ErrOverpayment = errors.New("billing: payment exceeds outstanding balance")
	// ErrInvalidAmount is returned for zero or negative payment amounts.
	ErrInvalidAmount = errors.New("billing: payment amount must be positive")
	// ErrOrderClosed is returned when changing the status of a fulfilled or
	// canceled order.
	ErrOrderClosed = errors.New("billing: order is already closed")
)

// Service converts accepted quotations into sales orders and tracks invoices
// and payments against them. Order totals are snapshots: later edits to the
// source quotation never flow into an existing order or invoice.
type Service struct {
	Store  *store.Store
	Events *events.Bus
	Logger zerolog.Logger
}

// CreateSalesOrder freezes an accepted quotation's final price into a sales
// order and marks the quotation converted.
func (s *Service) CreateSalesOrder(ctx context.Context, quotationID uuid.UUID) (store.SalesOrder, error) {
	mu := s.Store.LockQuotation(quotationID)
	mu.Lock()
	defer mu.Unlock()

	q, err := s.Store.GetQuotation(quotationID)
	if err != nil {
		return store.SalesOrder{}, err
	}
	if q.Status == store.QuotationConverted {
		return store.SalesOrder{}, ErrAlreadyConverted
	}
	if q.Status != store.QuotationAccepted {
		return store.SalesOrder{}, ErrNotAccepted
	}

	now := time.Now().UTC()
	order := store.SalesOrder{
		ID:          uuid.New(),
		QuotationID: q.ID,
		CustomerID:  q.CustomerID,
		Reference:   newReference("SO"),
		Total:       q.FinalPrice,
		Status:      store.OrderOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Store.PutSalesOrder(order)

	q.Status = store.QuotationConverted
	q.UpdatedAt = now
	s.Store.PutQuotation(q)

	s.Logger.Info().
		Str("order_id", order.ID.String()).
		Str("quotation_id", q.ID.String()).
		Float64("total", order.Total).
		Msg("sales order created")
	s.emit(ctx, events.TopicOrderCreated, order.ID, map[string]any{
		"quotationId": q.ID,
		"total":       order.Total,
	})
	return order, nil
}

// CloseOrder moves an open sales order to fulfilled or canceled. Closed
// orders stay closed.
func (s *Service) CloseOrder(ctx context.Context, orderID uuid.UUID, status store.OrderStatus) (store.SalesOrder, error) {
	order, err := s.Store.GetSalesOrder(orderID)
	if err != nil {
		return store.SalesOrder{}, err
	}
	if order.Status != store.OrderOpen {
		return store.SalesOrder{}, ErrOrderClosed
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	s.Store.PutSalesOrder(order)

	s.Logger.Info().
		Str("order_id", order.ID.String()).
		Str("status", string(status)).
		Msg("sales order closed")
	return order, nil
}

// IssueInvoice creates an invoice for the full order total.
func (s *Service) IssueInvoice(ctx context.Context, orderID uuid.UUID) (store.Invoice, error) {
	order, err := s.Store.GetSalesOrder(orderID)
	if err != nil {
		return store.Invoice{}, err
	}
	now := time.Now().UTC()
	inv := store.Invoice{
		ID:          uuid.New(),
		OrderID:     order.ID,
		QuotationID: order.QuotationID,
		CustomerID:  order.CustomerID,
		Reference:   newReference("INV"),
		AmountDue:   order.Total,
		Status:      store.InvoiceUnpaid,
		IssuedAt:    now,
		UpdatedAt:   now,
	}
	s.Store.PutInvoice(inv)

	if obs.InvoiceIssuedTotal != nil {
		obs.InvoiceIssuedTotal.Inc()
	}
	s.emit(ctx, events.TopicInvoiceIssued, inv.ID, map[string]any{
		"orderId":   order.ID,
		"amountDue": inv.AmountDue,
	})
	return inv, nil
}

// RecordPayment registers money received against an invoice and moves its
// status between unpaid, partial and paid. Payments that would overshoot the
// amount due are rejected.
func (s *Service) RecordPayment(ctx context.Context, invoiceID uuid.UUID, amount pricing.Money, method string) (store.Payment, store.Invoice, error) {
	if amount <= 0 {
		return store.Payment{}, store.Invoice{}, ErrInvalidAmount
	}
	inv, err := s.Store.GetInvoice(invoiceID)
	if err != nil {
		return store.Payment{}, store.Invoice{}, err
	}

	var paid pricing.Money
	for _, p := range s.Store.PaymentsByInvoice(invoiceID) {
		paid += p.Amount
	}
	if paid+amount > inv.AmountDue {
		return store.Payment{}, store.Invoice{}, ErrOverpayment
	}

	now := time.Now().UTC()
	payment := store.Payment{
		ID:         uuid.New(),
		InvoiceID:  invoiceID,
		Amount:     amount,
		Method:     method,
		ReceivedAt: now,
	}
	s.Store.PutPayment(payment)

	switch {
	case paid+amount >= inv.AmountDue:
		inv.Status = store.InvoicePaid
	default:
		inv.Status = store.InvoicePartial
	}
	inv.UpdatedAt = now
	s.Store.PutInvoice(inv)

	if obs.PaymentRecordedTotal != nil {
		obs.PaymentRecordedTotal.Inc()
	}
	s.emit(ctx, events.TopicPaymentRecorded, payment.ID, map[string]any{
		"invoiceId": invoiceID,
		"amount":    amount,
		"status":    inv.Status,
	})
	return payment, inv, nil
}

// Outstanding reports the unpaid remainder of an invoice.
func (s *Service) Outstanding(invoiceID uuid.UUID) (pricing.Money, error) {
	inv, err := s.Store.GetInvoice(invoiceID)
	if err != nil {
		return 0, err
	}
	var paid pricing.Money
	for _, p := range s.Store.PaymentsByInvoice(invoiceID) {
		paid += p.Amount
	}
	return inv.AmountDue - paid, nil
}

func (s *Service) emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, aggregateID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Msg("event emit failed")
	}
}

func newReference(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.NewString()[:8]))
}
