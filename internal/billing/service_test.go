package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-interio/internal/events"
	"github.com/noah-isme/backend-interio/internal/store"
)

func seedQuotation(st *store.Store, status store.QuotationStatus, finalPrice float64) store.Quotation {
	now := time.Now().UTC()
	q := store.Quotation{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Reference:  "QTN-SEED0001",
		Status:     status,
		FinalPrice: finalPrice,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	st.PutQuotation(q)
	return q
}

func newBillingService() *Service {
	return &Service{Store: store.New(), Events: &events.Bus{}, Logger: zerolog.Nop()}
}

func TestCreateSalesOrderSnapshotsFinalPrice(t *testing.T) {
	svc := newBillingService()
	ctx := context.Background()
	q := seedQuotation(svc.Store, store.QuotationAccepted, 11800)

	order, err := svc.CreateSalesOrder(ctx, q.ID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Total != 11800 {
		t.Fatalf("order total = %v, want 11800", order.Total)
	}
	if order.Status != store.OrderOpen {
		t.Fatalf("order status = %q", order.Status)
	}

	converted, err := svc.Store.GetQuotation(q.ID)
	if err != nil {
		t.Fatalf("get quotation: %v", err)
	}
	if converted.Status != store.QuotationConverted {
		t.Fatalf("quotation status = %q, want converted", converted.Status)
	}

	// Later edits to the quotation must not flow into the frozen order.
	converted.FinalPrice = 9999
	svc.Store.PutQuotation(converted)
	got, err := svc.Store.GetSalesOrder(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Total != 11800 {
		t.Fatalf("order total changed after quotation edit: %v", got.Total)
	}
}

func TestCreateSalesOrderRequiresAcceptance(t *testing.T) {
	svc := newBillingService()
	ctx := context.Background()

	draft := seedQuotation(svc.Store, store.QuotationDraft, 100)
	if _, err := svc.CreateSalesOrder(ctx, draft.ID); !errors.Is(err, ErrNotAccepted) {
		t.Fatalf("expected ErrNotAccepted, got %v", err)
	}

	accepted := seedQuotation(svc.Store, store.QuotationAccepted, 100)
	if _, err := svc.CreateSalesOrder(ctx, accepted.ID); err != nil {
		t.Fatalf("first conversion: %v", err)
	}
	if _, err := svc.CreateSalesOrder(ctx, accepted.ID); !errors.Is(err, ErrAlreadyConverted) {
		t.Fatalf("expected ErrAlreadyConverted, got %v", err)
	}

	if _, err := svc.CreateSalesOrder(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCloseOrderIsTerminal(t *testing.T) {
	svc := newBillingService()
	ctx := context.Background()
	q := seedQuotation(svc.Store, store.QuotationAccepted, 500)

	order, err := svc.CreateSalesOrder(ctx, q.ID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	closed, err := svc.CloseOrder(ctx, order.ID, store.OrderFulfilled)
	if err != nil {
		t.Fatalf("close order: %v", err)
	}
	if closed.Status != store.OrderFulfilled {
		t.Fatalf("status = %q, want fulfilled", closed.Status)
	}

	if _, err := svc.CloseOrder(ctx, order.ID, store.OrderCanceled); !errors.Is(err, ErrOrderClosed) {
		t.Fatalf("expected ErrOrderClosed, got %v", err)
	}
	if _, err := svc.CloseOrder(ctx, uuid.New(), store.OrderCanceled); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPaymentsDriveInvoiceStatus(t *testing.T) {
	svc := newBillingService()
	ctx := context.Background()
	q := seedQuotation(svc.Store, store.QuotationAccepted, 1000)

	order, err := svc.CreateSalesOrder(ctx, q.ID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	inv, err := svc.IssueInvoice(ctx, order.ID)
	if err != nil {
		t.Fatalf("issue invoice: %v", err)
	}
	if inv.Status != store.InvoiceUnpaid || inv.AmountDue != 1000 {
		t.Fatalf("fresh invoice: %+v", inv)
	}

	_, inv, err = svc.RecordPayment(ctx, inv.ID, 400, "bank_transfer")
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if inv.Status != store.InvoicePartial {
		t.Fatalf("status after partial = %q", inv.Status)
	}
	outstanding, err := svc.Outstanding(inv.ID)
	if err != nil {
		t.Fatalf("outstanding: %v", err)
	}
	if outstanding != 600 {
		t.Fatalf("outstanding = %v, want 600", outstanding)
	}

	if _, _, err := svc.RecordPayment(ctx, inv.ID, 700, "upi"); !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}
	if _, _, err := svc.RecordPayment(ctx, inv.ID, 0, "cash"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	_, inv, err = svc.RecordPayment(ctx, inv.ID, 600, "upi")
	if err != nil {
		t.Fatalf("settling payment: %v", err)
	}
	if inv.Status != store.InvoicePaid {
		t.Fatalf("status after settlement = %q", inv.Status)
	}
	outstanding, err = svc.Outstanding(inv.ID)
	if err != nil {
		t.Fatalf("outstanding: %v", err)
	}
	if outstanding != 0 {
		t.Fatalf("outstanding = %v, want 0", outstanding)
	}
}
