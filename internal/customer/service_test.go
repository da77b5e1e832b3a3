package customer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-interio/internal/common"
	"github.com/noah-isme/backend-interio/internal/store"
)

func TestCreateUpdateDelete(t *testing.T) {
	svc := &Service{Store: store.New(), Logger: zerolog.Nop()}
	ctx := context.Background()

	c, err := svc.Create(ctx, Input{Name: "Meera Nair", Email: "meera@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == uuid.Nil {
		t.Fatalf("created customer has no id")
	}

	updated, err := svc.Update(ctx, c.ID, Input{Name: "Meera N.", Phone: "98200 00000"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Meera N." || updated.Phone != "98200 00000" {
		t.Fatalf("update not applied: %+v", updated)
	}

	if err := svc.Delete(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Store.GetCustomer(c.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestDeleteRefusedWhileQuotationsExist(t *testing.T) {
	st := store.New()
	svc := &Service{Store: st, Logger: zerolog.Nop()}
	ctx := context.Background()

	c, err := svc.Create(ctx, Input{Name: "Arjun Rao"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	st.PutQuotation(store.Quotation{
		ID:         uuid.New(),
		CustomerID: c.ID,
		Reference:  "QTN-TEST0001",
		Status:     store.QuotationDraft,
		CreatedAt:  time.Now().UTC(),
	})

	err = svc.Delete(ctx, c.ID)
	if !errors.Is(err, ErrHasQuotations) {
		t.Fatalf("expected ErrHasQuotations, got %v", err)
	}
	if !common.IsAppError(err) {
		t.Fatalf("expected an AppError carrying the conflict status, got %T", err)
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus != http.StatusConflict {
		t.Fatalf("conflict status = %d", appErr.HTTPStatus)
	}
}

func TestUpdateUnknownCustomer(t *testing.T) {
	svc := &Service{Store: store.New(), Logger: zerolog.Nop()}
	if _, err := svc.Update(context.Background(), uuid.New(), Input{Name: "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
