package billing

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-interio/internal/common"
	"github.com/noah-isme/backend-interio/internal/store"
)

// Handler exposes the sales order, invoice and payment endpoints.
type Handler struct {
	Svc      *Service
	Store    *store.Store
	Validate *validator.Validate
}

type createOrderPayload struct {
	QuotationID string `json:"quotationId" validate:"required,uuid"`
}

type issueInvoicePayload struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
}

type orderStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=fulfilled canceled"`
}

type paymentPayload struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Method string  `json:"method" validate:"required"`
}

type orderView struct {
	ID          uuid.UUID `json:"id"`
	QuotationID uuid.UUID `json:"quotationId"`
	CustomerID  uuid.UUID `json:"customerId"`
	Reference   string    `json:"reference"`
	Total       float64   `json:"total"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

type invoiceView struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"orderId"`
	QuotationID uuid.UUID `json:"quotationId"`
	CustomerID  uuid.UUID `json:"customerId"`
	Reference   string    `json:"reference"`
	AmountDue   float64   `json:"amountDue"`
	Status      string    `json:"status"`
	IssuedAt    time.Time `json:"issuedAt"`
}

type paymentView struct {
	ID         uuid.UUID `json:"id"`
	InvoiceID  uuid.UUID `json:"invoiceId"`
	Amount     float64   `json:"amount"`
	Method     string    `json:"method"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// CreateOrder handles POST /api/v1/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var payload createOrderPayload
	if !h.decode(w, r, &payload) {
		return
	}
	quotationID, err := uuid.Parse(payload.QuotationID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid quotation id", nil)
		return
	}
	order, err := h.Svc.CreateSalesOrder(r.Context(), quotationID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toOrderView(order)})
}

// ListOrders handles GET /api/v1/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.Store.ListSalesOrders()
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toOrderView(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// GetOrder handles GET /api/v1/orders/{orderID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	order, err := h.Store.GetSalesOrder(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toOrderView(order)})
}

// UpdateOrderStatus handles PATCH /api/v1/orders/{orderID}/status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var payload orderStatusPayload
	if !h.decode(w, r, &payload) {
		return
	}
	order, err := h.Svc.CloseOrder(r.Context(), id, store.OrderStatus(payload.Status))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toOrderView(order)})
}

// IssueInvoice handles POST /api/v1/invoices.
func (h *Handler) IssueInvoice(w http.ResponseWriter, r *http.Request) {
	var payload issueInvoicePayload
	if !h.decode(w, r, &payload) {
		return
	}
	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	inv, err := h.Svc.IssueInvoice(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toInvoiceView(inv)})
}

// GetInvoice handles GET /api/v1/invoices/{invoiceID} including its payments
// and outstanding balance.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "invoiceID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid invoice id", nil)
		return
	}
	inv, err := h.Store.GetInvoice(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	outstanding, err := h.Svc.Outstanding(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	payments := h.Store.PaymentsByInvoice(id)
	paymentViews := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		paymentViews = append(paymentViews, toPaymentView(p))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"invoice":     toInvoiceView(inv),
		"payments":    paymentViews,
		"outstanding": outstanding,
	}})
}

// RecordPayment handles POST /api/v1/invoices/{invoiceID}/payments.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "invoiceID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid invoice id", nil)
		return
	}
	var payload paymentPayload
	if !h.decode(w, r, &payload) {
		return
	}
	payment, inv, err := h.Svc.RecordPayment(r.Context(), id, payload.Amount, payload.Method)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"payment": toPaymentView(payment),
		"invoice": toInvoiceView(inv),
	}})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, payload any) bool {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return false
		}
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, store.ErrNotFound):
		appErr = common.NewAppError("NOT_FOUND", "record not found", http.StatusNotFound, err)
	case errors.Is(err, ErrNotAccepted), errors.Is(err, ErrInvalidAmount):
		appErr = common.NewAppError("BAD_REQUEST", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrAlreadyConverted), errors.Is(err, ErrOverpayment), errors.Is(err, ErrOrderClosed):
		appErr = common.NewAppError("CONFLICT", err.Error(), http.StatusConflict, err)
	default:
		appErr = common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
	common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
}

func toOrderView(o store.SalesOrder) orderView {
	return orderView{
		ID:          o.ID,
		QuotationID: o.QuotationID,
		CustomerID:  o.CustomerID,
		Reference:   o.Reference,
		Total:       o.Total,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
	}
}

func toInvoiceView(inv store.Invoice) invoiceView {
	return invoiceView{
		ID:          inv.ID,
		OrderID:     inv.OrderID,
		QuotationID: inv.QuotationID,
		CustomerID:  inv.CustomerID,
		Reference:   inv.Reference,
		AmountDue:   inv.AmountDue,
		Status:      string(inv.Status),
		IssuedAt:    inv.IssuedAt,
	}
}

func toPaymentView(p store.Payment) paymentView {
	return paymentView{
		ID:         p.ID,
		InvoiceID:  p.InvoiceID,
		Amount:     p.Amount,
		Method:     p.Method,
		ReceivedAt: p.ReceivedAt,
	}
}
