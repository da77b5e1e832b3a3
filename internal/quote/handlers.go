package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-interio/internal/common"
	"github.com/noah-isme/backend-interio/internal/pricing"
	"github.com/noah-isme/backend-interio/internal/store"
)

// Handler exposes the quotation, room, line-item and installation-charge
// endpoints. Read endpoints serve the cached derived fields directly and
// never recompute totals themselves.
type Handler struct {
	Svc      *Service
	Store    *store.Store
	Validate *validator.Validate
	// DefaultGSTPercentage is applied when a create payload omits a rate.
	DefaultGSTPercentage float64
}

type createQuotationPayload struct {
	CustomerID           string   `json:"customerId" validate:"required,uuid"`
	Title                string   `json:"title"`
	GlobalDiscount       float64  `json:"globalDiscount" validate:"gte=0"`
	GSTPercentage        *float64 `json:"gstPercentage" validate:"omitempty,gte=0"`
	InstallationHandling float64  `json:"installationHandling" validate:"gte=0"`
}

type policyPayload struct {
	GlobalDiscount       *float64 `json:"globalDiscount" validate:"omitempty,gte=0"`
	GSTPercentage        *float64 `json:"gstPercentage" validate:"omitempty,gte=0"`
	InstallationHandling *float64 `json:"installationHandling" validate:"omitempty,gte=0"`
}

type statusPayload struct {
	Status string `json:"status" validate:"required,oneof=draft sent accepted rejected converted"`
}

type roomPayload struct {
	Name string `json:"name" validate:"required"`
}

type reorderPayload struct {
	RoomIDs []string `json:"roomIds" validate:"required,min=1,dive,uuid"`
}

type lineItemPayload struct {
	Kind         string  `json:"kind" validate:"required,oneof=product accessory"`
	Name         string  `json:"name" validate:"required"`
	Description  string  `json:"description"`
	SellingPrice float64 `json:"sellingPrice" validate:"gte=0"`
	Quantity     int     `json:"quantity" validate:"gte=1"`
	Discount     float64 `json:"discount" validate:"gte=0"`
	DiscountType string  `json:"discountType" validate:"required,oneof=percentage fixed"`
}

type lineItemUpdatePayload struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	SellingPrice *float64 `json:"sellingPrice" validate:"omitempty,gte=0"`
	Quantity     *int     `json:"quantity" validate:"omitempty,gte=1"`
	Discount     *float64 `json:"discount" validate:"omitempty,gte=0"`
	DiscountType *string  `json:"discountType" validate:"omitempty,oneof=percentage fixed"`
}

type chargePayload struct {
	Description  string  `json:"description"`
	WidthMm      float64 `json:"widthMm" validate:"gte=0"`
	HeightMm     float64 `json:"heightMm" validate:"gte=0"`
	PricePerSqft float64 `json:"pricePerSqft" validate:"gte=0"`
}

type chargeUpdatePayload struct {
	Description  *string  `json:"description"`
	WidthMm      *float64 `json:"widthMm" validate:"omitempty,gte=0"`
	HeightMm     *float64 `json:"heightMm" validate:"omitempty,gte=0"`
	PricePerSqft *float64 `json:"pricePerSqft" validate:"omitempty,gte=0"`
}

type quotationView struct {
	ID                       uuid.UUID `json:"id"`
	CustomerID               uuid.UUID `json:"customerId"`
	Reference                string    `json:"reference"`
	Title                    string    `json:"title"`
	Status                   string    `json:"status"`
	GlobalDiscount           float64   `json:"globalDiscount"`
	GSTPercentage            float64   `json:"gstPercentage"`
	InstallationHandling     float64   `json:"installationHandling"`
	TotalSellingPrice        float64   `json:"totalSellingPrice"`
	TotalDiscountedPrice     float64   `json:"totalDiscountedPrice"`
	TotalInstallationCharges float64   `json:"totalInstallationCharges"`
	GSTAmount                float64   `json:"gstAmount"`
	FinalPrice               float64   `json:"finalPrice"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

type roomView struct {
	ID              uuid.UUID    `json:"id"`
	QuotationID     uuid.UUID    `json:"quotationId"`
	Name            string       `json:"name"`
	Order           int          `json:"order"`
	SellingPrice    float64      `json:"sellingPrice"`
	DiscountedPrice float64      `json:"discountedPrice"`
	Items           []itemView   `json:"items"`
	Charges         []chargeView `json:"installationCharges"`
}

type itemView struct {
	ID              uuid.UUID `json:"id"`
	RoomID          uuid.UUID `json:"roomId"`
	Kind            string    `json:"kind"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	SellingPrice    float64   `json:"sellingPrice"`
	Quantity        int       `json:"quantity"`
	Discount        float64   `json:"discount"`
	DiscountType    string    `json:"discountType"`
	DiscountedPrice float64   `json:"discountedPrice"`
}

type chargeView struct {
	ID           uuid.UUID `json:"id"`
	RoomID       uuid.UUID `json:"roomId"`
	QuotationID  uuid.UUID `json:"quotationId"`
	Description  string    `json:"description,omitempty"`
	WidthMm      float64   `json:"widthMm"`
	HeightMm     float64   `json:"heightMm"`
	PricePerSqft float64   `json:"pricePerSqft"`
	AreaSqft     *float64  `json:"areaSqft"`
	Amount       *float64  `json:"amount"`
}

// Create registers a new quotation.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createQuotationPayload
	if !h.decode(w, r, &payload) {
		return
	}
	customerID, err := uuid.Parse(payload.CustomerID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid customer id", nil)
		return
	}
	gst := h.DefaultGSTPercentage
	if payload.GSTPercentage != nil {
		gst = *payload.GSTPercentage
	}
	q, err := h.Svc.CreateQuotation(r.Context(), CreateQuotationInput{
		CustomerID:           customerID,
		Title:                payload.Title,
		GlobalDiscount:       payload.GlobalDiscount,
		GSTPercentage:        gst,
		InstallationHandling: payload.InstallationHandling,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toQuotationView(q)})
}

// List returns quotation summaries with cached totals.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	all := h.Store.ListQuotations()
	total := len(all)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	views := make([]quotationView, 0, end-start)
	for _, q := range all[start:end] {
		views = append(views, toQuotationView(q))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       views,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Get returns a quotation with its rooms, line items and installation charges.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "quotationID")
	if !ok {
		return
	}
	q, err := h.Store.GetQuotation(id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	rooms := h.Store.RoomsByQuotation(id)
	roomViews := make([]roomView, 0, len(rooms))
	for _, room := range rooms {
		roomViews = append(roomViews, h.toRoomView(room))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"quotation": toQuotationView(q),
		"rooms":     roomViews,
	}})
}

// UpdatePolicy changes the quotation-level pricing policy and returns the
// freshly recomputed totals.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "quotationID")
	if !ok {
		return
	}
	var payload policyPayload
	if !h.decode(w, r, &payload) {
		return
	}
	q, err := h.Svc.UpdateQuotationPolicy(r.Context(), id, PolicyInput{
		GlobalDiscount:       payload.GlobalDiscount,
		GSTPercentage:        payload.GSTPercentage,
		InstallationHandling: payload.InstallationHandling,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toQuotationView(q)})
}

// UpdateStatus moves the quotation through its lifecycle.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "quotationID")
	if !ok {
		return
	}
	var payload statusPayload
	if !h.decode(w, r, &payload) {
		return
	}
	q, err := h.Svc.UpdateQuotationStatus(r.Context(), id, store.QuotationStatus(payload.Status))
	if err != nil {
		h.respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toQuotationView(q)})
}

// Delete removes a quotation and everything it owns.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "quotationID")
	if !ok {
		return
	}
	if err := h.Svc.DeleteQuotation(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateRoom appends a room to a quotation.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "quotationID")
	if !ok {
		return
	}
	var payload roomPayload
	if !h.decode(w, r, &payload) {
		return
	}
	room, err := h.Svc.CreateRoom(r.Context(), id, payload.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": h.toRoomView(room)})
}

// ReorderRooms applies a dense permutation of a quotation's room sequence.
func (h *Handler) ReorderRooms(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "quotationID")
	if !ok {
		return
	}
	var payload reorderPayload
	if !h.decode(w, r, &payload) {
		return
	}
	ids := make([]uuid.UUID, 0, len(payload.RoomIDs))
	for _, raw := range payload.RoomIDs {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid room id", nil)
			return
		}
		ids = append(ids, parsed)
	}
	if err := h.Svc.ReorderRooms(r.Context(), id, ids); err != nil {
		h.respondError(w, err)
		return
	}
	rooms := h.Store.RoomsByQuotation(id)
	views := make([]roomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, h.toRoomView(room))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// RenameRoom changes a room's name.
func (h *Handler) RenameRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roomID")
	if !ok {
		return
	}
	var payload roomPayload
	if !h.decode(w, r, &payload) {
		return
	}
	room, err := h.Svc.RenameRoom(r.Context(), id, payload.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.toRoomView(room)})
}

// DeleteRoom removes a room and its contents.
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roomID")
	if !ok {
		return
	}
	if err := h.Svc.DeleteRoom(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateItem adds a product or accessory to a room.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.pathID(w, r, "roomID")
	if !ok {
		return
	}
	var payload lineItemPayload
	if !h.decode(w, r, &payload) {
		return
	}
	item, err := h.Svc.CreateLineItem(r.Context(), roomID, LineItemInput{
		Kind:         store.ItemKind(payload.Kind),
		Name:         payload.Name,
		Description:  payload.Description,
		SellingPrice: payload.SellingPrice,
		Quantity:     payload.Quantity,
		Discount:     payload.Discount,
		DiscountType: pricing.DiscountKind(payload.DiscountType),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toItemView(item)})
}

// UpdateItem applies a partial update to a line item.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.pathID(w, r, "itemID")
	if !ok {
		return
	}
	var payload lineItemUpdatePayload
	if !h.decode(w, r, &payload) {
		return
	}
	update := LineItemUpdate{
		Name:         payload.Name,
		Description:  payload.Description,
		SellingPrice: payload.SellingPrice,
		Quantity:     payload.Quantity,
		Discount:     payload.Discount,
	}
	if payload.DiscountType != nil {
		kind := pricing.DiscountKind(*payload.DiscountType)
		update.DiscountType = &kind
	}
	item, err := h.Svc.UpdateLineItem(r.Context(), itemID, update)
	if err != nil {
		h.respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toItemView(item)})
}

// DeleteItem removes a line item.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := h.pathID(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.Svc.DeleteLineItem(r.Context(), itemID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateCharge adds an installation charge to a room.
func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.pathID(w, r, "roomID")
	if !ok {
		return
	}
	var payload chargePayload
	if !h.decode(w, r, &payload) {
		return
	}
	charge, err := h.Svc.CreateInstallationCharge(r.Context(), roomID, ChargeInput{
		Description:  payload.Description,
		WidthMm:      payload.WidthMm,
		HeightMm:     payload.HeightMm,
		PricePerSqft: payload.PricePerSqft,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toChargeView(charge)})
}

// UpdateCharge applies a partial update to an installation charge.
func (h *Handler) UpdateCharge(w http.ResponseWriter, r *http.Request) {
	chargeID, ok := h.pathID(w, r, "chargeID")
	if !ok {
		return
	}
	var payload chargeUpdatePayload
	if !h.decode(w, r, &payload) {
		return
	}
	charge, err := h.Svc.UpdateInstallationCharge(r.Context(), chargeID, ChargeUpdate{
		Description:  payload.Description,
		WidthMm:      payload.WidthMm,
		HeightMm:     payload.HeightMm,
		PricePerSqft: payload.PricePerSqft,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toChargeView(charge)})
}

// DeleteCharge removes an installation charge.
func (h *Handler) DeleteCharge(w http.ResponseWriter, r *http.Request) {
	chargeID, ok := h.pathID(w, r, "chargeID")
	if !ok {
		return
	}
	if err := h.Svc.DeleteInstallationCharge(r.Context(), chargeID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+param, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, store.ErrNotFound):
		appErr = common.NewAppError("NOT_FOUND", "record not found", http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidReorder):
		appErr = common.NewAppError("BAD_REQUEST", err.Error(), http.StatusBadRequest, err)
	default:
		appErr = common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
	common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
}

func (h *Handler) toRoomView(room store.Room) roomView {
	items := h.Store.LineItemsByRoom(room.ID)
	itemViews := make([]itemView, 0, len(items))
	for _, item := range items {
		itemViews = append(itemViews, toItemView(item))
	}
	charges := h.Store.ChargesByRoom(room.ID)
	chargeViews := make([]chargeView, 0, len(charges))
	for _, charge := range charges {
		chargeViews = append(chargeViews, toChargeView(charge))
	}
	return roomView{
		ID:              room.ID,
		QuotationID:     room.QuotationID,
		Name:            room.Name,
		Order:           room.Order,
		SellingPrice:    room.SellingPrice,
		DiscountedPrice: room.DiscountedPrice,
		Items:           itemViews,
		Charges:         chargeViews,
	}
}

func toQuotationView(q store.Quotation) quotationView {
	return quotationView{
		ID:                       q.ID,
		CustomerID:               q.CustomerID,
		Reference:                q.Reference,
		Title:                    q.Title,
		Status:                   string(q.Status),
		GlobalDiscount:           q.GlobalDiscount,
		GSTPercentage:            q.GSTPercentage,
		InstallationHandling:     q.InstallationHandling,
		TotalSellingPrice:        q.TotalSellingPrice,
		TotalDiscountedPrice:     q.TotalDiscountedPrice,
		TotalInstallationCharges: q.TotalInstallationCharges,
		GSTAmount:                q.GSTAmount,
		FinalPrice:               q.FinalPrice,
		CreatedAt:                q.CreatedAt,
		UpdatedAt:                q.UpdatedAt,
	}
}

func toItemView(item store.LineItem) itemView {
	return itemView{
		ID:              item.ID,
		RoomID:          item.RoomID,
		Kind:            string(item.Kind),
		Name:            item.Name,
		Description:     item.Description,
		SellingPrice:    item.SellingPrice,
		Quantity:        item.Quantity,
		Discount:        item.Discount,
		DiscountType:    string(item.DiscountType),
		DiscountedPrice: item.DiscountedPrice,
	}
}

func toChargeView(charge store.InstallationCharge) chargeView {
	return chargeView{
		ID:           charge.ID,
		RoomID:       charge.RoomID,
		QuotationID:  charge.QuotationID,
		Description:  charge.Description,
		WidthMm:      charge.WidthMm,
		HeightMm:     charge.HeightMm,
		PricePerSqft: charge.PricePerSqft,
		AreaSqft:     charge.AreaSqft,
		Amount:       charge.Amount,
	}
}
