package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-interio/internal/events"
	"github.com/noah-isme/backend-interio/internal/pricing"
	"github.com/noah-isme/backend-interio/internal/store"
)

// ErrInvalidReorder is returned when a reorder request is not a permutation
// of the quotation's current rooms.
var ErrInvalidReorder = errors.New("quote: reorder must cover every room exactly once")

// Service owns every mutation entry point for quotations, rooms, line items
// and installation charges. Each mutation runs its body plus the full
// cascading recompute under the owning quotation's lock before returning, so
// readers never observe a partially updated aggregate.
type Service struct {
	Store  *store.Store
	Events *events.Bus
	Logger zerolog.Logger
}

// CreateQuotationInput carries the caller-provided fields for a new quotation.
type CreateQuotationInput struct {
	CustomerID           uuid.UUID
	Title                string
	GlobalDiscount       float64
	GSTPercentage        float64
	InstallationHandling pricing.Money
}

// PolicyInput carries a partial update of the quotation-level pricing policy.
// Nil fields are left unchanged.
type PolicyInput struct {
	GlobalDiscount       *float64
	GSTPercentage        *float64
	InstallationHandling *pricing.Money
}

// LineItemInput carries the caller-provided fields for a new line item.
type LineItemInput struct {
	Kind         store.ItemKind
	Name         string
	Description  string
	SellingPrice pricing.Money
	Quantity     int
	Discount     float64
	DiscountType pricing.DiscountKind
}

// LineItemUpdate carries a partial update of a line item. Nil fields are left
// unchanged. The cached discounted price is re-resolved whenever any of its
// three inputs changes.
type LineItemUpdate struct {
	Name         *string
	Description  *string
	SellingPrice *pricing.Money
	Quantity     *int
	Discount     *float64
	DiscountType *pricing.DiscountKind
}

// ChargeInput carries the caller-provided fields for a new installation charge.
type ChargeInput struct {
	Description  string
	WidthMm      float64
	HeightMm     float64
	PricePerSqft pricing.Money
}

// ChargeUpdate carries a partial update of an installation charge.
type ChargeUpdate struct {
	Description  *string
	WidthMm      *float64
	HeightMm     *float64
	PricePerSqft *pricing.Money
}

// CreateQuotation registers a quotation for an existing customer and runs the
// initial recompute so derived fields start consistent.
func (s *Service) CreateQuotation(ctx context.Context, in CreateQuotationInput) (store.Quotation, error) {
	if _, err := s.Store.GetCustomer(in.CustomerID); err != nil {
		return store.Quotation{}, fmt.Errorf("quote: customer %s: %w", in.CustomerID, err)
	}
	now := time.Now().UTC()
	q := store.Quotation{
		ID:                   uuid.New(),
		CustomerID:           in.CustomerID,
		Reference:            newReference(),
		Title:                strings.TrimSpace(in.Title),
		Status:               store.QuotationDraft,
		GlobalDiscount:       in.GlobalDiscount,
		GSTPercentage:        in.GSTPercentage,
		InstallationHandling: in.InstallationHandling,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	mu := s.Store.LockQuotation(q.ID)
	mu.Lock()
	defer mu.Unlock()

	s.Store.PutQuotation(q)
	if err := s.recalcQuotation(ctx, q.ID); err != nil {
		return store.Quotation{}, err
	}
	s.emit(ctx, events.TopicQuotationCreated, q.ID, map[string]any{"reference": q.Reference})
	return s.Store.GetQuotation(q.ID)
}

// UpdateQuotationPolicy changes any of the three quotation-level policy
// inputs and recomputes the derived totals before returning.
func (s *Service) UpdateQuotationPolicy(ctx context.Context, id uuid.UUID, in PolicyInput) (store.Quotation, error) {
	mu := s.Store.LockQuotation(id)
	mu.Lock()
	defer mu.Unlock()

	q, err := s.Store.GetQuotation(id)
	if err != nil {
		return store.Quotation{}, err
	}
	if in.GlobalDiscount != nil {
		q.GlobalDiscount = *in.GlobalDiscount
	}
	if in.GSTPercentage != nil {
		q.GSTPercentage = *in.GSTPercentage
	}
	if in.InstallationHandling != nil {
		q.InstallationHandling = *in.InstallationHandling
	}
	q.UpdatedAt = time.Now().UTC()
	s.Store.PutQuotation(q)
	if err := s.recalcQuotation(ctx, id); err != nil {
		return store.Quotation{}, err
	}
	return s.Store.GetQuotation(id)
}

// UpdateQuotationStatus moves the quotation through its lifecycle.
func (s *Service) UpdateQuotationStatus(ctx context.Context, id uuid.UUID, status store.QuotationStatus) (store.Quotation, error) {
	mu := s.Store.LockQuotation(id)
	mu.Lock()
	defer mu.Unlock()

	q, err := s.Store.GetQuotation(id)
	if err != nil {
		return store.Quotation{}, err
	}
	q.Status = status
	q.UpdatedAt = time.Now().UTC()
	s.Store.PutQuotation(q)
	return q, nil
}

// DeleteQuotation removes a quotation and everything it owns.
func (s *Service) DeleteQuotation(ctx context.Context, id uuid.UUID) error {
	mu := s.Store.LockQuotation(id)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.Store.GetQuotation(id); err != nil {
		return err
	}
	for _, room := range s.Store.RoomsByQuotation(id) {
		s.deleteRoomContents(room.ID)
		_ = s.Store.DeleteRoom(room.ID)
	}
	if err := s.Store.DeleteQuotation(id); err != nil {
		return err
	}
	s.Store.ReleaseQuotationLock(id)
	s.emit(ctx, events.TopicQuotationDeleted, id, nil)
	return nil
}

// CreateRoom appends a room at the end of the quotation's sequence and runs
// the cascade so quotation totals stay current.
func (s *Service) CreateRoom(ctx context.Context, quotationID uuid.UUID, name string) (store.Room, error) {
	mu := s.Store.LockQuotation(quotationID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.Store.GetQuotation(quotationID); err != nil {
		return store.Room{}, err
	}
	now := time.Now().UTC()
	room := store.Room{
		ID:          uuid.New(),
		QuotationID: quotationID,
		Name:        strings.TrimSpace(name),
		Order:       len(s.Store.RoomsByQuotation(quotationID)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Store.PutRoom(room)
	if err := s.recalcRoom(ctx, room.ID); err != nil {
		return store.Room{}, err
	}
	s.emit(ctx, events.TopicRoomCreated, quotationID, map[string]any{"roomId": room.ID})
	return s.Store.GetRoom(room.ID)
}

// RenameRoom changes a room's display name. Totals are unaffected.
func (s *Service) RenameRoom(ctx context.Context, roomID uuid.UUID, name string) (store.Room, error) {
	room, err := s.Store.GetRoom(roomID)
	if err != nil {
		return store.Room{}, err
	}
	mu := s.Store.LockQuotation(room.QuotationID)
	mu.Lock()
	defer mu.Unlock()

	room, err = s.Store.GetRoom(roomID)
	if err != nil {
		return store.Room{}, err
	}
	room.Name = strings.TrimSpace(name)
	room.UpdatedAt = time.Now().UTC()
	s.Store.PutRoom(room)
	return room, nil
}

// DeleteRoom removes a room after deleting its owned line items and
// installation charges, keeps the sibling sequence dense, then recomputes the
// quotation totals.
func (s *Service) DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	room, err := s.Store.GetRoom(roomID)
	if err != nil {
		return err
	}
	mu := s.Store.LockQuotation(room.QuotationID)
	mu.Lock()
	defer mu.Unlock()

	room, err = s.Store.GetRoom(roomID)
	if err != nil {
		return err
	}
	s.deleteRoomContents(roomID)
	if err := s.Store.DeleteRoom(roomID); err != nil {
		return err
	}
	for i, sibling := range s.Store.RoomsByQuotation(room.QuotationID) {
		if sibling.Order != i {
			sibling.Order = i
			s.Store.PutRoom(sibling)
		}
	}
	if err := s.recalcQuotation(ctx, room.QuotationID); err != nil {
		return err
	}
	s.emit(ctx, events.TopicRoomDeleted, room.QuotationID, map[string]any{"roomId": roomID})
	return nil
}

// ReorderRooms assigns the dense zero-based sequence given by orderedIDs,
// which must be a permutation of the quotation's current rooms.
func (s *Service) ReorderRooms(ctx context.Context, quotationID uuid.UUID, orderedIDs []uuid.UUID) error {
	mu := s.Store.LockQuotation(quotationID)
	mu.Lock()
	defer mu.Unlock()

	rooms := s.Store.RoomsByQuotation(quotationID)
	if len(rooms) != len(orderedIDs) {
		return ErrInvalidReorder
	}
	byID := make(map[uuid.UUID]store.Room, len(rooms))
	for _, r := range rooms {
		byID[r.ID] = r
	}
	seen := make(map[uuid.UUID]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, ok := byID[id]; !ok || seen[id] {
			return ErrInvalidReorder
		}
		seen[id] = true
	}
	now := time.Now().UTC()
	for i, id := range orderedIDs {
		room := byID[id]
		room.Order = i
		room.UpdatedAt = now
		s.Store.PutRoom(room)
	}
	if err := s.recalcQuotation(ctx, quotationID); err != nil {
		return err
	}
	s.emit(ctx, events.TopicRoomsReordered, quotationID, nil)
	return nil
}

// CreateLineItem adds a product or accessory to a room. The discounted price
// is resolved at write time and cached on the record.
func (s *Service) CreateLineItem(ctx context.Context, roomID uuid.UUID, in LineItemInput) (store.LineItem, error) {
	room, err := s.Store.GetRoom(roomID)
	if err != nil {
		return store.LineItem{}, err
	}
	mu := s.Store.LockQuotation(room.QuotationID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.Store.GetRoom(roomID); err != nil {
		return store.LineItem{}, err
	}
	now := time.Now().UTC()
	item := store.LineItem{
		ID:              uuid.New(),
		RoomID:          roomID,
		QuotationID:     room.QuotationID,
		Kind:            in.Kind,
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		SellingPrice:    in.SellingPrice,
		Quantity:        in.Quantity,
		Discount:        in.Discount,
		DiscountType:    in.DiscountType,
		DiscountedPrice: pricing.Resolve(in.SellingPrice, in.Discount, in.DiscountType),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.Store.PutLineItem(item)
	if err := s.recalcRoom(ctx, roomID); err != nil {
		return store.LineItem{}, err
	}
	s.emit(ctx, events.TopicLineItemCreated, room.QuotationID, map[string]any{"itemId": item.ID})
	return item, nil
}

// UpdateLineItem applies a partial update and re-resolves the cached
// discounted price before recomputing the ancestor totals.
func (s *Service) UpdateLineItem(ctx context.Context, itemID uuid.UUID, in LineItemUpdate) (store.LineItem, error) {
	item, err := s.Store.GetLineItem(itemID)
	if err != nil {
		return store.LineItem{}, err
	}
	mu := s.Store.LockQuotation(item.QuotationID)
	mu.Lock()
	defer mu.Unlock()

	item, err = s.Store.GetLineItem(itemID)
	if err != nil {
		return store.LineItem{}, err
	}
	if in.Name != nil {
		item.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		item.Description = strings.TrimSpace(*in.Description)
	}
	if in.SellingPrice != nil {
		item.SellingPrice = *in.SellingPrice
	}
	if in.Quantity != nil {
		item.Quantity = *in.Quantity
	}
	if in.Discount != nil {
		item.Discount = *in.Discount
	}
	if in.DiscountType != nil {
		item.DiscountType = *in.DiscountType
	}
	item.DiscountedPrice = pricing.Resolve(item.SellingPrice, item.Discount, item.DiscountType)
	item.UpdatedAt = time.Now().UTC()
	s.Store.PutLineItem(item)
	if err := s.recalcRoom(ctx, item.RoomID); err != nil {
		return store.LineItem{}, err
	}
	s.emit(ctx, events.TopicLineItemUpdated, item.QuotationID, map[string]any{"itemId": item.ID})
	return item, nil
}

// DeleteLineItem removes a line item and recomputes the ancestor totals.
func (s *Service) DeleteLineItem(ctx context.Context, itemID uuid.UUID) error {
	item, err := s.Store.GetLineItem(itemID)
	if err != nil {
		return err
	}
	mu := s.Store.LockQuotation(item.QuotationID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.Store.DeleteLineItem(itemID); err != nil {
		return err
	}
	if err := s.recalcRoom(ctx, item.RoomID); err != nil {
		return err
	}
	s.emit(ctx, events.TopicLineItemDeleted, item.QuotationID, map[string]any{"itemId": itemID})
	return nil
}

// CreateInstallationCharge adds a charge to a room. Area and amount are
// computed once at write time; charge mutations route through the room
// recompute so the quotation recompute fires transitively.
func (s *Service) CreateInstallationCharge(ctx context.Context, roomID uuid.UUID, in ChargeInput) (store.InstallationCharge, error) {
	room, err := s.Store.GetRoom(roomID)
	if err != nil {
		return store.InstallationCharge{}, err
	}
	mu := s.Store.LockQuotation(room.QuotationID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.Store.GetRoom(roomID); err != nil {
		return store.InstallationCharge{}, err
	}
	now := time.Now().UTC()
	charge := store.InstallationCharge{
		ID:           uuid.New(),
		RoomID:       roomID,
		QuotationID:  room.QuotationID,
		Description:  strings.TrimSpace(in.Description),
		WidthMm:      in.WidthMm,
		HeightMm:     in.HeightMm,
		PricePerSqft: in.PricePerSqft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	applyChargeComputation(&charge)
	s.Store.PutCharge(charge)
	if err := s.recalcRoom(ctx, roomID); err != nil {
		return store.InstallationCharge{}, err
	}
	s.emit(ctx, events.TopicChargeCreated, room.QuotationID, map[string]any{"chargeId": charge.ID})
	return s.Store.GetCharge(charge.ID)
}

// UpdateInstallationCharge applies a partial update, recomputes the cached
// area and amount, and recomputes the ancestor totals.
func (s *Service) UpdateInstallationCharge(ctx context.Context, chargeID uuid.UUID, in ChargeUpdate) (store.InstallationCharge, error) {
	charge, err := s.Store.GetCharge(chargeID)
	if err != nil {
		return store.InstallationCharge{}, err
	}
	mu := s.Store.LockQuotation(charge.QuotationID)
	mu.Lock()
	defer mu.Unlock()

	charge, err = s.Store.GetCharge(chargeID)
	if err != nil {
		return store.InstallationCharge{}, err
	}
	if in.Description != nil {
		charge.Description = strings.TrimSpace(*in.Description)
	}
	if in.WidthMm != nil {
		charge.WidthMm = *in.WidthMm
	}
	if in.HeightMm != nil {
		charge.HeightMm = *in.HeightMm
	}
	if in.PricePerSqft != nil {
		charge.PricePerSqft = *in.PricePerSqft
	}
	applyChargeComputation(&charge)
	charge.UpdatedAt = time.Now().UTC()
	s.Store.PutCharge(charge)
	if err := s.recalcRoom(ctx, charge.RoomID); err != nil {
		return store.InstallationCharge{}, err
	}
	s.emit(ctx, events.TopicChargeUpdated, charge.QuotationID, map[string]any{"chargeId": chargeID})
	return s.Store.GetCharge(chargeID)
}

// DeleteInstallationCharge removes a charge and recomputes the ancestor totals.
func (s *Service) DeleteInstallationCharge(ctx context.Context, chargeID uuid.UUID) error {
	charge, err := s.Store.GetCharge(chargeID)
	if err != nil {
		return err
	}
	mu := s.Store.LockQuotation(charge.QuotationID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.Store.DeleteCharge(chargeID); err != nil {
		return err
	}
	if err := s.recalcRoom(ctx, charge.RoomID); err != nil {
		return err
	}
	s.emit(ctx, events.TopicChargeDeleted, charge.QuotationID, map[string]any{"chargeId": chargeID})
	return nil
}

func (s *Service) deleteRoomContents(roomID uuid.UUID) {
	for _, item := range s.Store.LineItemsByRoom(roomID) {
		_ = s.Store.DeleteLineItem(item.ID)
	}
	for _, charge := range s.Store.ChargesByRoom(roomID) {
		_ = s.Store.DeleteCharge(charge.ID)
	}
}

func (s *Service) emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, aggregateID, payload); err != nil {
		s.Logger.Error().Err(err).Str("topic", topic).Msg("emit event")
	}
}

func applyChargeComputation(charge *store.InstallationCharge) {
	area, amount, ok := pricing.ComputeInstallation(charge.WidthMm, charge.HeightMm, charge.PricePerSqft)
	if !ok {
		charge.AreaSqft = nil
		charge.Amount = nil
		return
	}
	charge.AreaSqft = &area
	charge.Amount = &amount
}

func newReference() string {
	return "QTN-" + strings.ToUpper(uuid.NewString()[:8])
}
