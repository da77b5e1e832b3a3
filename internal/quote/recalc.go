package quote

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-interio/internal/events"
	"github.com/noah-isme/backend-interio/internal/obs"
	"github.com/noah-isme/backend-interio/internal/pricing"
)

// recalcRoom recomputes a room's two cached totals from its live line items
// and then unconditionally recomputes the owning quotation. Installation
// charges do not feed the room totals, but charge mutations still route
// through here so the quotation recompute fires transitively.
func (s *Service) recalcRoom(ctx context.Context, roomID uuid.UUID) error {
	start := time.Now()
	room, err := s.Store.GetRoom(roomID)
	if err != nil {
		return err
	}

	var selling, discounted pricing.Money
	for _, item := range s.Store.LineItemsByRoom(roomID) {
		qty := pricing.Money(item.Quantity)
		selling += item.SellingPrice * qty
		discounted += item.DiscountedPrice * qty
	}
	room.SellingPrice = selling
	room.DiscountedPrice = discounted
	s.Store.PutRoom(room)

	if obs.RoomRecalcTotal != nil {
		obs.RoomRecalcTotal.Inc()
	}
	if obs.RecalcDuration != nil {
		obs.RecalcDuration.WithLabelValues("room").Observe(obs.DurationMillis(time.Since(start)))
	}
	return s.recalcQuotation(ctx, room.QuotationID)
}

// recalcQuotation recomputes every derived total on the quotation. The
// ordering is a business rule and must not be rearranged: the global discount
// applies to the already item-discounted total, and GST applies to a subtotal
// that already includes installation charges and the handling fee. The
// computation is a pure function of the policy inputs and the owned records,
// so repeated calls without intervening mutations are idempotent.
func (s *Service) recalcQuotation(ctx context.Context, quotationID uuid.UUID) error {
	start := time.Now()
	q, err := s.Store.GetQuotation(quotationID)
	if err != nil {
		return err
	}

	var totalSelling, totalDiscounted pricing.Money
	for _, room := range s.Store.RoomsByQuotation(quotationID) {
		totalSelling += room.SellingPrice
		totalDiscounted += room.DiscountedPrice
	}

	var totalInstallation pricing.Money
	for _, charge := range s.Store.ChargesByQuotation(quotationID) {
		if charge.Amount != nil {
			totalInstallation += *charge.Amount
		}
	}

	afterGlobal := totalDiscounted
	if q.GlobalDiscount > 0 {
		afterGlobal = totalDiscounted * (1 - q.GlobalDiscount/100)
	}
	subtotal := afterGlobal + totalInstallation + q.InstallationHandling
	gst := subtotal * q.GSTPercentage / 100

	q.TotalSellingPrice = totalSelling
	q.TotalDiscountedPrice = totalDiscounted
	q.TotalInstallationCharges = totalInstallation
	q.GSTAmount = gst
	q.FinalPrice = subtotal + gst
	s.Store.PutQuotation(q)

	if obs.QuotationRecalcTotal != nil {
		obs.QuotationRecalcTotal.Inc()
	}
	if obs.RecalcDuration != nil {
		obs.RecalcDuration.WithLabelValues("quotation").Observe(obs.DurationMillis(time.Since(start)))
	}
	s.Logger.Debug().
		Str("quotation_id", quotationID.String()).
		Float64("final_price", q.FinalPrice).
		Msg("quotation recalculated")
	s.emit(ctx, events.TopicQuotationRecalculated, quotationID, map[string]any{
		"totalSellingPrice":        q.TotalSellingPrice,
		"totalDiscountedPrice":     q.TotalDiscountedPrice,
		"totalInstallationCharges": q.TotalInstallationCharges,
		"gstAmount":                q.GSTAmount,
		"finalPrice":               q.FinalPrice,
	})
	return nil
}
