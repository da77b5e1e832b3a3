package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-interio/internal/pricing"
)

// QuotationStatus tracks the lifecycle of a quotation document.
type QuotationStatus string

const (
	QuotationDraft     QuotationStatus = "draft"
	QuotationSent      QuotationStatus = "sent"
	QuotationAccepted  QuotationStatus = "accepted"
	QuotationRejected  QuotationStatus = "rejected"
	QuotationConverted QuotationStatus = "converted"
)

// ItemKind distinguishes the two flavours of line item within a room.
type ItemKind string

const (
	ItemProduct   ItemKind = "product"
	ItemAccessory ItemKind = "accessory"
)

// OrderStatus tracks the lifecycle of a sales order derived from a quotation.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderFulfilled OrderStatus = "fulfilled"
	OrderCanceled  OrderStatus = "canceled"
)

// InvoiceStatus reflects how much of an invoice has been settled.
type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePartial InvoiceStatus = "partial"
	InvoicePaid    InvoiceStatus = "paid"
)

// Customer is a party a quotation is prepared for.
type Customer struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Quotation owns rooms and carries both the pricing policy inputs and the
// derived totals. Derived fields are written exclusively by the aggregation
// engine, never by callers.
type Quotation struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Reference  string
	Title      string
	Status     QuotationStatus

	// Policy inputs.
	GlobalDiscount       float64
	GSTPercentage        float64
	InstallationHandling pricing.Money

	// Derived outputs, cached by the quotation aggregator.
	TotalSellingPrice        pricing.Money
	TotalDiscountedPrice     pricing.Money
	TotalInstallationCharges pricing.Money
	GSTAmount                pricing.Money
	FinalPrice               pricing.Money

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Room groups line items and installation charges within a quotation. Order
// is the dense, zero-based sequence position unique within the quotation.
type Room struct {
	ID          uuid.UUID
	QuotationID uuid.UUID
	Name        string
	Order       int

	// Derived sums over live line items, written only by the room aggregator.
	SellingPrice    pricing.Money
	DiscountedPrice pricing.Money

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem is a product or accessory belonging to exactly one room.
// DiscountedPrice caches the discount resolver's output for the current
// (SellingPrice, Discount, DiscountType) triple and is recomputed on every
// write touching any of the three.
type LineItem struct {
	ID          uuid.UUID
	RoomID      uuid.UUID
	QuotationID uuid.UUID
	Kind        ItemKind
	Name        string
	Description string

	SellingPrice    pricing.Money
	Quantity        int
	Discount        float64
	DiscountType    pricing.DiscountKind
	DiscountedPrice pricing.Money

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InstallationCharge is a per-room fee computed from physical dimensions.
// QuotationID is a denormalized convenience lookup; the canonical ownership
// path is charge to room to quotation. AreaSqft and Amount are nil when the
// dimensions make the charge not computable.
type InstallationCharge struct {
	ID          uuid.UUID
	RoomID      uuid.UUID
	QuotationID uuid.UUID
	Description string

	WidthMm      float64
	HeightMm     float64
	PricePerSqft pricing.Money
	AreaSqft     *float64
	Amount       *pricing.Money

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SalesOrder is a frozen snapshot of an accepted quotation's final price.
type SalesOrder struct {
	ID          uuid.UUID
	QuotationID uuid.UUID
	CustomerID  uuid.UUID
	Reference   string
	Total       pricing.Money
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Invoice is issued against a sales order; AmountDue never changes after
// issuance, status is derived from recorded payments.
type Invoice struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	QuotationID uuid.UUID
	CustomerID  uuid.UUID
	Reference   string
	AmountDue   pricing.Money
	Status      InvoiceStatus
	IssuedAt    time.Time
	UpdatedAt   time.Time
}

// Payment records money received against an invoice.
type Payment struct {
	ID         uuid.UUID
	InvoiceID  uuid.UUID
	Amount     pricing.Money
	Method     string
	ReceivedAt time.Time
}

func (c InstallationCharge) clone() InstallationCharge {
	out := c
	if c.AreaSqft != nil {
		v := *c.AreaSqft
		out.AreaSqft = &v
	}
	if c.Amount != nil {
		v := *c.Amount
		out.Amount = &v
	}
	return out
}
