package events

// Topic constants for domain events emitted by the platform.
const (
	TopicQuotationCreated      = "quotation.created"
	TopicQuotationDeleted      = "quotation.deleted"
	TopicQuotationRecalculated = "quotation.recalculated"
	TopicRoomCreated           = "room.created"
	TopicRoomDeleted           = "room.deleted"
	TopicRoomsReordered        = "room.reordered"
	TopicLineItemCreated       = "lineitem.created"
	TopicLineItemUpdated       = "lineitem.updated"
	TopicLineItemDeleted       = "lineitem.deleted"
	TopicChargeCreated         = "installation.created"
	TopicChargeUpdated         = "installation.updated"
	TopicChargeDeleted         = "installation.deleted"
	TopicOrderCreated          = "order.created"
	TopicInvoiceIssued         = "invoice.issued"
	TopicPaymentRecorded       = "payment.recorded"
)

// DefaultTopics returns the canonical list of topics that support webhook
// notifications.
func DefaultTopics() []string {
	return []string{
		TopicQuotationCreated,
		TopicQuotationDeleted,
		TopicQuotationRecalculated,
		TopicRoomCreated,
		TopicRoomDeleted,
		TopicRoomsReordered,
		TopicLineItemCreated,
		TopicLineItemUpdated,
		TopicLineItemDeleted,
		TopicChargeCreated,
		TopicChargeUpdated,
		TopicChargeDeleted,
		TopicOrderCreated,
		TopicInvoiceIssued,
		TopicPaymentRecorded,
	}
}
