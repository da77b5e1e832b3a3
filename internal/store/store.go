package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist in the store.
var ErrNotFound = errors.New("store: record not found")

// Store is an in-memory record store. All records live in process memory and
// are lost on shutdown; durability is out of scope. The store is passed to
// services by injection so the engine stays independently testable. Values
// are copied on the way in and out, callers never share record memory.
type Store struct {
	mu         sync.RWMutex
	customers  map[uuid.UUID]Customer
	quotations map[uuid.UUID]Quotation
	rooms      map[uuid.UUID]Room
	items      map[uuid.UUID]LineItem
	charges    map[uuid.UUID]InstallationCharge
	orders     map[uuid.UUID]SalesOrder
	invoices   map[uuid.UUID]Invoice
	payments   map[uuid.UUID]Payment

	lockMu sync.Mutex
	qLocks map[uuid.UUID]*sync.Mutex
}

// New constructs an empty store.
func New() *Store {
	return &Store{
		customers:  make(map[uuid.UUID]Customer),
		quotations: make(map[uuid.UUID]Quotation),
		rooms:      make(map[uuid.UUID]Room),
		items:      make(map[uuid.UUID]LineItem),
		charges:    make(map[uuid.UUID]InstallationCharge),
		orders:     make(map[uuid.UUID]SalesOrder),
		invoices:   make(map[uuid.UUID]Invoice),
		payments:   make(map[uuid.UUID]Payment),
		qLocks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

// LockQuotation returns the mutex serializing mutations under the given
// quotation. Every mutating operation holds it for the duration of its body
// including the full cascading recompute, so readers never observe a
// partially updated aggregate.
func (s *Store) LockQuotation(id uuid.UUID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	m, ok := s.qLocks[id]
	if !ok {
		m = &sync.Mutex{}
		s.qLocks[id] = m
	}
	return m
}

// ReleaseQuotationLock discards the keyed mutex for a deleted quotation.
func (s *Store) ReleaseQuotationLock(id uuid.UUID) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	delete(s.qLocks, id)
}

// PutCustomer inserts or replaces a customer record.
func (s *Store) PutCustomer(c Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

// GetCustomer fetches a customer by ID.
func (s *Store) GetCustomer(id uuid.UUID) (Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

// DeleteCustomer removes a customer by ID.
func (s *Store) DeleteCustomer(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

// ListCustomers returns all customers ordered by creation time.
func (s *Store) ListCustomers() []Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PutQuotation inserts or replaces a quotation record.
func (s *Store) PutQuotation(q Quotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotations[q.ID] = q
}

// GetQuotation fetches a quotation by ID.
func (s *Store) GetQuotation(id uuid.UUID) (Quotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotations[id]
	if !ok {
		return Quotation{}, ErrNotFound
	}
	return q, nil
}

// DeleteQuotation removes a quotation by ID.
func (s *Store) DeleteQuotation(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quotations[id]; !ok {
		return ErrNotFound
	}
	delete(s.quotations, id)
	return nil
}

// ListQuotations returns all quotations ordered by creation time.
func (s *Store) ListQuotations() []Quotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Quotation, 0, len(s.quotations))
	for _, q := range s.quotations {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PutRoom inserts or replaces a room record.
func (s *Store) PutRoom(r Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.ID] = r
}

// GetRoom fetches a room by ID.
func (s *Store) GetRoom(id uuid.UUID) (Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return r, nil
}

// DeleteRoom removes a room by ID. Owned line items and charges are the
// engine's responsibility to delete first.
func (s *Store) DeleteRoom(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return ErrNotFound
	}
	delete(s.rooms, id)
	return nil
}

// RoomsByQuotation returns the rooms of a quotation sorted by sequence position.
func (s *Store) RoomsByQuotation(quotationID uuid.UUID) []Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Room, 0, 4)
	for _, r := range s.rooms {
		if r.QuotationID == quotationID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// PutLineItem inserts or replaces a line item record.
func (s *Store) PutLineItem(it LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = it
}

// GetLineItem fetches a line item by ID.
func (s *Store) GetLineItem(id uuid.UUID) (LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return LineItem{}, ErrNotFound
	}
	return it, nil
}

// DeleteLineItem removes a line item by ID.
func (s *Store) DeleteLineItem(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// LineItemsByRoom returns the live line items owned by a room ordered by
// creation time.
func (s *Store) LineItemsByRoom(roomID uuid.UUID) []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LineItem, 0, 8)
	for _, it := range s.items {
		if it.RoomID == roomID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PutCharge inserts or replaces an installation charge record.
func (s *Store) PutCharge(c InstallationCharge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charges[c.ID] = c.clone()
}

// GetCharge fetches an installation charge by ID.
func (s *Store) GetCharge(id uuid.UUID) (InstallationCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.charges[id]
	if !ok {
		return InstallationCharge{}, ErrNotFound
	}
	return c.clone(), nil
}

// DeleteCharge removes an installation charge by ID.
func (s *Store) DeleteCharge(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.charges[id]; !ok {
		return ErrNotFound
	}
	delete(s.charges, id)
	return nil
}

// ChargesByRoom returns the installation charges owned by a room ordered by
// creation time.
func (s *Store) ChargesByRoom(roomID uuid.UUID) []InstallationCharge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InstallationCharge, 0, 4)
	for _, c := range s.charges {
		if c.RoomID == roomID {
			out = append(out, c.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ChargesByQuotation returns every installation charge under a quotation via
// the denormalized lookup field.
func (s *Store) ChargesByQuotation(quotationID uuid.UUID) []InstallationCharge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InstallationCharge, 0, 8)
	for _, c := range s.charges {
		if c.QuotationID == quotationID {
			out = append(out, c.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PutSalesOrder inserts or replaces a sales order record.
func (s *Store) PutSalesOrder(o SalesOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

// GetSalesOrder fetches a sales order by ID.
func (s *Store) GetSalesOrder(id uuid.UUID) (SalesOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return SalesOrder{}, ErrNotFound
	}
	return o, nil
}

// ListSalesOrders returns all sales orders ordered by creation time.
func (s *Store) ListSalesOrders() []SalesOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SalesOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// PutInvoice inserts or replaces an invoice record.
func (s *Store) PutInvoice(inv Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = inv
}

// GetInvoice fetches an invoice by ID.
func (s *Store) GetInvoice(id uuid.UUID) (Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

// ListInvoices returns all invoices ordered by issuance time.
func (s *Store) ListInvoices() []Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out
}

// PutPayment inserts or replaces a payment record.
func (s *Store) PutPayment(p Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
}

// PaymentsByInvoice returns the payments recorded against an invoice ordered
// by receipt time.
func (s *Store) PaymentsByInvoice(invoiceID uuid.UUID) []Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Payment, 0, 4)
	for _, p := range s.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out
}

// Counts reports record counts per type, used by readiness reporting.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"customers":            len(s.customers),
		"quotations":           len(s.quotations),
		"rooms":                len(s.rooms),
		"line_items":           len(s.items),
		"installation_charges": len(s.charges),
		"sales_orders":         len(s.orders),
		"invoices":             len(s.invoices),
		"payments":             len(s.payments),
	}
}
