package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNotFoundOnMissingRecords(t *testing.T) {
	s := New()
	if _, err := s.GetCustomer(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetCustomer: %v", err)
	}
	if _, err := s.GetQuotation(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetQuotation: %v", err)
	}
	if err := s.DeleteRoom(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if err := s.DeleteLineItem(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteLineItem: %v", err)
	}
	if err := s.DeleteCharge(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteCharge: %v", err)
	}
}

func TestRoomsSortedBySequencePosition(t *testing.T) {
	s := New()
	quotationID := uuid.New()
	for _, order := range []int{2, 0, 1} {
		s.PutRoom(Room{ID: uuid.New(), QuotationID: quotationID, Order: order})
	}
	rooms := s.RoomsByQuotation(quotationID)
	if len(rooms) != 3 {
		t.Fatalf("rooms = %d, want 3", len(rooms))
	}
	for i, r := range rooms {
		if r.Order != i {
			t.Fatalf("rooms[%d].Order = %d", i, r.Order)
		}
	}
}

func TestLineItemsSortedByCreation(t *testing.T) {
	s := New()
	roomID := uuid.New()
	base := time.Now().UTC()
	second := LineItem{ID: uuid.New(), RoomID: roomID, Name: "second", CreatedAt: base.Add(time.Second)}
	first := LineItem{ID: uuid.New(), RoomID: roomID, Name: "first", CreatedAt: base}
	s.PutLineItem(second)
	s.PutLineItem(first)

	items := s.LineItemsByRoom(roomID)
	if len(items) != 2 || items[0].Name != "first" || items[1].Name != "second" {
		t.Fatalf("unexpected item order: %+v", items)
	}
}

func TestChargeCloneIsolation(t *testing.T) {
	s := New()
	area := 10.0
	amount := 1300.0
	charge := InstallationCharge{
		ID:          uuid.New(),
		RoomID:      uuid.New(),
		QuotationID: uuid.New(),
		AreaSqft:    &area,
		Amount:      &amount,
		CreatedAt:   time.Now().UTC(),
	}
	s.PutCharge(charge)

	// Mutating the caller's pointers must not leak into the store.
	area = 999
	amount = 999
	got, err := s.GetCharge(charge.ID)
	if err != nil {
		t.Fatalf("get charge: %v", err)
	}
	if *got.AreaSqft != 10.0 || *got.Amount != 1300.0 {
		t.Fatalf("stored charge shares caller memory: area=%v amount=%v", *got.AreaSqft, *got.Amount)
	}

	// Mutating a fetched copy must not leak back either.
	*got.Amount = 1
	again, err := s.GetCharge(charge.ID)
	if err != nil {
		t.Fatalf("get charge: %v", err)
	}
	if *again.Amount != 1300.0 {
		t.Fatalf("fetched charge shares store memory: %v", *again.Amount)
	}
}

func TestChargesByQuotationUsesDenormalizedField(t *testing.T) {
	s := New()
	quotationID := uuid.New()
	other := uuid.New()
	s.PutCharge(InstallationCharge{ID: uuid.New(), RoomID: uuid.New(), QuotationID: quotationID})
	s.PutCharge(InstallationCharge{ID: uuid.New(), RoomID: uuid.New(), QuotationID: quotationID})
	s.PutCharge(InstallationCharge{ID: uuid.New(), RoomID: uuid.New(), QuotationID: other})

	if got := len(s.ChargesByQuotation(quotationID)); got != 2 {
		t.Fatalf("charges = %d, want 2", got)
	}
}

func TestLockQuotationReturnsSameMutex(t *testing.T) {
	s := New()
	id := uuid.New()
	if s.LockQuotation(id) != s.LockQuotation(id) {
		t.Fatalf("lock for the same quotation must be stable")
	}
	if s.LockQuotation(id) == s.LockQuotation(uuid.New()) {
		t.Fatalf("different quotations must not share a lock")
	}
	s.ReleaseQuotationLock(id)
}

func TestConcurrentWritersSerializeUnderQuotationLock(t *testing.T) {
	s := New()
	id := uuid.New()
	s.PutQuotation(Quotation{ID: id})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu := s.LockQuotation(id)
			mu.Lock()
			defer mu.Unlock()
			q, err := s.GetQuotation(id)
			if err != nil {
				t.Errorf("get quotation: %v", err)
				return
			}
			q.TotalSellingPrice++
			s.PutQuotation(q)
		}()
	}
	wg.Wait()

	q, err := s.GetQuotation(id)
	if err != nil {
		t.Fatalf("get quotation: %v", err)
	}
	if q.TotalSellingPrice != 32 {
		t.Fatalf("increments lost under lock: %v", q.TotalSellingPrice)
	}
}

func TestCountsReflectsStoredRecords(t *testing.T) {
	s := New()
	s.PutCustomer(Customer{ID: uuid.New()})
	s.PutQuotation(Quotation{ID: uuid.New()})
	s.PutQuotation(Quotation{ID: uuid.New()})

	counts := s.Counts()
	if counts["customers"] != 1 || counts["quotations"] != 2 {
		t.Fatalf("unexpected counts: %#v", counts)
	}
}
