package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestEmitFansOutToAllNotifiers(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	bus := &Bus{Notifiers: []Notifier{first, second}}

	aggregate := uuid.New()
	ev, err := bus.Emit(context.Background(), TopicQuotationRecalculated, aggregate, map[string]any{"finalPrice": 1008.9})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if ev.Topic != TopicQuotationRecalculated {
		t.Fatalf("unexpected topic %q", ev.Topic)
	}
	if len(first.events) != 1 || len(second.events) != 1 {
		t.Fatalf("expected both notifiers to receive the event")
	}
	var payload map[string]float64
	if err := json.Unmarshal(first.events[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["finalPrice"] != 1008.9 {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestEmitContinuesPastFailingNotifier(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("boom")}
	ok := &recordingNotifier{}
	bus := &Bus{Notifiers: []Notifier{failing, ok}}

	_, err := bus.Emit(context.Background(), TopicLineItemCreated, uuid.New(), nil)
	if err == nil {
		t.Fatal("expected joined notifier error")
	}
	if len(ok.events) != 1 {
		t.Fatal("expected delivery to remaining notifier")
	}
}

func TestEmitRejectsMissingTopicAndAggregate(t *testing.T) {
	bus := &Bus{}
	if _, err := bus.Emit(context.Background(), " ", uuid.New(), nil); err == nil {
		t.Fatal("expected error for blank topic")
	}
	if _, err := bus.Emit(context.Background(), TopicRoomCreated, uuid.Nil, nil); err == nil {
		t.Fatal("expected error for nil aggregate id")
	}
}
