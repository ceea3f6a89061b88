package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"visitas/internal/amqp"
	"visitas/internal/remote/memory"
	"visitas/internal/visits"

	"visitas/internal/core"
)

type recordingSender struct {
	recipient string
	text      string
	calls     int
}

func (s *recordingSender) Send(_ context.Context, recipient, text string) error {
	s.recipient = recipient
	s.text = text
	s.calls++
	return nil
}

func seededStore(t *testing.T) *visits.Store {
	t.Helper()
	mem := memory.New()
	ctx := context.Background()
	rows := []core.RawRecord{
		{"id": "v1", "date": "2025-09-01", "time": "15:30", "location_name": "Vila Serena"},
		{"id": "v2", "date": "2025-09-08", "time": "16:00", "location_name": "Hospital São Francisco"},
	}
	for _, r := range rows {
		if err := mem.InsertVisit(ctx, r); err != nil {
			t.Fatalf("InsertVisit() error = %v", err)
		}
	}
	return visits.NewStore(mem)
}

func TestHandleSummaryRequest(t *testing.T) {
	store := seededStore(t)
	sender := &recordingSender{}
	w := NewSummaryWorker(store, sender, "5511999990000", time.UTC, time.Hour)

	msg := &amqp.SummaryRequestMessage{Year: 2025, Month: 9}
	if err := w.HandleSummaryRequest(context.Background(), msg); err != nil {
		t.Fatalf("HandleSummaryRequest() error = %v", err)
	}

	if sender.recipient != "5511999990000" {
		t.Errorf("recipient = %q", sender.recipient)
	}
	if !strings.Contains(sender.text, "09/2025") {
		t.Errorf("report missing month header:\n%s", sender.text)
	}
	if !strings.Contains(sender.text, "Total: 2 visitas registradas.") {
		t.Errorf("report missing total:\n%s", sender.text)
	}
	if !strings.Contains(sender.text, "Vila Serena") {
		t.Errorf("report missing location:\n%s", sender.text)
	}
}

func TestHandleSummaryRequestDefaultsToReferenceMonth(t *testing.T) {
	store := seededStore(t)
	sender := &recordingSender{}
	w := NewSummaryWorker(store, sender, "5511999990000", time.UTC, time.Hour)

	if err := w.HandleSummaryRequest(context.Background(), &amqp.SummaryRequestMessage{}); err != nil {
		t.Fatalf("HandleSummaryRequest() error = %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("calls = %d, want 1", sender.calls)
	}
	// All seeded visits are in September 2025, so the reference month falls
	// back to it once that month has passed.
	if !strings.Contains(sender.text, "visitas") {
		t.Errorf("report = %q", sender.text)
	}
}

func TestHandleVisitEventRefreshes(t *testing.T) {
	mem := memory.New()
	store := visits.NewStore(mem)
	w := NewSummaryWorker(store, &recordingSender{}, "x", time.UTC, time.Hour)

	ctx := context.Background()
	if err := mem.InsertVisit(ctx, core.RawRecord{"id": "v1", "date": "2025-09-01"}); err != nil {
		t.Fatalf("InsertVisit() error = %v", err)
	}
	msg := &amqp.VisitEventMessage{Kind: visits.EventCreated, VisitID: "v1"}
	if err := w.HandleVisitEvent(ctx, msg); err != nil {
		t.Fatalf("HandleVisitEvent() error = %v", err)
	}
	if len(store.Visits()) != 1 {
		t.Fatal("event did not refresh the store")
	}
}
