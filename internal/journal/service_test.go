package journal

import (
	"context"
	"encoding/json"
	"testing"

	"position-match/internal/config"
	"position-match/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	st, err := store.NewSQLite(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("opening in-memory store failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	svc, err := NewService(st, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestRecordAndListEvents(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.RecordPrices(ctx, PricesPayload{
		Strategy: "Bitcoin",
		Symbols:  []string{"SPY", "BITO"},
		Rows:     100,
	})
	svc.RecordConversion(ctx, "Bitcoin", "out/converted_positions_Bitcoin.csv")

	events, err := svc.ListEvents(ctx, EventPricesGenerated, 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("unexpected event count: got %d want 1", len(events))
	}
	if events[0].Type != EventPricesGenerated {
		t.Errorf("unexpected event type: %s", events[0].Type)
	}

	raw, ok := events[0].Payload.(json.RawMessage)
	if !ok {
		t.Fatalf("expected raw payload, got %T", events[0].Payload)
	}
	var payload PricesPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decoding payload failed: %v", err)
	}
	if payload.Strategy != "Bitcoin" || payload.Rows != 100 {
		t.Errorf("unexpected payload: %+v", payload)
	}

	all, err := svc.ListEvents(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unexpected total event count: got %d want 2", len(all))
	}
	// Newest first.
	if all[0].Type != EventConversionDone {
		t.Errorf("unexpected first event: %s", all[0].Type)
	}
}

func TestNewService_NilStore(t *testing.T) {
	if _, err := NewService(nil, nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}
