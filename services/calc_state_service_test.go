package services

import (
	"context"
	"testing"
	"time"
)

func TestCalcStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	service := NewCalcStateService(NewMemoryStateStore())

	inputs := DefaultDealInputs()
	inputs.Site.Address = "12 Example Road"
	inputs.Purchase.PurchasePrice = 185000
	inputs.Site.GDV = 260000

	if err := service.SaveState(ctx, "client-1", inputs); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	restored, found := service.LoadState(ctx, "client-1")
	if !found {
		t.Fatal("expected saved state to be restored")
	}
	if restored.Site.Address != "12 Example Road" {
		t.Errorf("expected address to survive round trip, got %q", restored.Site.Address)
	}
	if restored.Purchase.PurchasePrice != 185000 {
		t.Errorf("expected purchase price 185000, got %f", restored.Purchase.PurchasePrice)
	}
	// Untouched fields keep their defaults
	if restored.Refurb.ContingencyRate != 10 {
		t.Errorf("expected default contingency rate 10, got %f", restored.Refurb.ContingencyRate)
	}
}

func TestCalcStateMissingStateYieldsDefaults(t *testing.T) {
	ctx := context.Background()
	service := NewCalcStateService(NewMemoryStateStore())

	inputs, found := service.LoadState(ctx, "unknown-client")
	if found {
		t.Fatal("expected no saved state for an unknown client")
	}
	if inputs != DefaultDealInputs() {
		t.Error("expected defaults for an unknown client")
	}
}

func TestCalcStateStaleStateDiscarded(t *testing.T) {
	ctx := context.Background()
	service := NewCalcStateService(NewMemoryStateStore())

	now := time.Now()
	service.clock = func() time.Time { return now }

	inputs := DefaultDealInputs()
	inputs.Purchase.PurchasePrice = 150000
	if err := service.SaveState(ctx, "client-1", inputs); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	// Just inside the freshness window
	service.clock = func() time.Time { return now.Add(23 * time.Hour) }
	if _, found := service.LoadState(ctx, "client-1"); !found {
		t.Error("expected state inside the freshness window to be restored")
	}

	// Past the freshness window
	service.clock = func() time.Time { return now.Add(25 * time.Hour) }
	restored, found := service.LoadState(ctx, "client-1")
	if found {
		t.Error("expected stale state to be discarded")
	}
	if restored.Purchase.PurchasePrice != 0 {
		t.Errorf("expected default purchase price after staleness, got %f", restored.Purchase.PurchasePrice)
	}
}

func TestCalcStateCorruptStateYieldsDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()
	service := NewCalcStateService(store)

	if err := store.Set(ctx, stateKey("client-1"), "{not json", 0); err != nil {
		t.Fatalf("store write failed: %v", err)
	}

	inputs, found := service.LoadState(ctx, "client-1")
	if found {
		t.Fatal("expected corrupt state to be discarded")
	}
	if inputs != DefaultDealInputs() {
		t.Error("expected defaults after corrupt state")
	}
}

func TestCalcStateClientIsolation(t *testing.T) {
	ctx := context.Background()
	service := NewCalcStateService(NewMemoryStateStore())

	first := DefaultDealInputs()
	first.Purchase.PurchasePrice = 100000
	second := DefaultDealInputs()
	second.Purchase.PurchasePrice = 250000

	if err := service.SaveState(ctx, "client-a", first); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
	if err := service.SaveState(ctx, "client-b", second); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	restoredA, _ := service.LoadState(ctx, "client-a")
	restoredB, _ := service.LoadState(ctx, "client-b")

	if restoredA.Purchase.PurchasePrice != 100000 {
		t.Errorf("client-a state polluted: %f", restoredA.Purchase.PurchasePrice)
	}
	if restoredB.Purchase.PurchasePrice != 250000 {
		t.Errorf("client-b state polluted: %f", restoredB.Purchase.PurchasePrice)
	}
}

func TestCalcStateClear(t *testing.T) {
	ctx := context.Background()
	service := NewCalcStateService(NewMemoryStateStore())

	if err := service.SaveState(ctx, "client-1", DefaultDealInputs()); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}
	if err := service.ClearState(ctx, "client-1"); err != nil {
		t.Fatalf("ClearState failed: %v", err)
	}
	if _, found := service.LoadState(ctx, "client-1"); found {
		t.Error("expected no state after clear")
	}
}

func TestMemoryStateStoreTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	if err := store.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, found := store.Get(ctx, "k"); !found {
		t.Fatal("expected value before TTL expiry")
	}

	time.Sleep(20 * time.Millisecond)
	if _, found := store.Get(ctx, "k"); found {
		t.Error("expected value to expire after TTL")
	}
}
