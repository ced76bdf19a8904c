package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"servex_backend/internal/models"
	"servex_backend/internal/repositories"
)

func TestReserveUnderConcurrencyNeverOversells(t *testing.T) {
	f := newFixture(t)
	f.setStock(t, "Steak", 7)
	steak := f.id(t, "Steak")

	const waiters = 25
	var wg sync.WaitGroup
	var ok, conflicts int64
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.stock.Reserve(context.Background(), []int64{steak}, StockRef{Reason: "race"})
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, ErrStockConflict):
				atomic.AddInt64(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 7 || conflicts != waiters-7 {
		t.Fatalf("expected 7 reservations and %d conflicts, got %d and %d", waiters-7, ok, conflicts)
	}
	if got := f.stockOf(t, "Steak"); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := []int64{f.id(t, "Burger"), f.id(t, "Fries"), f.id(t, "Burger")}

	if err := f.stock.Reserve(ctx, ids, StockRef{Reason: "test"}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if got := f.stockOf(t, "Burger"); got != models.DefaultStock-2 {
		t.Fatalf("expected burger %d, got %d", models.DefaultStock-2, got)
	}
	if err := f.stock.Release(ctx, ids, StockRef{Reason: "test"}); err != nil {
		t.Fatalf("Release: %v", err)
	}
	for _, name := range []string{"Burger", "Fries"} {
		if got := f.stockOf(t, name); got != models.DefaultStock {
			t.Fatalf("expected %s back at %d, got %d", name, models.DefaultStock, got)
		}
	}
}

func TestClampPolicyFloorsAtZero(t *testing.T) {
	f := newFixture(t, WithStockPolicy(StockPolicyClamp))
	f.setStock(t, "Soda", 1)
	soda := f.id(t, "Soda")

	if err := f.stock.Reserve(context.Background(), []int64{soda, soda, soda}, StockRef{}); err != nil {
		t.Fatalf("Reserve under clamp: %v", err)
	}
	if got := f.stockOf(t, "Soda"); got != 0 {
		t.Fatalf("expected soda floored at 0, got %d", got)
	}
	// Releasing credits back the full amount even though only one unit was taken.
	if err := f.stock.Release(context.Background(), []int64{soda, soda, soda}, StockRef{}); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := f.stockOf(t, "Soda"); got != 3 {
		t.Fatalf("expected soda 3 after release, got %d", got)
	}
}

func TestReleaseSkipsDeletedMenuItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cake := f.id(t, "Chocolate Cake")
	if err := f.menu.DeleteMenuItem(ctx, cake); err != nil {
		t.Fatalf("DeleteMenuItem: %v", err)
	}
	if err := f.stock.Release(ctx, []int64{cake, f.id(t, "Soda")}, StockRef{}); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := f.stockOf(t, "Soda"); got != models.DefaultStock+1 {
		t.Fatalf("expected soda %d, got %d", models.DefaultStock+1, got)
	}
}

func TestReserveUnknownItem(t *testing.T) {
	f := newFixture(t)
	err := f.stock.Reserve(context.Background(), []int64{f.id(t, "Fries"), 4242}, StockRef{})
	if !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("expected ErrMenuItemNotFound, got %v", err)
	}
	if got := f.stockOf(t, "Fries"); got != models.DefaultStock {
		t.Fatalf("expected fries compensated, got %d", got)
	}
}

// contendedMenu loses the first n adjust calls to a simulated concurrent writer.
type contendedMenu struct {
	*repositories.MemoryStore
	failures int
	calls    int
}

func (c *contendedMenu) AdjustStock(ctx context.Context, id int64, delta int, floor bool) (int, error) {
	c.calls++
	if c.calls <= c.failures {
		return 0, repositories.ErrConflict
	}
	return c.MemoryStore.AdjustStock(ctx, id, delta, floor)
}

func TestAdjustRetriesLostRaces(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		wantErr  error
		wantLeft int
	}{
		{name: "recovers within budget", failures: 2, wantLeft: models.DefaultStock - 1},
		{name: "gives up after budget", failures: 3, wantErr: ErrStockConflict, wantLeft: models.DefaultStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			menu := &contendedMenu{MemoryStore: f.store, failures: tt.failures}
			stock := NewStockService(menu, f.store, WithRetryAttempts(3))

			err := stock.Reserve(context.Background(), []int64{f.id(t, "Burger")}, StockRef{})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := f.stockOf(t, "Burger"); got != tt.wantLeft {
				t.Fatalf("expected stock %d, got %d", tt.wantLeft, got)
			}
		})
	}
}

func TestStockMovementsAreRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	burger := f.id(t, "Burger")
	order := f.place(t, "Burger", "Burger")

	if _, err := f.stock.SetStock(ctx, burger, 30, "delivery"); err != nil {
		t.Fatalf("SetStock: %v", err)
	}
	if _, err := f.stock.AdjustStock(ctx, burger, -4, "spoiled"); err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if err := f.orders.RemoveOrder(ctx, order.ID); err != nil {
		t.Fatalf("RemoveOrder: %v", err)
	}

	movements, err := f.stock.Movements(ctx, burger, 0)
	if err != nil {
		t.Fatalf("Movements: %v", err)
	}
	want := []struct {
		kind  string
		delta int
	}{
		{models.MovementTypeRelease, 2},
		{models.MovementTypeAdjustment, -4},
		{models.MovementTypeAdjustment, 12},
		{models.MovementTypeReservation, -2},
	}
	if len(movements) != len(want) {
		t.Fatalf("expected %d movements, got %d: %+v", len(want), len(movements), movements)
	}
	for i, w := range want {
		if movements[i].MovementType != w.kind || movements[i].QuantityChanged != w.delta {
			t.Fatalf("movement %d: expected %s %d, got %s %d", i, w.kind, w.delta, movements[i].MovementType, movements[i].QuantityChanged)
		}
	}
	if movements[0].OrderID == nil || *movements[0].OrderID != order.ID {
		t.Fatalf("release movement should reference order %d", order.ID)
	}
	if got := f.stockOf(t, "Burger"); got != 28 {
		t.Fatalf("expected burger 28, got %d", got)
	}

	limited, err := f.stock.Movements(ctx, burger, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected one movement with limit, got %d (%v)", len(limited), err)
	}
}

func TestManualStockChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fries := f.id(t, "Fries")

	if _, err := f.stock.SetStock(ctx, fries, -1, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for negative stock, got %v", err)
	}
	if _, err := f.stock.AdjustStock(ctx, fries, 0, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero delta, got %v", err)
	}
	if _, err := f.stock.AdjustStock(ctx, fries, -(models.DefaultStock + 1), ""); !errors.Is(err, ErrStockConflict) {
		t.Fatalf("expected ErrStockConflict for overdraw, got %v", err)
	}
	if _, err := f.stock.SetStock(ctx, 999, 3, ""); !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("expected ErrMenuItemNotFound, got %v", err)
	}

	item, err := f.stock.SetStock(ctx, fries, 2, "")
	if err != nil {
		t.Fatalf("SetStock: %v", err)
	}
	if !item.IsLowStock() {
		t.Fatalf("fries at 2 should be low stock")
	}
	low, err := f.stock.LowStock(ctx)
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}
	if len(low) != 1 || low[0].ID != fries {
		t.Fatalf("expected only fries low, got %+v", low)
	}
}
