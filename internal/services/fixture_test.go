package services

import (
	"context"
	"testing"
	"time"

	"servex_backend/internal/models"
	"servex_backend/internal/notify"
	"servex_backend/internal/repositories"
)

var fixedNow = time.Date(2025, 3, 14, 12, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type fixture struct {
	store    *repositories.MemoryStore
	hub      *notify.Hub
	stock    StockService
	orders   OrderService
	menu     MenuService
	sessions SessionService
	items    map[string]int64
}

func newFixture(t *testing.T, stockOpts ...StockOption) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	hub := notify.NewHub(notify.HubWithSubscriberCapacity(256))
	opts := append([]StockOption{WithStockNotifier(hub)}, stockOpts...)
	stock := NewStockService(store, store, opts...)
	f := &fixture{
		store:    store,
		hub:      hub,
		stock:    stock,
		orders:   NewOrderService(store, store, stock, WithOrderNotifier(hub), WithOrderClock(fixedClock)),
		menu:     NewMenuService(store, hub),
		sessions: NewSessionService(store, store, WithSessionNotifier(hub), WithSessionClock(fixedClock)),
		items:    map[string]int64{},
	}
	if _, err := f.menu.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("seed menu: %v", err)
	}
	menu, err := store.ListMenuItems(context.Background(), models.MenuFilters{})
	if err != nil {
		t.Fatalf("list menu: %v", err)
	}
	for _, item := range menu {
		f.items[item.Name] = item.ID
	}
	return f
}

func (f *fixture) id(t *testing.T, name string) int64 {
	t.Helper()
	id, ok := f.items[name]
	if !ok {
		t.Fatalf("menu item %q not seeded", name)
	}
	return id
}

func (f *fixture) stockOf(t *testing.T, name string) int {
	t.Helper()
	item, err := f.store.GetMenuItem(context.Background(), f.id(t, name))
	if err != nil {
		t.Fatalf("get %s: %v", name, err)
	}
	return item.Stock
}

func (f *fixture) setStock(t *testing.T, name string, n int) {
	t.Helper()
	if err := f.store.SetStock(context.Background(), f.id(t, name), n); err != nil {
		t.Fatalf("set stock of %s: %v", name, err)
	}
}

// place puts an order for one unit of each named dish at table T1.
func (f *fixture) place(t *testing.T, names ...string) *models.Order {
	t.Helper()
	req := OrderRequest{TableNumber: "T1"}
	for _, name := range names {
		req.Items = append(req.Items, OrderLineRequest{MenuItemID: f.id(t, name), Quantity: 1})
	}
	order, err := f.orders.PlaceOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("PlaceOrder(%v): %v", names, err)
	}
	return order
}

func instanceOf(t *testing.T, order *models.Order, name string) string {
	t.Helper()
	for _, item := range order.Items {
		if item.Name == name {
			return item.InstanceID
		}
	}
	t.Fatalf("order %d has no %s", order.ID, name)
	return ""
}

func assertServedInvariant(t *testing.T, order *models.Order) {
	t.Helper()
	for _, item := range order.Items {
		if item.Status != models.StatusServed {
			return
		}
	}
	if order.Status != models.StatusServed {
		t.Fatalf("every item served but order is %s", order.Status)
	}
}
