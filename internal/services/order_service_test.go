package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"servex_backend/internal/models"
	"servex_backend/internal/notify"
)

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.CreateOrder(context.Background(), NewOrder{
		TableNumber:   "T5",
		ServicePeriod: models.PeriodMidi,
		CoverCount:    2,
		OrderType:     models.OrderTypeDineIn,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateOrderRejectsMissingTable(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.CreateOrder(context.Background(), NewOrder{
		Items:         []models.OrderItem{{MenuItemID: 1, Name: "Burger", Category: models.CategoryMain}},
		ServicePeriod: models.PeriodMidi,
		CoverCount:    2,
		OrderType:     models.OrderTypeDineIn,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateOrderStartsEverythingPending(t *testing.T) {
	f := newFixture(t)
	order, err := f.orders.CreateOrder(context.Background(), NewOrder{
		Items: []models.OrderItem{
			{MenuItemID: 1, Name: "Burger", Category: models.CategoryMain, Price: 12.99, Status: models.StatusReady},
			{MenuItemID: 1, Name: "Burger", Category: models.CategoryMain, Price: 12.99},
		},
		TableNumber:   "T2",
		Notes:         "gluten intolerance",
		ServicePeriod: models.PeriodMidi,
		CoverCount:    3,
		OrderType:     models.OrderTypeDineIn,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Status != models.StatusPending {
		t.Fatalf("expected Pending order, got %s", order.Status)
	}
	if order.Items[0].InstanceID == order.Items[1].InstanceID || order.Items[0].InstanceID == "" {
		t.Fatalf("expected distinct instance ids, got %q and %q", order.Items[0].InstanceID, order.Items[1].InstanceID)
	}
	for _, item := range order.Items {
		if item.Status != models.StatusPending {
			t.Fatalf("expected Pending item, got %s", item.Status)
		}
	}
	for _, c := range models.Courses {
		if order.CourseStatus[c] != models.StatusPending {
			t.Fatalf("expected course %s Pending, got %s", c, order.CourseStatus[c])
		}
	}
	if !order.HasAllergy {
		t.Fatalf("expected allergy flag from notes")
	}
	if !order.CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected fixed creation time, got %v", order.CreatedAt)
	}
}

func TestPlaceOrderSnapshotsPriceAndReservesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orders.PlaceOrder(ctx, OrderRequest{
		TableNumber:   "12",
		Items:         []OrderLineRequest{{MenuItemID: f.id(t, "Steak"), Quantity: 2}, {MenuItemID: f.id(t, "Soda")}},
		ServicePeriod: models.PeriodSoir,
		CoverCount:    2,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(order.Items) != 3 {
		t.Fatalf("expected 3 item instances, got %d", len(order.Items))
	}
	if order.Items[0].Price != 28.99 {
		t.Fatalf("expected evening steak price 28.99, got %v", order.Items[0].Price)
	}
	if got := f.stockOf(t, "Steak"); got != models.DefaultStock-2 {
		t.Fatalf("expected steak stock %d, got %d", models.DefaultStock-2, got)
	}
	if got := f.stockOf(t, "Soda"); got != models.DefaultStock-1 {
		t.Fatalf("expected soda stock %d, got %d", models.DefaultStock-1, got)
	}

	// A later menu price change must not touch the placed order.
	price := 99.0
	if _, err := f.menu.UpdateMenuItem(ctx, f.id(t, "Steak"), MenuItemRequest{PriceSoir: &price}); err != nil {
		t.Fatalf("UpdateMenuItem: %v", err)
	}
	reloaded, err := f.orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if reloaded.Items[0].Price != 28.99 {
		t.Fatalf("snapshot price changed to %v", reloaded.Items[0].Price)
	}
}

func TestPlaceOrderDefaults(t *testing.T) {
	f := newFixture(t)
	order, err := f.orders.PlaceOrder(context.Background(), OrderRequest{
		Items:     []OrderLineRequest{{MenuItemID: f.id(t, "Fries")}},
		OrderType: models.OrderTypeTakeout,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.TableNumber != "N/A" || order.CoverCount != 2 || order.ServicePeriod != models.PeriodMidi {
		t.Fatalf("unexpected defaults: table=%q covers=%d period=%s", order.TableNumber, order.CoverCount, order.ServicePeriod)
	}

	_, err = f.orders.PlaceOrder(context.Background(), OrderRequest{
		Items: []OrderLineRequest{{MenuItemID: f.id(t, "Fries")}},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected dine-in without table to fail validation, got %v", err)
	}
}

func TestPlaceOrderUnknownMenuItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.PlaceOrder(context.Background(), OrderRequest{
		TableNumber: "T1",
		Items:       []OrderLineRequest{{MenuItemID: 9999}},
	})
	if !errors.Is(err, ErrValidation) || !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("expected validation + menu item not found, got %v", err)
	}
}

func TestPlaceOrderStrictShortageLeavesStockUntouched(t *testing.T) {
	f := newFixture(t)
	f.setStock(t, "Burger", 5)
	f.setStock(t, "Fries", 1)

	_, err := f.orders.PlaceOrder(context.Background(), OrderRequest{
		TableNumber: "T3",
		Items: []OrderLineRequest{
			{MenuItemID: f.id(t, "Burger"), Quantity: 2},
			{MenuItemID: f.id(t, "Fries"), Quantity: 2},
		},
	})
	if !errors.Is(err, ErrStockConflict) {
		t.Fatalf("expected ErrStockConflict, got %v", err)
	}
	if got := f.stockOf(t, "Burger"); got != 5 {
		t.Fatalf("expected burger reservation compensated back to 5, got %d", got)
	}
	if got := f.stockOf(t, "Fries"); got != 1 {
		t.Fatalf("expected fries untouched at 1, got %d", got)
	}
	orders, _ := f.orders.ListOrders(context.Background(), models.OrderFilters{})
	if len(orders) != 0 {
		t.Fatalf("expected no order written, got %d", len(orders))
	}
}

func TestStarterReadyMainCookingThenMainReady(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, "Caesar Salad", "Burger")
	starter := instanceOf(t, order, "Caesar Salad")
	main := instanceOf(t, order, "Burger")

	var err error
	if order, err = f.orders.SetItemStatus(ctx, order.ID, starter, models.StatusReady); err != nil {
		t.Fatalf("SetItemStatus starter: %v", err)
	}
	if order, err = f.orders.SetItemStatus(ctx, order.ID, main, models.StatusCooking); err != nil {
		t.Fatalf("SetItemStatus main cooking: %v", err)
	}
	if order.Status != models.StatusCooking {
		t.Fatalf("expected Cooking, got %s", order.Status)
	}
	if order, err = f.orders.SetItemStatus(ctx, order.ID, main, models.StatusReady); err != nil {
		t.Fatalf("SetItemStatus main ready: %v", err)
	}
	if order.Status != models.StatusReady {
		t.Fatalf("expected Ready, got %s", order.Status)
	}
	assertServedInvariant(t, order)
}

func TestItemReadyMarksCourseReadyWhenCourseComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, "Burger", "Fries", "Chocolate Cake")

	order, err := f.orders.SetItemStatus(ctx, order.ID, instanceOf(t, order, "Burger"), models.StatusReady)
	if err != nil {
		t.Fatalf("SetItemStatus: %v", err)
	}
	if order.CourseStatus[models.CourseMain] != models.StatusPending {
		t.Fatalf("main course marked %s while fries pending", order.CourseStatus[models.CourseMain])
	}

	order, err = f.orders.SetItemStatus(ctx, order.ID, instanceOf(t, order, "Fries"), models.StatusReady)
	if err != nil {
		t.Fatalf("SetItemStatus: %v", err)
	}
	if order.CourseStatus[models.CourseMain] != models.StatusReady {
		t.Fatalf("expected main course Ready, got %s", order.CourseStatus[models.CourseMain])
	}
	if order.CourseStatus[models.CourseDessert] != models.StatusPending {
		t.Fatalf("dessert course should stay Pending, got %s", order.CourseStatus[models.CourseDessert])
	}

	// The course flag is one-way: moving an item back does not unset it.
	order, err = f.orders.SetItemStatus(ctx, order.ID, instanceOf(t, order, "Fries"), models.StatusCooking)
	if err != nil {
		t.Fatalf("SetItemStatus: %v", err)
	}
	if order.CourseStatus[models.CourseMain] != models.StatusReady {
		t.Fatalf("course Ready flag was unset to %s", order.CourseStatus[models.CourseMain])
	}
}

func TestSetCourseStatusReadyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, "Steak", "Fries", "Onion Soup")

	once, err := f.orders.SetCourseStatus(ctx, order.ID, models.CourseMain, models.StatusReady)
	if err != nil {
		t.Fatalf("SetCourseStatus: %v", err)
	}
	twice, err := f.orders.SetCourseStatus(ctx, order.ID, models.CourseMain, models.StatusReady)
	if err != nil {
		t.Fatalf("SetCourseStatus again: %v", err)
	}

	if once.Status != models.StatusCooking || twice.Status != once.Status {
		t.Fatalf("expected Cooking both times, got %s then %s", once.Status, twice.Status)
	}
	for i := range once.Items {
		if once.Items[i].Status != twice.Items[i].Status {
			t.Fatalf("item %s differs: %s vs %s", once.Items[i].Name, once.Items[i].Status, twice.Items[i].Status)
		}
	}
	if got := twice.Items[0].Status; got != models.StatusReady {
		t.Fatalf("steak should be Ready, got %s", got)
	}
	if got := twice.Items[2].Status; got != models.StatusPending {
		t.Fatalf("soup should stay Pending, got %s", got)
	}
}

func TestSetCourseStatusWithoutItemsRecordsFlag(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, "Burger")

	order, err := f.orders.SetCourseStatus(context.Background(), order.ID, models.CourseDessert, models.StatusReady)
	if err != nil {
		t.Fatalf("SetCourseStatus: %v", err)
	}
	if order.CourseStatus[models.CourseDessert] != models.StatusReady {
		t.Fatalf("expected dessert flag Ready, got %s", order.CourseStatus[models.CourseDessert])
	}
	if order.Items[0].Status != models.StatusPending || order.Status != models.StatusPending {
		t.Fatalf("burger and order should be untouched, got %s / %s", order.Items[0].Status, order.Status)
	}
}

func TestSetOrderStatusForcesEveryItem(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, "Burger", "Soda", "Creme Brulee")

	order, err := f.orders.SetOrderStatus(context.Background(), order.ID, models.StatusServed)
	if err != nil {
		t.Fatalf("SetOrderStatus: %v", err)
	}
	for _, item := range order.Items {
		if item.Status != models.StatusServed {
			t.Fatalf("item %s is %s", item.Name, item.Status)
		}
	}
	assertServedInvariant(t, order)
}

func TestServeReadyCourses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, "Onion Soup", "Burger")

	order, err := f.orders.SetCourseStatus(ctx, order.ID, models.CourseStarter, models.StatusReady)
	if err != nil {
		t.Fatalf("SetCourseStatus: %v", err)
	}
	order, err = f.orders.SetItemStatus(ctx, order.ID, instanceOf(t, order, "Burger"), models.StatusCooking)
	if err != nil {
		t.Fatalf("SetItemStatus: %v", err)
	}

	order, err = f.orders.ServeReadyCourses(ctx, order.ID)
	if err != nil {
		t.Fatalf("ServeReadyCourses: %v", err)
	}
	if order.Items[0].Status != models.StatusServed || order.Items[1].Status != models.StatusCooking {
		t.Fatalf("unexpected item states %s / %s", order.Items[0].Status, order.Items[1].Status)
	}
	if order.Status != models.StatusCooking {
		t.Fatalf("expected Cooking while main cooks, got %s", order.Status)
	}

	order, err = f.orders.SetItemStatus(ctx, order.ID, instanceOf(t, order, "Burger"), models.StatusReady)
	if err != nil {
		t.Fatalf("SetItemStatus: %v", err)
	}
	order, err = f.orders.ServeReadyCourses(ctx, order.ID)
	if err != nil {
		t.Fatalf("ServeReadyCourses: %v", err)
	}
	if order.Status != models.StatusServed {
		t.Fatalf("expected Served, got %s", order.Status)
	}
	assertServedInvariant(t, order)
}

func TestStatusUpdatesOnMissingOrderOrItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orders.SetItemStatus(ctx, 404, "x", models.StatusReady); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := f.orders.SetOrderStatus(ctx, 404, models.StatusReady); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	order := f.place(t, "Burger")
	if _, err := f.orders.SetItemStatus(ctx, order.ID, "missing", models.StatusReady); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if _, err := f.orders.SetItemStatus(ctx, order.ID, order.Items[0].InstanceID, "Burnt"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
	if _, err := f.orders.SetCourseStatus(ctx, order.ID, "soup", models.StatusReady); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown course, got %v", err)
	}
}

func TestEditOrderReleasesThenReserves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, "Burger", "Burger", "Soda")
	oldInstance := order.Items[0].InstanceID

	edited, err := f.orders.EditOrder(ctx, order.ID, OrderRequest{
		TableNumber: "T9",
		Items:       []OrderLineRequest{{MenuItemID: f.id(t, "Burger")}, {MenuItemID: f.id(t, "Milkshake"), Quantity: 2}},
		Notes:       "no nuts",
		CoverCount:  4,
	})
	if err != nil {
		t.Fatalf("EditOrder: %v", err)
	}
	if got := f.stockOf(t, "Burger"); got != models.DefaultStock-1 {
		t.Fatalf("expected burger stock %d, got %d", models.DefaultStock-1, got)
	}
	if got := f.stockOf(t, "Soda"); got != models.DefaultStock {
		t.Fatalf("expected soda fully released, got %d", got)
	}
	if got := f.stockOf(t, "Milkshake"); got != models.DefaultStock-2 {
		t.Fatalf("expected milkshake stock %d, got %d", models.DefaultStock-2, got)
	}
	if edited.TableNumber != "T9" || edited.CoverCount != 4 || !edited.HasAllergy {
		t.Fatalf("edit fields not applied: %+v", edited)
	}
	for _, item := range edited.Items {
		if item.InstanceID == oldInstance || item.Status != models.StatusPending {
			t.Fatalf("expected fresh pending instances, got %+v", item)
		}
	}
	if edited.Version <= order.Version {
		t.Fatalf("expected version to advance past %d, got %d", order.Version, edited.Version)
	}
}

func TestEditOrderOnlyWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, "Burger")
	if _, err := f.orders.SetItemStatus(ctx, order.ID, order.Items[0].InstanceID, models.StatusCooking); err != nil {
		t.Fatalf("SetItemStatus: %v", err)
	}

	_, err := f.orders.EditOrder(ctx, order.ID, OrderRequest{
		TableNumber: "T1",
		Items:       []OrderLineRequest{{MenuItemID: f.id(t, "Steak")}},
	})
	if !errors.Is(err, ErrOrderNotEditable) {
		t.Fatalf("expected ErrOrderNotEditable, got %v", err)
	}
	if got := f.stockOf(t, "Steak"); got != models.DefaultStock {
		t.Fatalf("steak stock moved on rejected edit: %d", got)
	}
}

func TestEditOrderShortageRestoresOriginalReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, "Burger")
	f.setStock(t, "Steak", 0)

	_, err := f.orders.EditOrder(ctx, order.ID, OrderRequest{
		TableNumber: "T1",
		Items:       []OrderLineRequest{{MenuItemID: f.id(t, "Steak")}},
	})
	if !errors.Is(err, ErrStockConflict) {
		t.Fatalf("expected ErrStockConflict, got %v", err)
	}
	if got := f.stockOf(t, "Burger"); got != models.DefaultStock-1 {
		t.Fatalf("expected burger still reserved at %d, got %d", models.DefaultStock-1, got)
	}
	current, _ := f.orders.GetOrder(ctx, order.ID)
	if current.Items[0].Name != "Burger" {
		t.Fatalf("order items changed on failed edit: %+v", current.Items)
	}
}

func TestRemoveOrderReleasesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.place(t, "Steak", "Steak")

	if err := f.orders.RemoveOrder(ctx, order.ID); err != nil {
		t.Fatalf("RemoveOrder: %v", err)
	}
	if got := f.stockOf(t, "Steak"); got != models.DefaultStock {
		t.Fatalf("expected steak back to %d, got %d", models.DefaultStock, got)
	}
	if _, err := f.orders.GetOrder(ctx, order.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected order gone, got %v", err)
	}
	if err := f.orders.RemoveOrder(ctx, order.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected second remove to report not found, got %v", err)
	}
	if got := f.stockOf(t, "Steak"); got != models.DefaultStock {
		t.Fatalf("second remove released stock again: %d", got)
	}
}

func TestListOrdersFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.place(t, "Burger", "Soda")
	f.place(t, "Chocolate Cake")
	if _, err := f.orders.SetOrderStatus(ctx, first.ID, models.StatusCooking); err != nil {
		t.Fatalf("SetOrderStatus: %v", err)
	}

	cooking := models.StatusCooking
	got, err := f.orders.ListOrders(ctx, models.OrderFilters{Status: &cooking})
	if err != nil || len(got) != 1 || got[0].ID != first.ID {
		t.Fatalf("status filter: got %v, %v", got, err)
	}

	bar := models.StationBar
	got, err = f.orders.ListOrders(ctx, models.OrderFilters{Station: &bar})
	if err != nil || len(got) != 1 || len(got[0].Items) != 1 || got[0].Items[0].Name != "Soda" {
		t.Fatalf("station filter: got %+v, %v", got, err)
	}

	unknown := models.Station("grill")
	if _, err := f.orders.ListOrders(ctx, models.OrderFilters{Station: &unknown}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown station, got %v", err)
	}
}

func TestOrderChangesArePublished(t *testing.T) {
	f := newFixture(t)
	sub := f.hub.Subscribe()
	defer sub.Close()

	order := f.place(t, "Burger")
	if _, err := f.orders.SetOrderStatus(context.Background(), order.ID, models.StatusCooking); err != nil {
		t.Fatalf("SetOrderStatus: %v", err)
	}

	want := []string{notify.StockChanged, notify.OrderCreated, notify.OrderUpdated}
	for _, eventType := range want {
		select {
		case ev := <-sub.Events:
			if ev.Type != eventType {
				t.Fatalf("expected %s, got %s", eventType, ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing %s event", eventType)
		}
	}
}

func TestConcurrentItemServesAllLand(t *testing.T) {
	f := newFixture(t)
	order := f.place(t, "Burger", "Fries", "Caesar Salad", "Soda", "Milkshake",
		"Steak", "Onion Soup", "Cheese Platter", "Chocolate Cake", "Creme Brulee")
	n := len(order.Items)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, item := range order.Items {
		wg.Add(1)
		go func(instanceID string) {
			defer wg.Done()
			if _, err := f.orders.SetItemStatus(context.Background(), order.ID, instanceID, models.StatusServed); err != nil {
				errs <- err
			}
		}(item.InstanceID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("SetItemStatus: %v", err)
	}

	got, err := f.orders.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	for _, item := range got.Items {
		if item.Status != models.StatusServed {
			t.Fatalf("item %s lost its update: %s", item.Name, item.Status)
		}
	}
	if got.Status != models.StatusServed {
		t.Fatalf("expected order served, got %s", got.Status)
	}
	if got.Version != int64(1+n) {
		t.Fatalf("expected version %d, got %d", 1+n, got.Version)
	}
}
