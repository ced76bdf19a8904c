package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"servex_backend/internal/models"
	"servex_backend/internal/notify"
	"servex_backend/internal/repositories"
	"servex_backend/pkg/utils"
)

const (
	defaultTableNumber = "N/A"
	defaultCoverCount  = 2
)

// OrderLineRequest asks for Quantity units of one menu item. Quantity 0 means one.
type OrderLineRequest struct {
	MenuItemID int64 `json:"menu_item_id" binding:"required"`
	Quantity   int   `json:"quantity"`
}

// OrderRequest is the waiter's ticket, used both to place and to edit an order.
type OrderRequest struct {
	TableNumber   string               `json:"table_number"`
	Items         []OrderLineRequest   `json:"items"`
	Notes         string               `json:"notes"`
	ServicePeriod models.ServicePeriod `json:"service_period"`
	CoverCount    int                  `json:"cover_count"`
	OrderType     models.OrderType     `json:"order_type"`
}

// NewOrder is the lifecycle engine's input: item snapshots are already resolved.
type NewOrder struct {
	Items         []models.OrderItem
	TableNumber   string
	Notes         string
	ServicePeriod models.ServicePeriod
	CoverCount    int
	OrderType     models.OrderType
}

// OrderService is the order lifecycle engine plus the waiter-facing operations that keep
// stock in step with it.
type OrderService interface {
	// Lifecycle engine.
	CreateOrder(ctx context.Context, in NewOrder) (*models.Order, error)
	SetItemStatus(ctx context.Context, orderID int64, instanceID string, status models.Status) (*models.Order, error)
	SetOrderStatus(ctx context.Context, orderID int64, status models.Status) (*models.Order, error)
	SetCourseStatus(ctx context.Context, orderID int64, course models.Course, status models.Status) (*models.Order, error)
	ServeReadyCourses(ctx context.Context, orderID int64) (*models.Order, error)
	// DeleteOrder removes the order without touching stock.
	DeleteOrder(ctx context.Context, orderID int64) (*models.Order, error)

	// Waiter actions.
	PlaceOrder(ctx context.Context, req OrderRequest) (*models.Order, error)
	EditOrder(ctx context.Context, orderID int64, req OrderRequest) (*models.Order, error)
	RemoveOrder(ctx context.Context, orderID int64) error

	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, error)
}

type orderService struct {
	orderRepo repositories.OrderRepository
	menuRepo  repositories.MenuRepository
	stock     StockService
	notifier  notify.Notifier
	now       func() time.Time
}

// OrderOption customizes NewOrderService.
type OrderOption func(*orderService)

// WithOrderNotifier sets where order events go.
func WithOrderNotifier(n notify.Notifier) OrderOption {
	return func(s *orderService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithOrderClock overrides time.Now for creation timestamps.
func WithOrderClock(now func() time.Time) OrderOption {
	return func(s *orderService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewOrderService creates a new instance of OrderService.
func NewOrderService(
	or repositories.OrderRepository,
	mr repositories.MenuRepository,
	stock StockService,
	opts ...OrderOption,
) OrderService {
	s := &orderService{
		orderRepo: or,
		menuRepo:  mr,
		stock:     stock,
		notifier:  notify.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- Lifecycle engine ---

func (s *orderService) CreateOrder(ctx context.Context, in NewOrder) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, validationErrorf("an order needs at least one item")
	}
	if utils.IsEmpty(in.TableNumber) {
		return nil, validationErrorf("table number is required")
	}
	if !in.ServicePeriod.Valid() {
		return nil, validationErrorf("unknown service period %q", in.ServicePeriod)
	}
	if !in.OrderType.Valid() {
		return nil, validationErrorf("unknown order type %q", in.OrderType)
	}
	if in.CoverCount <= 0 {
		return nil, validationErrorf("cover count must be positive")
	}

	items := make([]models.OrderItem, len(in.Items))
	for i, item := range in.Items {
		item.InstanceID = uuid.NewString()
		item.Status = models.StatusPending
		items[i] = item
	}

	order := &models.Order{
		TableNumber:   strings.TrimSpace(in.TableNumber),
		Items:         items,
		Notes:         in.Notes,
		ServicePeriod: in.ServicePeriod,
		CoverCount:    in.CoverCount,
		OrderType:     in.OrderType,
		CourseStatus:  models.NewCourseStatus(),
		Status:        models.StatusPending,
		HasAllergy:    DetectAllergy(in.Notes),
		CreatedAt:     s.now(),
	}
	if _, err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	utils.LogInfo("Order created", map[string]interface{}{
		"order_id": order.ID,
		"table":    order.TableNumber,
		"items":    len(order.Items),
	})
	s.publishOrder(ctx, notify.OrderCreated, order)
	return order, nil
}

func (s *orderService) SetItemStatus(ctx context.Context, orderID int64, instanceID string, status models.Status) (*models.Order, error) {
	if !status.Valid() {
		return nil, validationErrorf("unknown status %q", status)
	}
	return s.mutate(ctx, orderID, func(o *models.Order) error {
		idx := -1
		for i := range o.Items {
			if o.Items[i].InstanceID == instanceID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s in order %d", ErrItemNotFound, instanceID, orderID)
		}
		o.Items[idx].Status = status

		if status == models.StatusReady {
			if course, ok := models.CourseForCategory(o.Items[idx].Category); ok && courseFullyReady(o.Items, course) {
				o.CourseStatus[course] = models.StatusReady
			}
		}
		o.Status = DeriveOrderStatus(o.Items, o.Status)
		return nil
	})
}

func (s *orderService) SetOrderStatus(ctx context.Context, orderID int64, status models.Status) (*models.Order, error) {
	if !status.Valid() {
		return nil, validationErrorf("unknown status %q", status)
	}
	return s.mutate(ctx, orderID, func(o *models.Order) error {
		for i := range o.Items {
			o.Items[i].Status = status
		}
		o.Status = status
		return nil
	})
}

func (s *orderService) SetCourseStatus(ctx context.Context, orderID int64, course models.Course, status models.Status) (*models.Order, error) {
	if !course.Valid() {
		return nil, validationErrorf("unknown course %q", course)
	}
	if !status.Valid() {
		return nil, validationErrorf("unknown status %q", status)
	}
	return s.mutate(ctx, orderID, func(o *models.Order) error {
		if o.CourseStatus == nil {
			o.CourseStatus = models.NewCourseStatus()
		}
		o.CourseStatus[course] = status
		if status == models.StatusReady {
			for i := range o.Items {
				if course.Includes(o.Items[i].Category) {
					o.Items[i].Status = models.StatusReady
				}
			}
		}
		o.Status = DeriveOrderStatus(o.Items, o.Status)
		return nil
	})
}

func (s *orderService) ServeReadyCourses(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.mutate(ctx, orderID, func(o *models.Order) error {
		for i := range o.Items {
			if o.Items[i].Status == models.StatusReady {
				o.Items[i].Status = models.StatusServed
			}
		}
		o.Status = DeriveServeStatus(o.Items, o.Status)
		return nil
	})
}

func (s *orderService) DeleteOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.DeleteOrder(ctx, orderID)
	if err != nil {
		return nil, translate(err, ErrOrderNotFound)
	}
	utils.LogInfo("Order deleted", map[string]interface{}{"order_id": orderID})
	publish(ctx, s.notifier, notify.NewEvent(notify.OrderDeleted, utils.Int64ToStr(orderID), map[string]int64{"id": orderID}))
	return order, nil
}

// mutate runs fn as one atomic read-modify-write of the order and publishes the result.
func (s *orderService) mutate(ctx context.Context, orderID int64, fn func(*models.Order) error) (*models.Order, error) {
	order, err := s.orderRepo.UpdateOrder(ctx, orderID, fn)
	if err != nil {
		return nil, translate(err, ErrOrderNotFound)
	}
	s.publishOrder(ctx, notify.OrderUpdated, order)
	return order, nil
}

func (s *orderService) publishOrder(ctx context.Context, eventType string, order *models.Order) {
	publish(ctx, s.notifier, notify.NewEvent(eventType, utils.Int64ToStr(order.ID), order))
}

// --- Waiter actions ---

func (s *orderService) PlaceOrder(ctx context.Context, req OrderRequest) (*models.Order, error) {
	in, ids, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	ref := StockRef{Reason: "order placed for table " + in.TableNumber}
	if err := s.stock.Reserve(ctx, ids, ref); err != nil {
		return nil, err
	}

	order, err := s.CreateOrder(ctx, in)
	if err != nil {
		if relErr := s.stock.Release(ctx, ids, StockRef{Reason: "order placement failed"}); relErr != nil {
			utils.LogError(relErr, "Failed to release stock after order placement failure")
		}
		return nil, err
	}
	return order, nil
}

func (s *orderService) EditOrder(ctx context.Context, orderID int64, req OrderRequest) (*models.Order, error) {
	current, err := s.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, translate(err, ErrOrderNotFound)
	}
	if current.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotEditable, orderID, current.Status)
	}

	in, newIDs, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	oldIDs := menuItemIDs(current.Items)
	ref := StockRef{OrderID: &orderID, Reason: "order edited"}

	if err := s.stock.Release(ctx, oldIDs, ref); err != nil {
		return nil, fmt.Errorf("releasing previous items: %w", err)
	}
	if err := s.stock.Reserve(ctx, newIDs, ref); err != nil {
		s.restoreReservation(ctx, oldIDs, orderID)
		return nil, err
	}

	items := make([]models.OrderItem, len(in.Items))
	for i, item := range in.Items {
		item.InstanceID = uuid.NewString()
		item.Status = models.StatusPending
		items[i] = item
	}

	updated, err := s.orderRepo.UpdateOrder(ctx, orderID, func(o *models.Order) error {
		if o.Version != current.Version {
			return fmt.Errorf("%w: expected version %d, found %d", ErrOrderModified, current.Version, o.Version)
		}
		if o.Status != models.StatusPending {
			return fmt.Errorf("%w: order %d is %s", ErrOrderNotEditable, orderID, o.Status)
		}
		o.TableNumber = in.TableNumber
		o.Items = items
		o.Notes = in.Notes
		o.ServicePeriod = in.ServicePeriod
		o.CoverCount = in.CoverCount
		o.OrderType = in.OrderType
		o.CourseStatus = models.NewCourseStatus()
		o.Status = models.StatusPending
		o.HasAllergy = DetectAllergy(in.Notes)
		return nil
	})
	if err != nil {
		if relErr := s.stock.Release(ctx, newIDs, StockRef{OrderID: &orderID, Reason: "order edit failed"}); relErr != nil {
			utils.LogError(relErr, "Failed to release stock after order edit failure")
		}
		s.restoreReservation(ctx, oldIDs, orderID)
		return nil, translate(err, ErrOrderNotFound)
	}

	utils.LogInfo("Order edited", map[string]interface{}{"order_id": orderID, "items": len(items)})
	s.publishOrder(ctx, notify.OrderUpdated, updated)
	return updated, nil
}

// restoreReservation takes back the stock of an order whose edit was abandoned. Under the
// strict policy this can fail if another waiter took the units meanwhile.
func (s *orderService) restoreReservation(ctx context.Context, ids []int64, orderID int64) {
	ref := StockRef{OrderID: &orderID, Reason: "order edit rolled back"}
	if err := s.stock.Reserve(ctx, ids, ref); err != nil {
		utils.LogError(err, "Failed to restore reservation of unedited order", map[string]interface{}{"order_id": orderID})
	}
}

func (s *orderService) RemoveOrder(ctx context.Context, orderID int64) error {
	order, err := s.DeleteOrder(ctx, orderID)
	if err != nil {
		return err
	}
	ref := StockRef{OrderID: &orderID, Reason: "order removed"}
	if err := s.stock.Release(ctx, menuItemIDs(order.Items), ref); err != nil {
		return fmt.Errorf("order %d removed but stock release failed: %w", orderID, err)
	}
	return nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, translate(err, ErrOrderNotFound)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, error) {
	if filters.Status != nil && *filters.Status != "" && !filters.Status.Valid() {
		return nil, validationErrorf("unknown status %q", *filters.Status)
	}
	if filters.ServicePeriod != nil && *filters.ServicePeriod != "" && !filters.ServicePeriod.Valid() {
		return nil, validationErrorf("unknown service period %q", *filters.ServicePeriod)
	}
	if filters.Station != nil && *filters.Station != "" && !filters.Station.Valid() {
		return nil, validationErrorf("unknown station %q", *filters.Station)
	}

	orders, err := s.orderRepo.ListOrders(ctx, filters)
	if err != nil {
		return nil, err
	}
	if filters.Station != nil && *filters.Station != "" {
		orders = FilterForStation(orders, *filters.Station)
	}
	return orders, nil
}

// resolve normalizes a waiter request and snapshots menu items for the service period.
// It returns one menu item id per ordered unit.
func (s *orderService) resolve(ctx context.Context, req OrderRequest) (NewOrder, []int64, error) {
	in := NewOrder{
		TableNumber:   strings.TrimSpace(req.TableNumber),
		Notes:         strings.TrimSpace(req.Notes),
		ServicePeriod: req.ServicePeriod,
		CoverCount:    req.CoverCount,
		OrderType:     req.OrderType,
	}
	if in.ServicePeriod == "" {
		in.ServicePeriod = models.PeriodMidi
	}
	if in.CoverCount == 0 {
		in.CoverCount = defaultCoverCount
	}
	if in.OrderType == "" {
		in.OrderType = models.OrderTypeDineIn
	}
	// Dine-in tickets must name a table; takeout and delivery have none.
	if in.TableNumber == "" && in.OrderType != models.OrderTypeDineIn {
		in.TableNumber = defaultTableNumber
	}

	if len(req.Items) == 0 {
		return NewOrder{}, nil, validationErrorf("an order needs at least one item")
	}
	if in.TableNumber == "" {
		return NewOrder{}, nil, validationErrorf("table number is required for dine-in orders")
	}
	if !in.ServicePeriod.Valid() {
		return NewOrder{}, nil, validationErrorf("unknown service period %q", in.ServicePeriod)
	}
	if !in.OrderType.Valid() {
		return NewOrder{}, nil, validationErrorf("unknown order type %q", in.OrderType)
	}
	if in.CoverCount < 0 {
		return NewOrder{}, nil, validationErrorf("cover count must be positive")
	}

	menu := map[int64]*models.MenuItem{}
	var ids []int64
	for _, line := range req.Items {
		qty := line.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			return NewOrder{}, nil, validationErrorf("quantity for menu item %d must be positive", line.MenuItemID)
		}
		item, ok := menu[line.MenuItemID]
		if !ok {
			var err error
			item, err = s.menuRepo.GetMenuItem(ctx, line.MenuItemID)
			if errors.Is(err, repositories.ErrNotFound) {
				return NewOrder{}, nil, fmt.Errorf("%w: %w: id %d", ErrValidation, ErrMenuItemNotFound, line.MenuItemID)
			}
			if err != nil {
				return NewOrder{}, nil, err
			}
			if item.Category == models.CategoryIngredient || item.ItemType == models.ItemTypeIngredient {
				return NewOrder{}, nil, validationErrorf("%s is an ingredient and cannot be ordered", item.Name)
			}
			menu[line.MenuItemID] = item
		}
		for i := 0; i < qty; i++ {
			in.Items = append(in.Items, models.OrderItem{
				MenuItemID: item.ID,
				Name:       item.Name,
				Category:   item.Category,
				Price:      item.PriceFor(in.ServicePeriod),
			})
			ids = append(ids, item.ID)
		}
	}
	return in, ids, nil
}

func menuItemIDs(items []models.OrderItem) []int64 {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.MenuItemID
	}
	return ids
}
