package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"servex_backend/internal/models"
)

// MemoryStore keeps menu, orders, sessions and movements in process memory. It satisfies
// every repository interface and is used for the "memory" backend and in tests.
// Callbacks passed to UpdateOrder and CloseSession run under the store lock and must not
// call back into the store.
type MemoryStore struct {
	mu sync.Mutex

	menu       map[int64]models.MenuItem
	orders     map[int64]*models.Order
	sessions   []models.ServiceSession
	movements  []models.InventoryMovement
	nextMenuID int64
	nextOrder  int64
	nextMoveID int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		menu:   map[int64]models.MenuItem{},
		orders: map[int64]*models.Order{},
	}
}

// Menu

func (s *MemoryStore) CreateMenuItem(ctx context.Context, item *models.MenuItem) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.menu {
		if strings.EqualFold(existing.Name, item.Name) {
			return 0, fmt.Errorf("%w: menu item %q already exists", ErrDuplicateKey, item.Name)
		}
	}
	s.nextMenuID++
	now := time.Now()
	item.ID = s.nextMenuID
	item.CreatedAt, item.UpdatedAt = now, now
	s.menu[item.ID] = *item
	return item.ID, nil
}

func (s *MemoryStore) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.menu[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (s *MemoryStore) ListMenuItems(ctx context.Context, filters models.MenuFilters) ([]models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []models.MenuItem{}
	for _, item := range s.menu {
		if filters.Category != nil && *filters.Category != "" && item.Category != *filters.Category {
			continue
		}
		if filters.ItemType != nil && *filters.ItemType != "" && item.ItemType != *filters.ItemType {
			continue
		}
		if filters.LowStockOnly && !item.IsLowStock() {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func (s *MemoryStore) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.menu[item.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range s.menu {
		if id != item.ID && strings.EqualFold(other.Name, item.Name) {
			return fmt.Errorf("%w: menu item %q already exists", ErrDuplicateKey, item.Name)
		}
	}
	item.Stock = existing.Stock
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = time.Now()
	s.menu[item.ID] = *item
	return nil
}

func (s *MemoryStore) DeleteMenuItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.menu[id]; !ok {
		return ErrNotFound
	}
	delete(s.menu, id)
	return nil
}

func (s *MemoryStore) AdjustStock(ctx context.Context, id int64, delta int, floor bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.menu[id]
	if !ok {
		return 0, ErrNotFound
	}
	next := item.Stock + delta
	if next < 0 {
		if !floor {
			return item.Stock, fmt.Errorf("%w: menu item ID %d has %d, need %d", ErrInsufficientStock, id, item.Stock, -delta)
		}
		next = 0
	}
	item.Stock = next
	item.UpdatedAt = time.Now()
	s.menu[id] = item
	return next, nil
}

func (s *MemoryStore) SetStock(ctx context.Context, id int64, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.menu[id]
	if !ok {
		return ErrNotFound
	}
	item.Stock = stock
	item.UpdatedAt = time.Now()
	s.menu[id] = item
	return nil
}

// Orders

func (s *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOrder++
	now := time.Now()
	order.ID = s.nextOrder
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.Version = 1
	s.orders[order.ID] = order.Clone()
	return order.ID, nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return order.Clone(), nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := []models.Order{}
	for _, order := range s.sortedOrders() {
		if filters.Status != nil && *filters.Status != "" && order.Status != *filters.Status {
			continue
		}
		if filters.TableNumber != nil && *filters.TableNumber != "" && order.TableNumber != *filters.TableNumber {
			continue
		}
		if filters.ServicePeriod != nil && *filters.ServicePeriod != "" && order.ServicePeriod != *filters.ServicePeriod {
			continue
		}
		orders = append(orders, *order.Clone())
	}
	return orders, nil
}

func (s *MemoryStore) UpdateOrder(ctx context.Context, id int64, fn func(*models.Order) error) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.ID = id
	working.Version = current.Version + 1
	working.UpdatedAt = time.Now()
	s.orders[id] = working
	return working.Clone(), nil
}

func (s *MemoryStore) DeleteOrder(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.orders, id)
	return order, nil
}

// sortedOrders returns live orders by creation time then id. Caller holds mu.
func (s *MemoryStore) sortedOrders() []*models.Order {
	orders := make([]*models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
	return orders
}

// Sessions

func (s *MemoryStore) GetActiveSession(ctx context.Context) (*models.ServiceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.activeIndex(); i >= 0 {
		session := s.sessions[i]
		return &session, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListArchivedSessions(ctx context.Context) ([]models.ServiceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := []models.ServiceSession{}
	for i := len(s.sessions) - 1; i >= 0; i-- {
		if !s.sessions[i].Active() {
			sessions = append(sessions, s.sessions[i])
		}
	}
	return sessions, nil
}

func (s *MemoryStore) StartSession(ctx context.Context, session *models.ServiceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeIndex() >= 0 {
		return fmt.Errorf("%w: a session is already active", ErrDuplicateKey)
	}
	s.sessions = append(s.sessions, *session)
	return nil
}

func (s *MemoryStore) CloseSession(ctx context.Context, id string, endedAt time.Time, compute MetricsFunc) (*models.ServiceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.activeIndex()
	if i < 0 || s.sessions[i].ID != id {
		return nil, ErrNotFound
	}

	live := s.sortedOrders()
	orders := make([]models.Order, 0, len(live))
	for _, o := range live {
		orders = append(orders, *o.Clone())
	}
	metrics := compute(orders)

	s.sessions[i].EndedAt = &endedAt
	s.sessions[i].Metrics = &metrics
	s.orders = map[int64]*models.Order{}

	session := s.sessions[i]
	return &session, nil
}

// activeIndex returns the position of the running session or -1. Caller holds mu.
func (s *MemoryStore) activeIndex() int {
	for i := range s.sessions {
		if s.sessions[i].Active() {
			return i
		}
	}
	return -1
}

// Movements

func (s *MemoryStore) CreateMovement(ctx context.Context, movement *models.InventoryMovement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMoveID++
	movement.ID = s.nextMoveID
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now()
	}
	s.movements = append(s.movements, *movement)
	return movement.ID, nil
}

func (s *MemoryStore) ListMovements(ctx context.Context, menuItemID int64, limit int) ([]models.InventoryMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	movements := []models.InventoryMovement{}
	for i := len(s.movements) - 1; i >= 0; i-- {
		if s.movements[i].MenuItemID != menuItemID {
			continue
		}
		movements = append(movements, s.movements[i])
		if limit > 0 && len(movements) == limit {
			break
		}
	}
	return movements, nil
}
