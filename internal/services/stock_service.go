package services

import (
	"context"
	"errors"
	"fmt"

	"servex_backend/internal/models"
	"servex_backend/internal/notify"
	"servex_backend/internal/repositories"
	"servex_backend/pkg/utils"
)

// StockPolicy decides what a reservation does when stock runs short.
type StockPolicy string

const (
	// StockPolicyStrict fails the reservation and undoes decrements already applied by it.
	StockPolicyStrict StockPolicy = "strict"
	// StockPolicyClamp floors stock at zero and lets the order through.
	StockPolicyClamp StockPolicy = "clamp"
)

// StockRef identifies why stock moved, for the movement log.
type StockRef struct {
	OrderID *int64
	Reason  string
}

// StockService reserves and releases menu stock. Every write goes through the store's atomic
// adjust primitive; lost races are retried a bounded number of times.
type StockService interface {
	// Reserve decrements each distinct menu item by the number of times it appears in ids.
	Reserve(ctx context.Context, ids []int64, ref StockRef) error
	// Release increments each distinct menu item by the number of times it appears in ids.
	Release(ctx context.Context, ids []int64, ref StockRef) error
	SetStock(ctx context.Context, id int64, stock int, reason string) (*models.MenuItem, error)
	AdjustStock(ctx context.Context, id int64, delta int, reason string) (*models.MenuItem, error)
	LowStock(ctx context.Context) ([]models.MenuItem, error)
	Movements(ctx context.Context, id int64, limit int) ([]models.InventoryMovement, error)
}

type stockService struct {
	menuRepo     repositories.MenuRepository
	movementRepo repositories.InventoryMovementRepository
	notifier     notify.Notifier
	policy       StockPolicy
	attempts     int
}

// StockOption customizes NewStockService.
type StockOption func(*stockService)

// WithStockPolicy overrides the default strict policy.
func WithStockPolicy(policy StockPolicy) StockOption {
	return func(s *stockService) {
		if policy == StockPolicyStrict || policy == StockPolicyClamp {
			s.policy = policy
		}
	}
}

// WithRetryAttempts bounds how often a lost race is retried.
func WithRetryAttempts(n int) StockOption {
	return func(s *stockService) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithStockNotifier sets where stock.changed events go.
func WithStockNotifier(n notify.Notifier) StockOption {
	return func(s *stockService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// NewStockService creates a new instance of StockService.
func NewStockService(mr repositories.MenuRepository, imr repositories.InventoryMovementRepository, opts ...StockOption) StockService {
	s := &stockService{
		menuRepo:     mr,
		movementRepo: imr,
		notifier:     notify.Nop{},
		policy:       StockPolicyStrict,
		attempts:     3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type stockLine struct {
	id    int64
	count int
}

// groupByItem counts occurrences, keeping first-seen order.
func groupByItem(ids []int64) []stockLine {
	index := map[int64]int{}
	var lines []stockLine
	for _, id := range ids {
		if i, ok := index[id]; ok {
			lines[i].count++
			continue
		}
		index[id] = len(lines)
		lines = append(lines, stockLine{id: id, count: 1})
	}
	return lines
}

func (s *stockService) Reserve(ctx context.Context, ids []int64, ref StockRef) error {
	var applied []stockLine
	for _, line := range groupByItem(ids) {
		if err := s.adjust(ctx, line.id, -line.count, s.policy == StockPolicyClamp, models.MovementTypeReservation, ref); err != nil {
			s.compensate(ctx, applied, ref)
			return err
		}
		applied = append(applied, line)
	}
	return nil
}

func (s *stockService) Release(ctx context.Context, ids []int64, ref StockRef) error {
	var errs []error
	for _, line := range groupByItem(ids) {
		err := s.adjust(ctx, line.id, line.count, false, models.MovementTypeRelease, ref)
		if errors.Is(err, ErrMenuItemNotFound) {
			utils.LogWarn("Skipping release for deleted menu item", map[string]interface{}{
				"menu_item_id": line.id,
				"quantity":     line.count,
			})
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// compensate returns stock taken by a reservation that failed part way.
func (s *stockService) compensate(ctx context.Context, applied []stockLine, ref StockRef) {
	for _, line := range applied {
		undo := StockRef{OrderID: ref.OrderID, Reason: "rollback: " + ref.Reason}
		if err := s.adjust(ctx, line.id, line.count, false, models.MovementTypeRelease, undo); err != nil {
			utils.LogError(err, "Failed to compensate partial reservation", map[string]interface{}{
				"menu_item_id": line.id,
				"quantity":     line.count,
			})
		}
	}
}

// adjust applies delta with bounded retries and records the movement.
func (s *stockService) adjust(ctx context.Context, id int64, delta int, floor bool, movementType string, ref StockRef) error {
	var stock int
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		stock, err = s.menuRepo.AdjustStock(ctx, id, delta, floor)
		if !errors.Is(err, repositories.ErrConflict) {
			break
		}
		utils.LogWarn("Stock update lost a race, retrying", map[string]interface{}{
			"menu_item_id": id,
			"delta":        delta,
			"attempt":      attempt,
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%w: id %d", ErrMenuItemNotFound, id)
	case errors.Is(err, repositories.ErrInsufficientStock):
		utils.LogWarn("Reservation rejected for insufficient stock", map[string]interface{}{
			"menu_item_id": id,
			"requested":    -delta,
			"available":    stock,
		})
		return fmt.Errorf("%w: menu item %d has %d left, %d requested", ErrStockConflict, id, stock, -delta)
	case errors.Is(err, repositories.ErrConflict):
		return fmt.Errorf("%w: menu item %d still contended after %d attempts", ErrStockConflict, id, s.attempts)
	default:
		return fmt.Errorf("adjusting stock of menu item %d: %w", id, err)
	}

	s.recordMovement(ctx, id, delta, movementType, ref)
	s.publishStock(ctx, id, stock)
	return nil
}

func (s *stockService) recordMovement(ctx context.Context, id int64, delta int, movementType string, ref StockRef) {
	movement := &models.InventoryMovement{
		MenuItemID:      id,
		OrderID:         ref.OrderID,
		MovementType:    movementType,
		QuantityChanged: delta,
		Reason:          models.NewNullString(ref.Reason),
	}
	if _, err := s.movementRepo.CreateMovement(ctx, movement); err != nil {
		utils.LogError(err, "Failed to record inventory movement", map[string]interface{}{
			"menu_item_id": id,
			"delta":        delta,
		})
	}
}

func (s *stockService) publishStock(ctx context.Context, id int64, stock int) {
	payload := map[string]interface{}{"menu_item_id": id, "stock": stock}
	publish(ctx, s.notifier, notify.NewEvent(notify.StockChanged, utils.Int64ToStr(id), payload))
}

func (s *stockService) SetStock(ctx context.Context, id int64, stock int, reason string) (*models.MenuItem, error) {
	if stock < 0 {
		return nil, validationErrorf("stock cannot be negative")
	}
	before, err := s.menuRepo.GetMenuItem(ctx, id)
	if err != nil {
		return nil, translate(err, ErrMenuItemNotFound)
	}
	if err := s.menuRepo.SetStock(ctx, id, stock); err != nil {
		return nil, translate(err, ErrMenuItemNotFound)
	}
	if reason == "" {
		reason = "stock count"
	}
	s.recordMovement(ctx, id, stock-before.Stock, models.MovementTypeAdjustment, StockRef{Reason: reason})
	s.publishStock(ctx, id, stock)

	item, err := s.menuRepo.GetMenuItem(ctx, id)
	return item, translate(err, ErrMenuItemNotFound)
}

func (s *stockService) AdjustStock(ctx context.Context, id int64, delta int, reason string) (*models.MenuItem, error) {
	if delta == 0 {
		return nil, validationErrorf("delta must not be zero")
	}
	if reason == "" {
		reason = "manual adjustment"
	}
	if err := s.adjust(ctx, id, delta, false, models.MovementTypeAdjustment, StockRef{Reason: reason}); err != nil {
		return nil, err
	}
	item, err := s.menuRepo.GetMenuItem(ctx, id)
	return item, translate(err, ErrMenuItemNotFound)
}

func (s *stockService) LowStock(ctx context.Context) ([]models.MenuItem, error) {
	return s.menuRepo.ListMenuItems(ctx, models.MenuFilters{LowStockOnly: true})
}

func (s *stockService) Movements(ctx context.Context, id int64, limit int) ([]models.InventoryMovement, error) {
	if _, err := s.menuRepo.GetMenuItem(ctx, id); err != nil {
		return nil, translate(err, ErrMenuItemNotFound)
	}
	return s.movementRepo.ListMovements(ctx, id, limit)
}

// publish delivers an event and only logs failures; viewers re-sync over HTTP.
func publish(ctx context.Context, n notify.Notifier, event notify.Event) {
	if n == nil {
		return
	}
	if err := n.Publish(ctx, event); err != nil {
		utils.LogError(err, "Failed to publish change event", map[string]interface{}{
			"event_type": event.Type,
			"entity_id":  event.EntityID,
		})
	}
}
