package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"servex_backend/internal/models"
)

// MenuRepository defines the interface for menu item and stock database operations.
type MenuRepository interface {
	CreateMenuItem(ctx context.Context, item *models.MenuItem) (int64, error)
	GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
	ListMenuItems(ctx context.Context, filters models.MenuFilters) ([]models.MenuItem, error)
	UpdateMenuItem(ctx context.Context, item *models.MenuItem) error
	DeleteMenuItem(ctx context.Context, id int64) error

	// AdjustStock atomically adds delta to the item's stock and returns the new value.
	// With floor set the result is clamped at zero, otherwise a decrement that would go
	// negative fails with ErrInsufficientStock and leaves the row untouched.
	AdjustStock(ctx context.Context, id int64, delta int, floor bool) (int, error)
	SetStock(ctx context.Context, id int64, stock int) error
}

type menuRepository struct {
	db *sql.DB
}

// NewMenuRepository creates a new instance of MenuRepository.
func NewMenuRepository(db *sql.DB) MenuRepository {
	return &menuRepository{db: db}
}

const menuItemColumns = `id, name, category, price_midi, price_soir, stock, low_stock_threshold,
	item_type, is_a_la_carte, created_at, updated_at`

func scanMenuItem(s scanner) (*models.MenuItem, error) {
	item := &models.MenuItem{}
	err := s.Scan(
		&item.ID, &item.Name, &item.Category, &item.PriceMidi, &item.PriceSoir, &item.Stock,
		&item.LowStockThreshold, &item.ItemType, &item.IsALaCarte, &item.CreatedAt, &item.UpdatedAt,
	)
	return item, err
}

func (r *menuRepository) CreateMenuItem(ctx context.Context, item *models.MenuItem) (int64, error) {
	query := `INSERT INTO menu_items
	          (name, category, price_midi, price_soir, stock, low_stock_threshold, item_type, is_a_la_carte, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id`
	now := time.Now()
	item.CreatedAt, item.UpdatedAt = now, now

	err := r.db.QueryRowContext(ctx, query,
		item.Name, item.Category, item.PriceMidi, item.PriceSoir, item.Stock, item.LowStockThreshold,
		item.ItemType, item.IsALaCarte, item.CreatedAt, item.UpdatedAt,
	).Scan(&item.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: menu item %q already exists", ErrDuplicateKey, item.Name)
		}
		return 0, fmt.Errorf("%w: creating menu item: %v", ErrDatabaseError, err)
	}
	return item.ID, nil
}

func (r *menuRepository) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	query := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1`
	item, err := scanMenuItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting menu item by ID %d: %v", ErrDatabaseError, id, err)
	}
	return item, nil
}

func (r *menuRepository) ListMenuItems(ctx context.Context, filters models.MenuFilters) ([]models.MenuItem, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + menuItemColumns + ` FROM menu_items`)

	var conditions []string
	var args []interface{}
	argCount := 1

	if filters.Category != nil && *filters.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argCount))
		args = append(args, *filters.Category)
		argCount++
	}
	if filters.ItemType != nil && *filters.ItemType != "" {
		conditions = append(conditions, fmt.Sprintf("item_type = $%d", argCount))
		args = append(args, *filters.ItemType)
	}
	if filters.LowStockOnly {
		conditions = append(conditions, "stock < low_stock_threshold")
	}
	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY category, name")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying menu items: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	items := []models.MenuItem{}
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning menu item: %v", ErrDatabaseError, err)
		}
		items = append(items, *item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating menu items: %v", ErrDatabaseError, err)
	}
	return items, nil
}

// UpdateMenuItem writes catalog fields only; stock is owned by AdjustStock and SetStock.
// item.Stock is refreshed from the row.
func (r *menuRepository) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	query := `UPDATE menu_items SET
	            name = $1, category = $2, price_midi = $3, price_soir = $4,
	            low_stock_threshold = $5, item_type = $6, is_a_la_carte = $7, updated_at = $8
	          WHERE id = $9
	          RETURNING stock, created_at`
	item.UpdatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		item.Name, item.Category, item.PriceMidi, item.PriceSoir,
		item.LowStockThreshold, item.ItemType, item.IsALaCarte, item.UpdatedAt, item.ID,
	).Scan(&item.Stock, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: menu item %q already exists", ErrDuplicateKey, item.Name)
		}
		return fmt.Errorf("%w: updating menu item ID %d: %v", ErrDatabaseError, item.ID, err)
	}
	return nil
}

func (r *menuRepository) DeleteMenuItem(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: deleting menu item ID %d: %v", ErrDatabaseError, id, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *menuRepository) AdjustStock(ctx context.Context, id int64, delta int, floor bool) (int, error) {
	query := `UPDATE menu_items SET stock = stock + $1, updated_at = now()
	          WHERE id = $2 AND stock + $1 >= 0
	          RETURNING stock`
	if floor {
		query = `UPDATE menu_items SET stock = GREATEST(stock + $1, 0), updated_at = now()
		         WHERE id = $2
		         RETURNING stock`
	}

	var stock int
	err := r.db.QueryRowContext(ctx, query, delta, id).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if isRetryable(err) {
		return 0, fmt.Errorf("%w: adjusting stock of menu item ID %d: %v", ErrConflict, id, err)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: adjusting stock of menu item ID %d: %v", ErrDatabaseError, id, err)
	}

	// No row came back: either the item is gone or the guard rejected the decrement.
	var current int
	err = r.db.QueryRowContext(ctx, `SELECT stock FROM menu_items WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: reading stock of menu item ID %d: %v", ErrDatabaseError, id, err)
	}
	return current, fmt.Errorf("%w: menu item ID %d has %d, need %d", ErrInsufficientStock, id, current, -delta)
}

func (r *menuRepository) SetStock(ctx context.Context, id int64, stock int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE menu_items SET stock = $1, updated_at = now() WHERE id = $2`, stock, id)
	if err != nil {
		if isRetryable(err) {
			return fmt.Errorf("%w: setting stock of menu item ID %d: %v", ErrConflict, id, err)
		}
		return fmt.Errorf("%w: setting stock of menu item ID %d: %v", ErrDatabaseError, id, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
