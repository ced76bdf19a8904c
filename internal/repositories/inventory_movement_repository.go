package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"servex_backend/internal/models"
)

// InventoryMovementRepository records the audit trail of stock changes.
type InventoryMovementRepository interface {
	CreateMovement(ctx context.Context, movement *models.InventoryMovement) (int64, error)
	// ListMovements returns the newest movements of a menu item first. A limit <= 0 means no limit.
	ListMovements(ctx context.Context, menuItemID int64, limit int) ([]models.InventoryMovement, error)
}

type inventoryMovementRepository struct {
	db *sql.DB
}

// NewInventoryMovementRepository creates a new instance of InventoryMovementRepository.
func NewInventoryMovementRepository(db *sql.DB) InventoryMovementRepository {
	return &inventoryMovementRepository{db: db}
}

func (r *inventoryMovementRepository) CreateMovement(ctx context.Context, movement *models.InventoryMovement) (int64, error) {
	query := `INSERT INTO inventory_movements
	          (menu_item_id, order_id, movement_type, quantity_changed, reason, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now()
	}

	var orderID sql.NullInt64
	if movement.OrderID != nil {
		orderID = sql.NullInt64{Int64: *movement.OrderID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		movement.MenuItemID, orderID, movement.MovementType, movement.QuantityChanged,
		movement.Reason, movement.CreatedAt,
	).Scan(&movement.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: creating inventory movement: %v", ErrDatabaseError, err)
	}
	return movement.ID, nil
}

func (r *inventoryMovementRepository) ListMovements(ctx context.Context, menuItemID int64, limit int) ([]models.InventoryMovement, error) {
	query := `SELECT id, menu_item_id, order_id, movement_type, quantity_changed, reason, created_at
	          FROM inventory_movements
	          WHERE menu_item_id = $1
	          ORDER BY created_at DESC, id DESC`
	args := []interface{}{menuItemID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: getting inventory movements: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	movements := []models.InventoryMovement{}
	for rows.Next() {
		var movement models.InventoryMovement
		var orderID sql.NullInt64
		var reason sql.NullString
		if err := rows.Scan(
			&movement.ID, &movement.MenuItemID, &orderID, &movement.MovementType,
			&movement.QuantityChanged, &reason, &movement.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scanning inventory movement: %v", ErrDatabaseError, err)
		}
		if orderID.Valid {
			id := orderID.Int64
			movement.OrderID = &id
		}
		if reason.Valid {
			movement.Reason = models.NewNullString(reason.String)
		}
		movements = append(movements, movement)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating inventory movements: %v", ErrDatabaseError, err)
	}
	return movements, nil
}
