package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"servex_backend/internal/models"
)

// OrderRepository defines the interface for order-related database operations.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) (int64, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	// ListOrders applies the status, table and period filters. Station filtering is a view
	// concern and is left to the caller.
	ListOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, error)
	// UpdateOrder loads the order under a row lock, lets fn mutate it and persists the
	// result in the same transaction. If fn returns an error nothing is written.
	UpdateOrder(ctx context.Context, id int64, fn func(*models.Order) error) (*models.Order, error)
	// DeleteOrder removes the order and returns it as it was at deletion time.
	DeleteOrder(ctx context.Context, id int64) (*models.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository.
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *models.Order) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: starting order transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.Version = 1

	courses, err := json.Marshal(order.CourseStatus)
	if err != nil {
		return 0, fmt.Errorf("%w: encoding course status: %v", ErrDatabaseError, err)
	}

	query := `INSERT INTO orders
	            (table_number, notes, service_period, cover_count, order_type, status,
	             course_status, has_allergy, version, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING id`
	err = tx.QueryRowContext(ctx, query,
		order.TableNumber, order.Notes, order.ServicePeriod, order.CoverCount, order.OrderType, order.Status,
		string(courses), order.HasAllergy, order.Version, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: creating order: %v", ErrDatabaseError, err)
	}

	if err := insertOrderItems(ctx, tx, order.ID, order.Items); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing order: %v", ErrDatabaseError, err)
	}
	return order.ID, nil
}

func (r *orderRepository) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	orders, err := queryOrders(ctx, r.db, "o.id = $1", []interface{}{id}, false)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNotFound
	}
	return &orders[0], nil
}

func (r *orderRepository) ListOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, error) {
	var conditions []string
	var args []interface{}
	argCounter := 1

	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", argCounter))
		args = append(args, *filters.Status)
		argCounter++
	}
	if filters.TableNumber != nil && *filters.TableNumber != "" {
		conditions = append(conditions, fmt.Sprintf("o.table_number = $%d", argCounter))
		args = append(args, *filters.TableNumber)
		argCounter++
	}
	if filters.ServicePeriod != nil && *filters.ServicePeriod != "" {
		conditions = append(conditions, fmt.Sprintf("o.service_period = $%d", argCounter))
		args = append(args, *filters.ServicePeriod)
	}
	return queryOrders(ctx, r.db, strings.Join(conditions, " AND "), args, false)
}

func (r *orderRepository) UpdateOrder(ctx context.Context, id int64, fn func(*models.Order) error) (*models.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: starting order transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	orders, err := queryOrders(ctx, tx, "o.id = $1", []interface{}{id}, true)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNotFound
	}
	order := &orders[0]

	if err := fn(order); err != nil {
		return nil, err
	}
	order.ID = id
	order.Version++
	order.UpdatedAt = time.Now()

	courses, err := json.Marshal(order.CourseStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding course status: %v", ErrDatabaseError, err)
	}
	query := `UPDATE orders SET
	            table_number = $1, notes = $2, service_period = $3, cover_count = $4, order_type = $5,
	            status = $6, course_status = $7, has_allergy = $8, version = $9, updated_at = $10
	          WHERE id = $11`
	_, err = tx.ExecContext(ctx, query,
		order.TableNumber, order.Notes, order.ServicePeriod, order.CoverCount, order.OrderType,
		order.Status, string(courses), order.HasAllergy, order.Version, order.UpdatedAt, id,
	)
	if err != nil {
		return nil, wrapWriteError(err, "updating order ID %d", id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return nil, wrapWriteError(err, "clearing items of order ID %d", id)
	}
	if err := insertOrderItems(ctx, tx, id, order.Items); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapWriteError(err, "committing order ID %d", id)
	}
	return order, nil
}

func (r *orderRepository) DeleteOrder(ctx context.Context, id int64) (*models.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: starting order transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	orders, err := queryOrders(ctx, tx, "o.id = $1", []interface{}{id}, true)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return nil, wrapWriteError(err, "deleting order ID %d", id)
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapWriteError(err, "committing delete of order ID %d", id)
	}
	return &orders[0], nil
}

func wrapWriteError(err error, format string, args ...interface{}) error {
	if isRetryable(err) {
		return fmt.Errorf("%w: %s: %v", ErrConflict, fmt.Sprintf(format, args...), err)
	}
	return fmt.Errorf("%w: %s: %v", ErrDatabaseError, fmt.Sprintf(format, args...), err)
}

func insertOrderItems(ctx context.Context, ex SQLExecutor, orderID int64, items []models.OrderItem) error {
	query := `INSERT INTO order_items
	            (instance_id, order_id, position, menu_item_id, name, category, price, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for i, item := range items {
		_, err := ex.ExecContext(ctx, query,
			item.InstanceID, orderID, i, item.MenuItemID, item.Name, item.Category, item.Price, item.Status,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: order item %s", ErrDuplicateKey, item.InstanceID)
			}
			return wrapWriteError(err, "inserting item %s of order ID %d", item.InstanceID, orderID)
		}
	}
	return nil
}

// queryOrders loads orders with their items in one round trip. With lock set the order
// rows are held FOR UPDATE until the surrounding transaction ends.
func queryOrders(ctx context.Context, ex SQLExecutor, where string, args []interface{}, lock bool) ([]models.Order, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
        SELECT
            o.id, o.table_number, o.notes, o.service_period, o.cover_count, o.order_type,
            o.status, o.course_status, o.has_allergy, o.version, o.created_at, o.updated_at,
            i.instance_id, i.menu_item_id, i.name, i.category, i.price, i.status
        FROM orders o
        LEFT JOIN order_items i ON i.order_id = o.id
    `)
	if where != "" {
		queryBuilder.WriteString(" WHERE " + where)
	}
	queryBuilder.WriteString(" ORDER BY o.created_at, o.id, i.position")
	if lock {
		queryBuilder.WriteString(" FOR UPDATE OF o")
	}

	rows, err := ex.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, wrapWriteError(err, "querying orders")
	}
	defer rows.Close()

	orders := []models.Order{}
	index := map[int64]int{}
	for rows.Next() {
		var o models.Order
		var courses []byte
		var instanceID, name, category, status sql.NullString
		var menuItemID sql.NullInt64
		var price sql.NullFloat64

		err := rows.Scan(
			&o.ID, &o.TableNumber, &o.Notes, &o.ServicePeriod, &o.CoverCount, &o.OrderType,
			&o.Status, &courses, &o.HasAllergy, &o.Version, &o.CreatedAt, &o.UpdatedAt,
			&instanceID, &menuItemID, &name, &category, &price, &status,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning order: %v", ErrDatabaseError, err)
		}

		pos, seen := index[o.ID]
		if !seen {
			o.CourseStatus = models.NewCourseStatus()
			if len(courses) > 0 {
				if err := json.Unmarshal(courses, &o.CourseStatus); err != nil {
					return nil, fmt.Errorf("%w: decoding course status of order ID %d: %v", ErrDatabaseError, o.ID, err)
				}
			}
			o.Items = []models.OrderItem{}
			orders = append(orders, o)
			pos = len(orders) - 1
			index[o.ID] = pos
		}
		if instanceID.Valid {
			orders[pos].Items = append(orders[pos].Items, models.OrderItem{
				InstanceID: instanceID.String,
				MenuItemID: menuItemID.Int64,
				Name:       name.String,
				Category:   models.Category(category.String),
				Price:      price.Float64,
				Status:     models.Status(status.String),
			})
		}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating order rows: %v", ErrDatabaseError, err)
	}
	return orders, nil
}
