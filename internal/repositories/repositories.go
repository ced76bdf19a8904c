package repositories

import "database/sql"

// Repositories bundles the stores a running server needs.
type Repositories struct {
	Menu      MenuRepository
	Orders    OrderRepository
	Sessions  SessionRepository
	Movements InventoryMovementRepository
}

// NewPostgresRepositories wires every repository to the same connection pool.
func NewPostgresRepositories(db *sql.DB) Repositories {
	return Repositories{
		Menu:      NewMenuRepository(db),
		Orders:    NewOrderRepository(db),
		Sessions:  NewSessionRepository(db),
		Movements: NewInventoryMovementRepository(db),
	}
}

// NewMemoryRepositories backs every repository with one shared MemoryStore.
func NewMemoryRepositories() Repositories {
	store := NewMemoryStore()
	return Repositories{
		Menu:      store,
		Orders:    store,
		Sessions:  store,
		Movements: store,
	}
}

var (
	_ MenuRepository              = (*MemoryStore)(nil)
	_ OrderRepository             = (*MemoryStore)(nil)
	_ SessionRepository           = (*MemoryStore)(nil)
	_ InventoryMovementRepository = (*MemoryStore)(nil)
)
