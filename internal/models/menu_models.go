package models

import "time"

// Category groups menu items for course routing and kitchen stations.
type Category string

const (
	CategoryStarter    Category = "Starter"
	CategoryMain       Category = "Main"
	CategorySide       Category = "Side"
	CategoryCheese     Category = "Cheese"
	CategoryDessert    Category = "Dessert"
	CategoryDrink      Category = "Drink"
	CategoryIngredient Category = "Ingredient"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryStarter, CategoryMain, CategorySide, CategoryCheese, CategoryDessert, CategoryDrink, CategoryIngredient:
		return true
	}
	return false
}

// ItemType distinguishes sellable dishes and beverages from raw ingredients.
type ItemType string

const (
	ItemTypeDish       ItemType = "dish"
	ItemTypeIngredient ItemType = "ingredient"
	ItemTypeBeverage   ItemType = "beverage"
)

func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeDish, ItemTypeIngredient, ItemTypeBeverage:
		return true
	}
	return false
}

// ServicePeriod selects which of the two menu prices applies to an order.
type ServicePeriod string

const (
	PeriodMidi ServicePeriod = "Midi"
	PeriodSoir ServicePeriod = "Soir"
)

func (p ServicePeriod) Valid() bool {
	return p == PeriodMidi || p == PeriodSoir
}

const (
	// DefaultStock is given to menu items created without an explicit stock.
	DefaultStock = 20
	// DefaultLowStockThreshold flags items below five units.
	DefaultLowStockThreshold = 5
)

// MenuItem is a dish, beverage or ingredient with dual pricing and a stock counter.
type MenuItem struct {
	ID                int64     `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Category          Category  `json:"category" db:"category"`
	PriceMidi         float64   `json:"price_midi" db:"price_midi"`
	PriceSoir         float64   `json:"price_soir" db:"price_soir"`
	Stock             int       `json:"stock" db:"stock"`
	LowStockThreshold int       `json:"low_stock_threshold" db:"low_stock_threshold"`
	ItemType          ItemType  `json:"item_type" db:"item_type"`
	IsALaCarte        bool      `json:"is_a_la_carte" db:"is_a_la_carte"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// PriceFor returns the price that applies during the given service period.
func (m MenuItem) PriceFor(p ServicePeriod) float64 {
	if p == PeriodSoir {
		return m.PriceSoir
	}
	return m.PriceMidi
}

// IsLowStock reports whether the item has fallen under its threshold.
func (m MenuItem) IsLowStock() bool {
	return m.Stock < m.LowStockThreshold
}

// MenuFilters narrows a menu listing.
type MenuFilters struct {
	Category     *Category `form:"category"`
	ItemType     *ItemType `form:"item_type"`
	LowStockOnly bool      `form:"low_stock"`
}
