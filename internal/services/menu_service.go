package services

import (
	"context"
	"fmt"
	"strings"

	"servex_backend/internal/models"
	"servex_backend/internal/notify"
	"servex_backend/internal/repositories"
	"servex_backend/pkg/utils"
)

// MenuItemRequest creates or updates a menu item. On update, nil fields keep their value
// and Stock must be nil.
type MenuItemRequest struct {
	Name              *string          `json:"name"`
	Category          *models.Category `json:"category"`
	PriceMidi         *float64         `json:"price_midi"`
	PriceSoir         *float64         `json:"price_soir"`
	Stock             *int             `json:"stock"`
	LowStockThreshold *int             `json:"low_stock_threshold"`
	ItemType          *models.ItemType `json:"item_type"`
	IsALaCarte        *bool            `json:"is_a_la_carte"`
}

// MenuService manages the menu catalog. Stock is only set at creation; later moves belong
// to StockService.
type MenuService interface {
	CreateMenuItem(ctx context.Context, req MenuItemRequest) (*models.MenuItem, error)
	GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
	ListMenuItems(ctx context.Context, filters models.MenuFilters) ([]models.MenuItem, error)
	UpdateMenuItem(ctx context.Context, id int64, req MenuItemRequest) (*models.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id int64) error
	// SeedDefaults loads the house menu into an empty catalog and reports how many items it added.
	SeedDefaults(ctx context.Context) (int, error)
}

type menuService struct {
	menuRepo repositories.MenuRepository
	notifier notify.Notifier
}

// NewMenuService creates a new instance of MenuService.
func NewMenuService(mr repositories.MenuRepository, n notify.Notifier) MenuService {
	if n == nil {
		n = notify.Nop{}
	}
	return &menuService{menuRepo: mr, notifier: n}
}

func (s *menuService) CreateMenuItem(ctx context.Context, req MenuItemRequest) (*models.MenuItem, error) {
	item := &models.MenuItem{
		Stock:             models.DefaultStock,
		LowStockThreshold: models.DefaultLowStockThreshold,
		ItemType:          models.ItemTypeDish,
		IsALaCarte:        true,
	}
	if req.Name == nil || req.Category == nil || req.PriceMidi == nil {
		return nil, validationErrorf("name, category and price_midi are required")
	}
	applyMenuRequest(item, req)
	if req.PriceSoir == nil {
		item.PriceSoir = item.PriceMidi
	}
	if err := validateMenuItem(item); err != nil {
		return nil, err
	}

	if _, err := s.menuRepo.CreateMenuItem(ctx, item); err != nil {
		return nil, translate(err, ErrMenuItemNotFound)
	}
	utils.LogInfo("Menu item created", map[string]interface{}{"menu_item_id": item.ID, "name": item.Name})
	publish(ctx, s.notifier, notify.NewEvent(notify.MenuUpdated, utils.Int64ToStr(item.ID), item))
	return item, nil
}

func (s *menuService) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	item, err := s.menuRepo.GetMenuItem(ctx, id)
	if err != nil {
		return nil, translate(err, ErrMenuItemNotFound)
	}
	return item, nil
}

func (s *menuService) ListMenuItems(ctx context.Context, filters models.MenuFilters) ([]models.MenuItem, error) {
	if filters.Category != nil && *filters.Category != "" && !filters.Category.Valid() {
		return nil, validationErrorf("unknown category %q", *filters.Category)
	}
	if filters.ItemType != nil && *filters.ItemType != "" && !filters.ItemType.Valid() {
		return nil, validationErrorf("unknown item type %q", *filters.ItemType)
	}
	return s.menuRepo.ListMenuItems(ctx, filters)
}

func (s *menuService) UpdateMenuItem(ctx context.Context, id int64, req MenuItemRequest) (*models.MenuItem, error) {
	if req.Stock != nil {
		return nil, validationErrorf("stock cannot be changed here, use PATCH /menu-items/%d/stock", id)
	}
	item, err := s.menuRepo.GetMenuItem(ctx, id)
	if err != nil {
		return nil, translate(err, ErrMenuItemNotFound)
	}
	applyMenuRequest(item, req)
	if err := validateMenuItem(item); err != nil {
		return nil, err
	}
	if err := s.menuRepo.UpdateMenuItem(ctx, item); err != nil {
		return nil, translate(err, ErrMenuItemNotFound)
	}
	publish(ctx, s.notifier, notify.NewEvent(notify.MenuUpdated, utils.Int64ToStr(item.ID), item))
	return item, nil
}

func (s *menuService) DeleteMenuItem(ctx context.Context, id int64) error {
	if err := s.menuRepo.DeleteMenuItem(ctx, id); err != nil {
		return translate(err, ErrMenuItemNotFound)
	}
	utils.LogInfo("Menu item deleted", map[string]interface{}{"menu_item_id": id})
	publish(ctx, s.notifier, notify.NewEvent(notify.MenuDeleted, utils.Int64ToStr(id), map[string]int64{"id": id}))
	return nil
}

func (s *menuService) SeedDefaults(ctx context.Context) (int, error) {
	existing, err := s.menuRepo.ListMenuItems(ctx, models.MenuFilters{})
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i := range houseMenu {
		item := houseMenu[i]
		if _, err := s.menuRepo.CreateMenuItem(ctx, &item); err != nil {
			return i, fmt.Errorf("seeding %s: %w", item.Name, err)
		}
	}
	utils.LogInfo("Seeded default menu", map[string]interface{}{"items": len(houseMenu)})
	return len(houseMenu), nil
}

func applyMenuRequest(item *models.MenuItem, req MenuItemRequest) {
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.PriceMidi != nil {
		item.PriceMidi = *req.PriceMidi
	}
	if req.PriceSoir != nil {
		item.PriceSoir = *req.PriceSoir
	}
	if req.Stock != nil {
		item.Stock = *req.Stock
	}
	if req.LowStockThreshold != nil {
		item.LowStockThreshold = *req.LowStockThreshold
	}
	if req.ItemType != nil {
		item.ItemType = *req.ItemType
	}
	if req.IsALaCarte != nil {
		item.IsALaCarte = *req.IsALaCarte
	}
}

func validateMenuItem(item *models.MenuItem) error {
	switch {
	case utils.IsEmpty(item.Name):
		return validationErrorf("name is required")
	case !item.Category.Valid():
		return validationErrorf("unknown category %q", item.Category)
	case !item.ItemType.Valid():
		return validationErrorf("unknown item type %q", item.ItemType)
	case item.PriceMidi < 0 || item.PriceSoir < 0:
		return validationErrorf("prices cannot be negative")
	case item.Stock < 0:
		return validationErrorf("stock cannot be negative")
	case item.LowStockThreshold < 0:
		return validationErrorf("low stock threshold cannot be negative")
	}
	return nil
}

func dish(name string, cat models.Category, midi, soir float64, itemType models.ItemType) models.MenuItem {
	return models.MenuItem{
		Name:              name,
		Category:          cat,
		PriceMidi:         midi,
		PriceSoir:         soir,
		Stock:             models.DefaultStock,
		LowStockThreshold: models.DefaultLowStockThreshold,
		ItemType:          itemType,
		IsALaCarte:        true,
	}
}

var houseMenu = []models.MenuItem{
	dish("Burger", models.CategoryMain, 12.99, 15.99, models.ItemTypeDish),
	dish("Fries", models.CategorySide, 4.99, 5.99, models.ItemTypeDish),
	dish("Caesar Salad", models.CategoryStarter, 9.99, 11.99, models.ItemTypeDish),
	dish("Soda", models.CategoryDrink, 2.50, 2.50, models.ItemTypeBeverage),
	dish("Milkshake", models.CategoryDrink, 5.00, 5.00, models.ItemTypeBeverage),
	dish("Steak", models.CategoryMain, 24.99, 28.99, models.ItemTypeDish),
	dish("Onion Soup", models.CategoryStarter, 8.00, 9.50, models.ItemTypeDish),
	dish("Cheese Platter", models.CategoryCheese, 10.00, 12.00, models.ItemTypeDish),
	dish("Chocolate Cake", models.CategoryDessert, 6.00, 7.50, models.ItemTypeDish),
	dish("Creme Brulee", models.CategoryDessert, 7.00, 8.50, models.ItemTypeDish),
}
