package models

import "time"

// Status is shared by order items, courses and orders.
type Status string

const (
	StatusPending Status = "Pending"
	StatusCooking Status = "Cooking"
	StatusReady   Status = "Ready"
	StatusServed  Status = "Served"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCooking, StatusReady, StatusServed:
		return true
	}
	return false
}

// OrderType is how the order leaves the kitchen.
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine-in"
	OrderTypeTakeout  OrderType = "takeout"
	OrderTypeDelivery OrderType = "delivery"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeout, OrderTypeDelivery:
		return true
	}
	return false
}

// Course is a serving stage grouping one or more categories.
type Course string

const (
	CourseStarter Course = "starter"
	CourseMain    Course = "main"
	CourseCheese  Course = "cheese"
	CourseDessert Course = "dessert"
)

// Courses lists every course in serving order.
var Courses = []Course{CourseStarter, CourseMain, CourseCheese, CourseDessert}

var courseCategories = map[Course][]Category{
	CourseStarter: {CategoryStarter},
	CourseMain:    {CategoryMain, CategorySide},
	CourseCheese:  {CategoryCheese},
	CourseDessert: {CategoryDessert},
}

func (c Course) Valid() bool {
	_, ok := courseCategories[c]
	return ok
}

// Categories returns the menu categories served in course c.
func (c Course) Categories() []Category {
	return courseCategories[c]
}

// Includes reports whether items of category cat belong to course c.
func (c Course) Includes(cat Category) bool {
	for _, candidate := range c.Categories() {
		if candidate == cat {
			return true
		}
	}
	return false
}

// CourseForCategory maps a category to its course. Drinks and ingredients have none.
func CourseForCategory(cat Category) (Course, bool) {
	for _, c := range Courses {
		if c.Includes(cat) {
			return c, true
		}
	}
	return "", false
}

// Station is a kitchen work area filtering orders down to the items it prepares.
type Station string

const (
	StationChaud   Station = "chaud"
	StationFroid   Station = "froid"
	StationDessert Station = "dessert"
	StationBar     Station = "bar"
)

var stationCategories = map[Station][]Category{
	StationChaud:   {CategoryMain, CategorySide},
	StationFroid:   {CategoryStarter, CategoryCheese},
	StationDessert: {CategoryDessert},
	StationBar:     {CategoryDrink},
}

func (s Station) Valid() bool {
	_, ok := stationCategories[s]
	return ok
}

// Handles reports whether the station prepares items of category cat.
func (s Station) Handles(cat Category) bool {
	for _, candidate := range stationCategories[s] {
		if candidate == cat {
			return true
		}
	}
	return false
}

// OrderItem is one unit of a menu item inside an order. Name, category and price are
// copied at order time so later menu edits do not rewrite placed orders.
type OrderItem struct {
	InstanceID string   `json:"instance_id"`
	MenuItemID int64    `json:"menu_item_id"`
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	Price      float64  `json:"price"`
	Status     Status   `json:"status"`
}

// Order is a table's ticket. Status and CourseStatus are derived from the items.
type Order struct {
	ID            int64             `json:"id"`
	TableNumber   string            `json:"table_number"`
	Items         []OrderItem       `json:"items"`
	Notes         string            `json:"notes"`
	ServicePeriod ServicePeriod     `json:"service_period"`
	CoverCount    int               `json:"cover_count"`
	OrderType     OrderType         `json:"order_type"`
	CourseStatus  map[Course]Status `json:"course_status"`
	Status        Status            `json:"status"`
	HasAllergy    bool              `json:"has_allergy"`
	Version       int64             `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	cp.CourseStatus = make(map[Course]Status, len(o.CourseStatus))
	for k, v := range o.CourseStatus {
		cp.CourseStatus[k] = v
	}
	return &cp
}

// NewCourseStatus returns a course map with every course Pending.
func NewCourseStatus() map[Course]Status {
	cs := make(map[Course]Status, len(Courses))
	for _, c := range Courses {
		cs[c] = StatusPending
	}
	return cs
}

// OrderFilters defines the available filters for querying orders.
type OrderFilters struct {
	Status        *Status        `form:"status"`
	TableNumber   *string        `form:"table_number"`
	ServicePeriod *ServicePeriod `form:"service_period"`
	Station       *Station       `form:"station"`
}
