package models

import "time"

// TopItem aggregates one menu item name over a session.
type TopItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// SessionMetrics is the archived summary of a service.
// TotalRevenue counts every item regardless of status; ServedRevenue only Served items.
type SessionMetrics struct {
	TotalRevenue    float64                   `json:"total_revenue"`
	ServedRevenue   float64                   `json:"served_revenue"`
	RevenueByPeriod map[ServicePeriod]float64 `json:"revenue_by_period"`
	TotalCovers     int                       `json:"total_covers"`
	TotalOrders     int                       `json:"total_orders"`
	TopItems        []TopItem                 `json:"top_items"`
}

// ServiceSession is one shift bounded by start and end of service.
type ServiceSession struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Metrics   *SessionMetrics `json:"metrics,omitempty"`
}

// Active reports whether the session has not been ended yet.
func (s *ServiceSession) Active() bool {
	return s != nil && s.EndedAt == nil
}
