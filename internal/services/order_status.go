package services

import (
	"strings"

	"servex_backend/internal/models"
)

// DeriveOrderStatus computes an order's status from its items. Precedence, highest first:
// every item Served, every item Ready or Served, any item Cooking, any item past Pending.
// When none applies the current status is kept.
func DeriveOrderStatus(items []models.OrderItem, current models.Status) models.Status {
	if len(items) == 0 {
		return current
	}
	allServed, allDone, anyCooking, anyStarted := true, true, false, false
	for _, item := range items {
		if item.Status != models.StatusServed {
			allServed = false
		}
		if item.Status != models.StatusReady && item.Status != models.StatusServed {
			allDone = false
		}
		if item.Status == models.StatusCooking {
			anyCooking = true
		}
		if item.Status != models.StatusPending {
			anyStarted = true
		}
	}
	switch {
	case allServed:
		return models.StatusServed
	case allDone:
		return models.StatusReady
	case anyCooking, anyStarted:
		return models.StatusCooking
	}
	return current
}

// DeriveServeStatus is the variant used after a batch serve: a single Ready item left
// on the ticket keeps the order Ready even when others are still cooking.
func DeriveServeStatus(items []models.OrderItem, current models.Status) models.Status {
	if len(items) == 0 {
		return current
	}
	allServed, anyReady, anyStarted := true, false, false
	for _, item := range items {
		if item.Status != models.StatusServed {
			allServed = false
		}
		if item.Status == models.StatusReady {
			anyReady = true
		}
		if item.Status != models.StatusPending {
			anyStarted = true
		}
	}
	switch {
	case allServed:
		return models.StatusServed
	case anyReady:
		return models.StatusReady
	case anyStarted:
		return models.StatusCooking
	}
	return current
}

// courseFullyReady reports whether the course has items and all of them are Ready.
func courseFullyReady(items []models.OrderItem, course models.Course) bool {
	found := false
	for _, item := range items {
		if !course.Includes(item.Category) {
			continue
		}
		if item.Status != models.StatusReady {
			return false
		}
		found = true
	}
	return found
}

var allergyKeywords = []string{"allergie", "allergy", "gluten", "lactose", "nuts", "arachide", "noix"}

// DetectAllergy flags notes mentioning a known allergen, case-insensitively.
func DetectAllergy(notes string) bool {
	lower := strings.ToLower(notes)
	for _, keyword := range allergyKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// FilterForStation restricts each order to the items the station prepares and drops
// orders left with none.
func FilterForStation(orders []models.Order, station models.Station) []models.Order {
	filtered := make([]models.Order, 0, len(orders))
	for _, order := range orders {
		items := make([]models.OrderItem, 0, len(order.Items))
		for _, item := range order.Items {
			if station.Handles(item.Category) {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			continue
		}
		order.Items = items
		filtered = append(filtered, order)
	}
	return filtered
}
