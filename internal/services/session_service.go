package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"servex_backend/internal/models"
	"servex_backend/internal/notify"
	"servex_backend/internal/repositories"
	"servex_backend/pkg/utils"
)

const topItemsLimit = 5

// SessionService drives the Idle -> Active -> Idle service boundary.
type SessionService interface {
	StartService(ctx context.Context) (*models.ServiceSession, error)
	// EndService archives metrics of every live order and clears them in one step.
	EndService(ctx context.Context) (*models.ServiceSession, error)
	ActiveSession(ctx context.Context) (*models.ServiceSession, error)
	ArchivedSessions(ctx context.Context) ([]models.ServiceSession, error)
	// LiveMetrics computes metrics over the live orders without ending the session.
	LiveMetrics(ctx context.Context) (*models.SessionMetrics, error)
}

type sessionService struct {
	sessionRepo repositories.SessionRepository
	orderRepo   repositories.OrderRepository
	notifier    notify.Notifier
	now         func() time.Time
}

// SessionOption customizes NewSessionService.
type SessionOption func(*sessionService)

// WithSessionClock overrides time.Now for session boundaries.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *sessionService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionNotifier sets where session events go.
func WithSessionNotifier(n notify.Notifier) SessionOption {
	return func(s *sessionService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// NewSessionService creates a new instance of SessionService.
func NewSessionService(sr repositories.SessionRepository, or repositories.OrderRepository, opts ...SessionOption) SessionService {
	s := &sessionService{
		sessionRepo: sr,
		orderRepo:   or,
		notifier:    notify.Nop{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *sessionService) StartService(ctx context.Context) (*models.ServiceSession, error) {
	session := &models.ServiceSession{
		ID:        uuid.NewString(),
		StartedAt: s.now().UTC(),
	}
	if err := s.sessionRepo.StartSession(ctx, session); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrSessionAlreadyActive
		}
		return nil, fmt.Errorf("starting service: %w", err)
	}
	utils.LogInfo("Service started", map[string]interface{}{"session_id": session.ID})
	publish(ctx, s.notifier, notify.NewEvent(notify.SessionStarted, session.ID, session))
	return session, nil
}

func (s *sessionService) EndService(ctx context.Context) (*models.ServiceSession, error) {
	active, err := s.sessionRepo.GetActiveSession(ctx)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("loading active session: %w", err)
	}

	session, err := s.sessionRepo.CloseSession(ctx, active.ID, s.now().UTC(), ComputeMetrics)
	if errors.Is(err, repositories.ErrNotFound) {
		// Someone else ended it between the read and the close.
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("ending service: %w", err)
	}

	utils.LogInfo("Service ended", map[string]interface{}{
		"session_id":    session.ID,
		"total_orders":  session.Metrics.TotalOrders,
		"total_revenue": session.Metrics.TotalRevenue,
	})
	publish(ctx, s.notifier, notify.NewEvent(notify.SessionEnded, session.ID, session))
	return session, nil
}

func (s *sessionService) ActiveSession(ctx context.Context) (*models.ServiceSession, error) {
	session, err := s.sessionRepo.GetActiveSession(ctx)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNoActiveSession
	}
	return session, err
}

func (s *sessionService) ArchivedSessions(ctx context.Context) ([]models.ServiceSession, error) {
	return s.sessionRepo.ListArchivedSessions(ctx)
}

func (s *sessionService) LiveMetrics(ctx context.Context) (*models.SessionMetrics, error) {
	orders, err := s.orderRepo.ListOrders(ctx, models.OrderFilters{})
	if err != nil {
		return nil, err
	}
	metrics := ComputeMetrics(orders)
	return &metrics, nil
}

// ComputeMetrics summarises a set of orders. TotalRevenue counts every item whatever its
// status; ServedRevenue counts Served items only. TopItems holds the five names with the
// highest quantity, ties kept in first-seen order.
func ComputeMetrics(orders []models.Order) models.SessionMetrics {
	metrics := models.SessionMetrics{
		RevenueByPeriod: map[models.ServicePeriod]float64{
			models.PeriodMidi: 0,
			models.PeriodSoir: 0,
		},
		TotalOrders: len(orders),
		TopItems:    []models.TopItem{},
	}

	index := map[string]int{}
	var tally []models.TopItem
	for _, order := range orders {
		metrics.TotalCovers += order.CoverCount
		for _, item := range order.Items {
			metrics.TotalRevenue += item.Price
			metrics.RevenueByPeriod[order.ServicePeriod] += item.Price
			if item.Status == models.StatusServed {
				metrics.ServedRevenue += item.Price
			}
			i, ok := index[item.Name]
			if !ok {
				i = len(tally)
				index[item.Name] = i
				tally = append(tally, models.TopItem{Name: item.Name})
			}
			tally[i].Quantity++
			tally[i].Revenue += item.Price
		}
	}

	sort.SliceStable(tally, func(i, j int) bool {
		return tally[i].Quantity > tally[j].Quantity
	})
	if len(tally) > topItemsLimit {
		tally = tally[:topItemsLimit]
	}
	for i := range tally {
		tally[i].Revenue = utils.RoundMoney(tally[i].Revenue)
	}
	metrics.TopItems = append(metrics.TopItems, tally...)

	metrics.TotalRevenue = utils.RoundMoney(metrics.TotalRevenue)
	metrics.ServedRevenue = utils.RoundMoney(metrics.ServedRevenue)
	for p, v := range metrics.RevenueByPeriod {
		metrics.RevenueByPeriod[p] = utils.RoundMoney(v)
	}
	return metrics
}
