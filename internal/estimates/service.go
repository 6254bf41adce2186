package estimates

import (
	"context"
	"log/slog"

	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/realtime"
	"github.com/roadline/roadline/internal/shared"
)

// OrderPort is the slice of the orders service the estimate flow needs.
type OrderPort interface {
	Get(ctx context.Context, id int64, actor shared.Actor) (*orders.Order, error)
	AdvanceForward(ctx context.Context, id int64, target orders.Status, reason string) error
}

// Notifier queues fire-and-forget notification jobs.
type Notifier interface {
	EstimateLocked(ctx context.Context, orderID, estimateID int64)
}

// Service computes, approves and rejects estimates.
type Service struct {
	repo      RepositoryPort
	orders    OrderPort
	broadcast realtime.Publisher
	notifier  Notifier
	clock     shared.Clock
	currency  string
	logger    *slog.Logger
}

// NewService builds a Service instance. currency is the shop's settlement
// currency applied to computed estimates.
func NewService(repo RepositoryPort, orderPort OrderPort, broadcast realtime.Publisher, notifier Notifier, clock shared.Clock, currency string, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Service{
		repo:      repo,
		orders:    orderPort,
		broadcast: broadcast,
		notifier:  notifier,
		clock:     clock,
		currency:  currency,
		logger:    logger,
	}
}

// Calculate runs the calculator for the order and upserts the result onto the
// order's single estimate record. When the order is still NEW or TRIAGE it
// auto-advances to QUOTE; a later status is never regressed.
func (s *Service) Calculate(ctx context.Context, orderID int64, input Input, actor shared.Actor) (*Estimate, error) {
	order, err := s.orders.Get(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	if orders.IsTerminal(order.Status) {
		return nil, shared.NewErrorf(shared.CodeInvalidState, "order %d is %s", orderID, order.Status)
	}

	profile := ResolveProfile(ctx, s.repo, input.Profile)
	est := Build(order.Category, profile, input, s.clock.Now())
	est.OrderID = orderID
	est.Currency = s.currency

	saved, err := s.repo.Upsert(ctx, est)
	if err != nil {
		return nil, err
	}

	if order.Status == orders.StatusNew || order.Status == orders.StatusTriage {
		if err := s.orders.AdvanceForward(ctx, orderID, orders.StatusQuote, "estimate_created"); err != nil {
			s.logger.Error("advance order after estimate", slog.Int64("order_id", orderID), slog.Any("error", err))
		}
	}

	s.broadcast.Publish(ctx, orderID, "estimate.calculated", map[string]any{"total": saved.Total, "currency": saved.Currency})
	return saved, nil
}

// Get returns the order's estimate.
func (s *Service) Get(ctx context.Context, orderID int64, actor shared.Actor) (*Estimate, error) {
	if _, err := s.orders.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	return s.repo.GetByOrder(ctx, orderID)
}

// Approve marks the estimate approved. Approving an already-approved estimate
// is a no-op that just reconciles the order status to APPROVED if drifted.
func (s *Service) Approve(ctx context.Context, orderID int64, actor shared.Actor) (*Estimate, error) {
	order, err := s.orders.Get(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	if orders.IsTerminal(order.Status) {
		return nil, shared.NewErrorf(shared.CodeInvalidState, "cannot approve estimate of a %s order", order.Status)
	}
	est, err := s.repo.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if est.Approved {
		if orders.Rank(order.Status) < orders.Rank(orders.StatusApproved) {
			if err := s.orders.AdvanceForward(ctx, orderID, orders.StatusApproved, "estimate_approved"); err != nil {
				return nil, err
			}
		}
		return est, nil
	}

	now := s.clock.Now()
	if now.After(est.ValidUntil) {
		return nil, shared.NewError(shared.CodeEstimateExpired, "estimate validity deadline passed")
	}

	actorID := actor.ID
	if err := s.repo.SetApproval(ctx, orderID, true, &now, "", &actorID); err != nil {
		return nil, err
	}
	if err := s.orders.AdvanceForward(ctx, orderID, orders.StatusApproved, "estimate_approved"); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.EstimateLocked(ctx, orderID, est.ID)
	}
	s.broadcast.Publish(ctx, orderID, "estimate.approved", map[string]any{"total": est.Total})

	return s.repo.GetByOrder(ctx, orderID)
}

// Reject clears the approval flag and records the reason.
func (s *Service) Reject(ctx context.Context, orderID int64, reason string, actor shared.Actor) (*Estimate, error) {
	order, err := s.orders.Get(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	if orders.IsTerminal(order.Status) {
		return nil, shared.NewErrorf(shared.CodeInvalidState, "cannot reject estimate of a %s order", order.Status)
	}
	if _, err := s.repo.GetByOrder(ctx, orderID); err != nil {
		return nil, err
	}
	actorID := actor.ID
	if err := s.repo.SetApproval(ctx, orderID, false, nil, reason, &actorID); err != nil {
		return nil, err
	}
	s.broadcast.Publish(ctx, orderID, "estimate.rejected", map[string]any{"reason": reason})
	return s.repo.GetByOrder(ctx, orderID)
}
