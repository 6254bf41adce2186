package orders

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roadline/roadline/internal/realtime"
	"github.com/roadline/roadline/internal/shared"
	"github.com/roadline/roadline/internal/timeline"
)

// Notifier queues the order-closed notification job.
type Notifier interface {
	OrderClosed(ctx context.Context, orderID int64)
}

// Service owns the order lifecycle. All status changes funnel through
// Transition (actor-driven) or AdvanceForward (internally triggered).
type Service struct {
	repo      RepositoryPort
	broadcast realtime.Publisher
	notifier  Notifier
	logger    *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, broadcast realtime.Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, broadcast: broadcast, logger: logger}
}

// SetNotifier attaches the notification queue; nil disables it.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Create performs order intake. New orders always start in NEW.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if !ValidCategory(input.Category) {
		input.Category = CategoryOther
	}
	if input.Priority == "" {
		input.Priority = PriorityNormal
	}
	order, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.broadcast.Publish(ctx, order.ID, "order.created", map[string]any{"status": order.Status})
	return order, nil
}

// Get returns one order, enforcing ownership for client actors.
func (s *Service) Get(ctx context.Context, id int64, actor shared.Actor) (*Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == shared.RoleClient && order.ClientID != actor.ID {
		return nil, shared.NewError(shared.CodeForbidden, "order belongs to another client")
	}
	return order, nil
}

// List returns orders matching the request. Client actors only see their own.
func (s *Service) List(ctx context.Context, req ListOrdersRequest, actor shared.Actor) ([]Order, int, error) {
	if actor.Role == shared.RoleClient {
		req.ClientID = actor.ID
	}
	return s.repo.List(ctx, req)
}

// Transition moves an order to target on behalf of an actor. It succeeds only
// when the allowed-transition table permits the move for the actor's role.
func (s *Service) Transition(ctx context.Context, id int64, target Status, actor shared.Actor, reason string) (*Order, error) {
	order, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := CanTransition(order.Status, target, actor.Role); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "requested_by_" + string(actor.Role)
	}
	actorID := actor.ID
	if err := s.repo.SetStatus(ctx, id, order.Status, target, &actorID, reason); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, shared.NewError(shared.CodeInvalidState, "order status changed concurrently")
		}
		return nil, err
	}
	s.broadcast.Publish(ctx, id, "order:status", map[string]any{"status": target, "reason": reason})
	if target == StatusClosed && s.notifier != nil {
		s.notifier.OrderClosed(ctx, id)
	}
	return s.repo.Get(ctx, id)
}

// AdvanceForward is the hook for internal triggers (payment success, estimate
// creation, tow progress). It bypasses the role overlay but never moves an
// order backward: an order already at or past target is left untouched.
func (s *Service) AdvanceForward(ctx context.Context, id int64, target Status, reason string) error {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if Rank(order.Status) >= Rank(target) {
		return nil
	}
	if !ForwardReachable(order.Status, target) {
		return shared.NewErrorf(shared.CodeInvalidState, "order %d cannot advance from %s to %s", id, order.Status, target)
	}
	if err := s.repo.SetStatus(ctx, id, order.Status, target, nil, reason); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			// Concurrent advance; re-read and retry the forward guard once.
			fresh, gerr := s.repo.Get(ctx, id)
			if gerr != nil {
				return gerr
			}
			if Rank(fresh.Status) >= Rank(target) {
				return nil
			}
			return s.repo.SetStatus(ctx, id, fresh.Status, target, nil, reason)
		}
		return err
	}
	s.broadcast.Publish(ctx, id, "order:status", map[string]any{"status": target, "reason": reason})
	return nil
}

// AddLocation appends a geo ping to the order track.
func (s *Service) AddLocation(ctx context.Context, orderID int64, lat, lng float64, actor shared.Actor) (*Location, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, shared.NewError(shared.CodeValidation, "coordinates out of range")
	}
	if _, err := s.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	actorID := actor.ID
	loc, err := s.repo.InsertLocation(ctx, orderID, lat, lng, &actorID)
	if err != nil {
		return nil, err
	}
	s.broadcast.Publish(ctx, orderID, "order:location", map[string]any{"lat": lat, "lng": lng})
	return loc, nil
}

// ListTimeline returns the order's audit timeline for operators.
func (s *Service) ListTimeline(ctx context.Context, orderID int64, actor shared.Actor) ([]timeline.Entry, error) {
	if _, err := s.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	return s.repo.ListTimeline(ctx, orderID)
}

// ListLocations returns the order's location pings, oldest first.
func (s *Service) ListLocations(ctx context.Context, orderID int64, actor shared.Actor) ([]Location, error) {
	if _, err := s.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	return s.repo.ListLocations(ctx, orderID)
}
