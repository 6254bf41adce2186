package towing

import (
	"context"
	"log/slog"

	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/realtime"
	"github.com/roadline/roadline/internal/shared"
)

// OrderPort is the slice of the orders service the tow flow needs.
type OrderPort interface {
	Get(ctx context.Context, id int64, actor shared.Actor) (*orders.Order, error)
	AdvanceForward(ctx context.Context, id int64, target orders.Status, reason string) error
}

// towOrderTargets maps tow progress onto the parent order status. The mapping
// is forward-only: an order already past the target is never moved back.
var towOrderTargets = map[Status]orders.Status{
	StatusAssigned:  orders.StatusScheduled,
	StatusEnroute:   orders.StatusScheduled,
	StatusArrived:   orders.StatusScheduled,
	StatusLoading:   orders.StatusScheduled,
	StatusInTransit: orders.StatusScheduled,
	StatusDelivered: orders.StatusInService,
	StatusCompleted: orders.StatusInService,
}

// towProgress defines the legal tow status chain used by UpdateStatus.
var towProgress = map[Status][]Status{
	StatusRequested: {StatusAssigned, StatusCancelled},
	StatusAssigned:  {StatusEnroute, StatusCancelled},
	StatusEnroute:   {StatusArrived, StatusCancelled},
	StatusArrived:   {StatusLoading, StatusCancelled},
	StatusLoading:   {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusDelivered},
	StatusDelivered: {StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

// Service owns tow quoting and dispatch.
type Service struct {
	repo      RepositoryPort
	orders    OrderPort
	broadcast realtime.Publisher
	clock     shared.Clock
	logger    *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, orderPort OrderPort, broadcast realtime.Publisher, clock shared.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Service{repo: repo, orders: orderPort, broadcast: broadcast, clock: clock, logger: logger}
}

// QuoteRoute prices a tow without persisting anything.
func (s *Service) QuoteRoute(from, to LatLng) (Quote, error) {
	if !from.Valid() || !to.Valid() {
		return Quote{}, shared.NewError(shared.CodeInvalidRoute, "coordinates out of range")
	}
	return CalculateQuote(from, to, s.clock.Now()), nil
}

// QuoteForOrder prices the route and upserts the order's tow request. A
// re-quote overwrites the prior one and resets the status to REQUESTED.
func (s *Service) QuoteForOrder(ctx context.Context, orderID int64, from, to LatLng, actor shared.Actor) (*TowRequest, error) {
	if _, err := s.orders.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	quote, err := s.QuoteRoute(from, to)
	if err != nil {
		return nil, err
	}
	tow, err := s.repo.UpsertQuote(ctx, orderID, from, to, quote)
	if err != nil {
		return nil, err
	}
	s.broadcast.Publish(ctx, orderID, "tow.quote", map[string]any{
		"distance_km": tow.DistanceKm, "price": tow.Price, "eta_minutes": tow.EtaMinutes,
	})
	return tow, nil
}

// Get returns the order's tow request.
func (s *Service) Get(ctx context.Context, orderID int64, actor shared.Actor) (*TowRequest, error) {
	if _, err := s.orders.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	return s.repo.GetByOrder(ctx, orderID)
}

// Assign dispatches a partner and advances the parent order to SCHEDULED if
// it is not already past it.
func (s *Service) Assign(ctx context.Context, orderID, partnerID int64, actor shared.Actor) (*TowRequest, error) {
	if _, err := s.orders.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	partner, err := s.repo.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if !partner.Active {
		return nil, shared.NewErrorf(shared.CodePartnerNotFound, "tow partner %d is inactive", partnerID)
	}
	if _, err := s.repo.GetByOrder(ctx, orderID); err != nil {
		return nil, err
	}

	actorID := actor.ID
	tow, err := s.repo.SetStatus(ctx, orderID, StatusAssigned, &partnerID, &actorID)
	if err != nil {
		return nil, err
	}
	if err := s.advanceOrder(ctx, orderID, StatusAssigned); err != nil {
		return nil, err
	}
	s.broadcast.Publish(ctx, orderID, "tow.assigned", map[string]any{"partner_id": partnerID})
	return tow, nil
}

// UpdateStatus moves the tow along its progress chain and maps the step onto
// the parent order through the fixed status table.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, target Status, actor shared.Actor) (*TowRequest, error) {
	if !ValidStatus(target) {
		return nil, shared.NewErrorf(shared.CodeValidation, "unknown tow status %s", target)
	}
	if _, err := s.orders.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	current, err := s.repo.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !towStepAllowed(current.Status, target) {
		return nil, shared.NewErrorf(shared.CodeInvalidState, "tow cannot move from %s to %s", current.Status, target)
	}

	actorID := actor.ID
	tow, err := s.repo.SetStatus(ctx, orderID, target, nil, &actorID)
	if err != nil {
		return nil, err
	}
	if err := s.advanceOrder(ctx, orderID, target); err != nil {
		return nil, err
	}
	s.broadcast.Publish(ctx, orderID, "tow.status", map[string]any{"status": target})
	return tow, nil
}

func (s *Service) advanceOrder(ctx context.Context, orderID int64, tow Status) error {
	target, ok := towOrderTargets[tow]
	if !ok {
		return nil
	}
	return s.orders.AdvanceForward(ctx, orderID, target, "tow_"+string(tow))
}

func towStepAllowed(from, to Status) bool {
	for _, next := range towProgress[from] {
		if next == to {
			return true
		}
	}
	return false
}
