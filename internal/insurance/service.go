package insurance

import (
	"context"
	"log/slog"

	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/realtime"
	"github.com/roadline/roadline/internal/shared"
)

// offerValidityDays is how long a generated offer stays acceptable.
const offerValidityDays = 30

// OrderPort is the slice of the orders service the offer flow needs.
// Accepting an offer never advances the order, so Get is enough.
type OrderPort interface {
	Get(ctx context.Context, id int64, actor shared.Actor) (*orders.Order, error)
}

// Service owns offer generation and the accept/decline flow.
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

// Generate runs the rule engine and persists the offers that do not exist yet
// for the order. Repeated calls never duplicate rows.
func (s *Service) Generate(ctx context.Context, orderID int64, actor shared.Actor) ([]Offer, error) {
	order, err := s.orders.Get(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	if orders.IsTerminal(order.Status) {
		return nil, shared.NewErrorf(shared.CodeInvalidState, "order %d is %s", orderID, order.Status)
	}

	now := s.clock.Now()
	octx, err := s.repo.OfferContext(ctx, orderID, now)
	if err != nil {
		return nil, err
	}
	specs := BuildOffers(*octx)
	expiresAt := now.AddDate(0, 0, offerValidityDays)

	inserted, err := s.repo.InsertMissing(ctx, orderID, specs, expiresAt)
	if err != nil {
		return nil, err
	}
	if inserted > 0 {
		s.broadcast.Publish(ctx, orderID, "offer.generated", map[string]any{"count": inserted})
	}
	return s.repo.ListByOrder(ctx, orderID)
}

// List returns the order's offers.
func (s *Service) List(ctx context.Context, orderID int64, actor shared.Actor) ([]Offer, error) {
	if _, err := s.orders.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	return s.repo.ListByOrder(ctx, orderID)
}

// Accept marks the offer ACCEPTED and declines its OFFERED siblings in one
// transaction. Accepting an already-ACCEPTED offer is a no-op returning the
// existing record, so at most one offer per order ever holds ACCEPTED.
func (s *Service) Accept(ctx context.Context, orderID, offerID int64, actor shared.Actor) (*Offer, error) {
	if _, err := s.orders.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	offer, err := s.repo.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.OrderID != orderID {
		return nil, shared.NewError(shared.CodeOfferNotFound, "insurance offer not found")
	}

	switch offer.Status {
	case StatusAccepted:
		return offer, nil
	case StatusDeclined:
		return nil, shared.NewError(shared.CodeOfferAlreadyAccepted, "a sibling offer was already accepted")
	}
	now := s.clock.Now()
	if now.After(offer.ExpiresAt) {
		return nil, shared.NewError(shared.CodeOfferExpired, "offer validity deadline passed")
	}

	actorID := actor.ID
	accepted, err := s.repo.Accept(ctx, offerID, now, &actorID)
	if err != nil {
		return nil, err
	}
	s.broadcast.Publish(ctx, orderID, "offer.accepted", map[string]any{"code": accepted.Code, "price": accepted.Price})
	return accepted, nil
}

// Decline turns down an OFFERED offer. Declining twice is a no-op; an
// ACCEPTED offer cannot be declined through this path.
func (s *Service) Decline(ctx context.Context, orderID, offerID int64, actor shared.Actor) (*Offer, error) {
	if _, err := s.orders.Get(ctx, orderID, actor); err != nil {
		return nil, err
	}
	offer, err := s.repo.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.OrderID != orderID {
		return nil, shared.NewError(shared.CodeOfferNotFound, "insurance offer not found")
	}
	switch offer.Status {
	case StatusDeclined:
		return offer, nil
	case StatusAccepted:
		return nil, shared.NewError(shared.CodeInvalidState, "accepted offers cannot be declined")
	}

	actorID := actor.ID
	declined, err := s.repo.Decline(ctx, offerID, &actorID)
	if err != nil {
		return nil, err
	}
	s.broadcast.Publish(ctx, orderID, "offer.declined", map[string]any{"code": declined.Code})
	return declined, nil
}
