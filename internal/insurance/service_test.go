package insurance

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/realtime"
	"github.com/roadline/roadline/internal/shared"
)

var now = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

type memoryOfferRepo struct {
	contexts map[int64]OfferContext
	offers   map[int64]*Offer
	nextID   int64
}

func newMemoryOfferRepo() *memoryOfferRepo {
	return &memoryOfferRepo{contexts: make(map[int64]OfferContext), offers: make(map[int64]*Offer)}
}

func (r *memoryOfferRepo) OfferContext(ctx context.Context, orderID int64, _ time.Time) (*OfferContext, error) {
	octx, ok := r.contexts[orderID]
	if !ok {
		return nil, shared.NewError(shared.CodeOrderNotFound, "order not found")
	}
	return &octx, nil
}

func (r *memoryOfferRepo) ListByOrder(ctx context.Context, orderID int64) ([]Offer, error) {
	var out []Offer
	for id := int64(1); id <= r.nextID; id++ {
		if o, ok := r.offers[id]; ok && o.OrderID == orderID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memoryOfferRepo) Get(ctx context.Context, offerID int64) (*Offer, error) {
	o, ok := r.offers[offerID]
	if !ok {
		return nil, shared.NewError(shared.CodeOfferNotFound, "insurance offer not found")
	}
	copied := *o
	return &copied, nil
}

func (r *memoryOfferRepo) InsertMissing(ctx context.Context, orderID int64, specs []OfferSpec, expiresAt time.Time) (int, error) {
	existing := map[string]bool{}
	for _, o := range r.offers {
		if o.OrderID == orderID {
			existing[o.Code] = true
		}
	}
	inserted := 0
	for _, spec := range specs {
		if existing[spec.Code] {
			continue
		}
		r.nextID++
		r.offers[r.nextID] = &Offer{
			ID: r.nextID, OrderID: orderID,
			Code: spec.Code, Title: spec.Title, Description: spec.Description,
			Price: spec.Price, Status: StatusOffered, ExpiresAt: expiresAt,
		}
		inserted++
	}
	return inserted, nil
}

func (r *memoryOfferRepo) Accept(ctx context.Context, offerID int64, at time.Time, actorID *int64) (*Offer, error) {
	target, ok := r.offers[offerID]
	if !ok {
		return nil, shared.NewError(shared.CodeOfferNotFound, "insurance offer not found")
	}
	if target.Status != StatusOffered {
		if target.Status == StatusAccepted {
			copied := *target
			return &copied, nil
		}
		return nil, shared.NewError(shared.CodeOfferAlreadyAccepted, "a sibling offer was already accepted")
	}
	for _, o := range r.offers {
		if o.OrderID == target.OrderID && o.ID != offerID && o.Status == StatusAccepted {
			return nil, shared.NewError(shared.CodeOfferAlreadyAccepted, "a sibling offer was already accepted")
		}
	}
	target.Status = StatusAccepted
	accepted := at
	target.AcceptedAt = &accepted
	for _, o := range r.offers {
		if o.OrderID == target.OrderID && o.ID != offerID && o.Status == StatusOffered {
			o.Status = StatusDeclined
		}
	}
	copied := *target
	return &copied, nil
}

func (r *memoryOfferRepo) Decline(ctx context.Context, offerID int64, actorID *int64) (*Offer, error) {
	target, ok := r.offers[offerID]
	if !ok {
		return nil, shared.NewError(shared.CodeOfferNotFound, "insurance offer not found")
	}
	target.Status = StatusDeclined
	copied := *target
	return &copied, nil
}

type stubOrderPort struct {
	orders map[int64]*orders.Order
}

func (s *stubOrderPort) Get(ctx context.Context, id int64, actor shared.Actor) (*orders.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, shared.NewError(shared.CodeOrderNotFound, "order not found")
	}
	copied := *o
	return &copied, nil
}

var staff = shared.Actor{ID: 7, Role: shared.RoleStaff}

func newOfferFixture(status orders.Status, octx OfferContext) (*Service, *memoryOfferRepo) {
	repo := newMemoryOfferRepo()
	repo.contexts[1] = octx
	orderPort := &stubOrderPort{orders: map[int64]*orders.Order{
		1: {ID: 1, ClientID: 10, Status: status},
	}}
	svc := NewService(repo, orderPort, realtime.NopPublisher{}, shared.FixedClock{T: now}, slog.Default())
	return svc, repo
}

func TestGenerateIsIdempotent(t *testing.T) {
	svc, _ := newOfferFixture(orders.StatusQuote, OfferContext{Category: orders.CategoryBrakes})

	first, err := svc.Generate(context.Background(), 1, staff)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := svc.Generate(context.Background(), 1, staff)
	require.NoError(t, err)
	require.Len(t, second, len(first))

	seen := map[string]bool{}
	for _, o := range second {
		require.False(t, seen[o.Code])
		seen[o.Code] = true
	}
}

func TestGenerateTerminalOrderFails(t *testing.T) {
	svc, _ := newOfferFixture(orders.StatusCancelled, OfferContext{Category: orders.CategoryEngine})

	_, err := svc.Generate(context.Background(), 1, staff)
	require.Equal(t, shared.CodeInvalidState, shared.CodeOf(err))
}

func TestAcceptDeclinesSiblings(t *testing.T) {
	svc, repo := newOfferFixture(orders.StatusQuote, OfferContext{Category: orders.CategoryBrakes})

	offers, err := svc.Generate(context.Background(), 1, staff)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(offers), 2)

	accepted, err := svc.Accept(context.Background(), 1, offers[0].ID, staff)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	remaining, err := repo.ListByOrder(context.Background(), 1)
	require.NoError(t, err)
	acceptedCount := 0
	for _, o := range remaining {
		switch o.Status {
		case StatusAccepted:
			acceptedCount++
		case StatusOffered:
			t.Fatalf("offer %s left OFFERED after accept", o.Code)
		}
	}
	require.Equal(t, 1, acceptedCount)
}

func TestAcceptTwiceIsNoOp(t *testing.T) {
	svc, _ := newOfferFixture(orders.StatusQuote, OfferContext{Category: orders.CategoryBrakes})

	offers, err := svc.Generate(context.Background(), 1, staff)
	require.NoError(t, err)

	first, err := svc.Accept(context.Background(), 1, offers[0].ID, staff)
	require.NoError(t, err)

	second, err := svc.Accept(context.Background(), 1, offers[0].ID, staff)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.AcceptedAt, second.AcceptedAt)
}

func TestAcceptDeclinedSiblingFails(t *testing.T) {
	svc, _ := newOfferFixture(orders.StatusQuote, OfferContext{Category: orders.CategoryBrakes})

	offers, err := svc.Generate(context.Background(), 1, staff)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(offers), 2)

	_, err = svc.Accept(context.Background(), 1, offers[0].ID, staff)
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), 1, offers[1].ID, staff)
	require.Equal(t, shared.CodeOfferAlreadyAccepted, shared.CodeOf(err))
}

func TestAcceptRaceSettlesOnOneWinner(t *testing.T) {
	svc, repo := newOfferFixture(orders.StatusQuote, OfferContext{Category: orders.CategoryBrakes})

	offers, err := svc.Generate(context.Background(), 1, staff)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(offers), 2)

	// Two accepts that both passed the service's status read; the second
	// write must lose at the repository.
	_, err = repo.Accept(context.Background(), offers[0].ID, now, &staff.ID)
	require.NoError(t, err)

	_, err = repo.Accept(context.Background(), offers[1].ID, now, &staff.ID)
	require.Equal(t, shared.CodeOfferAlreadyAccepted, shared.CodeOf(err))

	remaining, err := repo.ListByOrder(context.Background(), 1)
	require.NoError(t, err)
	acceptedCount := 0
	for _, o := range remaining {
		if o.Status == StatusAccepted {
			acceptedCount++
		}
	}
	require.Equal(t, 1, acceptedCount)
}

func TestAcceptExpiredOfferFails(t *testing.T) {
	svc, repo := newOfferFixture(orders.StatusQuote, OfferContext{Category: orders.CategoryEngine})

	offers, err := svc.Generate(context.Background(), 1, staff)
	require.NoError(t, err)

	for _, o := range offers {
		repo.offers[o.ID].ExpiresAt = now.Add(-time.Hour)
	}

	_, err = svc.Accept(context.Background(), 1, offers[0].ID, staff)
	require.Equal(t, shared.CodeOfferExpired, shared.CodeOf(err))
}

func TestAcceptOfferFromAnotherOrder(t *testing.T) {
	svc, repo := newOfferFixture(orders.StatusQuote, OfferContext{Category: orders.CategoryEngine})
	repo.nextID++
	repo.offers[repo.nextID] = &Offer{ID: repo.nextID, OrderID: 99, Code: CodeRoadAssistance, Status: StatusOffered}

	_, err := svc.Accept(context.Background(), 1, repo.nextID, staff)
	require.Equal(t, shared.CodeOfferNotFound, shared.CodeOf(err))
}

func TestDecline(t *testing.T) {
	svc, _ := newOfferFixture(orders.StatusQuote, OfferContext{Category: orders.CategoryEngine})

	offers, err := svc.Generate(context.Background(), 1, staff)
	require.NoError(t, err)

	declined, err := svc.Decline(context.Background(), 1, offers[0].ID, staff)
	require.NoError(t, err)
	require.Equal(t, StatusDeclined, declined.Status)

	// declining twice is a no-op
	again, err := svc.Decline(context.Background(), 1, offers[0].ID, staff)
	require.NoError(t, err)
	require.Equal(t, StatusDeclined, again.Status)
}
