package towing

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/realtime"
	"github.com/roadline/roadline/internal/shared"
)

type memoryTowRepo struct {
	tows     map[int64]*TowRequest
	partners map[int64]*Partner
	nextID   int64
}

func newMemoryTowRepo() *memoryTowRepo {
	return &memoryTowRepo{tows: make(map[int64]*TowRequest), partners: make(map[int64]*Partner)}
}

func (r *memoryTowRepo) GetByOrder(ctx context.Context, orderID int64) (*TowRequest, error) {
	t, ok := r.tows[orderID]
	if !ok {
		return nil, shared.NewError(shared.CodeOrderNotFound, "tow request not found")
	}
	copied := *t
	return &copied, nil
}

func (r *memoryTowRepo) UpsertQuote(ctx context.Context, orderID int64, from, to LatLng, quote Quote) (*TowRequest, error) {
	existing, ok := r.tows[orderID]
	id := int64(0)
	if ok {
		id = existing.ID
	} else {
		r.nextID++
		id = r.nextID
	}
	t := &TowRequest{
		ID: id, OrderID: orderID,
		FromLat: from.Lat, FromLng: from.Lng, ToLat: to.Lat, ToLng: to.Lng,
		DistanceKm: quote.DistanceKm, Price: quote.Price, EtaMinutes: quote.EtaMinutes,
		Status: StatusRequested,
	}
	r.tows[orderID] = t
	copied := *t
	return &copied, nil
}

func (r *memoryTowRepo) SetStatus(ctx context.Context, orderID int64, status Status, partnerID *int64, actorID *int64) (*TowRequest, error) {
	t, ok := r.tows[orderID]
	if !ok {
		return nil, shared.NewError(shared.CodeOrderNotFound, "tow request not found")
	}
	t.Status = status
	if partnerID != nil {
		t.PartnerID = partnerID
	}
	copied := *t
	return &copied, nil
}

func (r *memoryTowRepo) GetPartner(ctx context.Context, id int64) (*Partner, error) {
	p, ok := r.partners[id]
	if !ok {
		return nil, shared.NewError(shared.CodePartnerNotFound, "tow partner not found")
	}
	return p, nil
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

func (s *stubOrderPort) AdvanceForward(ctx context.Context, id int64, target orders.Status, reason string) error {
	o := s.orders[id]
	if orders.IsTerminal(o.Status) {
		return shared.NewError(shared.CodeInvalidState, "terminal order")
	}
	if orders.Rank(o.Status) < orders.Rank(target) {
		o.Status = target
	}
	return nil
}

var staff = shared.Actor{ID: 3, Role: shared.RoleStaff}

func newTowFixture(status orders.Status) (*Service, *memoryTowRepo, *stubOrderPort) {
	repo := newMemoryTowRepo()
	repo.partners[5] = &Partner{ID: 5, Name: "Hook & Go", Active: true}
	repo.partners[6] = &Partner{ID: 6, Name: "Mothballed Towing", Active: false}
	orderPort := &stubOrderPort{orders: map[int64]*orders.Order{
		1: {ID: 1, ClientID: 10, Status: status},
	}}
	svc := NewService(repo, orderPort, realtime.NopPublisher{}, shared.FixedClock{T: dayTime}, slog.Default())
	return svc, repo, orderPort
}

func TestQuoteForOrderUpsert(t *testing.T) {
	svc, repo, _ := newTowFixture(orders.StatusNew)

	first, err := svc.QuoteForOrder(context.Background(), 1, kyivCenter, kyivSouth, staff)
	require.NoError(t, err)
	require.Equal(t, StatusRequested, first.Status)

	// Move it along, then re-quote: same row, status reset.
	_, err = repo.SetStatus(context.Background(), 1, StatusAssigned, nil, nil)
	require.NoError(t, err)

	second, err := svc.QuoteForOrder(context.Background(), 1, kyivCenter, kyivSouth, staff)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, StatusRequested, second.Status)
	require.Len(t, repo.tows, 1)
}

func TestQuoteForOrderInvalidRoute(t *testing.T) {
	svc, _, _ := newTowFixture(orders.StatusNew)

	_, err := svc.QuoteForOrder(context.Background(), 1, LatLng{Lat: 99, Lng: 0}, kyivSouth, staff)
	require.Equal(t, shared.CodeInvalidRoute, shared.CodeOf(err))
}

func TestAssignAdvancesOrderToScheduled(t *testing.T) {
	svc, _, orderPort := newTowFixture(orders.StatusApproved)

	_, err := svc.QuoteForOrder(context.Background(), 1, kyivCenter, kyivSouth, staff)
	require.NoError(t, err)

	tow, err := svc.Assign(context.Background(), 1, 5, staff)
	require.NoError(t, err)
	require.Equal(t, StatusAssigned, tow.Status)
	require.EqualValues(t, 5, *tow.PartnerID)
	require.Equal(t, orders.StatusScheduled, orderPort.orders[1].Status)
}

func TestAssignUnknownPartner(t *testing.T) {
	svc, _, _ := newTowFixture(orders.StatusApproved)
	_, err := svc.QuoteForOrder(context.Background(), 1, kyivCenter, kyivSouth, staff)
	require.NoError(t, err)

	_, err = svc.Assign(context.Background(), 1, 404, staff)
	require.Equal(t, shared.CodePartnerNotFound, shared.CodeOf(err))

	_, err = svc.Assign(context.Background(), 1, 6, staff)
	require.Equal(t, shared.CodePartnerNotFound, shared.CodeOf(err))
}

func TestUpdateStatusChainAndOrderMapping(t *testing.T) {
	svc, _, orderPort := newTowFixture(orders.StatusApproved)

	_, err := svc.QuoteForOrder(context.Background(), 1, kyivCenter, kyivSouth, staff)
	require.NoError(t, err)
	_, err = svc.Assign(context.Background(), 1, 5, staff)
	require.NoError(t, err)

	for _, step := range []Status{StatusEnroute, StatusArrived, StatusLoading, StatusInTransit} {
		_, err = svc.UpdateStatus(context.Background(), 1, step, staff)
		require.NoError(t, err)
		require.Equal(t, orders.StatusScheduled, orderPort.orders[1].Status)
	}

	_, err = svc.UpdateStatus(context.Background(), 1, StatusDelivered, staff)
	require.NoError(t, err)
	require.Equal(t, orders.StatusInService, orderPort.orders[1].Status)
}

func TestUpdateStatusRejectsSkips(t *testing.T) {
	svc, _, _ := newTowFixture(orders.StatusApproved)

	_, err := svc.QuoteForOrder(context.Background(), 1, kyivCenter, kyivSouth, staff)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), 1, StatusDelivered, staff)
	require.Equal(t, shared.CodeInvalidState, shared.CodeOf(err))

	_, err = svc.UpdateStatus(context.Background(), 1, Status("WARPING"), staff)
	require.Equal(t, shared.CodeValidation, shared.CodeOf(err))
}

func TestUpdateStatusNeverRegressesOrder(t *testing.T) {
	svc, _, orderPort := newTowFixture(orders.StatusReady)

	_, err := svc.QuoteForOrder(context.Background(), 1, kyivCenter, kyivSouth, staff)
	require.NoError(t, err)
	_, err = svc.Assign(context.Background(), 1, 5, staff)
	require.NoError(t, err)

	// Tow is only ASSIGNED but the order is already READY; it stays READY.
	require.Equal(t, orders.StatusReady, orderPort.orders[1].Status)
}
