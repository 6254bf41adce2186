package orders

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roadline/roadline/internal/realtime"
	"github.com/roadline/roadline/internal/shared"
	"github.com/roadline/roadline/internal/timeline"
)

type memoryOrderRepo struct {
	orders    map[int64]*Order
	locations map[int64][]Location
	entries   map[int64][]timeline.Entry
	nextID    int64
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		orders:    make(map[int64]*Order),
		locations: make(map[int64][]Location),
		entries:   make(map[int64][]timeline.Entry),
	}
}

func (r *memoryOrderRepo) Get(ctx context.Context, id int64) (*Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.NewError(shared.CodeOrderNotFound, "order not found")
	}
	copied := *o
	return &copied, nil
}

func (r *memoryOrderRepo) Create(ctx context.Context, input CreateOrderInput) (*Order, error) {
	r.nextID++
	o := &Order{
		ID:          r.nextID,
		ClientID:    input.ClientID,
		VehicleID:   input.VehicleID,
		Category:    input.Category,
		Status:      StatusNew,
		Priority:    input.Priority,
		Description: input.Description,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.orders[o.ID] = o
	return o, nil
}

func (r *memoryOrderRepo) List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	var out []Order
	for _, o := range r.orders {
		if req.ClientID != 0 && o.ClientID != req.ClientID {
			continue
		}
		if req.Status != nil && o.Status != *req.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (r *memoryOrderRepo) SetStatus(ctx context.Context, id int64, from, to Status, actorID *int64, reason string) error {
	o, ok := r.orders[id]
	if !ok {
		return shared.NewError(shared.CodeOrderNotFound, "order not found")
	}
	if o.Status != from {
		return ErrStatusConflict
	}
	o.Status = to
	r.entries[id] = append(r.entries[id], timeline.Entry{
		OrderID: id,
		Event:   "status_changed",
		ActorID: actorID,
		Details: map[string]any{"from": from, "to": to, "reason": reason},
	})
	return nil
}

func (r *memoryOrderRepo) InsertLocation(ctx context.Context, orderID int64, lat, lng float64, actorID *int64) (*Location, error) {
	loc := Location{ID: int64(len(r.locations[orderID]) + 1), OrderID: orderID, Latitude: lat, Longitude: lng, ActorID: actorID}
	r.locations[orderID] = append(r.locations[orderID], loc)
	return &loc, nil
}

func (r *memoryOrderRepo) ListLocations(ctx context.Context, orderID int64) ([]Location, error) {
	return r.locations[orderID], nil
}

func (r *memoryOrderRepo) ListTimeline(ctx context.Context, orderID int64) ([]timeline.Entry, error) {
	return r.entries[orderID], nil
}

func newTestService(repo *memoryOrderRepo) *Service {
	return NewService(repo, realtime.NopPublisher{}, slog.Default())
}

func seedOrder(t *testing.T, repo *memoryOrderRepo, clientID int64, status Status) *Order {
	t.Helper()
	o, err := repo.Create(context.Background(), CreateOrderInput{
		ClientID: clientID, VehicleID: 1, Category: CategoryEngine, Priority: PriorityNormal,
	})
	require.NoError(t, err)
	o.Status = status
	repo.orders[o.ID].Status = status
	return o
}

func TestTransitionByStaff(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestService(repo)
	o := seedOrder(t, repo, 10, StatusNew)

	updated, err := svc.Transition(context.Background(), o.ID, StatusTriage, shared.Actor{ID: 99, Role: shared.RoleStaff}, "")
	require.NoError(t, err)
	require.Equal(t, StatusTriage, updated.Status)
	require.Len(t, repo.entries[o.ID], 1)
}

type recordingNotifier struct {
	closed []int64
}

func (n *recordingNotifier) OrderClosed(ctx context.Context, orderID int64) {
	n.closed = append(n.closed, orderID)
}

func TestTransitionToClosedNotifies(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestService(repo)
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)
	o := seedOrder(t, repo, 10, StatusDelivered)

	_, err := svc.Transition(context.Background(), o.ID, StatusClosed, shared.Actor{ID: 99, Role: shared.RoleStaff}, "")
	require.NoError(t, err)
	require.Equal(t, []int64{o.ID}, notifier.closed)

	// non-terminal transitions stay silent
	o2 := seedOrder(t, repo, 10, StatusNew)
	_, err = svc.Transition(context.Background(), o2.ID, StatusTriage, shared.Actor{ID: 99, Role: shared.RoleStaff}, "")
	require.NoError(t, err)
	require.Len(t, notifier.closed, 1)
}

func TestTransitionClientForbidden(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestService(repo)
	o := seedOrder(t, repo, 10, StatusApproved)

	_, err := svc.Transition(context.Background(), o.ID, StatusScheduled, shared.Actor{ID: 10, Role: shared.RoleClient}, "")
	require.Equal(t, shared.CodeForbidden, shared.CodeOf(err))
	require.Equal(t, StatusApproved, repo.orders[o.ID].Status)
}

func TestTransitionClientCannotTouchForeignOrder(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestService(repo)
	o := seedOrder(t, repo, 10, StatusNew)

	_, err := svc.Transition(context.Background(), o.ID, StatusCancelled, shared.Actor{ID: 11, Role: shared.RoleClient}, "")
	require.Equal(t, shared.CodeForbidden, shared.CodeOf(err))
}

func TestTransitionOutOfTable(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestService(repo)
	o := seedOrder(t, repo, 10, StatusClosed)

	_, err := svc.Transition(context.Background(), o.ID, StatusScheduled, shared.Actor{ID: 99, Role: shared.RoleStaff}, "")
	require.Equal(t, shared.CodeInvalidTransition, shared.CodeOf(err))
}

func TestAdvanceForwardNeverRegresses(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestService(repo)
	o := seedOrder(t, repo, 10, StatusReady)

	// Advancing to an earlier status is a silent no-op.
	require.NoError(t, svc.AdvanceForward(context.Background(), o.ID, StatusScheduled, "payment_completed"))
	require.Equal(t, StatusReady, repo.orders[o.ID].Status)
	require.Empty(t, repo.entries[o.ID])
}

func TestAdvanceForwardMovesAhead(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestService(repo)
	o := seedOrder(t, repo, 10, StatusTriage)

	require.NoError(t, svc.AdvanceForward(context.Background(), o.ID, StatusQuote, "estimate_created"))
	require.Equal(t, StatusQuote, repo.orders[o.ID].Status)
	require.Len(t, repo.entries[o.ID], 1)
	require.Equal(t, "estimate_created", repo.entries[o.ID][0].Details["reason"])
}

func TestAdvanceForwardTerminalOrderFails(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestService(repo)
	o := seedOrder(t, repo, 10, StatusCancelled)

	err := svc.AdvanceForward(context.Background(), o.ID, StatusScheduled, "payment_completed")
	require.Equal(t, shared.CodeInvalidState, shared.CodeOf(err))
}

func TestAddLocationValidatesRange(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := newTestService(repo)
	o := seedOrder(t, repo, 10, StatusNew)

	_, err := svc.AddLocation(context.Background(), o.ID, 91.0, 0.0, shared.Actor{ID: 99, Role: shared.RoleStaff})
	require.Equal(t, shared.CodeValidation, shared.CodeOf(err))

	loc, err := svc.AddLocation(context.Background(), o.ID, 50.45, 30.52, shared.Actor{ID: 99, Role: shared.RoleStaff})
	require.NoError(t, err)
	require.Equal(t, o.ID, loc.OrderID)
}
