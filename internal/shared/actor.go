package shared

import "context"

// Role is the coarse actor role attached by the upstream auth gateway.
type Role string

const (
	RoleClient  Role = "client"
	RoleStaff   Role = "staff"
	RolePartner Role = "partner"
	// RoleSystem marks transitions triggered internally (payment success,
	// estimate creation). It bypasses the per-role transition overlay but
	// still respects the state table.
	RoleSystem Role = "system"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleClient, RoleStaff, RolePartner, RoleSystem:
		return true
	}
	return false
}

// Actor identifies who is performing an operation.
type Actor struct {
	ID   int64
	Role Role
}

// IsStaff reports whether the actor may drive privileged transitions.
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleSystem
}

// SystemActor is used for internally triggered operations.
var SystemActor = Actor{ID: 0, Role: RoleSystem}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
