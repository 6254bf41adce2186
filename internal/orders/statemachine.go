package orders

import "github.com/roadline/roadline/internal/shared"

// The single allowed-transition table. Every component that changes order
// status goes through here; the rule lives in one place instead of being
// duplicated per endpoint.
var transitions = map[Status][]Status{
	StatusNew:       {StatusTriage, StatusQuote, StatusCancelled},
	StatusTriage:    {StatusQuote, StatusCancelled},
	StatusQuote:     {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusInService, StatusCancelled},
	StatusInService: {StatusReady},
	StatusReady:     {StatusDelivered},
	StatusDelivered: {StatusClosed},
	StatusClosed:    {},
	StatusCancelled: {},
}

// clientTransitions is the narrow subset order owners may drive themselves.
var clientTransitions = map[Status][]Status{
	StatusNew:   {StatusCancelled},
	StatusQuote: {StatusApproved, StatusCancelled},
	StatusReady: {StatusDelivered},
}

// statusRank orders the forward lifecycle. CANCELLED sits outside the forward
// chain and is never a target of an automated advance.
var statusRank = map[Status]int{
	StatusNew:       0,
	StatusTriage:    1,
	StatusQuote:     2,
	StatusApproved:  3,
	StatusScheduled: 4,
	StatusInService: 5,
	StatusReady:     6,
	StatusDelivered: 7,
	StatusClosed:    8,
}

// Rank returns the position of s in the forward lifecycle, or -1 for
// CANCELLED/unknown statuses.
func Rank(s Status) int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// IsTerminal reports whether no further status mutation is expected.
func IsTerminal(s Status) bool {
	return s == StatusClosed || s == StatusCancelled
}

// Allowed reports whether from→to is in the transition table.
func Allowed(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransition checks the table and the actor's role overlay. Staff and
// system actors may take any table transition; clients are restricted to
// their overlay.
func CanTransition(from, to Status, role shared.Role) error {
	if !Allowed(from, to) {
		return shared.NewErrorf(shared.CodeInvalidTransition, "order cannot move from %s to %s", from, to)
	}
	if role == shared.RoleStaff || role == shared.RoleSystem {
		return nil
	}
	for _, next := range clientTransitions[from] {
		if next == to {
			return nil
		}
	}
	return shared.NewErrorf(shared.CodeForbidden, "role %s may not move order from %s to %s", role, from, to)
}

// ForwardReachable reports whether target can be reached from current by
// following the table forward. The staff table is a linear chain, so this
// amounts to a rank comparison on non-terminal states.
func ForwardReachable(current, target Status) bool {
	if IsTerminal(current) {
		return false
	}
	cr, tr := Rank(current), Rank(target)
	if cr < 0 || tr < 0 {
		return false
	}
	return tr > cr
}
