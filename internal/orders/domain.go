package orders

import "time"

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusTriage    Status = "TRIAGE"
	StatusQuote     Status = "QUOTE"
	StatusApproved  Status = "APPROVED"
	StatusScheduled Status = "SCHEDULED"
	StatusInService Status = "INSERVICE"
	StatusReady     Status = "READY"
	StatusDelivered Status = "DELIVERED"
	StatusClosed    Status = "CLOSED"
	StatusCancelled Status = "CANCELLED"
)

// Category enumerates service categories.
type Category string

const (
	CategoryEngine       Category = "engine"
	CategoryTransmission Category = "transmission"
	CategorySuspension   Category = "suspension"
	CategoryElectrical   Category = "electrical"
	CategoryBrakes       Category = "brakes"
	CategoryOther        Category = "other"
)

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryEngine, CategoryTransmission, CategorySuspension,
		CategoryElectrical, CategoryBrakes, CategoryOther:
		return true
	}
	return false
}

// Priority enumerates order priorities.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Order is a vehicle-service order. It always belongs to exactly one client.
type Order struct {
	ID          int64     `json:"id"`
	ClientID    int64     `json:"client_id"`
	VehicleID   int64     `json:"vehicle_id"`
	Category    Category  `json:"category"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Location is one geo ping attached to an order (tow truck positions, drop-off
// confirmation and the like).
type Location struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateOrderInput carries the attributes for order intake.
type CreateOrderInput struct {
	ClientID    int64
	VehicleID   int64
	Category    Category
	Priority    Priority
	Description string
}

// ListOrdersRequest filters the order list.
type ListOrdersRequest struct {
	ClientID int64
	Status   *Status
	Limit    int
	Offset   int
}
