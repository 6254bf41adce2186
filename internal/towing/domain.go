package towing

import "time"

// Status enumerates tow request states.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusAssigned  Status = "ASSIGNED"
	StatusEnroute   Status = "ENROUTE"
	StatusArrived   Status = "ARRIVED"
	StatusLoading   Status = "LOADING"
	StatusInTransit Status = "INTRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// ValidStatus reports whether s belongs to the tow vocabulary.
func ValidStatus(s Status) bool {
	switch s {
	case StatusRequested, StatusAssigned, StatusEnroute, StatusArrived,
		StatusLoading, StatusInTransit, StatusDelivered, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// TowRequest is the single tow attached to an order.
type TowRequest struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"order_id"`
	FromLat    float64   `json:"from_lat"`
	FromLng    float64   `json:"from_lng"`
	ToLat      float64   `json:"to_lat"`
	ToLng      float64   `json:"to_lng"`
	DistanceKm float64   `json:"distance_km"`
	Price      float64   `json:"price"`
	EtaMinutes int       `json:"eta_minutes"`
	Status     Status    `json:"status"`
	PartnerID  *int64    `json:"partner_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Partner is a towing contractor.
type Partner struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// LatLng is a geographic coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is within geographic bounds.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
