package orders

// CreateOrderRequest is the order intake payload.
type CreateOrderRequest struct {
	VehicleID   int64  `json:"vehicle_id" validate:"required,gt=0"`
	Category    string `json:"category" validate:"required,oneof=engine transmission suspension electrical brakes other"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Description string `json:"description" validate:"max=2000"`
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// AddLocationRequest appends a geo ping.
type AddLocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}
