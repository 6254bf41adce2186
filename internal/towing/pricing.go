package towing

import (
	"math"
	"time"

	"github.com/roadline/roadline/internal/shared"
)

// Tariff constants for tow quotes.
const (
	BaseFee         = 900.0
	KmRate          = 35.0
	NightMultiplier = 1.5
	AvgSpeedKmh     = 45.0
	BufferMinutes   = 15

	earthRadiusKm = 6371.0
)

// Quote is the priced result of a tow calculation.
type Quote struct {
	DistanceKm float64 `json:"distance_km"`
	Price      float64 `json:"price"`
	EtaMinutes int     `json:"eta_minutes"`
	Night      bool    `json:"night"`
}

// HaversineKm computes the great-circle distance between two points.
func HaversineKm(from, to LatLng) float64 {
	lat1 := from.Lat * math.Pi / 180
	lng1 := from.Lng * math.Pi / 180
	lat2 := to.Lat * math.Pi / 180
	lng2 := to.Lng * math.Pi / 180

	dlat := lat2 - lat1
	dlng := lng2 - lng1
	a := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlng/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// IsNightHour reports whether t falls in the night tariff window [22:00, 06:00).
func IsNightHour(t time.Time) bool {
	h := t.Hour()
	return h >= 22 || h < 6
}

// CalculateQuote prices a tow. Pure: the clock instant is a parameter, never
// read ambiently. Distance is rounded to one decimal, price to the nearest
// whole currency unit, eta to the nearest minute.
func CalculateQuote(from, to LatLng, now time.Time) Quote {
	distance := HaversineKm(from, to)

	price := BaseFee + KmRate*distance
	if price < BaseFee {
		price = BaseFee
	}
	night := IsNightHour(now)
	if night {
		price *= NightMultiplier
	}

	eta := int(math.Round(distance/AvgSpeedKmh*60)) + BufferMinutes

	return Quote{
		DistanceKm: shared.Round1(distance),
		Price:      math.Round(price),
		EtaMinutes: eta,
		Night:      night,
	}
}
