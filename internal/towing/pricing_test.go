package towing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	kyivCenter = LatLng{Lat: 50.45, Lng: 30.52}
	kyivSouth  = LatLng{Lat: 50.40, Lng: 30.62}

	dayTime   = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	nightTime = time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
)

func TestHaversineKnownRoute(t *testing.T) {
	// ~9 km between the two Kyiv points.
	km := HaversineKm(kyivCenter, kyivSouth)
	require.InDelta(t, 9.0, km, 1.0)

	require.Equal(t, 0.0, HaversineKm(kyivCenter, kyivCenter))
}

func TestCalculateQuoteDaytime(t *testing.T) {
	q := CalculateQuote(kyivCenter, kyivSouth, dayTime)

	require.False(t, q.Night)
	require.GreaterOrEqual(t, q.Price, BaseFee)
	require.GreaterOrEqual(t, q.EtaMinutes, BufferMinutes)
	require.Equal(t, q.Price, math.Trunc(q.Price), "price is a whole currency unit")
	require.InDelta(t, q.DistanceKm, HaversineKm(kyivCenter, kyivSouth), 0.05)
}

func TestCalculateQuoteNightMultiplier(t *testing.T) {
	day := CalculateQuote(kyivCenter, kyivSouth, dayTime)
	night := CalculateQuote(kyivCenter, kyivSouth, nightTime)

	require.True(t, night.Night)
	raw := BaseFee + KmRate*HaversineKm(kyivCenter, kyivSouth)
	require.Equal(t, math.Round(raw), day.Price)
	require.Equal(t, math.Round(raw*NightMultiplier), night.Price)
	// eta does not depend on the hour
	require.Equal(t, day.EtaMinutes, night.EtaMinutes)
}

func TestNightWindowBoundaries(t *testing.T) {
	require.True(t, IsNightHour(time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)))
	require.True(t, IsNightHour(time.Date(2025, 3, 10, 5, 59, 0, 0, time.UTC)))
	require.False(t, IsNightHour(time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)))
	require.False(t, IsNightHour(time.Date(2025, 3, 10, 21, 59, 0, 0, time.UTC)))
}

func TestCalculateQuoteZeroDistanceFloorsAtBaseFee(t *testing.T) {
	q := CalculateQuote(kyivCenter, kyivCenter, dayTime)
	require.Equal(t, BaseFee, q.Price)
	require.Equal(t, BufferMinutes, q.EtaMinutes)
	require.Equal(t, 0.0, q.DistanceKm)
}
