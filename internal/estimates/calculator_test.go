package estimates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roadline/roadline/internal/orders"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestBuildIsDeterministic(t *testing.T) {
	profile := builtinProfiles["STANDARD"]
	input := Input{Night: true, Urgent: true}

	a := Build(orders.CategoryEngine, profile, input, testNow)
	b := Build(orders.CategoryEngine, profile, input, testNow)
	require.Equal(t, a.Total, b.Total)
	require.Equal(t, a.Parts, b.Parts)
	require.Equal(t, a.Labor, b.Labor)
}

func TestBuildDiscountHalvesTotal(t *testing.T) {
	profile := builtinProfiles["STANDARD"]

	full := Build(orders.CategoryBrakes, profile, Input{}, testNow)
	half := Build(orders.CategoryBrakes, profile, Input{DiscountPercent: 50}, testNow)

	require.InDelta(t, full.Total/2, half.Total, 0.01)
	require.Equal(t, full.PartsSubtotal, half.PartsSubtotal)
}

func TestBuildDiscountClamped(t *testing.T) {
	profile := builtinProfiles["STANDARD"]

	over := Build(orders.CategoryEngine, profile, Input{DiscountPercent: 95}, testNow)
	require.Equal(t, maxDiscountPercent, over.DiscountPercent)
	require.Greater(t, over.Total, 0.0)

	negative := Build(orders.CategoryEngine, profile, Input{DiscountPercent: -10}, testNow)
	require.Equal(t, 0.0, negative.DiscountPercent)
	require.Equal(t, 0.0, negative.DiscountAmount)
}

func TestBuildModifiersRaisePrice(t *testing.T) {
	profile := builtinProfiles["STANDARD"]

	base := Build(orders.CategoryEngine, profile, Input{}, testNow)
	night := Build(orders.CategoryEngine, profile, Input{Night: true}, testNow)
	all := Build(orders.CategoryEngine, profile, Input{Night: true, Urgent: true, SUV: true}, testNow)

	require.Greater(t, night.Total, base.Total)
	require.Greater(t, all.Total, night.Total)
}

func TestBuildProfilesOrder(t *testing.T) {
	input := Input{}
	economy := Build(orders.CategorySuspension, builtinProfiles["ECONOMY"], input, testNow)
	standard := Build(orders.CategorySuspension, builtinProfiles["STANDARD"], input, testNow)
	premium := Build(orders.CategorySuspension, builtinProfiles["PREMIUM"], input, testNow)

	require.Less(t, economy.Total, standard.Total)
	require.Less(t, standard.Total, premium.Total)
}

func TestBuildUnknownCategoryFallsBack(t *testing.T) {
	est := Build(orders.Category("hovercraft"), builtinProfiles["STANDARD"], Input{}, testNow)
	require.NotEmpty(t, est.Parts)
	require.NotEmpty(t, est.Labor)
	require.Greater(t, est.Total, 0.0)
}

func TestBuildTotalEqualsSubtotalsMinusDiscount(t *testing.T) {
	est := Build(orders.CategoryTransmission, builtinProfiles["PREMIUM"], Input{DiscountPercent: 25, SUV: true}, testNow)
	gross := est.PartsSubtotal + est.LaborSubtotal
	require.InDelta(t, gross-est.DiscountAmount, est.Total, 0.001)
}

func TestBuildValidityWindow(t *testing.T) {
	est := Build(orders.CategoryEngine, builtinProfiles["STANDARD"], Input{}, testNow)
	require.Equal(t, testNow.AddDate(0, 0, validityDays), est.ValidUntil)
}

type stubProfileSource struct {
	profiles map[string]Profile
}

func (s stubProfileSource) ResolveProfile(ctx context.Context, code string) (*Profile, error) {
	if p, ok := s.profiles[code]; ok {
		return &p, nil
	}
	return nil, context.Canceled
}

func TestResolveProfile(t *testing.T) {
	source := stubProfileSource{profiles: map[string]Profile{
		"FLEET": {Code: "FLEET", PartsCoeff: 0.7, LaborCoeff: 0.8},
	}}

	require.Equal(t, "PREMIUM", ResolveProfile(context.Background(), source, "PREMIUM").Code)
	require.Equal(t, "FLEET", ResolveProfile(context.Background(), source, "FLEET").Code)
	require.Equal(t, "STANDARD", ResolveProfile(context.Background(), source, "NOPE").Code)
	require.Equal(t, "STANDARD", ResolveProfile(context.Background(), nil, "").Code)
}
