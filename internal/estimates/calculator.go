package estimates

import (
	"context"
	"time"

	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/shared"
)

// Modifier multipliers applied on top of the profile coefficients when the
// corresponding flag is set.
const (
	nightMultiplier  = 1.15
	urgentMultiplier = 1.30
	suvMultiplier    = 1.10

	maxDiscountPercent = 80.0

	// validity window for a freshly (re)computed estimate
	validityDays = 14
)

// Built-in pricing profiles. Custom codes are resolved from configuration
// through a ProfileSource.
var builtinProfiles = map[string]Profile{
	"ECONOMY":  {Code: "ECONOMY", PartsCoeff: 0.85, LaborCoeff: 0.90},
	"STANDARD": {Code: "STANDARD", PartsCoeff: 1.00, LaborCoeff: 1.00},
	"PREMIUM":  {Code: "PREMIUM", PartsCoeff: 1.25, LaborCoeff: 1.35},
}

// ProfileSource resolves custom pricing profiles.
type ProfileSource interface {
	ResolveProfile(ctx context.Context, code string) (*Profile, error)
}

// ResolveProfile returns the built-in profile for code, falling back to the
// source for custom codes and to STANDARD when nothing matches.
func ResolveProfile(ctx context.Context, source ProfileSource, code string) Profile {
	if p, ok := builtinProfiles[code]; ok {
		return p
	}
	if source != nil && code != "" {
		if p, err := source.ResolveProfile(ctx, code); err == nil && p != nil {
			return *p
		}
	}
	return builtinProfiles["STANDARD"]
}

// Build computes an estimate from the category template and the input. It is a
// pure function of its arguments: same inputs, same totals.
//
// Each line value is rounded to two decimals before summation so running
// totals stay stable under repeated recomputation.
func Build(category orders.Category, profile Profile, input Input, now time.Time) Estimate {
	coeffParts := profile.PartsCoeff
	coeffLabor := profile.LaborCoeff
	if input.Night {
		coeffParts *= nightMultiplier
		coeffLabor *= nightMultiplier
	}
	if input.Urgent {
		coeffParts *= urgentMultiplier
		coeffLabor *= urgentMultiplier
	}
	if input.SUV {
		coeffParts *= suvMultiplier
		coeffLabor *= suvMultiplier
	}

	tpl := templateFor(category)

	var parts []PartLine
	var partsSubtotal float64
	for _, p := range tpl.Parts {
		unit := shared.Round2(p.BasePrice * coeffParts)
		total := shared.Round2(unit * p.Quantity)
		parts = append(parts, PartLine{Name: p.Name, Quantity: p.Quantity, UnitPrice: unit, Total: total})
		partsSubtotal = shared.Round2(partsSubtotal + total)
	}

	var labor []LaborLine
	var laborSubtotal float64
	for _, l := range tpl.Labor {
		total := shared.Round2(l.Hours * l.Rate * coeffLabor)
		labor = append(labor, LaborLine{Name: l.Name, Hours: l.Hours, Rate: l.Rate, Total: total})
		laborSubtotal = shared.Round2(laborSubtotal + total)
	}

	discount := input.DiscountPercent
	if discount < 0 {
		discount = 0
	}
	if discount > maxDiscountPercent {
		discount = maxDiscountPercent
	}

	gross := shared.Round2(partsSubtotal + laborSubtotal)
	discountAmount := shared.Round2(gross * discount / 100)
	total := shared.Round2(gross - discountAmount)
	if total < 0 {
		total = 0
	}

	return Estimate{
		Profile:         profile.Code,
		Parts:           parts,
		Labor:           labor,
		PartsSubtotal:   partsSubtotal,
		LaborSubtotal:   laborSubtotal,
		DiscountPercent: discount,
		DiscountAmount:  discountAmount,
		Total:           total,
		Summary:         input.Summary,
		ValidUntil:      now.AddDate(0, 0, validityDays),
	}
}
