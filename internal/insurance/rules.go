package insurance

import (
	"strings"

	"github.com/roadline/roadline/internal/orders"
	"github.com/roadline/roadline/internal/shared"
)

// Rule thresholds and base prices. Prices are in the shop's settlement
// currency; the loyalty discount applies uniformly to the whole batch.
const (
	breakdownAgeYears      = 12
	breakdownMileageKm     = 200_000
	repeatIssueThreshold   = 2
	loyaltyDiscountPercent = 10.0

	roadAssistancePrice      = 1200.0
	glassBreakagePrice       = 800.0
	collisionExtendedPrice   = 2400.0
	mechanicalBreakdownPrice = 3100.0
)

const (
	CodeRoadAssistance      = "road_assistance"
	CodeGlassBreakage       = "glass_breakage"
	CodeCollisionExtended   = "collision_extended"
	CodeMechanicalBreakdown = "mechanical_breakdown"
)

// BuildOffers maps the order context to the set of offers to propose. Pure:
// same context, same specs. The universal road-assistance offer is always
// present; the rest depend on category, description keywords and vehicle wear.
func BuildOffers(octx OfferContext) []OfferSpec {
	specs := []OfferSpec{{
		Code:        CodeRoadAssistance,
		Title:       "Road assistance, 12 months",
		Description: "Unlimited tow-outs and on-site jump starts within the coverage area.",
		Price:       roadAssistancePrice,
	}}

	desc := strings.ToLower(octx.Description)
	if strings.Contains(desc, "glass") || strings.Contains(desc, "window") || strings.Contains(desc, "windshield") {
		specs = append(specs, OfferSpec{
			Code:        CodeGlassBreakage,
			Title:       "Glass breakage cover",
			Description: "Windshield and side glass replacement without deductible.",
			Price:       glassBreakagePrice,
		})
	}
	if octx.Category == orders.CategorySuspension || octx.Category == orders.CategoryBrakes ||
		strings.Contains(desc, "collision") || strings.Contains(desc, "accident") {
		specs = append(specs, OfferSpec{
			Code:        CodeCollisionExtended,
			Title:       "Extended collision cover",
			Description: "Body and chassis damage beyond the base policy limit.",
			Price:       collisionExtendedPrice,
		})
	}
	if octx.VehicleAgeYears >= breakdownAgeYears || octx.MileageKm > breakdownMileageKm {
		specs = append(specs, OfferSpec{
			Code:        CodeMechanicalBreakdown,
			Title:       "Mechanical breakdown cover",
			Description: "Engine, transmission and drivetrain failures on high-wear vehicles.",
			Price:       mechanicalBreakdownPrice,
		})
	}

	if octx.RepeatIssueCount >= repeatIssueThreshold {
		for i := range specs {
			specs[i].Price = shared.Round2(specs[i].Price * (1 - loyaltyDiscountPercent/100))
		}
	}
	return specs
}
