// Package allocation distributes a purchase's tax and shipping totals across
// its lines. Three independent rules are used: tax is proportional to each
// line's own declared unit cost, domestic shipping is an equal split across
// all billable units, and international shipping follows each line's share of
// the total shipment weight.
//
// All functions are total: degenerate denominators (no units, no weight,
// unknown items) produce zero allocations, never an error. Running Allocate
// on its own output reproduces the same result.
package allocation

import "glowbooks/backend/internal/domain"

// Footer carries a purchase's allocatable totals.
type Footer struct {
	Tax          float64
	ShippingUS   float64
	ShippingIntl float64
}

// WeightFunc resolves an item's per-unit weight in pounds. Implementations
// must return 0 for unknown items; such lines still participate in the
// unit-based splits.
type WeightFunc func(itemID string) float64

// BillableUnits returns the allocation denominator for one line: the parent
// quantity plus, for bundles, the billable sub-units. Note the sum, not a
// product: subItemsQty counts extra billable units in total, not per parent.
func BillableUnits(line domain.PurchaseLine) int {
	if line.HasSubItems {
		return line.Quantity + line.SubItemsQty
	}
	return line.Quantity
}

// TotalUnits sums billable units over all lines.
func TotalUnits(lines []domain.PurchaseLine) int {
	total := 0
	for _, line := range lines {
		total += BillableUnits(line)
	}
	return total
}

// TotalWeight sums line weight (item weight times billable units) over all
// lines.
func TotalWeight(lines []domain.PurchaseLine, weightOf WeightFunc) float64 {
	total := 0.0
	for _, line := range lines {
		total += weightOf(line.ItemID) * float64(BillableUnits(line))
	}
	return total
}

// Allocate computes the derived per-unit fields for every line and returns a
// new slice; the input is not modified.
func Allocate(lines []domain.PurchaseLine, footer Footer, weightOf WeightFunc, taxRatePercent float64) []domain.PurchaseLine {
	totalUnits := TotalUnits(lines)
	totalWeight := TotalWeight(lines, weightOf)

	allocated := make([]domain.PurchaseLine, len(lines))
	for i, line := range lines {
		units := BillableUnits(line)

		// Tax tracks the line's own declared cost, not a redistribution of
		// the footer tax. The two reconcile only when the footer tax was
		// itself derived as subtotal * rate.
		line.PerUnitTax = line.UnitCost * (taxRatePercent / 100)

		line.PerUnitShippingUS = 0
		if footer.ShippingUS > 0 && totalUnits > 0 {
			line.PerUnitShippingUS = footer.ShippingUS / float64(totalUnits)
		}

		line.PerUnitShippingIntl = 0
		if units > 0 && totalWeight > 0 {
			lineWeight := weightOf(line.ItemID) * float64(units)
			weightRatio := lineWeight / totalWeight
			line.PerUnitShippingIntl = (footer.ShippingIntl * weightRatio) / float64(units)
		}

		line.UnitCostPostShipping = line.UnitCost + line.PerUnitTax + line.PerUnitShippingUS + line.PerUnitShippingIntl
		allocated[i] = line
	}

	return allocated
}

// LinesSubtotal is the default purchase subtotal: the sum of quantity times
// unit cost over all lines. Sub-units are billed through the parent quantity,
// so bundles do not inflate the subtotal.
func LinesSubtotal(lines []domain.PurchaseDraftLine) float64 {
	subtotal := 0.0
	for _, line := range lines {
		subtotal += float64(line.Quantity) * line.UnitCost
	}
	return subtotal
}

// AutoTax derives the footer tax from the subtotal when the caller did not
// override it.
func AutoTax(subtotal float64, taxRatePercent float64) float64 {
	return subtotal * (taxRatePercent / 100)
}

// AutoShippingIntl derives international shipping from the shipment weight
// when the caller did not override it.
func AutoShippingIntl(weightLbs float64, costPerLb float64) float64 {
	if weightLbs <= 0 || costPerLb <= 0 {
		return 0
	}
	return weightLbs * costPerLb
}
