// Package pricing maps a landed unit cost to a suggested selling-price band.
package pricing

import "math"

// Factors is a markup multiplier pair. Two pairs are in use: ItemEntryFactors
// for manually created items, RecalcFactors for purchase-driven recomputes
// and the recalculation sweep.
type Factors struct {
	Min float64
	Max float64
}

var (
	// ItemEntryFactors applies when an item is entered by hand, before any
	// purchase has established a landed cost.
	ItemEntryFactors = Factors{Min: 1.5, Max: 2.0}

	// RecalcFactors applies whenever pricing is refreshed from a purchase
	// allocation, where the landed cost already carries tax and shipping.
	RecalcFactors = Factors{Min: 1.4, Max: 1.8}
)

// Band is a derived price recommendation.
type Band struct {
	MinPrice  float64
	MaxPrice  float64
	MinProfit float64
	MaxProfit float64
}

// Derive computes the price band for a landed unit cost. Prices round up to
// the whole currency unit; the bias toward higher suggested prices is
// intentional.
func Derive(unitCostPostShipping float64, factors Factors) Band {
	minPrice := math.Ceil(unitCostPostShipping * factors.Min)
	maxPrice := math.Ceil(unitCostPostShipping * factors.Max)
	return Band{
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
		MinProfit: minPrice - unitCostPostShipping,
		MaxProfit: maxPrice - unitCostPostShipping,
	}
}
