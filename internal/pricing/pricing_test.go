package pricing

import (
	"math"
	"testing"
)

func TestDeriveRoundsUp(t *testing.T) {
	tests := []struct {
		name    string
		cost    float64
		factors Factors
		wantMin float64
		wantMax float64
	}{
		{"fractional cost rounds up", 10.10, Factors{Min: 1.4, Max: 1.8}, 15, 19},
		{"exact multiples stay put", 10, Factors{Min: 1.5, Max: 2.0}, 15, 20},
		{"zero cost", 0, Factors{Min: 1.5, Max: 2.0}, 0, 0},
		{"small cost still ceils", 0.10, Factors{Min: 1.4, Max: 1.8}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			band := Derive(tt.cost, tt.factors)
			if band.MinPrice != tt.wantMin || band.MaxPrice != tt.wantMax {
				t.Fatalf("Derive(%v) = min %v max %v, want min %v max %v",
					tt.cost, band.MinPrice, band.MaxPrice, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestDeriveProfitIsPriceMinusCost(t *testing.T) {
	cost := 12.37
	band := Derive(cost, RecalcFactors)
	if math.Abs(band.MinProfit-(band.MinPrice-cost)) > 1e-9 {
		t.Fatalf("MinProfit = %v, want %v", band.MinProfit, band.MinPrice-cost)
	}
	if math.Abs(band.MaxProfit-(band.MaxPrice-cost)) > 1e-9 {
		t.Fatalf("MaxProfit = %v, want %v", band.MaxProfit, band.MaxPrice-cost)
	}
	if band.MinProfit < 0 || band.MaxProfit < band.MinProfit {
		t.Fatalf("profit band out of order: %+v", band)
	}
}

func TestFactorPairsDiffer(t *testing.T) {
	// Manual item entry uses the steeper pair; purchase-driven recomputes use
	// the flatter one. The distinction must survive refactors because the two
	// call sites price different cost baselines.
	if ItemEntryFactors == RecalcFactors {
		t.Fatal("ItemEntryFactors and RecalcFactors must remain distinct pairs")
	}
	if ItemEntryFactors.Min <= 1 || RecalcFactors.Min <= 1 {
		t.Fatal("markup factors must exceed 1")
	}
}
