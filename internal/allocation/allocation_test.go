package allocation

import (
	"math"
	"testing"

	"glowbooks/backend/internal/domain"
)

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func noWeight(string) float64 { return 0 }

func TestBillableUnits(t *testing.T) {
	tests := []struct {
		name string
		line domain.PurchaseLine
		want int
	}{
		{"plain line", domain.PurchaseLine{Quantity: 4}, 4},
		{"bundle adds sub units", domain.PurchaseLine{Quantity: 3, HasSubItems: true, SubItemsQty: 5}, 8},
		{"sub units ignored without flag", domain.PurchaseLine{Quantity: 3, SubItemsQty: 5}, 3},
		{"zero quantity", domain.PurchaseLine{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BillableUnits(tt.line); got != tt.want {
				t.Fatalf("BillableUnits = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAllocateEqualDomesticSplit(t *testing.T) {
	// Two lines with 3 and 7 billable units; 50 of domestic shipping gives
	// 5.0 per unit on both lines regardless of cost or weight.
	lines := []domain.PurchaseLine{
		{ItemID: "item-a", Quantity: 3, UnitCost: 10},
		{ItemID: "item-b", Quantity: 5, UnitCost: 90, HasSubItems: true, SubItemsQty: 2},
	}
	weights := map[string]float64{"item-a": 0.2, "item-b": 2.5}
	weightOf := func(id string) float64 { return weights[id] }

	allocated := Allocate(lines, Footer{ShippingUS: 50}, weightOf, 0)

	for i, line := range allocated {
		if !almostEqual(line.PerUnitShippingUS, 5.0, 1e-9) {
			t.Fatalf("line %d PerUnitShippingUS = %v, want 5.0", i, line.PerUnitShippingUS)
		}
	}
}

func TestAllocateWeightBasedIntlSplit(t *testing.T) {
	// Items weighing 1lb and 3lb, 2 units each: line weights 2 and 6 of a
	// total 8. 40 of intl shipping splits to (40*2/8)/2 = 5.0 and
	// (40*6/8)/2 = 15.0 per unit.
	lines := []domain.PurchaseLine{
		{ItemID: "light", Quantity: 2, UnitCost: 12},
		{ItemID: "heavy", Quantity: 2, UnitCost: 30},
	}
	weights := map[string]float64{"light": 1, "heavy": 3}
	weightOf := func(id string) float64 { return weights[id] }

	allocated := Allocate(lines, Footer{ShippingIntl: 40}, weightOf, 0)

	if !almostEqual(allocated[0].PerUnitShippingIntl, 5.0, 1e-9) {
		t.Fatalf("light line PerUnitShippingIntl = %v, want 5.0", allocated[0].PerUnitShippingIntl)
	}
	if !almostEqual(allocated[1].PerUnitShippingIntl, 15.0, 1e-9) {
		t.Fatalf("heavy line PerUnitShippingIntl = %v, want 15.0", allocated[1].PerUnitShippingIntl)
	}
}

func TestAllocateTaxFollowsLineCost(t *testing.T) {
	lines := []domain.PurchaseLine{
		{ItemID: "a", Quantity: 1, UnitCost: 100},
		{ItemID: "b", Quantity: 4, UnitCost: 8},
	}

	allocated := Allocate(lines, Footer{}, noWeight, 8.775)

	if !almostEqual(allocated[0].PerUnitTax, 8.775, 1e-9) {
		t.Fatalf("PerUnitTax = %v, want 8.775", allocated[0].PerUnitTax)
	}
	if !almostEqual(allocated[1].PerUnitTax, 0.702, 1e-9) {
		t.Fatalf("PerUnitTax = %v, want 0.702", allocated[1].PerUnitTax)
	}
}

func TestAllocateLandedCostInvariant(t *testing.T) {
	lines := []domain.PurchaseLine{
		{ItemID: "a", Quantity: 3, UnitCost: 21.5},
		{ItemID: "b", Quantity: 2, UnitCost: 7.25, HasSubItems: true, SubItemsQty: 4},
	}
	weights := map[string]float64{"a": 0.5, "b": 1.2}
	weightOf := func(id string) float64 { return weights[id] }

	allocated := Allocate(lines, Footer{Tax: 9, ShippingUS: 18, ShippingIntl: 33}, weightOf, 8.775)

	for i, line := range allocated {
		want := line.UnitCost + line.PerUnitTax + line.PerUnitShippingUS + line.PerUnitShippingIntl
		if !almostEqual(line.UnitCostPostShipping, want, 1e-4) {
			t.Fatalf("line %d UnitCostPostShipping = %v, want %v", i, line.UnitCostPostShipping, want)
		}
	}
}

func TestAllocateReconciliation(t *testing.T) {
	// When tax and intl shipping were auto-derived, per-unit sums must
	// reconcile with the footer totals within a cent.
	lines := []domain.PurchaseLine{
		{ItemID: "serum", Quantity: 6, UnitCost: 14.99},
		{ItemID: "mask", Quantity: 3, UnitCost: 4.5, HasSubItems: true, SubItemsQty: 9},
		{ItemID: "cream", Quantity: 2, UnitCost: 32},
	}
	weights := map[string]float64{"serum": 0.35, "mask": 0.1, "cream": 0.9}
	weightOf := func(id string) float64 { return weights[id] }

	rate := 8.775
	subtotal := 0.0
	for _, line := range lines {
		subtotal += float64(line.Quantity) * line.UnitCost
	}
	totalWeight := TotalWeight(lines, weightOf)
	footer := Footer{
		Tax:          AutoTax(subtotal, rate),
		ShippingUS:   25,
		ShippingIntl: AutoShippingIntl(totalWeight, 7),
	}

	allocated := Allocate(lines, footer, weightOf, rate)

	var sumUS, sumIntl float64
	for _, line := range allocated {
		units := float64(BillableUnits(line))
		sumUS += line.PerUnitShippingUS * units
		sumIntl += line.PerUnitShippingIntl * units
	}
	if !almostEqual(sumUS, footer.ShippingUS, 0.01) {
		t.Fatalf("US shipping sum %v does not reconcile with footer %v", sumUS, footer.ShippingUS)
	}
	if !almostEqual(sumIntl, footer.ShippingIntl, 0.01) {
		t.Fatalf("intl shipping sum %v does not reconcile with footer %v", sumIntl, footer.ShippingIntl)
	}

	// Per-line tax times parent quantity reconciles with the auto-derived
	// footer tax: the footer was computed from quantity*unitCost.
	var sumTax float64
	for _, line := range allocated {
		sumTax += line.PerUnitTax * float64(line.Quantity)
	}
	if !almostEqual(sumTax, footer.Tax, 0.01) {
		t.Fatalf("tax sum %v does not reconcile with footer %v", sumTax, footer.Tax)
	}
}

func TestAllocateIdempotent(t *testing.T) {
	lines := []domain.PurchaseLine{
		{ItemID: "a", Quantity: 2, UnitCost: 10},
		{ItemID: "b", Quantity: 1, UnitCost: 55, HasSubItems: true, SubItemsQty: 3},
	}
	weights := map[string]float64{"a": 1, "b": 2}
	weightOf := func(id string) float64 { return weights[id] }
	footer := Footer{Tax: 5, ShippingUS: 12, ShippingIntl: 20}

	once := Allocate(lines, footer, weightOf, 8.775)
	twice := Allocate(once, footer, weightOf, 8.775)

	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("line %d changed on re-allocation: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestAllocateZeroDivisionSafety(t *testing.T) {
	t.Run("no units", func(t *testing.T) {
		lines := []domain.PurchaseLine{{ItemID: "a", Quantity: 0}}
		allocated := Allocate(lines, Footer{ShippingUS: 50, ShippingIntl: 40}, noWeight, 8.775)
		line := allocated[0]
		for _, v := range []float64{line.PerUnitShippingUS, line.PerUnitShippingIntl, line.UnitCostPostShipping} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("allocation produced NaN/Inf: %+v", line)
			}
		}
		if line.PerUnitShippingUS != 0 || line.PerUnitShippingIntl != 0 {
			t.Fatalf("expected zero shipping allocation, got %+v", line)
		}
	})

	t.Run("no weight", func(t *testing.T) {
		lines := []domain.PurchaseLine{
			{ItemID: "a", Quantity: 2, UnitCost: 10},
			{ItemID: "b", Quantity: 3, UnitCost: 5},
		}
		allocated := Allocate(lines, Footer{ShippingIntl: 40}, noWeight, 0)
		for i, line := range allocated {
			if line.PerUnitShippingIntl != 0 {
				t.Fatalf("line %d expected zero intl allocation with zero weight, got %v", i, line.PerUnitShippingIntl)
			}
		}
	})

	t.Run("unknown item participates in unit splits only", func(t *testing.T) {
		weights := map[string]float64{"known": 2}
		weightOf := func(id string) float64 { return weights[id] }
		lines := []domain.PurchaseLine{
			{ItemID: "known", Quantity: 2, UnitCost: 10},
			{ItemID: "ghost", Quantity: 2, UnitCost: 10},
		}
		allocated := Allocate(lines, Footer{ShippingUS: 8, ShippingIntl: 40}, weightOf, 0)
		if allocated[1].PerUnitShippingUS != 2 {
			t.Fatalf("ghost line PerUnitShippingUS = %v, want 2", allocated[1].PerUnitShippingUS)
		}
		if allocated[1].PerUnitShippingIntl != 0 {
			t.Fatalf("ghost line PerUnitShippingIntl = %v, want 0", allocated[1].PerUnitShippingIntl)
		}
		// The known line absorbs the full intl total.
		if !almostEqual(allocated[0].PerUnitShippingIntl*2, 40, 1e-9) {
			t.Fatalf("known line should absorb full intl shipping, got per-unit %v", allocated[0].PerUnitShippingIntl)
		}
	})
}

func TestLinesSubtotal(t *testing.T) {
	lines := []domain.PurchaseDraftLine{
		{Quantity: 3, UnitCost: 10.5},
		{Quantity: 2, UnitCost: 4, HasSubItems: true, SubItemsQty: 6},
	}
	if got := LinesSubtotal(lines); !almostEqual(got, 39.5, 1e-9) {
		t.Fatalf("LinesSubtotal = %v, want 39.5", got)
	}
}

func TestAutoShippingIntl(t *testing.T) {
	if got := AutoShippingIntl(4.5, 7); !almostEqual(got, 31.5, 1e-9) {
		t.Fatalf("AutoShippingIntl = %v, want 31.5", got)
	}
	if got := AutoShippingIntl(0, 7); got != 0 {
		t.Fatalf("AutoShippingIntl with zero weight = %v, want 0", got)
	}
}
