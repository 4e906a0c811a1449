package mixing

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"agromix/pkg/domain"
	"agromix/testutil"
)

func approxEqual(a, b float64) bool {
	diff := math.Abs(a - b)
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return diff <= 1e-9*scale
}

func TestComputeExactMultipleOfCapacity(t *testing.T) {
	res, err := Compute(domain.CalculationInput{
		AreaHa:        10,
		RateLPerHa:    10,
		TankCapacityL: 10,
		Products:      []domain.Product{{Name: "Glyphosate", Mode: domain.DosePerArea, Dose: 2.5, Unit: domain.UnitLiter}},
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.TotalVolumeL != 100 || res.TankCount != 10 {
		t.Fatalf("expected 100 L over 10 tanks, got %v L over %d", res.TotalVolumeL, res.TankCount)
	}
	for i, v := range res.VolumePerTank {
		if v != 10 {
			t.Fatalf("tank %d: expected 10 L, got %v", i+1, v)
		}
	}
	if len(res.ProductTotals) != 1 || res.ProductTotals[0].TotalQuantity != 25 || res.ProductTotals[0].Unit != domain.UnitLiter {
		t.Fatalf("unexpected totals %+v", res.ProductTotals)
	}
	for _, tank := range res.ProductsPerTank {
		if tank.Products[0].Quantity != 2.5 {
			t.Fatalf("tank %d: expected 2.5 L, got %v", tank.TankNumber, tank.Products[0].Quantity)
		}
	}
}

func TestComputeRemainderTank(t *testing.T) {
	res, err := Compute(domain.CalculationInput{
		AreaHa:        12.5,
		RateLPerHa:    10,
		TankCapacityL: 100,
		Products:      []domain.Product{{Mode: domain.DosePerVolume, Dose: 0.5, Unit: domain.UnitMilliliter}},
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.TotalVolumeL != 125 || res.TankCount != 2 {
		t.Fatalf("expected 125 L in 2 tanks, got %+v", res)
	}
	if !reflect.DeepEqual(res.VolumePerTank, []float64{100, 25}) {
		t.Fatalf("unexpected volumes %v", res.VolumePerTank)
	}
	if got := res.ProductsPerTank[1].Products[0].Quantity; got != 12.5 {
		t.Fatalf("expected 12.5 mL in last tank, got %v", got)
	}
	if res.ProductTotals[0].ProductName != "Product 1" {
		t.Fatalf("expected synthesized name, got %q", res.ProductTotals[0].ProductName)
	}
}

func TestComputeSingleTankWhenBelowCapacity(t *testing.T) {
	res, err := Compute(domain.CalculationInput{
		AreaHa: 0.5, RateLPerHa: 8, TankCapacityL: 40,
		Products: []domain.Product{{Name: "A", Mode: domain.DosePerArea, Dose: 1, Unit: domain.UnitKilogram}},
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.TankCount != 1 || res.VolumePerTank[0] != 4 {
		t.Fatalf("expected one 4 L tank, got %+v", res.VolumePerTank)
	}
	if res.ProductsPerTank[0].TankNumber != 1 {
		t.Fatalf("expected tank numbering to start at 1")
	}
}

func TestComputeInvariants(t *testing.T) {
	inputs := []domain.CalculationInput{
		{AreaHa: 37.3, RateLPerHa: 9.7, TankCapacityL: 16, Products: []domain.Product{
			{Name: "Herb", Mode: domain.DosePerArea, Dose: 1.35, Unit: domain.UnitLiter},
			{Name: "Oil", Mode: domain.DosePerVolume, Dose: 0.005, Unit: domain.UnitLiter},
		}},
		{AreaHa: 3, RateLPerHa: 20, TankCapacityL: 30, Products: []domain.Product{
			{Name: "Fung", Mode: domain.DosePerArea, Dose: 250, Unit: domain.UnitGram},
		}},
		{AreaHa: 101.01, RateLPerHa: 15, TankCapacityL: 40, Products: []domain.Product{
			{Mode: domain.DosePerVolume, Dose: 2, Unit: domain.UnitMilliliter},
			{Mode: domain.DosePerArea, Dose: 0.3, Unit: domain.UnitKilogram},
		}},
	}
	for _, in := range inputs {
		res, err := Compute(in)
		if err != nil {
			t.Fatalf("compute %+v: %v", in, err)
		}
		if want := int(math.Ceil(res.TotalVolumeL / in.TankCapacityL)); res.TankCount != want {
			t.Fatalf("tank count %d, want %d", res.TankCount, want)
		}
		if len(res.VolumePerTank) != res.TankCount || len(res.ProductsPerTank) != res.TankCount {
			t.Fatalf("length mismatch for %+v", res)
		}
		var sum float64
		for i, v := range res.VolumePerTank {
			if v <= 0 || v > in.TankCapacityL+1e-9 {
				t.Fatalf("tank %d volume %v outside (0, capacity]", i+1, v)
			}
			sum += v
		}
		if !approxEqual(sum, res.TotalVolumeL) {
			t.Fatalf("tank volumes sum to %v, total is %v", sum, res.TotalVolumeL)
		}
		for i := range in.Products {
			var qty float64
			for n, tank := range res.ProductsPerTank {
				if tank.TankNumber != n+1 {
					t.Fatalf("tank numbering out of order at %d", n)
				}
				qty += tank.Products[i].Quantity
			}
			if !approxEqual(qty, res.ProductTotals[i].TotalQuantity) {
				t.Fatalf("product %d: tanks sum to %v, total %v", i, qty, res.ProductTotals[i].TotalQuantity)
			}
		}
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	in := domain.CalculationInput{AreaHa: 7, RateLPerHa: 11, TankCapacityL: 20, Products: []domain.Product{{Name: "X", Mode: domain.DosePerArea, Dose: 3, Unit: domain.UnitLiter}}}
	first, err := Compute(in)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	second, _ := Compute(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results for identical input")
	}
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	dose := func(d float64) []domain.Product {
		return []domain.Product{{Name: "A", Mode: domain.DosePerArea, Dose: d, Unit: domain.UnitLiter}}
	}
	cases := []struct {
		name   string
		input  domain.CalculationInput
		fields []string
	}{
		{"zero area", domain.CalculationInput{AreaHa: 0, RateLPerHa: 10, TankCapacityL: 10, Products: dose(1)}, []string{"area_ha"}},
		{"negative rate", domain.CalculationInput{AreaHa: 1, RateLPerHa: -1, TankCapacityL: 10, Products: dose(1)}, []string{"rate_l_per_ha"}},
		{"zero capacity", domain.CalculationInput{AreaHa: 1, RateLPerHa: 1, Products: dose(1)}, []string{"tank_capacity_l"}},
		{"no products", domain.CalculationInput{AreaHa: 1, RateLPerHa: 1, TankCapacityL: 1}, []string{"products"}},
		{"zero dose", domain.CalculationInput{AreaHa: 1, RateLPerHa: 1, TankCapacityL: 1, Products: dose(0)}, []string{"products[0].dose"}},
		{"nan area", domain.CalculationInput{AreaHa: math.NaN(), RateLPerHa: 1, TankCapacityL: 1, Products: dose(1)}, []string{"area_ha"}},
		{"volume overflow", domain.CalculationInput{AreaHa: 1e308, RateLPerHa: 10, TankCapacityL: 1, Products: dose(1)}, []string{"total_volume_l"}},
		{"volume underflow", domain.CalculationInput{AreaHa: 1e-200, RateLPerHa: 1e-200, TankCapacityL: 1, Products: dose(1)}, []string{"total_volume_l"}},
		{"too many tanks", domain.CalculationInput{AreaHa: 1e6, RateLPerHa: 1e3, TankCapacityL: 1e-6, Products: dose(1)}, []string{"total_volume_l"}},
		{"one tank over the limit", domain.CalculationInput{AreaHa: MaxTanks + 1, RateLPerHa: 1, TankCapacityL: 1, Products: dose(1)}, []string{"total_volume_l"}},
		{"product total overflow", domain.CalculationInput{AreaHa: 10, RateLPerHa: 10, TankCapacityL: 100, Products: dose(math.MaxFloat64)}, []string{"products[0].dose"}},
		{"unknown mode", domain.CalculationInput{AreaHa: 1, RateLPerHa: 1, TankCapacityL: 1, Products: []domain.Product{
			{Name: "A", Mode: "per_tank", Dose: 1, Unit: domain.UnitLiter},
		}}, []string{"products[0].mode"}},
		{"missing mode", domain.CalculationInput{AreaHa: 1, RateLPerHa: 1, TankCapacityL: 1, Products: []domain.Product{
			{Name: "A", Dose: 1, Unit: domain.UnitLiter},
		}}, []string{"products[0].mode"}},
		{"unknown unit", domain.CalculationInput{AreaHa: 1, RateLPerHa: 1, TankCapacityL: 1, Products: []domain.Product{
			{Name: "A", Mode: domain.DosePerVolume, Dose: 1, Unit: "oz"},
		}}, []string{"products[0].unit"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Compute(tc.input)
			var verr *ValidationErrors
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation errors, got %v", err)
			}
			if !reflect.DeepEqual(res, domain.CalculationResult{}) {
				t.Fatalf("expected no result alongside validation errors")
			}
			fields := verr.FieldErrors()
			for _, f := range tc.fields {
				if fields[f] == "" {
					t.Fatalf("expected message for %s, got %v", f, fields)
				}
			}
			if len(fields) != len(tc.fields) {
				t.Fatalf("expected only %v, got %v", tc.fields, fields)
			}
		})
	}
}

func TestComputeAtTankLimit(t *testing.T) {
	res, err := Compute(domain.CalculationInput{
		AreaHa: MaxTanks, RateLPerHa: 1, TankCapacityL: 1,
		Products: []domain.Product{{Name: "A", Mode: domain.DosePerVolume, Dose: 1, Unit: domain.UnitMilliliter}},
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.TankCount != MaxTanks || len(res.ProductsPerTank) != MaxTanks {
		t.Fatalf("expected %d tanks, got %d", MaxTanks, res.TankCount)
	}
}

func TestValidationCollectsAllViolations(t *testing.T) {
	_, err := Compute(domain.CalculationInput{
		AreaHa: -2,
		Products: []domain.Product{
			{Name: "Good", Mode: domain.DosePerArea, Dose: 1, Unit: domain.UnitLiter},
			{Name: "", Mode: domain.DosePerArea, Dose: 0, Unit: domain.UnitLiter},
			{Name: "Bad", Mode: "sideways", Dose: -3, Unit: "oz"},
		},
	})
	var verr *ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if verr.AreaHa == "" || verr.RateLPerHa == "" || verr.TankCapacityL == "" {
		t.Fatalf("expected all numeric fields flagged: %+v", verr)
	}
	if verr.TotalVolume != "" {
		t.Fatalf("plan size is only checked once the numeric fields are valid")
	}
	if len(verr.ProductDoses) != 2 || verr.ProductDoses[1] == "" || verr.ProductDoses[2] == "" {
		t.Fatalf("expected per-index dose messages, got %v", verr.ProductDoses)
	}
	if len(verr.ProductModes) != 1 || len(verr.ProductUnits) != 1 || verr.ProductModes[2] == "" || verr.ProductUnits[2] == "" {
		t.Fatalf("expected mode and unit messages for product 3, got %v %v", verr.ProductModes, verr.ProductUnits)
	}
	want := []string{
		"Area must be greater than zero",
		"Application rate must be greater than zero",
		"Tank capacity must be greater than zero",
		"Dose for Product 2 must be greater than zero",
		"Dose for Bad must be greater than zero",
		"Dose mode for Bad must be per_area or per_volume",
		"Unit for Bad is not supported",
	}
	if !reflect.DeepEqual(verr.Messages, want) {
		t.Fatalf("unexpected ordered messages %q", verr.Messages)
	}
	if verr.Error() == "" {
		t.Fatalf("expected error text")
	}
}

func TestEngineStaysFreeOfIO(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.InfraImportForbidden, testutil.IOImportForbidden), "mixing engine must stay pure")
}
