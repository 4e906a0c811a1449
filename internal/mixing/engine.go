// Package mixing turns a spray job (area, application rate, tank capacity and
// product doses) into a tank-by-tank dosing plan.
//
// The engine is pure: no I/O, no rounding, identical output for identical
// input. Rounding for display is left to callers through Round.
package mixing

import (
	"fmt"
	"math"
	"strings"

	"agromix/pkg/domain"
)

// Compute validates input and produces the dosing plan. When the input is
// invalid the returned error is a *ValidationErrors and the result is zero.
func Compute(input domain.CalculationInput) (domain.CalculationResult, error) {
	if verr := Validate(input); verr != nil {
		return domain.CalculationResult{}, verr
	}

	totalVolume := input.AreaHa * input.RateLPerHa
	tankCount := int(math.Ceil(totalVolume / input.TankCapacityL))
	if tankCount < 1 {
		tankCount = 1
	}

	volumes := make([]float64, tankCount)
	for i := 0; i < tankCount-1; i++ {
		volumes[i] = input.TankCapacityL
	}
	// An exact multiple leaves a full last tank, never an empty extra one.
	volumes[tankCount-1] = totalVolume - input.TankCapacityL*float64(tankCount-1)

	names := make([]string, len(input.Products))
	totals := make([]domain.ProductTotal, len(input.Products))
	for i, p := range input.Products {
		names[i] = productLabel(p, i)
		totals[i] = domain.ProductTotal{
			ProductName:   names[i],
			TotalQuantity: totalQuantity(p, input.AreaHa, totalVolume),
			Unit:          p.Unit,
		}
	}

	tanks := make([]domain.TankLoad, tankCount)
	for t, volume := range volumes {
		load := domain.TankLoad{
			TankNumber: t + 1,
			Volume:     volume,
			Products:   make([]domain.ProductQuantity, len(input.Products)),
		}
		for i, p := range input.Products {
			load.Products[i] = domain.ProductQuantity{
				ProductName: names[i],
				Quantity:    tankQuantity(p, volume, input.RateLPerHa),
				Unit:        p.Unit,
			}
		}
		tanks[t] = load
	}

	return domain.CalculationResult{
		TotalVolumeL:    totalVolume,
		TankCount:       tankCount,
		VolumePerTank:   volumes,
		ProductTotals:   totals,
		ProductsPerTank: tanks,
	}, nil
}

// totalQuantity is computed from the job totals, not by summing tanks, so
// per-tank float error does not compound.
func totalQuantity(p domain.Product, areaHa, totalVolume float64) float64 {
	if p.Mode == domain.DosePerVolume {
		return p.Dose * totalVolume
	}
	return p.Dose * areaHa
}

func tankQuantity(p domain.Product, tankVolume, rateLPerHa float64) float64 {
	if p.Mode == domain.DosePerVolume {
		return p.Dose * tankVolume
	}
	return p.Dose * (tankVolume / rateLPerHa)
}

func productLabel(p domain.Product, index int) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return fmt.Sprintf("Product %d", index+1)
}
