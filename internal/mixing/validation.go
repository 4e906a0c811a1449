package mixing

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"agromix/pkg/domain"
)

// MaxTanks bounds the plan size. Jobs needing more tank loads than this are
// rejected as input errors; they come from a mistyped capacity or area.
const MaxTanks = 10000

// ValidationErrors collects every problem found in a CalculationInput. Field
// messages are empty when the field is valid. It is always recoverable: callers
// re-prompt the user rather than treat it as a system fault.
type ValidationErrors struct {
	AreaHa        string
	RateLPerHa    string
	TankCapacityL string
	Products      string
	// TotalVolume is set when the job is out of range as a whole: a volume
	// that does not fit in a float64 or more than MaxTanks tank loads.
	TotalVolume string
	// ProductDoses, ProductModes and ProductUnits map product index to its
	// message for that field.
	ProductDoses map[int]string
	ProductModes map[int]string
	ProductUnits map[int]string
	Messages     []string
}

func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Messages) == 0 {
		return "invalid calculation input"
	}
	return "invalid calculation input: " + strings.Join(v.Messages, "; ")
}

// Empty reports whether no violation was recorded.
func (v *ValidationErrors) Empty() bool {
	return v == nil || len(v.Messages) == 0
}

// FieldErrors flattens the per-field messages into a map keyed by JSON field
// path, e.g. "area_ha" or "products[1].dose".
func (v *ValidationErrors) FieldErrors() map[string]string {
	out := make(map[string]string)
	if v == nil {
		return out
	}
	if v.AreaHa != "" {
		out["area_ha"] = v.AreaHa
	}
	if v.RateLPerHa != "" {
		out["rate_l_per_ha"] = v.RateLPerHa
	}
	if v.TankCapacityL != "" {
		out["tank_capacity_l"] = v.TankCapacityL
	}
	if v.Products != "" {
		out["products"] = v.Products
	}
	if v.TotalVolume != "" {
		out["total_volume_l"] = v.TotalVolume
	}
	for idx, msg := range v.ProductDoses {
		out[fmt.Sprintf("products[%d].dose", idx)] = msg
	}
	for idx, msg := range v.ProductModes {
		out[fmt.Sprintf("products[%d].mode", idx)] = msg
	}
	for idx, msg := range v.ProductUnits {
		out[fmt.Sprintf("products[%d].unit", idx)] = msg
	}
	return out
}

// Validate checks the input eagerly and returns nil when it is computable.
func Validate(input domain.CalculationInput) *ValidationErrors {
	v := &ValidationErrors{}
	v.AreaHa = positive(input.AreaHa, "Area must be greater than zero")
	v.RateLPerHa = positive(input.RateLPerHa, "Application rate must be greater than zero")
	v.TankCapacityL = positive(input.TankCapacityL, "Tank capacity must be greater than zero")
	for _, msg := range []string{v.AreaHa, v.RateLPerHa, v.TankCapacityL} {
		if msg != "" {
			v.Messages = append(v.Messages, msg)
		}
	}
	sized := v.AreaHa == "" && v.RateLPerHa == "" && v.TankCapacityL == ""
	if sized {
		v.TotalVolume = planSize(input)
		if v.TotalVolume != "" {
			v.Messages = append(v.Messages, v.TotalVolume)
			sized = false
		}
	}

	if len(input.Products) == 0 {
		v.Products = "Add at least one product"
		v.Messages = append(v.Messages, v.Products)
	}
	for i, p := range input.Products {
		label := productLabel(p, i)
		if msg := positive(p.Dose, fmt.Sprintf("Dose for %s must be greater than zero", label)); msg != "" {
			v.ProductDoses = setIndexed(v.ProductDoses, i, msg)
		} else if sized && !finiteQuantity(p, input) {
			v.ProductDoses = setIndexed(v.ProductDoses, i, fmt.Sprintf("Dose for %s is too large", label))
		}
		if !p.Mode.Valid() {
			v.ProductModes = setIndexed(v.ProductModes, i,
				fmt.Sprintf("Dose mode for %s must be %s or %s", label, domain.DosePerArea, domain.DosePerVolume))
		}
		if !p.Unit.Valid() {
			v.ProductUnits = setIndexed(v.ProductUnits, i, fmt.Sprintf("Unit for %s is not supported", label))
		}
	}
	for _, idx := range productIndexes(v) {
		for _, m := range []map[int]string{v.ProductDoses, v.ProductModes, v.ProductUnits} {
			if msg := m[idx]; msg != "" {
				v.Messages = append(v.Messages, msg)
			}
		}
	}

	if v.Empty() {
		return nil
	}
	return v
}

// planSize rejects jobs whose total volume overflows or underflows, or whose
// tank count exceeds MaxTanks. The three numeric fields are already known positive.
func planSize(input domain.CalculationInput) string {
	total := input.AreaHa * input.RateLPerHa
	if math.IsInf(total, 0) || math.IsNaN(total) {
		return "Total spray volume is too large"
	}
	if total <= 0 {
		return "Total spray volume is too small"
	}
	if tanks := math.Ceil(total / input.TankCapacityL); tanks > MaxTanks {
		return fmt.Sprintf("Job needs more than %d tank loads; check area, rate and tank capacity", MaxTanks)
	}
	return ""
}

// finiteQuantity reports whether the product's job total fits in a float64.
// Per-tank quantities never exceed the total, so they fit as well.
func finiteQuantity(p domain.Product, input domain.CalculationInput) bool {
	q := totalQuantity(p, input.AreaHa, input.AreaHa*input.RateLPerHa)
	return !math.IsInf(q, 0) && !math.IsNaN(q)
}

func setIndexed(m map[int]string, idx int, msg string) map[int]string {
	if m == nil {
		m = make(map[int]string)
	}
	m[idx] = msg
	return m
}

func productIndexes(v *ValidationErrors) []int {
	seen := make(map[int]bool)
	for _, m := range []map[int]string{v.ProductDoses, v.ProductModes, v.ProductUnits} {
		for idx := range m {
			seen[idx] = true
		}
	}
	indexes := make([]int, 0, len(seen))
	for idx := range seen {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	return indexes
}

func positive(value float64, msg string) string {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return msg
	}
	return ""
}
