package core

import (
	"sort"
	"strings"

	"agromix/pkg/domain"
)

func ptr(v float64) *float64 { return &v }

// BuiltinCatalog returns the static product list shipped with the service.
func BuiltinCatalog() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{ID: "builtin-glyphosate", Name: "Glyphosate 480 SL", Category: domain.CategoryHerbicide, DoseValue: 2, DoseUnit: domain.UnitLiter, DoseMin: ptr(1), DoseMax: ptr(4), Description: "Non-selective systemic herbicide"},
		{ID: "builtin-24d", Name: "2,4-D Amine 806", Category: domain.CategoryHerbicide, DoseValue: 1, DoseUnit: domain.UnitLiter, DoseMin: ptr(0.5), DoseMax: ptr(1.5), Description: "Selective broadleaf herbicide"},
		{ID: "builtin-lambda", Name: "Lambda-cyhalothrin 50 CS", Category: domain.CategoryInsecticide, DoseValue: 150, DoseUnit: domain.UnitMilliliter, DoseMin: ptr(100), DoseMax: ptr(200), Description: "Pyrethroid contact insecticide"},
		{ID: "builtin-chlorantraniliprole", Name: "Chlorantraniliprole 200 SC", Category: domain.CategoryInsecticide, DoseValue: 50, DoseUnit: domain.UnitMilliliter, DoseMin: ptr(40), DoseMax: ptr(60), Description: "Diamide larvicide"},
		{ID: "builtin-azoxystrobin", Name: "Azoxystrobin + Cyproconazole", Category: domain.CategoryFungicide, DoseValue: 300, DoseUnit: domain.UnitMilliliter, DoseMin: ptr(250), DoseMax: ptr(400), Description: "Strobilurin and triazole fungicide"},
		{ID: "builtin-mancozeb", Name: "Mancozeb 800 WP", Category: domain.CategoryFungicide, DoseValue: 2, DoseUnit: domain.UnitKilogram, DoseMin: ptr(1.5), DoseMax: ptr(3), Description: "Protective contact fungicide"},
		{ID: "builtin-foliar-npk", Name: "Foliar NPK 10-10-10", Category: domain.CategoryFertilizer, DoseValue: 2, DoseUnit: domain.UnitLiter, Description: "Balanced foliar fertilizer"},
		{ID: "builtin-boron", Name: "Boron 10%", Category: domain.CategoryFertilizer, DoseValue: 500, DoseUnit: domain.UnitGram, Description: "Micronutrient supplement"},
		{ID: "builtin-mineral-oil", Name: "Mineral Oil Adjuvant", Category: domain.CategoryAdjuvant, DoseValue: 0.5, DoseUnit: domain.UnitLiter, DoseMin: ptr(0.25), DoseMax: ptr(1), Description: "Spreader and drift reducer"},
		{ID: "builtin-silicone", Name: "Silicone Surfactant", Category: domain.CategoryAdjuvant, DoseValue: 50, DoseUnit: domain.UnitMilliliter, Description: "Organosilicone wetting agent"},
	}
}

// MergeCatalog returns builtin entries plus custom products converted to
// catalog entries, sorted case-insensitively by name.
func MergeCatalog(builtin []domain.CatalogEntry, custom []domain.CustomProduct) []domain.CatalogEntry {
	out := make([]domain.CatalogEntry, 0, len(builtin)+len(custom))
	out = append(out, builtin...)
	for _, p := range custom {
		out = append(out, domain.CatalogEntry{
			ID:          p.ID,
			Name:        p.Name,
			Category:    p.Category,
			Description: p.Description,
			DoseValue:   p.DoseValue,
			DoseUnit:    p.DoseUnit,
			DoseMin:     p.DoseMin,
			DoseMax:     p.DoseMax,
			Custom:      true,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
