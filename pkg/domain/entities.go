// Package domain defines the spray-mix value types, the persisted entities and
// the storage boundaries shared by the agromix engine and persistence layers.
package domain

import (
	"time"
)

// EntityKind identifies the type of record handled by the persistence facade.
type EntityKind string

// Supported entity kinds used in change events, local collection keys and metrics labels.
const (
	// EntityCalculation identifies a saved mixing calculation.
	EntityCalculation EntityKind = "calculation"
	// EntityOperation identifies a field-work operation record.
	EntityOperation EntityKind = "operation"
	// EntityRecipe identifies a reusable calculation template.
	EntityRecipe EntityKind = "recipe"
	// EntityCustomProduct identifies a user-authored catalog entry.
	EntityCustomProduct EntityKind = "custom_product"
)

// EntityKinds lists every persisted entity kind.
func EntityKinds() []EntityKind {
	return []EntityKind{EntityCalculation, EntityOperation, EntityRecipe, EntityCustomProduct}
}

// Table returns the remote table (or collection) name for the entity kind.
func (k EntityKind) Table() string {
	switch k {
	case EntityCalculation:
		return "calculations"
	case EntityOperation:
		return "operations"
	case EntityRecipe:
		return "recipes"
	case EntityCustomProduct:
		return "custom_products"
	default:
		return string(k) + "s"
	}
}

// DoseMode selects whether a product dose is expressed per hectare or per litre of mixture.
type DoseMode string

const (
	// DosePerArea means the dose is applied per hectare of field.
	DosePerArea DoseMode = "per_area"
	// DosePerVolume means the dose is applied per litre of tank mixture.
	DosePerVolume DoseMode = "per_volume"
)

// Valid reports whether the mode is one of the supported dose modes.
func (m DoseMode) Valid() bool {
	return m == DosePerArea || m == DosePerVolume
}

// Unit is the measuring unit of a product quantity.
type Unit string

// Supported product units.
const (
	UnitMilliliter Unit = "mL"
	UnitLiter      Unit = "L"
	UnitGram       Unit = "g"
	UnitKilogram   Unit = "kg"
)

// Valid reports whether the unit is supported.
func (u Unit) Valid() bool {
	switch u {
	case UnitMilliliter, UnitLiter, UnitGram, UnitKilogram:
		return true
	}
	return false
}

// Product is one line item of a tank mix.
type Product struct {
	Name string   `json:"name"`
	Mode DoseMode `json:"mode"`
	Dose float64  `json:"dose"`
	Unit Unit     `json:"unit"`
}

// CalculationInput describes the job handed to the mixing engine. Product order
// is preserved in the result for display.
type CalculationInput struct {
	AreaHa        float64   `json:"area_ha"`
	RateLPerHa    float64   `json:"rate_l_per_ha"`
	TankCapacityL float64   `json:"tank_capacity_l"`
	Products      []Product `json:"products"`
}

// ProductTotal is the whole-job quantity of one product.
type ProductTotal struct {
	ProductName   string  `json:"product_name"`
	TotalQuantity float64 `json:"total_quantity"`
	Unit          Unit    `json:"unit"`
}

// ProductQuantity is the quantity of one product loaded into a single tank.
type ProductQuantity struct {
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	Unit        Unit    `json:"unit"`
}

// TankLoad is the dosing plan for one tank. TankNumber is 1-based.
type TankLoad struct {
	TankNumber int               `json:"tank_number"`
	Volume     float64           `json:"volume"`
	Products   []ProductQuantity `json:"products"`
}

// CalculationResult is the tank-by-tank dosing plan produced by the engine.
type CalculationResult struct {
	TotalVolumeL    float64        `json:"total_volume_l"`
	TankCount       int            `json:"tank_count"`
	VolumePerTank   []float64      `json:"volume_per_tank"`
	ProductTotals   []ProductTotal `json:"product_totals"`
	ProductsPerTank []TankLoad     `json:"products_per_tank"`
}

// Record carries identity and ownership metadata shared by all persisted entities.
type Record struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SavedCalculation wraps an input and its computed result. It is never mutated after save.
type SavedCalculation struct {
	Record
	Title  string            `json:"title"`
	Input  CalculationInput  `json:"input"`
	Result CalculationResult `json:"result"`
}

// OperationStatus tracks whether a field operation has been carried out.
type OperationStatus string

const (
	OperationPlanned   OperationStatus = "planned"
	OperationCompleted OperationStatus = "completed"
)

// Operation is a field-work record. TotalVolumeL and TotalProductQuantity are
// derived at write time and never edited independently.
type Operation struct {
	Record
	OperationName        string          `json:"operation_name"`
	ClientName           string          `json:"client_name"`
	FarmName             string          `json:"farm_name"`
	FieldName            string          `json:"field_name"`
	Location             *string         `json:"location,omitempty"`
	Crop                 string          `json:"crop"`
	TargetPest           string          `json:"target_pest"`
	ProductName          string          `json:"product_name"`
	ProductID            *string         `json:"product_id,omitempty"`
	AreaHa               float64         `json:"area_ha"`
	DoseValue            float64         `json:"dose_value"`
	DoseUnit             Unit            `json:"dose_unit"`
	VolumeLPerHa         float64         `json:"volume_l_per_ha"`
	DroneModel           *string         `json:"drone_model,omitempty"`
	Date                 time.Time       `json:"date"`
	Status               OperationStatus `json:"status"`
	PriceCharged         float64         `json:"price_charged"`
	TotalVolumeL         float64         `json:"total_volume_l"`
	TotalProductQuantity float64         `json:"total_product_quantity"`
}

// Recipe is a named, reusable calculation template. Recipes are private to
// their owner unless IsPublic is set.
type Recipe struct {
	Record
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Input       CalculationInput `json:"input"`
	Tags        []string         `json:"tags"`
	IsPublic    bool             `json:"is_public"`
}

// ProductCategory classifies catalog products.
type ProductCategory string

// Supported product categories.
const (
	CategoryHerbicide   ProductCategory = "Herbicide"
	CategoryInsecticide ProductCategory = "Insecticide"
	CategoryFungicide   ProductCategory = "Fungicide"
	CategoryFertilizer  ProductCategory = "Fertilizer"
	CategoryAdjuvant    ProductCategory = "Adjuvant"
)

// Valid reports whether the category is one of the supported catalog categories.
func (c ProductCategory) Valid() bool {
	switch c {
	case CategoryHerbicide, CategoryInsecticide, CategoryFungicide, CategoryFertilizer, CategoryAdjuvant:
		return true
	}
	return false
}

// CustomProduct is a catalog entry authored by a single user and never shared.
type CustomProduct struct {
	Record
	Name            string          `json:"name"`
	Category        ProductCategory `json:"category"`
	Description     string          `json:"description"`
	DoseValue       float64         `json:"dose_value"`
	DoseUnit        Unit            `json:"dose_unit"`
	DoseMin         *float64        `json:"dose_min,omitempty"`
	DoseMax         *float64        `json:"dose_max,omitempty"`
	Recommendations *string         `json:"recommendations,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	ImageURL        *string         `json:"image_url,omitempty"`
}

// CatalogEntry is one row of the unified product catalog (built-in plus custom).
type CatalogEntry struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    ProductCategory `json:"category"`
	Description string          `json:"description,omitempty"`
	DoseValue   float64         `json:"dose_value"`
	DoseUnit    Unit            `json:"dose_unit"`
	DoseMin     *float64        `json:"dose_min,omitempty"`
	DoseMax     *float64        `json:"dose_max,omitempty"`
	Custom      bool            `json:"custom"`
}
