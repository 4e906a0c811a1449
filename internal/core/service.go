package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"agromix/internal/mixing"
	"agromix/pkg/domain"
)

// Service exposes the mixing engine and the four persisted entity kinds
// behind one surface.
type Service struct {
	calculations   *Facade[domain.SavedCalculation]
	operations     *Facade[domain.Operation]
	recipes        *Facade[domain.Recipe]
	customProducts *Facade[domain.CustomProduct]

	notifier *Notifier
	logger   Logger
	clock    Clock
	catalog  []domain.CatalogEntry
}

// NewService constructs a service persisting through local and, when
// WithRemoteStore is given, a remote backend.
func NewService(local domain.KeyValueStore, opts ...Option) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifier == nil {
		o.notifier = NewNotifier()
	}
	shared := append(append([]Option(nil), opts...), WithNotifier(o.notifier))
	store := NewLocalStore(local, o.logger)

	return &Service{
		calculations: NewFacade(EntityConfig[domain.SavedCalculation]{
			Kind: domain.EntityCalculation,
			Meta: func(c *domain.SavedCalculation) *domain.Record { return &c.Record },
		}, store, shared...),
		operations: NewFacade(EntityConfig[domain.Operation]{
			Kind: domain.EntityOperation,
			Meta: func(op *domain.Operation) *domain.Record { return &op.Record },
		}, store, shared...),
		recipes: NewFacade(EntityConfig[domain.Recipe]{
			Kind:      domain.EntityRecipe,
			Updatable: true,
			Meta:      func(r *domain.Recipe) *domain.Record { return &r.Record },
		}, store, shared...),
		customProducts: NewFacade(EntityConfig[domain.CustomProduct]{
			Kind:      domain.EntityCustomProduct,
			Updatable: true,
			Meta:      func(p *domain.CustomProduct) *domain.Record { return &p.Record },
		}, store, shared...),
		notifier: o.notifier,
		logger:   o.logger,
		clock:    o.clock,
		catalog:  o.catalog,
	}
}

// Notifier returns the change bus the facades publish on.
func (s *Service) Notifier() *Notifier { return s.notifier }

// Subscribe is shorthand for Notifier().Subscribe.
func (s *Service) Subscribe(topic string, handler Handler) func() {
	return s.notifier.Subscribe(topic, handler)
}

// Compute runs the mixing engine.
func (s *Service) Compute(input domain.CalculationInput) (domain.CalculationResult, error) {
	return mixing.Compute(input)
}

// SaveCalculation computes the plan for input and saves it. Validation
// failures are returned before anything is stored.
func (s *Service) SaveCalculation(ctx context.Context, ownerID, title string, input domain.CalculationInput) (domain.SavedCalculation, error) {
	result, err := mixing.Compute(input)
	if err != nil {
		return domain.SavedCalculation{}, err
	}
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("%g ha, %d tank(s)", mixing.Round(input.AreaHa, 2), result.TankCount)
	}
	return s.calculations.Save(ctx, ownerID, domain.SavedCalculation{Title: title, Input: input, Result: result})
}

// ListCalculations returns the owner's saved calculations, newest first.
func (s *Service) ListCalculations(ctx context.Context, ownerID string) []domain.SavedCalculation {
	return s.calculations.List(ctx, ownerID)
}

// FindCalculation looks a saved calculation up by id within the owner's list.
func (s *Service) FindCalculation(ctx context.Context, ownerID, id string) (domain.SavedCalculation, bool) {
	for _, c := range s.calculations.List(ctx, ownerID) {
		if c.ID == id {
			return c, true
		}
	}
	return domain.SavedCalculation{}, false
}

// DeleteCalculation removes a saved calculation.
func (s *Service) DeleteCalculation(ctx context.Context, ownerID, id string) error {
	return s.calculations.Delete(ctx, ownerID, id)
}

// SaveOperation derives the operation totals and saves it.
func (s *Service) SaveOperation(ctx context.Context, ownerID string, op domain.Operation) (domain.Operation, error) {
	return s.operations.Save(ctx, ownerID, DeriveOperation(op))
}

// DeriveOperation recomputes the write-time fields of an operation.
func DeriveOperation(op domain.Operation) domain.Operation {
	op.TotalVolumeL = mixing.Round(op.AreaHa*op.VolumeLPerHa, 2)
	op.TotalProductQuantity = mixing.Round(op.AreaHa*op.DoseValue, 2)
	if op.Status == "" {
		op.Status = domain.OperationPlanned
	}
	if op.PriceCharged < 0 {
		op.PriceCharged = 0
	}
	return op
}

// ListOperations returns the owner's operations, newest first.
func (s *Service) ListOperations(ctx context.Context, ownerID string) []domain.Operation {
	return s.operations.List(ctx, ownerID)
}

// DeleteOperation removes an operation.
func (s *Service) DeleteOperation(ctx context.Context, ownerID, id string) error {
	return s.operations.Delete(ctx, ownerID, id)
}

// SaveRecipe saves a calculation template. Tags are deduplicated and sorted.
func (s *Service) SaveRecipe(ctx context.Context, ownerID string, recipe domain.Recipe) (domain.Recipe, error) {
	recipe.Tags = normalizeTags(recipe.Tags)
	return s.recipes.Save(ctx, ownerID, recipe)
}

// ListRecipes returns the owner's recipes, newest first.
func (s *Service) ListRecipes(ctx context.Context, ownerID string) []domain.Recipe {
	return s.recipes.List(ctx, ownerID)
}

// RecipePatch lists the recipe fields to overwrite; nil fields are left as is.
type RecipePatch struct {
	Name        *string                  `json:"name,omitempty"`
	Description *string                  `json:"description,omitempty"`
	Input       *domain.CalculationInput `json:"input,omitempty"`
	Tags        *[]string                `json:"tags,omitempty"`
	IsPublic    *bool                    `json:"is_public,omitempty"`
}

// UpdateRecipe overwrites the fields set in patch.
func (s *Service) UpdateRecipe(ctx context.Context, ownerID, id string, patch RecipePatch) error {
	if patch.Tags != nil {
		tags := normalizeTags(*patch.Tags)
		patch.Tags = &tags
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	return s.recipes.Update(ctx, ownerID, id, raw)
}

// DeleteRecipe removes a recipe.
func (s *Service) DeleteRecipe(ctx context.Context, ownerID, id string) error {
	return s.recipes.Delete(ctx, ownerID, id)
}

// SaveCustomProduct saves a user-authored catalog entry.
func (s *Service) SaveCustomProduct(ctx context.Context, ownerID string, product domain.CustomProduct) (domain.CustomProduct, error) {
	return s.customProducts.Save(ctx, ownerID, product)
}

// ListCustomProducts returns the owner's custom products, newest first.
func (s *Service) ListCustomProducts(ctx context.Context, ownerID string) []domain.CustomProduct {
	return s.customProducts.List(ctx, ownerID)
}

// CustomProductPatch lists the product fields to overwrite.
type CustomProductPatch struct {
	Name            *string                 `json:"name,omitempty"`
	Category        *domain.ProductCategory `json:"category,omitempty"`
	Description     *string                 `json:"description,omitempty"`
	DoseValue       *float64                `json:"dose_value,omitempty"`
	DoseUnit        *domain.Unit            `json:"dose_unit,omitempty"`
	DoseMin         *float64                `json:"dose_min,omitempty"`
	DoseMax         *float64                `json:"dose_max,omitempty"`
	Recommendations *string                 `json:"recommendations,omitempty"`
	Notes           *string                 `json:"notes,omitempty"`
	ImageURL        *string                 `json:"image_url,omitempty"`
}

// UpdateCustomProduct overwrites the fields set in patch.
func (s *Service) UpdateCustomProduct(ctx context.Context, ownerID, id string, patch CustomProductPatch) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	return s.customProducts.Update(ctx, ownerID, id, raw)
}

// DeleteCustomProduct removes a custom product.
func (s *Service) DeleteCustomProduct(ctx context.Context, ownerID, id string) error {
	return s.customProducts.Delete(ctx, ownerID, id)
}

// Catalog merges the built-in products with the owner's custom products,
// sorted by name.
func (s *Service) Catalog(ctx context.Context, ownerID string) []domain.CatalogEntry {
	return MergeCatalog(s.catalog, s.customProducts.List(ctx, ownerID))
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
