package meals

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/fdg312/nutri-plans/internal/access"
	"github.com/fdg312/nutri-plans/internal/apperr"
	"github.com/fdg312/nutri-plans/internal/catalog"
	"github.com/fdg312/nutri-plans/internal/storage"
)

// Service resolves what a meal is: a catalog recipe, a custom recipe, or
// nothing, and tracks completion. Mutations are single-row and last-writer-wins.
type Service struct {
	plans   storage.PlansStorage
	catalog *catalog.Service
	now     func() time.Time
}

// NewService creates a new meal fulfillment service.
func NewService(plans storage.PlansStorage, catalog *catalog.Service) *Service {
	return &Service{
		plans:   plans,
		catalog: catalog,
		now:     time.Now,
	}
}

// SelectRecipe lets the patient pick a catalog recipe for their meal.
func (s *Service) SelectRecipe(ctx context.Context, actor access.Actor, mealID string, req SelectRecipeRequest) (MealDTO, error) {
	if err := s.authorize(ctx, actor, mealID, access.OpSelectRecipe); err != nil {
		return MealDTO{}, err
	}
	if err := req.Validate(); err != nil {
		return MealDTO{}, err
	}
	return s.applyCatalogRecipe(ctx, actor, mealID, req.RecipeID)
}

// AssignRecipe is the professional-side equivalent of SelectRecipe.
func (s *Service) AssignRecipe(ctx context.Context, actor access.Actor, mealID string, req SelectRecipeRequest) (MealDTO, error) {
	if err := s.authorize(ctx, actor, mealID, access.OpAssignRecipe); err != nil {
		return MealDTO{}, err
	}
	if err := req.Validate(); err != nil {
		return MealDTO{}, err
	}
	return s.applyCatalogRecipe(ctx, actor, mealID, req.RecipeID)
}

// RemoveRecipe clears the selection and the whole snapshot.
func (s *Service) RemoveRecipe(ctx context.Context, actor access.Actor, mealID string) (MealDTO, error) {
	if err := s.authorize(ctx, actor, mealID, access.OpAssignRecipe); err != nil {
		return MealDTO{}, err
	}

	meal, err := s.plans.SetMealSelection(ctx, mealID, nil)
	if err != nil {
		return MealDTO{}, mealError(mealID, err)
	}
	return ToMealDTO(meal), nil
}

// AddCustomMeal synthesizes a recipe from the caller's nutrition values and
// selects it.
func (s *Service) AddCustomMeal(ctx context.Context, actor access.Actor, mealID string, req CustomMealRequest) (MealDTO, error) {
	if err := s.authorize(ctx, actor, mealID, access.OpLogCustomMeal); err != nil {
		return MealDTO{}, err
	}
	if err := req.Validate(); err != nil {
		return MealDTO{}, err
	}

	// the snapshot is checked before the recipe exists
	if _, err := Snapshot(storage.Recipe{Nutrition: req.Nutrition()}); err != nil {
		return MealDTO{}, err
	}

	recipe, err := s.catalog.CreateCustomRecipe(ctx, actor.ID, req.Name, req.Description, req.Nutrition())
	if err != nil {
		return MealDTO{}, err
	}

	meal, err := s.applyRecipe(ctx, mealID, recipe)
	if err != nil {
		if derr := s.catalog.DiscardCustomRecipe(ctx, recipe.ID); derr != nil {
			log.Printf("meals: failed to discard custom recipe recipe_id=%s: %v", recipe.ID, derr)
		}
		return MealDTO{}, err
	}
	log.Printf("meals: custom recipe created recipe_id=%s meal_id=%s author=%s", recipe.ID, mealID, actor.ID)
	return meal, nil
}

// CompleteMeal marks the meal eaten. Repeated calls keep the flag and move
// completed_at to the latest call.
func (s *Service) CompleteMeal(ctx context.Context, actor access.Actor, mealID string) (MealDTO, error) {
	if err := s.authorize(ctx, actor, mealID, access.OpCompleteMeal); err != nil {
		return MealDTO{}, err
	}

	meal, err := s.plans.CompleteMeal(ctx, mealID, s.now().UTC())
	if err != nil {
		return MealDTO{}, mealError(mealID, err)
	}
	return ToMealDTO(meal), nil
}

// AvailableRecipes searches the active catalog for a meal the actor may assign.
func (s *Service) AvailableRecipes(ctx context.Context, actor access.Actor, mealID string, filter catalog.RecipeFilter) ([]catalog.RecipeDTO, error) {
	if err := s.authorize(ctx, actor, mealID, access.OpAssignRecipe); err != nil {
		return nil, err
	}
	return s.catalog.SearchActiveRecipes(ctx, filter)
}

// authorize resolves the meal first (NotFound) and then applies the policy
// (Forbidden).
func (s *Service) authorize(ctx context.Context, actor access.Actor, mealID string, op access.Operation) error {
	owner, err := s.plans.GetMealOwner(ctx, mealID)
	if err != nil {
		return mealError(mealID, err)
	}
	return access.Authorize(actor, access.Resource{
		NutritionistID: owner.NutritionistID,
		PatientID:      owner.PatientID,
	}, op)
}

func (s *Service) applyCatalogRecipe(ctx context.Context, actor access.Actor, mealID, recipeID string) (MealDTO, error) {
	recipe, err := s.catalog.GetSelectableRecipe(ctx, recipeID, actor.ID)
	if err != nil {
		return MealDTO{}, err
	}
	return s.applyRecipe(ctx, mealID, recipe)
}

func (s *Service) applyRecipe(ctx context.Context, mealID string, recipe storage.Recipe) (MealDTO, error) {
	sel, err := Snapshot(recipe)
	if err != nil {
		return MealDTO{}, err
	}
	meal, err := s.plans.SetMealSelection(ctx, mealID, &sel)
	if err != nil {
		return MealDTO{}, mealError(mealID, err)
	}
	return ToMealDTO(meal), nil
}

// Snapshot rounds the recipe's profile to whole units. Values that do not
// fit a 32-bit column are rejected.
func Snapshot(r storage.Recipe) (storage.MealSelection, error) {
	sel := storage.MealSelection{RecipeID: r.ID}
	fields := []struct {
		name  string
		value float64
		dst   *int
	}{
		{"calories", r.Nutrition.Calories, &sel.Kcal},
		{"protein", r.Nutrition.Protein, &sel.ProteinG},
		{"carbs", r.Nutrition.Carbs, &sel.CarbsG},
		{"fat", r.Nutrition.Fat, &sel.FatG},
	}
	for _, f := range fields {
		v := math.Round(f.value)
		if math.IsNaN(v) || v > math.MaxInt32 || v < math.MinInt32 {
			return storage.MealSelection{}, apperr.InvalidInput("recipe %s: %s is out of range", r.ID, f.name)
		}
		*f.dst = int(v)
	}
	return sel, nil
}

func mealError(mealID string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("meal %s not found", mealID)
	}
	return err
}
