package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/fdg312/nutri-plans/internal/apperr"
	"github.com/fdg312/nutri-plans/internal/storage"
)

// Service is the read side of the recipe catalog plus the one write path
// used for custom meals.
type Service struct {
	recipes storage.RecipesStorage
}

// NewService creates a new catalog service.
func NewService(recipes storage.RecipesStorage) *Service {
	return &Service{recipes: recipes}
}

// GetActiveRecipe returns the recipe if it exists and is active.
func (s *Service) GetActiveRecipe(ctx context.Context, id string) (storage.Recipe, error) {
	r, err := s.recipes.GetRecipe(ctx, id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !r.IsActive) {
		return storage.Recipe{}, apperr.NotFound("recipe %s not found", id)
	}
	if err != nil {
		return storage.Recipe{}, err
	}
	return r, nil
}

// GetSelectableRecipe is GetActiveRecipe for a meal selection made by
// actorID. Custom recipes resolve only for their author.
func (s *Service) GetSelectableRecipe(ctx context.Context, id, actorID string) (storage.Recipe, error) {
	r, err := s.GetActiveRecipe(ctx, id)
	if err != nil {
		return storage.Recipe{}, err
	}
	if IsCustom(r) && r.AuthorID != actorID {
		return storage.Recipe{}, apperr.NotFound("recipe %s not found", id)
	}
	return r, nil
}

// SearchActiveRecipes returns active catalog recipes matching f, newest
// first. Custom recipes never show up here.
func (s *Service) SearchActiveRecipes(ctx context.Context, f RecipeFilter) ([]RecipeDTO, error) {
	recipes, err := s.recipes.SearchRecipes(ctx, storage.RecipeQuery{
		ActiveOnly:  true,
		Search:      f.Search,
		Tags:        f.Tags,
		Difficulty:  f.Difficulty,
		ExcludeTags: []string{CustomTag},
		Limit:       f.Limit,
	})
	if err != nil {
		return nil, err
	}

	items := make([]RecipeDTO, len(recipes))
	for i, r := range recipes {
		items[i] = ToDTO(r)
	}
	return items, nil
}

// EnsureExist fails with InvalidInput when any id has no recipe.
func (s *Service) EnsureExist(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := s.recipes.MissingRecipeIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return apperr.InvalidInput("unknown recipe ids: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CreateCustomRecipe synthesizes a single-serving recipe owned by authorID so
// an ad-hoc meal can go through the same snapshot path as catalog recipes.
func (s *Service) CreateCustomRecipe(ctx context.Context, authorID, name, description string, n storage.Nutrition) (storage.Recipe, error) {
	return s.recipes.SaveRecipe(ctx, storage.Recipe{
		Name:        name,
		Description: description,
		PrepTime:    0,
		CookTime:    0,
		Servings:    1,
		Difficulty:  DifficultyEasy,
		Tags:        []string{CustomTag},
		Allergens:   []string{},
		IsActive:    true,
		AuthorID:    authorID,
		Nutrition:   n,
	})
}

// DiscardCustomRecipe deletes a custom recipe that never reached a meal.
func (s *Service) DiscardCustomRecipe(ctx context.Context, id string) error {
	return s.recipes.DeleteRecipe(ctx, id)
}

// IsCustom reports whether r was synthesized for an ad-hoc meal.
func IsCustom(r storage.Recipe) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, CustomTag) {
			return true
		}
	}
	return false
}

func ToDTO(r storage.Recipe) RecipeDTO {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	allergens := r.Allergens
	if allergens == nil {
		allergens = []string{}
	}
	return RecipeDTO{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Image:       r.Image,
		PrepTime:    r.PrepTime,
		CookTime:    r.CookTime,
		Servings:    r.Servings,
		Difficulty:  r.Difficulty,
		Tags:        tags,
		Allergens:   allergens,
		IsActive:    r.IsActive,
		AuthorID:    r.AuthorID,
		Nutrition: NutritionDTO{
			Calories:    r.Nutrition.Calories,
			Protein:     r.Nutrition.Protein,
			Carbs:       r.Nutrition.Carbs,
			Fat:         r.Nutrition.Fat,
			Fiber:       r.Nutrition.Fiber,
			Sugar:       r.Nutrition.Sugar,
			Sodium:      r.Nutrition.Sodium,
			Cholesterol: r.Nutrition.Cholesterol,
		},
		CreatedAt: r.CreatedAt,
	}
}
