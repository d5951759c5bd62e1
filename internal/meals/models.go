package meals

import (
	"strings"
	"time"

	"github.com/fdg312/nutri-plans/internal/apperr"
	"github.com/fdg312/nutri-plans/internal/storage"
)

// MaxNutrientValue caps every custom meal value (kcal, grams, mg).
const MaxNutrientValue = 100000

const (
	TypeBreakfast = "BREAKFAST"
	TypeLunch     = "LUNCH"
	TypeDinner    = "DINNER"
	TypeSnack     = "SNACK"
)

func ValidType(t string) bool {
	switch t {
	case TypeBreakfast, TypeLunch, TypeDinner, TypeSnack:
		return true
	}
	return false
}

// MealDTO is a meal as returned by every meal and plan endpoint.
type MealDTO struct {
	ID               string     `json:"id"`
	DayID            string     `json:"day_id"`
	PlanID           string     `json:"plan_id"`
	Type             string     `json:"type"`
	Time             string     `json:"time"`
	IsCompleted      bool       `json:"is_completed"`
	CompletedAt      *time.Time `json:"completed_at"`
	Notes            string     `json:"notes"`
	RecipeIDs        []string   `json:"recipe_ids"`
	SelectedRecipeID *string    `json:"selected_recipe_id"`
	Kcal             *int       `json:"kcal"`
	ProteinG         *int       `json:"protein_g"`
	CarbsG           *int       `json:"carbs_g"`
	FatG             *int       `json:"fat_g"`
	Position         int        `json:"position"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsFulfilled reports whether the meal currently has a selected recipe.
func (m MealDTO) IsFulfilled() bool {
	return m.SelectedRecipeID != nil
}

func ToMealDTO(m storage.PlanMeal) MealDTO {
	recipeIDs := m.RecipeIDs
	if recipeIDs == nil {
		recipeIDs = []string{}
	}
	return MealDTO{
		ID:               m.ID,
		DayID:            m.DayID,
		PlanID:           m.PlanID,
		Type:             m.Type,
		Time:             m.Time,
		IsCompleted:      m.IsCompleted,
		CompletedAt:      m.CompletedAt,
		Notes:            m.Notes,
		RecipeIDs:        recipeIDs,
		SelectedRecipeID: m.SelectedRecipeID,
		Kcal:             m.Kcal,
		ProteinG:         m.ProteinG,
		CarbsG:           m.CarbsG,
		FatG:             m.FatG,
		Position:         m.Position,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

type SelectRecipeRequest struct {
	RecipeID string `json:"recipe_id"`
}

func (r *SelectRecipeRequest) Validate() error {
	r.RecipeID = strings.TrimSpace(r.RecipeID)
	if r.RecipeID == "" {
		return apperr.InvalidInput("recipe_id is required")
	}
	return nil
}

// CustomMealRequest carries ad-hoc nutrition for a meal that is not in the
// catalog. Optional values default to 0.
type CustomMealRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Calories    float64  `json:"calories"`
	Protein     float64  `json:"protein"`
	Carbs       float64  `json:"carbs"`
	Fat         float64  `json:"fat"`
	Fiber       *float64 `json:"fiber,omitempty"`
	Sugar       *float64 `json:"sugar,omitempty"`
	Sodium      *float64 `json:"sodium,omitempty"`
	Cholesterol *float64 `json:"cholesterol,omitempty"`
}

func (r *CustomMealRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return apperr.InvalidInput("name is required")
	}
	if len(r.Name) > 200 {
		return apperr.InvalidInput("name must be at most 200 characters")
	}

	required := []struct {
		field string
		value float64
	}{
		{"calories", r.Calories},
		{"protein", r.Protein},
		{"carbs", r.Carbs},
		{"fat", r.Fat},
	}
	for _, v := range required {
		if err := checkNutrient(v.field, v.value); err != nil {
			return err
		}
	}

	optional := []struct {
		field string
		value *float64
	}{
		{"fiber", r.Fiber},
		{"sugar", r.Sugar},
		{"sodium", r.Sodium},
		{"cholesterol", r.Cholesterol},
	}
	for _, v := range optional {
		if v.value == nil {
			continue
		}
		if err := checkNutrient(v.field, *v.value); err != nil {
			return err
		}
	}
	return nil
}

func checkNutrient(field string, v float64) error {
	if v < 0 {
		return apperr.InvalidInput("%s must be >= 0", field)
	}
	if v > MaxNutrientValue {
		return apperr.InvalidInput("%s must be <= %d", field, MaxNutrientValue)
	}
	return nil
}

// Nutrition returns the profile with optional values defaulted to 0.
func (r CustomMealRequest) Nutrition() storage.Nutrition {
	return storage.Nutrition{
		Calories:    r.Calories,
		Protein:     r.Protein,
		Carbs:       r.Carbs,
		Fat:         r.Fat,
		Fiber:       valueOrZero(r.Fiber),
		Sugar:       valueOrZero(r.Sugar),
		Sodium:      valueOrZero(r.Sodium),
		Cholesterol: valueOrZero(r.Cholesterol),
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
