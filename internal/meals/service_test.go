package meals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/nutri-plans/internal/access"
	"github.com/fdg312/nutri-plans/internal/apperr"
	"github.com/fdg312/nutri-plans/internal/catalog"
	"github.com/fdg312/nutri-plans/internal/storage"
	"github.com/fdg312/nutri-plans/internal/storage/memory"
)

var (
	proActor      = access.Actor{ID: "pro-1", Role: access.RoleProfessional}
	otherPro      = access.Actor{ID: "pro-2", Role: access.RoleProfessional}
	patientActor  = access.Actor{ID: "user-p1", Role: access.RolePatient, PatientID: "patient-1"}
	strangerActor = access.Actor{ID: "user-p2", Role: access.RolePatient, PatientID: "patient-2"}
	adminActor    = access.Actor{ID: "admin-1", Role: access.RoleAdmin}
)

type fixture struct {
	svc     *Service
	store   *memory.MemoryStorage
	mealID  string
	clock   time.Time
	catalog *catalog.Service
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	_, err := store.GetRecipesStorage().SaveRecipe(ctx, storage.Recipe{
		ID:         "R1",
		Name:       "Chicken bowl",
		Difficulty: catalog.DifficultyMedium,
		Tags:       []string{"lunch"},
		IsActive:   true,
		Nutrition:  storage.Nutrition{Calories: 400, Protein: 30.4, Carbs: 45.6, Fat: 10.2},
	})
	require.NoError(t, err)
	_, err = store.GetRecipesStorage().SaveRecipe(ctx, storage.Recipe{
		ID:        "R2",
		Name:      "Old bowl",
		IsActive:  false,
		Nutrition: storage.Nutrition{Calories: 100},
	})
	require.NoError(t, err)

	plan, err := store.GetPlansStorage().CreatePlan(ctx, storage.PlanInsert{
		Name:           "Plan",
		Description:    "Plan",
		NutritionistID: "pro-1",
		PatientID:      "patient-1",
		Status:         "ACTIVE",
		StartDate:      time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Days: []storage.PlanDayInsert{{
			DayOfWeek: 1,
			IsActive:  true,
			Meals:     []storage.PlanMealInsert{{Type: TypeBreakfast, Time: "08:00"}},
		}},
	})
	require.NoError(t, err)

	cat := catalog.NewService(store.GetRecipesStorage())
	f := &fixture{
		svc:     NewService(store.GetPlansStorage(), cat),
		store:   store,
		mealID:  plan.Days[0].Meals[0].ID,
		clock:   time.Date(2026, 1, 5, 8, 30, 0, 0, time.UTC),
		catalog: cat,
	}
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func TestSelectRecipe_RoundsSnapshot(t *testing.T) {
	f := setupFixture(t)

	meal, err := f.svc.SelectRecipe(context.Background(), patientActor, f.mealID, SelectRecipeRequest{RecipeID: "R1"})
	require.NoError(t, err)

	require.NotNil(t, meal.SelectedRecipeID)
	assert.Equal(t, "R1", *meal.SelectedRecipeID)
	assert.Equal(t, 400, *meal.Kcal)
	assert.Equal(t, 30, *meal.ProteinG)
	assert.Equal(t, 46, *meal.CarbsG)
	assert.Equal(t, 10, *meal.FatG)
}

func TestSelectRecipe_InactiveOrMissingRecipe(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.svc.SelectRecipe(ctx, patientActor, f.mealID, SelectRecipeRequest{RecipeID: "R2"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.SelectRecipe(ctx, patientActor, f.mealID, SelectRecipeRequest{RecipeID: "nope"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.SelectRecipe(ctx, patientActor, f.mealID, SelectRecipeRequest{})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestSelectRecipe_Access(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.svc.SelectRecipe(ctx, strangerActor, f.mealID, SelectRecipeRequest{RecipeID: "R1"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.SelectRecipe(ctx, proActor, f.mealID, SelectRecipeRequest{RecipeID: "R1"})
	assert.ErrorIs(t, err, apperr.ErrForbidden, "select is the patient path")

	_, err = f.svc.SelectRecipe(ctx, adminActor, f.mealID, SelectRecipeRequest{RecipeID: "R1"})
	assert.NoError(t, err)
}

func TestAssignRecipe(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	t.Run("owning professional", func(t *testing.T) {
		meal, err := f.svc.AssignRecipe(ctx, proActor, f.mealID, SelectRecipeRequest{RecipeID: "R1"})
		require.NoError(t, err)
		assert.Equal(t, 46, *meal.CarbsG)
	})

	t.Run("patient is forbidden even on own plan", func(t *testing.T) {
		_, err := f.svc.AssignRecipe(ctx, patientActor, f.mealID, SelectRecipeRequest{RecipeID: "R1"})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("foreign professional is forbidden", func(t *testing.T) {
		_, err := f.svc.AssignRecipe(ctx, otherPro, f.mealID, SelectRecipeRequest{RecipeID: "R1"})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("missing meal is not found", func(t *testing.T) {
		_, err := f.svc.AssignRecipe(ctx, proActor, "no-such-meal", SelectRecipeRequest{RecipeID: "R1"})
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = f.svc.AssignRecipe(ctx, otherPro, "no-such-meal", SelectRecipeRequest{RecipeID: "R1"})
		assert.ErrorIs(t, err, apperr.ErrNotFound, "existence is checked before ownership")
	})
}

func TestRemoveRecipe_ClearsSnapshot(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.svc.SelectRecipe(ctx, patientActor, f.mealID, SelectRecipeRequest{RecipeID: "R1"})
	require.NoError(t, err)

	meal, err := f.svc.RemoveRecipe(ctx, proActor, f.mealID)
	require.NoError(t, err)
	assert.Nil(t, meal.SelectedRecipeID)
	assert.Nil(t, meal.Kcal)
	assert.Nil(t, meal.ProteinG)
	assert.Nil(t, meal.CarbsG)
	assert.Nil(t, meal.FatG)

	// already unfulfilled: still a no-op success
	meal, err = f.svc.RemoveRecipe(ctx, proActor, f.mealID)
	require.NoError(t, err)
	assert.False(t, meal.IsFulfilled())

	_, err = f.svc.RemoveRecipe(ctx, patientActor, f.mealID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestAddCustomMeal(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	meal, err := f.svc.AddCustomMeal(ctx, patientActor, f.mealID, CustomMealRequest{
		Name: "Snack", Calories: 150, Protein: 5, Carbs: 20, Fat: 4,
	})
	require.NoError(t, err)
	require.NotNil(t, meal.SelectedRecipeID)
	assert.NotEqual(t, "R1", *meal.SelectedRecipeID)
	assert.Equal(t, 150, *meal.Kcal)
	assert.Equal(t, 5, *meal.ProteinG)
	assert.Equal(t, 20, *meal.CarbsG)
	assert.Equal(t, 4, *meal.FatG)

	recipe, err := f.store.GetRecipesStorage().GetRecipe(ctx, *meal.SelectedRecipeID)
	require.NoError(t, err)
	assert.Equal(t, "Snack", recipe.Name)
	assert.Equal(t, []string{catalog.CustomTag}, recipe.Tags)
	assert.Equal(t, "user-p1", recipe.AuthorID)
	assert.Equal(t, 1, recipe.Servings)
	assert.Zero(t, recipe.Nutrition.Fiber)

	t.Run("professional may log for own patient", func(t *testing.T) {
		_, err := f.svc.AddCustomMeal(ctx, proActor, f.mealID, CustomMealRequest{Name: "Shake", Calories: 200})
		assert.NoError(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := f.svc.AddCustomMeal(ctx, patientActor, f.mealID, CustomMealRequest{Name: " "})
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)

		_, err = f.svc.AddCustomMeal(ctx, patientActor, f.mealID, CustomMealRequest{Name: "x", Fat: -1})
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)

		neg := -3.0
		_, err = f.svc.AddCustomMeal(ctx, patientActor, f.mealID, CustomMealRequest{Name: "x", Sodium: &neg})
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})

	t.Run("foreign patient", func(t *testing.T) {
		_, err := f.svc.AddCustomMeal(ctx, strangerActor, f.mealID, CustomMealRequest{Name: "x"})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})
}

func TestCompleteMeal(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	meal, err := f.svc.CompleteMeal(ctx, patientActor, f.mealID)
	require.NoError(t, err)
	assert.True(t, meal.IsCompleted)
	require.NotNil(t, meal.CompletedAt)
	assert.True(t, meal.CompletedAt.Equal(f.clock))
	assert.Nil(t, meal.SelectedRecipeID, "completion does not need a recipe")

	first := f.clock
	f.clock = f.clock.Add(2 * time.Hour)

	meal, err = f.svc.CompleteMeal(ctx, patientActor, f.mealID)
	require.NoError(t, err)
	assert.True(t, meal.IsCompleted)
	assert.True(t, meal.CompletedAt.After(first), "second call refreshes completed_at")

	_, err = f.svc.CompleteMeal(ctx, proActor, f.mealID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.CompleteMeal(ctx, adminActor, f.mealID)
	assert.NoError(t, err)

	_, err = f.svc.CompleteMeal(ctx, patientActor, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAvailableRecipes(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	items, err := f.svc.AvailableRecipes(ctx, proActor, f.mealID, catalog.RecipeFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "R1", items[0].ID)

	items, err = f.svc.AvailableRecipes(ctx, proActor, f.mealID, catalog.RecipeFilter{Search: "CHICKEN", Difficulty: catalog.DifficultyMedium})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = f.svc.AvailableRecipes(ctx, patientActor, f.mealID, catalog.RecipeFilter{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.AvailableRecipes(ctx, otherPro, f.mealID, catalog.RecipeFilter{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestSnapshotIgnoresLaterCatalogChanges(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.svc.AssignRecipe(ctx, proActor, f.mealID, SelectRecipeRequest{RecipeID: "R1"})
	require.NoError(t, err)

	_, err = f.store.GetRecipesStorage().SaveRecipe(ctx, storage.Recipe{
		ID: "R1", Name: "Chicken bowl", IsActive: true,
		Nutrition: storage.Nutrition{Calories: 999, Protein: 99, Carbs: 99, Fat: 99},
	})
	require.NoError(t, err)

	meal, err := f.store.GetPlansStorage().GetMeal(ctx, f.mealID)
	require.NoError(t, err)
	assert.Equal(t, 400, *meal.Kcal)
}

func TestSnapshotRounding(t *testing.T) {
	sel, err := Snapshot(storage.Recipe{ID: "x", Nutrition: storage.Nutrition{Calories: 99.5, Protein: 0.49, Carbs: 2.5, Fat: 0}})
	require.NoError(t, err)
	assert.Equal(t, 100, sel.Kcal)
	assert.Equal(t, 0, sel.ProteinG)
	assert.Equal(t, 3, sel.CarbsG, "halves round away from zero")
	assert.Equal(t, 0, sel.FatG)
}

func TestSnapshot_OutOfRange(t *testing.T) {
	_, err := Snapshot(storage.Recipe{ID: "x", Nutrition: storage.Nutrition{Calories: 1e19}})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = Snapshot(storage.Recipe{ID: "x", Nutrition: storage.Nutrition{Protein: 3e9}})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestAddCustomMeal_RejectsHugeValues(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddCustomMeal(ctx, patientActor, f.mealID, CustomMealRequest{Name: "x", Calories: 1e19, Protein: 3e9})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.svc.AddCustomMeal(ctx, patientActor, f.mealID, CustomMealRequest{Name: "x", Calories: MaxNutrientValue + 1})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.svc.AddCustomMeal(ctx, patientActor, f.mealID, CustomMealRequest{Name: "x", Calories: MaxNutrientValue})
	assert.NoError(t, err)

	meal, err := f.store.GetPlansStorage().GetMeal(ctx, f.mealID)
	require.NoError(t, err)
	assert.Equal(t, MaxNutrientValue, *meal.Kcal)
}

// failingSelection lets the meal update fail after the custom recipe exists.
type failingSelection struct {
	storage.PlansStorage
}

func (failingSelection) SetMealSelection(ctx context.Context, mealID string, sel *storage.MealSelection) (storage.PlanMeal, error) {
	return storage.PlanMeal{}, errors.New("connection reset")
}

func TestAddCustomMeal_DiscardsRecipeWhenMealUpdateFails(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	svc := NewService(failingSelection{f.store.GetPlansStorage()}, f.catalog)

	_, err := svc.AddCustomMeal(ctx, patientActor, f.mealID, CustomMealRequest{Name: "Lost snack", Calories: 120})
	require.Error(t, err)

	recipes, err := f.store.GetRecipesStorage().SearchRecipes(ctx, storage.RecipeQuery{Search: "Lost snack"})
	require.NoError(t, err)
	assert.Empty(t, recipes)
}

func TestCustomRecipe_PrivateToAuthor(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	meal, err := f.svc.AddCustomMeal(ctx, patientActor, f.mealID, CustomMealRequest{Name: "Private binge log", Calories: 900})
	require.NoError(t, err)
	customID := *meal.SelectedRecipeID

	items, err := f.svc.AvailableRecipes(ctx, proActor, f.mealID, catalog.RecipeFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "R1", items[0].ID)

	// a second plan for another patient
	other, err := f.store.GetPlansStorage().CreatePlan(ctx, storage.PlanInsert{
		Name:           "Other",
		Description:    "Other",
		NutritionistID: "pro-2",
		PatientID:      "patient-2",
		Status:         "ACTIVE",
		StartDate:      time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Days: []storage.PlanDayInsert{{
			DayOfWeek: 1,
			IsActive:  true,
			Meals:     []storage.PlanMealInsert{{Type: TypeLunch, Time: "12:00"}},
		}},
	})
	require.NoError(t, err)
	otherMeal := other.Days[0].Meals[0].ID

	_, err = f.svc.SelectRecipe(ctx, strangerActor, otherMeal, SelectRecipeRequest{RecipeID: customID})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.AssignRecipe(ctx, otherPro, otherMeal, SelectRecipeRequest{RecipeID: customID})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// the author can pick it again
	_, err = f.svc.RemoveRecipe(ctx, proActor, f.mealID)
	require.NoError(t, err)
	meal, err = f.svc.SelectRecipe(ctx, patientActor, f.mealID, SelectRecipeRequest{RecipeID: customID})
	require.NoError(t, err)
	assert.Equal(t, 900, *meal.Kcal)
}
