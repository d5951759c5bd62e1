package plans

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
	"github.com/fdg312/nutri-plans/internal/meals"
	"github.com/fdg312/nutri-plans/internal/storage"
	"github.com/fdg312/nutri-plans/internal/storage/memory"
)

var (
	proActor     = access.Actor{ID: "pro-1", Role: access.RoleProfessional}
	otherPro     = access.Actor{ID: "pro-2", Role: access.RoleProfessional}
	patientActor = access.Actor{ID: "user-p1", Role: access.RolePatient, PatientID: "patient-1"}
	otherPatient = access.Actor{ID: "user-p2", Role: access.RolePatient, PatientID: "patient-2"}
	adminActor   = access.Actor{ID: "admin-1", Role: access.RoleAdmin}
)

type fixture struct {
	svc   *Service
	meals *meals.Service
	store *memory.MemoryStorage
	clock time.Time
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	_, err := store.GetRecipesStorage().SaveRecipe(ctx, storage.Recipe{
		ID:        "R1",
		Name:      "Oats",
		IsActive:  true,
		Nutrition: storage.Nutrition{Calories: 400, Protein: 30.4, Carbs: 45.6, Fat: 10.2},
	})
	require.NoError(t, err)

	for _, p := range []storage.Patient{
		{ID: "patient-1", UserID: "user-p1", NutritionistID: "pro-1"},
		{ID: "patient-2", UserID: "user-p2", NutritionistID: "pro-2"},
	} {
		_, err := store.GetPatientsStorage().UpsertPatient(ctx, p)
		require.NoError(t, err)
	}

	cat := catalog.NewService(store.GetRecipesStorage())
	f := &fixture{
		svc:   NewService(store.GetPlansStorage(), store.GetPatientsStorage(), cat, Limits{MaxDays: 7, MaxMealsPerDay: 4}),
		meals: meals.NewService(store.GetPlansStorage(), cat),
		store: store,
		clock: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func intPtr(v int) *int { return &v }

func oneDayRequest(patientID string) CreatePlanRequest {
	return CreatePlanRequest{
		Name:        "Spring reset",
		Description: "Four weeks of balanced meals",
		PatientID:   patientID,
		StartDate:   "2026-03-02",
		Days: []DayInput{{
			DayOfWeek: intPtr(1),
			Meals:     []MealInput{{Type: meals.TypeBreakfast, Time: "08:00"}},
		}},
	}
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}

func TestCreate_SingleDaySingleMeal(t *testing.T) {
	f := setupFixture(t)

	plan, err := f.svc.Create(context.Background(), proActor, oneDayRequest("patient-1"))
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, plan.Status)
	assert.Equal(t, "pro-1", plan.NutritionistID)
	require.NotNil(t, plan.PatientID)
	assert.Equal(t, "patient-1", *plan.PatientID)
	require.Len(t, plan.Days, 1)
	assert.Equal(t, 1, plan.Days[0].DayOfWeek)
	assert.True(t, plan.Days[0].IsActive)
	require.Len(t, plan.Days[0].Meals, 1)

	meal := plan.Days[0].Meals[0]
	assert.Equal(t, meals.TypeBreakfast, meal.Type)
	assert.Equal(t, "08:00", meal.Time)
	assert.Nil(t, meal.SelectedRecipeID)
	assert.Nil(t, meal.Kcal)
	assert.Equal(t, PlanTotals{Meals: 1}, plan.Totals)
}

func TestCreate_FullPayload(t *testing.T) {
	f := setupFixture(t)
	inactive := false

	req := CreatePlanRequest{
		Name:        "Cut",
		Description: "Lower carbs",
		Status:      "active",
		StartDate:   "2026-03-02T00:00:00Z",
		EndDate:     "2026-03-30",
		Goals:       []string{" lose fat ", ""},
		KcalPerDay:  intPtr(1800),
		Days: []DayInput{
			{DayOfWeek: intPtr(0), IsActive: &inactive, Meals: []MealInput{
				{Type: meals.TypeLunch, Time: "12:30", RecipeIDs: []string{"R1", "R1"}},
				{Type: meals.TypeSnack, Time: "16:00", IsCompleted: true},
			}},
			{DayOfWeek: intPtr(0), Meals: []MealInput{{Type: meals.TypeDinner, Time: "19:00"}}},
		},
	}

	plan, err := f.svc.Create(context.Background(), adminActor, req)
	require.NoError(t, err)

	assert.Equal(t, StatusActive, plan.Status)
	assert.Nil(t, plan.PatientID)
	assert.Equal(t, []string{"lose fat"}, plan.Goals)
	require.NotNil(t, plan.EndDate)
	assert.Equal(t, 1800, *plan.KcalPerDay)
	require.Len(t, plan.Days, 2)
	assert.False(t, plan.Days[0].IsActive)
	assert.Equal(t, []string{"R1"}, plan.Days[0].Meals[0].RecipeIDs)

	snack := plan.Days[0].Meals[1]
	assert.True(t, snack.IsCompleted)
	require.NotNil(t, snack.CompletedAt)
	assert.True(t, f.clock.Equal(*snack.CompletedAt))
	assert.Equal(t, 3, plan.Totals.Meals)
	assert.Equal(t, 1, plan.Totals.CompletedMeals)
}

func TestCreate_Validation(t *testing.T) {
	f := setupFixture(t)

	cases := []struct {
		name   string
		mutate func(*CreatePlanRequest)
	}{
		{"missing name", func(r *CreatePlanRequest) { r.Name = " " }},
		{"missing description", func(r *CreatePlanRequest) { r.Description = "" }},
		{"bad status", func(r *CreatePlanRequest) { r.Status = "ARCHIVED" }},
		{"missing start", func(r *CreatePlanRequest) { r.StartDate = "" }},
		{"bad start", func(r *CreatePlanRequest) { r.StartDate = "03/02/2026" }},
		{"end before start", func(r *CreatePlanRequest) { r.EndDate = "2026-03-01" }},
		{"negative target", func(r *CreatePlanRequest) { r.ProteinG = intPtr(-1) }},
		{"no days", func(r *CreatePlanRequest) { r.Days = nil }},
		{"day out of range", func(r *CreatePlanRequest) { r.Days[0].DayOfWeek = intPtr(7) }},
		{"missing day of week", func(r *CreatePlanRequest) { r.Days[0].DayOfWeek = nil }},
		{"no meals", func(r *CreatePlanRequest) { r.Days[0].Meals = nil }},
		{"bad meal type", func(r *CreatePlanRequest) { r.Days[0].Meals[0].Type = "BRUNCH" }},
		{"bad meal time", func(r *CreatePlanRequest) { r.Days[0].Meals[0].Time = "24:00" }},
		{"unknown recipe", func(r *CreatePlanRequest) { r.Days[0].Meals[0].RecipeIDs = []string{"nope"} }},
		{"too many days", func(r *CreatePlanRequest) {
			for i := 0; i < 7; i++ {
				r.Days = append(r.Days, r.Days[0])
			}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := oneDayRequest("patient-1")
			tc.mutate(&req)
			_, err := f.svc.Create(context.Background(), proActor, req)
			requireKind(t, err, apperr.ErrInvalidInput)
		})
	}
}

func TestCreate_PatientOwnership(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, proActor, oneDayRequest("patient-2"))
	requireKind(t, err, apperr.ErrForbidden)

	_, err = f.svc.Create(ctx, proActor, oneDayRequest("ghost"))
	requireKind(t, err, apperr.ErrForbidden)

	_, err = f.svc.Create(ctx, adminActor, oneDayRequest("ghost"))
	requireKind(t, err, apperr.ErrNotFound)

	_, err = f.svc.Create(ctx, patientActor, oneDayRequest("patient-1"))
	requireKind(t, err, apperr.ErrForbidden)

	_, err = f.svc.Create(ctx, adminActor, oneDayRequest("patient-2"))
	require.NoError(t, err)
}

func TestUpdate_ReplacingDaysDropsCompletion(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	plan, err := f.svc.Create(ctx, proActor, oneDayRequest("patient-1"))
	require.NoError(t, err)
	mealID := plan.Days[0].Meals[0].ID

	_, err = f.meals.CompleteMeal(ctx, patientActor, mealID)
	require.NoError(t, err)
	_, err = f.meals.SelectRecipe(ctx, patientActor, mealID, meals.SelectRecipeRequest{RecipeID: "R1"})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, patientActor, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, PlanTotals{Kcal: 400, ProteinG: 30, CarbsG: 46, FatG: 10, Meals: 1, FulfilledMeals: 1, CompletedMeals: 1}, got.Totals)

	newName := "Spring reset v2"
	days := []DayInput{{
		DayOfWeek: intPtr(2),
		Meals: []MealInput{
			{Type: meals.TypeBreakfast, Time: "08:00"},
			{Type: meals.TypeDinner, Time: "19:30"},
		},
	}}
	updated, err := f.svc.Update(ctx, proActor, plan.ID, UpdatePlanRequest{Name: &newName, Days: &days})
	require.NoError(t, err)

	assert.Equal(t, newName, updated.Name)
	require.Len(t, updated.Days, 1)
	assert.Equal(t, 2, updated.Days[0].DayOfWeek)
	require.Len(t, updated.Days[0].Meals, 2)
	for _, m := range updated.Days[0].Meals {
		assert.False(t, m.IsCompleted)
		assert.Nil(t, m.CompletedAt)
		assert.Nil(t, m.SelectedRecipeID)
		assert.NotEqual(t, mealID, m.ID)
	}
	assert.Equal(t, PlanTotals{Meals: 2}, updated.Totals)

	_, err = f.meals.CompleteMeal(ctx, patientActor, mealID)
	requireKind(t, err, apperr.ErrNotFound)
}

func TestUpdate_MetadataOnly(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	plan, err := f.svc.Create(ctx, proActor, oneDayRequest("patient-1"))
	require.NoError(t, err)
	mealID := plan.Days[0].Meals[0].ID

	status := "paused"
	kcal := 2000
	updated, err := f.svc.Update(ctx, proActor, plan.ID, UpdatePlanRequest{Status: &status, KcalPerDay: &kcal})
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, updated.Status)
	assert.Equal(t, 2000, *updated.KcalPerDay)
	assert.Equal(t, mealID, updated.Days[0].Meals[0].ID)

	unassign := ""
	updated, err = f.svc.Update(ctx, proActor, plan.ID, UpdatePlanRequest{PatientID: &unassign})
	require.NoError(t, err)
	assert.Nil(t, updated.PatientID)
}

func TestUpdate_Errors(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	plan, err := f.svc.Create(ctx, proActor, oneDayRequest("patient-1"))
	require.NoError(t, err)
	name := "x"

	_, err = f.svc.Update(ctx, proActor, "missing", UpdatePlanRequest{Name: &name})
	requireKind(t, err, apperr.ErrNotFound)

	_, err = f.svc.Update(ctx, otherPro, plan.ID, UpdatePlanRequest{Name: &name})
	requireKind(t, err, apperr.ErrForbidden)

	_, err = f.svc.Update(ctx, patientActor, plan.ID, UpdatePlanRequest{Name: &name})
	requireKind(t, err, apperr.ErrForbidden)

	foreign := "patient-2"
	_, err = f.svc.Update(ctx, proActor, plan.ID, UpdatePlanRequest{PatientID: &foreign})
	requireKind(t, err, apperr.ErrForbidden)

	early := "2026-01-01"
	end := "2026-02-01"
	_, err = f.svc.Update(ctx, proActor, plan.ID, UpdatePlanRequest{EndDate: &end})
	requireKind(t, err, apperr.ErrInvalidInput)
	_, err = f.svc.Update(ctx, proActor, plan.ID, UpdatePlanRequest{StartDate: &early, EndDate: &end})
	require.NoError(t, err)

	empty := []DayInput{}
	_, err = f.svc.Update(ctx, proActor, plan.ID, UpdatePlanRequest{Days: &empty})
	requireKind(t, err, apperr.ErrInvalidInput)
}

func TestUpdate_RejectedReplaceKeepsSubtree(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	plan, err := f.svc.Create(ctx, proActor, oneDayRequest("patient-1"))
	require.NoError(t, err)
	dayID := plan.Days[0].ID
	mealID := plan.Days[0].Meals[0].ID

	_, err = f.meals.SelectRecipe(ctx, patientActor, mealID, meals.SelectRecipeRequest{RecipeID: "R1"})
	require.NoError(t, err)
	_, err = f.meals.CompleteMeal(ctx, patientActor, mealID)
	require.NoError(t, err)

	name := "Renamed"
	cases := map[string][]DayInput{
		"unknown recipe": {{
			DayOfWeek: intPtr(2),
			Meals:     []MealInput{{Type: meals.TypeLunch, Time: "12:00", RecipeIDs: []string{"ghost"}}},
		}},
		"invalid day": {{
			DayOfWeek: intPtr(9),
			Meals:     []MealInput{{Type: meals.TypeLunch, Time: "12:00"}},
		}},
		"day without meals": {{DayOfWeek: intPtr(3)}},
	}
	for label, days := range cases {
		t.Run(label, func(t *testing.T) {
			days := days
			_, err := f.svc.Update(ctx, proActor, plan.ID, UpdatePlanRequest{Name: &name, Days: &days})
			requireKind(t, err, apperr.ErrInvalidInput)

			got, err := f.svc.Get(ctx, proActor, plan.ID)
			require.NoError(t, err)
			assert.Equal(t, plan.Name, got.Name)
			require.Len(t, got.Days, 1)
			assert.Equal(t, dayID, got.Days[0].ID)
			require.Len(t, got.Days[0].Meals, 1)
			meal := got.Days[0].Meals[0]
			assert.Equal(t, mealID, meal.ID)
			assert.True(t, meal.IsCompleted)
			require.NotNil(t, meal.SelectedRecipeID)
			assert.Equal(t, "R1", *meal.SelectedRecipeID)
		})
	}
}

func TestPatientInfo(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	active := oneDayRequest("patient-1")
	active.Status = StatusActive
	_, err := f.svc.Create(ctx, proActor, active)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, proActor, oneDayRequest("patient-1"))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, otherPro, oneDayRequest("patient-2"))
	require.NoError(t, err)

	info, err := f.svc.PatientInfo(ctx, patientActor)
	require.NoError(t, err)
	assert.Equal(t, "patient-1", info.ID)
	assert.Equal(t, "pro-1", info.NutritionistID)
	assert.Equal(t, 2, info.TotalPlans)
	assert.Equal(t, 1, info.ActivePlans)
	require.Len(t, info.Plans, 2)
	for _, p := range info.Plans {
		require.NotNil(t, p.PatientID)
		assert.Equal(t, "patient-1", *p.PatientID)
	}

	_, err = f.svc.PatientInfo(ctx, proActor)
	requireKind(t, err, apperr.ErrForbidden)

	_, err = f.svc.PatientInfo(ctx, access.Actor{ID: "user-x", Role: access.RolePatient})
	requireKind(t, err, apperr.ErrForbidden)

	_, err = f.svc.PatientInfo(ctx, access.Actor{ID: "user-x", Role: access.RolePatient, PatientID: "ghost"})
	requireKind(t, err, apperr.ErrNotFound)
}

func TestRemove_SetsDraft(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	req := oneDayRequest("patient-1")
	req.Status = StatusActive
	plan, err := f.svc.Create(ctx, proActor, req)
	require.NoError(t, err)

	requireKind(t, f.svc.Remove(ctx, otherPro, plan.ID), apperr.ErrForbidden)
	requireKind(t, f.svc.Remove(ctx, proActor, "missing"), apperr.ErrNotFound)
	require.NoError(t, f.svc.Remove(ctx, proActor, plan.ID))

	got, err := f.svc.Get(ctx, proActor, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Status)
}

func TestGet_Access(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	plan, err := f.svc.Create(ctx, proActor, oneDayRequest("patient-1"))
	require.NoError(t, err)

	for _, actor := range []access.Actor{proActor, patientActor, adminActor} {
		_, err := f.svc.Get(ctx, actor, plan.ID)
		assert.NoError(t, err, actor.ID)
	}
	for _, actor := range []access.Actor{otherPro, otherPatient} {
		_, err := f.svc.Get(ctx, actor, plan.ID)
		requireKind(t, err, apperr.ErrForbidden)
	}

	_, err = f.svc.Get(ctx, adminActor, "missing")
	requireKind(t, err, apperr.ErrNotFound)
}

func TestList_Scoping(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, proActor, oneDayRequest("patient-1"))
		require.NoError(t, err)
		f.clock = f.clock.Add(time.Minute)
	}
	template := oneDayRequest("")
	template.Name = "Template"
	_, err := f.svc.Create(ctx, proActor, template)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, otherPro, oneDayRequest("patient-2"))
	require.NoError(t, err)

	first := ListPlansFilter{Page: 1, Limit: 10}

	resp, err := f.svc.List(ctx, adminActor, first)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Pagination.Total)

	resp, err = f.svc.List(ctx, proActor, first)
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Pagination.Total)

	resp, err = f.svc.List(ctx, proActor, ListPlansFilter{Search: "templ", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Template", resp.Items[0].Name)

	resp, err = f.svc.List(ctx, patientActor, first)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Pagination.Total)

	resp, err = f.svc.List(ctx, proActor, ListPlansFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, Pagination{Page: 2, Limit: 3, Total: 4, TotalPages: 2}, resp.Pagination)

	_, err = f.svc.List(ctx, proActor, ListPlansFilter{PatientID: "patient-2", Page: 1, Limit: 10})
	requireKind(t, err, apperr.ErrForbidden)

	_, err = f.svc.List(ctx, patientActor, ListPlansFilter{PatientID: "patient-2", Page: 1, Limit: 10})
	requireKind(t, err, apperr.ErrForbidden)

	unlinked := access.Actor{ID: "user-x", Role: access.RolePatient}
	_, err = f.svc.List(ctx, unlinked, first)
	requireKind(t, err, apperr.ErrForbidden)
}

func TestParseListFilter(t *testing.T) {
	f, err := ParseListFilter(map[string][]string{})
	require.NoError(t, err)
	assert.Equal(t, ListPlansFilter{Page: 1, Limit: 10}, f)

	f, err = ParseListFilter(map[string][]string{"status": {"active"}, "page": {"3"}, "limit": {"100"}})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, f.Status)
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, 100, f.Limit)

	for _, q := range []map[string][]string{
		{"status": {"gone"}},
		{"page": {"0"}},
		{"limit": {"101"}},
		{"limit": {"abc"}},
	} {
		_, err := ParseListFilter(q)
		requireKind(t, err, apperr.ErrInvalidInput)
	}
}
