package planexport

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/nutri-plans/internal/access"
	"github.com/fdg312/nutri-plans/internal/catalog"
	"github.com/fdg312/nutri-plans/internal/meals"
	"github.com/fdg312/nutri-plans/internal/plans"
	"github.com/fdg312/nutri-plans/internal/storage"
	"github.com/fdg312/nutri-plans/internal/storage/memory"
	"github.com/fdg312/nutri-plans/internal/userctx"
)

var (
	pro     = access.Actor{ID: "pro-1", Role: access.RoleProfessional}
	patient = access.Actor{ID: "user-p1", Role: access.RolePatient, PatientID: "patient-1"}
	other   = access.Actor{ID: "pro-2", Role: access.RoleProfessional}
)

func setupPlan(t *testing.T) (*plans.Service, plans.PlanDTO) {
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
	_, err = store.GetPatientsStorage().UpsertPatient(ctx, storage.Patient{ID: "patient-1", NutritionistID: "pro-1"})
	require.NoError(t, err)

	cat := catalog.NewService(store.GetRecipesStorage())
	planSvc := plans.NewService(store.GetPlansStorage(), store.GetPatientsStorage(), cat, plans.Limits{MaxDays: 7, MaxMealsPerDay: 4})
	mealSvc := meals.NewService(store.GetPlansStorage(), cat)

	monday := 1
	plan, err := planSvc.Create(ctx, pro, plans.CreatePlanRequest{
		Name:        "Crème brûlée week",
		Description: "Export test",
		PatientID:   "patient-1",
		StartDate:   "2026-03-02",
		Goals:       []string{"energy"},
		KcalPerDay:  func() *int { v := 1800; return &v }(),
		Days: []plans.DayInput{{
			DayOfWeek: &monday,
			Meals: []plans.MealInput{
				{Type: meals.TypeBreakfast, Time: "08:00"},
				{Type: meals.TypeDinner, Time: "19:00", Notes: "light, early"},
			},
		}},
	})
	require.NoError(t, err)

	_, err = mealSvc.SelectRecipe(ctx, patient, plan.Days[0].Meals[0].ID, meals.SelectRecipeRequest{RecipeID: "R1"})
	require.NoError(t, err)
	_, err = mealSvc.CompleteMeal(ctx, patient, plan.Days[0].Meals[0].ID)
	require.NoError(t, err)

	plan, err = planSvc.Get(ctx, pro, plan.ID)
	require.NoError(t, err)
	return planSvc, plan
}

func TestRenderCSV(t *testing.T) {
	_, plan := setupPlan(t)

	data, err := Render(plan, FormatCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])

	first := rows[1]
	assert.Equal(t, "Monday", first[1])
	assert.Equal(t, "BREAKFAST", first[4])
	assert.Equal(t, "R1", first[6])
	assert.Equal(t, []string{"400", "30", "46", "10"}, first[7:11])
	assert.Equal(t, "true", first[11])
	_, err = time.Parse(time.RFC3339, first[12])
	assert.NoError(t, err)

	second := rows[2]
	assert.Equal(t, "", second[6])
	assert.Equal(t, "", second[7])
	assert.Equal(t, "false", second[11])
	assert.Equal(t, "light, early", second[13])
}

func TestRenderPDF(t *testing.T) {
	_, plan := setupPlan(t)

	data, err := Render(plan, FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestRenderUnsupported(t *testing.T) {
	_, plan := setupPlan(t)
	_, err := Render(plan, "xlsx")
	assert.Error(t, err)
}

func TestHandleExport(t *testing.T) {
	svc, plan := setupPlan(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/plans/{id}/export", NewHandler(svc).HandleExport)

	do := func(actor *access.Actor, query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/v1/plans/"+plan.ID+"/export"+query, nil)
		if actor != nil {
			req = req.WithContext(userctx.WithActor(req.Context(), *actor))
		}
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	w := do(&patient, "?format=csv")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "plan-"+plan.ID+".csv")

	w = do(&pro, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w = do(&pro, "?format=docx")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(&other, "?format=csv")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(nil, "?format=csv")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
