package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Runs the plan/meal lifecycle against a live server started with
// AUTH_MODE=dev and CATALOG_SEED_FILE=seed/catalog.yaml.

const (
	defaultAPIBase = "http://localhost:8080"
)

var (
	apiBase      string
	proID        string
	patientID    string
	recipeID     string
	client       = &http.Client{Timeout: 30 * time.Second}
	proToken     string
	patientToken string
	planID       string
	mealID       string
)

func main() {
	fmt.Println("=== Nutri Plans E2E Smoke Test ===")
	fmt.Println()

	apiBase = getEnv("API_BASE_URL", defaultAPIBase)
	proID = getEnv("SMOKE_PRO_ID", "pro-demo-1")
	patientID = getEnv("SMOKE_PATIENT_ID", "patient-demo-1")
	recipeID = getEnv("SMOKE_RECIPE_ID", "oats-berries")

	fmt.Printf("API Base: %s\n", apiBase)
	fmt.Printf("Professional: %s  Patient: %s  Recipe: %s\n", proID, patientID, recipeID)
	fmt.Println()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"Healthz", testHealthz},
		{"Dev tokens", testDevTokens},
		{"Create plan", testCreatePlan},
		{"Select recipe (patient)", testSelectRecipe},
		{"Remove recipe (professional)", testRemoveRecipe},
		{"Custom meal (patient)", testCustomMeal},
		{"Complete meal", testCompleteMeal},
		{"Patient info", testPatientInfo},
		{"Replace days", testReplaceDays},
		{"Export CSV", testExportCSV},
		{"Delete plan", testDeletePlan},
	}

	for i, step := range steps {
		fmt.Printf("[%d/%d] %s... ", i+1, len(steps), step.name)
		if err := step.fn(); err != nil {
			fmt.Printf("FAILED\n")
			fmt.Printf("  Error: %v\n\n", err)
			fmt.Println("SMOKE TEST FAILED")
			os.Exit(1)
		}
		fmt.Printf("OK\n")
	}

	fmt.Println()
	fmt.Println("SMOKE TEST PASSED")
}

func testHealthz() error {
	var resp map[string]string
	if err := call("", "GET", "/healthz", nil, http.StatusOK, &resp); err != nil {
		return err
	}
	if resp["status"] != "ok" {
		return fmt.Errorf("expected status=ok, got %q", resp["status"])
	}
	return nil
}

func testDevTokens() error {
	var err error
	if proToken, err = devToken(proID, "PRO", ""); err != nil {
		return err
	}
	patientToken, err = devToken("user-"+patientID, "PATIENT", patientID)
	return err
}

func testCreatePlan() error {
	body := map[string]any{
		"name":        "Smoke plan " + time.Now().Format(time.RFC3339),
		"description": "Created by cmd/smoke",
		"patient_id":  patientID,
		"start_date":  time.Now().Format("2006-01-02"),
		"days": []map[string]any{{
			"day_of_week": 1,
			"meals":       []map[string]any{{"type": "BREAKFAST", "time": "08:00"}},
		}},
	}
	var plan planResponse
	if err := call(proToken, "POST", "/v1/plans", body, http.StatusCreated, &plan); err != nil {
		return err
	}
	if len(plan.Days) != 1 || len(plan.Days[0].Meals) != 1 {
		return fmt.Errorf("expected 1 day with 1 meal, got %d days", len(plan.Days))
	}
	planID = plan.ID
	mealID = plan.Days[0].Meals[0].ID
	if plan.Days[0].Meals[0].SelectedRecipeID != nil {
		return fmt.Errorf("new meal already has a recipe")
	}
	return nil
}

func testSelectRecipe() error {
	var meal mealResponse
	if err := call(patientToken, "POST", mealPath("/select-recipe"), map[string]string{"recipe_id": recipeID}, http.StatusOK, &meal); err != nil {
		return err
	}
	if meal.SelectedRecipeID == nil || *meal.SelectedRecipeID != recipeID || meal.Kcal == nil {
		return fmt.Errorf("selection not applied: %+v", meal)
	}
	return nil
}

func testRemoveRecipe() error {
	var meal mealResponse
	if err := call(proToken, "DELETE", mealPath("/recipe"), nil, http.StatusOK, &meal); err != nil {
		return err
	}
	if meal.SelectedRecipeID != nil || meal.Kcal != nil || meal.ProteinG != nil || meal.CarbsG != nil || meal.FatG != nil {
		return fmt.Errorf("snapshot not cleared: %+v", meal)
	}
	return nil
}

func testCustomMeal() error {
	body := map[string]any{"name": "Snack", "calories": 150, "protein": 5, "carbs": 20, "fat": 4}
	var meal mealResponse
	if err := call(patientToken, "POST", mealPath("/custom-meal"), body, http.StatusOK, &meal); err != nil {
		return err
	}
	if meal.Kcal == nil || *meal.Kcal != 150 {
		return fmt.Errorf("expected kcal=150, got %+v", meal.Kcal)
	}
	return nil
}

func testCompleteMeal() error {
	var meal mealResponse
	if err := call(patientToken, "POST", mealPath("/complete"), nil, http.StatusOK, &meal); err != nil {
		return err
	}
	if !meal.IsCompleted {
		return fmt.Errorf("meal not completed")
	}
	return nil
}

func testPatientInfo() error {
	var info struct {
		ID         string `json:"id"`
		TotalPlans int    `json:"total_plans"`
	}
	if err := call(patientToken, "GET", "/v1/plans/patient-info", nil, http.StatusOK, &info); err != nil {
		return err
	}
	if info.ID != patientID || info.TotalPlans < 1 {
		return fmt.Errorf("unexpected patient info: %+v", info)
	}
	return nil
}

func testReplaceDays() error {
	body := map[string]any{
		"days": []map[string]any{{
			"day_of_week": 2,
			"meals":       []map[string]any{{"type": "LUNCH", "time": "12:30"}},
		}},
	}
	var plan planResponse
	if err := call(proToken, "PATCH", "/v1/plans/"+planID, body, http.StatusOK, &plan); err != nil {
		return err
	}
	if len(plan.Days) != 1 || plan.Days[0].Meals[0].IsCompleted {
		return fmt.Errorf("days were not replaced")
	}
	return nil
}

func testExportCSV() error {
	data, err := raw(patientToken, "GET", "/v1/plans/"+planID+"/export?format=csv", nil, http.StatusOK)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(data, []byte("day_position,")) {
		return fmt.Errorf("unexpected CSV header: %.40q", data)
	}
	return nil
}

func testDeletePlan() error {
	if _, err := raw(proToken, "DELETE", "/v1/plans/"+planID, nil, http.StatusNoContent); err != nil {
		return err
	}
	var plan planResponse
	if err := call(proToken, "GET", "/v1/plans/"+planID, nil, http.StatusOK, &plan); err != nil {
		return err
	}
	if plan.Status != "DRAFT" {
		return fmt.Errorf("expected DRAFT after delete, got %s", plan.Status)
	}
	return nil
}

// ---- helpers ----

type mealResponse struct {
	ID               string  `json:"id"`
	IsCompleted      bool    `json:"is_completed"`
	SelectedRecipeID *string `json:"selected_recipe_id"`
	Kcal             *int    `json:"kcal"`
	ProteinG         *int    `json:"protein_g"`
	CarbsG           *int    `json:"carbs_g"`
	FatG             *int    `json:"fat_g"`
}

type planResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Days   []struct {
		Meals []mealResponse `json:"meals"`
	} `json:"days"`
}

func mealPath(suffix string) string {
	return "/v1/plans/meals/" + mealID + suffix
}

func devToken(userID, role, patient string) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	body := map[string]string{"user_id": userID, "role": role, "patient_id": patient}
	if err := call("", "POST", "/v1/auth/dev", body, http.StatusOK, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

func call(token, method, path string, body any, wantStatus int, out any) error {
	data, err := raw(token, method, path, body, wantStatus)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func raw(token, method, path string, body any, wantStatus int) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, apiBase+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("%s %s: expected %d, got %d: %s", method, path, wantStatus, resp.StatusCode, string(data))
	}
	return data, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
