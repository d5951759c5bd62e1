package plans

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fdg312/nutri-plans/internal/apperr"
	"github.com/fdg312/nutri-plans/internal/meals"
)

const (
	StatusDraft     = "DRAFT"
	StatusActive    = "ACTIVE"
	StatusPaused    = "PAUSED"
	StatusCompleted = "COMPLETED"

	maxNameLength = 200

	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

var mealTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// Limits bound the size of a plan graph.
type Limits struct {
	MaxDays        int
	MaxMealsPerDay int
}

type PlanDTO struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	NutritionistID string     `json:"nutritionist_id"`
	PatientID      *string    `json:"patient_id"`
	Status         string     `json:"status"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	Goals          []string   `json:"goals"`
	Notes          string     `json:"notes"`
	KcalPerDay     *int       `json:"kcal_per_day"`
	ProteinG       *int       `json:"protein_g"`
	CarbsG         *int       `json:"carbs_g"`
	FatG           *int       `json:"fat_g"`
	Days           []DayDTO   `json:"days"`
	Totals         PlanTotals `json:"totals"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type DayDTO struct {
	ID        string          `json:"id"`
	DayOfWeek int             `json:"day_of_week"`
	IsActive  bool            `json:"is_active"`
	Notes     string          `json:"notes"`
	Position  int             `json:"position"`
	Meals     []meals.MealDTO `json:"meals"`
}

// PlanTotals sums meal snapshots only; the catalog is never consulted.
type PlanTotals struct {
	Kcal           int `json:"kcal"`
	ProteinG       int `json:"protein_g"`
	CarbsG         int `json:"carbs_g"`
	FatG           int `json:"fat_g"`
	Meals          int `json:"meals"`
	FulfilledMeals int `json:"fulfilled_meals"`
	CompletedMeals int `json:"completed_meals"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type ListPlansResponse struct {
	Items      []PlanDTO  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// PatientInfoDTO is the signed-in patient's record with their most recent
// plans. TotalPlans and ActivePlans count every plan, not only the returned ones.
type PatientInfoDTO struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	NutritionistID string    `json:"nutritionist_id"`
	Name           string    `json:"name"`
	Plans          []PlanDTO `json:"plans"`
	TotalPlans     int       `json:"total_plans"`
	ActivePlans    int       `json:"active_plans"`
}

type DayInput struct {
	DayOfWeek *int        `json:"day_of_week"`
	IsActive  *bool       `json:"is_active,omitempty"`
	Notes     string      `json:"notes"`
	Meals     []MealInput `json:"meals"`
}

type MealInput struct {
	Type        string   `json:"type"`
	Time        string   `json:"time"`
	Notes       string   `json:"notes"`
	IsCompleted bool     `json:"is_completed"`
	RecipeIDs   []string `json:"recipe_ids"`
}

type CreatePlanRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	PatientID   string     `json:"patient_id"`
	Status      string     `json:"status"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	Goals       []string   `json:"goals"`
	Notes       string     `json:"notes"`
	KcalPerDay  *int       `json:"kcal_per_day"`
	ProteinG    *int       `json:"protein_g"`
	CarbsG      *int       `json:"carbs_g"`
	FatG        *int       `json:"fat_g"`
	Days        []DayInput `json:"days"`
}

// UpdatePlanRequest is a partial update. Days, when present, replaces the
// whole day/meal subtree.
type UpdatePlanRequest struct {
	Name        *string     `json:"name"`
	Description *string     `json:"description"`
	PatientID   *string     `json:"patient_id"`
	Status      *string     `json:"status"`
	StartDate   *string     `json:"start_date"`
	EndDate     *string     `json:"end_date"`
	Goals       *[]string   `json:"goals"`
	Notes       *string     `json:"notes"`
	KcalPerDay  *int        `json:"kcal_per_day"`
	ProteinG    *int        `json:"protein_g"`
	CarbsG      *int        `json:"carbs_g"`
	FatG        *int        `json:"fat_g"`
	Days        *[]DayInput `json:"days"`
}

// ListPlansFilter is parsed from GET /v1/plans query parameters.
type ListPlansFilter struct {
	Search    string
	Status    string
	PatientID string
	Page      int
	Limit     int
}

func ParseListFilter(q url.Values) (ListPlansFilter, error) {
	f := ListPlansFilter{
		Search:    strings.TrimSpace(q.Get("search")),
		PatientID: strings.TrimSpace(q.Get("patient_id")),
		Page:      defaultPage,
		Limit:     defaultLimit,
	}

	if s := strings.ToUpper(strings.TrimSpace(q.Get("status"))); s != "" {
		if !ValidStatus(s) {
			return ListPlansFilter{}, apperr.InvalidInput("status must be one of DRAFT, ACTIVE, PAUSED, COMPLETED")
		}
		f.Status = s
	}

	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return ListPlansFilter{}, apperr.InvalidInput("page must be a positive integer")
		}
		f.Page = n
	}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxLimit {
			return ListPlansFilter{}, apperr.InvalidInput("limit must be between 1 and %d", maxLimit)
		}
		f.Limit = n
	}

	return f, nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.InvalidInput("%s must be YYYY-MM-DD or RFC 3339", field)
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.InvalidInput("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return apperr.InvalidInput("name must be at most %d characters", maxNameLength)
	}
	return nil
}

func validateTargets(values map[string]*int) error {
	for _, field := range []string{"kcal_per_day", "protein_g", "carbs_g", "fat_g"} {
		if v := values[field]; v != nil && *v < 0 {
			return apperr.InvalidInput("%s must be >= 0", field)
		}
	}
	return nil
}

// validateDays checks the structural payload and returns the distinct
// candidate recipe ids it references.
func validateDays(days []DayInput, limits Limits) ([]string, error) {
	if len(days) == 0 {
		return nil, apperr.InvalidInput("days must contain at least one day")
	}
	if limits.MaxDays > 0 && len(days) > limits.MaxDays {
		return nil, apperr.InvalidInput("days cannot exceed %d", limits.MaxDays)
	}

	seen := make(map[string]bool)
	var recipeIDs []string
	for i, day := range days {
		if day.DayOfWeek == nil {
			return nil, apperr.InvalidInput("days[%d]: day_of_week is required", i)
		}
		if *day.DayOfWeek < 0 || *day.DayOfWeek > 6 {
			return nil, apperr.InvalidInput("days[%d]: day_of_week must be 0-6", i)
		}
		if len(day.Meals) == 0 {
			return nil, apperr.InvalidInput("days[%d]: meals must contain at least one meal", i)
		}
		if limits.MaxMealsPerDay > 0 && len(day.Meals) > limits.MaxMealsPerDay {
			return nil, apperr.InvalidInput("days[%d]: meals cannot exceed %d", i, limits.MaxMealsPerDay)
		}
		for j, meal := range day.Meals {
			if !meals.ValidType(meal.Type) {
				return nil, apperr.InvalidInput("days[%d].meals[%d]: type must be one of BREAKFAST, LUNCH, DINNER, SNACK", i, j)
			}
			if !mealTimePattern.MatchString(meal.Time) {
				return nil, apperr.InvalidInput("days[%d].meals[%d]: time must be HH:MM", i, j)
			}
			for _, id := range meal.RecipeIDs {
				id = strings.TrimSpace(id)
				if id == "" {
					return nil, apperr.InvalidInput("days[%d].meals[%d]: recipe_ids must not contain empty ids", i, j)
				}
				if !seen[id] {
					seen[id] = true
					recipeIDs = append(recipeIDs, id)
				}
			}
		}
	}
	return recipeIDs, nil
}

func cleanGoals(goals []string) []string {
	out := make([]string, 0, len(goals))
	for _, g := range goals {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}
