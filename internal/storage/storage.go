package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by every backend when a row does not exist.
var ErrNotFound = errors.New("storage: not found")

// Storage bundles the stores used by the API. Memory and Postgres backends
// both implement it.
type Storage interface {
	GetPlansStorage() PlansStorage
	GetRecipesStorage() RecipesStorage
	GetPatientsStorage() PatientsStorage

	// Close releases the connection pool (Postgres only)
	Close() error
}

// Plan is a nutrition program with its full day/meal graph.
type Plan struct {
	ID             string
	Name           string
	Description    string
	NutritionistID string
	PatientID      string // empty for unassigned templates
	Status         string
	StartDate      time.Time
	EndDate        *time.Time
	Goals          []string
	Notes          string
	KcalPerDay     *int
	ProteinG       *int
	CarbsG         *int
	FatG           *int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Days           []PlanDay
}

type PlanDay struct {
	ID        string
	PlanID    string
	DayOfWeek int
	IsActive  bool
	Notes     string
	Position  int
	Meals     []PlanMeal
}

// PlanMeal is a meal slot. Kcal/ProteinG/CarbsG/FatG are a snapshot taken
// when SelectedRecipeID was written; all five are nil together.
type PlanMeal struct {
	ID               string
	DayID            string
	PlanID           string
	Type             string
	Time             string
	IsCompleted      bool
	CompletedAt      *time.Time
	Notes            string
	RecipeIDs        []string
	SelectedRecipeID *string
	Kcal             *int
	ProteinG         *int
	CarbsG           *int
	FatG             *int
	Position         int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PlanInsert describes a new plan graph.
type PlanInsert struct {
	Name           string
	Description    string
	NutritionistID string
	PatientID      string
	Status         string
	StartDate      time.Time
	EndDate        *time.Time
	Goals          []string
	Notes          string
	KcalPerDay     *int
	ProteinG       *int
	CarbsG         *int
	FatG           *int
	Days           []PlanDayInsert
}

type PlanDayInsert struct {
	DayOfWeek int
	IsActive  bool
	Notes     string
	Meals     []PlanMealInsert
}

type PlanMealInsert struct {
	Type        string
	Time        string
	IsCompleted bool
	CompletedAt *time.Time
	Notes       string
	RecipeIDs   []string
}

// PlanPatch is a partial metadata update; nil fields are left unchanged.
type PlanPatch struct {
	Name        *string
	Description *string
	PatientID   *string // pointer to "" unassigns the plan
	Status      *string
	StartDate   *time.Time
	EndDate     *time.Time
	Goals       *[]string
	Notes       *string
	KcalPerDay  *int
	ProteinG    *int
	CarbsG      *int
	FatG        *int
}

// PlanQuery filters ListPlans. Empty strings mean "any".
type PlanQuery struct {
	NutritionistID string
	PatientID      string
	Search         string
	Status         string
	Limit          int
	Offset         int
}

// MealOwner ties a meal to the ownership of its plan.
type MealOwner struct {
	MealID         string
	PlanID         string
	NutritionistID string
	PatientID      string
}

// MealSelection is the recipe reference plus its rounded snapshot.
type MealSelection struct {
	RecipeID string
	Kcal     int
	ProteinG int
	CarbsG   int
	FatG     int
}

// PlansStorage owns the Plan → Day → Meal graph.
type PlansStorage interface {
	// CreatePlan inserts the plan, its days, meals and candidate links in one transaction
	CreatePlan(ctx context.Context, in PlanInsert) (Plan, error)

	// GetPlan returns the plan with days and meals ordered by position
	GetPlan(ctx context.Context, id string) (Plan, error)

	// UpdatePlan applies a metadata patch without touching days
	UpdatePlan(ctx context.Context, id string, patch PlanPatch) (Plan, error)

	// ReplacePlanDays applies patch, then deletes every day and meal of the plan
	// and inserts days in their place, all in one transaction. Completion and
	// selection state of the old meals is dropped.
	ReplacePlanDays(ctx context.Context, id string, patch PlanPatch, days []PlanDayInsert) (Plan, error)

	// SetPlanStatus changes only the status
	SetPlanStatus(ctx context.Context, id string, status string) (Plan, error)

	// ListPlans returns a page of plans (newest first) and the total match count
	ListPlans(ctx context.Context, q PlanQuery) ([]Plan, int, error)

	// GetMealOwner resolves a meal to its plan's ownership
	GetMealOwner(ctx context.Context, mealID string) (MealOwner, error)

	GetMeal(ctx context.Context, mealID string) (PlanMeal, error)

	// SetMealSelection writes the selection and snapshot; nil clears both
	SetMealSelection(ctx context.Context, mealID string, sel *MealSelection) (PlanMeal, error)

	// CompleteMeal sets is_completed and overwrites completed_at with at
	CompleteMeal(ctx context.Context, mealID string, at time.Time) (PlanMeal, error)
}

// Nutrition is a recipe's per-serving profile.
type Nutrition struct {
	Calories    float64
	Protein     float64
	Carbs       float64
	Fat         float64
	Fiber       float64
	Sugar       float64
	Sodium      float64
	Cholesterol float64
}

type Recipe struct {
	ID          string
	Name        string
	Description string
	Image       string
	PrepTime    int
	CookTime    int
	Servings    int
	Difficulty  string
	Tags        []string
	Allergens   []string
	IsActive    bool
	AuthorID    string
	Nutrition   Nutrition
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RecipeQuery filters SearchRecipes. Tags match on any overlap; a recipe
// carrying any of ExcludeTags is skipped.
type RecipeQuery struct {
	ActiveOnly  bool
	Search      string
	Tags        []string
	ExcludeTags []string
	Difficulty  string
	Limit       int
}

type RecipesStorage interface {
	GetRecipe(ctx context.Context, id string) (Recipe, error)

	// SearchRecipes returns matches ordered by created_at desc
	SearchRecipes(ctx context.Context, q RecipeQuery) ([]Recipe, error)

	// SaveRecipe inserts or replaces by ID; an empty ID gets a new one
	SaveRecipe(ctx context.Context, r Recipe) (Recipe, error)

	// MissingRecipeIDs returns the subset of ids with no recipe row
	MissingRecipeIDs(ctx context.Context, ids []string) ([]string, error)

	// DeleteRecipe removes a recipe row; a missing row is not an error
	DeleteRecipe(ctx context.Context, id string) error
}

// Patient is the patient record linking a user to their nutritionist.
type Patient struct {
	ID             string
	UserID         string
	NutritionistID string
	Name           string
	CreatedAt      time.Time
}

type PatientsStorage interface {
	GetPatient(ctx context.Context, id string) (Patient, error)

	// UpsertPatient inserts or replaces by ID; an empty ID gets a new one
	UpsertPatient(ctx context.Context, p Patient) (Patient, error)
}
