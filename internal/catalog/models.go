package catalog

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fdg312/nutri-plans/internal/apperr"
)

const (
	DifficultyEasy   = "EASY"
	DifficultyMedium = "MEDIUM"
	DifficultyHard   = "HARD"

	// CustomTag marks recipes synthesized for ad-hoc meals.
	CustomTag = "custom"

	defaultSearchLimit = 50
	maxSearchLimit     = 100
)

type NutritionDTO struct {
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fat         float64 `json:"fat"`
	Fiber       float64 `json:"fiber"`
	Sugar       float64 `json:"sugar"`
	Sodium      float64 `json:"sodium"`
	Cholesterol float64 `json:"cholesterol"`
}

type RecipeDTO struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Image       string       `json:"image,omitempty"`
	PrepTime    int          `json:"prep_time"`
	CookTime    int          `json:"cook_time"`
	Servings    int          `json:"servings"`
	Difficulty  string       `json:"difficulty"`
	Tags        []string     `json:"tags"`
	Allergens   []string     `json:"allergens"`
	IsActive    bool         `json:"is_active"`
	AuthorID    string       `json:"author_id,omitempty"`
	Nutrition   NutritionDTO `json:"nutrition"`
	CreatedAt   time.Time    `json:"created_at"`
}

type ListRecipesResponse struct {
	Items []RecipeDTO `json:"items"`
}

// RecipeFilter narrows a catalog search. Tags match when any tag overlaps.
type RecipeFilter struct {
	Search     string
	Tags       []string
	Difficulty string
	Limit      int
}

// ParseFilter reads search, tags (comma separated), difficulty and limit.
func ParseFilter(q url.Values) (RecipeFilter, error) {
	f := RecipeFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Limit:  defaultSearchLimit,
	}

	for _, raw := range q["tags"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}

	if d := strings.ToUpper(strings.TrimSpace(q.Get("difficulty"))); d != "" {
		if !ValidDifficulty(d) {
			return RecipeFilter{}, apperr.InvalidInput("difficulty must be one of EASY, MEDIUM, HARD")
		}
		f.Difficulty = d
	}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxSearchLimit {
			return RecipeFilter{}, apperr.InvalidInput("limit must be between 1 and %d", maxSearchLimit)
		}
		f.Limit = n
	}

	return f, nil
}

func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}
