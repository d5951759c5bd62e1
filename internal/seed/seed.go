// Package seed loads catalog recipes and patient relationships from a YAML
// fixture file into any storage backend.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fdg312/nutri-plans/internal/catalog"
	"github.com/fdg312/nutri-plans/internal/storage"
)

// File is the top-level document of a seed file.
type File struct {
	Recipes  []Recipe  `yaml:"recipes"`
	Patients []Patient `yaml:"patients"`
}

type Recipe struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Image       string    `yaml:"image"`
	PrepTime    int       `yaml:"prep_time"`
	CookTime    int       `yaml:"cook_time"`
	Servings    int       `yaml:"servings"`
	Difficulty  string    `yaml:"difficulty"`
	Tags        []string  `yaml:"tags"`
	Allergens   []string  `yaml:"allergens"`
	Active      *bool     `yaml:"active"`
	AuthorID    string    `yaml:"author_id"`
	Nutrition   Nutrition `yaml:"nutrition"`
}

type Nutrition struct {
	Calories    float64 `yaml:"calories"`
	Protein     float64 `yaml:"protein"`
	Carbs       float64 `yaml:"carbs"`
	Fat         float64 `yaml:"fat"`
	Fiber       float64 `yaml:"fiber"`
	Sugar       float64 `yaml:"sugar"`
	Sodium      float64 `yaml:"sodium"`
	Cholesterol float64 `yaml:"cholesterol"`
}

type Patient struct {
	ID             string `yaml:"id"`
	UserID         string `yaml:"user_id"`
	NutritionistID string `yaml:"nutritionist_id"`
	Name           string `yaml:"name"`
}

// Result counts what Apply wrote.
type Result struct {
	Recipes  int
	Patients int
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) Validate() error {
	recipeIDs := make(map[string]bool, len(f.Recipes))
	for i, r := range f.Recipes {
		if strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("recipes[%d]: id is required", i)
		}
		if recipeIDs[r.ID] {
			return fmt.Errorf("recipes[%d]: duplicate id %q", i, r.ID)
		}
		recipeIDs[r.ID] = true
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("recipes[%d]: name is required", i)
		}
		if r.Difficulty != "" && !catalog.ValidDifficulty(strings.ToUpper(r.Difficulty)) {
			return fmt.Errorf("recipes[%d]: unknown difficulty %q", i, r.Difficulty)
		}
		for _, t := range r.Tags {
			if strings.EqualFold(t, catalog.CustomTag) {
				return fmt.Errorf("recipes[%d]: tag %q is reserved for custom meals", i, t)
			}
		}
		n := r.Nutrition
		if n.Calories < 0 || n.Protein < 0 || n.Carbs < 0 || n.Fat < 0 ||
			n.Fiber < 0 || n.Sugar < 0 || n.Sodium < 0 || n.Cholesterol < 0 {
			return fmt.Errorf("recipes[%d]: nutrition values must be >= 0", i)
		}
	}

	patientIDs := make(map[string]bool, len(f.Patients))
	for i, p := range f.Patients {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("patients[%d]: id is required", i)
		}
		if patientIDs[p.ID] {
			return fmt.Errorf("patients[%d]: duplicate id %q", i, p.ID)
		}
		patientIDs[p.ID] = true
		if strings.TrimSpace(p.NutritionistID) == "" {
			return fmt.Errorf("patients[%d]: nutritionist_id is required", i)
		}
	}
	return nil
}

// Apply upserts every recipe and patient. Re-running it is safe.
func Apply(ctx context.Context, recipes storage.RecipesStorage, patients storage.PatientsStorage, f *File) (Result, error) {
	var res Result
	for _, r := range f.Recipes {
		if _, err := recipes.SaveRecipe(ctx, r.toStorage()); err != nil {
			return res, fmt.Errorf("save recipe %s: %w", r.ID, err)
		}
		res.Recipes++
	}
	for _, p := range f.Patients {
		if _, err := patients.UpsertPatient(ctx, storage.Patient{
			ID:             p.ID,
			UserID:         p.UserID,
			NutritionistID: p.NutritionistID,
			Name:           p.Name,
		}); err != nil {
			return res, fmt.Errorf("save patient %s: %w", p.ID, err)
		}
		res.Patients++
	}
	return res, nil
}

func (r Recipe) toStorage() storage.Recipe {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	difficulty := strings.ToUpper(r.Difficulty)
	if difficulty == "" {
		difficulty = catalog.DifficultyEasy
	}
	servings := r.Servings
	if servings <= 0 {
		servings = 1
	}
	return storage.Recipe{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Image:       r.Image,
		PrepTime:    r.PrepTime,
		CookTime:    r.CookTime,
		Servings:    servings,
		Difficulty:  difficulty,
		Tags:        r.Tags,
		Allergens:   r.Allergens,
		IsActive:    active,
		AuthorID:    r.AuthorID,
		Nutrition: storage.Nutrition{
			Calories:    r.Nutrition.Calories,
			Protein:     r.Nutrition.Protein,
			Carbs:       r.Nutrition.Carbs,
			Fat:         r.Nutrition.Fat,
			Fiber:       r.Nutrition.Fiber,
			Sugar:       r.Nutrition.Sugar,
			Sodium:      r.Nutrition.Sodium,
			Cholesterol: r.Nutrition.Cholesterol,
		},
	}
}
