package seed

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/nutri-plans/internal/catalog"
	"github.com/fdg312/nutri-plans/internal/storage/memory"
)

const sample = `
recipes:
  - id: r1
    name: Oats
    difficulty: easy
    tags: [breakfast]
    nutrition:
      calories: 300
      protein: 10.5
  - id: r2
    name: Retired stew
    active: false
patients:
  - id: p1
    user_id: u1
    nutritionist_id: pro-1
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, f.Recipes, 2)
	require.Len(t, f.Patients, 1)
	assert.Equal(t, 10.5, f.Recipes[0].Nutrition.Protein)
	assert.Equal(t, "pro-1", f.Patients[0].NutritionistID)
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Recipes)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":        "recipes:\n  - id: r1\n    name: x\n    calories: 5\n",
		"missing id":         "recipes:\n  - name: x\n",
		"duplicate id":       "recipes:\n  - id: r1\n    name: x\n  - id: r1\n    name: y\n",
		"bad difficulty":     "recipes:\n  - id: r1\n    name: x\n    difficulty: EXTREME\n",
		"negative nutrition": "recipes:\n  - id: r1\n    name: x\n    nutrition:\n      fat: -1\n",
		"reserved tag":       "recipes:\n  - id: r1\n    name: x\n    tags: [Custom]\n",
		"patient no owner":   "patients:\n  - id: p1\n",
		"not yaml":           "recipes: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	res, err := Apply(ctx, store.GetRecipesStorage(), store.GetPatientsStorage(), f)
	require.NoError(t, err)
	assert.Equal(t, Result{Recipes: 2, Patients: 1}, res)

	r1, err := store.GetRecipesStorage().GetRecipe(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, r1.IsActive)
	assert.Equal(t, catalog.DifficultyEasy, r1.Difficulty)
	assert.Equal(t, 1, r1.Servings)

	r2, err := store.GetRecipesStorage().GetRecipe(ctx, "r2")
	require.NoError(t, err)
	assert.False(t, r2.IsActive)

	p1, err := store.GetPatientsStorage().GetPatient(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p1.UserID)

	// idempotent
	res, err = Apply(ctx, store.GetRecipesStorage(), store.GetPatientsStorage(), f)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Recipes)
}

func TestLoad_RepositoryCatalog(t *testing.T) {
	f, err := Load(filepath.Join("..", "..", "seed", "catalog.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, f.Recipes)
	assert.NotEmpty(t, f.Patients)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
