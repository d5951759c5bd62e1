package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/fdg312/nutri-plans/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recipeColumns = `
	id, name, description, image, prep_time, cook_time, servings, difficulty, tags, allergens,
	is_active, author_id, calories, protein, carbs, fat, fiber, sugar, sodium, cholesterol,
	created_at, updated_at`

type recipesStorage struct {
	pool *pgxpool.Pool
}

func newRecipesStorage(pool *pgxpool.Pool) *recipesStorage {
	return &recipesStorage{pool: pool}
}

func (s *recipesStorage) GetRecipe(ctx context.Context, id string) (storage.Recipe, error) {
	query := fmt.Sprintf(`SELECT %s FROM recipes WHERE id = $1`, recipeColumns)
	r, err := scanRecipe(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return storage.Recipe{}, notFound(err)
	}
	return r, nil
}

func (s *recipesStorage) SearchRecipes(ctx context.Context, q storage.RecipeQuery) ([]storage.Recipe, error) {
	var args []interface{}
	var conds []string

	if q.ActiveOnly {
		conds = append(conds, "is_active = TRUE")
	}
	if q.Difficulty != "" {
		args = append(args, q.Difficulty)
		conds = append(conds, fmt.Sprintf("difficulty = $%d", len(args)))
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		args = append(args, strings.ToLower(search))
		conds = append(conds, fmt.Sprintf("(strpos(LOWER(name), $%d) > 0 OR strpos(LOWER(description), $%d) > 0)", len(args), len(args)))
	}
	if len(q.Tags) > 0 {
		args = append(args, lowerAll(q.Tags))
		conds = append(conds, fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE LOWER(tag) = ANY($%d))", len(args)))
	}
	if len(q.ExcludeTags) > 0 {
		args = append(args, lowerAll(q.ExcludeTags))
		conds = append(conds, fmt.Sprintf("NOT EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE LOWER(tag) = ANY($%d))", len(args)))
	}

	whereClause := ""
	if len(conds) > 0 {
		whereClause = "WHERE " + strings.Join(conds, " AND ")
	}

	limitClause := ""
	if q.Limit > 0 {
		args = append(args, q.Limit)
		limitClause = fmt.Sprintf("LIMIT $%d", len(args))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM recipes
		%s
		ORDER BY created_at DESC, id
		%s
	`, recipeColumns, whereClause, limitClause)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search recipes: %w", err)
	}
	defer rows.Close()

	recipes := []storage.Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, r)
	}
	return recipes, rows.Err()
}

func (s *recipesStorage) SaveRecipe(ctx context.Context, r storage.Recipe) (storage.Recipe, error) {
	query := fmt.Sprintf(`
		INSERT INTO recipes (id, name, description, image, prep_time, cook_time, servings, difficulty,
		                     tags, allergens, is_active, author_id,
		                     calories, protein, carbs, fat, fiber, sugar, sodium, cholesterol)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			image = EXCLUDED.image,
			prep_time = EXCLUDED.prep_time,
			cook_time = EXCLUDED.cook_time,
			servings = EXCLUDED.servings,
			difficulty = EXCLUDED.difficulty,
			tags = EXCLUDED.tags,
			allergens = EXCLUDED.allergens,
			is_active = EXCLUDED.is_active,
			author_id = EXCLUDED.author_id,
			calories = EXCLUDED.calories,
			protein = EXCLUDED.protein,
			carbs = EXCLUDED.carbs,
			fat = EXCLUDED.fat,
			fiber = EXCLUDED.fiber,
			sugar = EXCLUDED.sugar,
			sodium = EXCLUDED.sodium,
			cholesterol = EXCLUDED.cholesterol,
			updated_at = NOW()
		RETURNING %s
	`, recipeColumns)

	n := r.Nutrition
	saved, err := scanRecipe(s.pool.QueryRow(ctx, query,
		r.ID,
		r.Name,
		r.Description,
		r.Image,
		r.PrepTime,
		r.CookTime,
		r.Servings,
		r.Difficulty,
		nonNil(r.Tags),
		nonNil(r.Allergens),
		r.IsActive,
		r.AuthorID,
		n.Calories,
		n.Protein,
		n.Carbs,
		n.Fat,
		n.Fiber,
		n.Sugar,
		n.Sodium,
		n.Cholesterol,
	))
	if err != nil {
		return storage.Recipe{}, fmt.Errorf("failed to save recipe: %w", err)
	}
	return saved, nil
}

func (s *recipesStorage) MissingRecipeIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT id FROM recipes WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check recipes: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func scanRecipe(row pgx.Row) (storage.Recipe, error) {
	var r storage.Recipe
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Description,
		&r.Image,
		&r.PrepTime,
		&r.CookTime,
		&r.Servings,
		&r.Difficulty,
		&r.Tags,
		&r.Allergens,
		&r.IsActive,
		&r.AuthorID,
		&r.Nutrition.Calories,
		&r.Nutrition.Protein,
		&r.Nutrition.Carbs,
		&r.Nutrition.Fat,
		&r.Nutrition.Fiber,
		&r.Nutrition.Sugar,
		&r.Nutrition.Sodium,
		&r.Nutrition.Cholesterol,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func (s *recipesStorage) DeleteRecipe(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM recipes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	return nil
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
