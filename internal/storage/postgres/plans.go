package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/nutri-plans/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const planColumns = `
	id::text, name, description, nutritionist_id, COALESCE(patient_id, ''), status,
	start_date, end_date, goals, notes, kcal_per_day, protein_g, carbs_g, fat_g,
	created_at, updated_at`

const mealColumns = `
	id::text, day_id::text, plan_id::text, type, time, is_completed, completed_at, notes,
	selected_recipe_id, kcal, protein_g, carbs_g, fat_g, position, created_at, updated_at`

type plansStorage struct {
	pool *pgxpool.Pool
}

func newPlansStorage(pool *pgxpool.Pool) *plansStorage {
	return &plansStorage{pool: pool}
}

func (s *plansStorage) CreatePlan(ctx context.Context, in storage.PlanInsert) (storage.Plan, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.Plan{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		INSERT INTO plans (name, description, nutritionist_id, patient_id, status, start_date, end_date,
		                   goals, notes, kcal_per_day, protein_g, carbs_g, fat_g)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING %s
	`, planColumns)

	plan, err := scanPlan(tx.QueryRow(ctx, query,
		in.Name,
		in.Description,
		in.NutritionistID,
		in.PatientID,
		in.Status,
		in.StartDate,
		in.EndDate,
		nonNil(in.Goals),
		in.Notes,
		in.KcalPerDay,
		in.ProteinG,
		in.CarbsG,
		in.FatG,
	))
	if err != nil {
		return storage.Plan{}, fmt.Errorf("failed to create plan: %w", err)
	}

	if err := insertDays(ctx, tx, plan.ID, in.Days); err != nil {
		return storage.Plan{}, err
	}

	if err := loadGraphs(ctx, tx, []*storage.Plan{&plan}); err != nil {
		return storage.Plan{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return storage.Plan{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return plan, nil
}

func (s *plansStorage) GetPlan(ctx context.Context, id string) (storage.Plan, error) {
	return getPlan(ctx, s.pool, id)
}

func (s *plansStorage) UpdatePlan(ctx context.Context, id string, patch storage.PlanPatch) (storage.Plan, error) {
	if !isUUID(id) {
		return storage.Plan{}, storage.ErrNotFound
	}
	if err := updatePlanRow(ctx, s.pool, id, patch); err != nil {
		return storage.Plan{}, err
	}
	return getPlan(ctx, s.pool, id)
}

func (s *plansStorage) ReplacePlanDays(ctx context.Context, id string, patch storage.PlanPatch, days []storage.PlanDayInsert) (storage.Plan, error) {
	if !isUUID(id) {
		return storage.Plan{}, storage.ErrNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.Plan{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updatePlanRow(ctx, tx, id, patch); err != nil {
		return storage.Plan{}, err
	}

	// Meals and candidate links go with their days (ON DELETE CASCADE)
	if _, err := tx.Exec(ctx, `DELETE FROM plan_days WHERE plan_id = $1`, id); err != nil {
		return storage.Plan{}, fmt.Errorf("failed to delete plan days: %w", err)
	}

	if err := insertDays(ctx, tx, id, days); err != nil {
		return storage.Plan{}, err
	}

	plan, err := getPlan(ctx, tx, id)
	if err != nil {
		return storage.Plan{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return storage.Plan{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return plan, nil
}

func (s *plansStorage) SetPlanStatus(ctx context.Context, id string, status string) (storage.Plan, error) {
	return s.UpdatePlan(ctx, id, storage.PlanPatch{Status: &status})
}

func (s *plansStorage) ListPlans(ctx context.Context, q storage.PlanQuery) ([]storage.Plan, int, error) {
	var args []interface{}
	var conds []string

	if q.NutritionistID != "" {
		args = append(args, q.NutritionistID)
		conds = append(conds, fmt.Sprintf("nutritionist_id = $%d", len(args)))
	}
	if q.PatientID != "" {
		args = append(args, q.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		args = append(args, strings.ToLower(search))
		conds = append(conds, fmt.Sprintf("(strpos(LOWER(name), $%d) > 0 OR strpos(LOWER(description), $%d) > 0)", len(args), len(args)))
	}

	whereClause := ""
	if len(conds) > 0 {
		whereClause = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM plans %s", whereClause)
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count plans: %w", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM plans
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, planColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []storage.Plan{}
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	ptrs := make([]*storage.Plan, len(plans))
	for i := range plans {
		ptrs[i] = &plans[i]
	}
	if err := loadGraphs(ctx, s.pool, ptrs); err != nil {
		return nil, 0, err
	}

	return plans, total, nil
}

func (s *plansStorage) GetMealOwner(ctx context.Context, mealID string) (storage.MealOwner, error) {
	if !isUUID(mealID) {
		return storage.MealOwner{}, storage.ErrNotFound
	}

	query := `
		SELECT m.id::text, p.id::text, p.nutritionist_id, COALESCE(p.patient_id, '')
		FROM plan_meals m
		JOIN plans p ON p.id = m.plan_id
		WHERE m.id = $1
	`

	var owner storage.MealOwner
	err := s.pool.QueryRow(ctx, query, mealID).Scan(
		&owner.MealID,
		&owner.PlanID,
		&owner.NutritionistID,
		&owner.PatientID,
	)
	if err != nil {
		return storage.MealOwner{}, notFound(err)
	}
	return owner, nil
}

func (s *plansStorage) GetMeal(ctx context.Context, mealID string) (storage.PlanMeal, error) {
	if !isUUID(mealID) {
		return storage.PlanMeal{}, storage.ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM plan_meals WHERE id = $1`, mealColumns)
	return s.mealWithLinks(ctx, s.pool.QueryRow(ctx, query, mealID))
}

func (s *plansStorage) SetMealSelection(ctx context.Context, mealID string, sel *storage.MealSelection) (storage.PlanMeal, error) {
	if !isUUID(mealID) {
		return storage.PlanMeal{}, storage.ErrNotFound
	}

	query := fmt.Sprintf(`
		UPDATE plan_meals
		SET selected_recipe_id = $2, kcal = $3, protein_g = $4, carbs_g = $5, fat_g = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, mealColumns)

	var row pgx.Row
	if sel == nil {
		row = s.pool.QueryRow(ctx, query, mealID, nil, nil, nil, nil, nil)
	} else {
		row = s.pool.QueryRow(ctx, query, mealID, sel.RecipeID, sel.Kcal, sel.ProteinG, sel.CarbsG, sel.FatG)
	}
	return s.mealWithLinks(ctx, row)
}

func (s *plansStorage) CompleteMeal(ctx context.Context, mealID string, at time.Time) (storage.PlanMeal, error) {
	if !isUUID(mealID) {
		return storage.PlanMeal{}, storage.ErrNotFound
	}

	query := fmt.Sprintf(`
		UPDATE plan_meals
		SET is_completed = TRUE, completed_at = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, mealColumns)

	return s.mealWithLinks(ctx, s.pool.QueryRow(ctx, query, mealID, at.UTC()))
}

func (s *plansStorage) mealWithLinks(ctx context.Context, row pgx.Row) (storage.PlanMeal, error) {
	meal, err := scanMeal(row)
	if err != nil {
		return storage.PlanMeal{}, notFound(err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT recipe_id FROM plan_meal_recipes WHERE meal_id = $1 ORDER BY position
	`, meal.ID)
	if err != nil {
		return storage.PlanMeal{}, fmt.Errorf("failed to load meal recipes: %w", err)
	}
	defer rows.Close()

	meal.RecipeIDs = []string{}
	for rows.Next() {
		var recipeID string
		if err := rows.Scan(&recipeID); err != nil {
			return storage.PlanMeal{}, err
		}
		meal.RecipeIDs = append(meal.RecipeIDs, recipeID)
	}
	return meal, rows.Err()
}

func getPlan(ctx context.Context, q querier, id string) (storage.Plan, error) {
	if !isUUID(id) {
		return storage.Plan{}, storage.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM plans WHERE id = $1`, planColumns)
	plan, err := scanPlan(q.QueryRow(ctx, query, id))
	if err != nil {
		return storage.Plan{}, notFound(err)
	}

	if err := loadGraphs(ctx, q, []*storage.Plan{&plan}); err != nil {
		return storage.Plan{}, err
	}
	return plan, nil
}

func updatePlanRow(ctx context.Context, q querier, id string, patch storage.PlanPatch) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.PatientID != nil {
		args = append(args, *patch.PatientID)
		sets = append(sets, fmt.Sprintf("patient_id = NULLIF($%d, '')", len(args)))
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.StartDate != nil {
		add("start_date", *patch.StartDate)
	}
	if patch.EndDate != nil {
		add("end_date", *patch.EndDate)
	}
	if patch.Goals != nil {
		add("goals", nonNil(*patch.Goals))
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}
	if patch.KcalPerDay != nil {
		add("kcal_per_day", *patch.KcalPerDay)
	}
	if patch.ProteinG != nil {
		add("protein_g", *patch.ProteinG)
	}
	if patch.CarbsG != nil {
		add("carbs_g", *patch.CarbsG)
	}
	if patch.FatG != nil {
		add("fat_g", *patch.FatG)
	}

	query := fmt.Sprintf("UPDATE plans SET %s WHERE id = $1", strings.Join(sets, ", "))
	result, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func insertDays(ctx context.Context, q querier, planID string, days []storage.PlanDayInsert) error {
	dayQuery := `
		INSERT INTO plan_days (plan_id, day_of_week, is_active, notes, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text
	`
	mealQuery := `
		INSERT INTO plan_meals (day_id, plan_id, type, time, is_completed, completed_at, notes, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id::text
	`
	linkQuery := `
		INSERT INTO plan_meal_recipes (meal_id, recipe_id, position)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`

	for i, day := range days {
		var dayID string
		err := q.QueryRow(ctx, dayQuery, planID, day.DayOfWeek, day.IsActive, day.Notes, i).Scan(&dayID)
		if err != nil {
			return fmt.Errorf("failed to insert plan day: %w", err)
		}

		for j, meal := range day.Meals {
			var mealID string
			err := q.QueryRow(ctx, mealQuery,
				dayID,
				planID,
				meal.Type,
				meal.Time,
				meal.IsCompleted,
				meal.CompletedAt,
				meal.Notes,
				j,
			).Scan(&mealID)
			if err != nil {
				return fmt.Errorf("failed to insert plan meal: %w", err)
			}

			for k, recipeID := range meal.RecipeIDs {
				if _, err := q.Exec(ctx, linkQuery, mealID, recipeID, k); err != nil {
					return fmt.Errorf("failed to link meal recipe: %w", err)
				}
			}
		}
	}
	return nil
}

// loadGraphs fills Days (with Meals and RecipeIDs) for every plan using one
// query per level.
func loadGraphs(ctx context.Context, q querier, plans []*storage.Plan) error {
	if len(plans) == 0 {
		return nil
	}

	ids := make([]string, len(plans))
	byID := make(map[string]*storage.Plan, len(plans))
	for i, p := range plans {
		ids[i] = p.ID
		p.Days = []storage.PlanDay{}
		byID[p.ID] = p
	}

	// Days
	rows, err := q.Query(ctx, `
		SELECT id::text, plan_id::text, day_of_week, is_active, notes, position
		FROM plan_days
		WHERE plan_id = ANY($1)
		ORDER BY plan_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load plan days: %w", err)
	}
	dayIndex := make(map[string]int) // day_id -> index in plan.Days
	dayPlan := make(map[string]string)
	for rows.Next() {
		var day storage.PlanDay
		if err := rows.Scan(&day.ID, &day.PlanID, &day.DayOfWeek, &day.IsActive, &day.Notes, &day.Position); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan plan day: %w", err)
		}
		day.Meals = []storage.PlanMeal{}
		plan := byID[day.PlanID]
		plan.Days = append(plan.Days, day)
		dayIndex[day.ID] = len(plan.Days) - 1
		dayPlan[day.ID] = day.PlanID
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Meals
	rows, err = q.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM plan_meals
		WHERE plan_id = ANY($1)
		ORDER BY day_id, position
	`, mealColumns), ids)
	if err != nil {
		return fmt.Errorf("failed to load plan meals: %w", err)
	}
	type mealRef struct {
		planID string
		day    int
		meal   int
	}
	mealRefs := make(map[string]mealRef)
	for rows.Next() {
		meal, err := scanMeal(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan plan meal: %w", err)
		}
		meal.RecipeIDs = []string{}
		idx, ok := dayIndex[meal.DayID]
		if !ok {
			continue
		}
		day := &byID[dayPlan[meal.DayID]].Days[idx]
		day.Meals = append(day.Meals, meal)
		mealRefs[meal.ID] = mealRef{planID: meal.PlanID, day: idx, meal: len(day.Meals) - 1}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Candidate links
	rows, err = q.Query(ctx, `
		SELECT r.meal_id::text, r.recipe_id
		FROM plan_meal_recipes r
		JOIN plan_meals m ON m.id = r.meal_id
		WHERE m.plan_id = ANY($1)
		ORDER BY r.meal_id, r.position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load meal recipes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mealID, recipeID string
		if err := rows.Scan(&mealID, &recipeID); err != nil {
			return fmt.Errorf("failed to scan meal recipe: %w", err)
		}
		ref, ok := mealRefs[mealID]
		if !ok {
			continue
		}
		meal := &byID[ref.planID].Days[ref.day].Meals[ref.meal]
		meal.RecipeIDs = append(meal.RecipeIDs, recipeID)
	}
	return rows.Err()
}

func scanPlan(row pgx.Row) (storage.Plan, error) {
	var plan storage.Plan
	err := row.Scan(
		&plan.ID,
		&plan.Name,
		&plan.Description,
		&plan.NutritionistID,
		&plan.PatientID,
		&plan.Status,
		&plan.StartDate,
		&plan.EndDate,
		&plan.Goals,
		&plan.Notes,
		&plan.KcalPerDay,
		&plan.ProteinG,
		&plan.CarbsG,
		&plan.FatG,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	return plan, err
}

func scanMeal(row pgx.Row) (storage.PlanMeal, error) {
	var meal storage.PlanMeal
	err := row.Scan(
		&meal.ID,
		&meal.DayID,
		&meal.PlanID,
		&meal.Type,
		&meal.Time,
		&meal.IsCompleted,
		&meal.CompletedAt,
		&meal.Notes,
		&meal.SelectedRecipeID,
		&meal.Kcal,
		&meal.ProteinG,
		&meal.CarbsG,
		&meal.FatG,
		&meal.Position,
		&meal.CreatedAt,
		&meal.UpdatedAt,
	)
	return meal, err
}
