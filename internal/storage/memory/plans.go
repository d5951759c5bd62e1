package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fdg312/nutri-plans/internal/storage"
	"github.com/google/uuid"
)

type plansStorage struct {
	mu    sync.RWMutex
	plans map[string]*storage.Plan // key: plan_id
	seq   map[string]int64         // key: plan_id -> insertion order, breaks created_at ties
	next  int64
	// index for meal lookups
	mealPlan map[string]string // key: meal_id -> plan_id
}

func newPlansStorage() *plansStorage {
	return &plansStorage{
		plans:    make(map[string]*storage.Plan),
		seq:      make(map[string]int64),
		mealPlan: make(map[string]string),
	}
}

func (s *plansStorage) CreatePlan(ctx context.Context, in storage.PlanInsert) (storage.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	plan := &storage.Plan{
		ID:             uuid.New().String(),
		Name:           in.Name,
		Description:    in.Description,
		NutritionistID: in.NutritionistID,
		PatientID:      in.PatientID,
		Status:         in.Status,
		StartDate:      in.StartDate,
		EndDate:        copyTime(in.EndDate),
		Goals:          copyStrings(in.Goals),
		Notes:          in.Notes,
		KcalPerDay:     copyInt(in.KcalPerDay),
		ProteinG:       copyInt(in.ProteinG),
		CarbsG:         copyInt(in.CarbsG),
		FatG:           copyInt(in.FatG),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	plan.Days = s.buildDaysLocked(plan.ID, in.Days, now)

	s.plans[plan.ID] = plan
	s.next++
	s.seq[plan.ID] = s.next

	return clonePlan(plan), nil
}

func (s *plansStorage) GetPlan(ctx context.Context, id string) (storage.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[id]
	if !ok {
		return storage.Plan{}, storage.ErrNotFound
	}
	return clonePlan(plan), nil
}

func (s *plansStorage) UpdatePlan(ctx context.Context, id string, patch storage.PlanPatch) (storage.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[id]
	if !ok {
		return storage.Plan{}, storage.ErrNotFound
	}
	applyPatch(plan, patch)
	plan.UpdatedAt = time.Now().UTC()

	return clonePlan(plan), nil
}

func (s *plansStorage) ReplacePlanDays(ctx context.Context, id string, patch storage.PlanPatch, days []storage.PlanDayInsert) (storage.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[id]
	if !ok {
		return storage.Plan{}, storage.ErrNotFound
	}

	now := time.Now().UTC()
	applyPatch(plan, patch)

	// Drop the old subtree
	for _, day := range plan.Days {
		for _, meal := range day.Meals {
			delete(s.mealPlan, meal.ID)
		}
	}
	plan.Days = s.buildDaysLocked(plan.ID, days, now)
	plan.UpdatedAt = now

	return clonePlan(plan), nil
}

func (s *plansStorage) SetPlanStatus(ctx context.Context, id string, status string) (storage.Plan, error) {
	return s.UpdatePlan(ctx, id, storage.PlanPatch{Status: &status})
}

func (s *plansStorage) ListPlans(ctx context.Context, q storage.PlanQuery) ([]storage.Plan, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))
	var matched []*storage.Plan
	for _, plan := range s.plans {
		if q.NutritionistID != "" && plan.NutritionistID != q.NutritionistID {
			continue
		}
		if q.PatientID != "" && plan.PatientID != q.PatientID {
			continue
		}
		if q.Status != "" && plan.Status != q.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(plan.Name), search) &&
			!strings.Contains(strings.ToLower(plan.Description), search) {
			continue
		}
		matched = append(matched, plan)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return s.seq[matched[i].ID] > s.seq[matched[j].ID]
	})

	total := len(matched)
	start := q.Offset
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	result := make([]storage.Plan, 0, end-start)
	for _, plan := range matched[start:end] {
		result = append(result, clonePlan(plan))
	}
	return result, total, nil
}

func (s *plansStorage) GetMealOwner(ctx context.Context, mealID string) (storage.MealOwner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, _, ok := s.findMealLocked(mealID)
	if !ok {
		return storage.MealOwner{}, storage.ErrNotFound
	}
	return storage.MealOwner{
		MealID:         mealID,
		PlanID:         plan.ID,
		NutritionistID: plan.NutritionistID,
		PatientID:      plan.PatientID,
	}, nil
}

func (s *plansStorage) GetMeal(ctx context.Context, mealID string) (storage.PlanMeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, meal, ok := s.findMealLocked(mealID)
	if !ok {
		return storage.PlanMeal{}, storage.ErrNotFound
	}
	return cloneMeal(*meal), nil
}

func (s *plansStorage) SetMealSelection(ctx context.Context, mealID string, sel *storage.MealSelection) (storage.PlanMeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, meal, ok := s.findMealLocked(mealID)
	if !ok {
		return storage.PlanMeal{}, storage.ErrNotFound
	}

	if sel == nil {
		meal.SelectedRecipeID = nil
		meal.Kcal, meal.ProteinG, meal.CarbsG, meal.FatG = nil, nil, nil, nil
	} else {
		recipeID := sel.RecipeID
		kcal, protein, carbs, fat := sel.Kcal, sel.ProteinG, sel.CarbsG, sel.FatG
		meal.SelectedRecipeID = &recipeID
		meal.Kcal, meal.ProteinG, meal.CarbsG, meal.FatG = &kcal, &protein, &carbs, &fat
	}
	meal.UpdatedAt = time.Now().UTC()

	return cloneMeal(*meal), nil
}

func (s *plansStorage) CompleteMeal(ctx context.Context, mealID string, at time.Time) (storage.PlanMeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, meal, ok := s.findMealLocked(mealID)
	if !ok {
		return storage.PlanMeal{}, storage.ErrNotFound
	}

	completedAt := at.UTC()
	meal.IsCompleted = true
	meal.CompletedAt = &completedAt
	meal.UpdatedAt = time.Now().UTC()

	return cloneMeal(*meal), nil
}

// findMealLocked returns pointers into the live plan; caller holds s.mu.
func (s *plansStorage) findMealLocked(mealID string) (*storage.Plan, *storage.PlanMeal, bool) {
	planID, ok := s.mealPlan[mealID]
	if !ok {
		return nil, nil, false
	}
	plan, ok := s.plans[planID]
	if !ok {
		return nil, nil, false
	}
	for i := range plan.Days {
		for j := range plan.Days[i].Meals {
			if plan.Days[i].Meals[j].ID == mealID {
				return plan, &plan.Days[i].Meals[j], true
			}
		}
	}
	return nil, nil, false
}

func (s *plansStorage) buildDaysLocked(planID string, in []storage.PlanDayInsert, now time.Time) []storage.PlanDay {
	days := make([]storage.PlanDay, 0, len(in))
	for i, d := range in {
		day := storage.PlanDay{
			ID:        uuid.New().String(),
			PlanID:    planID,
			DayOfWeek: d.DayOfWeek,
			IsActive:  d.IsActive,
			Notes:     d.Notes,
			Position:  i,
		}
		day.Meals = make([]storage.PlanMeal, 0, len(d.Meals))
		for j, m := range d.Meals {
			meal := storage.PlanMeal{
				ID:          uuid.New().String(),
				DayID:       day.ID,
				PlanID:      planID,
				Type:        m.Type,
				Time:        m.Time,
				IsCompleted: m.IsCompleted,
				CompletedAt: copyTime(m.CompletedAt),
				Notes:       m.Notes,
				RecipeIDs:   copyStrings(m.RecipeIDs),
				Position:    j,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			s.mealPlan[meal.ID] = planID
			day.Meals = append(day.Meals, meal)
		}
		days = append(days, day)
	}
	return days
}

func applyPatch(plan *storage.Plan, patch storage.PlanPatch) {
	if patch.Name != nil {
		plan.Name = *patch.Name
	}
	if patch.Description != nil {
		plan.Description = *patch.Description
	}
	if patch.PatientID != nil {
		plan.PatientID = *patch.PatientID
	}
	if patch.Status != nil {
		plan.Status = *patch.Status
	}
	if patch.StartDate != nil {
		plan.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		plan.EndDate = copyTime(patch.EndDate)
	}
	if patch.Goals != nil {
		plan.Goals = copyStrings(*patch.Goals)
	}
	if patch.Notes != nil {
		plan.Notes = *patch.Notes
	}
	if patch.KcalPerDay != nil {
		plan.KcalPerDay = copyInt(patch.KcalPerDay)
	}
	if patch.ProteinG != nil {
		plan.ProteinG = copyInt(patch.ProteinG)
	}
	if patch.CarbsG != nil {
		plan.CarbsG = copyInt(patch.CarbsG)
	}
	if patch.FatG != nil {
		plan.FatG = copyInt(patch.FatG)
	}
}

func clonePlan(p *storage.Plan) storage.Plan {
	out := *p
	out.EndDate = copyTime(p.EndDate)
	out.Goals = copyStrings(p.Goals)
	out.KcalPerDay = copyInt(p.KcalPerDay)
	out.ProteinG = copyInt(p.ProteinG)
	out.CarbsG = copyInt(p.CarbsG)
	out.FatG = copyInt(p.FatG)
	out.Days = make([]storage.PlanDay, len(p.Days))
	for i, day := range p.Days {
		out.Days[i] = day
		out.Days[i].Meals = make([]storage.PlanMeal, len(day.Meals))
		for j, meal := range day.Meals {
			out.Days[i].Meals[j] = cloneMeal(meal)
		}
	}
	return out
}

func cloneMeal(m storage.PlanMeal) storage.PlanMeal {
	out := m
	out.CompletedAt = copyTime(m.CompletedAt)
	out.RecipeIDs = copyStrings(m.RecipeIDs)
	if m.SelectedRecipeID != nil {
		id := *m.SelectedRecipeID
		out.SelectedRecipeID = &id
	}
	out.Kcal = copyInt(m.Kcal)
	out.ProteinG = copyInt(m.ProteinG)
	out.CarbsG = copyInt(m.CarbsG)
	out.FatG = copyInt(m.FatG)
	return out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}

func copyStrings(v []string) []string {
	out := make([]string, len(v))
	copy(out, v)
	return out
}
