package plans

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/fdg312/nutri-plans/internal/access"
	"github.com/fdg312/nutri-plans/internal/apperr"
	"github.com/fdg312/nutri-plans/internal/catalog"
	"github.com/fdg312/nutri-plans/internal/meals"
	"github.com/fdg312/nutri-plans/internal/storage"
)

// Service composes plan graphs for a professional's patients.
type Service struct {
	plans    storage.PlansStorage
	patients storage.PatientsStorage
	catalog  *catalog.Service
	limits   Limits
	now      func() time.Time
}

// NewService creates a new plan composition service.
func NewService(plans storage.PlansStorage, patients storage.PatientsStorage, catalog *catalog.Service, limits Limits) *Service {
	return &Service{
		plans:    plans,
		patients: patients,
		catalog:  catalog,
		limits:   limits,
		now:      time.Now,
	}
}

// Create validates the payload and stores the whole graph in one step.
func (s *Service) Create(ctx context.Context, actor access.Actor, req CreatePlanRequest) (PlanDTO, error) {
	if !access.CanPerform(actor.Role, access.OpWritePlan) {
		return PlanDTO{}, apperr.Forbidden("role %s cannot create plans", actor.Role)
	}

	in, recipeIDs, err := s.buildInsert(req)
	if err != nil {
		return PlanDTO{}, err
	}
	in.NutritionistID = actor.ID

	if in.PatientID != "" {
		if err := s.checkPatient(ctx, actor, in.PatientID); err != nil {
			return PlanDTO{}, err
		}
	}
	if err := s.catalog.EnsureExist(ctx, recipeIDs); err != nil {
		return PlanDTO{}, err
	}

	plan, err := s.plans.CreatePlan(ctx, in)
	if err != nil {
		return PlanDTO{}, err
	}
	log.Printf("plans: created plan_id=%s nutritionist=%s patient=%s days=%d", plan.ID, plan.NutritionistID, plan.PatientID, len(plan.Days))
	return ToPlanDTO(plan), nil
}

// Update applies a partial update. Supplying days replaces the whole
// day/meal subtree, which drops completion and selection state.
func (s *Service) Update(ctx context.Context, actor access.Actor, id string, req UpdatePlanRequest) (PlanDTO, error) {
	current, err := s.loadAuthorized(ctx, actor, id, access.OpWritePlan)
	if err != nil {
		return PlanDTO{}, err
	}

	patch, err := s.buildPatch(current, req)
	if err != nil {
		return PlanDTO{}, err
	}

	if patch.PatientID != nil && *patch.PatientID != "" && *patch.PatientID != current.PatientID {
		if err := s.checkPatient(ctx, actor, *patch.PatientID); err != nil {
			return PlanDTO{}, err
		}
	}

	var plan storage.Plan
	if req.Days != nil {
		recipeIDs, err := validateDays(*req.Days, s.limits)
		if err != nil {
			return PlanDTO{}, err
		}
		if err := s.catalog.EnsureExist(ctx, recipeIDs); err != nil {
			return PlanDTO{}, err
		}
		plan, err = s.plans.ReplacePlanDays(ctx, id, patch, s.dayInserts(*req.Days))
		if err != nil {
			return PlanDTO{}, planError(id, err)
		}
		log.Printf("plans: replaced days plan_id=%s days=%d", id, len(plan.Days))
	} else {
		plan, err = s.plans.UpdatePlan(ctx, id, patch)
		if err != nil {
			return PlanDTO{}, planError(id, err)
		}
	}
	return ToPlanDTO(plan), nil
}

// Remove is a soft delete: the plan goes back to DRAFT.
func (s *Service) Remove(ctx context.Context, actor access.Actor, id string) error {
	if _, err := s.loadAuthorized(ctx, actor, id, access.OpWritePlan); err != nil {
		return err
	}
	if _, err := s.plans.SetPlanStatus(ctx, id, StatusDraft); err != nil {
		return planError(id, err)
	}
	log.Printf("plans: removed plan_id=%s actor=%s", id, actor.ID)
	return nil
}

func (s *Service) Get(ctx context.Context, actor access.Actor, id string) (PlanDTO, error) {
	plan, err := s.loadAuthorized(ctx, actor, id, access.OpReadPlan)
	if err != nil {
		return PlanDTO{}, err
	}
	return ToPlanDTO(plan), nil
}

// List returns the plans visible to the actor, newest first.
func (s *Service) List(ctx context.Context, actor access.Actor, f ListPlansFilter) (ListPlansResponse, error) {
	q := storage.PlanQuery{
		Search:    f.Search,
		Status:    f.Status,
		PatientID: f.PatientID,
		Limit:     f.Limit,
		Offset:    (f.Page - 1) * f.Limit,
	}

	switch actor.Role {
	case access.RoleAdmin:
	case access.RoleProfessional:
		q.NutritionistID = actor.ID
		if f.PatientID != "" {
			if err := s.checkPatient(ctx, actor, f.PatientID); err != nil {
				return ListPlansResponse{}, err
			}
		}
	case access.RolePatient:
		if actor.PatientID == "" {
			return ListPlansResponse{}, apperr.Forbidden("no patient record is linked to this account")
		}
		if f.PatientID != "" && f.PatientID != actor.PatientID {
			return ListPlansResponse{}, apperr.Forbidden("cannot list plans of another patient")
		}
		q.PatientID = actor.PatientID
	default:
		return ListPlansResponse{}, apperr.Forbidden("role %s cannot list plans", actor.Role)
	}

	items, total, err := s.plans.ListPlans(ctx, q)
	if err != nil {
		return ListPlansResponse{}, err
	}

	resp := ListPlansResponse{
		Items: make([]PlanDTO, 0, len(items)),
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: (total + f.Limit - 1) / f.Limit,
		},
	}
	for _, p := range items {
		resp.Items = append(resp.Items, ToPlanDTO(p))
	}
	return resp, nil
}

// PatientInfo returns the patient record linked to the actor together with
// plan counts and the newest plans.
func (s *Service) PatientInfo(ctx context.Context, actor access.Actor) (PatientInfoDTO, error) {
	if actor.Role != access.RolePatient || actor.PatientID == "" {
		return PatientInfoDTO{}, apperr.Forbidden("no patient record is linked to this account")
	}

	patient, err := s.patients.GetPatient(ctx, actor.PatientID)
	if errors.Is(err, storage.ErrNotFound) {
		return PatientInfoDTO{}, apperr.NotFound("patient %s not found", actor.PatientID)
	}
	if err != nil {
		return PatientInfoDTO{}, err
	}

	items, total, err := s.plans.ListPlans(ctx, storage.PlanQuery{PatientID: patient.ID, Limit: maxLimit})
	if err != nil {
		return PatientInfoDTO{}, err
	}
	_, active, err := s.plans.ListPlans(ctx, storage.PlanQuery{PatientID: patient.ID, Status: StatusActive, Limit: 1})
	if err != nil {
		return PatientInfoDTO{}, err
	}

	info := PatientInfoDTO{
		ID:             patient.ID,
		UserID:         patient.UserID,
		NutritionistID: patient.NutritionistID,
		Name:           patient.Name,
		Plans:          make([]PlanDTO, 0, len(items)),
		TotalPlans:     total,
		ActivePlans:    active,
	}
	for _, p := range items {
		info.Plans = append(info.Plans, ToPlanDTO(p))
	}
	return info, nil
}

func (s *Service) loadAuthorized(ctx context.Context, actor access.Actor, id string, op access.Operation) (storage.Plan, error) {
	plan, err := s.plans.GetPlan(ctx, id)
	if err != nil {
		return storage.Plan{}, planError(id, err)
	}
	if err := access.Authorize(actor, access.Resource{
		NutritionistID: plan.NutritionistID,
		PatientID:      plan.PatientID,
	}, op); err != nil {
		return storage.Plan{}, err
	}
	return plan, nil
}

// checkPatient verifies the actor may attach plans to patientID. A
// professional gets Forbidden both for a foreign and for an unknown patient.
func (s *Service) checkPatient(ctx context.Context, actor access.Actor, patientID string) error {
	patient, err := s.patients.GetPatient(ctx, patientID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	missing := err != nil

	if actor.Role == access.RoleAdmin {
		if missing {
			return apperr.NotFound("patient %s not found", patientID)
		}
		return nil
	}
	if missing || patient.NutritionistID != actor.ID {
		return apperr.Forbidden("patient %s is not assigned to you", patientID)
	}
	return nil
}

func (s *Service) buildInsert(req CreatePlanRequest) (storage.PlanInsert, []string, error) {
	if err := validateName(req.Name); err != nil {
		return storage.PlanInsert{}, nil, err
	}
	if strings.TrimSpace(req.Description) == "" {
		return storage.PlanInsert{}, nil, apperr.InvalidInput("description is required")
	}

	status := StatusDraft
	if req.Status != "" {
		status = strings.ToUpper(req.Status)
		if !ValidStatus(status) {
			return storage.PlanInsert{}, nil, apperr.InvalidInput("status must be one of DRAFT, ACTIVE, PAUSED, COMPLETED")
		}
	}

	if strings.TrimSpace(req.StartDate) == "" {
		return storage.PlanInsert{}, nil, apperr.InvalidInput("start_date is required")
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return storage.PlanInsert{}, nil, err
	}
	var end *time.Time
	if strings.TrimSpace(req.EndDate) != "" {
		t, err := parseDate("end_date", req.EndDate)
		if err != nil {
			return storage.PlanInsert{}, nil, err
		}
		if t.Before(start) {
			return storage.PlanInsert{}, nil, apperr.InvalidInput("end_date must not be before start_date")
		}
		end = &t
	}

	if err := validateTargets(map[string]*int{
		"kcal_per_day": req.KcalPerDay,
		"protein_g":    req.ProteinG,
		"carbs_g":      req.CarbsG,
		"fat_g":        req.FatG,
	}); err != nil {
		return storage.PlanInsert{}, nil, err
	}

	recipeIDs, err := validateDays(req.Days, s.limits)
	if err != nil {
		return storage.PlanInsert{}, nil, err
	}

	return storage.PlanInsert{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		PatientID:   strings.TrimSpace(req.PatientID),
		Status:      status,
		StartDate:   start,
		EndDate:     end,
		Goals:       cleanGoals(req.Goals),
		Notes:       req.Notes,
		KcalPerDay:  req.KcalPerDay,
		ProteinG:    req.ProteinG,
		CarbsG:      req.CarbsG,
		FatG:        req.FatG,
		Days:        s.dayInserts(req.Days),
	}, recipeIDs, nil
}

func (s *Service) buildPatch(current storage.Plan, req UpdatePlanRequest) (storage.PlanPatch, error) {
	patch := storage.PlanPatch{
		Notes:      req.Notes,
		KcalPerDay: req.KcalPerDay,
		ProteinG:   req.ProteinG,
		CarbsG:     req.CarbsG,
		FatG:       req.FatG,
	}

	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			return storage.PlanPatch{}, err
		}
		name := strings.TrimSpace(*req.Name)
		patch.Name = &name
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		if desc == "" {
			return storage.PlanPatch{}, apperr.InvalidInput("description must not be empty")
		}
		patch.Description = &desc
	}
	if req.PatientID != nil {
		pid := strings.TrimSpace(*req.PatientID)
		patch.PatientID = &pid
	}
	if req.Status != nil {
		status := strings.ToUpper(*req.Status)
		if !ValidStatus(status) {
			return storage.PlanPatch{}, apperr.InvalidInput("status must be one of DRAFT, ACTIVE, PAUSED, COMPLETED")
		}
		patch.Status = &status
	}
	if req.Goals != nil {
		goals := cleanGoals(*req.Goals)
		patch.Goals = &goals
	}

	start := current.StartDate
	if req.StartDate != nil {
		t, err := parseDate("start_date", *req.StartDate)
		if err != nil {
			return storage.PlanPatch{}, err
		}
		start = t
		patch.StartDate = &t
	}
	end := current.EndDate
	if req.EndDate != nil {
		t, err := parseDate("end_date", *req.EndDate)
		if err != nil {
			return storage.PlanPatch{}, err
		}
		end = &t
		patch.EndDate = &t
	}
	if end != nil && end.Before(start) {
		return storage.PlanPatch{}, apperr.InvalidInput("end_date must not be before start_date")
	}

	if err := validateTargets(map[string]*int{
		"kcal_per_day": req.KcalPerDay,
		"protein_g":    req.ProteinG,
		"carbs_g":      req.CarbsG,
		"fat_g":        req.FatG,
	}); err != nil {
		return storage.PlanPatch{}, err
	}

	return patch, nil
}

// dayInserts maps validated input onto store rows. Meals created already
// completed are stamped with the current time.
func (s *Service) dayInserts(days []DayInput) []storage.PlanDayInsert {
	now := s.now().UTC()
	out := make([]storage.PlanDayInsert, 0, len(days))
	for _, d := range days {
		active := true
		if d.IsActive != nil {
			active = *d.IsActive
		}
		day := storage.PlanDayInsert{
			DayOfWeek: *d.DayOfWeek,
			IsActive:  active,
			Notes:     d.Notes,
			Meals:     make([]storage.PlanMealInsert, 0, len(d.Meals)),
		}
		for _, m := range d.Meals {
			meal := storage.PlanMealInsert{
				Type:        m.Type,
				Time:        m.Time,
				Notes:       m.Notes,
				IsCompleted: m.IsCompleted,
				RecipeIDs:   dedupe(m.RecipeIDs),
			}
			if m.IsCompleted {
				at := now
				meal.CompletedAt = &at
			}
			day.Meals = append(day.Meals, meal)
		}
		out = append(out, day)
	}
	return out
}

// ToPlanDTO converts a stored plan and derives its totals from meal snapshots.
func ToPlanDTO(p storage.Plan) PlanDTO {
	dto := PlanDTO{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		NutritionistID: p.NutritionistID,
		Status:         p.Status,
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		Goals:          p.Goals,
		Notes:          p.Notes,
		KcalPerDay:     p.KcalPerDay,
		ProteinG:       p.ProteinG,
		CarbsG:         p.CarbsG,
		FatG:           p.FatG,
		Days:           make([]DayDTO, 0, len(p.Days)),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if dto.Goals == nil {
		dto.Goals = []string{}
	}
	if p.PatientID != "" {
		pid := p.PatientID
		dto.PatientID = &pid
	}

	for _, d := range p.Days {
		day := DayDTO{
			ID:        d.ID,
			DayOfWeek: d.DayOfWeek,
			IsActive:  d.IsActive,
			Notes:     d.Notes,
			Position:  d.Position,
			Meals:     make([]meals.MealDTO, 0, len(d.Meals)),
		}
		for _, m := range d.Meals {
			meal := meals.ToMealDTO(m)
			day.Meals = append(day.Meals, meal)
			dto.Totals.add(meal)
		}
		dto.Days = append(dto.Days, day)
	}
	return dto
}

func (t *PlanTotals) add(m meals.MealDTO) {
	t.Meals++
	if m.IsCompleted {
		t.CompletedMeals++
	}
	if !m.IsFulfilled() {
		return
	}
	t.FulfilledMeals++
	t.Kcal += *m.Kcal
	t.ProteinG += *m.ProteinG
	t.CarbsG += *m.CarbsG
	t.FatG += *m.FatG
}

func planError(id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("plan %s not found", id)
	}
	return err
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
