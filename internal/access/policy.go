package access

import (
	"fmt"
	"strings"

	"github.com/fdg312/nutri-plans/internal/apperr"
)

// Role is the closed set of actor kinds.
type Role string

const (
	RoleProfessional Role = "PRO"
	RolePatient      Role = "PATIENT"
	RoleAdmin        Role = "ADMIN"
)

// ParseRole accepts the wire names case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleProfessional:
		return RoleProfessional, nil
	case RolePatient:
		return RolePatient, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is the authenticated caller. PatientID is set only for patients
// linked to a patient record.
type Actor struct {
	ID        string
	Role      Role
	PatientID string
}

// Resource carries the ownership of a plan or of the plan a meal belongs to.
type Resource struct {
	NutritionistID string
	PatientID      string
}

// Operation is a class of actions gated by the policy.
type Operation int

const (
	OpReadPlan Operation = iota
	OpWritePlan
	OpAssignRecipe
	OpSelectRecipe
	OpLogCustomMeal
	OpCompleteMeal
)

func (op Operation) String() string {
	switch op {
	case OpReadPlan:
		return "read plan"
	case OpWritePlan:
		return "write plan"
	case OpAssignRecipe:
		return "assign recipe"
	case OpSelectRecipe:
		return "select recipe"
	case OpLogCustomMeal:
		return "log custom meal"
	case OpCompleteMeal:
		return "complete meal"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

// permitted lists the non-admin roles allowed to attempt each operation.
// Admins are never listed: they bypass the table.
var permitted = map[Operation][]Role{
	OpReadPlan:      {RoleProfessional, RolePatient},
	OpWritePlan:     {RoleProfessional},
	OpAssignRecipe:  {RoleProfessional},
	OpSelectRecipe:  {RolePatient},
	OpLogCustomMeal: {RoleProfessional, RolePatient},
	OpCompleteMeal:  {RolePatient},
}

// CanPerform reports whether role may attempt op at all, ignoring ownership.
func CanPerform(role Role, op Operation) bool {
	if role == RoleAdmin {
		return true
	}
	for _, r := range permitted[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize decides whether actor may perform op on res. The resource must
// already be known to exist; denial is always apperr.ErrForbidden.
func Authorize(actor Actor, res Resource, op Operation) error {
	if actor.Role == RoleAdmin {
		return nil
	}
	if !CanPerform(actor.Role, op) {
		return apperr.Forbidden("role %s may not %s", actor.Role, op)
	}

	switch actor.Role {
	case RoleProfessional:
		if actor.ID != "" && res.NutritionistID == actor.ID {
			return nil
		}
	case RolePatient:
		if actor.PatientID != "" && res.PatientID == actor.PatientID {
			return nil
		}
	}
	return apperr.Forbidden("not allowed to %s on this plan", op)
}
