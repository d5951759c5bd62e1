package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/nutri-plans/internal/apperr"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("pro")
	require.NoError(t, err)
	assert.Equal(t, RoleProfessional, role)

	role, err = ParseRole(" PATIENT ")
	require.NoError(t, err)
	assert.Equal(t, RolePatient, role)

	_, err = ParseRole("nurse")
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	res := Resource{NutritionistID: "pro-1", PatientID: "patient-1"}

	owner := Actor{ID: "pro-1", Role: RoleProfessional}
	stranger := Actor{ID: "pro-2", Role: RoleProfessional}
	patient := Actor{ID: "user-p1", Role: RolePatient, PatientID: "patient-1"}
	otherPatient := Actor{ID: "user-p2", Role: RolePatient, PatientID: "patient-2"}
	unlinked := Actor{ID: "user-p3", Role: RolePatient}
	admin := Actor{ID: "admin", Role: RoleAdmin}

	tests := []struct {
		name    string
		actor   Actor
		op      Operation
		allowed bool
	}{
		{"owner reads", owner, OpReadPlan, true},
		{"owner writes", owner, OpWritePlan, true},
		{"owner assigns", owner, OpAssignRecipe, true},
		{"owner logs custom meal", owner, OpLogCustomMeal, true},
		{"owner cannot select", owner, OpSelectRecipe, false},
		{"owner cannot complete", owner, OpCompleteMeal, false},
		{"stranger reads", stranger, OpReadPlan, false},
		{"stranger assigns", stranger, OpAssignRecipe, false},
		{"patient reads", patient, OpReadPlan, true},
		{"patient selects", patient, OpSelectRecipe, true},
		{"patient logs custom meal", patient, OpLogCustomMeal, true},
		{"patient completes", patient, OpCompleteMeal, true},
		{"patient cannot assign own meal", patient, OpAssignRecipe, false},
		{"patient cannot write own plan", patient, OpWritePlan, false},
		{"other patient selects", otherPatient, OpSelectRecipe, false},
		{"unlinked patient reads", unlinked, OpReadPlan, false},
		{"admin writes", admin, OpWritePlan, true},
		{"admin completes", admin, OpCompleteMeal, true},
		{"admin selects", admin, OpSelectRecipe, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, res, tt.op)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrForbidden))
		})
	}
}

func TestAuthorizeUnassignedPlan(t *testing.T) {
	template := Resource{NutritionistID: "pro-1"}

	err := Authorize(Actor{ID: "user-p3", Role: RolePatient}, template, OpReadPlan)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	assert.NoError(t, Authorize(Actor{ID: "pro-1", Role: RoleProfessional}, template, OpReadPlan))
}

func TestEveryOperationHasRoles(t *testing.T) {
	for op := OpReadPlan; op <= OpCompleteMeal; op++ {
		assert.NotEmpty(t, permitted[op], op.String())
	}
}
