package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestSchedulingRequestValidation(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		name    string
		req     SchedulingRequest
		wantErr bool
	}{
		{"phone only", SchedulingRequest{Phone: "5512345678"}, false},
		{"international with day and time", SchedulingRequest{Phone: "+52 55 1234 5678", Day: strPtr("lunes"), Time: strPtr("17:00")}, false},
		{"parenthesised area code", SchedulingRequest{Phone: "(55) 1234-5678"}, false},
		{"missing phone", SchedulingRequest{Day: strPtr("martes")}, true},
		{"too few digits", SchedulingRequest{Phone: "12345"}, true},
		{"letters", SchedulingRequest{Phone: "call me maybe"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(&tt.req)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestRecommendedPlanValidation(t *testing.T) {
	v := NewValidator()
	for _, tier := range []PlanTier{PlanBasic, PlanIntermediate, PlanAdvanced} {
		assert.NoError(t, v.Struct(&RecommendedPlan{Plan: tier}))
	}
	assert.Error(t, v.Struct(&RecommendedPlan{Plan: "premium"}))
	assert.Error(t, v.Struct(&RecommendedPlan{}))
}

func TestYesNoIntent(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Struct(&YesNoIntent{Intent: IntentAffirmative}))
	assert.NoError(t, v.Struct(&YesNoIntent{Intent: IntentNegative}))
	assert.Error(t, v.Struct(&YesNoIntent{}), "ambiguous intent must not validate")
	assert.True(t, YesNoIntent{Intent: IntentAffirmative}.Affirmative())
	assert.False(t, YesNoIntent{Intent: IntentNegative}.Affirmative())
}

func TestProfileAndPlanValidation(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Struct(&UserProfileSeed{ForWhom: "mi hija", Age: 9}))
	assert.Error(t, v.Struct(&UserProfileSeed{ForWhom: "mi hija"}))
	assert.Error(t, v.Struct(&FullUserProfile{Age: 30}))
	assert.NoError(t, v.Struct(&Plan{Name: "Plan Básico", Description: "1 clase semanal", Price: 800}))
	assert.Error(t, v.Struct(&Plan{Name: "Plan Básico", Description: "1 clase semanal"}))
}

func TestJSONSchemasRequireEveryProperty(t *testing.T) {
	schemas := []interface {
		JSONSchema() map[string]any
	}{&UserProfileSeed{}, &YesNoIntent{}, &SchedulingRequest{}}
	for _, s := range schemas {
		schema := s.JSONSchema()
		props := schema["properties"].(map[string]any)
		required := schema["required"].([]any)
		assert.Len(t, required, len(props))
		assert.Equal(t, false, schema["additionalProperties"])
	}
}
