// Package domain defines the objects the NLU layer exchanges with the
// conversation orchestrator. Field constraints live in `validate` tags and in
// the JSON schema each extraction target sends to the model.
package domain

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"sales-nlu/internal/llm"
)

var (
	_ llm.Schema = (*UserProfileSeed)(nil)
	_ llm.Schema = (*RecommendedPlan)(nil)
	_ llm.Schema = (*YesNoIntent)(nil)
	_ llm.Schema = (*SchedulingRequest)(nil)
)

// UserProfileSeed is the first thing asked of a prospect: who the lessons
// are for and their age.
type UserProfileSeed struct {
	ForWhom string `json:"for_whom" validate:"required"`
	Age     int    `json:"age" validate:"required,min=1,max=120"`
}

func (*UserProfileSeed) SchemaName() string { return "UserProfileSeed" }

func (*UserProfileSeed) JSONSchema() map[string]any {
	return object(map[string]any{
		"for_whom": nullable("string", "Who the lessons are for, e.g. 'para mí', 'mi hijo'"),
		"age":      nullable("integer", "Age in years of the person taking the lessons"),
	}, "for_whom", "age")
}

// FullUserProfile is the profile the orchestrator assembles over the
// conversation. It is an input to plan recommendation and the sales pitch.
type FullUserProfile struct {
	ForWhom          string `json:"for_whom" validate:"required"`
	Age              int    `json:"age" validate:"required,min=1,max=120"`
	Instrument       string `json:"instrument,omitempty"`
	Experience       string `json:"experience,omitempty"`
	Motivation       string `json:"motivation,omitempty"`
	Goals            string `json:"goals,omitempty"`
	TimeAvailability string `json:"time_availability,omitempty"`
}

// PlanTier is the closed set of subscription tiers.
type PlanTier string

const (
	PlanBasic        PlanTier = "basic"
	PlanIntermediate PlanTier = "intermediate"
	PlanAdvanced     PlanTier = "advanced"
)

// RecommendedPlan is the model's tier choice.
type RecommendedPlan struct {
	Plan      PlanTier `json:"plan" validate:"required,oneof=basic intermediate advanced"`
	Rationale string   `json:"rationale,omitempty"`
}

func (*RecommendedPlan) SchemaName() string { return "RecommendedPlan" }

func (*RecommendedPlan) JSONSchema() map[string]any {
	return object(map[string]any{
		"plan": map[string]any{
			"type": "string",
			"enum": []any{string(PlanBasic), string(PlanIntermediate), string(PlanAdvanced)},
		},
		"rationale": nullable("string", "One sentence explaining the choice"),
	}, "plan")
}

// Plan is the plan record substituted into the sales pitch.
type Plan struct {
	Tier        PlanTier `json:"tier,omitempty" validate:"omitempty,oneof=basic intermediate advanced"`
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Price       float64  `json:"price" validate:"gt=0"`
}

// Intent is a yes/no answer to the scheduling offer.
type Intent string

const (
	IntentAffirmative Intent = "affirmative"
	IntentNegative    Intent = "negative"
)

// YesNoIntent classifies willingness to schedule. Ambiguous replies are
// reported as null by the model and fail validation.
type YesNoIntent struct {
	Intent Intent `json:"intent" validate:"required,oneof=affirmative negative"`
}

func (i YesNoIntent) Affirmative() bool { return i.Intent == IntentAffirmative }

func (*YesNoIntent) SchemaName() string { return "YesNoIntent" }

func (*YesNoIntent) JSONSchema() map[string]any {
	return object(map[string]any{
		"intent": map[string]any{
			"type":        []any{"string", "null"},
			"enum":        []any{string(IntentAffirmative), string(IntentNegative), nil},
			"description": "null when the reply is neither a clear yes nor a clear no",
		},
	}, "intent")
}

// SchedulingRequest carries the contact data for booking a trial lesson.
type SchedulingRequest struct {
	Phone string  `json:"phone" validate:"required,phone"`
	Day   *string `json:"day,omitempty"`
	Time  *string `json:"time,omitempty"`
}

func (*SchedulingRequest) SchemaName() string { return "SchedulingRequest" }

func (*SchedulingRequest) JSONSchema() map[string]any {
	return object(map[string]any{
		"phone": nullable("string", "Phone number exactly as the user wrote it"),
		"day":   nullable("string", "Preferred day, if given"),
		"time":  nullable("string", "Preferred time, if given"),
	}, "phone", "day", "time")
}

var phonePattern = regexp.MustCompile(`^\+?[0-9(][0-9 ().-]{5,22}$`)

func validPhone(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

// NewValidator returns the shared validator with the domain's custom rules.
func NewValidator() *validator.Validate {
	v := llm.NewValidator()
	_ = v.RegisterValidation("phone", validPhone)
	return v
}

func object(props map[string]any, required ...string) map[string]any {
	req := make([]any, len(required))
	for i, r := range required {
		req[i] = r
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             req,
		"additionalProperties": false,
	}
}

func nullable(typ, description string) map[string]any {
	return map[string]any{
		"type":        []any{typ, "null"},
		"description": description,
	}
}
