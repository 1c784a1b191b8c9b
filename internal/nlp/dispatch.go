package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"sales-nlu/internal/domain"
	"sales-nlu/internal/llm"
)

// MessageRequest carries a single prospect message.
type MessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// ProfileRequest carries the assembled profile for plan recommendation.
type ProfileRequest struct {
	Profile domain.FullUserProfile `json:"profile"`
}

// PitchRequest carries the inputs of the sales pitch.
type PitchRequest struct {
	Profile domain.FullUserProfile `json:"profile"`
	Plan    domain.Plan            `json:"plan"`
}

// PitchResponse wraps the pitch text so every operation answers with an object.
type PitchResponse struct {
	Pitch string `json:"pitch"`
}

// ParseOperation maps a wire name to an Operation.
func ParseOperation(name string) (Operation, error) {
	for _, op := range Operations {
		if string(op) == name {
			return op, nil
		}
	}
	return "", &llm.InputError{Field: "operation", Err: fmt.Errorf("unknown operation %q", name)}
}

// Invoke decodes a JSON payload for op and runs it against ext. Decoding and
// message checks fail with an InputError; profile and plan checks are left to
// the Extractor.
func Invoke(ctx context.Context, ext Extractor, v *validator.Validate, op Operation, payload []byte) (any, error) {
	switch op {
	case OpExtractInitialProfile, OpClassifyIntent, OpExtractSchedulingData:
		var req MessageRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if err := v.Struct(&req); err != nil {
			return nil, &llm.InputError{Field: "message", Err: err}
		}
		switch op {
		case OpExtractInitialProfile:
			return ext.ExtractInitialProfile(ctx, req.Message)
		case OpClassifyIntent:
			return ext.ClassifyIntent(ctx, req.Message)
		default:
			return ext.ExtractSchedulingData(ctx, req.Message)
		}
	case OpRecommendPlan:
		var req ProfileRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return ext.RecommendPlan(ctx, req.Profile)
	case OpGenerateSalesPitch:
		var req PitchRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		pitch, err := ext.GenerateSalesPitch(ctx, req.Profile, req.Plan)
		if err != nil {
			return nil, err
		}
		return PitchResponse{Pitch: pitch}, nil
	}
	return nil, &llm.InputError{Field: "operation", Err: fmt.Errorf("unknown operation %q", op)}
}

func decode(payload []byte, into any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return &llm.InputError{Field: "body", Err: err}
	}
	return nil
}
