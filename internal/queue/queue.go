// Package queue exposes the NLU operations as NATS request/reply subjects.
package queue

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"sales-nlu/internal/llm"
	"sales-nlu/internal/nlp"
)

// SubjectPrefix namespaces every operation subject, e.g. nlu.classify_intent.
const SubjectPrefix = "nlu."

// Subject returns the request subject for op.
func Subject(op nlp.Operation) string {
	return SubjectPrefix + string(op)
}

// Envelope is the reply body. Exactly one of Result and Error is set.
type Envelope struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *llm.ErrorBody  `json:"error,omitempty"`
}

// Handler answers one request payload.
type Handler func(ctx context.Context, payload []byte) (any, error)

// Responder serves handlers, keyed by subject, until ctx is cancelled.
type Responder interface {
	Serve(ctx context.Context, handlers map[string]Handler) error
}

// OperationHandlers binds every NLU operation subject to ext.
func OperationHandlers(ext nlp.Extractor, v *validator.Validate) map[string]Handler {
	handlers := make(map[string]Handler, len(nlp.Operations))
	for _, op := range nlp.Operations {
		handlers[Subject(op)] = func(ctx context.Context, payload []byte) (any, error) {
			return nlp.Invoke(ctx, ext, v, op, payload)
		}
	}
	return handlers
}

// Reply runs h and encodes the outcome as an Envelope.
func Reply(ctx context.Context, h Handler, payload []byte) []byte {
	var env Envelope
	result, err := h(ctx, payload)
	if err == nil {
		env.Result, err = json.Marshal(result)
	}
	if err != nil {
		env.Result = nil
		env.Error = llm.NewErrorBody(err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return []byte(`{"error":{"kind":"unknown","message":"encode reply"}}`)
	}
	return body
}

// Decode splits a reply body into its result, decoded into out, or its error.
func Decode(body []byte, out any) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return err
	}
	if env.Error != nil {
		return &RemoteError{Body: *env.Error}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	return json.Unmarshal(env.Result, out)
}

// RemoteError is an error reported by the responder.
type RemoteError struct {
	Body llm.ErrorBody
}

func (e *RemoteError) Error() string {
	return string(e.Body.Kind) + ": " + e.Body.Message
}
