package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxAttempts bounds schema re-prompts when Options leaves it unset.
const DefaultMaxAttempts = 3

// Options tunes a Client.
type Options struct {
	MaxAttempts int
	Validator   *validator.Validate
}

// Client is the structured completion client. It is built once at startup
// from a Provider and never mutated; a Client whose provider could not be
// resolved stays unconfigured and fails every call with a ConfigError.
type Client struct {
	provider    ProviderID
	model       string
	completer   Completer
	configErr   error
	maxAttempts int
	validate    *validator.Validate
	schemas     *schemaSet
	log         *slog.Logger
}

// Completion is the outcome of a successful call.
type Completion struct {
	Text     string
	Attempts int
}

// NewClient resolves p. Resolution failures are logged, not returned.
func NewClient(log *slog.Logger, p Provider, opts Options) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Validator == nil {
		opts.Validator = NewValidator()
	}
	c := &Client{
		provider:    p.ID(),
		model:       p.Model(),
		maxAttempts: opts.MaxAttempts,
		validate:    opts.Validator,
		schemas:     &schemaSet{},
		log:         log,
	}
	completer, err := p.Resolve()
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			err = &ConfigError{Provider: p.ID(), CredentialKey: p.CredentialKey(), Reason: err.Error()}
		}
		c.configErr = err
		log.Warn(fmt.Sprintf("%s is not configured; NLP operations will fail", p.CredentialKey()),
			"provider", p.ID(), "model", p.Model(), "err", err)
		return c
	}
	c.completer = completer
	log.Info("using LLM provider", "provider", p.ID(), "model", p.Model(), "max_attempts", c.maxAttempts)
	return c
}

func (c *Client) Configured() bool     { return c.completer != nil }
func (c *Client) Provider() ProviderID { return c.provider }
func (c *Client) Model() string        { return c.model }
func (c *Client) MaxAttempts() int     { return c.maxAttempts }

// Err reports why the client is unconfigured, or nil.
func (c *Client) Err() error { return c.configErr }

// Complete runs messages against the provider. With a nil target the raw
// reply is returned unmodified; otherwise the reply is decoded into target
// and validated, re-prompting up to MaxAttempts times.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage, target Schema) (Completion, error) {
	if target == nil {
		return c.CompleteText(ctx, messages, nil)
	}
	if !c.Configured() {
		return Completion{}, c.configErr
	}
	compiled, err := c.schemas.get(target)
	if err != nil {
		return Completion{}, err
	}
	name := target.SchemaName()
	schema := target.JSONSchema()
	convo, err := withSchemaInstruction(messages, schema)
	if err != nil {
		return Completion{}, err
	}
	format := &ResponseFormat{Name: name, Schema: schema}

	var failures []string
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		raw, err := c.completer.Complete(ctx, Request{Messages: convo, Format: format})
		if err != nil {
			return Completion{Attempts: attempt}, c.transportError(err)
		}
		if err := decodeInto(raw, target, compiled, c.validate); err != nil {
			lastErr = err
			failures = append(failures, err.Error())
			c.log.Debug("completion rejected", "schema", name, "attempt", attempt, "err", err)
			convo = append(convo,
				ChatMessage{Role: RoleAssistant, Text: raw},
				User(fmt.Sprintf("Your previous reply was invalid: %v. Reply again with only a corrected JSON object.", err)),
			)
			continue
		}
		return Completion{Text: raw, Attempts: attempt}, nil
	}
	return Completion{Attempts: c.maxAttempts}, &ExtractionError{
		Schema:   name,
		Attempts: c.maxAttempts,
		Errors:   failures,
		Err:      lastErr,
	}
}

// CompleteText runs a free-text completion. A nil check returns the first
// reply untouched; a non-nil check re-prompts on rejection up to MaxAttempts.
func (c *Client) CompleteText(ctx context.Context, messages []ChatMessage, check func(string) error) (Completion, error) {
	if !c.Configured() {
		return Completion{}, c.configErr
	}
	convo := append([]ChatMessage(nil), messages...)
	attempts := c.maxAttempts
	if check == nil {
		attempts = 1
	}

	var failures []string
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := c.completer.Complete(ctx, Request{Messages: convo})
		if err != nil {
			return Completion{Attempts: attempt}, c.transportError(err)
		}
		if check == nil {
			return Completion{Text: raw, Attempts: attempt}, nil
		}
		if err := check(raw); err != nil {
			lastErr = err
			failures = append(failures, err.Error())
			c.log.Debug("text completion rejected", "attempt", attempt, "err", err)
			convo = append(convo,
				ChatMessage{Role: RoleAssistant, Text: raw},
				User(fmt.Sprintf("Your previous reply was rejected: %v. Write it again fixing that.", err)),
			)
			continue
		}
		return Completion{Text: raw, Attempts: attempt}, nil
	}
	return Completion{Attempts: attempts}, &ExtractionError{
		Schema:   "text",
		Attempts: attempts,
		Errors:   failures,
		Err:      lastErr,
	}
}

func (c *Client) transportError(err error) error {
	var terr *TransportError
	if errors.As(err, &terr) {
		return err
	}
	return &TransportError{Provider: c.provider, Err: err}
}

// withSchemaInstruction copies messages and appends the JSON schema to the
// system instruction, adding one if the caller sent none.
func withSchemaInstruction(messages []ChatMessage, schema map[string]any) ([]ChatMessage, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	instruction := "Respond only with a JSON object that matches this JSON schema. Use null for values the user did not give; never invent them.\n" + string(raw)

	convo := make([]ChatMessage, 0, len(messages)+1)
	if len(messages) > 0 && messages[0].Role == RoleSystem {
		convo = append(convo, System(messages[0].Text+"\n\n"+instruction))
		convo = append(convo, messages[1:]...)
		return convo, nil
	}
	convo = append(convo, System(instruction))
	return append(convo, messages...), nil
}
