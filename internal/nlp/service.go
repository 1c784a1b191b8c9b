// Package nlp binds each sales-funnel question to a fixed prompt and target
// schema on top of the structured completion client.
package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"sales-nlu/internal/domain"
	"sales-nlu/internal/llm"
	"sales-nlu/internal/metrics"
	"sales-nlu/internal/prompts"
	"sales-nlu/internal/store"
)

// Operation names one of the five NLU operations.
type Operation string

const (
	OpExtractInitialProfile Operation = "extract_initial_profile"
	OpRecommendPlan         Operation = "recommend_plan"
	OpGenerateSalesPitch    Operation = "generate_sales_pitch"
	OpClassifyIntent        Operation = "classify_intent"
	OpExtractSchedulingData Operation = "extract_scheduling_data"
)

// Operations lists every operation in a stable order.
var Operations = []Operation{
	OpExtractInitialProfile,
	OpRecommendPlan,
	OpGenerateSalesPitch,
	OpClassifyIntent,
	OpExtractSchedulingData,
}

// Extractor is the surface the conversation orchestrator consumes.
type Extractor interface {
	ExtractInitialProfile(ctx context.Context, message string) (domain.UserProfileSeed, error)
	RecommendPlan(ctx context.Context, profile domain.FullUserProfile) (domain.RecommendedPlan, error)
	GenerateSalesPitch(ctx context.Context, profile domain.FullUserProfile, plan domain.Plan) (string, error)
	ClassifyIntent(ctx context.Context, message string) (domain.YesNoIntent, error)
	ExtractSchedulingData(ctx context.Context, message string) (domain.SchedulingRequest, error)
}

// Service implements Extractor. It holds no mutable state.
type Service struct {
	client   *llm.Client
	prompts  *prompts.Set
	validate *validator.Validate
	recorder store.Recorder
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// Deps groups the collaborators of a Service. Recorder and Metrics are optional.
type Deps struct {
	Client    *llm.Client
	Prompts   *prompts.Set
	Validator *validator.Validate
	Recorder  store.Recorder
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

func NewService(d Deps) *Service {
	if d.Validator == nil {
		d.Validator = domain.NewValidator()
	}
	if d.Recorder == nil {
		d.Recorder = store.NewNoop()
	}
	return &Service{
		client:   d.Client,
		prompts:  d.Prompts,
		validate: d.Validator,
		recorder: d.Recorder,
		metrics:  d.Metrics,
		log:      d.Log,
	}
}

// Status describes the resolved provider.
type Status struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Configured bool   `json:"configured"`
}

func (s *Service) Status() Status {
	return Status{
		Provider:   string(s.client.Provider()),
		Model:      s.client.Model(),
		Configured: s.client.Configured(),
	}
}

type messageData struct {
	Message string
}

type profileData struct {
	ProfileJSON string
}

type pitchData struct {
	ProfileJSON string
	Plan        domain.Plan
	Price       string
}

func (s *Service) ExtractInitialProfile(ctx context.Context, message string) (domain.UserProfileSeed, error) {
	var out domain.UserProfileSeed
	err := s.extract(ctx, OpExtractInitialProfile, messageData{Message: message}, &out)
	return out, err
}

func (s *Service) RecommendPlan(ctx context.Context, profile domain.FullUserProfile) (domain.RecommendedPlan, error) {
	var out domain.RecommendedPlan
	if err := s.precheck("profile", &profile); err != nil {
		return out, s.finish(ctx, OpRecommendPlan, time.Now(), 0, err)
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return out, err
	}
	err = s.extract(ctx, OpRecommendPlan, profileData{ProfileJSON: string(profileJSON)}, &out)
	return out, err
}

// GenerateSalesPitch writes the free-text pitch. The reply must name the
// plan, quote its price and invite the prospect to a free trial lesson.
func (s *Service) GenerateSalesPitch(ctx context.Context, profile domain.FullUserProfile, plan domain.Plan) (string, error) {
	start := time.Now()
	if err := s.precheck("profile", &profile); err != nil {
		return "", s.finish(ctx, OpGenerateSalesPitch, start, 0, err)
	}
	if err := s.precheck("plan", &plan); err != nil {
		return "", s.finish(ctx, OpGenerateSalesPitch, start, 0, err)
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return "", err
	}
	price := FormatPrice(plan.Price)
	msgs, err := s.prompts.Render(string(OpGenerateSalesPitch), pitchData{
		ProfileJSON: string(profileJSON),
		Plan:        plan,
		Price:       price,
	})
	if err != nil {
		return "", err
	}
	res, err := s.client.CompleteText(ctx, msgs, pitchCheck(plan.Name, plan.Price))
	if err != nil {
		return "", s.finish(ctx, OpGenerateSalesPitch, start, attemptsOf(res, err), err)
	}
	s.finish(ctx, OpGenerateSalesPitch, start, res.Attempts, nil)
	return res.Text, nil
}

func (s *Service) ClassifyIntent(ctx context.Context, message string) (domain.YesNoIntent, error) {
	var out domain.YesNoIntent
	err := s.extract(ctx, OpClassifyIntent, messageData{Message: message}, &out)
	return out, err
}

func (s *Service) ExtractSchedulingData(ctx context.Context, message string) (domain.SchedulingRequest, error) {
	var out domain.SchedulingRequest
	err := s.extract(ctx, OpExtractSchedulingData, messageData{Message: message}, &out)
	return out, err
}

func (s *Service) extract(ctx context.Context, op Operation, data any, target llm.Schema) error {
	start := time.Now()
	msgs, err := s.prompts.Render(string(op), data)
	if err != nil {
		return err
	}
	res, err := s.client.Complete(ctx, msgs, target)
	if err != nil {
		return s.finish(ctx, op, start, attemptsOf(res, err), err)
	}
	s.finish(ctx, op, start, res.Attempts, nil)
	return nil
}

// precheck fails fast on an unconfigured client, then validates caller input.
func (s *Service) precheck(field string, v any) error {
	if !s.client.Configured() {
		return s.client.Err()
	}
	if err := s.validate.Struct(v); err != nil {
		return &llm.InputError{Field: field, Err: err}
	}
	return nil
}

// finish logs, counts and audits an operation, then hands err back.
func (s *Service) finish(ctx context.Context, op Operation, start time.Time, attempts int, err error) error {
	elapsed := time.Since(start)
	kind := llm.KindOf(err)
	provider := string(s.client.Provider())

	s.metrics.Observe(string(op), provider, string(kind), attempts, elapsed)

	log := s.log.With("operation", op, "provider", provider, "attempts", attempts, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		log.Warn("nlp operation failed", "kind", kind, "err", err)
	} else {
		log.Debug("nlp operation completed")
	}

	rec := store.Record{
		Operation:  string(op),
		Provider:   provider,
		Model:      s.client.Model(),
		Outcome:    string(kind),
		Attempts:   attempts,
		DurationMS: elapsed.Milliseconds(),
	}
	var exErr *llm.ExtractionError
	if errors.As(err, &exErr) {
		rec.Errors = exErr.Errors
	} else if err != nil {
		rec.Errors = []string{err.Error()}
	}
	if recErr := s.recorder.Record(ctx, rec); recErr != nil {
		log.Warn("failed to record operation", "err", recErr)
	}
	return err
}

func attemptsOf(res llm.Completion, err error) int {
	var exErr *llm.ExtractionError
	if errors.As(err, &exErr) {
		return exErr.Attempts
	}
	return res.Attempts
}

// FormatPrice renders a price without trailing zeros, e.g. 1200 or 49.5.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

var trialPhrases = []string{"clase muestra", "clase de prueba", "free trial"}

// amountPattern matches a written amount: digit groups joined by a single
// thousands separator (dot, comma, space, NBSP or narrow NBSP), or a plain
// digit run, each with an optional one- or two-digit decimal part.
var amountPattern = regexp.MustCompile(`\d{1,3}(?:[., \x{00A0}\x{202F}]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?`)

// parseAmount reads a match of amountPattern. A trailing separator followed
// by one or two digits is the decimal part; every other separator groups
// thousands.
func parseAmount(s string) (float64, bool) {
	whole, frac := s, ""
	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 <= 2 {
		whole, frac = s[:i], s[i+1:]
	}
	var b strings.Builder
	for _, r := range whole {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	return v, err == nil
}

// mentionsPrice reports whether text quotes price in any common
// thousands-grouping style, e.g. 1200, 1,200, 1.200, 1 200 or 1,200.00.
func mentionsPrice(text string, price float64) bool {
	for _, m := range amountPattern.FindAllString(text, -1) {
		if v, ok := parseAmount(m); ok && math.Abs(v-price) < 0.005 {
			return true
		}
	}
	return false
}

func pitchCheck(planName string, price float64) func(string) error {
	return func(text string) error {
		lower := strings.ToLower(text)
		var missing []string
		if !strings.Contains(lower, strings.ToLower(planName)) {
			missing = append(missing, fmt.Sprintf("the plan name %q", planName))
		}
		if !mentionsPrice(text, price) {
			missing = append(missing, fmt.Sprintf("the price $%s", FormatPrice(price)))
		}
		invites := false
		for _, p := range trialPhrases {
			if strings.Contains(lower, p) {
				invites = true
				break
			}
		}
		if !invites {
			missing = append(missing, "an invitation to book a free trial lesson (clase muestra gratuita)")
		}
		if len(missing) > 0 {
			return fmt.Errorf("pitch must mention %s", strings.Join(missing, ", "))
		}
		return nil
	}
}
