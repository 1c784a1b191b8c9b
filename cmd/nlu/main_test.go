package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sales-nlu/internal/domain"
	"sales-nlu/internal/llm"
	"sales-nlu/internal/metrics"
	"sales-nlu/internal/nlp"
	"sales-nlu/internal/store"
)

func newTestServer(ext nlp.Extractor, rec store.Recorder) *server {
	return &server{
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		ext:      ext,
		validate: domain.NewValidator(),
		recorder: rec,
		status: func() nlp.Status {
			return nlp.Status{Provider: "openai", Model: "gpt-4o", Configured: true}
		},
	}
}

func TestOperationEndpoints(t *testing.T) {
	profile := domain.FullUserProfile{ForWhom: "para mí", Age: 35, Goals: "tocar con amigos"}
	plan := domain.Plan{Name: "Plan Intermedio", Description: "Dos clases por semana", Price: 1200}

	tests := []struct {
		name       string
		path       string
		body       string
		setup      func(*nlp.MockExtractor)
		wantStatus int
		wantBody   string
		wantKind   llm.ErrorKind
	}{
		{
			name: "initial profile",
			path: "/api/extract/profile",
			body: `{"message":"Es para mí, tengo 35"}`,
			setup: func(m *nlp.MockExtractor) {
				m.On("ExtractInitialProfile", mock.Anything, "Es para mí, tengo 35").
					Return(domain.UserProfileSeed{ForWhom: "para mí", Age: 35}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"for_whom":"para mí","age":35}`,
		},
		{
			name: "recommend",
			path: "/api/recommend",
			body: `{"profile":{"for_whom":"para mí","age":35,"goals":"tocar con amigos"}}`,
			setup: func(m *nlp.MockExtractor) {
				m.On("RecommendPlan", mock.Anything, profile).
					Return(domain.RecommendedPlan{Plan: domain.PlanIntermediate}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"plan":"intermediate"}`,
		},
		{
			name: "pitch",
			path: "/api/pitch",
			body: `{"profile":{"for_whom":"para mí","age":35,"goals":"tocar con amigos"},"plan":{"name":"Plan Intermedio","description":"Dos clases por semana","price":1200}}`,
			setup: func(m *nlp.MockExtractor) {
				m.On("GenerateSalesPitch", mock.Anything, profile, plan).
					Return("El Plan Intermedio por $1200... ¡agenda tu clase muestra!", nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"pitch":"El Plan Intermedio por $1200... ¡agenda tu clase muestra!"}`,
		},
		{
			name: "intent",
			path: "/api/classify/intent",
			body: `{"message":"no, gracias"}`,
			setup: func(m *nlp.MockExtractor) {
				m.On("ClassifyIntent", mock.Anything, "no, gracias").
					Return(domain.YesNoIntent{Intent: domain.IntentNegative}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"intent":"negative"}`,
		},
		{
			name: "scheduling without phone",
			path: "/api/extract/scheduling",
			body: `{"message":"el viernes"}`,
			setup: func(m *nlp.MockExtractor) {
				m.On("ExtractSchedulingData", mock.Anything, "el viernes").
					Return(domain.SchedulingRequest{}, &llm.ExtractionError{Schema: "SchedulingRequest", Attempts: 3, Err: errors.New("phone: failed required")}).Once()
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   llm.KindValidation,
		},
		{
			name: "unconfigured provider",
			path: "/api/classify/intent",
			body: `{"message":"sí"}`,
			setup: func(m *nlp.MockExtractor) {
				m.On("ClassifyIntent", mock.Anything, "sí").
					Return(domain.YesNoIntent{}, &llm.ConfigError{Provider: llm.ProviderOpenAI, CredentialKey: "OPENAI_API_KEY", Reason: "missing"}).Once()
			},
			wantStatus: http.StatusServiceUnavailable,
			wantKind:   llm.KindConfig,
		},
		{
			name: "provider unreachable",
			path: "/api/extract/profile",
			body: `{"message":"para mi hija"}`,
			setup: func(m *nlp.MockExtractor) {
				m.On("ExtractInitialProfile", mock.Anything, "para mi hija").
					Return(domain.UserProfileSeed{}, &llm.TransportError{Provider: llm.ProviderOpenAI, Err: errors.New("connection refused")}).Once()
			},
			wantStatus: http.StatusBadGateway,
			wantKind:   llm.KindTransport,
		},
		{
			name:       "missing message",
			path:       "/api/classify/intent",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   llm.KindInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(nlp.MockExtractor)
			if tt.setup != nil {
				tt.setup(m)
			}
			h := newTestServer(m, store.NewNoop()).routes(nil, time.Second)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
			if tt.wantKind != "" {
				var body struct {
					Error llm.ErrorBody `json:"error"`
				}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantKind, body.Error.Kind)
			}
			m.AssertExpectations(t)
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestServer(new(nlp.MockExtractor), store.NewNoop()).routes(nil, time.Second)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"provider":"openai","model":"gpt-4o","configured":true}`, rec.Body.String())
}

func TestHistoryEndpoint(t *testing.T) {
	id := uuid.New()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		query      string
		setup      func(*store.MockRecorder)
		wantStatus int
		wantCount  int
	}{
		{
			name:  "default limit",
			query: "",
			setup: func(r *store.MockRecorder) {
				r.On("ListRecent", mock.Anything, defaultHistoryLimit).Return([]store.Record{{
					ID: id, Operation: "classify_intent", Provider: "openai", Model: "gpt-4o",
					Outcome: "ok", Attempts: 1, CreatedAt: created,
				}}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name:  "explicit limit with no records",
			query: "?limit=5",
			setup: func(r *store.MockRecorder) {
				r.On("ListRecent", mock.Anything, 5).Return(nil, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantCount:  0,
		},
		{name: "bad limit", query: "?limit=-1", wantStatus: http.StatusBadRequest},
		{
			name:  "store failure",
			query: "",
			setup: func(r *store.MockRecorder) {
				r.On("ListRecent", mock.Anything, defaultHistoryLimit).Return(nil, errors.New("db down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := new(store.MockRecorder)
			if tt.setup != nil {
				tt.setup(r)
			}
			h := newTestServer(new(nlp.MockExtractor), r).routes(nil, time.Second)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/extractions"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				var body struct {
					Records []store.Record `json:"records"`
				}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Len(t, body.Records, tt.wantCount)
			}
			r.AssertExpectations(t)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	m.Observe("classify_intent", "openai", "ok", 1, 20*time.Millisecond)

	h := newTestServer(new(nlp.MockExtractor), store.NewNoop()).routes(reg, time.Second)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sales_nlu_operations_total{operation="classify_intent",outcome="ok",provider="openai"} 1`)
}
