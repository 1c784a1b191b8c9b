package httputil

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-nlu/internal/llm"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind llm.ErrorKind
		want int
	}{
		{llm.KindNone, http.StatusOK},
		{llm.KindInput, http.StatusBadRequest},
		{llm.KindValidation, http.StatusUnprocessableEntity},
		{llm.KindConfig, http.StatusServiceUnavailable},
		{llm.KindTransport, http.StatusBadGateway},
		{llm.KindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.kind), string(tt.kind))
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/classify/intent", nil)

	WriteError(discard, rec, req, &llm.ExtractionError{Schema: "YesNoIntent", Attempts: 3, Err: errors.New("intent: failed required")})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body struct {
		Error llm.ErrorBody `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, llm.KindValidation, body.Error.Kind)
	assert.Contains(t, body.Error.Message, "YesNoIntent")
}

func TestReadBodyLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", MaxBodyBytes+1)))

	_, err := ReadBody(rec, req)

	assert.ErrorIs(t, err, llm.ErrInvalidInput)
}

func TestRouterRecoversPanics(t *testing.T) {
	r := NewRouter(discard, time.Second)
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	r.Get("/healthz", HealthHandler(discard))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
