package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sales-nlu/internal/domain"
	"sales-nlu/internal/llm"
	"sales-nlu/internal/nlp"
)

func TestOperationHandlersCoverEverySubject(t *testing.T) {
	handlers := OperationHandlers(new(nlp.MockExtractor), domain.NewValidator())

	require.Len(t, handlers, len(nlp.Operations))
	for _, subject := range []string{
		"nlu.extract_initial_profile",
		"nlu.recommend_plan",
		"nlu.generate_sales_pitch",
		"nlu.classify_intent",
		"nlu.extract_scheduling_data",
	} {
		assert.Contains(t, handlers, subject)
	}
}

func TestReply(t *testing.T) {
	ext := new(nlp.MockExtractor)
	ext.On("ClassifyIntent", mock.Anything, "sí, me interesa").
		Return(domain.YesNoIntent{Intent: domain.IntentAffirmative}, nil).Once()
	ext.On("ClassifyIntent", mock.Anything, "no sé").
		Return(domain.YesNoIntent{}, &llm.ExtractionError{Schema: "YesNoIntent", Attempts: 3, Err: errors.New("intent: failed required")}).Once()
	ext.On("ExtractSchedulingData", mock.Anything, "5512345678").
		Return(domain.SchedulingRequest{}, &llm.ConfigError{Provider: llm.ProviderOpenAI, CredentialKey: "OPENAI_API_KEY", Reason: "missing"}).Once()
	handlers := OperationHandlers(ext, domain.NewValidator())
	ctx := context.Background()

	tests := []struct {
		name     string
		subject  string
		payload  string
		wantKind llm.ErrorKind
		check    func(*testing.T, json.RawMessage)
	}{
		{
			name:    "result",
			subject: Subject(nlp.OpClassifyIntent),
			payload: `{"message":"sí, me interesa"}`,
			check: func(t *testing.T, raw json.RawMessage) {
				assert.JSONEq(t, `{"intent":"affirmative"}`, string(raw))
			},
		},
		{name: "ambiguous intent", subject: Subject(nlp.OpClassifyIntent), payload: `{"message":"no sé"}`, wantKind: llm.KindValidation},
		{name: "not configured", subject: Subject(nlp.OpExtractSchedulingData), payload: `{"message":"5512345678"}`, wantKind: llm.KindConfig},
		{name: "bad payload", subject: Subject(nlp.OpExtractInitialProfile), payload: `not json`, wantKind: llm.KindInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			require.NoError(t, json.Unmarshal(Reply(ctx, handlers[tt.subject], []byte(tt.payload)), &env))

			if tt.wantKind == "" {
				assert.Nil(t, env.Error)
				tt.check(t, env.Result)
				return
			}
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantKind, env.Error.Kind)
			assert.NotEmpty(t, env.Error.Message)
			assert.Empty(t, env.Result)
		})
	}
	ext.AssertExpectations(t)
}

func TestDecode(t *testing.T) {
	var seed domain.UserProfileSeed
	require.NoError(t, Decode([]byte(`{"result":{"for_whom":"mi hijo","age":8}}`), &seed))
	assert.Equal(t, domain.UserProfileSeed{ForWhom: "mi hijo", Age: 8}, seed)

	err := Decode([]byte(`{"error":{"kind":"transport","message":"provider down"}}`), &seed)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, llm.KindTransport, remote.Body.Kind)
	assert.Equal(t, "transport: provider down", err.Error())

	assert.Error(t, Decode([]byte(`<html>`), &seed))
}
