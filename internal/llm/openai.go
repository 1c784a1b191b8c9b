package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAICompleter calls an OpenAI-compatible Chat Completions API.
type OpenAICompleter struct {
	provider    ProviderID
	model       openai.ChatModel
	client      *openai.Client
	jsonSchemas bool // provider accepts json_schema response formats
}

const defaultChatTemperature = 0.2

// NewOpenAICompleter builds a transport bound to model. The SDK's own retries
// are disabled so each Complete is a single round trip.
func NewOpenAICompleter(provider ProviderID, model string, jsonSchemas bool, opts ...option.RequestOption) (*OpenAICompleter, error) {
	if model == "" {
		return nil, fmt.Errorf("model required")
	}
	opts = append([]option.RequestOption{option.WithMaxRetries(0)}, opts...)
	cli := openai.NewClient(opts...)
	return &OpenAICompleter{
		provider:    provider,
		model:       openai.ChatModel(model),
		client:      &cli,
		jsonSchemas: jsonSchemas,
	}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("nil openai client")
	}
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    buildMessages(req.Messages),
		Temperature: openai.Float(defaultChatTemperature),
	}
	if req.Format != nil {
		params.ResponseFormat = c.responseFormat(req.Format)
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		terr := &TransportError{Provider: c.provider, Err: err}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			terr.StatusCode = apiErr.StatusCode
		}
		return "", terr
	}
	if len(resp.Choices) == 0 {
		return "", &TransportError{Provider: c.provider, Err: errors.New("no choices returned")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAICompleter) responseFormat(f *ResponseFormat) openai.ChatCompletionNewParamsResponseFormatUnion {
	if !c.jsonSchemas {
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   f.Name,
				Schema: f.Schema,
			},
		},
	}
}

func buildMessages(msgs []ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(m.Text),
					},
				},
			})
		case RoleAssistant:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(m.Text),
					},
				},
			})
		default:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(m.Text),
					},
				},
			})
		}
	}
	return out
}
