package llm

import (
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3/option"
)

// ProviderID names a hosted language-model backend.
type ProviderID string

const (
	ProviderOpenAI   ProviderID = "openai"
	ProviderDeepSeek ProviderID = "deepseek"
)

// Fixed per-provider settings.
const (
	OpenAIModel     = "gpt-4o"
	DeepSeekModel   = "deepseek-chat"
	DeepSeekBaseURL = "https://api.deepseek.com"
)

// placeholderKeys are sample values shipped in .env templates.
var placeholderKeys = map[string]bool{
	"tu_clave_de_api_aqui": true,
	"your_api_key_here":    true,
	"your-api-key":         true,
	"changeme":             true,
	"sk-...":               true,
}

// Credentials carries the per-provider API keys; only the active provider's
// key is looked at.
type Credentials struct {
	OpenAI   string
	DeepSeek string
}

// Provider resolves a backend into a transport handle. Resolve performs no
// network I/O.
type Provider interface {
	ID() ProviderID
	Model() string
	CredentialKey() string
	Resolve() (Completer, error)
}

// ParseProviderID maps a configuration value to a ProviderID.
func ParseProviderID(s string) (ProviderID, error) {
	switch ProviderID(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOpenAI, "":
		return ProviderOpenAI, nil
	case ProviderDeepSeek:
		return ProviderDeepSeek, nil
	default:
		return ProviderOpenAI, fmt.Errorf("unknown model provider %q (valid options: openai, deepseek)", s)
	}
}

// NewProvider returns the variant for id.
func NewProvider(id ProviderID, creds Credentials) Provider {
	if id == ProviderDeepSeek {
		return &deepSeekProvider{apiKey: creds.DeepSeek}
	}
	return &openAIProvider{apiKey: creds.OpenAI}
}

type openAIProvider struct {
	apiKey string
}

func (p *openAIProvider) ID() ProviderID        { return ProviderOpenAI }
func (p *openAIProvider) Model() string         { return OpenAIModel }
func (p *openAIProvider) CredentialKey() string { return "OPENAI_API_KEY" }

func (p *openAIProvider) Resolve() (Completer, error) {
	if err := checkCredential(p, p.apiKey); err != nil {
		return nil, err
	}
	return NewOpenAICompleter(ProviderOpenAI, OpenAIModel, true, option.WithAPIKey(p.apiKey))
}

type deepSeekProvider struct {
	apiKey string
}

func (p *deepSeekProvider) ID() ProviderID        { return ProviderDeepSeek }
func (p *deepSeekProvider) Model() string         { return DeepSeekModel }
func (p *deepSeekProvider) CredentialKey() string { return "DEEPSEEK_API_KEY" }

// DeepSeek speaks the OpenAI wire format but only supports json_object
// response formats.
func (p *deepSeekProvider) Resolve() (Completer, error) {
	if err := checkCredential(p, p.apiKey); err != nil {
		return nil, err
	}
	return NewOpenAICompleter(ProviderDeepSeek, DeepSeekModel, false,
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(DeepSeekBaseURL),
	)
}

func checkCredential(p Provider, key string) error {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return &ConfigError{Provider: p.ID(), CredentialKey: p.CredentialKey(), Reason: "is not set"}
	case placeholderKeys[strings.ToLower(key)]:
		return &ConfigError{Provider: p.ID(), CredentialKey: p.CredentialKey(), Reason: "still holds the placeholder value"}
	}
	return nil
}
