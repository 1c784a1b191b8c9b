package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCompleter is a mock implementation of Completer using testify/mock.
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// StaticProvider resolves to a fixed Completer; a nil Completer behaves like
// a provider with no credential.
type StaticProvider struct {
	Name      ProviderID
	ModelName string
	Completer Completer
}

func (p StaticProvider) ID() ProviderID        { return p.Name }
func (p StaticProvider) Model() string         { return p.ModelName }
func (p StaticProvider) CredentialKey() string { return "TEST_API_KEY" }

func (p StaticProvider) Resolve() (Completer, error) {
	if p.Completer == nil {
		return nil, &ConfigError{Provider: p.Name, CredentialKey: p.CredentialKey(), Reason: "is not set"}
	}
	return p.Completer, nil
}
