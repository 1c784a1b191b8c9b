package llm

import "context"

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single role-tagged message sent to the provider.
type ChatMessage struct {
	Role Role
	Text string
}

// System builds a system instruction message.
func System(text string) ChatMessage { return ChatMessage{Role: RoleSystem, Text: text} }

// User builds a user content message.
func User(text string) ChatMessage { return ChatMessage{Role: RoleUser, Text: text} }

// ResponseFormat asks the provider for a JSON reply shaped by Schema.
type ResponseFormat struct {
	Name   string
	Schema map[string]any
}

// Request is one chat-completion round trip.
type Request struct {
	Messages []ChatMessage
	Format   *ResponseFormat
}

// Completer is the transport handle a resolved provider hands out.
// Implementations issue exactly one request per call.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Schema is a target a completion can be decoded into. Implementations are
// pointer receivers; field constraints come from `validate` struct tags.
type Schema interface {
	SchemaName() string
	JSONSchema() map[string]any
}
