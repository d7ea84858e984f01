package llm

import (
	"context"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Message roles accepted by Complete.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Config holds completion client configuration.
type Config struct {
	APIKey    string // Required
	BaseURL   string // Optional: custom API endpoint (proxies, compatible providers)
	Model     string // Defaults to gpt-4o-mini
	MaxTokens int    // Default completion budget when a call does not set one
}

// Message is one chat message.
type Message struct {
	Role    string
	Content string
}

// Telemetry attributes a completion to its caller for tracing and provider-side abuse tracking.
type Telemetry struct {
	TenantID  int64
	UserID    *int64
	Feature   string // e.g. "automation.run_ai_prompt"
	RunID     int64
	MaxTokens int // Optional per-call override of Config.MaxTokens
}

// Completion is the provider-neutral result of a chat completion.
type Completion struct {
	Content          string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// Completer runs single-shot chat completions.
type Completer interface {
	Complete(ctx context.Context, messages []Message, tel Telemetry) (*Completion, error)
	Model() string
}

// New creates a Completer backed by the OpenAI chat completions API.
func New(cfg Config) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	return newOpenAICompleter(cfg), nil
}

// GenerateSchema generates an inline JSON schema for T.
func GenerateSchema[T any]() *jsonschema.Schema {
	var v T
	return GenerateSchemaFrom(v)
}

// GenerateSchemaFrom generates a JSON schema from an instance value.
func GenerateSchemaFrom(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}
