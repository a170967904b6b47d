// Package llm abstracts the chat providers behind a tool-aware client:
// given messages and declared tools, a provider returns either a final
// answer or a set of tool invocation requests.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fabfab/course-agent/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of the working prompt. Assistant turns that
// requested tools carry ToolCalls; tool-result turns carry RoleTool
// with the ToolCallID (and Name) of the request they answer.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a structured tool-invocation request from the model.
// Arguments is the raw JSON object the model supplied; validation
// happens at execution time against the declared schema.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolDefinition declares a callable capability to the model.
// Parameters must marshal to a JSON Schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  any
}

// Completion is one model response: final content, or one or more tool
// calls when the model decided retrieval is needed.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

type Client interface {
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (Completion, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
