// Package agent drives the tool-calling protocol with the model: it
// composes the working prompt, executes requested tool invocations,
// feeds results back, and bounds the number of retrieval rounds.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/fabfab/course-agent/llm"
	"github.com/fabfab/course-agent/tools"
)

// ToolExecutor resolves and runs tool invocations. Execution errors are
// folded into the conversation as observations, never returned from
// Respond.
type ToolExecutor interface {
	Definitions() []llm.ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) (string, []tools.Source, error)
}

const defaultMaxToolRounds = 2

// systemPrompt sets the decide-to-search-or-not policy: general
// knowledge questions are answered directly, course questions go
// through the search or outline tool first.
const systemPrompt = `You are an assistant for questions about a library of course materials.

You have two tools:
- search_course_content: find what specific courses and lessons teach.
- get_course_outline: list a course's title, link, instructor, and lessons.

Usage policy:
- Answer general knowledge questions directly, without tools.
- For course-specific questions, call the appropriate tool first, then answer from its results.
- You may use tools across multiple rounds for comparisons or multi-part questions, but keep tool use minimal.
- If a tool reports that nothing was found, say so plainly; do not invent course content.
- Give direct, concise answers. Do not describe your reasoning process or mention the tools.`

// Generator runs at most maxRounds dispatches with tools offered; if
// the model is still requesting tools after that, one final dispatch is
// made without tools so an answer is always produced. This caps latency
// and cost per query regardless of model behavior.
type Generator struct {
	client    llm.Client
	maxRounds int
	logger    *log.Logger
}

func NewGenerator(client llm.Client, maxRounds int, logger *log.Logger) *Generator {
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{client: client, maxRounds: maxRounds, logger: logger}
}

// Respond answers one query given the bounded session history, and
// returns the accumulated citations from every tool executed on the
// way. Transport failures from the model are returned as-is; tool
// failures are not.
func (g *Generator) Respond(ctx context.Context, query string, history []llm.Message, executor ToolExecutor) (string, []tools.Source, error) {
	if g.client == nil {
		return "", nil, fmt.Errorf("llm client is not configured")
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	var defs []llm.ToolDefinition
	if executor != nil {
		defs = executor.Definitions()
	}

	var sources []tools.Source

	for round := 1; round <= g.maxRounds; round++ {
		completion, err := g.client.Generate(ctx, messages, defs)
		if err != nil {
			return "", nil, fmt.Errorf("llm generate (round %d): %w", round, err)
		}

		if len(completion.ToolCalls) == 0 {
			return completion.Content, sources, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		for _, call := range completion.ToolCalls {
			text, callSources, execErr := executor.Execute(ctx, call.Name, call.Arguments)
			if execErr != nil {
				// Observation, not failure: the model gets to explain a
				// broken retrieval conversationally.
				g.logger.Printf("tool %s failed: %v", call.Name, execErr)
				text = "Tool error: " + execErr.Error()
			} else {
				sources = append(sources, callSources...)
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    text,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	// Round budget spent: force a final answer with no tools offered.
	completion, err := g.client.Generate(ctx, messages, nil)
	if err != nil {
		return "", nil, fmt.Errorf("llm generate (final): %w", err)
	}

	return completion.Content, sources, nil
}
