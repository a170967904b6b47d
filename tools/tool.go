// Package tools declares the retrieval capabilities the model may
// invoke and the registry that dispatches invocations to them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/fabfab/course-agent/llm"
	"github.com/fabfab/course-agent/vectorstore"
)

// Source is a citation from an answer back to the course material that
// supported it. ChunkIndex is nil for sources that reference a whole
// course (outline lookups) rather than one chunk.
type Source struct {
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	ChunkIndex   *int   `json:"chunk_index,omitempty"`
	Label        string `json:"label"`
	Link         string `json:"link,omitempty"`
}

// Store is the slice of the vector store the tools need.
type Store interface {
	SearchContent(ctx context.Context, query string, opts vectorstore.SearchOptions) ([]vectorstore.ContentHit, error)
	CourseOutlineByName(ctx context.Context, name string) (*vectorstore.CourseOutline, error)
	LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error)
}

// Tool is one named capability: a declaration the model selects from
// and an execution function producing rendered text plus citations.
type Tool interface {
	Definition() llm.ToolDefinition
	Execute(ctx context.Context, args json.RawMessage) (string, []Source, error)
}

// InvocationError reports a tool call that could not be executed:
// unknown tool name or parameters that fail schema validation. It is
// folded into the conversation as a tool-result observation so the
// model can retry or give up, never raised to the end user.
type InvocationError struct {
	Tool   string
	Reason string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %q: %s", e.Tool, e.Reason)
}

// Registry maps tool names to implementations. Tools are registered
// once at startup; the set is immutable afterwards. Parameters are
// validated against the declared schema before execution.
type Registry struct {
	tools   map[string]Tool
	order   []string
	schemas map[string]*jsonschema.Resolved
}

func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Resolved),
	}
}

func (r *Registry) Register(tool Tool) error {
	def := tool.Definition()
	if def.Name == "" {
		return fmt.Errorf("tool definition has no name")
	}
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Name)
	}

	schema, ok := def.Parameters.(*jsonschema.Schema)
	if !ok {
		return fmt.Errorf("tool %q parameters must be a *jsonschema.Schema", def.Name)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema for tool %q: %w", def.Name, err)
	}

	r.tools[def.Name] = tool
	r.order = append(r.order, def.Name)
	r.schemas[def.Name] = resolved
	return nil
}

// Definitions returns the declarations in registration order, ready to
// hand to the model on each dispatch.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute validates the arguments against the tool's declared schema
// and runs it. Validation failures come back as InvocationError.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, []Source, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", nil, &InvocationError{Tool: name, Reason: "unknown tool"}
	}

	params := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", nil, &InvocationError{Tool: name, Reason: fmt.Sprintf("arguments are not a JSON object: %v", err)}
		}
	}
	if err := r.schemas[name].Validate(params); err != nil {
		return "", nil, &InvocationError{Tool: name, Reason: fmt.Sprintf("invalid arguments: %v", err)}
	}

	return tool.Execute(ctx, args)
}
