package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/fabfab/course-agent/llm"
	"github.com/fabfab/course-agent/vectorstore"
)

const SearchToolName = "search_course_content"

// SearchInput is the declared parameter schema for the search tool.
type SearchInput struct {
	Query        string `json:"query" jsonschema:"What to look for in the course content"`
	CourseName   string `json:"course_name,omitempty" jsonschema:"Course title, may be partial or approximate (e.g. 'MCP', 'Intro')"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema:"Restrict the search to one lesson number (e.g. 0, 3)"`
}

// SearchTool answers content questions: it embeds the query, retrieves
// the nearest chunks with optional course/lesson filters, and renders
// them with their course and lesson labels.
type SearchTool struct {
	store  Store
	schema *jsonschema.Schema
}

func NewSearchTool(store Store) (*SearchTool, error) {
	schema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for search tool: %w", err)
	}
	return &SearchTool{store: store, schema: schema}, nil
}

func (t *SearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: SearchToolName,
		Description: "Search course materials for specific content. Use for questions about " +
			"what a course or lesson actually teaches. Supports an optional course name " +
			"(partial names are resolved) and an optional lesson number.",
		Parameters: t.schema,
	}
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (string, []Source, error) {
	var input SearchInput
	if err := json.Unmarshal(args, &input); err != nil {
		return "", nil, &InvocationError{Tool: SearchToolName, Reason: fmt.Sprintf("decode arguments: %v", err)}
	}

	hits, err := t.store.SearchContent(ctx, input.Query, vectorstore.SearchOptions{
		CourseName:   input.CourseName,
		LessonNumber: input.LessonNumber,
	})
	if err != nil {
		var notFound *vectorstore.CourseNotFoundError
		if errors.As(err, &notFound) {
			return notFound.Error(), nil, nil
		}
		return "", nil, err
	}

	if len(hits) == 0 {
		return emptyResultMessage(input), nil, nil
	}

	return t.renderHits(ctx, hits)
}

func (t *SearchTool) renderHits(ctx context.Context, hits []vectorstore.ContentHit) (string, []Source, error) {
	blocks := make([]string, 0, len(hits))
	sources := make([]Source, 0, len(hits))

	for _, hit := range hits {
		label := hit.CourseTitle
		if hit.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", hit.CourseTitle, *hit.LessonNumber)
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", label, hit.Content))

		source := Source{
			CourseTitle:  hit.CourseTitle,
			LessonNumber: hit.LessonNumber,
			ChunkIndex:   intPtr(hit.ChunkIndex),
			Label:        label,
		}
		if hit.LessonNumber != nil {
			link, linkErr := t.store.LessonLink(ctx, hit.CourseTitle, *hit.LessonNumber)
			if linkErr == nil {
				source.Link = link
			}
		}
		sources = append(sources, source)
	}

	return strings.Join(blocks, "\n\n"), sources, nil
}

func emptyResultMessage(input SearchInput) string {
	msg := "No relevant content found"
	if input.CourseName != "" {
		msg += fmt.Sprintf(" in course '%s'", input.CourseName)
	}
	if input.LessonNumber != nil {
		msg += fmt.Sprintf(" in lesson %d", *input.LessonNumber)
	}
	return msg + "."
}

func intPtr(v int) *int {
	return &v
}

var _ Tool = (*SearchTool)(nil)
