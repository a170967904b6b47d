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

const OutlineToolName = "get_course_outline"

type OutlineInput struct {
	CourseName string `json:"course_name" jsonschema:"Course title, may be partial or approximate"`
}

// OutlineTool answers structural questions: given a course name it
// returns the catalog entry (title, link, instructor, full lesson
// list) instead of searching chunk content.
type OutlineTool struct {
	store  Store
	schema *jsonschema.Schema
}

func NewOutlineTool(store Store) (*OutlineTool, error) {
	schema, err := jsonschema.For[OutlineInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for outline tool: %w", err)
	}
	return &OutlineTool{store: store, schema: schema}, nil
}

func (t *OutlineTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name: OutlineToolName,
		Description: "Get a course outline: title, link, instructor, and the complete " +
			"numbered lesson list. Use for questions about course structure or what " +
			"lessons a course contains.",
		Parameters: t.schema,
	}
}

func (t *OutlineTool) Execute(ctx context.Context, args json.RawMessage) (string, []Source, error) {
	var input OutlineInput
	if err := json.Unmarshal(args, &input); err != nil {
		return "", nil, &InvocationError{Tool: OutlineToolName, Reason: fmt.Sprintf("decode arguments: %v", err)}
	}

	outline, err := t.store.CourseOutlineByName(ctx, input.CourseName)
	if err != nil {
		var notFound *vectorstore.CourseNotFoundError
		if errors.As(err, &notFound) {
			return notFound.Error(), nil, nil
		}
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("Course: " + outline.Title + "\n")
	if outline.Link != "" {
		sb.WriteString("Course Link: " + outline.Link + "\n")
	}
	instructor := outline.Instructor
	if instructor == "" {
		instructor = "Unknown Instructor"
	}
	sb.WriteString("Instructor: " + instructor + "\n")
	sb.WriteString(fmt.Sprintf("Course Outline (%d lessons):\n", len(outline.Lessons)))
	for _, lesson := range outline.Lessons {
		sb.WriteString(fmt.Sprintf("Lesson %d: %s", lesson.Number, lesson.Title))
		if lesson.Link != "" {
			sb.WriteString(" (" + lesson.Link + ")")
		}
		sb.WriteString("\n")
	}

	source := Source{
		CourseTitle: outline.Title,
		Label:       outline.Title + " - Course Outline",
		Link:        outline.Link,
	}

	return strings.TrimRight(sb.String(), "\n"), []Source{source}, nil
}

var _ Tool = (*OutlineTool)(nil)
