package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fabfab/course-agent/docproc"
	"github.com/fabfab/course-agent/tools"
	"github.com/fabfab/course-agent/vectorstore"
)

type stubStore struct {
	hits        []vectorstore.ContentHit
	searchErr   error
	outline     *vectorstore.CourseOutline
	outlineErr  error
	lessonLinks map[int]string

	lastQuery string
	lastOpts  vectorstore.SearchOptions
}

func (s *stubStore) SearchContent(_ context.Context, query string, opts vectorstore.SearchOptions) ([]vectorstore.ContentHit, error) {
	s.lastQuery = query
	s.lastOpts = opts
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.hits, nil
}

func (s *stubStore) CourseOutlineByName(context.Context, string) (*vectorstore.CourseOutline, error) {
	if s.outlineErr != nil {
		return nil, s.outlineErr
	}
	return s.outline, nil
}

func (s *stubStore) LessonLink(_ context.Context, _ string, lessonNumber int) (string, error) {
	link, ok := s.lessonLinks[lessonNumber]
	if !ok {
		return "", errors.New("no link")
	}
	return link, nil
}

func intPtr(v int) *int { return &v }

func newRegistry(t *testing.T, store tools.Store) *tools.Registry {
	t.Helper()

	registry := tools.NewRegistry()

	searchTool, err := tools.NewSearchTool(store)
	if err != nil {
		t.Fatalf("build search tool: %v", err)
	}
	if err := registry.Register(searchTool); err != nil {
		t.Fatalf("register search tool: %v", err)
	}

	outlineTool, err := tools.NewOutlineTool(store)
	if err != nil {
		t.Fatalf("build outline tool: %v", err)
	}
	if err := registry.Register(outlineTool); err != nil {
		t.Fatalf("register outline tool: %v", err)
	}

	return registry
}

func TestSearchToolRendersHitsWithSources(t *testing.T) {
	store := &stubStore{
		hits: []vectorstore.ContentHit{
			{Content: "Widgets are useful.", CourseTitle: "Intro to X", LessonNumber: intPtr(0), ChunkIndex: 0, Score: 0.9},
			{Content: "Assembly requires care.", CourseTitle: "Intro to X", LessonNumber: intPtr(1), ChunkIndex: 3, Score: 0.7},
		},
		lessonLinks: map[int]string{0: "https://example.com/x/lesson0"},
	}
	registry := newRegistry(t, store)

	args := json.RawMessage(`{"query": "widgets", "course_name": "Intro"}`)
	text, sources, err := registry.Execute(context.Background(), tools.SearchToolName, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.lastQuery != "widgets" || store.lastOpts.CourseName != "Intro" {
		t.Fatalf("search not forwarded: query=%q opts=%+v", store.lastQuery, store.lastOpts)
	}

	blocks := strings.Split(text, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 result blocks, got %d:\n%s", len(blocks), text)
	}
	if !strings.HasPrefix(blocks[0], "[Intro to X - Lesson 0]\n") {
		t.Fatalf("unexpected first block header:\n%s", blocks[0])
	}

	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	first := sources[0]
	if first.CourseTitle != "Intro to X" || first.Label != "Intro to X - Lesson 0" {
		t.Fatalf("unexpected first source: %+v", first)
	}
	if first.ChunkIndex == nil || *first.ChunkIndex != 0 {
		t.Fatalf("expected chunk index 0, got %+v", first.ChunkIndex)
	}
	if first.Link != "https://example.com/x/lesson0" {
		t.Fatalf("expected lesson link on first source, got %q", first.Link)
	}
	if sources[1].Link != "" {
		t.Fatalf("expected no link when lookup fails, got %q", sources[1].Link)
	}
}

func TestSearchToolEmptyResultMessageNamesFilters(t *testing.T) {
	store := &stubStore{}
	registry := newRegistry(t, store)

	args := json.RawMessage(`{"query": "widgets", "course_name": "Intro to X", "lesson_number": 3}`)
	text, sources, err := registry.Execute(context.Background(), tools.SearchToolName, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "No relevant content found in course 'Intro to X' in lesson 3."
	if text != want {
		t.Fatalf("expected %q, got %q", want, text)
	}
	if len(sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(sources))
	}
}

func TestSearchToolCourseNotFoundBecomesObservation(t *testing.T) {
	store := &stubStore{searchErr: &vectorstore.CourseNotFoundError{Name: "Nonexistent"}}
	registry := newRegistry(t, store)

	args := json.RawMessage(`{"query": "anything", "course_name": "Nonexistent"}`)
	text, _, err := registry.Execute(context.Background(), tools.SearchToolName, args)
	if err != nil {
		t.Fatalf("expected not-found folded into the result, got error: %v", err)
	}
	if !strings.Contains(text, "Nonexistent") {
		t.Fatalf("expected observation to name the course, got %q", text)
	}
}

func TestSearchToolInfrastructureErrorPropagates(t *testing.T) {
	store := &stubStore{searchErr: errors.New("connection refused")}
	registry := newRegistry(t, store)

	args := json.RawMessage(`{"query": "anything"}`)
	if _, _, err := registry.Execute(context.Background(), tools.SearchToolName, args); err == nil {
		t.Fatal("expected infrastructure error to propagate")
	}
}

func TestOutlineToolFormatsCatalogEntry(t *testing.T) {
	store := &stubStore{
		outline: &vectorstore.CourseOutline{
			Title:      "Intro to X",
			Link:       "https://example.com/x",
			Instructor: "Jane Doe",
			Lessons: []docproc.Lesson{
				{Number: 0, Title: "Getting Started", Link: "https://example.com/x/lesson0"},
				{Number: 1, Title: "Advanced Widgets"},
			},
		},
	}
	registry := newRegistry(t, store)

	args := json.RawMessage(`{"course_name": "Intro"}`)
	text, sources, err := registry.Execute(context.Background(), tools.OutlineToolName, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Course: Intro to X",
		"Course Link: https://example.com/x",
		"Instructor: Jane Doe",
		"Course Outline (2 lessons):",
		"Lesson 0: Getting Started (https://example.com/x/lesson0)",
		"Lesson 1: Advanced Widgets",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("outline missing %q:\n%s", want, text)
		}
	}

	if len(sources) != 1 {
		t.Fatalf("expected one outline source, got %d", len(sources))
	}
	if sources[0].Label != "Intro to X - Course Outline" {
		t.Fatalf("unexpected source label: %q", sources[0].Label)
	}
	if sources[0].ChunkIndex != nil {
		t.Fatal("outline source should not reference a chunk")
	}
}

func TestOutlineToolUnknownInstructorFallback(t *testing.T) {
	store := &stubStore{outline: &vectorstore.CourseOutline{Title: "Intro to X"}}
	registry := newRegistry(t, store)

	text, _, err := registry.Execute(context.Background(), tools.OutlineToolName, json.RawMessage(`{"course_name": "Intro"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Instructor: Unknown Instructor") {
		t.Fatalf("expected instructor fallback, got:\n%s", text)
	}
}

func TestRegistryRejectsUnknownTool(t *testing.T) {
	registry := newRegistry(t, &stubStore{})

	_, _, err := registry.Execute(context.Background(), "no_such_tool", json.RawMessage(`{}`))

	var invErr *tools.InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvocationError, got %v", err)
	}
	if invErr.Tool != "no_such_tool" {
		t.Fatalf("unexpected tool name in error: %q", invErr.Tool)
	}
}

func TestRegistryValidatesArguments(t *testing.T) {
	registry := newRegistry(t, &stubStore{})

	// "query" is required by the declared schema.
	_, _, err := registry.Execute(context.Background(), tools.SearchToolName, json.RawMessage(`{"course_name": "Intro"}`))

	var invErr *tools.InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvocationError for missing query, got %v", err)
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := tools.NewRegistry()

	first, err := tools.NewSearchTool(&stubStore{})
	if err != nil {
		t.Fatalf("build search tool: %v", err)
	}
	if err := registry.Register(first); err != nil {
		t.Fatalf("register search tool: %v", err)
	}

	second, err := tools.NewSearchTool(&stubStore{})
	if err != nil {
		t.Fatalf("build second search tool: %v", err)
	}
	if err := registry.Register(second); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestDefinitionsPreserveRegistrationOrder(t *testing.T) {
	registry := newRegistry(t, &stubStore{})

	defs := registry.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != tools.SearchToolName || defs[1].Name != tools.OutlineToolName {
		t.Fatalf("unexpected definition order: %s, %s", defs[0].Name, defs[1].Name)
	}
}
