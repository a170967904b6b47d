package integration_test

import (
	"context"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/course-agent/config"
	"github.com/fabfab/course-agent/docproc"
	"github.com/fabfab/course-agent/knowledge"
)

func TestCourseGraphInsights(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database connectivity checks")
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := context.Background()

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		t.Fatalf("neo4j connection: %v", err)
	}
	defer driver.Close(ctx)

	titleA := "Integration Widget Course"
	titleB := "Integration Gadget Course"
	instructor := "Integration Instructor"

	cleanup := func() {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, `
			MATCH (c:Course) WHERE c.title IN $titles
			OPTIONAL MATCH (c)-[:HAS_LESSON]->(l:Lesson)
			DETACH DELETE c, l
		`, map[string]any{"titles": []string{titleA, titleB}})
		_, _ = session.Run(ctx, "MATCH (i:Instructor {name: $name}) WHERE NOT (i)<-[:TAUGHT_BY]-(:Course) DELETE i",
			map[string]any{"name": instructor})
	}

	cleanup()
	t.Cleanup(cleanup)

	if err := knowledge.SyncCourse(ctx, driver, knowledge.Course{
		Title:      titleA,
		Link:       "https://example.com/widgets",
		Instructor: instructor,
		Lessons: []docproc.Lesson{
			{Number: 0, Title: "Getting Started"},
			{Number: 1, Title: "Assembly"},
		},
		ChunkCount: 7,
	}); err != nil {
		t.Fatalf("sync course A: %v", err)
	}

	if err := knowledge.SyncCourse(ctx, driver, knowledge.Course{
		Title:      titleB,
		Instructor: instructor,
		Lessons:    []docproc.Lesson{{Number: 0, Title: "Basics"}},
		ChunkCount: 3,
	}); err != nil {
		t.Fatalf("sync course B: %v", err)
	}

	graph := knowledge.NewGraph(driver)
	insights, err := graph.CourseInsights(ctx, []string{titleA})
	if err != nil {
		t.Fatalf("course insights: %v", err)
	}

	info, ok := insights[titleA]
	if !ok {
		t.Fatalf("missing insights for %q", titleA)
	}

	if info.LessonCount != 2 {
		t.Fatalf("expected lesson count 2, got %d", info.LessonCount)
	}
	if info.ChunkCount != 7 {
		t.Fatalf("expected chunk count 7, got %d", info.ChunkCount)
	}
	if info.Instructor != instructor {
		t.Fatalf("expected instructor %q, got %q", instructor, info.Instructor)
	}
	if len(info.RelatedCourses) != 1 || info.RelatedCourses[0] != titleB {
		t.Fatalf("expected related course %q, got %#v", titleB, info.RelatedCourses)
	}
}

func TestSyncCourseReplacesLessons(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database connectivity checks")
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := context.Background()

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		t.Fatalf("neo4j connection: %v", err)
	}
	defer driver.Close(ctx)

	title := "Integration Replaceable Course"

	cleanup := func() {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, `
			MATCH (c:Course {title: $title})
			OPTIONAL MATCH (c)-[:HAS_LESSON]->(l:Lesson)
			DETACH DELETE c, l
		`, map[string]any{"title": title})
	}

	cleanup()
	t.Cleanup(cleanup)

	sync := func(lessons []docproc.Lesson) {
		t.Helper()
		if err := knowledge.SyncCourse(ctx, driver, knowledge.Course{Title: title, Lessons: lessons}); err != nil {
			t.Fatalf("sync course: %v", err)
		}
	}

	sync([]docproc.Lesson{
		{Number: 0, Title: "First"},
		{Number: 1, Title: "Second"},
		{Number: 2, Title: "Third"},
	})
	sync([]docproc.Lesson{{Number: 0, Title: "Only"}})

	graph := knowledge.NewGraph(driver)
	insights, err := graph.CourseInsights(ctx, []string{title})
	if err != nil {
		t.Fatalf("course insights: %v", err)
	}

	info, ok := insights[title]
	if !ok {
		t.Fatalf("missing insights for %q", title)
	}
	if info.LessonCount != 1 {
		t.Fatalf("expected 1 lesson after re-sync, got %d (stale lesson nodes leaked)", info.LessonCount)
	}
}
