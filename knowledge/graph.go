// Package knowledge mirrors the course structure into Neo4j: courses,
// their lessons, and instructors. The graph is optional at query time;
// it enriches citations with structural context the vector indexes do
// not hold, such as related courses by the same instructor.
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/course-agent/docproc"
)

type Course struct {
	Title      string
	Link       string
	Instructor string
	Lessons    []docproc.Lesson
	ChunkCount int
}

type Insight struct {
	LessonCount    int
	ChunkCount     int
	Instructor     string
	RelatedCourses []string
}

// SyncCourse upserts the course node and rebuilds its lesson and
// instructor relations. Lessons are recreated wholesale so a
// re-ingested course never keeps stale lesson nodes.
func SyncCourse(ctx context.Context, driver neo4j.DriverWithContext, course Course) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"title":       course.Title,
		"link":        course.Link,
		"instructor":  course.Instructor,
		"chunk_count": course.ChunkCount,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (c:Course {title: $title})
			SET c.link = $link,
			    c.chunk_count = $chunk_count,
			    c.updated_at = datetime()
		`, params); err != nil {
			return nil, fmt.Errorf("upsert course node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (c:Course {title: $title})-[:HAS_LESSON]->(l:Lesson)
			DETACH DELETE l
		`, params); err != nil {
			return nil, fmt.Errorf("clear existing lessons: %w", err)
		}

		for _, lesson := range course.Lessons {
			if _, err := tx.Run(ctx, `
				MATCH (c:Course {title: $title})
				CREATE (l:Lesson {course: $title, number: $number, name: $name, link: $lesson_link})
				CREATE (c)-[:HAS_LESSON {order: $number}]->(l)
			`, map[string]any{
				"title":       course.Title,
				"number":      lesson.Number,
				"name":        lesson.Title,
				"lesson_link": lesson.Link,
			}); err != nil {
				return nil, fmt.Errorf("create lesson node: %w", err)
			}
		}

		if _, err := tx.Run(ctx, `
			MATCH (c:Course {title: $title})-[r:TAUGHT_BY]->(:Instructor)
			DELETE r
		`, params); err != nil {
			return nil, fmt.Errorf("remove stale instructor relation: %w", err)
		}

		if course.Instructor != "" {
			if _, err := tx.Run(ctx, `
				MATCH (c:Course {title: $title})
				MERGE (i:Instructor {name: $instructor})
				MERGE (c)-[:TAUGHT_BY]->(i)
			`, params); err != nil {
				return nil, fmt.Errorf("upsert instructor relation: %w", err)
			}
		}

		return nil, nil
	})

	if err == nil {
		if _, cleanupErr := session.Run(ctx, `
			MATCH (i:Instructor)
			WHERE NOT (i)<-[:TAUGHT_BY]-(:Course)
			DELETE i
		`, nil); cleanupErr != nil {
			err = cleanupErr
		}
	}

	return err
}

// Graph serves read queries against the course graph.
type Graph struct {
	driver neo4j.DriverWithContext
}

func NewGraph(driver neo4j.DriverWithContext) *Graph {
	return &Graph{driver: driver}
}

// CourseInsights returns structural context for the given course
// titles: lesson and chunk counts, the instructor, and other courses by
// the same instructor.
func (g *Graph) CourseInsights(ctx context.Context, titles []string) (map[string]Insight, error) {
	if g.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(titles) == 0 {
		return map[string]Insight{}, nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (c:Course)
		WHERE c.title IN $titles
		OPTIONAL MATCH (c)-[:HAS_LESSON]->(l:Lesson)
		OPTIONAL MATCH (c)-[:TAUGHT_BY]->(i:Instructor)
		OPTIONAL MATCH (i)<-[:TAUGHT_BY]-(related:Course)
		WITH c,
		     count(DISTINCT l) AS lessonCount,
		     i.name AS instructor,
		     collect(DISTINCT related.title) AS relatedTitles
		RETURN c.title AS title,
		       lessonCount,
		       coalesce(c.chunk_count, 0) AS chunkCount,
		       instructor,
		       [t IN relatedTitles WHERE t IS NOT NULL AND t <> c.title] AS related
	`, map[string]any{"titles": titles})
	if err != nil {
		return nil, fmt.Errorf("query course insights: %w", err)
	}

	insights := make(map[string]Insight)
	for result.Next(ctx) {
		record := result.Record()

		title, _ := record.Get("title")
		titleStr, ok := title.(string)
		if !ok {
			continue
		}

		insight := Insight{}
		if v, found := record.Get("lessonCount"); found {
			if n, ok := v.(int64); ok {
				insight.LessonCount = int(n)
			}
		}
		if v, found := record.Get("chunkCount"); found {
			if n, ok := v.(int64); ok {
				insight.ChunkCount = int(n)
			}
		}
		if v, found := record.Get("instructor"); found {
			if s, ok := v.(string); ok {
				insight.Instructor = s
			}
		}
		if v, found := record.Get("related"); found {
			if items, ok := v.([]any); ok {
				for _, item := range items {
					if s, ok := item.(string); ok {
						insight.RelatedCourses = append(insight.RelatedCourses, s)
					}
				}
			}
		}

		insights[titleStr] = insight
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read course insights: %w", err)
	}

	return insights, nil
}
