// Package vectorstore maintains the two retrieval indexes on
// Postgres/pgvector: a course catalog used to resolve fuzzy course
// names and serve outlines, and a content index of overlapping chunks
// used for semantic passage search.
package vectorstore

import (
	"fmt"

	"github.com/fabfab/course-agent/docproc"
)

// ContentHit is one scored chunk from the content index, relevance
// ordered with ties broken by chunk index so citations stay stable.
type ContentHit struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
	Score        float64
}

// SearchOptions narrows a content search. CourseName is resolved to an
// exact catalog title before filtering; LessonNumber filters on the
// chunk metadata. Limit falls back to the store's configured maximum.
type SearchOptions struct {
	CourseName   string
	LessonNumber *int
	Limit        int
}

// CourseOutline is the catalog view of one course.
type CourseOutline struct {
	Title      string
	Link       string
	Instructor string
	Lessons    []docproc.Lesson
}

// CourseNotFoundError reports a course-name filter that resolved to
// nothing. It is surfaced to the model as an observation, not raised to
// the end user.
type CourseNotFoundError struct {
	Name string
}

func (e *CourseNotFoundError) Error() string {
	return fmt.Sprintf("no course found matching %q", e.Name)
}
