// Package docproc parses course transcript documents into a course
// header, ordered lessons, and overlapping content chunks annotated
// with course and lesson context.
package docproc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Course struct {
	Title      string
	Link       string
	Instructor string
	Lessons    []Lesson
}

type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Chunk is the unit of retrieval. Content carries a synthesized
// course/lesson prefix so embeddings of short passages still reflect
// their topical context. LessonNumber is nil for course-level text that
// appears before the first lesson marker. ChunkIndex is unique and
// contiguous across all chunks of one course.
type Chunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
}

// FormatError reports a malformed document. It is scoped to a single
// document: batch ingestion skips the document and continues.
type FormatError struct {
	Document string
	Reason   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("document %q: %s", e.Document, e.Reason)
}

var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

const (
	labelCourseTitle      = "Course Title:"
	labelCourseLink       = "Course Link:"
	labelCourseInstructor = "Course Instructor:"
	labelLessonLink       = "Lesson Link:"
)

type Processor struct {
	chunker Chunker
}

func NewProcessor(chunkSize, chunkOverlap int) *Processor {
	return &Processor{chunker: NewChunker(chunkSize, chunkOverlap)}
}

// Process parses one transcript into its course and chunk sequence.
// The same content and chunker configuration always produce identical
// chunk boundaries and indexes, which keeps citations reproducible and
// re-ingestion idempotent.
func (p *Processor) Process(name, content string) (*Course, []Chunk, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	course, rest, err := parseHeader(name, lines)
	if err != nil {
		return nil, nil, err
	}

	intro, bodies := segmentLessons(rest, course)

	chunks := make([]Chunk, 0)
	index := 0

	for _, raw := range p.chunker.Split(intro) {
		chunks = append(chunks, Chunk{
			Content:     fmt.Sprintf("Course %s content: %s", course.Title, raw),
			CourseTitle: course.Title,
			ChunkIndex:  index,
		})
		index++
	}

	seen := make(map[int]struct{}, len(bodies))
	for i := range bodies {
		lesson := course.Lessons[i]
		if _, dup := seen[lesson.Number]; dup {
			return nil, nil, &FormatError{Document: name, Reason: fmt.Sprintf("duplicate lesson number %d", lesson.Number)}
		}
		seen[lesson.Number] = struct{}{}

		number := lesson.Number
		for _, raw := range p.chunker.Split(bodies[i]) {
			chunks = append(chunks, Chunk{
				Content:      fmt.Sprintf("Course %s Lesson %d content: %s", course.Title, number, raw),
				CourseTitle:  course.Title,
				LessonNumber: &number,
				ChunkIndex:   index,
			})
			index++
		}
	}

	return course, chunks, nil
}

// parseHeader expects the first three non-empty lines to carry the
// course title, link, and instructor labels in that order. The link and
// instructor values may be empty; the labels may not be missing or out
// of order.
func parseHeader(name string, lines []string) (*Course, []string, error) {
	header := make([]string, 0, 3)
	next := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		header = append(header, strings.TrimSpace(line))
		if len(header) == 3 {
			next = i + 1
			break
		}
	}

	if len(header) < 3 {
		return nil, nil, &FormatError{Document: name, Reason: "missing course header lines"}
	}

	title, ok := cutLabel(header[0], labelCourseTitle)
	if !ok || title == "" {
		return nil, nil, &FormatError{Document: name, Reason: "first line must be a non-empty 'Course Title:'"}
	}
	link, ok := cutLabel(header[1], labelCourseLink)
	if !ok {
		return nil, nil, &FormatError{Document: name, Reason: "second line must be 'Course Link:'"}
	}
	instructor, ok := cutLabel(header[2], labelCourseInstructor)
	if !ok {
		return nil, nil, &FormatError{Document: name, Reason: "third line must be 'Course Instructor:'"}
	}

	course := &Course{Title: title, Link: link, Instructor: instructor}
	return course, lines[next:], nil
}

// segmentLessons scans for lesson markers, attaching an optional
// immediately-following lesson link line to each lesson. It returns the
// course-level text preceding the first marker and one body per lesson,
// appending the parsed lessons to course.Lessons in document order.
func segmentLessons(lines []string, course *Course) (intro string, bodies []string) {
	var introLines []string
	var current []string
	inLesson := false

	flush := func() {
		if inLesson {
			bodies = append(bodies, strings.Join(current, "\n"))
		} else {
			introLines = current
		}
		current = nil
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		m := lessonMarker.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			current = append(current, line)
			continue
		}

		flush()
		inLesson = true

		number, err := strconv.Atoi(m[1])
		if err != nil {
			// Unreachable with the marker pattern, but keep the line as body.
			current = append(current, line)
			continue
		}
		lesson := Lesson{Number: number, Title: strings.TrimSpace(m[2])}

		if i+1 < len(lines) {
			if link, ok := cutLabel(strings.TrimSpace(lines[i+1]), labelLessonLink); ok {
				lesson.Link = link
				i++
			}
		}
		course.Lessons = append(course.Lessons, lesson)
	}
	flush()

	return strings.Join(introLines, "\n"), bodies
}

func cutLabel(line, label string) (string, bool) {
	if !strings.HasPrefix(line, label) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, label)), true
}

// CatalogText synthesizes the course description embedded into the
// catalog index, combining the signals used to resolve fuzzy course
// names: title, instructor, and lesson titles.
func (c *Course) CatalogText() string {
	var sb strings.Builder
	sb.WriteString(c.Title)
	if c.Instructor != "" {
		sb.WriteString(" taught by ")
		sb.WriteString(c.Instructor)
	}
	for _, lesson := range c.Lessons {
		sb.WriteString(fmt.Sprintf("\nLesson %d: %s", lesson.Number, lesson.Title))
	}
	return sb.String()
}
