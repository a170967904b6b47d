package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/course-agent/docproc"
	"github.com/fabfab/course-agent/embeddings"
)

const defaultMaxResults = 5

// Store is the Postgres-backed implementation of both indexes. Reads
// are safe for concurrent use; UpsertCourse replaces a course's catalog
// row and chunks in one transaction, so a concurrent reader sees either
// the old chunk set or the new one, never a mix.
type Store struct {
	pool           *pgxpool.Pool
	embedder       embeddings.Embedder
	maxResults     int
	scoreThreshold float64
}

func New(pool *pgxpool.Pool, embedder embeddings.Embedder, maxResults int, scoreThreshold float64) *Store {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Store{
		pool:           pool,
		embedder:       embedder,
		maxResults:     maxResults,
		scoreThreshold: scoreThreshold,
	}
}

// SearchContent embeds the query and returns the nearest chunks,
// optionally restricted by course name (resolved fuzzily against the
// catalog) and lesson number. An empty result is a valid outcome, not
// an error; scores below the configured threshold are dropped.
func (s *Store) SearchContent(ctx context.Context, query string, opts SearchOptions) ([]ContentHit, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}

	courseTitle := ""
	if opts.CourseName != "" {
		resolved, err := s.ResolveCourseName(ctx, opts.CourseName)
		if err != nil {
			return nil, err
		}
		if resolved == "" {
			return nil, &CourseNotFoundError{Name: opts.CourseName}
		}
		courseTitle = resolved
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.maxResults
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := limit * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT
            content,
            course_title,
            lesson_number,
            chunk_index,
            (embedding <-> $1::vector) AS distance
        FROM course_chunks
        WHERE ($2 = '' OR course_title = $2)
          AND ($3::int IS NULL OR lesson_number = $3)
        ORDER BY embedding <-> $1::vector, chunk_index
        LIMIT $4
    `, pgvector.NewVector(vecs[0]), courseTitle, opts.LessonNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("query course chunks: %w", err)
	}
	defer rows.Close()

	hits := make([]ContentHit, 0, limit)
	for rows.Next() {
		var hit ContentHit
		var distance float64
		if scanErr := rows.Scan(&hit.Content, &hit.CourseTitle, &hit.LessonNumber, &hit.ChunkIndex, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan course chunk: %w", scanErr)
		}
		hit.Score = 1 / (1 + distance)
		if s.scoreThreshold > 0 && hit.Score < s.scoreThreshold {
			continue
		}
		hits = append(hits, hit)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return hits, nil
}

// ResolveCourseName maps a partial or approximate course name to the
// exact title of the single nearest catalog entry. There is no
// confidence floor: a near-miss query binds to its best match, and
// only an empty catalog yields "" (not found).
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	if s.embedder == nil {
		return "", fmt.Errorf("embedder is not configured")
	}

	vecs, err := s.embedder.Embed(ctx, []string{name})
	if err != nil {
		return "", fmt.Errorf("embed course name: %w", err)
	}
	if len(vecs) == 0 {
		return "", fmt.Errorf("embedder returned no vectors")
	}

	var title string
	err = s.pool.QueryRow(ctx, `
        SELECT title
        FROM course_catalog
        ORDER BY embedding <-> $1::vector
        LIMIT 1
    `, pgvector.NewVector(vecs[0])).Scan(&title)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve course name: %w", err)
	}

	return title, nil
}

// CourseOutlineByName resolves a fuzzy course name and returns the
// catalog entry behind it, or CourseNotFoundError.
func (s *Store) CourseOutlineByName(ctx context.Context, name string) (*CourseOutline, error) {
	title, err := s.ResolveCourseName(ctx, name)
	if err != nil {
		return nil, err
	}
	if title == "" {
		return nil, &CourseNotFoundError{Name: name}
	}
	return s.outlineByTitle(ctx, title)
}

// LessonLink returns the stored link for a lesson of an exact course
// title, or "" when the course or lesson has none.
func (s *Store) LessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, error) {
	outline, err := s.outlineByTitle(ctx, courseTitle)
	if err != nil {
		var notFound *CourseNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", err
	}
	for _, lesson := range outline.Lessons {
		if lesson.Number == lessonNumber {
			return lesson.Link, nil
		}
	}
	return "", nil
}

func (s *Store) outlineByTitle(ctx context.Context, title string) (*CourseOutline, error) {
	outline := &CourseOutline{}
	var lessonsJSON []byte
	err := s.pool.QueryRow(ctx, `
        SELECT title, COALESCE(course_link, ''), COALESCE(instructor, ''), lessons
        FROM course_catalog
        WHERE title = $1
    `, title).Scan(&outline.Title, &outline.Link, &outline.Instructor, &lessonsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &CourseNotFoundError{Name: title}
	}
	if err != nil {
		return nil, fmt.Errorf("query course catalog: %w", err)
	}

	if len(lessonsJSON) > 0 {
		if err := json.Unmarshal(lessonsJSON, &outline.Lessons); err != nil {
			return nil, fmt.Errorf("decode catalog lessons: %w", err)
		}
	}

	return outline, nil
}

// UpsertCourse replaces the course's catalog entry and all of its
// chunks under a single transaction keyed by course title. Stale chunks
// from an earlier ingestion of the same title never coexist with the
// new set.
func (s *Store) UpsertCourse(ctx context.Context, course *docproc.Course, chunks []docproc.Chunk, chunkVecs [][]float32, catalogVec []float32) (err error) {
	if course == nil || course.Title == "" {
		return fmt.Errorf("course title is required")
	}
	if len(chunks) != len(chunkVecs) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(chunkVecs))
	}

	lessonsJSON, err := json.Marshal(course.Lessons)
	if err != nil {
		return fmt.Errorf("encode catalog lessons: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Cascade removes any previous chunks for this title.
	if _, err = tx.Exec(ctx, "DELETE FROM course_catalog WHERE title = $1", course.Title); err != nil {
		return fmt.Errorf("clear existing course: %w", err)
	}

	if _, err = tx.Exec(ctx, `
        INSERT INTO course_catalog (title, course_link, instructor, lessons, embedding, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
    `, course.Title, course.Link, course.Instructor, lessonsJSON, pgvector.NewVector(catalogVec)); err != nil {
		return fmt.Errorf("insert catalog entry: %w", err)
	}

	for i, chunk := range chunks {
		if _, err = tx.Exec(ctx, `
            INSERT INTO course_chunks (id, course_title, lesson_number, chunk_index, content, embedding, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, NOW())
        `, uuid.New(), chunk.CourseTitle, chunk.LessonNumber, chunk.ChunkIndex, chunk.Content, pgvector.NewVector(chunkVecs[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ExistingTitles lists the titles currently in the catalog, used to
// skip already-ingested documents during a corpus refresh.
func (s *Store) ExistingTitles(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, "SELECT title FROM course_catalog")
	if err != nil {
		return nil, fmt.Errorf("query catalog titles: %w", err)
	}
	defer rows.Close()

	titles := make(map[string]struct{})
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan catalog title: %w", err)
		}
		titles[title] = struct{}{}
	}
	return titles, rows.Err()
}

func (s *Store) CourseCount(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM course_catalog").Scan(&count); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return count, nil
}

func (s *Store) CourseTitles(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT title FROM course_catalog ORDER BY title")
	if err != nil {
		return nil, fmt.Errorf("query catalog titles: %w", err)
	}
	defer rows.Close()

	titles := make([]string, 0)
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan catalog title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// Clear removes all ingested data from both indexes.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE course_chunks, course_catalog"); err != nil {
		return fmt.Errorf("truncate course tables: %w", err)
	}
	return nil
}
