// Package ingestion loads course transcripts into the retrieval
// indexes: it parses each document, embeds the chunks and the catalog
// description, upserts the vector store, and syncs the course graph.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/course-agent/database"
	"github.com/fabfab/course-agent/docproc"
	"github.com/fabfab/course-agent/embeddings"
	"github.com/fabfab/course-agent/knowledge"
	"github.com/fabfab/course-agent/vectorstore"
)

// Result summarizes a corpus ingestion. Per-document failures land in
// Errors; they never abort the batch.
type Result struct {
	CoursesAdded   int
	CoursesSkipped int
	ChunksAdded    int
	Errors         []error
}

type Service struct {
	pool      *pgxpool.Pool
	store     *vectorstore.Store
	driver    neo4j.DriverWithContext
	embedder  embeddings.Embedder
	processor *docproc.Processor
	logger    *log.Logger
	dimension int
}

func NewService(pool *pgxpool.Pool, store *vectorstore.Store, driver neo4j.DriverWithContext, embedder embeddings.Embedder, processor *docproc.Processor, logger *log.Logger, dimension int) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		pool:      pool,
		store:     store,
		driver:    driver,
		embedder:  embedder,
		processor: processor,
		logger:    logger,
		dimension: dimension,
	}
}

// IngestDirectory walks dir for .txt and .pdf transcripts and ingests
// each one. Courses whose title is already in the catalog are skipped
// unless reingest is set, in which case they are atomically replaced.
func (s *Service) IngestDirectory(ctx context.Context, dir string, reingest bool) (Result, error) {
	result := Result{}

	if s.embedder == nil {
		return result, fmt.Errorf("embedder not configured")
	}
	if err := database.EnsureCourseSchema(ctx, s.pool, s.dimension); err != nil {
		return result, fmt.Errorf("ensure schema: %w", err)
	}
	if _, err := os.Stat(dir); err != nil {
		return result, fmt.Errorf("data directory: %w", err)
	}

	existing, err := s.store.ExistingTitles(ctx)
	if err != nil {
		return result, fmt.Errorf("load existing titles: %w", err)
	}

	entries := make([]string, 0)
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".txt", ".pdf":
			entries = append(entries, path)
		}
		return nil
	}); err != nil {
		return result, fmt.Errorf("walk data directory: %w", err)
	}

	if len(entries) == 0 {
		s.logger.Printf("no transcript files found in %s", dir)
		return result, nil
	}

	for _, path := range entries {
		added, skipped, chunks, ingestErr := s.ingestFile(ctx, path, existing, reingest)
		if ingestErr != nil {
			var formatErr *docproc.FormatError
			if errors.As(ingestErr, &formatErr) {
				s.logger.Printf("skipping malformed document %s: %v", path, ingestErr)
				result.Errors = append(result.Errors, ingestErr)
				continue
			}
			// Infrastructure failures (database, embedder) abort the batch.
			return result, fmt.Errorf("ingest %s: %w", path, ingestErr)
		}
		if added {
			result.CoursesAdded++
			result.ChunksAdded += chunks
		}
		if skipped {
			result.CoursesSkipped++
		}
	}

	return result, nil
}

func (s *Service) ingestFile(ctx context.Context, path string, existing map[string]struct{}, reingest bool) (added, skipped bool, chunks int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, false, 0, fmt.Errorf("read file: %w", err)
	}

	content := string(data)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		content, err = docproc.ExtractPDFText(data)
		if err != nil {
			return false, false, 0, &docproc.FormatError{Document: filepath.Base(path), Reason: err.Error()}
		}
	}

	course, courseChunks, err := s.IngestDocument(ctx, filepath.Base(path), content, existing, reingest)
	if err != nil {
		return false, false, 0, err
	}
	if course == nil {
		return false, true, 0, nil
	}

	s.logger.Printf("ingested %q (%d chunks)", course.Title, courseChunks)
	return true, false, courseChunks, nil
}

// IngestDocument parses and stores a single transcript. It returns a
// nil course when the title already exists and reingest is false.
// Either the whole course lands in the store or none of it does.
func (s *Service) IngestDocument(ctx context.Context, name, content string, existing map[string]struct{}, reingest bool) (*docproc.Course, int, error) {
	course, chunks, err := s.processor.Process(name, content)
	if err != nil {
		return nil, 0, err
	}

	if _, ok := existing[course.Title]; ok && !reingest {
		s.logger.Printf("course %q already ingested, skipping", course.Title)
		return nil, 0, nil
	}

	texts := make([]string, 0, len(chunks)+1)
	texts = append(texts, course.CatalogText())
	for _, chunk := range chunks {
		texts = append(texts, chunk.Content)
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, 0, fmt.Errorf("embedding count mismatch: have %d texts, %d embeddings", len(texts), len(vectors))
	}

	if err := s.store.UpsertCourse(ctx, course, chunks, vectors[1:], vectors[0]); err != nil {
		return nil, 0, err
	}
	existing[course.Title] = struct{}{}

	if s.driver != nil {
		if err := knowledge.SyncCourse(ctx, s.driver, knowledge.Course{
			Title:      course.Title,
			Link:       course.Link,
			Instructor: course.Instructor,
			Lessons:    course.Lessons,
			ChunkCount: len(chunks),
		}); err != nil {
			return nil, 0, fmt.Errorf("sync course graph: %w", err)
		}
	}

	return course, len(chunks), nil
}
