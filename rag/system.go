// Package rag wires the retrieval components together per query: it
// resolves the session, runs the tool-calling loop with the search
// tools bound to the vector store, persists the new exchange, and
// returns the answer with its citations.
package rag

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/fabfab/course-agent/agent"
	"github.com/fabfab/course-agent/ingestion"
	"github.com/fabfab/course-agent/knowledge"
	"github.com/fabfab/course-agent/llm"
	"github.com/fabfab/course-agent/session"
	"github.com/fabfab/course-agent/tools"
	"github.com/fabfab/course-agent/vectorstore"
)

// Store is the slice of the vector store the orchestrator needs: the
// tool-facing search surface plus catalog analytics.
type Store interface {
	tools.Store
	CourseCount(ctx context.Context) (int, error)
	CourseTitles(ctx context.Context) ([]string, error)
}

// GraphStore enriches citations with course-graph context. It is
// optional; a nil store disables enrichment.
type GraphStore interface {
	CourseInsights(ctx context.Context, titles []string) (map[string]knowledge.Insight, error)
}

// Answer is the result of one query: the model's final text, the
// session it belongs to, the citations collected during tool execution,
// and optional per-course graph insights.
type Answer struct {
	Text      string
	SessionID string
	Sources   []tools.Source
	Insights  map[string]knowledge.Insight
}

// Analytics is the catalog summary used by callers that list the
// ingested corpus.
type Analytics struct {
	TotalCourses int
	CourseTitles []string
}

type System struct {
	store     Store
	registry  *tools.Registry
	generator *agent.Generator
	sessions  *session.Manager
	ingest    *ingestion.Service
	graph     GraphStore
	logger    *log.Logger
}

// New registers the search tools against the store and assembles the
// orchestrator. graph may be nil.
func New(store Store, generator *agent.Generator, sessions *session.Manager, ingest *ingestion.Service, graph GraphStore, logger *log.Logger) (*System, error) {
	if logger == nil {
		logger = log.Default()
	}

	registry := tools.NewRegistry()

	searchTool, err := tools.NewSearchTool(store)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(searchTool); err != nil {
		return nil, err
	}

	outlineTool, err := tools.NewOutlineTool(store)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(outlineTool); err != nil {
		return nil, err
	}

	return &System{
		store:     store,
		registry:  registry,
		generator: generator,
		sessions:  sessions,
		ingest:    ingest,
		graph:     graph,
		logger:    logger,
	}, nil
}

// Query answers one question. An empty sessionID starts a fresh
// session; the returned Answer carries the id to reuse for follow-ups.
func (s *System) Query(ctx context.Context, query, sessionID string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, fmt.Errorf("query cannot be empty")
	}

	if sessionID == "" {
		sessionID = s.sessions.Create()
	}
	history := toMessages(s.sessions.History(sessionID))

	text, sources, err := s.generator.Respond(ctx, query, history, s.registry)
	if err != nil {
		return Answer{}, err
	}
	text = strings.TrimSpace(text)

	s.sessions.AddExchange(sessionID, query, text)

	answer := Answer{Text: text, SessionID: sessionID, Sources: sources}
	if s.graph != nil && len(sources) > 0 {
		insights, insightErr := s.graph.CourseInsights(ctx, sourceTitles(sources))
		if insightErr != nil {
			s.logger.Printf("course insights error: %v", insightErr)
		} else {
			answer.Insights = insights
		}
	}

	return answer, nil
}

// IngestDirectory loads the transcript corpus, accumulating
// per-document errors without aborting the batch.
func (s *System) IngestDirectory(ctx context.Context, dir string, reingest bool) (ingestion.Result, error) {
	if s.ingest == nil {
		return ingestion.Result{}, fmt.Errorf("ingestion service is not configured")
	}
	return s.ingest.IngestDirectory(ctx, dir, reingest)
}

// Analytics reports what is currently in the catalog.
func (s *System) Analytics(ctx context.Context) (Analytics, error) {
	count, err := s.store.CourseCount(ctx)
	if err != nil {
		return Analytics{}, err
	}
	titles, err := s.store.CourseTitles(ctx)
	if err != nil {
		return Analytics{}, err
	}
	return Analytics{TotalCourses: count, CourseTitles: titles}, nil
}

var _ Store = (*vectorstore.Store)(nil)

func toMessages(turns []session.Turn) []llm.Message {
	if len(turns) == 0 {
		return nil
	}
	messages := make([]llm.Message, len(turns))
	for i, turn := range turns {
		messages[i] = llm.Message{Role: turn.Role, Content: turn.Content}
	}
	return messages
}

func sourceTitles(sources []tools.Source) []string {
	seen := make(map[string]struct{}, len(sources))
	titles := make([]string, 0, len(sources))
	for _, source := range sources {
		if _, ok := seen[source.CourseTitle]; ok {
			continue
		}
		seen[source.CourseTitle] = struct{}{}
		titles = append(titles, source.CourseTitle)
	}
	return titles
}
