package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/course-agent/agent"
	"github.com/fabfab/course-agent/config"
	"github.com/fabfab/course-agent/database"
	"github.com/fabfab/course-agent/docproc"
	"github.com/fabfab/course-agent/embeddings"
	"github.com/fabfab/course-agent/ingestion"
	"github.com/fabfab/course-agent/knowledge"
	"github.com/fabfab/course-agent/llm"
	"github.com/fabfab/course-agent/rag"
	"github.com/fabfab/course-agent/session"
	"github.com/fabfab/course-agent/vectorstore"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "chat":
		chatCmd(cfg, logger, os.Args[2:])
	case "courses":
		coursesCmd(cfg, logger)
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

type app struct {
	cfg    config.Config
	logger *log.Logger
	system *rag.System
	close  func(ctx context.Context)
}

func buildApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}

	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("neo4j connection: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		pool.Close()
		driver.Close(ctx)
		return nil, fmt.Errorf("embedder setup: %w", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		pool.Close()
		driver.Close(ctx)
		return nil, fmt.Errorf("llm setup: %w", err)
	}

	store := vectorstore.New(pool, embedder, cfg.MaxResults, cfg.ScoreThreshold)
	processor := docproc.NewProcessor(cfg.ChunkSize, cfg.ChunkOverlap)
	ingestSvc := ingestion.NewService(pool, store, driver, embedder, processor, logger, cfg.Embeddings.Dimension)
	generator := agent.NewGenerator(llmClient, cfg.MaxToolRounds, logger)
	sessions := session.NewManager(cfg.MaxHistory)
	graph := knowledge.NewGraph(driver)

	system, err := rag.New(store, generator, sessions, ingestSvc, graph, logger)
	if err != nil {
		pool.Close()
		driver.Close(ctx)
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		system: system,
		close: func(ctx context.Context) {
			pool.Close()
			if err := driver.Close(ctx); err != nil {
				logger.Printf("close neo4j driver: %v", err)
			}
		},
	}, nil
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	dataDir := flags.String("dir", cfg.DataDir, "path to directory containing course transcripts (.txt/.pdf)")
	reingest := flags.Bool("reingest", false, "replace courses that are already in the catalog")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer application.close(ctx)

	logger.Printf("ingesting transcripts from %s using %s/%s embeddings", *dataDir, strings.ToUpper(cfg.Embeddings.Provider), cfg.Embeddings.Model)

	result, err := application.system.IngestDirectory(ctx, *dataDir, *reingest)
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}

	logger.Printf("added %d courses (%d chunks), skipped %d", result.CoursesAdded, result.ChunksAdded, result.CoursesSkipped)
	for _, docErr := range result.Errors {
		logger.Printf("document error: %v", docErr)
	}
}

func askCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	question := flags.String("question", "", "question to ask about the course materials")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ask flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatalf("read question: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer application.close(ctx)

	answer, err := application.system.Query(ctx, *question, "")
	if err != nil {
		logger.Fatalf("query failed: %v", err)
	}

	printAnswer(answer)
}

func chatCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("chat", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse chat flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer application.close(ctx)

	fmt.Println("Ask about the course materials (empty line to exit).")

	sessionID := ""
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		answer, err := application.system.Query(ctx, question, sessionID)
		if err != nil {
			logger.Printf("query failed: %v", err)
			continue
		}
		sessionID = answer.SessionID

		printAnswer(answer)
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		logger.Fatalf("read input: %v", err)
	}
}

func coursesCmd(cfg config.Config, logger *log.Logger) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer application.close(ctx)

	analytics, err := application.system.Analytics(ctx)
	if err != nil {
		logger.Fatalf("catalog analytics: %v", err)
	}

	fmt.Printf("%d courses ingested\n", analytics.TotalCourses)
	for _, title := range analytics.CourseTitles {
		fmt.Println("  " + title)
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete the ingested course data from Postgres and Neo4j. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, "TRUNCATE course_chunks, course_catalog"); err != nil {
		logger.Fatalf("truncate course tables: %v", err)
	}
	logger.Println("cleared course_catalog and course_chunks")

	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatalf("neo4j connection: %v", err)
	}
	defer driver.Close(ctx)

	neoSession := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer neoSession.Close(ctx)

	if err := purgeCourseGraph(ctx, neoSession); err != nil {
		logger.Fatalf("clear neo4j: %v", err)
	}

	logger.Println("course graph cleared")
}

func purgeCourseGraph(ctx context.Context, session neo4j.SessionWithContext) error {
	queries := []string{
		"MATCH (c:Course) DETACH DELETE c",
		"MATCH (l:Lesson) DETACH DELETE l",
		"MATCH (i:Instructor) DETACH DELETE i",
	}

	for _, query := range queries {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return err
		}
		if _, err := result.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}

func printAnswer(answer rag.Answer) {
	fmt.Println(answer.Text)
	if len(answer.Sources) == 0 {
		return
	}

	fmt.Println()
	fmt.Println("Sources:")
	for idx, source := range answer.Sources {
		fmt.Printf("%d. %s", idx+1, source.Label)
		if source.Link != "" {
			fmt.Printf(" (%s)", source.Link)
		}
		fmt.Println()

		if insight, ok := answer.Insights[source.CourseTitle]; ok {
			if insight.LessonCount > 0 {
				fmt.Printf("   Lessons: %d (indexed chunks: %d)\n", insight.LessonCount, insight.ChunkCount)
			}
			if len(insight.RelatedCourses) > 0 {
				fmt.Printf("   More by %s: %s\n", insight.Instructor, strings.Join(insight.RelatedCourses, ", "))
			}
		}
	}
}

func printUsage() {
	fmt.Println("Usage: course-agent <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Ingest course transcripts into the retrieval indexes (use --dir to override the data directory)")
	fmt.Println("  ask      Ask a single question about the ingested courses")
	fmt.Println("  chat     Interactive multi-turn session over the ingested courses")
	fmt.Println("  courses  List the ingested course catalog")
	fmt.Println("  clear    Remove ingested course data from Postgres and Neo4j")
}
