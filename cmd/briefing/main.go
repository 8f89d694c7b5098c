package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	goredis "github.com/redis/go-redis/v9"

	"github.com/deepnoodle-ai/briefing"
	"github.com/deepnoodle-ai/briefing/eventlog"
	"github.com/deepnoodle-ai/briefing/llm"
	"github.com/deepnoodle-ai/briefing/research"
	"github.com/deepnoodle-ai/briefing/server"
	"github.com/deepnoodle-ai/briefing/stages"
	pgstore "github.com/deepnoodle-ai/briefing/store/postgres"
	redisstore "github.com/deepnoodle-ai/briefing/store/redis"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "run":
		runInteractive(os.Args[2:])
	default:
		color.Red("unknown command %q", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  briefing serve [-config config.yaml]     run the HTTP server")
	fmt.Fprintln(os.Stderr, "  briefing run -topic \"...\" [flags]        run one session in the terminal")
}

func runServe(args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := flags.String("config", "", "Path to the YAML config file")
	flags.Parse(args)

	config, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	logger := briefing.NewJSONLogger()

	checkpointer, err := buildCheckpointer(config)
	if err != nil {
		log.Fatalf("Failed to set up checkpoint store: %v", err)
	}
	var stageLog eventlog.Logger = eventlog.NewMemoryLogger()
	if config.LogDir != "" {
		stageLog = eventlog.NewFileLogger(config.LogDir)
	}

	registry, err := buildRegistry(config, checkpointer, stageLog, briefing.NewAsyncReviewer(), logger)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	srv, err := server.New(server.Options{
		Registry: registry,
		StageLog: stageLog,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	httpServer := &http.Server{
		Addr:              config.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	color.Green("Listening on http://%s", config.Addr())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

func runInteractive(args []string) {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	topic := flags.String("topic", "", "Briefing topic (required)")
	model := flags.String("model", "", "Model name override")
	seed := flags.Int64("seed", stages.DefaultSeed, "Deterministic sampling seed")
	configPath := flags.String("config", "", "Path to the YAML config file")
	verbose := flags.Bool("verbose", false, "Enable verbose logging")
	flags.Parse(args)

	if *topic == "" {
		color.Red("Error: -topic is required")
		flags.Usage()
		os.Exit(1)
	}
	config, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *model != "" {
		config.Model = *model
	}
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := briefing.NewLogger(level)

	checkpointer := briefing.NewMemoryCheckpointer()
	broadcaster := briefing.NewBroadcaster()
	executor, err := buildExecutor(config, checkpointer, broadcaster,
		eventlog.NewNullLogger(), briefing.NewConsoleReviewer(os.Stdin, os.Stdout), logger, *seed)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	sessionID := briefing.NewSessionID()
	err = checkpointer.SaveCheckpoint(context.Background(), &briefing.Checkpoint{
		SessionID: sessionID,
		State:     briefing.State{Topic: *topic, Seed: *seed},
	})
	if err != nil {
		log.Fatalf("Failed to seed session: %v", err)
	}

	sub := broadcaster.Subscribe(sessionID, briefing.Event{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range sub.Events() {
			switch event.Type {
			case briefing.EventNodeStarted:
				color.Blue("▸ %s", event.Node)
			case briefing.EventError:
				color.Red("✗ %s", event.Message)
			}
		}
	}()

	color.Green("Starting session %s", sessionID)
	startTime := time.Now()
	result, err := executor.Run(context.Background(), sessionID)
	broadcaster.CloseSession(sessionID)
	<-done
	if err != nil {
		log.Fatalf("Session failed: %v", err)
	}

	checkpoint, err := checkpointer.LoadCheckpoint(context.Background(), sessionID)
	if err != nil || checkpoint == nil {
		log.Fatalf("Failed to load final state: %v", err)
	}
	color.Green("\nCompleted in %v (%d steps)", time.Since(startTime).Round(time.Second), result.Steps)
	fmt.Println()
	fmt.Println(checkpoint.State.FormattedBrief)
}

func buildCheckpointer(config *server.Config) (briefing.Checkpointer, error) {
	switch config.Store.Backend {
	case "memory":
		return briefing.NewMemoryCheckpointer(), nil
	case "file":
		return briefing.NewFileCheckpointer(config.Store.Path)
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     config.Store.RedisAddr,
			Password: config.Store.RedisPassword,
			DB:       config.Store.RedisDB,
		})
		return redisstore.New(redisstore.Options{Client: client})
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := pgstore.Open(ctx, config.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		store, err := pgstore.New(db)
		if err != nil {
			return nil, err
		}
		if err := store.InitSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", config.Store.Backend)
}

func buildExecutor(config *server.Config, checkpointer briefing.Checkpointer,
	broadcaster *briefing.Broadcaster, stageLog eventlog.Logger,
	reviewer briefing.Reviewer, logger *slog.Logger, seed int64) (*briefing.Executor, error) {

	llmClient, err := llm.NewOpenAIClient(llm.Options{
		APIKey:      config.OpenAIAPIKey,
		BaseURL:     config.OpenAIBaseURL,
		Model:       config.Model,
		Temperature: config.Temperature,
		Seed:        seed,
	})
	if err != nil {
		return nil, err
	}
	searcher, err := research.NewTavilyClient(research.TavilyOptions{
		APIKey: config.TavilyAPIKey,
	})
	if err != nil {
		return nil, err
	}
	graph, err := stages.NewGraph(stages.Dependencies{
		LLM:      llmClient,
		Searcher: searcher,
		Reviewer: reviewer,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return briefing.NewExecutor(briefing.ExecutorOptions{
		Graph:        graph,
		Checkpointer: checkpointer,
		Broadcaster:  broadcaster,
		StageLogger:  stageLog,
		Logger:       logger,
	})
}

func buildRegistry(config *server.Config, checkpointer briefing.Checkpointer,
	stageLog eventlog.Logger, reviewer briefing.Reviewer, logger *slog.Logger) (*briefing.Registry, error) {

	broadcaster := briefing.NewBroadcaster()
	executor, err := buildExecutor(config, checkpointer, broadcaster, stageLog,
		reviewer, logger, stages.DefaultSeed)
	if err != nil {
		return nil, err
	}
	return briefing.NewRegistry(briefing.RegistryOptions{
		Executor:     executor,
		Checkpointer: checkpointer,
		Broadcaster:  broadcaster,
		Logger:       logger,
	})
}
