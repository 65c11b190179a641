package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edaccel/readtutor/internal/handler"
	appI18n "github.com/edaccel/readtutor/internal/i18n"
	"github.com/edaccel/readtutor/internal/llm"
	"github.com/edaccel/readtutor/internal/passage"
	"github.com/edaccel/readtutor/internal/questionbank"
	"github.com/edaccel/readtutor/internal/session"
	"github.com/edaccel/readtutor/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "readtutor",
		Short: "Adaptive reading tutor powered by LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `readtutor --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP tutoring server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "gpt-4o-mini", "LLM model name")
	f.StringP("passage", "p", "", "Path to a passage JSON file (empty = built-in passage)")
	f.String("question-cache", "questions_cache.json", "Path to the question bank cache file")
	f.Int("teacher-questions", 5, "Practice questions before the quiz")
	f.Int("quiz-questions", 5, "Number of quiz questions")
	f.Int("quiz-time-limit", 300, "Quiz time limit in seconds")
	f.String("archive-driver", "none", "Session archive driver (none, sqlite, redis)")
	f.String("archive-db", "readtutor.db", "SQLite archive database path")
	f.String("redis-url", "redis://localhost:6379/0", "Redis URL for the redis archive driver")
	f.Duration("redis-ttl", 0, "Expiry for redis-archived sessions (0 = keep forever)")
	f.StringP("lang", "l", "en", "Response language (en, es)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export archived sessions as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("archive-db", "readtutor.db", "SQLite archive database path")
	f.Int("limit", 0, "Maximum sessions to export (0 = all)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("READTUTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("readtutor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/readtutor")
	v.AddConfigPath("/etc/readtutor")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Load the passage.
	p, err := passage.LoadFile(v.GetString("passage"))
	if err != nil {
		return fmt.Errorf("load passage: %w", err)
	}
	slog.Info("passage loaded", "title", p.Title)

	// Create LLM client.
	llmClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
	)
	if err := llmClient.Ping(context.Background()); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))

	// Load or generate the question bank.
	bank := questionbank.Init(context.Background(), llmClient, p, v.GetString("question-cache"))

	// Open the session archive.
	var sink store.Sink = store.NoopSink{}
	var archive *store.Archive
	switch strings.ToLower(v.GetString("archive-driver")) {
	case "sqlite":
		archive, err = store.Open(v.GetString("archive-db"))
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer archive.Close()
		sink = archive
	case "redis":
		redisSink, err := store.NewRedisSink(v.GetString("redis-url"), v.GetDuration("redis-ttl"))
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisSink.Close()
		sink = redisSink
	case "", "none":
		slog.Info("session archive disabled")
	default:
		return fmt.Errorf("unknown archive driver %q", v.GetString("archive-driver"))
	}

	registry := session.NewRegistry(session.Deps{
		Gateway: llmClient,
		Bank:    bank,
		Passage: p,
		Sink:    sink,
		Config: session.Config{
			TeacherQuestionGoal:  v.GetInt("teacher-questions"),
			QuizQuestionCount:    v.GetInt("quiz-questions"),
			QuizTimeLimitSeconds: v.GetInt("quiz-time-limit"),
		},
	})

	h := handler.New(registry, p, archive)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
		"teacher_questions", v.GetInt("teacher-questions"),
		"quiz_questions", v.GetInt("quiz-questions"),
		"quiz_time_limit", v.GetInt("quiz-time-limit"),
		"archive_driver", v.GetString("archive-driver"),
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	archive, err := store.Open(v.GetString("archive-db"))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	limit := v.GetInt("limit")
	if limit <= 0 {
		count, err := archive.Count()
		if err != nil {
			return fmt.Errorf("count archived sessions: %w", err)
		}
		limit = count
	}

	summaries, err := archive.List(limit)
	if err != nil {
		return fmt.Errorf("list archived sessions: %w", err)
	}

	sessions := make([]map[string]any, 0, len(summaries))
	for _, s := range summaries {
		snapshot, err := archive.Get(s.SessionID)
		if err != nil {
			return fmt.Errorf("read session %s: %w", s.SessionID, err)
		}
		sessions = append(sessions, snapshot)
	}

	export := map[string]any{
		"exported_at": time.Now().Format(time.RFC3339),
		"count":       len(sessions),
		"sessions":    sessions,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
