package main

import (
	"context"
	"encoding/json"
	"errors"
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

	"quizle/internal/generator"
	"quizle/internal/handler"
	appI18n "quizle/internal/i18n"
	"quizle/internal/reconcile"
	"quizle/internal/session"
	"quizle/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quizle",
		Short: "Turn study notes into multiple-choice quizzes",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `quizle --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "quizle.db", "SQLite database path")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for LLM (empty = fallback quiz only)")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.StringP("lang", "l", "en", "UI language")
	f.Duration("feedback-delay", 0, "Answer feedback interval (0 = default 1.5s)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [facts-file]",
		Short: "Generate a quiz from a study notes file and print it as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
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

	v.SetEnvPrefix("QUIZLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("quizle")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/quizle")
	v.AddConfigPath("/etc/quizle")
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

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	gen := generator.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
	)
	if err := gen.Ping(context.Background()); err != nil {
		if errors.Is(err, generator.ErrNotConfigured) {
			slog.Warn("no LLM API key configured, generation will serve the fallback quiz")
		} else {
			// Not fatal: generation degrades to the fallback set.
			slog.Warn("LLM health check failed", "url", v.GetString("llm-url"), "error", err)
		}
	} else {
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	rec := reconcile.New(db, db)
	registry := session.NewRegistry()

	h := handler.New(db, gen, rec, registry, handler.Config{
		SecureCookies: v.GetBool("secure-cookies"),
		FeedbackDelay: v.GetDuration("feedback-delay"),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	go cleanupLoop(db)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

// cleanupLoop prunes expired auth sessions hourly.
func cleanupLoop(db *store.Store) {
	for range time.Tick(time.Hour) {
		if err := db.CleanupExpiredSessions(); err != nil {
			slog.Error("auth session cleanup failed", "error", err)
		}
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	var (
		facts []byte
		err   error
	)
	if len(args) == 0 || args[0] == "-" {
		facts, err = io.ReadAll(os.Stdin)
	} else {
		facts, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read study notes: %w", err)
	}
	if len(strings.TrimSpace(string(facts))) == 0 {
		return fmt.Errorf("study notes are empty")
	}

	gen := generator.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
	)
	qs, err := gen.GenerateStrict(context.Background(), string(facts))
	if err != nil {
		return fmt.Errorf("generate quiz: %w", err)
	}

	data, err := json.MarshalIndent(qs, "", "  ")
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
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}
