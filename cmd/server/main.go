package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"polybot/internal/api"
	"polybot/internal/chat"
	"polybot/internal/config"
	"polybot/internal/curriculum"
	"polybot/internal/database"
	"polybot/internal/llm"
	"polybot/internal/logging"
	"polybot/internal/prompt"
	"polybot/internal/speech"
	"polybot/internal/workers"
)

const shutdownTimeout = 15 * time.Second

var (
	addrFlag     string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "polybot-server",
	Short: "Polybot A1 Italian tutoring backend",
	Long: `Serves the scripted boss dialogues, the free-form tutor and the practice
role-plays over HTTP. Configuration comes from the environment and an
optional .env file.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (overrides POLYBOT_ADDR)")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "log level (overrides POLYBOT_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.Addr = addrFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("DB connected", zap.String("dialect", string(db.Dialect)))
	}

	var store curriculum.Store
	switch cfg.CurriculumSource {
	case config.SourceDatabase:
		store = curriculum.NewSQLStore(db)
	default:
		store, err = curriculum.Embedded()
		if err != nil {
			return err
		}
	}

	tmpl, err := prompt.TemplateByName(cfg.LLM.Local.Template)
	if err != nil {
		return err
	}
	pool := workers.New(cfg.Workers)

	opts := chat.Options{
		Store:    store,
		Composer: prompt.NewComposer(tmpl, logger),
		Pool:     pool,
		Logger:   logger,
	}
	if db != nil {
		opts.Progress = db
	}
	svc := chat.NewService(opts)

	go func() {
		if err := svc.Warm(ctx, adapterLoader(cfg, tmpl, pool, logger)); err != nil {
			logger.Error("model warm-up failed; LLM flows keep answering with the warm-up text", zap.Error(err))
		}
	}()

	handler := api.NewApiHandler(svc, api.Config{JWTSecret: []byte(cfg.JWTSecret)}, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", cfg.Addr), zap.String("llm_provider", cfg.LLM.Provider))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server start error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	if err := pool.Close(shutdownCtx); err != nil {
		logger.Warn("worker pool shutdown", zap.Error(err))
	}
	return svc.Close()
}

// adapterLoader builds the model clients. Only the local provider is
// health-checked: it is the one that may still be loading weights.
func adapterLoader(cfg config.Config, tmpl *prompt.Template, pool *workers.Pool, logger *zap.Logger) func(ctx context.Context) (*chat.Adapters, error) {
	return func(ctx context.Context) (*chat.Adapters, error) {
		p, err := llm.New(ctx, cfg.LLM, tmpl, pool)
		if err != nil {
			return nil, fmt.Errorf("llm: %w", err)
		}
		p = llm.WithLogging(p, logger)

		if cfg.LLM.Provider == "local" {
			_, err := p.Generate(llm.WithPurpose(ctx, "health"), llm.Request{
				Messages:  []llm.Message{{Role: llm.RoleUser, Content: "Ciao"}},
				MaxTokens: 1,
			})
			if err != nil {
				return nil, fmt.Errorf("local model health check: %w", err)
			}
		}

		stt, err := speech.NewTranscriber(cfg.Speech)
		if err != nil {
			return nil, fmt.Errorf("speech-to-text: %w", err)
		}
		tts, err := speech.NewSynthesizer(ctx, cfg.Speech)
		if err != nil {
			return nil, fmt.Errorf("text-to-speech: %w", err)
		}
		return &chat.Adapters{LLM: p, STT: stt, TTS: tts}, nil
	}
}
