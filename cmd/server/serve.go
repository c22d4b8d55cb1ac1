package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"symptom-triage/internal/agent"
	"symptom-triage/internal/auth"
	"symptom-triage/internal/config"
	"symptom-triage/internal/db"
	"symptom-triage/internal/logging"
	"symptom-triage/internal/platform/telegram"
	"symptom-triage/internal/report"
	"symptom-triage/internal/screening"
	"symptom-triage/internal/session"
)

const purgeInterval = 10 * time.Minute

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.Env, cfg.LogLevel)
	zerolog.DefaultContextLogger = &logger

	// 1. Infrastructure
	var conn *sqlx.DB
	if cfg.DatabaseURL != "" {
		var err error
		conn, err = db.Open(ctx, cfg.DatabaseURL, 10, logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.Migrate(conn); err != nil {
			return err
		}
		logger.Info().Msg("connected to database, migrations applied")
	} else {
		logger.Warn().Msg("DATABASE_URL is not set, diagnosis history is disabled")
	}

	var store session.Store[screening.Session]
	var pgStore *session.PostgresStore[screening.Session]
	switch cfg.SessionBackend {
	case "postgres":
		pgStore = session.NewPostgresStore[screening.Session](conn, cfg.SessionTTL)
		store = pgStore
	default:
		store = session.NewMemoryStore[screening.Session](cfg.SessionTTL)
	}

	// 2. Clients
	var provider agent.Provider
	switch cfg.LLMProvider {
	case "openai":
		provider = agent.NewOpenAIClient(agent.OpenAIConfig{
			APIKey:      cfg.LLMAPIKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			Temperature: 0.2,
		})
	default:
		provider = agent.NewMockProvider()
	}
	provider = agent.Limit(provider, cfg.LLMMaxConcurrent)

	var tg report.TelegramClient
	if cfg.DoctorReportsEnabled() {
		tg = telegram.NewClient(cfg.TelegramToken)
	} else {
		logger.Info().Msg("TELEGRAM_BOT_TOKEN or DOCTOR_CHAT_ID not set, doctor reports are disabled")
	}

	// 3. Services
	reportSvc := report.NewService(tg, cfg.DoctorChatID)

	var repo screening.Repository
	if conn != nil {
		repo = screening.NewRepository(conn)
	}
	var notifier screening.DoctorNotifier
	if cfg.DoctorReportsEnabled() {
		notifier = reportSvc
	}

	screeningSvc := screening.NewService(store, provider, repo, notifier, screening.Config{
		MaxQuestions:      cfg.MaxQuestions,
		CompletionTimeout: cfg.LLMTimeout,
	})
	screeningHandler := screening.NewHandler(screeningSvc, reportSvc)

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.HTTP(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(session.Middleware)
		r.Use(auth.Middleware(auth.NewVerifier(cfg.JWTSecret)))
		screening.RegisterRoutes(r, screeningHandler)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Run until a signal arrives or the server fails
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("addr", srv.Addr).
			Str("llm_provider", cfg.LLMProvider).
			Str("session_backend", cfg.SessionBackend).
			Int("max_questions", cfg.MaxQuestions).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if pgStore != nil {
		g.Go(func() error {
			ticker := time.NewTicker(purgeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					n, err := pgStore.PurgeExpired(gctx)
					if err != nil {
						logger.Error().Err(err).Msg("failed to purge expired sessions")
						continue
					}
					logger.Debug().Int64("deleted", n).Msg("expired sessions purged")
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
