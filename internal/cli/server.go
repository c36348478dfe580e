package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"evalform-service/internal/app"
	"evalform-service/internal/config"
	"evalform-service/internal/domain"
	"evalform-service/internal/infra/llm"
	"evalform-service/internal/infra/memory"
	pgstore "evalform-service/internal/infra/postgres"
	redcache "evalform-service/internal/infra/redis"
	transport "evalform-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the evaluation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var (
		submissions app.SubmissionStore
		reviewStore app.ReviewStore
		loader      interface {
			LoadQuestionnaire(ctx context.Context) (domain.Questionnaire, error)
		}
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		db, err := openBun(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		store := pgstore.NewStore(db)
		submissions = store
		reviewStore = store
		loader = pgstore.NewQuestionnaireLoader(pool)
	} else {
		log.Printf("postgres not configured, using in-memory store with sample data")
		store := memory.NewStore()
		sample := sampleQuestionnaire()
		store.Seed(sample.Questions, sample.Items, sample.Mappings, sample.Resources, sampleProfiles())
		submissions = store
		reviewStore = store
		loader = store
	}

	ttl := config.TTLDuration(cfg.Questionnaire.TTL, 5*time.Minute)
	var (
		questionnaire app.QuestionnaireRepository
		invalidate    func()
	)
	if redisClient != nil {
		cache := redcache.NewQuestionnaireCache(redisClient, loader, ttl)
		questionnaire = cache
		invalidate = func() {
			if err := cache.Invalidate(context.Background()); err != nil {
				log.Printf("invalidate questionnaire cache: %v", err)
			}
		}
	} else {
		cache := memory.NewQuestionnaireCache(loader, ttl)
		questionnaire = cache
		invalidate = cache.Invalidate
	}

	sessions := app.NewSessionService(submissions, questionnaire)
	review := app.NewReviewService(reviewStore)

	var generator app.SummaryGenerator
	if cfg.LLM.BaseURL != "" {
		generator = llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	}
	reports := app.NewReportService(sessions, generator)

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = "dev-secret"
		log.Printf("auth secret not configured, using development default")
	}
	auth := transport.NewAuthenticator(secret)

	handler := transport.NewHandler(sessions, review, reports, questionnaire, auth, invalidate)
	wsHandler := transport.NewWSHandler(sessions)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("GET /ws/sessions/{code}", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting evalform service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestionnaire seeds the in-memory mode with a minimal working
// dataset; real deployments load questions from Postgres.
func sampleQuestionnaire() domain.Questionnaire {
	return domain.Questionnaire{
		Questions: []domain.Question{
			{
				ID:       "q-scope",
				Step:     1,
				Type:     domain.QuestionSingle,
				Title:    "Has the intervention been evaluated before?",
				Required: true,
				Options: []domain.Option{
					{Label: "Yes", Value: "yes"},
					{Label: "No", Value: "no"},
				},
			},
			{
				ID:    "q-context",
				Step:  1,
				Type:  domain.QuestionText,
				Title: "Describe the setting in which it will be used",
			},
			{
				ID:       "q-concerns",
				Step:     2,
				Type:     domain.QuestionMulti,
				Title:    "Which areas concern you most?",
				Required: true,
				Options: []domain.Option{
					{Label: "Data handling", Value: "data"},
					{Label: "Fair access", Value: "access"},
				},
			},
		},
		Items: []domain.EvaluationItem{
			{ID: "e-priorwork", Category: "Evidence", Classification: domain.ClassEffectiveness, Title: "Review existing evaluations"},
			{ID: "e-dataflow", Category: "Data governance", Classification: domain.ClassPrivacy, Title: "Map personal data flows"},
			{ID: "e-reach", Category: "Access", Classification: domain.ClassEquity, Title: "Assess reach across user groups"},
		},
		Mappings: []domain.Mapping{
			{QuestionID: "q-scope", AnswerValue: "no", EvaluationItemID: "e-priorwork"},
			{QuestionID: "q-concerns", AnswerValue: "data", EvaluationItemID: "e-dataflow"},
			{QuestionID: "q-concerns", AnswerValue: "access", EvaluationItemID: "e-reach"},
		},
	}
}

func sampleProfiles() []domain.Profile {
	return []domain.Profile{
		{ID: "admin-1", Name: "Local Admin", Admin: true},
		{ID: "user-1", Name: "Local User"},
	}
}
