package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/config"
	"contest-service/internal/domain"
	amqppub "contest-service/internal/infra/amqp"
	"contest-service/internal/infra/memory"
	mongostore "contest-service/internal/infra/mongo"
	"contest-service/internal/infra/postgres"
	redisstore "contest-service/internal/infra/redis"
	"contest-service/internal/logger"
	"contest-service/internal/metrics"
	transport "contest-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the contest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// participationBackend is what both participation stores provide.
type participationBackend interface {
	app.ParticipationStore
	app.LeaderboardSource
}

// contestBackend is what every contest store provides.
type contestBackend interface {
	memory.ContestLoader
	app.ContestStatusWriter
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Server.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var (
		participations participationBackend  = memory.NewParticipationStore()
		events         app.MasteryEventStore = memory.NewEventStore()
		vocabulary     app.VocabularyIndex   = memory.NewVocabulary()
		content        app.ContentProvider   = sampleContent()
		loader         contestBackend        = memory.NewStaticContestLoader(sampleContests())
	)
	if cfg.Mongo.URI != "" {
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		db := client.Database(cfg.Mongo.Database)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			return err
		}
		participations = mongostore.NewParticipationStore(db)
		events = mongostore.NewEventStore(db)
		vocabulary = mongostore.NewVocabulary(db)
		content = mongostore.NewContentProvider(db)
		loader = mongostore.NewContestStore(db)
	} else {
		log.Warn("mongo not configured, using in-memory stores")
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = postgres.NewContestLoader(pool)
	}

	contestTTL := config.TTLDuration(cfg.Contest.CacheTTL, 10*time.Minute)
	var contests app.ContestRepository
	if redisClient != nil {
		contests = redisstore.NewContestRepository(redisClient, loader, contestTTL, log)
	} else {
		contests = memory.NewContestRepository(loader, contestTTL)
	}

	leaderboardTTL := config.TTLDuration(cfg.Contest.LeaderboardTTL, 5*time.Second)
	var boardCache app.LeaderboardCache
	if redisClient != nil {
		boardCache = redisstore.NewLeaderboardCache(redisClient, leaderboardTTL)
	} else {
		boardCache = memory.NewLeaderboardCache(leaderboardTTL)
	}

	var publisher app.EventPublisher = memory.NewEventLog()
	if cfg.AMQP.URL != "" {
		p, err := amqppub.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
		if err != nil {
			return err
		}
		defer p.Close()
		publisher = p
	}

	common := []app.Option{
		app.WithLogger(log),
		app.WithMetrics(m),
		app.WithDefaultLanguage(cfg.Contest.DefaultLanguage),
	}
	board := app.NewLeaderboardService(contests, participations, boardCache, common...)
	feed := app.NewLeaderboardFeed(board, app.DefaultLeaderboardLimit)
	defer feed.Close()

	svc := transport.Services{
		Contests: app.NewContestService(contests, participations, append(common,
			app.WithPublisher(publisher),
			app.WithContestStatusWriter(loader),
			app.WithScoreListeners(board, feed),
			app.WithMaxConflictRetries(cfg.Contest.MaxConflictRetries),
		)...),
		Leaderboards: board,
		Feed:         feed,
		Mastery:      app.NewMasteryService(events, vocabulary, common...),
		Content:      app.NewContentService(contests, content, common...),
	}

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (JWT_SECRET) is required")
	}
	router := transport.NewRouter(svc, transport.NewAuthenticator(cfg.Auth.JWTSecret), log)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router.Handler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting contest service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleContests is the demo definition served when no contest store is configured.
func sampleContests() map[string]domain.ContestDefinition {
	objects := 6
	return map[string]domain.ContestDefinition{
		"demo": {
			ID:                    "demo",
			Name:                  "Demo Word Sprint",
			Status:                domain.ContestActive,
			Version:               1,
			SupportedLanguages:    []string{"en", "es"},
			MaxIncompleteAttempts: 3,
			Levels: []domain.Level{
				{Name: "Match", Seq: 1, GameType: domain.GameTypeMatching, Rounds: []domain.Round{
					{Name: "Warmup", Seq: 1, TimeLimitSeconds: 60, QuestionCount: 6, ObjectCount: &objects, HintsUsed: "Short Hints"},
				}},
				{Name: "Quiz", Seq: 2, GameType: domain.GameTypeQuiz, Rounds: []domain.Round{
					{Name: "Final", Seq: 1, TimeLimitSeconds: 120, QuestionCount: 10,
						DifficultyDistribution: domain.DifficultyDistribution{Easy: 0.5, Medium: 0.3, Hard: 0.2}},
				}},
			},
		},
	}
}

// sampleContent backs the demo contest when no content store is configured.
func sampleContent() *memory.StaticContentProvider {
	words := map[string][]string{
		"en": {"apple", "river", "cloud", "house", "bread", "stone"},
		"es": {"manzana", "río", "nube", "casa", "pan", "piedra"},
	}
	difficulties := []string{"easy", "medium", "hard"}

	p := memory.NewStaticContentProvider()
	for lang, list := range words {
		for i, word := range list {
			id := fmt.Sprintf("demo-%s-%d", lang, i+1)
			hint := fmt.Sprintf("starts with %s", string([]rune(word)[:1]))
			p.Add(domain.GameTypeMatching, lang, domain.ContentItem{ID: id, Payload: map[string]any{
				"objectId":        fmt.Sprintf("obj-%d", i+1),
				"objectName":      word,
				"objectHint":      hint,
				"objectShortHint": hint,
				"translationId":   id,
			}})
			for j, difficulty := range difficulties {
				p.Add(domain.GameTypeQuiz, lang, domain.ContentItem{
					ID:         fmt.Sprintf("%s:%d", id, j),
					Difficulty: difficulty,
					Payload: map[string]any{
						"objectName":    word,
						"translationId": id,
						"question": map[string]any{
							"question":         fmt.Sprintf("Which word %s?", hint),
							"answer":           word,
							"difficulty_level": difficulty,
						},
					},
				})
			}
		}
	}
	return p
}
