package bootstrap

import (
	"context"
	"strings"
	"time"

	"classifier_server/adapter/out/messaging"
	"classifier_server/adapter/out/mongodb"
	"classifier_server/adapter/out/persistence"
	"classifier_server/adapter/out/semantic"
	"classifier_server/config"
	"classifier_server/core/domain"
	"classifier_server/core/port/out"
	"classifier_server/core/service/classification"
	"classifier_server/core/service/suggestion"
	"classifier_server/infra/database"
	"classifier_server/pkg/cache"
	"classifier_server/pkg/logger"
	"classifier_server/pkg/metrics"
	"classifier_server/pkg/ratelimit"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	RuleRepo       domain.RuleRepository
	EmailRepo      domain.EmailRepository
	EmailBodyRepo  domain.EmailBodyRepository
	HistoryRepo    domain.HistoryRepository
	SuggestionRepo domain.SuggestionRepository
	JobTracker     domain.JobTracker

	// Outbound adapters
	MessageProducer    out.MessageProducer
	SemanticClassifier out.SemanticClassifier
	Cache              out.Cache
	RateLimiter        out.RateLimiter

	// Services
	Cascade               *classification.Cascade
	ClassificationService *classification.Service
	RuleService           *classification.RuleService
	Reclassifier          *classification.Reclassifier
	Miner                 *suggestion.Miner
	SuggestionService     *suggestion.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	// Database (pgxpool)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx for adapters)
	// Simple protocol avoids prepared statement conflicts behind PgBouncer.
	logger.Debug("Connecting to database via sqlx...")
	sqlxURL := cfg.DatabaseURL
	if strings.Contains(sqlxURL, "?") {
		sqlxURL += "&default_query_exec_mode=simple_protocol"
	} else {
		sqlxURL += "?default_query_exec_mode=simple_protocol"
	}
	sqlDB, err := sqlx.Connect("pgx", sqlxURL)
	if err != nil {
		logger.Error("sqlx connection failed: %v", err)
		return nil, nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	deps.SQLDB = sqlDB
	metrics.RegisterPool("postgres", sqlDB.DB)
	cleanups = append(cleanups, func() { sqlDB.Close() })
	logger.Info("sqlx database connection successful (pool: max=%d, idle=%d)", 25, 10)

	// Redis
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis connection failed: %v", err)
	} else {
		deps.Redis = redisClient
		cleanups = append(cleanups, func() { redisClient.Close() })

		deps.Cache = cache.NewRedisCache(redisClient)
		deps.RateLimiter = ratelimit.NewRedisRateLimiter(redisClient)
		deps.JobTracker = persistence.NewRedisJobTracker(redisClient, time.Duration(cfg.JobTTLHour)*time.Hour)
		deps.MessageProducer = messaging.NewRedisProducer(redisClient)
	}

	// MongoDB (full body store)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL, cfg.MongoDBName)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			bodyAdapter := mongodb.NewEmailBodyAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := bodyAdapter.EnsureIndexes(context.Background()); err != nil {
				logger.Warn("Failed to ensure MongoDB indexes: %v", err)
			}
			deps.EmailBodyRepo = bodyAdapter
		}
	}

	// Repositories (PostgreSQL)
	deps.RuleRepo = persistence.NewRuleAdapter(sqlDB)
	deps.EmailRepo = persistence.NewEmailAdapter(sqlDB)
	deps.HistoryRepo = persistence.NewHistoryAdapter(sqlDB)
	deps.SuggestionRepo = persistence.NewSuggestionAdapter(sqlDB)

	// Semantic classifier (OpenAI, behind a circuit breaker)
	if cfg.OpenAIAPIKey != "" {
		deps.SemanticClassifier = semantic.NewOpenAIAdapter(semantic.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			TimeoutSec:  cfg.LLMTimeoutSec,
		})
		logger.Info("Semantic classifier initialized (model: %s)", cfg.LLMModel)
	} else {
		logger.Warn("OPENAI_API_KEY not set, cascade will skip the semantic layer")
	}

	// Cascade
	cascadeCfg := classification.DefaultCascadeConfig()
	cascadeCfg.SemanticEnabled = cfg.SemanticEnabled
	if cfg.SemanticThreshold > 0 {
		cascadeCfg.SemanticThreshold = cfg.SemanticThreshold
	}
	deps.Cascade = classification.NewCascade(deps.RuleRepo, deps.SemanticClassifier, cascadeCfg)

	// Services
	deps.ClassificationService = classification.NewService(classification.ServiceDeps{
		Cascade:   deps.Cascade,
		EmailRepo: deps.EmailRepo,
		BodyRepo:  deps.EmailBodyRepo,
		HistRepo:  deps.HistoryRepo,
		RuleRepo:  deps.RuleRepo,
		Jobs:      deps.JobTracker,
		Producer:  deps.MessageProducer,
		Cache:     deps.Cache,
		SuggRepo:  deps.SuggestionRepo,
	})
	deps.RuleService = classification.NewRuleService(deps.RuleRepo, deps.Cascade.Matcher())
	deps.Reclassifier = classification.NewReclassifier(deps.ClassificationService, deps.EmailRepo, deps.RuleRepo, deps.JobTracker)

	minerCfg := &suggestion.MinerConfig{
		SenderThreshold:  cfg.MineSenderThreshold,
		DomainThreshold:  cfg.MineDomainThreshold,
		KeywordThreshold: cfg.MineKeywordThreshold,
		LookbackDays:     cfg.MineLookbackDays,
	}
	deps.Miner = suggestion.NewMiner(deps.HistoryRepo, deps.SuggestionRepo, deps.RuleRepo, minerCfg)
	deps.SuggestionService = suggestion.NewService(deps.SuggestionRepo, deps.RuleRepo, deps.JobTracker, deps.MessageProducer)

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return deps, cleanup, nil
}

func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if err := d.DB.Ping(ctx); err != nil {
		return err
	}

	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	return nil
}
