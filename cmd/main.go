package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"

	"soc-log-pipeline/config"
	"soc-log-pipeline/database"
	_ "soc-log-pipeline/docs"
	"soc-log-pipeline/internal/archive"
	"soc-log-pipeline/internal/classifier"
	"soc-log-pipeline/internal/controller"
	"soc-log-pipeline/internal/elasticsearch"
	"soc-log-pipeline/internal/filestate"
	"soc-log-pipeline/internal/kafka"
	"soc-log-pipeline/internal/metrics"
	"soc-log-pipeline/internal/mysql"
	"soc-log-pipeline/internal/notification"
	"soc-log-pipeline/internal/redactor"
	"soc-log-pipeline/internal/repository"
	"soc-log-pipeline/internal/scheduler"
	"soc-log-pipeline/internal/security"
	"soc-log-pipeline/internal/service"
	"soc-log-pipeline/internal/timescaledb"
)

// @title           SOC Log Pipeline API
// @version         1.0
// @description     Read-only access to enriched security incidents and pipeline counters.

// @host      localhost:8080
// @BasePath  /
// @schemes   http https

// @tag.name         incidents
// @tag.description  Suspicious events and their enrichment
// @tag.name         stats
// @tag.description  Pipeline classification counters
// @tag.name         health
// @tag.description  API health check operations

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Shared key configured through API_KEY.

func main() {
	app := fx.New(
		// Core Dependencies
		fx.Provide(
			NewConfig,
			NewCipher,
			NewClassifier,
			redactor.New,
		),
		// Infrastructure Dependencies
		fx.Provide(
			NewGinEngine,
			NewDocumentStore,
			NewAlertProducer,
			NewMetricStore,
			NewMetricRepository,
			database.NewDB,
			mysql.NewSubscriberRepository,
			NewFileStateTracker,
			NewArchive,
		),
		// Pipeline
		fx.Provide(
			service.NewEventBuilder,
			service.NewGeminiDispatcher,
			NewNotifier,
			NewDirectory,
			NewEnrichmentService,
			NewBatchScheduler,
			metrics.NewExtractor,
			NewLogWatcher,
		),
		// API
		fx.Provide(
			service.NewIncidentQueryService,
			service.NewStatsQueryService,
			controller.NewIncidentController,
			controller.NewStatsController,
		),
		fx.Invoke(
			RegisterAPIRoutes,
			RegisterScheduler,
			StartLogWatcher,
		),
	)
	if err := app.Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute) // ES connect retries can take a while
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}
	<-app.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancelStop()
	log.Info().Msg("Shutting down application...")
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown due to error or timeout")
	}
	log.Info().Msg("All background processes finished. Exiting.")
}

func NewConfig() (*config.Config, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return cfg, nil
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", controller.APIKeyHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func RegisterAPIRoutes(
	lifecycle fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	incidentController *controller.IncidentController,
	statsController *controller.StatsController,
) {
	controller.RegisterHealthRoutes(router)
	controller.RegisterIncidentRoutes(router, incidentController, cfg.APIKey)
	controller.RegisterStatsRoutes(router, statsController, cfg.APIKey)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Starting HTTP server on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("HTTP server ListenAndServe error")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Shutting down HTTP server...")
			return server.Shutdown(ctx)
		},
	})
}

// --- Factory Functions ---

func NewCipher(cfg *config.Config) (*security.Cipher, error) {
	key, generated, err := security.LoadOrCreateKey(cfg.Security.EncryptionKey, cfg.Security.EncryptionKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load encryption key: %w", err)
	}
	if generated {
		log.Warn().Str("file", cfg.Security.EncryptionKeyFile).Msg("Generated a new encryption key. Back it up, stored incidents cannot be read without it.")
	}
	return security.NewCipher(key)
}

func NewClassifier(cfg *config.Config) (classifier.Classifier, error) {
	tables := classifier.DefaultTables()
	if cfg.Classifier.KeywordsFile != "" {
		loaded, err := classifier.LoadTables(cfg.Classifier.KeywordsFile)
		if err != nil {
			return nil, err
		}
		tables = loaded
	}
	c := classifier.New(tables)
	log.Info().Str("version", c.Version()).Msg("Keyword tables loaded")
	return c, nil
}

func NewDocumentStore(cfg *config.Config) (repository.DocumentStore, error) {
	switch cfg.Store.Backend {
	case "elasticsearch":
		store, _, err := elasticsearch.NewElasticDocumentStore(cfg)
		return store, err
	case "memory", "":
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
	}
}

// NewAlertProducer returns nil when no brokers are configured.
func NewAlertProducer(lc fx.Lifecycle, cfg *config.Config) (kafka.AlertProducer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info().Msg("KAFKA_BROKERS not set, alert stream disabled.")
		return nil, nil
	}
	p, err := kafka.NewKafkaAlertProducer(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Closing Kafka alert producer")
			return p.Close()
		},
	})
	return p, nil
}

func NewMetricStore(lc fx.Lifecycle, cfg *config.Config) (timescaledb.MetricStore, *pgxpool.Pool, error) {
	store, pool, err := timescaledb.ProvideTimescaleDBPool(cfg)
	if err != nil || store == nil {
		return nil, nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Closing TimescaleDB connection pool...")
			store.Close()
			return nil
		},
	})
	return store, pool, nil
}

func NewMetricRepository(pool *pgxpool.Pool) repository.MetricRepository {
	if pool == nil {
		return nil
	}
	repo, err := timescaledb.NewTimescaleMetricRepository(pool)
	if err != nil {
		log.Warn().Err(err).Msg("Stats endpoint disabled")
		return nil
	}
	return repo
}

func NewFileStateTracker(cfg *config.Config) (*filestate.Tracker, error) {
	return filestate.NewTracker(filestate.NewManager(cfg.FileState.FilePath))
}

func NewArchive(cfg *config.Config) *archive.Archive {
	return archive.New(cfg.Watcher.ArchiveDir)
}

func NewNotifier(cfg *config.Config) *notification.Notifier {
	email := notification.NewEmailChannel(cfg)
	if !email.Configured() {
		log.Warn().Msg("EMAIL_USER or EMAIL_PASS not set, alert emails will fail")
	}
	return notification.NewNotifier(email)
}

func NewDirectory(cfg *config.Config, subscribers repository.SubscriberRepository) *notification.Directory {
	return notification.NewDirectory(cfg.Notification.Recipients, subscribers)
}

func NewEnrichmentService(
	dispatcher service.EnrichmentDispatcher,
	store repository.DocumentStore,
	cipher *security.Cipher,
	notifier *notification.Notifier,
	directory *notification.Directory,
	alerts kafka.AlertProducer,
) *service.EnrichmentService {
	return service.NewEnrichmentService(dispatcher, store, cipher, notifier, directory, alerts)
}

func NewBatchScheduler(cfg *config.Config, enrichment *service.EnrichmentService) *service.BatchScheduler {
	return service.NewBatchScheduler(cfg.Batch.Limit, cfg.Batch.MaxWait, enrichment.ProcessBatch)
}

func NewLogWatcher(
	cfg *config.Config,
	tracker *filestate.Tracker,
	arch *archive.Archive,
	builder *service.EventBuilder,
	batch *service.BatchScheduler,
	extractor metrics.Extractor,
	metricStore timescaledb.MetricStore,
	enrichment *service.EnrichmentService,
) *service.LogWatcherService {
	return service.NewLogWatcherService(cfg, tracker, arch, builder, batch, extractor, metricStore, enrichment)
}

// --- Invoker Functions ---

func RegisterScheduler(lc fx.Lifecycle, cfg *config.Config, watcher *service.LogWatcherService) error {
	_, err := scheduler.NewScheduler(lc, cfg, watcher)
	return err
}

// StartLogWatcher runs the watcher loop on its own goroutine. OnStop waits for
// the final batch flush and in-flight notifications before later hooks close
// Kafka and the stores.
func StartLogWatcher(lc fx.Lifecycle, cfg *config.Config, watcher *service.LogWatcherService, notifier *notification.Notifier) error {
	if err := service.ValidateDirs(cfg.Watcher); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info().Msg("Starting log watcher goroutine")
			go watcher.Run(ctx)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			log.Info().Msg("Signaling log watcher to stop...")
			cancel()
			select {
			case <-watcher.Done():
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			notifier.Wait()
			return nil
		},
	})
	return nil
}
