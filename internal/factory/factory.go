// Package factory owns the lifecycle of every client, store and service the
// server needs. Optional backends fall back to in-memory implementations
// outside production.
package factory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"go.uber.org/zap"

	"social-service/internal/audit"
	"social-service/internal/bucketing"
	"social-service/internal/client"
	"social-service/internal/config"
	"social-service/internal/encryption"
	"social-service/internal/handler"
	"social-service/internal/hashing"
	"social-service/internal/jobs"
	"social-service/internal/mailer"
	"social-service/internal/repository/mongo"
	"social-service/internal/repository/scylla"
	"social-service/internal/service"
	"social-service/internal/tls"
	"social-service/internal/util"
)

const (
	initTimeout           = 30 * time.Second
	revocationPurgeEvery  = 10 * time.Minute
	componentCloseTimeout = 10 * time.Second
)

// Factory manages the lifecycle of all application dependencies.
type Factory struct {
	config     *config.Config
	logger     *zap.Logger
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	mongoClient      *mongo.MongoClient
	kafkaProducer    *client.KafkaProducer
	kafkaConsumer    *client.KafkaConsumer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient
	kmsClient        encryption.KMSAPI

	// Managers
	hasher            *hashing.Hasher
	encryptionManager *encryption.EncryptionManager
	bucketingManager  *bucketing.BucketingManager

	stores         stores
	serviceFactory *service.ServiceFactory
	recorder       audit.Recorder
	mailWorker     *mailer.Worker
	scheduler      *jobs.Scheduler
	router         http.Handler

	cancel    context.CancelFunc
	workers   sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory loads configuration, initializes logging and builds the factory.
func NewFactory(ctx context.Context) (*Factory, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	return New(ctx, cfg, logger)
}

// New builds every dependency from cfg. Nothing runs in the background until
// Start is called.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Factory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Factory{
		config: cfg,
		logger: logger,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewTLSManager(cfg.Server, cfg.IsProduction())
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	if err := f.initializeClients(initCtx); err != nil {
		f.closeClients()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	if err := f.initializeManagers(); err != nil {
		f.closeClients()
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}
	if err := f.initializeServices(initCtx); err != nil {
		f.closeClients()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("Factory initialized successfully",
		zap.String("environment", cfg.Environment),
		zap.Bool("tls_enabled", cfg.Server.EnableTLS),
		zap.Bool("kms_enabled", f.kmsClient != nil),
		zap.Bool("mongo", f.mongoClient != nil),
		zap.Bool("redis", f.redisClient != nil),
		zap.Bool("scylla", f.scyllaClient != nil),
		zap.Bool("kafka", f.kafkaProducer != nil),
		zap.Bool("elasticsearch", f.esClient != nil),
		zap.Bool("clickhouse", f.clickhouseClient != nil),
	)

	return f, nil
}

// initializeClients connects every enabled backend. Failures are fatal in
// production; elsewhere the backend is skipped and its in-memory fallback used.
func (f *Factory) initializeClients(ctx context.Context) error {
	cfg := f.config
	var initErrors []error
	fail := func(name string, err error) {
		initErrors = append(initErrors, fmt.Errorf("%s: %w", name, err))
	}

	if cfg.Mongo.URI != "" {
		if c, err := mongo.NewMongoClient(ctx, cfg.Mongo); err != nil {
			fail("mongo", err)
		} else {
			f.mongoClient = c
		}
	}

	if cfg.Redis.Enabled {
		if c, err := client.NewRedisClient(cfg.Redis); err != nil {
			fail("redis", err)
		} else {
			f.redisClient = c
		}
	}

	if cfg.Scylla.Enabled {
		if c, err := scylla.NewScyllaClient(cfg.Scylla); err != nil {
			fail("scylla", err)
		} else {
			f.scyllaClient = c
		}
	}

	if cfg.Kafka.Enabled {
		if p, err := client.NewKafkaProducer(cfg, f.logger); err != nil {
			fail("kafka", err)
		} else {
			f.kafkaProducer = p
		}
	}

	if cfg.Elasticsearch.Enabled {
		if c, err := client.NewElasticsearchClient(cfg.Elasticsearch, !cfg.IsProduction()); err != nil {
			fail("elasticsearch", err)
		} else {
			f.esClient = c
		}
	}

	if cfg.Clickhouse.Enabled {
		if c, err := client.NewClickHouseClient(cfg.Clickhouse, cfg.IsProduction()); err != nil {
			fail("clickhouse", err)
		} else {
			f.clickhouseClient = c
		}
	}

	if cfg.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.KMS.Region))
		if err != nil {
			fail("kms", err)
		} else {
			f.kmsClient = kms.NewFromConfig(awsCfg)
		}
	}

	if len(initErrors) == 0 {
		return nil
	}
	if cfg.IsProduction() {
		return fmt.Errorf("critical service initialization failed: %w", errors.Join(initErrors...))
	}
	for _, err := range initErrors {
		f.logger.Warn("Service initialization warning, using in-memory fallback", zap.Error(err))
	}
	return nil
}

// initializeManagers builds hashing, encryption and bucketing.
func (f *Factory) initializeManagers() error {
	f.hasher = hashing.NewHasher(f.config.Hashing)

	em, err := encryption.NewEncryptionManager(f.config, f.kmsClient)
	if err != nil {
		return fmt.Errorf("encryption: %w", err)
	}
	f.encryptionManager = em
	f.bucketingManager = bucketing.NewBucketingManager(max(f.config.Bucketing.UserBuckets, 1))

	f.logger.Debug("Managers initialized",
		zap.Int("user_buckets", f.bucketingManager.GetUserBuckets()))
	return nil
}

// Start launches the background jobs and the email worker. They stop on Close.
func (f *Factory) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.scheduler.Start(ctx)

	if f.mailWorker != nil {
		f.workers.Add(1)
		go func() {
			defer f.workers.Done()
			if err := f.mailWorker.Run(ctx); err != nil {
				f.logger.Error("Email worker stopped", zap.Error(err))
			}
		}()
	}
}

// HealthCheck reports the connectivity of every configured backend.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for name, c := range f.healthCheckers() {
		results[name] = c.HealthCheck(ctx)
	}
	return results
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	for _, err := range f.HealthCheck(ctx) {
		if err != nil {
			return false
		}
	}
	return true
}

func (f *Factory) healthCheckers() map[string]handler.HealthChecker {
	checks := make(map[string]handler.HealthChecker)
	if f.mongoClient != nil {
		checks["mongo"] = f.mongoClient
	}
	if f.redisClient != nil {
		checks["redis"] = f.redisClient
	}
	if f.scyllaClient != nil {
		checks["scylla"] = f.scyllaClient
	}
	if f.kafkaProducer != nil {
		checks["kafka"] = f.kafkaProducer
	}
	if f.esClient != nil {
		checks["elasticsearch"] = f.esClient
	}
	if f.clickhouseClient != nil {
		checks["clickhouse"] = f.clickhouseClient
	}
	return checks
}

// Close stops background work, flushes buffered audit events and closes
// every client. It is safe to call more than once.
func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		defer close(f.closed)
		f.logger.Info("Shutting down factory...")

		if f.cancel != nil {
			f.cancel()
		}
		if f.scheduler != nil {
			f.scheduler.Stop()
		}
		f.workers.Wait()

		if closer, ok := f.recorder.(interface{ Close(context.Context) error }); ok {
			ctx, cancel := context.WithTimeout(context.Background(), componentCloseTimeout)
			if err := closer.Close(ctx); err != nil {
				f.logger.Error("Failed to flush audit events", zap.Error(err))
			}
			cancel()
		}

		f.closeClients()

		if f.encryptionManager != nil {
			f.encryptionManager.ClearCache()
		}

		f.logger.Info("Factory shutdown completed")
		_ = f.logger.Sync()
	})
	return nil
}

func (f *Factory) closeClients() {
	if f.kafkaConsumer != nil {
		if err := f.kafkaConsumer.Close(); err != nil {
			f.logger.Error("Failed to close Kafka consumer", zap.Error(err))
		}
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.Close(); err != nil {
			f.logger.Error("Failed to close Kafka producer", zap.Error(err))
		}
	}
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.Close(); err != nil {
			f.logger.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}
	if f.scyllaClient != nil {
		f.scyllaClient.Close()
	}
	if f.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), componentCloseTimeout)
		if err := f.mongoClient.Close(ctx); err != nil {
			f.logger.Error("Failed to close MongoDB client", zap.Error(err))
		}
		cancel()
	}
	if f.redisClient != nil {
		_ = f.redisClient.Close()
	}
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) Logger() *zap.Logger {
	return f.logger
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

// Handler is the fully wired HTTP and websocket handler.
func (f *Factory) Handler() http.Handler {
	return f.router
}

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	return f.serviceFactory
}
