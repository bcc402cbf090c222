package factory

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"social-service/internal/audit"
	"social-service/internal/authz"
	"social-service/internal/chat"
	"social-service/internal/client"
	"social-service/internal/handler"
	"social-service/internal/jobs"
	"social-service/internal/mailer"
	"social-service/internal/otp"
	"social-service/internal/repository"
	"social-service/internal/repository/memory"
	"social-service/internal/repository/mongo"
	"social-service/internal/repository/redis"
	"social-service/internal/repository/scylla"
	"social-service/internal/search"
	"social-service/internal/service"
	"social-service/internal/storage"
	"social-service/internal/token"
)

// stores is the selected implementation of every persistence port.
type stores struct {
	users         repository.UserRepository
	friendships   repository.FriendshipRepository
	posts         repository.PostRepository
	comments      repository.CommentRepository
	reacts        repository.ReactRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository

	revocations token.RevocationStore
	sessions    token.SessionStore
	limiter     handler.Limiter
	registry    chat.Registry
}

var (
	_ chat.Registry         = (*redis.PresenceCache)(nil)
	_ handler.Limiter       = (*redis.RateLimitCache)(nil)
	_ token.RevocationStore = (*redis.BlacklistCache)(nil)
	_ token.SessionStore    = (*redis.SessionCache)(nil)
)

func (f *Factory) initializeStores() {
	s := &f.stores

	if f.mongoClient != nil {
		s.users = mongo.NewUserRepository(f.mongoClient)
		s.friendships = mongo.NewFriendshipRepository(f.mongoClient)
		s.posts = mongo.NewPostRepository(f.mongoClient)
		s.comments = mongo.NewCommentRepository(f.mongoClient)
		s.reacts = mongo.NewReactRepository(f.mongoClient)
		s.conversations = mongo.NewConversationRepository(f.mongoClient)
		s.messages = mongo.NewMessageRepository(f.mongoClient)
	} else {
		f.logger.Warn("MONGO_URI not set, documents are kept in memory")
		s.users = memory.NewUserRepository()
		s.friendships = memory.NewFriendshipRepository()
		s.posts = memory.NewPostRepository()
		s.comments = memory.NewCommentRepository()
		s.reacts = memory.NewReactRepository()
		s.conversations = memory.NewConversationRepository()
		s.messages = memory.NewMessageRepository()
	}

	// Message history is append-only and partitioned by conversation, which
	// is the access pattern Scylla is laid out for.
	if f.scyllaClient != nil {
		s.messages = scylla.NewMessageRepository(f.scyllaClient)
	}

	if f.redisClient != nil {
		s.revocations = redis.NewBlacklistCache(f.redisClient)
		s.sessions = redis.NewSessionCache(f.redisClient)
		s.limiter = redis.NewRateLimitCache(f.redisClient)
	} else {
		revocations := memory.NewRevocationStore()
		s.revocations = revocations
		s.sessions = memory.NewSessionStore()
		s.limiter = memory.NewRateLimiter()
		f.scheduler.Register(jobs.PurgeExpiredRevocations(revocations, revocationPurgeEvery, f.logger))
	}

	if f.config.Chat.UseRedisRegistry && f.redisClient != nil {
		s.registry = redis.NewPresenceCache(f.redisClient)
	} else {
		s.registry = chat.NewMemoryRegistry(f.bucketingManager)
	}
}

func (f *Factory) initializeServices(ctx context.Context) error {
	cfg := f.config
	f.scheduler = jobs.NewScheduler(f.logger.Named("jobs"))
	f.initializeStores()
	s := f.stores

	notifier, err := f.buildMailer()
	if err != nil {
		return err
	}

	index, err := f.buildSearch(ctx, s.users)
	if err != nil {
		return err
	}

	if f.recorder, err = f.buildRecorder(ctx); err != nil {
		return err
	}

	objects, err := f.buildStorage(ctx)
	if err != nil {
		return err
	}

	tokens := token.NewService(cfg.JWT)
	deps := service.Deps{
		Users:         s.users,
		Friendships:   s.friendships,
		Posts:         s.posts,
		Comments:      s.comments,
		Reacts:        s.reacts,
		Conversations: s.conversations,
		Messages:      s.messages,

		Hasher:      f.hasher,
		Cipher:      f.encryptionManager,
		OTP:         otp.NewEngine(f.hasher, notifier, cfg.OTP, f.logger.Named("otp")),
		Tokens:      tokens,
		Revocations: s.revocations,
		Sessions:    s.sessions,
		Notifier:    notifier,
		Audit:       f.recorder,
		Search:      index,
		Storage:     objects,
		Rules:       authz.NewRules(s.friendships),

		SignedURLExpiry: cfg.S3.SignedURLExpiry,
		Logger:          f.logger,
	}
	if cfg.Google.ClientID != "" {
		verifier, err := service.NewIDTokenVerifier(ctx, cfg.Google.ClientID)
		if err != nil {
			return err
		}
		deps.Google = verifier
	}
	f.serviceFactory = service.NewServiceFactory(deps)

	f.scheduler.Register(jobs.CleanupRejectedFriendships(
		s.friendships,
		cfg.Jobs.RejectedFriendshipRetention,
		cfg.Jobs.RejectedFriendshipInterval,
		f.logger,
	))

	auth := token.NewAuthenticator(tokens, s.revocations, s.users)
	chatService := chat.NewService(
		s.registry,
		chat.NewHub(),
		s.users,
		s.conversations,
		s.messages,
		chat.Options{EnforceGroupMembership: cfg.Chat.EnforceGroupMembership},
		f.logger.Named("chat"),
	)

	f.router = f.buildRouter(auth, chatService, s.limiter)
	return nil
}

// buildMailer queues mail on Kafka when a producer is available and a worker
// drains the topic. Otherwise each email is sent on its own goroutine.
func (f *Factory) buildMailer() (*mailer.Mailer, error) {
	cfg := f.config
	logger := f.logger.Named("mailer")

	var sender mailer.Sender
	if cfg.Mail.SMTPHost != "" {
		smtp, err := mailer.NewSMTPSender(cfg.Mail)
		if err != nil {
			return nil, fmt.Errorf("mailer: %w", err)
		}
		sender = smtp
	} else {
		if cfg.IsProduction() {
			return nil, errors.New("mailer: SMTP_HOST is required in production")
		}
		sender = mailer.NewLogSender(logger)
	}

	if f.kafkaProducer != nil {
		f.kafkaConsumer = client.NewKafkaConsumer(cfg, cfg.Kafka.EmailTopic, cfg.Kafka.GroupID, logger)
		f.mailWorker = mailer.NewWorker(f.kafkaConsumer, sender, logger)
		return mailer.NewMailer(mailer.NewKafkaDispatcher(f.kafkaProducer, cfg.Kafka.EmailTopic, logger), cfg.Mail.AppName, cfg.OTP.Expiry(), logger), nil
	}
	return mailer.NewMailer(mailer.NewAsyncSender(sender, logger), cfg.Mail.AppName, cfg.OTP.Expiry(), logger), nil
}

func (f *Factory) buildSearch(ctx context.Context, users repository.UserRepository) (search.UserIndex, error) {
	if f.esClient == nil {
		return search.NewStoreUserIndex(users), nil
	}
	index, err := search.NewElasticUserIndex(ctx, f.esClient, f.config.Elasticsearch.UserIndex, users)
	if err != nil {
		if f.config.IsProduction() {
			return nil, fmt.Errorf("search index: %w", err)
		}
		f.logger.Warn("Elasticsearch index unavailable, searching the user store", zap.Error(err))
		return search.NewStoreUserIndex(users), nil
	}
	return index, nil
}

func (f *Factory) buildRecorder(ctx context.Context) (audit.Recorder, error) {
	if f.clickhouseClient == nil {
		return audit.NewLogRecorder(f.logger.Named("audit")), nil
	}
	rec, err := audit.NewClickHouseRecorder(ctx, f.clickhouseClient,
		f.config.Clickhouse.BatchSize, f.config.Clickhouse.FlushInterval, f.logger.Named("audit"))
	if err != nil {
		return nil, fmt.Errorf("audit recorder: %w", err)
	}
	return rec, nil
}

func (f *Factory) buildStorage(ctx context.Context) (storage.ObjectStore, error) {
	if !f.config.S3.Enabled {
		return storage.NewMemoryStore(f.config.S3.Folder), nil
	}
	store, err := storage.NewS3Store(ctx, f.config.S3)
	if err != nil {
		if f.config.IsProduction() {
			return nil, fmt.Errorf("object storage: %w", err)
		}
		f.logger.Warn("S3 unavailable, keeping uploads in memory", zap.Error(err))
		return storage.NewMemoryStore(f.config.S3.Folder), nil
	}
	return store, nil
}

func (f *Factory) buildRouter(auth *token.Authenticator, chatService *chat.Service, limiter handler.Limiter) http.Handler {
	cfg := f.config
	debug := !cfg.IsProduction()
	logger := f.logger.Named("http")
	services := f.serviceFactory

	return handler.NewRouter(handler.RouterOptions{
		Logger:     logger,
		Middleware: handler.NewMiddleware(auth, limiter, cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindow, logger, debug),
		Handlers: []handler.RouteRegistrar{
			handler.NewAuthHandler(services.AuthService(), logger, debug),
			handler.NewProfileHandler(services.ProfileService(), logger, debug),
			handler.NewPostHandler(services.PostService(), logger, debug),
			handler.NewCommentHandler(services.CommentService(), logger, debug),
			handler.NewReactHandler(services.ReactService(), logger, debug),
		},
		Chat:           chat.NewGateway(chatService, auth, cfg.CORS.AllowedOrigins, f.logger.Named("ws")),
		Health:         f.healthCheckers(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequireHTTPS:   cfg.IsProduction() && cfg.Server.EnableTLS,
		RequestTimeout: cfg.Server.WriteTimeout,
	})
}
