package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Logging       LoggingConfig
	Mongo         MongoConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Elasticsearch ElasticsearchConfig
	Clickhouse    ClickhouseConfig
	KMS           KMSConfig
	S3            S3Config
	Hashing       HashingConfig
	Encryption    EncryptionConfig
	JWT           JWTConfig
	OTP           OTPConfig
	Mail          MailConfig
	Google        GoogleConfig
	Chat          ChatConfig
	Bucketing     BucketingConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Jobs          JobsConfig
}

type ServerConfig struct {
	Port         string
	TLSPort      string
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	Email        string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Enabled     bool
	URL         string
	Password    string
	DB          int
	PoolSize    int
	TLSCAFile   string
	TLSCertFile string
	TLSKeyFile  string
}

type ScyllaConfig struct {
	Enabled   bool
	Nodes     []string
	Keyspace  string
	Username  string
	Password  string
	TLSCAFile string
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	EmailTopic string
	GroupID    string
}

type ElasticsearchConfig struct {
	Enabled   bool
	URL       string
	Username  string
	Password  string
	UserIndex string
}

type ClickhouseConfig struct {
	Enabled       bool
	URL           string
	Username      string
	Password      string
	Database      string
	CAFile        string
	BatchSize     int
	FlushInterval time.Duration
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type S3Config struct {
	Enabled         bool
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Folder          string
	UsePathStyle    bool
	SignedURLExpiry time.Duration
}

type HashingConfig struct {
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
	Pepper            string
	PepperVersion     int
	PreviousPeppers   []string
}

type EncryptionConfig struct {
	// LocalMasterKey wraps data keys when KMS is disabled. Base64, 32 bytes.
	LocalMasterKey string
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type OTPConfig struct {
	ExpireMinutes int
	MaxAttempts   int
	BanMinutes    int
}

type MailConfig struct {
	AppName  string
	SMTPHost string
	SMTPPort int
	Username string
	Password string
	From     string
}

type GoogleConfig struct {
	ClientID string
}

type ChatConfig struct {
	EnforceGroupMembership bool
	UseRedisRegistry       bool
}

type BucketingConfig struct {
	UserBuckets int
}

type RateLimitConfig struct {
	AuthRequests int
	AuthWindow   time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type JobsConfig struct {
	RejectedFriendshipRetention time.Duration
	RejectedFriendshipInterval  time.Duration
}

var (
	current *Config
	mu      sync.RWMutex
)

// LoadConfig reads the environment (and an optional .env file) into a Config.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded, using process environment: %v", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			TLSPort:      getEnv("TLS_PORT", "8443"),
			EnableTLS:    getEnvAsBool("ENABLE_TLS", false),
			AutoCert:     getEnvAsBool("AUTO_CERT", false),
			Domain:       getEnv("DOMAIN", ""),
			Email:        getEnv("ACME_EMAIL", ""),
			CertFile:     getEnv("TLS_CERT_FILE", ""),
			KeyFile:      getEnv("TLS_KEY_FILE", ""),
			AutoCertDir:  getEnv("AUTO_CERT_DIR", "./certs"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Mongo: MongoConfig{
			URI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGO_DATABASE", "social"),
			ConnectTimeout: getEnvAsDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			URL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 50),

			TLSCAFile:   getEnv("REDIS_TLS_CA_FILE", "/app/certs/ca.crt"),
			TLSCertFile: getEnv("REDIS_TLS_CERT_FILE", "/app/certs/redis.crt"),
			TLSKeyFile:  getEnv("REDIS_TLS_KEY_FILE", "/app/certs/redis.key"),
		},
		Scylla: ScyllaConfig{
			Enabled:  getEnvAsBool("SCYLLA_ENABLED", false),
			Nodes:    getEnvAsSlice("SCYLLA_NODES", []string{"localhost:9042"}),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "social_chat"),
			Username: getEnv("SCYLLA_USERNAME", ""),
			Password: getEnv("SCYLLA_PASSWORD", ""),

			TLSCAFile: getEnv("SCYLLA_TLS_CA_FILE", ""),
		},
		Kafka: KafkaConfig{
			Enabled:    getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:    getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			EmailTopic: getEnv("KAFKA_EMAIL_TOPIC", "email.outbound"),
			GroupID:    getEnv("KAFKA_GROUP_ID", "social-mailer"),
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:   getEnvAsBool("ELASTICSEARCH_ENABLED", false),
			URL:       getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username:  getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:  getEnv("ELASTICSEARCH_PASSWORD", ""),
			UserIndex: getEnv("ELASTICSEARCH_USER_INDEX", "users"),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:       getEnvAsBool("CLICKHOUSE_ENABLED", false),
			URL:           getEnv("CLICKHOUSE_URL", "localhost:9000"),
			Username:      getEnv("CLICKHOUSE_USERNAME", "default"),
			Password:      getEnv("CLICKHOUSE_PASSWORD", ""),
			Database:      getEnv("CLICKHOUSE_DATABASE", "social_audit"),
			CAFile:        getEnv("CLICKHOUSE_CA_FILE", ""),
			BatchSize:     getEnvAsInt("CLICKHOUSE_BATCH_SIZE", 500),
			FlushInterval: getEnvAsDuration("CLICKHOUSE_FLUSH_INTERVAL", 5*time.Second),
		},
		KMS: KMSConfig{
			Enabled: getEnvAsBool("KMS_ENABLED", false),
			KeyID:   getEnv("KMS_KEY_ID", ""),
			Region:  getEnv("AWS_REGION", "us-east-1"),
		},
		S3: S3Config{
			Enabled:         getEnvAsBool("S3_ENABLED", false),
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Bucket:          getEnv("AWS_BUCKET_NAME", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Folder:          getEnv("APP_NAME", "SocialApp"),
			UsePathStyle:    getEnvAsBool("S3_USE_PATH_STYLE", false),
			SignedURLExpiry: getEnvAsDuration("S3_SIGNED_URL_EXPIRY", 24*time.Hour),
		},
		Hashing: HashingConfig{
			Argon2MemoryCost:  getEnvAsInt("ARGON2_MEMORY_COST", 64*1024),
			Argon2TimeCost:    getEnvAsInt("ARGON2_TIME_COST", 3),
			Argon2Parallelism: getEnvAsInt("ARGON2_PARALLELISM", 2),
			Pepper:            getEnv("HASH_PEPPER", ""),
			PepperVersion:     getEnvAsInt("HASH_PEPPER_VERSION", 1),
			PreviousPeppers:   getEnvAsSlice("HASH_PREVIOUS_PEPPERS", nil),
		},
		Encryption: EncryptionConfig{
			LocalMasterKey: getEnv("ENCRYPTION_LOCAL_MASTER_KEY", ""),
		},
		JWT: JWTConfig{
			AccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", time.Hour),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
			Issuer:        getEnv("JWT_ISSUER", "social-service"),
		},
		OTP: OTPConfig{
			ExpireMinutes: getEnvAsInt("OTP_EXPIRE_MINUTES", 10),
			MaxAttempts:   getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			BanMinutes:    getEnvAsInt("OTP_BAN_MINUTES", 5),
		},
		Mail: MailConfig{
			AppName:  getEnv("APP_NAME", "SocialApp"),
			SMTPHost: getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort: getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
		Google: GoogleConfig{
			ClientID: getEnv("GOOGLE_CLIENT_ID", ""),
		},
		Chat: ChatConfig{
			EnforceGroupMembership: getEnvAsBool("CHAT_ENFORCE_GROUP_MEMBERSHIP", false),
			UseRedisRegistry:       getEnvAsBool("CHAT_REDIS_REGISTRY", false),
		},
		Bucketing: BucketingConfig{
			UserBuckets: getEnvAsInt("USER_BUCKETS", 32),
		},
		RateLimit: RateLimitConfig{
			AuthRequests: getEnvAsInt("RATE_LIMIT_AUTH_REQUESTS", 20),
			AuthWindow:   getEnvAsDuration("RATE_LIMIT_AUTH_WINDOW", time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Jobs: JobsConfig{
			RejectedFriendshipRetention: getEnvAsDuration("REJECTED_FRIENDSHIP_RETENTION", 24*time.Hour),
			RejectedFriendshipInterval:  getEnvAsDuration("REJECTED_FRIENDSHIP_CLEANUP_INTERVAL", 24*time.Hour),
		},
	}

	if !cfg.IsProduction() {
		cfg.applyDevelopmentDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mu.Lock()
	current = cfg
	mu.Unlock()

	return cfg, nil
}

// Get returns the last configuration loaded by LoadConfig.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func (c *Config) applyDevelopmentDefaults() {
	if c.JWT.AccessSecret == "" {
		c.JWT.AccessSecret = "dev-access-secret-change-me"
	}
	if c.JWT.RefreshSecret == "" {
		c.JWT.RefreshSecret = "dev-refresh-secret-change-me"
	}
	if c.Hashing.Pepper == "" {
		c.Hashing.Pepper = "dev-pepper"
	}
}

// Validate checks settings that would make the service unsafe or unusable.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required"))
	}
	if c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if c.Hashing.Pepper == "" {
		errs = append(errs, errors.New("HASH_PEPPER is required"))
	}
	if c.OTP.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("OTP_MAX_ATTEMPTS must be positive, got %d", c.OTP.MaxAttempts))
	}
	if c.KMS.Enabled && c.KMS.KeyID == "" {
		errs = append(errs, errors.New("KMS_KEY_ID is required when KMS is enabled"))
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, errors.New("AWS_BUCKET_NAME is required when S3 is enabled"))
	}
	if c.IsProduction() && c.Server.EnableTLS && !c.Server.AutoCert && (c.Server.CertFile == "" || c.Server.KeyFile == "") {
		errs = append(errs, errors.New("TLS_CERT_FILE and TLS_KEY_FILE are required when TLS is enabled without autocert"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return ":" + c.Server.Port
}

func (c *Config) GetTLSAddress() string {
	return ":" + c.Server.TLSPort
}

func (o OTPConfig) Expiry() time.Duration {
	return time.Duration(o.ExpireMinutes) * time.Minute
}

func (o OTPConfig) BanDuration() time.Duration {
	return time.Duration(o.BanMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
