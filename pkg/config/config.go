package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Object store drivers accepted by STORAGE_DRIVER.
const (
	StorageS3     = "s3"
	StorageMemory = "memory"
)

// Processing backends accepted by INGESTION_BACKEND.
const (
	BackendSimulated = "simulated"
	BackendHTTP      = "http"
	BackendAMQP      = "amqp"
)

type Config struct {
	Env  string
	Port int
	// SecretSource names the secret bundle credentials were resolved from; "local" means plain environment.
	SecretSource string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Ingestion IngestionConfig
	CORS      CORSConfig
	Log       LogConfig
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// StorageConfig points at an S3 compatible object store.
type StorageConfig struct {
	Driver         string
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	PresignTTL     time.Duration
	MaxUploadBytes int64
}

// IngestionConfig tunes the ingestion task workflow.
type IngestionConfig struct {
	CacheTTL        time.Duration
	Backend         string
	CallbackURL     string
	CallbackSecret  string
	SimulatedDelay  time.Duration
	ProcessorURL    string
	ProcessorToken  string
	AMQPURL         string
	AMQPQueue       string
	CallbackWorkers int
	CallbackRetries int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.SecretSource = v.GetString("SECRET_NAME")

	cfg.Database = DatabaseConfig{
		URL:          v.GetString("DATABASE_URL"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	maxUpload := v.GetInt64("UPLOAD_MAX_BYTES")
	if maxUpload <= 0 {
		maxUpload = 25 << 20
	}
	cfg.Storage = StorageConfig{
		Driver:         strings.ToLower(v.GetString("STORAGE_DRIVER")),
		Endpoint:       v.GetString("S3_ENDPOINT"),
		Region:         v.GetString("AWS_REGION"),
		AccessKey:      v.GetString("AWS_ACCESS_KEY_ID"),
		SecretKey:      v.GetString("AWS_SECRET_ACCESS_KEY"),
		Bucket:         v.GetString("AWS_S3_BUCKET"),
		UseSSL:         v.GetBool("S3_USE_SSL"),
		PresignTTL:     parseDuration(v.GetString("S3_PRESIGN_TTL"), 5*time.Minute),
		MaxUploadBytes: maxUpload,
	}

	cfg.Ingestion = IngestionConfig{
		CacheTTL:        parseDuration(v.GetString("INGESTION_CACHE_TTL"), 180*time.Second),
		Backend:         strings.ToLower(v.GetString("INGESTION_BACKEND")),
		CallbackURL:     v.GetString("INGESTION_CALLBACK_URL"),
		CallbackSecret:  v.GetString("INGESTION_CALLBACK_SECRET"),
		SimulatedDelay:  parseDuration(v.GetString("INGESTION_SIMULATED_DELAY"), 20*time.Second),
		ProcessorURL:    v.GetString("INGESTION_PROCESSOR_URL"),
		ProcessorToken:  v.GetString("INGESTION_PROCESSOR_TOKEN"),
		AMQPURL:         v.GetString("INGESTION_AMQP_URL"),
		AMQPQueue:       v.GetString("INGESTION_AMQP_QUEUE"),
		CallbackWorkers: v.GetInt("INGESTION_CALLBACK_WORKERS"),
		CallbackRetries: v.GetInt("INGESTION_CALLBACK_RETRIES"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	switch c.Storage.Driver {
	case StorageS3:
		if c.Storage.Bucket == "" {
			return errors.New("config: AWS_S3_BUCKET is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	switch c.Ingestion.Backend {
	case BackendSimulated:
		if c.Ingestion.CallbackURL == "" {
			return errors.New("config: INGESTION_CALLBACK_URL is required for the simulated backend")
		}
	case BackendHTTP:
		if c.Ingestion.ProcessorURL == "" {
			return errors.New("config: INGESTION_PROCESSOR_URL is required for the http backend")
		}
	case BackendAMQP:
		if c.Ingestion.AMQPURL == "" {
			return errors.New("config: INGESTION_AMQP_URL is required for the amqp backend")
		}
	default:
		return fmt.Errorf("config: unknown INGESTION_BACKEND %q", c.Ingestion.Backend)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 3000)
	v.SetDefault("SECRET_NAME", "local")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "docmgmt")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "1h")
	v.SetDefault("JWT_ISSUER", "docmgmt-api")

	v.SetDefault("STORAGE_DRIVER", StorageS3)
	v.SetDefault("S3_ENDPOINT", "s3.amazonaws.com")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("AWS_S3_BUCKET", "documents")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("S3_PRESIGN_TTL", "5m")
	v.SetDefault("UPLOAD_MAX_BYTES", 25<<20)

	v.SetDefault("INGESTION_CACHE_TTL", "180s")
	v.SetDefault("INGESTION_BACKEND", BackendSimulated)
	v.SetDefault("INGESTION_CALLBACK_URL", "http://localhost:3000/ingestion/callback")
	v.SetDefault("INGESTION_CALLBACK_SECRET", "")
	v.SetDefault("INGESTION_SIMULATED_DELAY", "20s")
	v.SetDefault("INGESTION_PROCESSOR_URL", "")
	v.SetDefault("INGESTION_PROCESSOR_TOKEN", "")
	v.SetDefault("INGESTION_AMQP_URL", "")
	v.SetDefault("INGESTION_AMQP_QUEUE", "ingestion.tasks")
	v.SetDefault("INGESTION_CALLBACK_WORKERS", 2)
	v.SetDefault("INGESTION_CALLBACK_RETRIES", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
