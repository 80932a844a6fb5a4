package config

import (
	"errors"
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

// Realtime transports understood by the change listener.
const (
	TransportPostgres = "postgres"
	TransportRedis    = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Realtime  RealtimeConfig
	Feed      FeedConfig
	Search    SearchConfig
	Storage   StorageConfig
	WebSocket WebSocketConfig
}

type DatabaseConfig struct {
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

// JWTConfig describes how backend-issued access tokens are verified.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RealtimeConfig controls the change feed subscription.
type RealtimeConfig struct {
	Enabled       bool
	Transport     string
	ChannelPrefix string
	Tables        []string
	MinReconnect  time.Duration
	MaxReconnect  time.Duration
}

// FeedConfig tunes the announcement refetch queue.
type FeedConfig struct {
	RefreshWorkers    int
	RefreshRetries    int
	RefreshRetryDelay time.Duration
	RefreshTimeout    time.Duration
}

// SearchConfig governs caching of filtered announcement views.
type SearchConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// StorageConfig points at the S3-compatible bucket holding attachments.
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	ForcePathStyle  bool
	PresignTTL      time.Duration
}

// WebSocketConfig toggles the announcement stream endpoint.
type WebSocketConfig struct {
	Enabled bool
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
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
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: v.GetString("JWT_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	transport := strings.ToLower(strings.TrimSpace(v.GetString("REALTIME_TRANSPORT")))
	if transport != TransportRedis {
		transport = TransportPostgres
	}
	cfg.Realtime = RealtimeConfig{
		Enabled:       v.GetBool("ENABLE_REALTIME"),
		Transport:     transport,
		ChannelPrefix: v.GetString("REALTIME_CHANNEL_PREFIX"),
		Tables:        splitAndTrim(v.GetString("REALTIME_TABLES")),
		MinReconnect:  parseDuration(v.GetString("REALTIME_MIN_RECONNECT"), 10*time.Second),
		MaxReconnect:  parseDuration(v.GetString("REALTIME_MAX_RECONNECT"), time.Minute),
	}

	cfg.Feed = FeedConfig{
		RefreshWorkers:    v.GetInt("FEED_REFRESH_WORKERS"),
		RefreshRetries:    v.GetInt("FEED_REFRESH_RETRIES"),
		RefreshRetryDelay: parseDuration(v.GetString("FEED_REFRESH_RETRY_DELAY"), 2*time.Second),
		RefreshTimeout:    parseDuration(v.GetString("FEED_REFRESH_TIMEOUT"), 15*time.Second),
	}

	cfg.Search = SearchConfig{
		CacheEnabled: v.GetBool("ENABLE_SEARCH_CACHE"),
		CacheTTL:     parseDuration(v.GetString("SEARCH_CACHE_TTL"), time.Minute),
	}

	cfg.Storage = StorageConfig{
		Endpoint:        v.GetString("STORAGE_ENDPOINT"),
		Region:          v.GetString("STORAGE_REGION"),
		AccessKeyID:     v.GetString("STORAGE_ACCESS_KEY_ID"),
		SecretAccessKey: v.GetString("STORAGE_SECRET_ACCESS_KEY"),
		Bucket:          v.GetString("STORAGE_BUCKET"),
		ForcePathStyle:  v.GetBool("STORAGE_FORCE_PATH_STYLE"),
		PresignTTL:      parseDuration(v.GetString("STORAGE_PRESIGN_TTL"), 15*time.Minute),
	}

	cfg.WebSocket = WebSocketConfig{
		Enabled: v.GetBool("ENABLE_WEBSOCKET"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "workhub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "authenticated")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_REALTIME", true)
	v.SetDefault("REALTIME_TRANSPORT", TransportPostgres)
	v.SetDefault("REALTIME_CHANNEL_PREFIX", "realtime_")
	v.SetDefault("REALTIME_TABLES", "announcements,announcement_reactions,announcement_reads")
	v.SetDefault("REALTIME_MIN_RECONNECT", "10s")
	v.SetDefault("REALTIME_MAX_RECONNECT", "1m")

	v.SetDefault("FEED_REFRESH_WORKERS", 1)
	v.SetDefault("FEED_REFRESH_RETRIES", 3)
	v.SetDefault("FEED_REFRESH_RETRY_DELAY", "2s")
	v.SetDefault("FEED_REFRESH_TIMEOUT", "15s")

	v.SetDefault("ENABLE_SEARCH_CACHE", false)
	v.SetDefault("SEARCH_CACHE_TTL", "1m")

	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_ACCESS_KEY_ID", "")
	v.SetDefault("STORAGE_SECRET_ACCESS_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "announcement-attachments")
	v.SetDefault("STORAGE_FORCE_PATH_STYLE", true)
	v.SetDefault("STORAGE_PRESIGN_TTL", "15m")

	v.SetDefault("ENABLE_WEBSOCKET", true)
}

// isMissingFile reports whether viper failed only because the explicit .env file is absent.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
