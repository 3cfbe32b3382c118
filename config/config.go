package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const devJWTSecret = "dev-only-change-me"

// Config holds settings loaded from .env / environment plus the shared clients
// opened by Connect.
type Config struct {
	Port      string `mapstructure:"PORT"`
	GinMode   string `mapstructure:"GIN_MODE"`
	AppEnv    string `mapstructure:"APP_ENV"`
	ClientURL string `mapstructure:"CLIENT_URL"`

	MongoURI string `mapstructure:"MONGO_URI"`
	DBName   string `mapstructure:"DB_NAME"`
	RedisURL string `mapstructure:"REDIS_URL"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	CloudinaryCloudName string `mapstructure:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `mapstructure:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `mapstructure:"CLOUDINARY_API_SECRET"`

	ZeptoAPIURL string `mapstructure:"ZEPTO_API_URL"`
	ZeptoAPIKey string `mapstructure:"ZEPTO_API_KEY"`
	EmailFrom   string `mapstructure:"EMAIL_FROM"`

	PusherKey    string `mapstructure:"PUSHER_KEY"`
	PusherSecret string `mapstructure:"PUSHER_SECRET"`

	ChatDedupWindow time.Duration `mapstructure:"CHAT_DEDUP_WINDOW"`

	RateLimitAuth   int           `mapstructure:"RATE_LIMIT_AUTH"`
	RateLimitChat   int           `mapstructure:"RATE_LIMIT_CHAT"`
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	MongoClient *mongo.Client `mapstructure:"-"`
	Redis       *redis.Client `mapstructure:"-"`
}

var defaults = map[string]any{
	"PORT":                  "8080",
	"GIN_MODE":              "debug",
	"APP_ENV":               "development",
	"CLIENT_URL":            "http://localhost:3000",
	"MONGO_URI":             "mongodb://localhost:27017",
	"DB_NAME":               "build-together",
	"REDIS_URL":             "localhost:6379",
	"JWT_SECRET":            devJWTSecret,
	"TOKEN_TTL":             "168h",
	"CLOUDINARY_CLOUD_NAME": "",
	"CLOUDINARY_API_KEY":    "",
	"CLOUDINARY_API_SECRET": "",
	"ZEPTO_API_URL":         "",
	"ZEPTO_API_KEY":         "",
	"EMAIL_FROM":            "",
	"PUSHER_KEY":            "",
	"PUSHER_SECRET":         "",
	"CHAT_DEDUP_WINDOW":     "2s",
	"RATE_LIMIT_AUTH":       10,
	"RATE_LIMIT_CHAT":       30,
	"RATE_LIMIT_WINDOW":     "1m",
}

// Load reads an optional .env file and the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether the app runs in a local or test environment.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "", "development", "test":
		return true
	}
	return false
}

func (c *Config) Validate() error {
	if c.DBName == "" {
		return errors.New("DB_NAME is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if !c.IsDevelopment() && (c.JWTSecret == "" || c.JWTSecret == devJWTSecret) {
		return errors.New("JWT_SECRET must be set outside development")
	}
	return nil
}

// Connect opens and pings MongoDB and Redis.
func (c *Config) Connect(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.MongoURI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("mongo ping: %w", err)
	}
	c.MongoClient = client

	opts, err := redisOptions(c.RedisURL)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping: %w", err)
	}
	c.Redis = rdb
	return nil
}

// DB returns the application database.
func (c *Config) DB() *mongo.Database {
	return c.MongoClient.Database(c.DBName)
}

// Close releases the clients opened by Connect.
func (c *Config) Close(ctx context.Context) error {
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.MongoClient != nil {
		errs = append(errs, c.MongoClient.Disconnect(ctx))
	}
	return errors.Join(errs...)
}

// redisOptions accepts either a redis:// URL or a bare host:port.
func redisOptions(raw string) (*redis.Options, error) {
	if strings.HasPrefix(raw, "redis://") || strings.HasPrefix(raw, "rediss://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: raw}, nil
}
