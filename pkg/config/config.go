package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers for profiles and notifications.
const (
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	StoreDriver     string
	PostgresConnStr string
	MongoURI        string
	MongoDatabase   string
	RedisURL        string
	KafkaBrokers    []string
	KafkaTopic      string

	FirebaseCredentialsPath string
	FirebaseStorageBucket   string

	JWTSecret string
	JWTTTL    time.Duration

	ModerationURL     string
	ModerationTimeout time.Duration
	ModerationWatch   bool
	ChatbotURL        string

	DispatchConcurrency int
	DispatchIdempotent  bool
	TagMatchRadiusKm    float64
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:                    v.GetString("port"),
		Env:                     v.GetString("env"),
		LogLevel:                v.GetString("log_level"),
		StoreDriver:             strings.ToLower(v.GetString("store_driver")),
		PostgresConnStr:         v.GetString("postgres_conn_str"),
		MongoURI:                v.GetString("mongo_uri"),
		MongoDatabase:           v.GetString("mongo_database"),
		RedisURL:                v.GetString("redis_url"),
		KafkaBrokers:            splitList(v.GetString("kafka_brokers")),
		KafkaTopic:              v.GetString("kafka_topic"),
		FirebaseCredentialsPath: v.GetString("firebase_credentials_path"),
		FirebaseStorageBucket:   v.GetString("firebase_storage_bucket"),
		JWTSecret:               v.GetString("jwt_secret"),
		JWTTTL:                  v.GetDuration("jwt_ttl"),
		ModerationURL:           v.GetString("moderation_url"),
		ModerationTimeout:       v.GetDuration("moderation_timeout"),
		ModerationWatch:         v.GetBool("moderation_watch"),
		ChatbotURL:              v.GetString("chatbot_url"),
		DispatchConcurrency:     v.GetInt("dispatch_concurrency"),
		DispatchIdempotent:      v.GetBool("dispatch_idempotent"),
		TagMatchRadiusKm:        v.GetFloat64("tag_match_radius_km"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("store_driver", StorePostgres)
	v.SetDefault("mongo_database", "eyewitness")
	v.SetDefault("kafka_topic", "notification-events")

	v.SetDefault("jwt_ttl", "72h")

	v.SetDefault("moderation_timeout", "10s")
	v.SetDefault("moderation_watch", true)

	v.SetDefault("dispatch_concurrency", 8)
	v.SetDefault("dispatch_idempotent", false)
	v.SetDefault("tag_match_radius_km", 10.0)
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StorePostgres, StoreFirestore:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.PostgresConnStr == "" {
		return fmt.Errorf("POSTGRES_CONN_STR environment variable not set")
	}
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI environment variable not set")
	}
	if c.StoreDriver == StoreFirestore && c.FirebaseCredentialsPath == "" {
		return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required for the firestore store driver")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable not set")
	}
	if c.DispatchConcurrency < 1 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be positive, got %d", c.DispatchConcurrency)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
