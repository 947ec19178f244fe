package config

import (
	"os"
	"strconv"
	"time"
)

type Google struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

type Publisher struct {
	XAPIBaseURL        string
	PublishTimeout     time.Duration
	LeaseTTL           time.Duration
	TriggerInterval    time.Duration
	TriggerConcurrency int
	TriggerBatchSize   int
	TriggerToken       string
}

type Config struct {
	Port        string
	PostgresURI string
	RedisURI    string
	FrontendURL string
	Google      Google
	Publisher   Publisher
	SecretKey   string
	CookieName  string
}

func LoadConfig() *Config {
	return &Config{
		Port:        getEnv("PORT", "3000"),
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", "localhost:6379"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		Google: Google{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:3000/login/callback"),
		},
		Publisher: Publisher{
			XAPIBaseURL:        getEnv("X_API_BASE_URL", "https://api.twitter.com"),
			PublishTimeout:     getDuration("PUBLISH_TIMEOUT", 15*time.Second),
			LeaseTTL:           getDuration("LEASE_TTL", 2*time.Minute),
			TriggerInterval:    getDuration("TRIGGER_INTERVAL", time.Minute),
			TriggerConcurrency: getInt("TRIGGER_CONCURRENCY", 10),
			TriggerBatchSize:   getInt("TRIGGER_BATCH_SIZE", 100),
			TriggerToken:       getEnv("TRIGGER_TOKEN", ""),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", "xscheduler_session"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
