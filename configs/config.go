package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID     string
	AccessKey     string
	SecretKey     string
	BucketName    string
	PublicBaseURL string
}

type Scheduler struct {
	PollInterval    time.Duration
	Lookahead       time.Duration
	StaleAfter      time.Duration
	PublishTimeout  time.Duration
	DegradeCarousel bool
}

type Config struct {
	LinkedInClientID     string
	LinkedInClientSecret string
	LinkedInRedirectURI  string
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURI    string
	PostgresURI          string
	FrontendURL          string
	R2                   R2
	Scheduler            Scheduler
	SecretKey            string
	CookieName           string
}

func LoadConfig() *Config {
	return &Config{
		LinkedInClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
		LinkedInClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
		LinkedInRedirectURI:  getEnv("LINKEDIN_REDIRECT_URI", ""),
		GoogleClientID:       getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:    getEnv("GOOGLE_REDIRECT_URI", ""),
		PostgresURI:          getEnv("POSTGRES_URI", ""),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:     getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:     getEnv("R2_ACCESS_KEY", ""),
			SecretKey:     getEnv("R2_SECRET_KEY", ""),
			BucketName:    getEnv("R2_BUCKET_NAME", ""),
			PublicBaseURL: getEnv("R2_PUBLIC_BASE_URL", ""),
		},
		Scheduler: Scheduler{
			PollInterval:    getDurationEnv("SCHEDULER_POLL_INTERVAL", time.Minute),
			Lookahead:       getDurationEnv("SCHEDULER_LOOKAHEAD", 5*time.Minute),
			StaleAfter:      getDurationEnv("SCHEDULER_STALE_AFTER", 10*time.Minute),
			PublishTimeout:  getDurationEnv("PUBLISH_TIMEOUT", 2*time.Minute),
			DegradeCarousel: getBoolEnv("DEGRADE_CAROUSEL", true),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", "postpilot_session"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
