package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// We use a struct (not globals) so it's testable and explicit.
type Config struct {
	// Server
	ServerAddr string
	Env        string // "development" or "production"
	CORSOrigin string

	// Media plane (SFU workers)
	AnnouncedIP string // public IP advertised in ICE candidates
	MediaPort   int    // first worker port; worker i binds MediaPort+i (UDP and TCP)
	NumWorkers  int

	// ICE servers handed to clients
	STUNURLs       []string
	TURNURL        string
	TURNUsername   string
	TURNCredential string

	// Comments proxy upstreams
	InvidiousInstances []string
	CommentsRatePerMin int

	// Lobby listing
	RoomsEndpointEnabled bool

	// Redis (for PubSub horizontal scaling)
	RedisURL   string // e.g., "redis://localhost:6379"
	PubSubType string // "memory" or "redis"
}

// Load reads configuration from environment variables.
// A .env file in the working directory is picked up first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddr: "0.0.0.0:" + getEnvOrDefault("PORT", "4000"),
		Env:        getEnvOrDefault("APP_ENV", "development"),
		CORSOrigin: getEnvOrDefault("CORS_ORIGIN", "*"),

		AnnouncedIP: os.Getenv("MEDIASOUP_ANNOUNCED_IP"),
		MediaPort:   getEnvInt("MEDIASOUP_PORT", 40000),
		NumWorkers:  getEnvInt("MEDIASOUP_NUM_WORKERS", 2),

		STUNURLs:       splitEnv("STUN_URLS", "stun:stun.l.google.com:19302"),
		TURNURL:        os.Getenv("TURN_URL"),
		TURNUsername:   os.Getenv("TURN_USERNAME"),
		TURNCredential: os.Getenv("TURN_CREDENTIAL"),

		InvidiousInstances: splitEnv("INVIDIOUS_INSTANCES", "https://inv.nadeko.net,https://invidious.nerdvpn.de"),
		CommentsRatePerMin: getEnvInt("COMMENTS_RATE_PER_MIN", 60),

		RoomsEndpointEnabled: getEnvBool("ROOMS_ENDPOINT_ENABLED", true),

		RedisURL:   os.Getenv("REDIS_URL"),
		PubSubType: getEnvOrDefault("PUBSUB_TYPE", "memory"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.NumWorkers < 1 {
		return fmt.Errorf("MEDIASOUP_NUM_WORKERS must be at least 1")
	}
	if c.MediaPort < 1 || c.MediaPort > 65535-c.NumWorkers {
		return fmt.Errorf("MEDIASOUP_PORT %d leaves no room for %d workers", c.MediaPort, c.NumWorkers)
	}
	if c.PubSubType == "redis" && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when PUBSUB_TYPE=redis")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// splitEnv splits a comma-separated env var into a slice
func splitEnv(key, defaultVal string) []string {
	val := os.Getenv(key)
	if val == "" {
		val = defaultVal
	}
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
