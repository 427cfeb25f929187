package lib

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	// App
	Port        string
	Env         string
	CorsOrigins string
	JWTSecret   string

	// Backends
	GraphBackend        string // mongo | neo4j | memory
	NotificationBackend string // mongo | sqlite | memory

	// MongoDB
	MongoURI      string
	MongoDatabase string

	// SQLite
	DBPath string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Connections and suggestions
	MutualWeight        int
	SuggestionLimit     int
	MutationAttempts    int
	ConnectionsCacheTTL time.Duration
}

// LoadConfig reads configuration from the environment, loading .env if present
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "3000"),
		Env:                 getEnv("ENV", "development"),
		CorsOrigins:         getEnv("CORS_ORIGINS", "*"),
		JWTSecret:           getEnv("JWT_SECRET", "fallback-secret-key"),
		GraphBackend:        getEnv("GRAPH_BACKEND", "mongo"),
		NotificationBackend: getEnv("NOTIFICATION_BACKEND", "mongo"),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:       getEnv("MONGO_DATABASE", "alumni_network"),
		DBPath:              getEnv("DB_PATH", "./alumni.db"),
		Neo4jURI:            getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:           getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:       getEnv("NEO4J_PASSWORD", "password"),
		MutualWeight:        getEnvInt("MUTUAL_WEIGHT", 2),
		SuggestionLimit:     getEnvInt("SUGGESTION_LIMIT", 10),
		MutationAttempts:    getEnvInt("MUTATION_ATTEMPTS", 3),
		ConnectionsCacheTTL: getEnvDuration("CONNECTIONS_CACHE_TTL", 5*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	switch c.GraphBackend {
	case "mongo", "neo4j", "memory":
	default:
		return fmt.Errorf("GRAPH_BACKEND must be mongo, neo4j or memory, got %q", c.GraphBackend)
	}
	switch c.NotificationBackend {
	case "mongo", "sqlite", "memory":
	default:
		return fmt.Errorf("NOTIFICATION_BACKEND must be mongo, sqlite or memory, got %q", c.NotificationBackend)
	}
	if c.usesMongo() && c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.GraphBackend == "neo4j" && c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.MutualWeight < 0 {
		return fmt.Errorf("MUTUAL_WEIGHT must not be negative")
	}
	if c.SuggestionLimit <= 0 {
		return fmt.Errorf("SUGGESTION_LIMIT must be positive")
	}
	if c.MutationAttempts <= 0 {
		return fmt.Errorf("MUTATION_ATTEMPTS must be positive")
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) usesMongo() bool {
	return c.GraphBackend == "mongo" || c.NotificationBackend == "mongo"
}

// UsesMongo reports whether any backend needs a MongoDB connection
func (c *Config) UsesMongo() bool {
	return c.usesMongo()
}

// AllowOrigins returns the CORS origins as the comma separated list fiber expects
func (c *Config) AllowOrigins() string {
	parts := strings.Split(c.CorsOrigins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ",")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
