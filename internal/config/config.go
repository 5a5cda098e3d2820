package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Provider exposes application configuration to the rest of the system.
// Using an interface keeps components testable without a full environment.
type Provider interface {
	GetAddr() string
	GetSessionSecret() string
	GetDBUrl() string
	GetDBUser() string
	GetDBPass() string
	GetDBNs() string
	GetDBDb() string
	GetAutosaveInterval() time.Duration
}

// Config holds all configuration for the application, loaded from the
// environment.
type Config struct {
	Addr             string
	SessionSecret    string
	DBUrl            string
	DBUser           string
	DBPass           string
	DBNs             string
	DBDb             string
	AutosaveInterval time.Duration
}

// DefaultAutosaveInterval is how often the whiteboard engine persists dirty
// boards when WHITEBOARD_AUTOSAVE_INTERVAL is not set.
const DefaultAutosaveInterval = 30 * time.Second

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:             getEnv("APP_ADDR", ":8080"),
		SessionSecret:    os.Getenv("SESSION_SECRET"),
		DBUrl:            os.Getenv("SURREAL_URL"),
		DBUser:           os.Getenv("SURREAL_USER"),
		DBPass:           os.Getenv("SURREAL_PASS"),
		DBNs:             os.Getenv("SURREAL_NS"),
		DBDb:             os.Getenv("SURREAL_DB"),
		AutosaveInterval: DefaultAutosaveInterval,
	}

	if raw := os.Getenv("WHITEBOARD_AUTOSAVE_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("Invalid WHITEBOARD_AUTOSAVE_INTERVAL %q: %v", raw, err)
		}
		cfg.AutosaveInterval = d
	}

	if cfg.DBUrl == "" || cfg.DBNs == "" || cfg.DBDb == "" {
		log.Fatal("Required environment variables SURREAL_URL, SURREAL_NS, or SURREAL_DB are not set.")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) GetAddr() string                    { return c.Addr }
func (c *Config) GetSessionSecret() string           { return c.SessionSecret }
func (c *Config) GetDBUrl() string                   { return c.DBUrl }
func (c *Config) GetDBUser() string                  { return c.DBUser }
func (c *Config) GetDBPass() string                  { return c.DBPass }
func (c *Config) GetDBNs() string                    { return c.DBNs }
func (c *Config) GetDBDb() string                    { return c.DBDb }
func (c *Config) GetAutosaveInterval() time.Duration { return c.AutosaveInterval }
