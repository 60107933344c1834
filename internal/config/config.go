package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Mongo     MongoConfig     `json:"mongo"`
	Redis     RedisConfig     `json:"redis"`
	Auth      AuthConfig      `json:"auth"`
	AI        AIConfig        `json:"ai"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Log       LogConfig       `json:"log"`
}

type ServerConfig struct {
	Host                 string        `json:"host"`
	Port                 string        `json:"port"`
	APIPrefix            string        `json:"api_prefix"`
	CORSOrigins          []string      `json:"cors_origins"`
	CORSAllowCredentials bool          `json:"cors_allow_credentials"`
	ReadTimeout          time.Duration `json:"read_timeout"`
	WriteTimeout         time.Duration `json:"write_timeout"`
	IdleTimeout          time.Duration `json:"idle_timeout"`
	ShutdownTimeout      time.Duration `json:"shutdown_timeout"`
	Environment          string        `json:"environment"`
}

type MongoConfig struct {
	URI     string        `json:"-"`
	DB      string        `json:"db"`
	TestDB  string        `json:"test_db"`
	Timeout time.Duration `json:"timeout"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type AuthConfig struct {
	JWTSecret       string        `json:"-"`
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"`
}

type AIConfig struct {
	APIKey   string        `json:"-"`
	Model    string        `json:"model"`
	BaseURL  string        `json:"base_url"`
	MaxChars int           `json:"max_chars"`
	Timeout  time.Duration `json:"timeout"`
	CacheTTL time.Duration `json:"cache_ttl"`
}

type RateLimitConfig struct {
	Enabled    bool          `json:"enabled"`
	AuthLimit  int           `json:"auth_limit"`
	AuthWindow time.Duration `json:"auth_window"`
}

type LogConfig struct {
	Level string `json:"level"`
	JSON  bool   `json:"json"`
}

var (
	ErrMissingMongoURI  = errors.New("MONGODB_URI is required")
	ErrMissingJWTSecret = errors.New("JWT_SECRET is required")
)

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Host:                 getEnv("HOST", "0.0.0.0"),
			Port:                 getEnv("PORT", "8000"),
			APIPrefix:            normalizePrefix(getEnv("API_PREFIX", "/api")),
			CORSOrigins:          getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			CORSAllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", true),
			ReadTimeout:          getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:         getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:          getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:      getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			Environment:          getEnv("ENVIRONMENT", "local"),
		},
		Mongo: MongoConfig{
			URI:     getEnv("MONGODB_URI", ""),
			DB:      getEnv("MONGODB_DB", "task_manager"),
			TestDB:  getEnv("MONGODB_TEST_DB", "task_manager_test"),
			Timeout: getEnvAsDuration("MONGODB_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", ""),
			AccessTokenTTL:  time.Duration(getEnvAsInt("JWT_ACCESS_MINUTES", 15)) * time.Minute,
			RefreshTokenTTL: time.Duration(getEnvAsInt("JWT_REFRESH_DAYS", 7)) * 24 * time.Hour,
		},
		AI: AIConfig{
			APIKey:   strings.TrimSpace(getEnv("OPENAI_API_KEY", "")),
			Model:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:  getEnv("OPENAI_BASE_URL", ""),
			MaxChars: getEnvAsInt("AI_MAX_CHARS", 1200),
			Timeout:  getEnvAsDuration("AI_TIMEOUT", 10*time.Second),
			CacheTTL: getEnvAsDuration("AI_CACHE_TTL", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getEnvAsBool("RATE_LIMIT_ENABLED", true),
			AuthLimit:  getEnvAsInt("AUTH_RATE_LIMIT", 20),
			AuthWindow: getEnvAsDuration("AUTH_RATE_WINDOW", time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			JSON:  getEnvAsBool("LOG_JSON", false),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate enforces the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return ErrMissingMongoURI
	}
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.IsProduction() && len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 bytes in production")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.AI.MaxChars <= 0 {
		return fmt.Errorf("AI_MAX_CHARS must be positive")
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) AIEnabled() bool {
	return c.AI.APIKey != ""
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || prefix == "/" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimRight(prefix, "/")
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
