// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	GenAI     GenAIConfig     `mapstructure:"genai"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// EngineConfig holds the engine-wide retrieval and ranking policy. The
// threshold/auto-match values are tunable policy, not fixed law; strategies
// may override them per entity type.
type EngineConfig struct {
	KFuzzy             int     `mapstructure:"k_fuzzy"`
	KSemantic          int     `mapstructure:"k_semantic"`
	KFinal             int     `mapstructure:"k_final"`
	Threshold          float64 `mapstructure:"threshold"`
	AutoMatchBound     float64 `mapstructure:"auto_match_bound"`
	AutoMatchMargin    float64 `mapstructure:"auto_match_margin"`
	FuzzyTimeout       int     `mapstructure:"fuzzy_timeout"`    // milliseconds
	SemanticTimeout    int     `mapstructure:"semantic_timeout"` // milliseconds
	ParallelSubqueries bool    `mapstructure:"parallel_subqueries"`
	DefaultType        string  `mapstructure:"default_type"`
	StrategiesPath     string  `mapstructure:"strategies_path"`
}

func (e EngineConfig) FuzzyDeadline() time.Duration {
	return time.Duration(e.FuzzyTimeout) * time.Millisecond
}

func (e EngineConfig) SemanticDeadline() time.Duration {
	return time.Duration(e.SemanticTimeout) * time.Millisecond
}

// EmbeddingConfig configures the external embedding provider.
type EmbeddingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// GenAIConfig configures the optional generative disambiguation post-stage.
type GenAIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// CacheConfig configures the optional serialized-candidate cache.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	TTL     int  `mapstructure:"ttl"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
