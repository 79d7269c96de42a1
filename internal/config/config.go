package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all environmentally dependent settings for the BookMatch API.
type Config struct {
	APIPort  int    `env:"BM_PORT" envDefault:"8080"`
	LogLevel string `env:"BM_LOG_LEVEL" envDefault:"info"`

	// Persisted artifacts produced by the offline pipeline.
	ArtifactDBPath string `env:"BM_ARTIFACT_DB_PATH" envDefault:"data/bookmatch.db"`
	IndexDir       string `env:"BM_INDEX_DIR" envDefault:"data/indices"`

	// Fusion sizing.
	DefaultResultCount int `env:"BM_DEFAULT_RESULT_COUNT" envDefault:"10"`
	MaxResultCount     int `env:"BM_MAX_RESULT_COUNT" envDefault:"50"`

	// Fuzzy title search.
	FuzzyMinSimilarity float64 `env:"BM_FUZZY_MIN_SIMILARITY" envDefault:"0.5"`
	SearchMaxResults   int     `env:"BM_SEARCH_MAX_RESULTS" envDefault:"10"`

	// HNSW tuning; zero means library defaults.
	HNSWM              int `env:"BM_HNSW_M" envDefault:"0"`
	HNSWEfConstruction int `env:"BM_HNSW_EF_CONSTRUCTION" envDefault:"0"`
	HNSWEfSearch       int `env:"BM_HNSW_EF_SEARCH" envDefault:"0"`

	ShutdownTimeout time.Duration `env:"BM_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("BM_PORT must be between 1 and 65535")
	}
	if c.ArtifactDBPath == "" {
		return fmt.Errorf("BM_ARTIFACT_DB_PATH is required")
	}
	if c.IndexDir == "" {
		return fmt.Errorf("BM_INDEX_DIR is required")
	}
	if c.DefaultResultCount < 1 {
		return fmt.Errorf("BM_DEFAULT_RESULT_COUNT must be at least 1")
	}
	if c.MaxResultCount < c.DefaultResultCount {
		return fmt.Errorf("BM_MAX_RESULT_COUNT cannot be lower than BM_DEFAULT_RESULT_COUNT")
	}
	if c.FuzzyMinSimilarity < 0 || c.FuzzyMinSimilarity > 1 {
		return fmt.Errorf("BM_FUZZY_MIN_SIMILARITY must be within [0, 1]")
	}
	if c.SearchMaxResults < 1 {
		return fmt.Errorf("BM_SEARCH_MAX_RESULTS must be at least 1")
	}
	return nil
}

// Parse reads a fresh Config from the environment. Exposed for tests.
func Parse() (*Config, error) {
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig loads the process-wide configuration exactly once.
func GetConfig() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		var err error
		cfg, err = Parse()
		if err != nil {
			log.Fatalf("[Config] %v", err)
		}
	})
	return cfg
}
