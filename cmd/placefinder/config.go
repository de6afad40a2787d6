package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/placefinder"
	"github.com/poiesic/placefinder/ai"
	"github.com/poiesic/placefinder/classify"
	"github.com/poiesic/placefinder/ingestion"
	"github.com/poiesic/placefinder/places"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Config is the operator configuration. Values come from defaults, then the
// YAML file, then environment variables and flags.
type Config struct {
	DB         string           `yaml:"db"`
	Places     PlacesConfig     `yaml:"places"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Classify   QueueConfig      `yaml:"classify"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
}

type PlacesConfig struct {
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

type ClassifierConfig struct {
	Host                string  `yaml:"host"`
	Model               string  `yaml:"model"`
	Token               string  `yaml:"token"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

type QueueConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
}

type EnrichmentConfig struct {
	BatchSize int `yaml:"batch_size"`
}

func defaultConfig() Config {
	aiDefaults := ai.DefaultConfig()
	queueDefaults := classify.DefaultConfig()
	return Config{
		DB: "./places_db",
		Places: PlacesConfig{
			BaseURL:       places.DefaultBaseURL,
			CacheTTL:      places.DefaultCacheTTL,
			RetryAttempts: 2,
			RetryDelay:    250 * time.Millisecond,
		},
		Classifier: ClassifierConfig{
			Host:                aiDefaults.ClassifierHost,
			Model:               aiDefaults.ClassifierModel,
			ConfidenceThreshold: aiDefaults.ConfidenceThreshold,
		},
		Classify: QueueConfig{
			BatchSize:  queueDefaults.BatchSize,
			BatchDelay: queueDefaults.BatchDelay,
		},
		Enrichment: EnrichmentConfig{BatchSize: ingestion.DefaultBatchSize},
	}
}

// loadConfig reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyFlags overrides file values with flags and environment variables
// that were actually set.
func (cfg *Config) applyFlags(c *cli.Context) {
	override := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	override("db", &cfg.DB)
	override("places-key", &cfg.Places.APIKey)
	override("places-url", &cfg.Places.BaseURL)
	override("classifier-host", &cfg.Classifier.Host)
	override("classifier-model", &cfg.Classifier.Model)
	override("classifier-token", &cfg.Classifier.Token)
}

func (cfg Config) aiConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithClassifierHost(cfg.Classifier.Host),
		ai.WithClassifierModel(cfg.Classifier.Model),
		ai.WithClassifierToken(cfg.Classifier.Token),
		ai.WithConfidenceThreshold(cfg.Classifier.ConfidenceThreshold),
	)
}

func (cfg Config) engineOptions() []placefinder.EngineOption {
	placesOpts := []places.Option{
		places.WithAPIKey(cfg.Places.APIKey),
		places.WithCacheTTL(cfg.Places.CacheTTL),
		places.WithRetry(cfg.Places.RetryAttempts, cfg.Places.RetryDelay),
	}
	if cfg.Places.BaseURL != "" {
		placesOpts = append(placesOpts, places.WithBaseURL(cfg.Places.BaseURL))
	}

	return []placefinder.EngineOption{
		placefinder.WithAIConfig(cfg.aiConfig()),
		placefinder.WithPlacesOptions(placesOpts...),
		placefinder.WithClassifyConfig(classify.Config{
			BatchSize:  cfg.Classify.BatchSize,
			BatchDelay: cfg.Classify.BatchDelay,
		}),
		placefinder.WithEnrichmentBatchSize(cfg.Enrichment.BatchSize),
	}
}

// loadEnvFile loads variables from name into the environment without
// overriding ones already set. A missing default file is not an error.
func loadEnvFile(name string) error {
	explicit := name != ""
	if !explicit {
		name = ".env"
	}
	err := godotenv.Load(name)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
