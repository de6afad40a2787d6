package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ClassifierHost)
	assert.Equal(t, "qwen2.5:3b", cfg.ClassifierModel)
	assert.Equal(t, 0.8, cfg.ConfidenceThreshold)
	assert.Empty(t, cfg.ClassifierToken)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, "http://localhost:11434/v1", cfg.ClassifierHost)
		assert.Equal(t, 0.8, cfg.ConfidenceThreshold)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithClassifierHost("http://classify:9090/v1"),
			WithClassifierModel("gpt-4o-mini"),
			WithClassifierToken("sk-test"),
			WithConfidenceThreshold(0.9),
		)

		assert.Equal(t, "http://classify:9090/v1", cfg.ClassifierHost)
		assert.Equal(t, "gpt-4o-mini", cfg.ClassifierModel)
		assert.Equal(t, "sk-test", cfg.ClassifierToken)
		assert.Equal(t, 0.9, cfg.ConfidenceThreshold)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{name: "already has /v1", host: "http://localhost:11434/v1", expected: "http://localhost:11434/v1"},
		{name: "missing /v1", host: "http://localhost:11434", expected: "http://localhost:11434/v1"},
		{name: "has trailing slash", host: "http://localhost:11434/", expected: "http://localhost:11434/v1"},
		{name: "empty host", host: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{ClassifierHost: tt.host}

			cfg.Normalize()

			assert.Equal(t, tt.expected, cfg.ClassifierHost)
			assert.Equal(t, "none", cfg.ClassifierToken)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ClassifierHost:      "http://localhost:11434",
			ClassifierModel:     "qwen2.5:3b",
			ConfidenceThreshold: 0.8,
		}
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := valid()

		require.NoError(t, cfg.Validate())
		// Should also normalize
		assert.Equal(t, "http://localhost:11434/v1", cfg.ClassifierHost)
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "missing host", mutate: func(c *Config) { c.ClassifierHost = "" }, wantErr: "ClassifierHost"},
		{name: "missing model", mutate: func(c *Config) { c.ClassifierModel = "" }, wantErr: "ClassifierModel"},
		{name: "threshold too low", mutate: func(c *Config) { c.ConfidenceThreshold = -0.1 }, wantErr: "ConfidenceThreshold"},
		{name: "threshold too high", mutate: func(c *Config) { c.ConfidenceThreshold = 1.5 }, wantErr: "ConfidenceThreshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("threshold at boundaries", func(t *testing.T) {
		cfg := valid()
		cfg.ConfidenceThreshold = 0
		assert.NoError(t, cfg.Validate())

		cfg.ConfidenceThreshold = 1
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfigValidate_Integration(t *testing.T) {
	require.NoError(t, NewConfig().Validate())
	require.NoError(t, DefaultConfig().Validate())
}
