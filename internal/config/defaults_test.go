package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults_PassesValidation(t *testing.T) {
	cfg := NewDefaults()
	cfg.Project.Name = "placeholder"
	assert.NoError(t, Validate(cfg))
}

func TestNewDefaults_HasThreeCoreProviders(t *testing.T) {
	cfg := NewDefaults()
	require.Contains(t, cfg.Providers, "claude")
	require.Contains(t, cfg.Providers, "codex")
	require.Contains(t, cfg.Providers, "gemini")
}

func TestNewDefaults_QABatchSizePositive(t *testing.T) {
	cfg := NewDefaults()
	assert.Greater(t, cfg.QA.BatchSize, 0)
}
