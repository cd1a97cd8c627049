package container

import (
	"context"
	"errors"
	"testing"

	"fjacquet/ledgerflow/internal/annotator"
	"fjacquet/ledgerflow/internal/config"
	"fjacquet/ledgerflow/internal/logging"
	"fjacquet/ledgerflow/internal/parsererror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Categories: []string{"Dining", "Transport"},
		Model: config.ModelConfig{
			Provider:       config.ModelProviderOllama,
			Name:           "qwen2.5",
			Endpoint:       "http://localhost:11434",
			TimeoutSeconds: 30,
			MaxRetries:     1,
		},
	}
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Metadata.Period = "2024-05"
	return cfg
}

func TestNewContainer(t *testing.T) {
	c, err := NewContainer(testConfig(), WithLogger(logging.NewMockLogger()))
	require.NoError(t, err)

	assert.NotNil(t, c.GetLogger())
	assert.NotNil(t, c.GetConfig())
	assert.NotNil(t, c.GetNormalizer())
	assert.NotNil(t, c.GetStore())
	assert.NotNil(t, c.GetReportGenerator())
	assert.Contains(t, c.GetRegistry().Names(), "wechat")
	assert.Nil(t, c.collaborator, "the model client is built on first use")

	first, err := c.GetAnnotator(context.Background())
	require.NoError(t, err)
	second, err := c.GetAnnotator(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.IsType(t, &annotator.OllamaClient{}, c.collaborator)
	assert.NoError(t, c.Close())
}

func TestNewContainer_NilConfig(t *testing.T) {
	_, err := NewContainer(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration cannot be nil")
}

func TestNewContainer_WithCollaborator(t *testing.T) {
	stub := annotator.CollaboratorFunc(func(context.Context, string, []string) (string, error) {
		return "Dining", nil
	})
	cfg := testConfig()
	cfg.Model.Endpoint = ""

	c, err := NewContainer(cfg, WithCollaborator(stub), WithLogger(logging.NewMockLogger()))
	require.NoError(t, err)
	ann, err := c.GetAnnotator(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ann)
}

func TestNewContainer_ModelSettingsNeededOnlyForAnnotation(t *testing.T) {
	cfg := testConfig()
	cfg.Model.Provider = config.ModelProviderGemini
	cfg.Model.APIKey = ""

	c, err := NewContainer(cfg, WithLogger(logging.NewMockLogger()))
	require.NoError(t, err)
	assert.NotNil(t, c.GetReportGenerator())
	assert.NotNil(t, c.GetNormalizer())

	_, err = c.GetAnnotator(context.Background())
	var cfgErr *parsererror.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "model.api_key", cfgErr.Field)
	assert.NoError(t, c.Close())
}

func TestNewContainer_InvalidProviderOverride(t *testing.T) {
	cfg := testConfig()
	cfg.Providers = map[string]config.ProviderConfig{"broken": {TimeColumn: "When"}}

	_, err := NewContainer(cfg, WithLogger(logging.NewMockLogger()))
	var cfgErr *parsererror.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}
