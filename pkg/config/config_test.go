package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Server.RequestDeadlineSeconds)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Equal(t, 0.3, *cfg.LLM.Temperature)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.Equal(t, 1500, cfg.LLM.SummaryMaxTokens)
	assert.Equal(t, 60, cfg.LLM.TimeoutSeconds)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 1536, cfg.Embedder.Dimension)
	assert.Equal(t, "building_regulations", cfg.Qdrant.Collection)
	assert.Equal(t, 5, cfg.Retrieval.TopKDefault)
	require.NotNil(t, cfg.Retrieval.RelevanceThreshold)
	assert.Equal(t, 0.7, *cfg.Retrieval.RelevanceThreshold)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, "data/knowledge_summary.json", cfg.Knowledge.Path)
	assert.Equal(t, 20, cfg.Knowledge.SampleMin)
	assert.Equal(t, 30, cfg.Knowledge.SampleMax)
	assert.Equal(t, RefusalPhrases(), cfg.RefusalPhrases)
}

func TestSetDefaults_PreservesExplicitValues(t *testing.T) {
	temp := 0.9
	cfg := &Config{
		LLM:       LLMConfig{Temperature: &temp, MaxTokens: 1000},
		Retrieval: RetrievalConfig{TopKDefault: 3},
	}
	cfg.SetDefaults()

	assert.Equal(t, 0.9, *cfg.LLM.Temperature)
	assert.Equal(t, 1000, cfg.LLM.MaxTokens)
	assert.Equal(t, 3, cfg.Retrieval.TopKDefault)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad temperature", func(c *Config) { t := 3.0; c.LLM.Temperature = &t }, "llm.temperature"},
		{"top_k too large", func(c *Config) { c.Retrieval.TopKDefault = 50 }, "retrieval.top_k_default"},
		{"threshold out of range", func(c *Config) { t := 1.5; c.Retrieval.RelevanceThreshold = &t }, "retrieval.relevance_threshold"},
		{"sample range inverted", func(c *Config) { c.Knowledge.SampleMin = 40 }, "knowledge.sample_min"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"extra refusal phrase", func(c *Config) { c.RefusalPhrases = append(c.RefusalPhrases, "no idea") }, "refusal_phrases"},
		{"altered refusal phrase", func(c *Config) { c.RefusalPhrases[0] = "i will not answer" }, "refusal_phrases"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("TEST_QDRANT_HOST", "qdrant.internal")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
qdrant:
  host: ${TEST_QDRANT_HOST}
  collection: ${TEST_COLLECTION:-regs_test}
retrieval:
  top_k_default: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, loader, err := LoadConfigFile(context.Background(), path)
	require.NoError(t, err)
	defer loader.Close()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, "regs_test", cfg.Qdrant.Collection)
	assert.Equal(t, 8, cfg.Retrieval.TopKDefault)
	// Defaults still applied for unspecified keys.
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
}

func TestLoadConfigFile_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k_default: 99\n"), 0o644))

	_, _, err := LoadConfigFile(context.Background(), path)
	require.Error(t, err)

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestExpandEnvString(t *testing.T) {
	t.Setenv("PLANQA_TEST_VAR", "value1")

	assert.Equal(t, "value1", expandEnvString("${PLANQA_TEST_VAR}"))
	assert.Equal(t, "value1", expandEnvString("$PLANQA_TEST_VAR"))
	assert.Equal(t, "fallback", expandEnvString("${PLANQA_UNSET_VAR:-fallback}"))
	assert.Equal(t, "", expandEnvString("${PLANQA_UNSET_VAR}"))
}
