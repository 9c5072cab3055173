// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the service configuration, its defaults, and
// validation. Configuration is loaded from YAML with ${VAR} environment
// expansion.
package config

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Config is the root service configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server,description=HTTP server settings"`
	LLM           LLMConfig           `yaml:"llm,omitempty" json:"llm,omitempty" jsonschema:"title=LLM,description=Chat completion model settings"`
	Embedder      EmbedderConfig      `yaml:"embedder,omitempty" json:"embedder,omitempty" jsonschema:"title=Embedder,description=Embedding model settings"`
	Qdrant        QdrantConfig        `yaml:"qdrant,omitempty" json:"qdrant,omitempty" jsonschema:"title=Qdrant,description=Vector database settings"`
	Retrieval     RetrievalConfig     `yaml:"retrieval,omitempty" json:"retrieval,omitempty" jsonschema:"title=Retrieval,description=Semantic retrieval settings"`
	Agent         AgentConfig         `yaml:"agent,omitempty" json:"agent,omitempty" jsonschema:"title=Agent,description=Agentic loop settings"`
	Knowledge     KnowledgeConfig     `yaml:"knowledge,omitempty" json:"knowledge,omitempty" jsonschema:"title=Knowledge,description=Knowledge summary settings"`
	Logging       LoggingConfig       `yaml:"logging,omitempty" json:"logging,omitempty" jsonschema:"title=Logging,description=Logging settings"`
	Observability ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability,description=Tracing and metrics settings"`

	// RefusalPhrases is accepted for compatibility but the set is
	// closed: validation rejects any list other than the canonical one.
	RefusalPhrases []string `yaml:"refusal_phrases,omitempty" json:"refusal_phrases,omitempty" jsonschema:"title=Refusal Phrases,description=Closed refusal phrase set; must match the built-in list"`
}

// canonicalRefusalPhrases is the closed refusal set. The answer ladder
// compiles the same list in; the config key exists only so that a file
// naming it validates, and never to extend it.
var canonicalRefusalPhrases = []string{
	"i cannot answer",
	"i can't answer",
	"cannot answer this question",
	"not enough information",
	"insufficient information",
	"doesn't contain",
}

// RefusalPhrases returns a copy of the canonical refusal phrase set.
func RefusalPhrases() []string {
	return append([]string(nil), canonicalRefusalPhrases...)
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,default=0.0.0.0"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,minimum=1,maximum=65535,default=8080"`

	// RequestDeadlineSeconds bounds end-to-end query handling.
	RequestDeadlineSeconds int `yaml:"request_deadline_seconds,omitempty" json:"request_deadline_seconds,omitempty" jsonschema:"title=Request Deadline,description=Per-request deadline in seconds,minimum=1,default=120"`
}

// LLMConfig configures the chat completion model.
type LLMConfig struct {
	// Model name (e.g., "gpt-4o-mini").
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Model identifier"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authentication (use ${ENV_VAR})"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Custom base URL for API endpoint"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,description=Sampling temperature,minimum=0,maximum=2,default=0.3"`

	// MaxTokens limits answer length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,description=Maximum tokens to generate,minimum=1,default=500"`

	// SummaryMaxTokens limits knowledge summary generation length.
	SummaryMaxTokens int `yaml:"summary_max_tokens,omitempty" json:"summary_max_tokens,omitempty" jsonschema:"title=Summary Max Tokens,minimum=1,default=1500"`

	// TimeoutSeconds bounds a single completion request.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty" jsonschema:"title=Timeout,description=Per-request timeout in seconds,minimum=1,default=60"`
}

// EmbedderConfig configures the embedding model.
type EmbedderConfig struct {
	Model   string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,default=text-embedding-3-small"`
	APIKey  string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL"`

	// Dimension of the embedding vectors.
	Dimension int `yaml:"dimension,omitempty" json:"dimension,omitempty" jsonschema:"title=Dimension,minimum=1,default=1536"`
}

// QdrantConfig configures the vector database connection.
type QdrantConfig struct {
	Host   string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,default=localhost"`
	Port   int    `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,default=6334"`
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`
	UseTLS bool   `yaml:"use_tls,omitempty" json:"use_tls,omitempty" jsonschema:"title=Use TLS,default=false"`

	// Collection holding the regulation chunks.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty" jsonschema:"title=Collection,default=building_regulations"`
}

// RetrievalConfig configures semantic retrieval behavior.
type RetrievalConfig struct {
	// TopKDefault is used when a query does not specify top_k.
	TopKDefault int `yaml:"top_k_default,omitempty" json:"top_k_default,omitempty" jsonschema:"title=Default Top K,minimum=1,maximum=20,default=5"`

	// RelevanceThreshold below which results are treated as a miss.
	RelevanceThreshold *float64 `yaml:"relevance_threshold,omitempty" json:"relevance_threshold,omitempty" jsonschema:"title=Relevance Threshold,minimum=0,maximum=1,default=0.7"`
}

// AgentConfig configures the agentic reasoning loop.
type AgentConfig struct {
	// MaxIterations bounds the tool-calling loop.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty" jsonschema:"title=Max Iterations,minimum=1,default=10"`
}

// KnowledgeConfig configures the knowledge summary artifact.
type KnowledgeConfig struct {
	// Path of the persisted summary JSON file.
	Path string `yaml:"path,omitempty" json:"path,omitempty" jsonschema:"title=Path,default=data/knowledge_summary.json"`

	// SampleMin and SampleMax bound the random chunk sample used for
	// regeneration.
	SampleMin int `yaml:"sample_min,omitempty" json:"sample_min,omitempty" jsonschema:"title=Sample Min,minimum=1,default=20"`
	SampleMax int `yaml:"sample_max,omitempty" json:"sample_max,omitempty" jsonschema:"title=Sample Max,minimum=1,default=30"`
}

// LoggingConfig configures logging output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"title=Level,enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"title=Format,enum=text,enum=json,default=text"`
	File   string `yaml:"file,omitempty" json:"file,omitempty" jsonschema:"title=File,description=Log file path (stdout when empty)"`
}

// ObservabilityConfig groups tracing and metrics settings.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty" jsonschema:"title=Tracing"`
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" jsonschema:"title=Metrics"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`
	EndpointURL  string  `yaml:"endpoint_url,omitempty" json:"endpoint_url,omitempty" jsonschema:"title=Endpoint URL,default=localhost:4317"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" jsonschema:"title=Sampling Rate,minimum=0,maximum=1,default=1.0"`
	ServiceName  string  `yaml:"service_name,omitempty" json:"service_name,omitempty" jsonschema:"title=Service Name,default=planqa"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=true"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestDeadlineSeconds == 0 {
		c.Server.RequestDeadlineSeconds = 120
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.LLM.Temperature == nil {
		temp := 0.3
		c.LLM.Temperature = &temp
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 500
	}
	if c.LLM.SummaryMaxTokens == 0 {
		c.LLM.SummaryMaxTokens = 1500
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}

	if c.Embedder.Model == "" {
		c.Embedder.Model = "text-embedding-3-small"
	}
	if c.Embedder.APIKey == "" {
		c.Embedder.APIKey = c.LLM.APIKey
	}
	if c.Embedder.Dimension == 0 {
		c.Embedder.Dimension = 1536
	}

	if c.Qdrant.Host == "" {
		c.Qdrant.Host = "localhost"
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}
	if c.Qdrant.Collection == "" {
		c.Qdrant.Collection = "building_regulations"
	}

	if c.Retrieval.TopKDefault == 0 {
		c.Retrieval.TopKDefault = 5
	}
	if c.Retrieval.RelevanceThreshold == nil {
		threshold := 0.7
		c.Retrieval.RelevanceThreshold = &threshold
	}

	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 10
	}

	if c.Knowledge.Path == "" {
		c.Knowledge.Path = "data/knowledge_summary.json"
	}
	if c.Knowledge.SampleMin == 0 {
		c.Knowledge.SampleMin = 20
	}
	if c.Knowledge.SampleMax == 0 {
		c.Knowledge.SampleMax = 30
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Observability.Tracing.ServiceName == "" {
		c.Observability.Tracing.ServiceName = "planqa"
	}
	if c.Observability.Tracing.SamplingRate == 0 {
		c.Observability.Tracing.SamplingRate = 1.0
	}
	if c.Observability.Tracing.EndpointURL == "" {
		c.Observability.Tracing.EndpointURL = "localhost:4317"
	}

	if len(c.RefusalPhrases) == 0 {
		c.RefusalPhrases = RefusalPhrases()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Message: fmt.Sprintf("must be between 1 and 65535, got %d", c.Server.Port)}
	}
	if c.Server.RequestDeadlineSeconds < 1 {
		return &ValidationError{Field: "server.request_deadline_seconds", Message: "must be positive"}
	}

	if c.LLM.Temperature != nil && (*c.LLM.Temperature < 0 || *c.LLM.Temperature > 2) {
		return &ValidationError{Field: "llm.temperature", Message: fmt.Sprintf("must be between 0 and 2, got %g", *c.LLM.Temperature)}
	}
	if c.LLM.MaxTokens < 1 {
		return &ValidationError{Field: "llm.max_tokens", Message: "must be positive"}
	}

	if c.Embedder.Dimension < 1 {
		return &ValidationError{Field: "embedder.dimension", Message: "must be positive"}
	}

	if c.Qdrant.Collection == "" {
		return &ValidationError{Field: "qdrant.collection", Message: "must not be empty"}
	}

	if c.Retrieval.TopKDefault < 1 || c.Retrieval.TopKDefault > 20 {
		return &ValidationError{Field: "retrieval.top_k_default", Message: fmt.Sprintf("must be between 1 and 20, got %d", c.Retrieval.TopKDefault)}
	}
	if t := c.Retrieval.RelevanceThreshold; t != nil && (*t < 0 || *t > 1) {
		return &ValidationError{Field: "retrieval.relevance_threshold", Message: fmt.Sprintf("must be between 0 and 1, got %g", *t)}
	}

	if c.Agent.MaxIterations < 1 {
		return &ValidationError{Field: "agent.max_iterations", Message: "must be positive"}
	}

	if c.Knowledge.SampleMin > c.Knowledge.SampleMax {
		return &ValidationError{Field: "knowledge.sample_min", Message: fmt.Sprintf("must not exceed sample_max (%d > %d)", c.Knowledge.SampleMin, c.Knowledge.SampleMax)}
	}

	if len(c.RefusalPhrases) > 0 {
		if len(c.RefusalPhrases) != len(canonicalRefusalPhrases) {
			return &ValidationError{Field: "refusal_phrases", Message: "the refusal set is closed and must match the built-in list"}
		}
		for i, phrase := range c.RefusalPhrases {
			if !strings.EqualFold(strings.TrimSpace(phrase), canonicalRefusalPhrases[i]) {
				return &ValidationError{Field: "refusal_phrases", Message: fmt.Sprintf("entry %d does not match the built-in list", i)}
			}
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return &ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}

	return nil
}

// Default returns a config with all defaults applied, suitable for
// running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}
