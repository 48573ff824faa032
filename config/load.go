package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads path on top of Default. An empty path returns the defaults with
// environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config failed, err: %w", err)
		}
		if err := cfg.decode(filepath.Ext(path), data); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) decode(ext string, data []byte) error {
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(c); err != nil {
			return fmt.Errorf("decode toml config failed, err: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("decode yaml config failed, err: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CONVRAG_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("CONVRAG_EMBEDDING_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("CONVRAG_RERANK_API_KEY"); v != "" {
		c.Rerank.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
			c.LLM.APIKey = v
		}
		if c.Embedding.Provider == "gemini" && c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
	}
}

// ParseConfig overlays a host-provided map onto c. Numbers arrive as float64
// because the map is decoded from JSON.
func (c *Config) ParseConfig(cfg map[string]any) error {
	if llmConfig, ok := cfg["llm"].(map[string]any); ok {
		if provider, exists := llmConfig["provider"].(string); exists {
			c.LLM.Provider = provider
		}
		if apiKey, exists := llmConfig["api_key"].(string); exists {
			c.LLM.APIKey = apiKey
		}
		if baseURL, exists := llmConfig["base_url"].(string); exists {
			c.LLM.BaseURL = baseURL
		}
		if model, exists := llmConfig["model"].(string); exists {
			c.LLM.Model = model
		}
		if temperature, exists := llmConfig["temperature"].(float64); exists {
			c.LLM.Temperature = temperature
		}
		if maxTokens, exists := llmConfig["max_tokens"].(float64); exists {
			c.LLM.MaxTokens = int(maxTokens)
		}
		if v, exists := llmConfig["timeout_ms"].(float64); exists {
			c.LLM.TimeoutMs = int(v)
		}
	}

	if embeddingConfig, ok := cfg["embedding"].(map[string]any); ok {
		provider, exists := embeddingConfig["provider"].(string)
		if !exists {
			return fmt.Errorf("missing embedding provider")
		}
		c.Embedding.Provider = provider
		if apiKey, exists := embeddingConfig["api_key"].(string); exists {
			c.Embedding.APIKey = apiKey
		}
		if baseURL, exists := embeddingConfig["base_url"].(string); exists {
			c.Embedding.BaseURL = baseURL
		}
		if model, exists := embeddingConfig["model"].(string); exists {
			c.Embedding.Model = model
		}
		if dimensions, exists := embeddingConfig["dimensions"].(float64); exists {
			c.Embedding.Dimensions = int(dimensions)
		}
	}

	if vectordbConfig, ok := cfg["vectordb"].(map[string]any); ok {
		provider, exists := vectordbConfig["provider"].(string)
		if !exists {
			return fmt.Errorf("missing vectordb provider")
		}
		c.VectorDB.Provider = provider
		if host, exists := vectordbConfig["host"].(string); exists {
			c.VectorDB.Host = host
		}
		if port, exists := vectordbConfig["port"].(float64); exists {
			c.VectorDB.Port = int(port)
		}
		if dbName, exists := vectordbConfig["database"].(string); exists {
			c.VectorDB.Database = dbName
		}
		if collection, exists := vectordbConfig["collection"].(string); exists {
			c.VectorDB.Collection = collection
		}
		if username, exists := vectordbConfig["username"].(string); exists {
			c.VectorDB.Username = username
		}
		if password, exists := vectordbConfig["password"].(string); exists {
			c.VectorDB.Password = password
		}
	}

	if rr, ok := cfg["rerank"].(map[string]any); ok {
		if b, ok := rr["enable"].(bool); ok {
			c.Rerank.Enable = b
		}
		if s, ok := rr["provider"].(string); ok {
			c.Rerank.Provider = s
		}
		if s, ok := rr["endpoint"].(string); ok {
			c.Rerank.Endpoint = s
		}
		if s, ok := rr["model"].(string); ok {
			c.Rerank.Model = s
		}
		if v, ok := rr["batch_size"].(float64); ok {
			c.Rerank.BatchSize = int(v)
		}
		if b, ok := rr["enrich"].(bool); ok {
			c.Rerank.Enrich = b
		}
		if b, ok := rr["logits"].(bool); ok {
			c.Rerank.Logits = b
		}
	}

	if rt, ok := cfg["router"].(map[string]any); ok {
		if s, ok := rt["provider"].(string); ok {
			c.Router.Provider = s
		}
		if arr, ok := rt["greeting_keywords"].([]any); ok {
			c.Router.GreetingKeywords = nil
			for _, a := range arr {
				if s, ok := a.(string); ok {
					c.Router.GreetingKeywords = append(c.Router.GreetingKeywords, s)
				}
			}
		}
	}

	if ret, ok := cfg["retrieval"].(map[string]any); ok {
		if v, ok := ret["top_k"].(float64); ok {
			c.Retrieval.TopK = int(v)
		}
		if v, ok := ret["context_top_k"].(float64); ok {
			c.Retrieval.ContextTopK = int(v)
		}
	}

	if mem, ok := cfg["memory"].(map[string]any); ok {
		if v, ok := mem["window_size"].(float64); ok {
			c.Memory.WindowSize = int(v)
		}
		if v, ok := mem["max_sessions"].(float64); ok {
			c.Memory.MaxSessions = int(v)
		}
		if v, ok := mem["idle_ttl_seconds"].(float64); ok {
			c.Memory.IdleTTLSeconds = int(v)
		}
	}

	if httpCfg, ok := cfg["http"].(map[string]any); ok {
		if v, ok := httpCfg["timeout_ms"].(float64); ok {
			c.HTTP.TimeoutMs = int(v)
		}
		if v, ok := httpCfg["retry"].(float64); ok {
			c.HTTP.Retry = int(v)
		}
		if v, ok := httpCfg["max_consecutive_failures"].(float64); ok {
			c.HTTP.MaxConsecutiveFailures = int(v)
		}
		if v, ok := httpCfg["circuit_open_seconds"].(float64); ok {
			c.HTTP.CircuitOpenSeconds = int(v)
		}
		if arr, ok := httpCfg["host_allowlist"].([]any); ok {
			for _, a := range arr {
				if s, ok := a.(string); ok {
					c.HTTP.HostAllowlist = append(c.HTTP.HostAllowlist, s)
				}
			}
		}
	}
	return nil
}
