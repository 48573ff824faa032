package config

import "time"

// Config represents the main configuration structure for the conversational RAG server
type Config struct {
	LLM       LLMConfig        `json:"llm" yaml:"llm" toml:"llm"`
	Embedding EmbeddingConfig  `json:"embedding" yaml:"embedding" toml:"embedding"`
	VectorDB  VectorDBConfig   `json:"vectordb" yaml:"vectordb" toml:"vectordb"`
	Rerank    RerankConfig     `json:"rerank" yaml:"rerank" toml:"rerank"`
	Router    RouterConfig     `json:"router" yaml:"router" toml:"router"`
	Retrieval RetrievalConfig  `json:"retrieval" yaml:"retrieval" toml:"retrieval"`
	Memory    MemoryConfig     `json:"memory" yaml:"memory" toml:"memory"`
	Cache     CacheConfig      `json:"cache" yaml:"cache" toml:"cache"`
	HTTP      HTTPClientConfig `json:"http" yaml:"http" toml:"http"`
	Server    ServerConfig     `json:"server" yaml:"server" toml:"server"`
	Log       LogConfig        `json:"log" yaml:"log" toml:"log"`
}

// LLMConfig defines configuration for the generation model
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider" toml:"provider"` // Available options: openai, gemini
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	Model       string  `json:"model" yaml:"model" toml:"model"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" toml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" toml:"max_tokens,omitempty"`
	TimeoutMs   int     `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty" toml:"timeout_ms,omitempty"`
}

// EmbeddingConfig defines configuration for embedding models
type EmbeddingConfig struct {
	Provider        string `json:"provider" yaml:"provider" toml:"provider"` // Available options: openai, gemini
	APIKey          string `json:"api_key,omitempty" yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	BaseURL         string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	Model           string `json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty"`
	Dimensions      int    `json:"dimensions,omitempty" yaml:"dimensions,omitempty" toml:"dimensions,omitempty"`
	TimeoutMs       int    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty" toml:"timeout_ms,omitempty"`
	CacheSize       int    `json:"cache_size,omitempty" yaml:"cache_size,omitempty" toml:"cache_size,omitempty"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds,omitempty" yaml:"cache_ttl_seconds,omitempty" toml:"cache_ttl_seconds,omitempty"`
}

// VectorDBConfig defines configuration for the candidate store
type VectorDBConfig struct {
	Provider    string `json:"provider" yaml:"provider" toml:"provider"` // Available options: milvus, memory
	Host        string `json:"host,omitempty" yaml:"host,omitempty" toml:"host,omitempty"`
	Port        int    `json:"port,omitempty" yaml:"port,omitempty" toml:"port,omitempty"`
	Database    string `json:"database,omitempty" yaml:"database,omitempty" toml:"database,omitempty"`
	Collection  string `json:"collection,omitempty" yaml:"collection,omitempty" toml:"collection,omitempty"`
	Username    string `json:"username,omitempty" yaml:"username,omitempty" toml:"username,omitempty"`
	Password    string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"`
	VectorField string `json:"vector_field,omitempty" yaml:"vector_field,omitempty" toml:"vector_field,omitempty"`
	TextField   string `json:"text_field,omitempty" yaml:"text_field,omitempty" toml:"text_field,omitempty"`
	MetricType  string `json:"metric_type,omitempty" yaml:"metric_type,omitempty" toml:"metric_type,omitempty"`
	EF          int    `json:"ef,omitempty" yaml:"ef,omitempty" toml:"ef,omitempty"`
	TimeoutMs   int    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty" toml:"timeout_ms,omitempty"`
	// Seed is a JSON lines file loaded by the in-memory store.
	Seed string `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty"`
}

// RerankConfig controls the cross-encoder stage.
type RerankConfig struct {
	Enable      bool   `json:"enable" yaml:"enable" toml:"enable"`
	Provider    string `json:"provider,omitempty" yaml:"provider,omitempty" toml:"provider,omitempty"` // "model", "llm"
	Endpoint    string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Model       string `json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty"`
	APIKey      string `json:"api_key,omitempty" yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	BatchSize   int    `json:"batch_size,omitempty" yaml:"batch_size,omitempty" toml:"batch_size,omitempty"`
	Parallelism int    `json:"parallelism,omitempty" yaml:"parallelism,omitempty" toml:"parallelism,omitempty"`
	Enrich      bool   `json:"enrich" yaml:"enrich" toml:"enrich"`
	TimeoutMs   int    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty" toml:"timeout_ms,omitempty"`
	// RPS caps outbound rerank requests per second; 0 disables the limiter.
	RPS float64 `json:"rps,omitempty" yaml:"rps,omitempty" toml:"rps,omitempty"`
	// Logits marks cross-encoders that return raw logits (e.g. bge-reranker);
	// scores then pass through a sigmoid before ranking.
	Logits bool `json:"logits,omitempty" yaml:"logits,omitempty" toml:"logits,omitempty"`
}

// RouterConfig defines the query routing configuration
type RouterConfig struct {
	// Provider: "hybrid" (default), "llm", "rule"
	Provider         string   `json:"provider,omitempty" yaml:"provider,omitempty" toml:"provider,omitempty"`
	GreetingKeywords []string `json:"greeting_keywords,omitempty" yaml:"greeting_keywords,omitempty" toml:"greeting_keywords,omitempty"`
	TimeoutMs        int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty" toml:"timeout_ms,omitempty"`
}

// RetrievalConfig sizes the candidate pool and the prompt context.
type RetrievalConfig struct {
	TopK        int `json:"top_k,omitempty" yaml:"top_k,omitempty" toml:"top_k,omitempty"`
	ContextTopK int `json:"context_top_k,omitempty" yaml:"context_top_k,omitempty" toml:"context_top_k,omitempty"`
}

// MemoryConfig controls the per-session conversation window.
type MemoryConfig struct {
	WindowSize     int `json:"window_size,omitempty" yaml:"window_size,omitempty" toml:"window_size,omitempty"`
	MaxSessions    int `json:"max_sessions,omitempty" yaml:"max_sessions,omitempty" toml:"max_sessions,omitempty"`
	IdleTTLSeconds int `json:"idle_ttl_seconds,omitempty" yaml:"idle_ttl_seconds,omitempty" toml:"idle_ttl_seconds,omitempty"`
}

// CacheConfig selects the query embedding cache.
// Provider: "lru" (default) or "redis".
type CacheConfig struct {
	Provider   string      `json:"provider,omitempty" yaml:"provider,omitempty" toml:"provider,omitempty"`
	KeyPrefix  string      `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty" toml:"key_prefix,omitempty"`
	TTLSeconds int         `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty" toml:"ttl_seconds,omitempty"`
	Redis      RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty" toml:"redis,omitempty"`
}

type RedisConfig struct {
	Address  string `json:"address,omitempty" yaml:"address,omitempty" toml:"address,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty" toml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty" toml:"db,omitempty"`
}

// HTTPClientConfig defines common options for outbound HTTP calls.
type HTTPClientConfig struct {
	TimeoutMs              int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty" toml:"timeout_ms,omitempty"`
	Retry                  int      `json:"retry,omitempty" yaml:"retry,omitempty" toml:"retry,omitempty"`
	BackoffMinMs           int      `json:"backoff_min_ms,omitempty" yaml:"backoff_min_ms,omitempty" toml:"backoff_min_ms,omitempty"`
	BackoffMaxMs           int      `json:"backoff_max_ms,omitempty" yaml:"backoff_max_ms,omitempty" toml:"backoff_max_ms,omitempty"`
	HostAllowlist          []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty" toml:"host_allowlist,omitempty"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures,omitempty" yaml:"max_consecutive_failures,omitempty" toml:"max_consecutive_failures,omitempty"`
	CircuitOpenSeconds     int      `json:"circuit_open_seconds,omitempty" yaml:"circuit_open_seconds,omitempty" toml:"circuit_open_seconds,omitempty"`
}

// ServerConfig describes the transports the process exposes.
type ServerConfig struct {
	HTTPAddr     string `json:"http_addr,omitempty" yaml:"http_addr,omitempty" toml:"http_addr,omitempty"`
	MCPTransport string `json:"mcp_transport,omitempty" yaml:"mcp_transport,omitempty" toml:"mcp_transport,omitempty"` // "stdio", "http"
	MCPAddr      string `json:"mcp_addr,omitempty" yaml:"mcp_addr,omitempty" toml:"mcp_addr,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty" toml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty"`
}

// Duration converts a millisecond setting, using def when ms is not positive.
func Duration(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// Default returns the configuration used when no file overrides a field.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			Temperature: 0.3,
			MaxTokens:   2048,
			TimeoutMs:   30000,
		},
		Embedding: EmbeddingConfig{
			Provider:        "openai",
			Model:           "text-embedding-3-small",
			Dimensions:      768,
			TimeoutMs:       5000,
			CacheSize:       1024,
			CacheTTLSeconds: 600,
		},
		VectorDB: VectorDBConfig{
			Provider:    "milvus",
			Host:        "localhost",
			Port:        19530,
			Collection:  "vectordb",
			VectorField: "vector",
			TextField:   "text",
			MetricType:  "IP",
			EF:          64,
			TimeoutMs:   3000,
		},
		Rerank: RerankConfig{
			Enable:      true,
			Provider:    "model",
			Endpoint:    "http://localhost:8082/rerank",
			Model:       "BAAI/bge-reranker-v2-m3",
			BatchSize:   32,
			Parallelism: 2,
			Enrich:      true,
			TimeoutMs:   5000,
		},
		Router: RouterConfig{
			Provider:  "hybrid",
			TimeoutMs: 10000,
		},
		Retrieval: RetrievalConfig{
			TopK:        5,
			ContextTopK: 3,
		},
		Memory: MemoryConfig{
			WindowSize:     3,
			MaxSessions:    10000,
			IdleTTLSeconds: 3600,
		},
		Cache: CacheConfig{
			Provider:   "lru",
			KeyPrefix:  "convrag:emb:",
			TTLSeconds: 600,
		},
		Server: ServerConfig{
			HTTPAddr:     ":8000",
			MCPTransport: "stdio",
			MCPAddr:      ":8001",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
