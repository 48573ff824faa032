package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. [%s] %s\n", i+1, err.Field, err.Message))
	}
	return b.String()
}

// Validate validates the complete configuration
func (c *Config) Validate() error {
	var errs ValidationErrors
	errs = append(errs, c.validateLLM()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateVectorDB()...)
	errs = append(errs, c.validateRerank()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateMemory()...)
	errs = append(errs, c.validateCache()...)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateLLM() ValidationErrors {
	var errs ValidationErrors
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "gemini":
	case "":
		errs = append(errs, ValidationError{Field: "llm.provider", Message: "llm provider is required"})
	default:
		errs = append(errs, ValidationError{Field: "llm.provider", Message: fmt.Sprintf("unknown llm provider %q", c.LLM.Provider)})
	}
	if c.LLM.Model == "" {
		errs = append(errs, ValidationError{Field: "llm.model", Message: "llm model is required"})
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "llm.temperature",
			Message: fmt.Sprintf("llm.temperature must be in [0, 2], got %.2f", c.LLM.Temperature),
		})
	}
	return errs
}

func (c *Config) validateEmbedding() ValidationErrors {
	var errs ValidationErrors

	if c.Embedding.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   "embedding.provider",
			Message: "embedding provider is required",
		})
	}

	if c.Embedding.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "embedding.model",
			Message: "embedding model is required",
		})
	}

	// typical range: 128-4096
	if c.Embedding.Dimensions < 0 || (c.Embedding.Dimensions > 0 && (c.Embedding.Dimensions < 128 || c.Embedding.Dimensions > 4096)) {
		errs = append(errs, ValidationError{
			Field:   "embedding.dimensions",
			Message: fmt.Sprintf("embedding dimensions %d is outside typical range [128, 4096]", c.Embedding.Dimensions),
		})
	}

	return errs
}

func (c *Config) validateVectorDB() ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(c.VectorDB.Provider) {
	case "milvus":
		if c.VectorDB.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.host",
				Message: "vectordb host is required for milvus provider",
			})
		}
		if c.VectorDB.Collection == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.collection",
				Message: "collection name is required for milvus provider",
			})
		}
	case "memory":
	case "":
		errs = append(errs, ValidationError{
			Field:   "vectordb.provider",
			Message: "vectordb provider is required",
		})
	default:
		errs = append(errs, ValidationError{
			Field:   "vectordb.provider",
			Message: fmt.Sprintf("unknown vectordb provider %q", c.VectorDB.Provider),
		})
	}

	return errs
}

func (c *Config) validateRerank() ValidationErrors {
	var errs ValidationErrors
	if !c.Rerank.Enable {
		return errs
	}
	switch c.Rerank.Provider {
	case "model", "":
		if c.Rerank.Endpoint == "" {
			errs = append(errs, ValidationError{
				Field:   "rerank.endpoint",
				Message: "rerank endpoint is required when the model reranker is enabled",
			})
		}
	case "llm":
	default:
		errs = append(errs, ValidationError{
			Field:   "rerank.provider",
			Message: fmt.Sprintf("unknown rerank provider %q", c.Rerank.Provider),
		})
	}
	if c.Rerank.BatchSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "rerank.batch_size",
			Message: fmt.Sprintf("rerank.batch_size must be non-negative, got %d", c.Rerank.BatchSize),
		})
	}
	if c.Rerank.RPS < 0 {
		errs = append(errs, ValidationError{
			Field:   "rerank.rps",
			Message: fmt.Sprintf("rerank.rps must be non-negative, got %.2f", c.Rerank.RPS),
		})
	}
	return errs
}

func (c *Config) validateRetrieval() ValidationErrors {
	var errs ValidationErrors

	if c.Retrieval.TopK <= 0 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.top_k",
			Message: fmt.Sprintf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK),
		})
	}

	if c.Retrieval.TopK > 100 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.top_k",
			Message: fmt.Sprintf("retrieval.top_k %d is too large (max recommended: 100)", c.Retrieval.TopK),
		})
	}

	if c.Retrieval.ContextTopK <= 0 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.context_top_k",
			Message: fmt.Sprintf("retrieval.context_top_k must be positive, got %d", c.Retrieval.ContextTopK),
		})
	}

	return errs
}

func (c *Config) validateMemory() ValidationErrors {
	var errs ValidationErrors
	if c.Memory.WindowSize <= 0 {
		errs = append(errs, ValidationError{
			Field:   "memory.window_size",
			Message: fmt.Sprintf("memory.window_size must be positive, got %d", c.Memory.WindowSize),
		})
	}
	if c.Memory.MaxSessions < 0 {
		errs = append(errs, ValidationError{
			Field:   "memory.max_sessions",
			Message: fmt.Sprintf("memory.max_sessions must be non-negative, got %d", c.Memory.MaxSessions),
		})
	}
	return errs
}

func (c *Config) validateCache() ValidationErrors {
	var errs ValidationErrors
	switch c.Cache.Provider {
	case "", "lru", "none":
	case "redis":
		if c.Cache.Redis.Address == "" {
			errs = append(errs, ValidationError{
				Field:   "cache.redis.address",
				Message: "redis address is required for redis cache",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "cache.provider",
			Message: fmt.Sprintf("unknown cache provider %q", c.Cache.Provider),
		})
	}
	return errs
}
