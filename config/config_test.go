package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "convrag.yaml")
	body := `
llm:
  provider: openai
  model: gpt-4o-mini
retrieval:
  top_k: 8
rerank:
  enable: false
memory:
  window_size: 5
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.Retrieval.ContextTopK)
	assert.False(t, cfg.Rerank.Enable)
	assert.Equal(t, 5, cfg.Memory.WindowSize)
	assert.Equal(t, "milvus", cfg.VectorDB.Provider)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "convrag.toml")
	body := `
[vectordb]
provider = "memory"

[router]
provider = "rule"
greeting_keywords = ["hello", "xin chào"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.VectorDB.Provider)
	assert.Equal(t, "rule", cfg.Router.Provider)
	assert.Equal(t, []string{"hello", "xin chào"}, cfg.Router.GreetingKeywords)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "convrag.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CONVRAG_LLM_API_KEY", "sk-test")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "claude"
	cfg.Retrieval.TopK = 0
	cfg.Memory.WindowSize = 0
	cfg.Rerank.Endpoint = ""

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.Contains(t, fields, "llm.provider")
	assert.Contains(t, fields, "retrieval.top_k")
	assert.Contains(t, fields, "memory.window_size")
	assert.Contains(t, fields, "rerank.endpoint")
}

func TestParseConfig(t *testing.T) {
	cfg := Default()
	err := cfg.ParseConfig(map[string]any{
		"llm":       map[string]any{"provider": "openai", "model": "gpt-4o", "max_tokens": float64(512)},
		"retrieval": map[string]any{"top_k": float64(10)},
		"router":    map[string]any{"greeting_keywords": []any{"hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 512, cfg.LLM.MaxTokens)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, []string{"hi"}, cfg.Router.GreetingKeywords)

	err = cfg.ParseConfig(map[string]any{"vectordb": map[string]any{"host": "x"}})
	require.Error(t, err)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, Duration(0, 2*time.Second))
	assert.Equal(t, 150*time.Millisecond, Duration(150, time.Second))
}
