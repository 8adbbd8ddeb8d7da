package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/outfitmatch-backend/internal/platform/cache"
	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

var configEnvNames = []string{
	ConfigPathEnv, "APP_ENV", "LOG_MODE", "SERVER_PORT", "CORS_ORIGINS", "MAX_BODY_BYTES",
	"GRAPH_BACKEND", "NEO4J_URI", "NEO4J_USER", "NEO4J_USERNAME", "NEO4J_PASSWORD", "NEO4J_DATABASE", "NEO4J_TIMEOUT",
	"INDEX_BACKEND", "INDEX_PATH", "EMBEDDING_DIM",
	"LLM_PROVIDER", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "LLM_BASE_URL", "STYLE_PREDICTION_MODEL",
	"NL2FILTER_MODEL", "NL2CYPHER_MODEL", "FILTER_FAIL_OPEN", "LLM_REQUESTS_PER_SECOND",
	"INFERENCE_URL", "INFERENCE_API_KEY", "SEGMENTATION_MODEL", "EMBEDDING_MODEL", "USE_CUDA",
	"ENABLE_QUERY_CACHE", "ENABLE_EVENTS", "CACHE_BACKEND", "CACHE_SIZE", "CACHE_TTL_SECONDS", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"OBJECT_STORAGE_MODE", "STORAGE_MODE", "STORAGE_EMULATOR_HOST",
	"GOOGLE_APPLICATION_CREDENTIALS_JSON", "GOOGLE_APPLICATION_CREDENTIALS",
	"POSTGRES_DSN", "DATABASE_URL", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD",
	"POSTGRES_NAME", "POSTGRES_DB", "POSTGRES_SSLMODE",
	"RESPONSE_LOCALE", "DEFAULT_STYLE", "INGEST_WORKERS", "RECOMMEND_SCHEDULE",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "OTEL_EXPORTER_OTLP_HEADERS", "OTEL_SAMPLE_RATIO",
}

// clearEnv blanks every variable LoadConfig reads; blank counts as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range configEnvNames {
		t.Setenv(name, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.ListenAddr())
	assert.Equal(t, "neo4j", cfg.Graph.Backend)
	assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
	assert.Equal(t, "local", cfg.Index.Backend)
	assert.Equal(t, 768, cfg.Index.Dim)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.StyleModel)
	assert.Equal(t, "gpt-4o", cfg.LLM.FilterModel)
	assert.Equal(t, "fail_open", cfg.LLM.FilterPolicy)
	assert.Equal(t, "zh-TW", cfg.Search.Locale)
	assert.Equal(t, "休閒", cfg.Search.DefaultStyle)
	assert.Equal(t, "gcs", cfg.Storage.Mode)
	assert.Equal(t, "cpu", cfg.DeviceHint())
	assert.False(t, cfg.UsesRedis())
	assert.Empty(t, cfg.LLM.APIKey())
}

func TestLoadConfigLayersYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
server:
  port: 9000
  cors_origins: ["https://shop.example"]
graph:
  backend: memory
llm:
  provider: Claude
  anthropic_api_key: from-yaml
  style_model: claude-3-5-haiku-latest
search:
  limit: 20
  locale: en
recommend:
  schedule: "0 3 * * *"
`)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("NL2CYPHER_MODEL", "gpt-4.1")
	t.Setenv("USE_CUDA", "true")
	t.Setenv("CACHE_TTL_SECONDS", "120")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env wins over yaml")
	assert.Equal(t, []string{"https://shop.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "memory", cfg.Graph.Backend)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "from-yaml", cfg.LLM.APIKey())
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.LLM.StyleModel)
	assert.Equal(t, "gpt-4.1", cfg.LLM.FilterModel)
	assert.Equal(t, 20, cfg.Search.Limit)
	assert.Equal(t, "en", cfg.Search.Locale)
	assert.Equal(t, "0 3 * * *", cfg.Recommend.Schedule)
	assert.Equal(t, "cuda", cfg.DeviceHint())
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
}

func TestLoadConfigReadsPathFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(ConfigPathEnv, writeYAML(t, "search:\n  default_style: 簡約\n"))
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "簡約", cfg.Search.DefaultStyle)
}

func TestLoadConfigRejectsUnknownYAMLKeys(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig(writeYAML(t, "server:\n  prot: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prot")
}

func TestFilterFailOpenEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FILTER_FAIL_OPEN", "false")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "fail_closed", cfg.LLM.FilterPolicy)

	t.Setenv("FILTER_FAIL_OPEN", "true")
	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "fail_open", cfg.LLM.FilterPolicy)
}

func TestConfigEnablesRedisForCacheOrEvents(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENABLE_EVENTS", "1")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.UsesRedis())
}

func TestMemoryCacheBackendNeedsNoRedis(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENABLE_QUERY_CACHE", "true")
	t.Setenv("CACHE_BACKEND", "Memory")
	t.Setenv("CACHE_SIZE", "16")
	t.Setenv("REDIS_ADDR", "")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Cache.RedisAddr = ""
	require.NoError(t, cfg.Validate())

	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.False(t, cfg.UsesRedis())
	c := newCache(logger.Nop(), cfg.Cache, nil, nil)
	mem, ok := c.(*cache.Memory)
	require.True(t, ok, "got %T", c)
	assert.Equal(t, 0, mem.Len())

	cfg.Cache.Enabled = false
	assert.IsType(t, cache.Noop{}, newCache(logger.Nop(), cfg.Cache, nil, nil))
}

func TestValidateErrorCodes(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		code   ConfigErrorCode
	}{
		"graph backend": {func(c *Config) { c.Graph.Backend = "sqlite" }, ConfigErrorInvalidGraphBackend},
		"neo4j uri":     {func(c *Config) { c.Graph.URI = " " }, ConfigErrorMissingNeo4jURI},
		"index backend": {func(c *Config) { c.Index.Backend = "faiss" }, ConfigErrorInvalidIndexBackend},
		"graph index":   {func(c *Config) { c.Graph.Backend = "memory"; c.Index.Backend = "graph" }, ConfigErrorGraphIndexNeedsNeo},
		"dim":           {func(c *Config) { c.Index.Dim = 0 }, ConfigErrorInvalidNumber},
		"provider":      {func(c *Config) { c.LLM.Provider = "gemini" }, ConfigErrorInvalidLLMProvider},
		"policy":        {func(c *Config) { c.LLM.FilterPolicy = "maybe" }, ConfigErrorInvalidFilterPolicy},
		"default style": {func(c *Config) { c.Search.DefaultStyle = "龐克" }, ConfigErrorInvalidDefaultStyle},
		"locale":        {func(c *Config) { c.Search.Locale = "fr" }, ConfigErrorInvalidLocale},
		"schedule":      {func(c *Config) { c.Recommend.Schedule = "every day" }, ConfigErrorInvalidSchedule},
		"storage":       {func(c *Config) { c.Storage.Mode = "gcs_emulator" }, ConfigErrorInvalidStorage},
		"redis addr":    {func(c *Config) { c.Cache.Enabled = true; c.Cache.RedisAddr = "" }, ConfigErrorMissingRedisAddr},
		"cache backend": {func(c *Config) { c.Cache.Backend = "memcached" }, ConfigErrorInvalidCacheBackend},
		"port":          {func(c *Config) { c.Server.Port = 70000 }, ConfigErrorInvalidNumber},
		"complementary": {func(c *Config) { c.Search.ComplementaryLimit = 0 }, ConfigErrorInvalidNumber},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			var ce *ConfigError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tc.code, ce.Code)
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Graph.Backend = " Neo4j "
	cfg.Index.Backend = "GRAPH"
	cfg.LLM.FilterPolicy = "closed"
	cfg.Search.Locale = "zh_tw"
	cfg.Storage.Mode = ""
	cfg.Storage.EmulatorHost = "http://localhost:4443/"
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "neo4j", cfg.Graph.Backend)
	assert.Equal(t, "graph", cfg.Index.Backend)
	assert.Equal(t, "fail_closed", cfg.LLM.FilterPolicy)
	assert.Equal(t, "zh-TW", cfg.Search.Locale)
	assert.Equal(t, "gcs_emulator", cfg.Storage.Mode)
	assert.Equal(t, "http://localhost:4443", cfg.Storage.EmulatorHost)
}
