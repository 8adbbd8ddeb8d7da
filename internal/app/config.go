package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/outfitmatch-backend/internal/data/db"
	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/modules/matcher"
	"github.com/yungbote/outfitmatch-backend/internal/modules/querytranslate"
	"github.com/yungbote/outfitmatch-backend/internal/modules/recommend"
	"github.com/yungbote/outfitmatch-backend/internal/modules/similarity"
	"github.com/yungbote/outfitmatch-backend/internal/platform/envutil"
	"github.com/yungbote/outfitmatch-backend/internal/platform/gcp"
)

// ConfigPathEnv names the YAML file when --config is not given.
const ConfigPathEnv = "OUTFITMATCH_CONFIG"

const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

type Config struct {
	Env     string `yaml:"env"`
	LogMode string `yaml:"log_mode"`

	Server    ServerConfig      `yaml:"server"`
	Graph     GraphConfig       `yaml:"graph"`
	Index     IndexConfig       `yaml:"index"`
	LLM       LLMConfig         `yaml:"llm"`
	Inference InferenceConfig   `yaml:"inference"`
	Cache     CacheConfig       `yaml:"cache"`
	Storage   StorageConfig     `yaml:"storage"`
	Postgres  db.PostgresConfig `yaml:"postgres"`
	Search    SearchConfig      `yaml:"search"`
	Ingest    IngestConfig      `yaml:"ingest"`
	Recommend RecommendConfig   `yaml:"recommend"`
	Otel      OtelConfig        `yaml:"otel"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

type GraphConfig struct {
	Backend     string        `yaml:"backend"` // memory | neo4j
	URI         string        `yaml:"uri"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	Database    string        `yaml:"database"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxPoolSize int           `yaml:"max_pool_size"`
}

type IndexConfig struct {
	Backend string `yaml:"backend"` // local | graph
	// Path is the badger directory; empty keeps the local index in memory.
	Path string `yaml:"path"`
	Dim  int    `yaml:"dim"`
}

type LLMConfig struct {
	Provider          string        `yaml:"provider"`
	OpenAIKey         string        `yaml:"openai_api_key"`
	AnthropicKey      string        `yaml:"anthropic_api_key"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	StyleModel        string        `yaml:"style_model"`
	FilterModel       string        `yaml:"filter_model"`
	FilterPolicy      string        `yaml:"filter_policy"`
	StyleAttempts     int           `yaml:"style_attempts"`
	StyleBackoff      time.Duration `yaml:"style_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// APIKey returns the key of the selected provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == "anthropic" {
		return c.AnthropicKey
	}
	return c.OpenAIKey
}

type InferenceConfig struct {
	URL               string        `yaml:"url"`
	APIKey            string        `yaml:"api_key"`
	SegmentationModel string        `yaml:"segmentation_model"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	UseCUDA           bool          `yaml:"use_cuda"`
	Timeout           time.Duration `yaml:"timeout"`
	GarmentLabels     []uint8       `yaml:"garment_labels"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// Backend is redis (shared across replicas) or memory (per process LRU).
	Backend string `yaml:"backend"`
	// Size caps the memory backend's entry count.
	Size int `yaml:"size"`
	// Events publishes and consumes ingestion events over redis pub/sub.
	Events        bool          `yaml:"events"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	KeyPrefix     string        `yaml:"key_prefix"`
	Channel       string        `yaml:"channel"`
}

type StorageConfig struct {
	Mode         string `yaml:"mode"`
	EmulatorHost string `yaml:"emulator_host"`
	Credentials  string `yaml:"credentials"`
}

type SearchConfig struct {
	Limit              int    `yaml:"limit"`
	ComplementaryLimit int    `yaml:"complementary_limit"`
	Locale             string `yaml:"locale"`
	DefaultStyle       string `yaml:"default_style"`
}

type IngestConfig struct {
	Workers       int           `yaml:"workers"`
	BatchSize     int           `yaml:"batch_size"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	FetchAttempts int           `yaml:"fetch_attempts"`
	MaxImageBytes int64         `yaml:"max_image_bytes"`
}

type RecommendConfig struct {
	// Schedule is a cron expression; empty disables in-server rebuilds.
	Schedule        string        `yaml:"schedule"`
	Timeout         time.Duration `yaml:"timeout"`
	GoesWithMaxGap  float64       `yaml:"goes_with_max_gap"`
	MinCommonStyles int           `yaml:"min_common_styles"`
	OutfitMaxGap    float64       `yaml:"outfit_max_gap"`
	MinCoOccurrence int           `yaml:"min_co_occurrence"`
	TopProducts     int           `yaml:"top_products"`
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	Headers     string  `yaml:"headers"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func DefaultConfig() Config {
	rc := recommend.DefaultConfig()
	return Config{
		Env:     "development",
		LogMode: "development",
		Server: ServerConfig{
			Port:         8000,
			MaxBodyBytes: 15 << 20,
			DrainTimeout: 15 * time.Second,
		},
		Graph: GraphConfig{
			Backend:     "neo4j",
			URI:         "bolt://localhost:7687",
			User:        "neo4j",
			Database:    "neo4j",
			Timeout:     10 * time.Second,
			MaxPoolSize: 50,
		},
		Index: IndexConfig{Backend: string(similarity.BackendLocal), Path: "data/index", Dim: 768},
		LLM: LLMConfig{
			Provider:      "openai",
			Timeout:       30 * time.Second,
			StyleModel:    "gpt-4o-mini",
			FilterModel:   "gpt-4o",
			FilterPolicy:  string(querytranslate.FailOpen),
			StyleAttempts: 3,
			StyleBackoff:  2 * time.Second,
		},
		Inference: InferenceConfig{
			URL:               "http://localhost:8100",
			SegmentationModel: "mattmdjaga/segformer_b2_clothes",
			EmbeddingModel:    "google/vit-base-patch16-224",
			Timeout:           20 * time.Second,
		},
		Cache: CacheConfig{
			Backend:   CacheBackendRedis,
			Size:      4096,
			TTL:       time.Hour,
			RedisAddr: "localhost:6379",
			KeyPrefix: "outfitmatch",
			Channel:   "outfitmatch:events",
		},
		Storage: StorageConfig{Mode: string(gcp.StorageModeGCS)},
		Search: SearchConfig{
			Limit:              10,
			ComplementaryLimit: 5,
			Locale:             string(matcher.LocaleZhTW),
			DefaultStyle:       string(fashion.DefaultStyle),
		},
		Ingest: IngestConfig{
			Workers:       4,
			BatchSize:     200,
			FetchTimeout:  30 * time.Second,
			FetchAttempts: 3,
			MaxImageBytes: 15 << 20,
		},
		Recommend: RecommendConfig{
			Timeout:         30 * time.Minute,
			GoesWithMaxGap:  rc.GoesWith.MaxPriceGap,
			MinCommonStyles: rc.GoesWith.MinCommonStyles,
			OutfitMaxGap:    rc.Outfit.MaxPriceGap,
			MinCoOccurrence: rc.StyleSimilarity.MinCoOccurrence,
			TopProducts:     rc.TopProducts,
		},
		Otel: OtelConfig{SampleRatio: 1},
	}
}

// LoadConfig layers defaults, the YAML file (path, else $OUTFITMATCH_CONFIG)
// and environment overrides, then validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = envutil.String("", ConfigPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decodeYAML(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String(cfg.Env, "APP_ENV")
	cfg.LogMode = envutil.String(cfg.LogMode, "LOG_MODE")

	cfg.Server.Port = envutil.Int("SERVER_PORT", cfg.Server.Port)
	if origins := envutil.String("", "CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = splitList(origins)
	}
	cfg.Server.MaxBodyBytes = int64(envutil.Int("MAX_BODY_BYTES", int(cfg.Server.MaxBodyBytes)))

	cfg.Graph.Backend = envutil.String(cfg.Graph.Backend, "GRAPH_BACKEND")
	cfg.Graph.URI = envutil.String(cfg.Graph.URI, "NEO4J_URI")
	cfg.Graph.User = envutil.String(cfg.Graph.User, "NEO4J_USER", "NEO4J_USERNAME")
	cfg.Graph.Password = envutil.String(cfg.Graph.Password, "NEO4J_PASSWORD")
	cfg.Graph.Database = envutil.String(cfg.Graph.Database, "NEO4J_DATABASE")
	cfg.Graph.Timeout = envutil.Duration("NEO4J_TIMEOUT", cfg.Graph.Timeout)

	cfg.Index.Backend = envutil.String(cfg.Index.Backend, "INDEX_BACKEND")
	cfg.Index.Path = envutil.String(cfg.Index.Path, "INDEX_PATH")
	cfg.Index.Dim = envutil.Int("EMBEDDING_DIM", cfg.Index.Dim)

	cfg.LLM.Provider = envutil.String(cfg.LLM.Provider, "LLM_PROVIDER")
	cfg.LLM.OpenAIKey = envutil.String(cfg.LLM.OpenAIKey, "OPENAI_API_KEY")
	cfg.LLM.AnthropicKey = envutil.String(cfg.LLM.AnthropicKey, "ANTHROPIC_API_KEY")
	cfg.LLM.BaseURL = envutil.String(cfg.LLM.BaseURL, "LLM_BASE_URL")
	cfg.LLM.StyleModel = envutil.String(cfg.LLM.StyleModel, "STYLE_PREDICTION_MODEL")
	cfg.LLM.FilterModel = envutil.String(cfg.LLM.FilterModel, "NL2FILTER_MODEL", "NL2CYPHER_MODEL")
	if v := envutil.String("", "FILTER_FAIL_OPEN"); v != "" {
		if envutil.Bool("FILTER_FAIL_OPEN", true) {
			cfg.LLM.FilterPolicy = string(querytranslate.FailOpen)
		} else {
			cfg.LLM.FilterPolicy = string(querytranslate.FailClosed)
		}
	}
	cfg.LLM.RequestsPerSecond = envutil.Float("LLM_REQUESTS_PER_SECOND", cfg.LLM.RequestsPerSecond)

	cfg.Inference.URL = envutil.String(cfg.Inference.URL, "INFERENCE_URL")
	cfg.Inference.APIKey = envutil.String(cfg.Inference.APIKey, "INFERENCE_API_KEY")
	cfg.Inference.SegmentationModel = envutil.String(cfg.Inference.SegmentationModel, "SEGMENTATION_MODEL")
	cfg.Inference.EmbeddingModel = envutil.String(cfg.Inference.EmbeddingModel, "EMBEDDING_MODEL")
	cfg.Inference.UseCUDA = envutil.Bool("USE_CUDA", cfg.Inference.UseCUDA)

	cfg.Cache.Enabled = envutil.Bool("ENABLE_QUERY_CACHE", cfg.Cache.Enabled)
	cfg.Cache.Events = envutil.Bool("ENABLE_EVENTS", cfg.Cache.Events)
	cfg.Cache.Backend = envutil.String(cfg.Cache.Backend, "CACHE_BACKEND")
	cfg.Cache.Size = envutil.Int("CACHE_SIZE", cfg.Cache.Size)
	cfg.Cache.TTL = time.Duration(envutil.Int("CACHE_TTL_SECONDS", int(cfg.Cache.TTL/time.Second))) * time.Second
	cfg.Cache.RedisAddr = envutil.String(cfg.Cache.RedisAddr, "REDIS_ADDR")
	cfg.Cache.RedisPassword = envutil.String(cfg.Cache.RedisPassword, "REDIS_PASSWORD")
	cfg.Cache.RedisDB = envutil.Int("REDIS_DB", cfg.Cache.RedisDB)

	cfg.Storage.Mode = envutil.String(cfg.Storage.Mode, "OBJECT_STORAGE_MODE", "STORAGE_MODE")
	cfg.Storage.EmulatorHost = envutil.String(cfg.Storage.EmulatorHost, "STORAGE_EMULATOR_HOST")
	cfg.Storage.Credentials = envutil.String(cfg.Storage.Credentials, "GOOGLE_APPLICATION_CREDENTIALS_JSON", "GOOGLE_APPLICATION_CREDENTIALS")

	cfg.Postgres.DSN = envutil.String(cfg.Postgres.DSN, "POSTGRES_DSN", "DATABASE_URL")
	cfg.Postgres.Host = envutil.String(cfg.Postgres.Host, "POSTGRES_HOST")
	cfg.Postgres.Port = envutil.String(cfg.Postgres.Port, "POSTGRES_PORT")
	cfg.Postgres.User = envutil.String(cfg.Postgres.User, "POSTGRES_USER")
	cfg.Postgres.Password = envutil.String(cfg.Postgres.Password, "POSTGRES_PASSWORD")
	cfg.Postgres.Name = envutil.String(cfg.Postgres.Name, "POSTGRES_NAME", "POSTGRES_DB")
	cfg.Postgres.SSLMode = envutil.String(cfg.Postgres.SSLMode, "POSTGRES_SSLMODE")

	cfg.Search.Locale = envutil.String(cfg.Search.Locale, "RESPONSE_LOCALE")
	cfg.Search.DefaultStyle = envutil.String(cfg.Search.DefaultStyle, "DEFAULT_STYLE")

	cfg.Ingest.Workers = envutil.Int("INGEST_WORKERS", cfg.Ingest.Workers)

	cfg.Recommend.Schedule = envutil.String(cfg.Recommend.Schedule, "RECOMMEND_SCHEDULE")

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.Endpoint = envutil.String(cfg.Otel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	cfg.Otel.Headers = envutil.String(cfg.Otel.Headers, "OTEL_EXPORTER_OTLP_HEADERS")
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLE_RATIO", cfg.Otel.SampleRatio)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidGraphBackend ConfigErrorCode = "invalid_graph_backend"
	ConfigErrorMissingNeo4jURI     ConfigErrorCode = "missing_neo4j_uri"
	ConfigErrorInvalidIndexBackend ConfigErrorCode = "invalid_index_backend"
	ConfigErrorGraphIndexNeedsNeo  ConfigErrorCode = "graph_index_needs_neo4j"
	ConfigErrorInvalidLLMProvider  ConfigErrorCode = "invalid_llm_provider"
	ConfigErrorInvalidFilterPolicy ConfigErrorCode = "invalid_filter_policy"
	ConfigErrorInvalidDefaultStyle ConfigErrorCode = "invalid_default_style"
	ConfigErrorInvalidLocale       ConfigErrorCode = "invalid_locale"
	ConfigErrorInvalidSchedule     ConfigErrorCode = "invalid_recommend_schedule"
	ConfigErrorInvalidStorage      ConfigErrorCode = "invalid_storage"
	ConfigErrorMissingRedisAddr    ConfigErrorCode = "missing_redis_addr"
	ConfigErrorInvalidCacheBackend ConfigErrorCode = "invalid_cache_backend"
	ConfigErrorInvalidNumber       ConfigErrorCode = "invalid_number"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Field string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config (code=%s field=%s): %v", e.Code, e.Field, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func configErr(code ConfigErrorCode, field string, format string, args ...any) error {
	return &ConfigError{Code: code, Field: field, Cause: fmt.Errorf(format, args...)}
}

// Validate normalizes enum-like fields in place and rejects anything the
// wiring could not honour.
func (c *Config) Validate() error {
	c.Graph.Backend = strings.ToLower(strings.TrimSpace(c.Graph.Backend))
	switch c.Graph.Backend {
	case "memory":
	case "neo4j":
		if strings.TrimSpace(c.Graph.URI) == "" {
			return configErr(ConfigErrorMissingNeo4jURI, "graph.uri", "neo4j backend needs a uri")
		}
	default:
		return configErr(ConfigErrorInvalidGraphBackend, "graph.backend", "unknown graph backend %q", c.Graph.Backend)
	}

	backend, err := similarity.ParseBackend(c.Index.Backend)
	if err != nil {
		return &ConfigError{Code: ConfigErrorInvalidIndexBackend, Field: "index.backend", Cause: err}
	}
	c.Index.Backend = string(backend)
	if backend == similarity.BackendGraph && c.Graph.Backend != "neo4j" {
		return configErr(ConfigErrorGraphIndexNeedsNeo, "index.backend", "graph index backend requires graph.backend=neo4j")
	}
	if c.Index.Dim <= 0 {
		return configErr(ConfigErrorInvalidNumber, "index.dim", "embedding dimension must be positive, got %d", c.Index.Dim)
	}

	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "claude" {
		c.LLM.Provider = "anthropic"
	}
	if c.LLM.Provider != "openai" && c.LLM.Provider != "anthropic" {
		return configErr(ConfigErrorInvalidLLMProvider, "llm.provider", "unknown provider %q", c.LLM.Provider)
	}
	policy, err := querytranslate.ParsePolicy(c.LLM.FilterPolicy)
	if err != nil {
		return &ConfigError{Code: ConfigErrorInvalidFilterPolicy, Field: "llm.filter_policy", Cause: err}
	}
	c.LLM.FilterPolicy = string(policy)

	st, ok := fashion.ParseStyle(c.Search.DefaultStyle)
	if !ok {
		return configErr(ConfigErrorInvalidDefaultStyle, "search.default_style", "%q is not a vocabulary style", c.Search.DefaultStyle)
	}
	c.Search.DefaultStyle = string(st)
	locale, err := matcher.ParseLocale(c.Search.Locale)
	if err != nil {
		return &ConfigError{Code: ConfigErrorInvalidLocale, Field: "search.locale", Cause: err}
	}
	c.Search.Locale = string(locale)
	if c.Search.Limit <= 0 || c.Search.ComplementaryLimit <= 0 {
		return configErr(ConfigErrorInvalidNumber, "search.limit", "limits must be positive")
	}

	if c.Recommend.Schedule != "" {
		if err := recommend.ValidateSchedule(c.Recommend.Schedule); err != nil {
			return &ConfigError{Code: ConfigErrorInvalidSchedule, Field: "recommend.schedule", Cause: err}
		}
	}

	sc, err := gcp.ResolveStorageConfig(c.Storage.Mode, c.Storage.EmulatorHost, c.Storage.Credentials)
	if err != nil {
		return &ConfigError{Code: ConfigErrorInvalidStorage, Field: "storage", Cause: err}
	}
	c.Storage.Mode = string(sc.Mode)
	c.Storage.EmulatorHost = sc.EmulatorHost

	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheBackendRedis
	}
	if c.Cache.Backend != CacheBackendRedis && c.Cache.Backend != CacheBackendMemory {
		return configErr(ConfigErrorInvalidCacheBackend, "cache.backend", "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Size < 0 {
		return configErr(ConfigErrorInvalidNumber, "cache.size", "cache size must not be negative: %d", c.Cache.Size)
	}
	if c.UsesRedis() && strings.TrimSpace(c.Cache.RedisAddr) == "" {
		return configErr(ConfigErrorMissingRedisAddr, "cache.redis_addr", "redis query cache or events enabled without a redis address")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return configErr(ConfigErrorInvalidNumber, "server.port", "port out of range: %d", c.Server.Port)
	}
	return nil
}

// UsesRedis reports whether any feature needs the redis client.
func (c Config) UsesRedis() bool {
	return (c.Cache.Enabled && c.Cache.Backend != CacheBackendMemory) || c.Cache.Events
}

// ListenAddr is the HTTP bind address.
func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

func (c Config) DeviceHint() string {
	if c.Inference.UseCUDA {
		return "cuda"
	}
	return "cpu"
}
