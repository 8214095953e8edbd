// Package config defines the application configuration, loaded from YAML
// plus environment overrides.
package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Auth           AuthConfig           `yaml:"auth"`
	Log            LogConfig            `yaml:"log"`
	FSRS           FSRSConfig           `yaml:"fsrs"`
	LLM            LLMConfig            `yaml:"llm"`
	Recommendation RecommendationConfig `yaml:"recommendation"`
	Similarity     SimilarityConfig     `yaml:"similarity"`
	UserProfiling  UserProfilingConfig  `yaml:"user_profiling"`
	CORS           CORSConfig           `yaml:"cors"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// RedisConfig holds recommendation cache settings. An empty address
// selects the in-memory store.
type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"REDIS_DB"       env-default:"0"`
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"       env:"AUTH_JWT_SECRET" env-required:"true"`
	JWTIssuer      string        `yaml:"jwt_issuer"       env:"AUTH_JWT_ISSUER" env-default:"algoprep"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"AUTH_ACCESS_TOKEN_TTL" env-default:"15m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// FSRSConfig holds scheduling engine defaults applied to users without
// optimized parameters.
type FSRSConfig struct {
	// DefaultParametersRaw is a comma-separated list of the 17 weights.
	DefaultParametersRaw    string  `yaml:"default_parameters"        env:"FSRS_DEFAULT_PARAMETERS"`
	DefaultRequestRetention float64 `yaml:"default_request_retention" env:"FSRS_DEFAULT_REQUEST_RETENTION" env-default:"0.9"`

	// Weights is parsed from DefaultParametersRaw during validation.
	// HasCustomWeights reports whether the raw value was non-empty.
	Weights          [17]float64 `yaml:"-" env:"-"`
	HasCustomWeights bool        `yaml:"-" env:"-"`
}

// LLMConfig holds the provider chain configuration.
type LLMConfig struct {
	Enabled         bool         `yaml:"enabled" env:"LLM_ENABLED" env-default:"false"`
	ChainID         string       `yaml:"chain_id" env:"LLM_CHAIN_ID" env-default:"default"`
	DefaultStrategy string       `yaml:"default_strategy" env:"LLM_DEFAULT_STRATEGY" env-default:"fsrs_fallback"`
	Nodes           []NodeConfig `yaml:"nodes"`

	GlobalRPS     float64 `yaml:"global_rps"       env:"LLM_GLOBAL_RPS"       env-default:"10"`
	GlobalBurst   int     `yaml:"global_burst"     env:"LLM_GLOBAL_BURST"     env-default:"20"`
	PerUserPerMin int     `yaml:"per_user_per_min" env:"LLM_PER_USER_PER_MIN" env-default:"30"`

	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

// NodeConfig configures one provider slot in the chain.
type NodeConfig struct {
	Name            string   `yaml:"name"`
	Enabled         bool     `yaml:"enabled"`
	TimeoutMs       int      `yaml:"timeout_ms"`
	RetryAttempts   int      `yaml:"retry_attempts"`
	OnErrorsToNext  []string `yaml:"on_errors_to_next"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
}

// OpenAIConfig holds settings for the OpenAI-compatible provider.
// APIKeyEnv names the environment variable with the key, never the key.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url"    env:"LLM_OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model     string `yaml:"model"       env:"LLM_OPENAI_MODEL"    env-default:"gpt-4o-mini"`
	APIKeyEnv string `yaml:"api_key_env" env:"LLM_OPENAI_API_KEY_ENV" env-default:"OPENAI_API_KEY"`
	TimeoutMs int    `yaml:"timeout_ms"  env:"LLM_OPENAI_TIMEOUT_MS"  env-default:"8000"`
}

// AnthropicConfig holds settings for the Anthropic provider.
type AnthropicConfig struct {
	Model     string `yaml:"model"       env:"LLM_ANTHROPIC_MODEL"     env-default:"claude-sonnet-4-5"`
	APIKeyEnv string `yaml:"api_key_env" env:"LLM_ANTHROPIC_API_KEY_ENV" env-default:"ANTHROPIC_API_KEY"`
	MaxTokens int    `yaml:"max_tokens"  env:"LLM_ANTHROPIC_MAX_TOKENS"  env-default:"2048"`
}

// RecommendationConfig holds response caching settings.
type RecommendationConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" env:"RECOMMENDATION_CACHE_TTL_SECONDS" env-default:"3600"`
}

// SimilarityConfig weighs the problem feature channels when scoring
// relatedness for domain-aware fallback ordering.
type SimilarityConfig struct {
	Weights    SimilarityWeights    `yaml:"weights"`
	Thresholds SimilarityThresholds `yaml:"thresholds"`
}

type SimilarityWeights struct {
	Tags       float64 `yaml:"tags"       env:"SIMILARITY_WEIGHT_TAGS"       env-default:"0.6"`
	Categories float64 `yaml:"categories" env:"SIMILARITY_WEIGHT_CATEGORIES" env-default:"0.25"`
	Difficulty float64 `yaml:"difficulty" env:"SIMILARITY_WEIGHT_DIFFICULTY" env-default:"0.15"`
}

type SimilarityThresholds struct {
	// EmptyFeatureSimilarity substitutes for a channel when either side
	// carries no data for it.
	EmptyFeatureSimilarity float64 `yaml:"empty_feature_similarity" env:"SIMILARITY_EMPTY_FEATURE" env-default:"0.5"`
}

// UserProfilingConfig maps problem tags onto request domains; the keys of
// the mapping double as the domain whitelist.
type UserProfilingConfig struct {
	// TagDomainMappingRaw is "tag:domain" pairs separated by commas.
	TagDomainMappingRaw string `yaml:"tag_domain_mapping" env:"USER_PROFILING_TAG_DOMAIN_MAPPING" env-default:"arrays:fundamentals,strings:fundamentals,hash-table:fundamentals,two-pointers:fundamentals,binary-search:fundamentals,linked-list:fundamentals,stack:fundamentals,queue:fundamentals,tree:trees,binary-tree:trees,bst:trees,trie:trees,heap:trees,graph:graphs,bfs:graphs,dfs:graphs,union-find:graphs,topological-sort:graphs,shortest-path:graphs,dp:dp,memoization:dp,greedy:greedy,backtracking:backtracking,bit-manipulation:math,math:math,geometry:math,design:design,sliding-window:fundamentals,sorting:fundamentals,intervals:fundamentals"`

	// TagDomainMapping is parsed from TagDomainMappingRaw during validation.
	TagDomainMapping map[string]string `yaml:"-" env:"-"`
}

// DomainWhitelist returns the set of domains appearing in the mapping.
func (c UserProfilingConfig) DomainWhitelist() map[string]bool {
	out := make(map[string]bool, len(c.TagDomainMapping))
	for _, d := range c.TagDomainMapping {
		out[d] = true
	}
	return out
}

// CORSConfig holds Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET, POST, PUT, DELETE, OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Authorization, Content-Type, X-Request-Id"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"false"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"300"`
}

// RateLimitConfig holds HTTP-level throttling settings.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATE_LIMIT_RPM"   env-default:"300"`
	Burst             int `yaml:"burst"               env:"RATE_LIMIT_BURST" env-default:"50"`
}
