package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"

	"github.com/xxxsen/legalrag/internal/ai"
)

const (
	CorpusTypeMemory   = "memory"
	CorpusTypePostgres = "postgres"
)

type Config struct {
	Port      int              `json:"port"`
	LogConfig logger.LogConfig `json:"log_config"`
	Database  DatabaseConfig   `json:"database"`
	Corpus    CorpusConfig     `json:"corpus"`
	AI        AIConfig         `json:"ai"`
	RAG       RAGConfig        `json:"rag"`
	Cache     CacheConfig      `json:"cache"`
	FileStore FileStoreConfig  `json:"file_store"`
	Schedule  ScheduleConfig   `json:"schedule"`
	HTTP      HTTPConfig       `json:"http"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// CorpusConfig selects the corpus store. "memory" keeps everything in process
// and needs no database.
type CorpusConfig struct {
	Type string `json:"type"`
}

type AIProviderConfig struct {
	Name string      `json:"name"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIModelConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type GuardConfig struct {
	RequestsPerSecond  float64 `json:"requests_per_second"`
	Burst              int     `json:"burst"`
	BreakerFailures    uint32  `json:"breaker_failures"`
	BreakerCooldownSec int     `json:"breaker_cooldown_sec"`
}

type AIConfig struct {
	Providers []AIProviderConfig `json:"providers"`
	// Embedders and Generators are tried in order.
	Embedders  []AIModelConfig   `json:"embedders"`
	Generators []AIModelConfig   `json:"generators"`
	Decoding   ai.DecodingConfig `json:"decoding"`
	Guard      GuardConfig       `json:"guard"`
	// EmbeddingDimension is the corpus vector size D.
	EmbeddingDimension int `json:"embedding_dimension"`
	MaxInputChars      int `json:"max_input_chars"`
	Timeout            int `json:"timeout"`
}

type KeywordRuleConfig struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

type RAGConfig struct {
	// Threshold is a pointer so an explicit 0 survives defaulting.
	Threshold          *float64            `json:"threshold"`
	TopK               int                 `json:"top_k"`
	CandidateLimit     int                 `json:"candidate_limit"`
	AllowModelMismatch bool                `json:"allow_model_mismatch"`
	HistoryWindow      int                 `json:"history_window"`
	SnippetLength      int                 `json:"snippet_length"`
	KeywordRouting     bool                `json:"keyword_routing"`
	KeywordRules       []KeywordRuleConfig `json:"keyword_rules"`
	MaxQuestionChars   int                 `json:"max_question_chars"`
}

type CacheConfig struct {
	EmbeddingLRUSize   int  `json:"embedding_lru_size"`
	EmbeddingLRUTTLSec int  `json:"embedding_lru_ttl_sec"`
	EmbeddingDB        bool `json:"embedding_db"`
	AnswerLRUSize      int  `json:"answer_lru_size"`
	AnswerTTLSec       int  `json:"answer_ttl_sec"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ScheduleConfig struct {
	EmbeddingCacheCleanup   string `json:"embedding_cache_cleanup"`
	EmbeddingCacheMaxAgeDay int    `json:"embedding_cache_max_age_day"`
	QALogCleanup            string `json:"qa_log_cleanup"`
	QALogMaxAgeDay          int    `json:"qa_log_max_age_day"`
	StaleEmbedding          string `json:"stale_embedding"`
	StaleEmbeddingBatch     int    `json:"stale_embedding_batch"`
}

type HTTPConfig struct {
	CORSOrigins     []string `json:"cors_origins"`
	RateLimitPerMin int      `json:"rate_limit_per_min"`
	MaxUploadBytes  int64    `json:"max_upload_bytes"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}

	c.Corpus.Type = strings.ToLower(strings.TrimSpace(c.Corpus.Type))
	if c.Corpus.Type == "" {
		c.Corpus.Type = CorpusTypePostgres
	}
	switch c.Corpus.Type {
	case CorpusTypeMemory:
	case CorpusTypePostgres:
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for postgres corpus")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
	default:
		return fmt.Errorf("corpus.type must be memory or postgres")
	}
	if c.Cache.EmbeddingDB && c.Corpus.Type != CorpusTypePostgres {
		return fmt.Errorf("cache.embedding_db requires the postgres corpus")
	}

	if err := c.AI.applyDefaults(); err != nil {
		return err
	}
	if err := c.RAG.applyDefaults(); err != nil {
		return err
	}

	if c.Cache.EmbeddingLRUSize == 0 {
		c.Cache.EmbeddingLRUSize = 1024
	}
	if c.Cache.EmbeddingLRUTTLSec == 0 {
		c.Cache.EmbeddingLRUTTLSec = 3600
	}
	if c.Cache.AnswerTTLSec == 0 {
		c.Cache.AnswerTTLSec = 600
	}

	if c.FileStore.Type == "" {
		c.FileStore.Type = "local"
	}

	if c.Schedule.EmbeddingCacheCleanup == "" {
		c.Schedule.EmbeddingCacheCleanup = "0 3 * * *"
	}
	if c.Schedule.EmbeddingCacheMaxAgeDay == 0 {
		c.Schedule.EmbeddingCacheMaxAgeDay = 30
	}
	if c.Schedule.QALogCleanup == "" {
		c.Schedule.QALogCleanup = "30 3 * * *"
	}
	if c.Schedule.QALogMaxAgeDay == 0 {
		c.Schedule.QALogMaxAgeDay = 90
	}
	if c.Schedule.StaleEmbedding == "" {
		c.Schedule.StaleEmbedding = "*/10 * * * *"
	}
	if c.Schedule.StaleEmbeddingBatch == 0 {
		c.Schedule.StaleEmbeddingBatch = 100
	}

	if c.HTTP.RateLimitPerMin == 0 {
		c.HTTP.RateLimitPerMin = 60
	}
	if c.HTTP.MaxUploadBytes == 0 {
		c.HTTP.MaxUploadBytes = 8 << 20
	}
	return nil
}

func (a *AIConfig) applyDefaults() error {
	if len(a.Providers) == 0 {
		return fmt.Errorf("ai.providers is required")
	}
	names := make(map[string]struct{}, len(a.Providers))
	for i, p := range a.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("ai.providers[%d].name is required", i)
		}
		if strings.TrimSpace(p.Type) == "" {
			a.Providers[i].Type = p.Name
		}
		names[p.Name] = struct{}{}
	}
	if len(a.Embedders) == 0 {
		return fmt.Errorf("ai.embedders is required")
	}
	if len(a.Generators) == 0 {
		return fmt.Errorf("ai.generators is required")
	}
	for _, group := range [][]AIModelConfig{a.Embedders, a.Generators} {
		for _, m := range group {
			if _, ok := names[m.Provider]; !ok {
				return fmt.Errorf("ai model %q references unknown provider %q", m.Model, m.Provider)
			}
			if strings.TrimSpace(m.Model) == "" {
				return fmt.Errorf("ai model is required for provider %q", m.Provider)
			}
		}
	}
	a.Decoding = a.Decoding.WithDefaults()
	if a.EmbeddingDimension < 0 {
		return fmt.Errorf("ai.embedding_dimension must not be negative")
	}
	if a.MaxInputChars == 0 {
		a.MaxInputChars = 8000
	}
	if a.Timeout == 0 {
		a.Timeout = 30
	}
	if a.Guard.Burst == 0 {
		a.Guard.Burst = 5
	}
	if a.Guard.BreakerFailures == 0 {
		a.Guard.BreakerFailures = 5
	}
	if a.Guard.BreakerCooldownSec == 0 {
		a.Guard.BreakerCooldownSec = 30
	}
	return nil
}

func (r *RAGConfig) applyDefaults() error {
	if r.Threshold == nil {
		v := 0.7
		r.Threshold = &v
	}
	if *r.Threshold < -1 || *r.Threshold >= 1 {
		return fmt.Errorf("rag.threshold must be within [-1, 1)")
	}
	if r.TopK == 0 {
		r.TopK = 5
	}
	if r.TopK < 0 {
		return fmt.Errorf("rag.top_k must be positive")
	}
	if r.HistoryWindow == 0 {
		r.HistoryWindow = 5
	}
	if r.SnippetLength == 0 {
		r.SnippetLength = 200
	}
	if r.MaxQuestionChars == 0 {
		r.MaxQuestionChars = 2000
	}
	return nil
}
