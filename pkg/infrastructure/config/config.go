package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all phrasecurator configuration
type Config struct {
	Database   DatabaseConfig   `json:"database" yaml:"database"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Normalizer NormalizerConfig `json:"normalizer" yaml:"normalizer"`
	Duplicates DuplicatesConfig `json:"duplicates" yaml:"duplicates"`
	Bloom      BloomConfig      `json:"bloom" yaml:"bloom"`
	Scoring    ScoringConfig    `json:"scoring" yaml:"scoring"`
	Quota      QuotaConfig      `json:"quota" yaml:"quota"`
	Recency    RecencyConfig    `json:"recency" yaml:"recency"`
	Export     ExportConfig     `json:"export" yaml:"export"`
	Search     SearchConfig     `json:"search" yaml:"search"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	URL            string `json:"url" yaml:"url"`
	MaxConnections int32  `json:"max_connections" yaml:"max_connections"`
	ConnectTimeout int    `json:"connect_timeout_seconds" yaml:"connect_timeout_seconds"`
}

// CacheConfig holds the on-disk score cache location
type CacheConfig struct {
	Path    string `json:"path" yaml:"path"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// NormalizerConfig holds phrase validation limits
type NormalizerConfig struct {
	MaxWords  int `json:"max_words" yaml:"max_words"`
	MinLength int `json:"min_length" yaml:"min_length"`
	MaxLength int `json:"max_length" yaml:"max_length"`
}

// DuplicatesConfig holds duplicate detection settings
type DuplicatesConfig struct {
	FirstWordLimit int  `json:"first_word_limit" yaml:"first_word_limit"`
	UseBloomFilter bool `json:"use_bloom_filter" yaml:"use_bloom_filter"`
}

// BloomConfig holds per-category filter sizing
type BloomConfig struct {
	BitsPerElement uint `json:"bits_per_element" yaml:"bits_per_element"`
	HashFunctions  uint `json:"hash_functions" yaml:"hash_functions"`
	MinCapacity    uint `json:"min_capacity" yaml:"min_capacity"`
}

// ScoringConfig holds quality scorer settings
type ScoringConfig struct {
	AutoAcceptThreshold int                 `json:"auto_accept_threshold" yaml:"auto_accept_threshold"`
	ExcellentThreshold  int                 `json:"excellent_threshold" yaml:"excellent_threshold"`
	ReviewThreshold     int                 `json:"review_threshold" yaml:"review_threshold"`
	WarningThreshold    int                 `json:"warning_threshold" yaml:"warning_threshold"`
	BatchSize           int                 `json:"batch_size" yaml:"batch_size"`
	BatchDelayMillis    int                 `json:"batch_delay_ms" yaml:"batch_delay_ms"`
	TimeoutSeconds      int                 `json:"timeout_seconds" yaml:"timeout_seconds"`
	RequestsPerSecond   float64             `json:"requests_per_second" yaml:"requests_per_second"`
	UserAgent           string              `json:"user_agent" yaml:"user_agent"`
	WikidataEndpoint    string              `json:"wikidata_endpoint" yaml:"wikidata_endpoint"`
	RedditEndpoint      string              `json:"reddit_endpoint" yaml:"reddit_endpoint"`
	WikipediaEndpoint   string              `json:"wikipedia_endpoint" yaml:"wikipedia_endpoint"`
	PageviewsEndpoint   string              `json:"pageviews_endpoint" yaml:"pageviews_endpoint"`
	PopCultureSet       []string            `json:"pop_culture_categories" yaml:"pop_culture_categories"`
	CategoryKeywords    map[string][]string `json:"category_keywords" yaml:"category_keywords"`
	RecencyKeywords     []string            `json:"recency_keywords" yaml:"recency_keywords"`
}

// QuotaConfig holds capacity defaults
type QuotaConfig struct {
	DefaultQuota     int     `json:"default_quota" yaml:"default_quota"`
	WarningThreshold float64 `json:"warning_threshold" yaml:"warning_threshold"`
}

// RecencyConfig holds recency balancing targets
type RecencyConfig struct {
	DefaultTargetPercentage float64  `json:"default_target_percentage" yaml:"default_target_percentage"`
	Keywords                []string `json:"keywords" yaml:"keywords"`
}

// ExportConfig holds game export defaults
type ExportConfig struct {
	Shuffle        bool `json:"shuffle" yaml:"shuffle"`
	MaxPhraseChars int  `json:"max_phrase_chars" yaml:"max_phrase_chars"`
}

// SearchConfig holds the curator search index location
type SearchConfig struct {
	IndexPath string `json:"index_path" yaml:"index_path"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
	Output string `json:"output" yaml:"output"` // console, file, both
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".phrasecurator")

	return &Config{
		Database: DatabaseConfig{
			URL:            "postgres://localhost:5432/phrases?sslmode=disable",
			MaxConnections: 10,
			ConnectTimeout: 30,
		},
		Cache: CacheConfig{
			Path:    filepath.Join(dataDir, "score-cache.db"),
			Enabled: true,
		},
		Normalizer: NormalizerConfig{
			MaxWords:  6,
			MinLength: 2,
			MaxLength: 100,
		},
		Duplicates: DuplicatesConfig{
			FirstWordLimit: 5,
			UseBloomFilter: true,
		},
		Bloom: BloomConfig{
			BitsPerElement: 10,
			HashFunctions:  3,
			MinCapacity:    100,
		},
		Scoring: ScoringConfig{
			ExcellentThreshold:  80,
			AutoAcceptThreshold: 60,
			ReviewThreshold:     40,
			WarningThreshold:    20,
			BatchSize:           10,
			BatchDelayMillis:    1000,
			TimeoutSeconds:      8,
			RequestsPerSecond:   5,
			UserAgent:           "PhraseCurator/1.0 (party game phrase curation)",
			WikidataEndpoint:    "https://www.wikidata.org/w/api.php",
			RedditEndpoint:      "https://www.reddit.com/search.json",
			WikipediaEndpoint:   "https://en.wikipedia.org/w/api.php",
			PageviewsEndpoint:   "https://wikimedia.org/api/rest_v1/metrics/pageviews/per-article/en.wikipedia.org/all-access/all-agents",
			PopCultureSet: []string{
				"Movies & TV", "Music", "Famous People", "Video Games", "Sports", "Entertainment", "Pop Culture",
			},
			CategoryKeywords: map[string][]string{
				"Movies & TV":          {"movie", "show", "film", "series", "star", "wars", "man", "king", "queen"},
				"Music":                {"song", "band", "rock", "pop", "album", "dance", "swift", "beatles"},
				"Sports":               {"ball", "cup", "game", "team", "bowl", "race", "goal", "olympics"},
				"Food & Drink":         {"pizza", "cake", "burger", "coffee", "tea", "sandwich", "pie", "soup"},
				"Technology & Science": {"app", "phone", "robot", "computer", "internet", "video", "online"},
				"Video Games":          {"mario", "zelda", "minecraft", "pokemon", "fortnite", "console"},
			},
			RecencyKeywords: []string{"tiktok", "instagram", "streaming", "podcast", "emoji", "selfie", "meme", "ai", "crypto"},
		},
		Quota: QuotaConfig{
			DefaultQuota:     1000,
			WarningThreshold: 0.8,
		},
		Recency: RecencyConfig{
			DefaultTargetPercentage: 10,
			Keywords: []string{
				"tiktok", "instagram", "snapchat", "netflix", "spotify", "youtube", "twitch", "zoom",
				"chatgpt", "ai", "crypto", "nft", "podcast", "streaming", "influencer", "selfie", "meme", "emoji",
			},
		},
		Export: ExportConfig{
			Shuffle:        true,
			MaxPhraseChars: 40,
		},
		Search: SearchConfig{
			IndexPath: filepath.Join(dataDir, "search.bleve"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "console",
		},
	}
}

// LoadConfig loads configuration from file with environment variable overrides
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a JSON or YAML file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, use defaults
			return nil
		}
		return err
	}

	if isYAML(path) {
		return yaml.Unmarshal(data, c)
	}
	return json.Unmarshal(data, c)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// applyEnvironmentOverrides applies environment variable overrides
func (c *Config) applyEnvironmentOverrides() {
	if val := os.Getenv("PHRASECURATOR_DATABASE_URL"); val != "" {
		c.Database.URL = val
	} else if val := os.Getenv("DATABASE_URL"); val != "" {
		c.Database.URL = val
	}
	if val := os.Getenv("PHRASECURATOR_CACHE_PATH"); val != "" {
		c.Cache.Path = val
	}
	if val := os.Getenv("PHRASECURATOR_CACHE_ENABLED"); val != "" {
		c.Cache.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("PHRASECURATOR_FIRST_WORD_LIMIT"); val != "" {
		if limit, err := strconv.Atoi(val); err == nil {
			c.Duplicates.FirstWordLimit = limit
		}
	}
	if val := os.Getenv("PHRASECURATOR_MAX_WORDS"); val != "" {
		if words, err := strconv.Atoi(val); err == nil {
			c.Normalizer.MaxWords = words
		}
	}
	if val := os.Getenv("PHRASECURATOR_SCORING_BATCH_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			c.Scoring.BatchSize = size
		}
	}
	if val := os.Getenv("PHRASECURATOR_SCORING_TIMEOUT"); val != "" {
		if timeout, err := strconv.Atoi(val); err == nil {
			c.Scoring.TimeoutSeconds = timeout
		}
	}
	if val := os.Getenv("PHRASECURATOR_DEFAULT_QUOTA"); val != "" {
		if quota, err := strconv.Atoi(val); err == nil {
			c.Quota.DefaultQuota = quota
		}
	}
	if val := os.Getenv("PHRASECURATOR_RECENT_TARGET"); val != "" {
		if target, err := strconv.ParseFloat(val, 64); err == nil {
			c.Recency.DefaultTargetPercentage = target
		}
	}
	if val := os.Getenv("PHRASECURATOR_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("PHRASECURATOR_LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}
	if val := os.Getenv("PHRASECURATOR_LOG_OUTPUT"); val != "" {
		c.Logging.Output = val
	}
	if val := os.Getenv("PHRASECURATOR_LOG_FILE"); val != "" {
		c.Logging.File = val
	}
}

// Validate validates the configuration and provides helpful suggestions
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database URL cannot be empty. Set PHRASECURATOR_DATABASE_URL or database.url")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be positive (current: %d)", c.Database.MaxConnections)
	}

	if c.Normalizer.MaxWords <= 0 {
		return fmt.Errorf("max words must be positive (current: %d). Use 6 for party-game phrases", c.Normalizer.MaxWords)
	}
	if c.Normalizer.MinLength < 1 || c.Normalizer.MaxLength < c.Normalizer.MinLength {
		return fmt.Errorf("invalid phrase length bounds %d..%d", c.Normalizer.MinLength, c.Normalizer.MaxLength)
	}

	if c.Duplicates.FirstWordLimit <= 0 {
		return fmt.Errorf("first word limit must be positive (current: %d). Use 5 for default diversity", c.Duplicates.FirstWordLimit)
	}

	if c.Bloom.BitsPerElement == 0 || c.Bloom.HashFunctions == 0 {
		return fmt.Errorf("bloom filter needs positive bits per element and hash functions")
	}

	s := c.Scoring
	if !(s.WarningThreshold < s.ReviewThreshold && s.ReviewThreshold < s.AutoAcceptThreshold && s.AutoAcceptThreshold <= s.ExcellentThreshold && s.ExcellentThreshold <= 100) {
		return fmt.Errorf("score thresholds must increase: warning %d < review %d < accept %d <= excellent %d <= 100",
			s.WarningThreshold, s.ReviewThreshold, s.AutoAcceptThreshold, s.ExcellentThreshold)
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("scoring batch size must be positive (current: %d). Use 10 to respect rate limits", s.BatchSize)
	}
	if s.TimeoutSeconds <= 0 || s.TimeoutSeconds > 60 {
		return fmt.Errorf("scoring timeout must be between 1 and 60 seconds (current: %d)", s.TimeoutSeconds)
	}

	if c.Quota.DefaultQuota < 0 {
		return fmt.Errorf("default quota must be non-negative (current: %d)", c.Quota.DefaultQuota)
	}
	if c.Quota.WarningThreshold <= 0 || c.Quota.WarningThreshold >= 1 {
		return fmt.Errorf("quota warning threshold must be between 0 and 1 (current: %.2f)", c.Quota.WarningThreshold)
	}

	if c.Recency.DefaultTargetPercentage < 0 || c.Recency.DefaultTargetPercentage > 100 {
		return fmt.Errorf("recency target must be a percentage (current: %.1f)", c.Recency.DefaultTargetPercentage)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s'. Valid options: debug, info, warn, error", c.Logging.Level)
	}
	validOutputs := map[string]bool{
		"console": true, "file": true, "both": true,
	}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid log output '%s'. Valid options: console, file, both", c.Logging.Output)
	}
	if c.Logging.Output != "console" && c.Logging.File == "" {
		return fmt.Errorf("log file path is required when output is '%s'", c.Logging.Output)
	}

	return nil
}

// ScoringTimeout returns the external lookup timeout
func (c *Config) ScoringTimeout() time.Duration {
	return time.Duration(c.Scoring.TimeoutSeconds) * time.Second
}

// BatchDelay returns the pause between scoring batches
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Scoring.BatchDelayMillis) * time.Millisecond
}

// SaveToFile saves the configuration as JSON or YAML depending on the extension
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".phrasecurator", "config.yaml"), nil
}
