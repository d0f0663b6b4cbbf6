package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MaxRetryAttempts 暫時性錯誤最多嘗試次數
const MaxRetryAttempts = 5

// Config 應用配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Schema    SchemaConfig    `mapstructure:"schema"`
	LogLevel  string          `mapstructure:"log_level"`
	LogDir    string          `mapstructure:"log_dir"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	DedupWindow  time.Duration `mapstructure:"dedup_window"` // 相同上傳的去重時間窗，0 為關閉
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Redis           RedisConfig   `mapstructure:"redis"`
}

// RedisConfig 跨次執行共用的名稱快取
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// UploadConfig 上傳檔案限制
type UploadConfig struct {
	MaxSizeBytes int64 `mapstructure:"max_size_bytes"`
}

// ResolverConfig 名稱解析設定
type ResolverConfig struct {
	DictionaryPath string           `mapstructure:"dictionary_path"`
	PubChem        PubChemConfig    `mapstructure:"pubchem"`
	Translator     TranslatorConfig `mapstructure:"translator"`
	Retry          RetryConfig      `mapstructure:"retry"`
}

// PubChemConfig 化合物同義詞查詢
type PubChemConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// TranslatorConfig 翻譯服務設定
type TranslatorConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Region      string        `mapstructure:"region"`
	SourceLang  string        `mapstructure:"source_lang"`
	TargetLangs []string      `mapstructure:"target_langs"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RetryConfig 暫時性錯誤重試
type RetryConfig struct {
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
}

// MatcherConfig 比對設定
type MatcherConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// PipelineConfig 批次處理設定
type PipelineConfig struct {
	Strategy  string `mapstructure:"strategy"`
	Workers   int    `mapstructure:"workers"`
	QueueSize int    `mapstructure:"queue_size"`
}

// RegistryConfig 台灣許可證資料來源
type RegistryConfig struct {
	Path        string `mapstructure:"path"`
	Sheet       string `mapstructure:"sheet"`
	SQLiteTable string `mapstructure:"sqlite_table"`
}

// SchemaConfig 標題列偵測
type SchemaConfig struct {
	HeaderScanRows int `mapstructure:"header_scan_rows"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件，不存在時只用環境變數與預設值
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// 設定預設值
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	v.BindEnv("resolver.translator.api_key", "TRANSLATOR_API_KEY")
	v.BindEnv("resolver.translator.region", "TRANSLATOR_REGION")
	v.BindEnv("resolver.translator.enabled", "TRANSLATOR_ENABLED")
	v.BindEnv("resolver.pubchem.enabled", "PUBCHEM_ENABLED")
	v.BindEnv("resolver.dictionary_path", "DICTIONARY_PATH")
	v.BindEnv("cache.enabled", "CACHE_ENABLED")
	v.BindEnv("cache.redis.enabled", "REDIS_ENABLED")
	v.BindEnv("cache.redis.addr", "REDIS_ADDR")
	v.BindEnv("cache.redis.password", "REDIS_PASSWORD")
	v.BindEnv("registry.path", "REGISTRY_PATH")
	v.BindEnv("matcher.threshold", "MATCH_THRESHOLD")
	v.BindEnv("pipeline.strategy", "PIPELINE_STRATEGY")
	v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	v.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	v.BindEnv("log_level", "LOG_LEVEL")

	// 設定設定檔名稱和路徑
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	// 讀取設定檔
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// logger 尚未初始化，直接寫 stderr
	fmt.Fprintln(os.Stderr, "Loading configuration", "translator_api_key:", maskAPIKey(v.GetString("resolver.translator.api_key")), "registry:", v.GetString("registry.path"))

	// 解析設定
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// maskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "drug-crossref")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m") // 整批比對會呼叫外部服務
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.dedup_window", "2s")

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_size", 5000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")
	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key_prefix", "drug-crossref:name")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 60)
	v.SetDefault("rate_limit.window", "1m")

	// 上傳設定
	v.SetDefault("upload.max_size_bytes", 20*1024*1024) // 20MB

	// 名稱解析
	v.SetDefault("resolver.dictionary_path", "")
	v.SetDefault("resolver.pubchem.enabled", true)
	v.SetDefault("resolver.pubchem.base_url", "https://pubchem.ncbi.nlm.nih.gov/rest/pug")
	v.SetDefault("resolver.pubchem.timeout", "10s")
	v.SetDefault("resolver.pubchem.requests_per_second", 3)
	v.SetDefault("resolver.translator.enabled", false)
	v.SetDefault("resolver.translator.base_url", "https://api.cognitive.microsofttranslator.com")
	v.SetDefault("resolver.translator.source_lang", "ja")
	v.SetDefault("resolver.translator.target_langs", []string{"en", "zh-Hant"})
	v.SetDefault("resolver.translator.timeout", "10s")
	v.SetDefault("resolver.retry.initial_backoff", "1s")
	v.SetDefault("resolver.retry.max_attempts", 5)

	// 比對與批次
	v.SetDefault("matcher.threshold", 80)
	v.SetDefault("pipeline.strategy", "sequential")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_size", 100)

	// 台灣許可證
	v.SetDefault("registry.path", "")
	v.SetDefault("registry.sheet", "")
	v.SetDefault("registry.sqlite_table", "licenses")

	v.SetDefault("schema.header_scan_rows", 10)
}

// Validate 命令列覆寫設定後需再次驗證
func (c *Config) Validate() error {
	return validateConfig(c)
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
	}
	if config.Cache.Redis.Enabled && config.Cache.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis cache is enabled")
	}

	// 驗證名稱解析設定
	if config.Resolver.Translator.Enabled && config.Resolver.Translator.APIKey == "" {
		return fmt.Errorf("translator api key is required when translator is enabled")
	}
	if config.Resolver.Translator.Enabled && len(config.Resolver.Translator.TargetLangs) == 0 {
		return fmt.Errorf("translator target languages are required")
	}
	if config.Resolver.PubChem.RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid pubchem requests per second")
	}
	if config.Resolver.Retry.MaxAttempts <= 0 || config.Resolver.Retry.MaxAttempts > MaxRetryAttempts {
		return fmt.Errorf("retry max attempts must be between 1 and %d", MaxRetryAttempts)
	}

	// 驗證比對設定
	if config.Matcher.Threshold < 0 || config.Matcher.Threshold > 100 {
		return fmt.Errorf("matcher threshold must be between 0 and 100")
	}

	// 驗證批次設定
	switch config.Pipeline.Strategy {
	case "sequential", "pooled":
	default:
		return fmt.Errorf("unknown pipeline strategy %q", config.Pipeline.Strategy)
	}
	if config.Pipeline.Workers <= 0 {
		return fmt.Errorf("invalid pipeline workers")
	}
	if config.Pipeline.QueueSize <= 0 {
		return fmt.Errorf("invalid pipeline queue size")
	}

	return nil
}
