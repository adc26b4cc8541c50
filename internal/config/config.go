package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nemonet1337/nexinventory/pkg/inventory"
	"github.com/nemonet1337/nexinventory/pkg/inventory/storage"
)

// ConfigFileEnv names the optional YAML file applied beneath the environment
const ConfigFileEnv = "NEX_CONFIG_FILE"

// Config holds application configuration
// アプリケーション設定を保持
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	API       APIConfig       `yaml:"api"`
	Auth      AuthConfig      `yaml:"auth"`
	Advisory  AdvisoryConfig  `yaml:"advisory"`
	Events    EventsConfig    `yaml:"events"`
	Inventory InventoryConfig `yaml:"inventory"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig selects the ledger backend
// 台帳のストレージ設定を保持
type StorageConfig struct {
	Driver   string         `yaml:"driver"` // memory, postgres, redis
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
}

// DatabaseConfig holds database configuration
// データベース設定を保持
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis connection settings shared by storage and events
// Redis接続設定を保持
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// APIConfig holds API server configuration
// APIサーバー設定を保持
type APIConfig struct {
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	EnableCORS    bool          `yaml:"enable_cors"`
	EnableMetrics bool          `yaml:"enable_metrics"`
}

// AuthConfig holds session token settings
// 認証トークン設定を保持
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
	Issuer   string        `yaml:"issuer"`
}

// AdvisoryConfig holds the insight advisor settings
// 在庫分析アドバイザー設定を保持
type AdvisoryConfig struct {
	GeminiAPIKey string        `yaml:"gemini_api_key"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

// EventsConfig holds event publishing settings
// イベント発行設定を保持
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Channel string `yaml:"channel"`
}

// InventoryConfig holds inventory-specific configuration
// 在庫固有の設定を保持
type InventoryConfig struct {
	LowStockAlerts bool `yaml:"low_stock_alerts"`
	SeedDemoData   bool `yaml:"seed_demo_data"`
}

// LoggingConfig holds logging configuration
// ログ設定を保持
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, ファイルパス
}

// Default returns the built-in defaults
// 既定の設定を返す
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: string(storage.DriverMemory),
			Database: DatabaseConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "inventory",
				Password:        "password",
				DBName:          "inventory_db",
				SSLMode:         "disable",
				MaxOpenConns:    25,
				MaxIdleConns:    10,
				ConnMaxLifetime: 5 * time.Minute,
			},
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: storage.DefaultRedisPrefix,
			},
		},
		API: APIConfig{
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			IdleTimeout:   60 * time.Second,
			EnableCORS:    true,
			EnableMetrics: true,
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
			Issuer:   "nexinventory",
		},
		Advisory: AdvisoryConfig{
			Model:   "gemini-2.5-flash",
			Timeout: 20 * time.Second,
		},
		Events: EventsConfig{
			Channel: "nex.inventory.events",
		},
		Inventory: InventoryConfig{
			LowStockAlerts: true,
			SeedDemoData:   true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load loads configuration from defaults, the optional YAML file and environment variables, in that order
// 既定値・YAMLファイル・環境変数の順に設定を読み込み
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	// バリデーション
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定バリデーションに失敗しました: %w", err)
	}

	return cfg, nil
}

// LoadFile overlays a YAML file onto the configuration; keys absent from the file keep their value
// YAMLファイルの内容を設定に上書き
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗しました (%s): %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Storage
	s.Driver = getEnv("STORAGE_DRIVER", s.Driver)
	s.Database.Host = getEnv("DB_HOST", s.Database.Host)
	s.Database.Port = getEnvAsInt("DB_PORT", s.Database.Port)
	s.Database.User = getEnv("DB_USER", s.Database.User)
	s.Database.Password = getEnv("DB_PASSWORD", s.Database.Password)
	s.Database.DBName = getEnv("DB_NAME", s.Database.DBName)
	s.Database.SSLMode = getEnv("DB_SSLMODE", s.Database.SSLMode)
	s.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", s.Database.MaxOpenConns)
	s.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", s.Database.MaxIdleConns)
	s.Database.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", s.Database.ConnMaxLifetime)
	s.Redis.Addr = getEnv("REDIS_ADDR", s.Redis.Addr)
	s.Redis.Password = getEnv("REDIS_PASSWORD", s.Redis.Password)
	s.Redis.DB = getEnvAsInt("REDIS_DB", s.Redis.DB)
	s.Redis.Prefix = getEnv("REDIS_PREFIX", s.Redis.Prefix)

	c.API.Port = getEnvAsInt("API_PORT", c.API.Port)
	c.API.ReadTimeout = getEnvAsDuration("API_READ_TIMEOUT", c.API.ReadTimeout)
	c.API.WriteTimeout = getEnvAsDuration("API_WRITE_TIMEOUT", c.API.WriteTimeout)
	c.API.IdleTimeout = getEnvAsDuration("API_IDLE_TIMEOUT", c.API.IdleTimeout)
	c.API.EnableCORS = getEnvAsBool("API_ENABLE_CORS", c.API.EnableCORS)
	c.API.EnableMetrics = getEnvAsBool("API_ENABLE_METRICS", c.API.EnableMetrics)

	c.Auth.Secret = getEnv("AUTH_SECRET", c.Auth.Secret)
	c.Auth.TokenTTL = getEnvAsDuration("AUTH_TOKEN_TTL", c.Auth.TokenTTL)
	c.Auth.Issuer = getEnv("AUTH_ISSUER", c.Auth.Issuer)

	c.Advisory.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.Advisory.GeminiAPIKey)
	c.Advisory.Model = getEnv("GEMINI_MODEL", c.Advisory.Model)
	c.Advisory.BaseURL = getEnv("GEMINI_BASE_URL", c.Advisory.BaseURL)
	c.Advisory.Timeout = getEnvAsDuration("ADVISORY_TIMEOUT", c.Advisory.Timeout)

	c.Events.Enabled = getEnvAsBool("EVENTS_ENABLED", c.Events.Enabled)
	c.Events.Channel = getEnv("EVENTS_CHANNEL", c.Events.Channel)

	c.Inventory.LowStockAlerts = getEnvAsBool("INVENTORY_LOW_STOCK_ALERTS", c.Inventory.LowStockAlerts)
	c.Inventory.SeedDemoData = getEnvAsBool("INVENTORY_SEED_DEMO_DATA", c.Inventory.SeedDemoData)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = getEnv("LOG_OUTPUT", c.Logging.Output)
}

// Validate validates the configuration
// 設定をバリデーション
func (c *Config) Validate() error {
	// ストレージ設定チェック
	switch storage.Driver(c.Storage.Driver) {
	case storage.DriverMemory:
	case storage.DriverPostgres:
		db := c.Storage.Database
		if db.Host == "" {
			return fmt.Errorf("データベースホストが指定されていません")
		}
		if db.Port <= 0 || db.Port > 65535 {
			return fmt.Errorf("無効なデータベースポート: %d", db.Port)
		}
		if db.User == "" {
			return fmt.Errorf("データベースユーザーが指定されていません")
		}
		if db.DBName == "" {
			return fmt.Errorf("データベース名が指定されていません")
		}
	case storage.DriverRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("Redisアドレスが指定されていません")
		}
	default:
		return fmt.Errorf("無効なストレージドライバー: %s", c.Storage.Driver)
	}

	// API設定チェック
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("無効なAPIポート: %d", c.API.Port)
	}

	// 認証設定チェック
	if len(c.Auth.Secret) < 16 {
		return fmt.Errorf("AUTH_SECRET は16文字以上である必要があります")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("トークン有効期間は正の値である必要があります")
	}

	if c.Advisory.Timeout <= 0 {
		return fmt.Errorf("アドバイザーのタイムアウトは正の値である必要があります")
	}

	// イベント設定チェック
	if c.Events.Enabled && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("イベント発行にはRedisアドレスが必要です")
	}

	// ログ設定チェック
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("無効なログレベル: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("無効なログフォーマット: %s", c.Logging.Format)
	}

	return nil
}

// DSN generates PostgreSQL Data Source Name
// PostgreSQLデータソース名を生成
func (c *Config) DSN() string {
	db := c.Storage.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host,
		db.Port,
		db.User,
		db.Password,
		db.DBName,
		db.SSLMode,
	)
}

// StorageOptions maps the configuration to storage.Open options
// storage.Open 用のオプションに変換
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Driver:      storage.Driver(c.Storage.Driver),
		PostgresDSN: c.DSN(),
		Pool: storage.PoolConfig{
			MaxOpenConns:    c.Storage.Database.MaxOpenConns,
			MaxIdleConns:    c.Storage.Database.MaxIdleConns,
			ConnMaxLifetime: c.Storage.Database.ConnMaxLifetime,
		},
		RedisAddr:     c.Storage.Redis.Addr,
		RedisPassword: c.Storage.Redis.Password,
		RedisDB:       c.Storage.Redis.DB,
		RedisPrefix:   c.Storage.Redis.Prefix,
	}
}

// ManagerConfig maps the configuration to the inventory manager settings
func (c *Config) ManagerConfig() *inventory.Config {
	return &inventory.Config{
		AdvisorTimeout: c.Advisory.Timeout,
		LowStockAlerts: c.Inventory.LowStockAlerts,
	}
}

// ヘルパー関数

// getEnv gets environment variable with default value
// デフォルト値付きで環境変数を取得
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer with default value
// デフォルト値付きで環境変数を整数として取得
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets environment variable as boolean with default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets environment variable as duration with default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
