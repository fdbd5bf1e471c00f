package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. QUESTFOLIO_SERVER_PORT.
const EnvPrefix = "QUESTFOLIO"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Content  ContentConfig  `mapstructure:"content"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Security SecurityConfig `mapstructure:"security"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"` // guards /api/ops
}

type DatabaseConfig struct {
	Mode       string        `mapstructure:"mode"` // sqlite | libsql | postgres | mysql
	SQLitePath string        `mapstructure:"sqlite_path"`
	LibSQLURL  string        `mapstructure:"libsql_url"`
	DSN        string        `mapstructure:"dsn"` // postgres / mysql
	MaxOpen    int           `mapstructure:"max_open"`
	MaxIdle    int           `mapstructure:"max_idle"`
	MaxLife    time.Duration `mapstructure:"max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
	ViewTTL         time.Duration `mapstructure:"view_ttl"`
}

type ContentConfig struct {
	CallTimeout        time.Duration `mapstructure:"call_timeout"`
	QuestLogRefresh    time.Duration `mapstructure:"questlog_refresh"`
	HomeRecentPages    int           `mapstructure:"home_recent_pages"`
	IncludeQuestIssues bool          `mapstructure:"include_quest_issues"`
}

type AuthConfig struct {
	// AdminEmail is paired with the submitted password at login.
	AdminEmail string `mapstructure:"admin_email"`
	// AdminPasswordHash is a bcrypt hash used to bootstrap the admin account.
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AdminIPs restricts the admin API; empty allows every address.
	AdminIPs []string `mapstructure:"admin_ips"`
	// AllowedOrigins limits WebSocket origins; empty allows every origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"`
}

// Load reads config from the given YAML file path. A .env file next to the
// working directory is loaded first so QUESTFOLIO_* variables can override
// file values. An empty path skips the file and uses defaults plus env.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/questfolio.db")
	v.SetDefault("database.libsql_url", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open", 20)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.max_life", "1h")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.key_prefix", "questfolio:")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("cache.view_ttl", "5m")
	v.SetDefault("content.call_timeout", "5s")
	v.SetDefault("content.questlog_refresh", "10m")
	v.SetDefault("content.home_recent_pages", 5)
	v.SetDefault("content.include_quest_issues", true)
	v.SetDefault("auth.admin_email", "")
	v.SetDefault("auth.admin_password_hash", "")
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 50)
	v.SetDefault("security.rate_limit_burst", 100)
	v.SetDefault("security.admin_ips", []string{})
	v.SetDefault("security.allowed_origins", []string{})
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "avatars")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.public_url", "")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
