package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "NOTEBOX_"

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Thumbnail  ThumbnailConfig  `yaml:"thumbnail"`
	JWT        JWTConfig        `yaml:"jwt"`
	Pagination PaginationConfig `yaml:"pagination"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	// Mode is the gin mode: debug, release or test.
	Mode string `yaml:"mode"`
	// PublicURL prefixes generated download links. Empty keeps them relative.
	PublicURL          string `yaml:"public_url"`
	MaxMultipartMemory int64  `yaml:"max_multipart_memory"`
}

type DatabaseConfig struct {
	// Driver is one of sqlite, mysql, postgres.
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	Charset      string `yaml:"charset"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	LogLevel     string `yaml:"log_level"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	BasePath          string   `yaml:"base_path"`
	MaxFileSize       int64    `yaml:"max_file_size"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	// InlineTypes are served with an inline Content-Disposition so browsers preview them.
	InlineTypes []string `yaml:"inline_types"`
	// Seconds between sweeps of abandoned temp files, and the age at which
	// a temp file counts as abandoned.
	TempFileCleanupInterval int `yaml:"temp_file_cleanup_interval"`
	TempFileMaxAge          int `yaml:"temp_file_max_age"`
}

type ThumbnailConfig struct {
	Enabled bool `yaml:"enabled"`
	Width   int  `yaml:"width"`
	Height  int  `yaml:"height"`
	Quality int  `yaml:"quality"`
}

type JWTConfig struct {
	Secret             string `yaml:"secret"`
	Issuer             string `yaml:"issuer"`
	ExpireHours        int    `yaml:"expire_hours"`
	RefreshExpireHours int    `yaml:"refresh_expire_hours"`
	RevocationCapacity int    `yaml:"revocation_capacity"`
}

type PaginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Path enables rotated file output. Empty logs to stdout.
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// LoadConfig reads the YAML file at path, applies NOTEBOX_* environment
// overrides (a .env file in the working directory is honoured) and fills
// defaults. A missing file is not an error; the result is then built from
// defaults and the environment only.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := lookupEnv("SERVER_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := lookupEnv("PUBLIC_URL"); ok {
		cfg.Server.PublicURL = v
	}
	if v, ok := lookupEnv("DATABASE_DRIVER"); ok {
		cfg.Database.Driver = v
	}
	if v, ok := lookupEnv("DATABASE_DSN"); ok {
		cfg.Database.DSN = v
	}
	if v, ok := lookupEnv("DATABASE_PASSWORD"); ok {
		cfg.Database.Password = v
	}
	if v, ok := lookupEnv("REDIS_PASSWORD"); ok {
		cfg.Redis.Password = v
	}
	if v, ok := lookupEnv("STORAGE_BASE_PATH"); ok {
		cfg.Storage.BasePath = v
	}
	if v, ok := lookupEnv("JWT_SECRET"); ok {
		cfg.JWT.Secret = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.MaxMultipartMemory <= 0 {
		cfg.Server.MaxMultipartMemory = 32 << 20
	}
	cfg.Server.PublicURL = strings.TrimRight(cfg.Server.PublicURL, "/")

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == "" {
		cfg.Database.DSN = "data/app.sqlite"
	}
	if cfg.Database.Charset == "" {
		cfg.Database.Charset = "utf8mb4"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 50
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "127.0.0.1"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "data/files"
	}
	if cfg.Storage.TempFileCleanupInterval == 0 {
		cfg.Storage.TempFileCleanupInterval = 3600
	}
	if cfg.Storage.TempFileMaxAge == 0 {
		cfg.Storage.TempFileMaxAge = 86400
	}
	if len(cfg.Storage.InlineTypes) == 0 {
		cfg.Storage.InlineTypes = []string{"application/pdf"}
	}

	if cfg.Thumbnail.Width == 0 {
		cfg.Thumbnail.Width = 256
	}
	if cfg.Thumbnail.Height == 0 {
		cfg.Thumbnail.Height = 256
	}
	if cfg.Thumbnail.Quality == 0 {
		cfg.Thumbnail.Quality = 80
	}

	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "notebox"
	}
	if cfg.JWT.ExpireHours == 0 {
		cfg.JWT.ExpireHours = 24
	}
	if cfg.JWT.RefreshExpireHours == 0 {
		cfg.JWT.RefreshExpireHours = cfg.JWT.ExpireHours * 7
	}
	if cfg.JWT.RevocationCapacity == 0 {
		cfg.JWT.RevocationCapacity = 10000
	}

	if cfg.Pagination.MaxPageSize == 0 {
		cfg.Pagination.MaxPageSize = 100
	}
	if cfg.Pagination.DefaultPageSize == 0 {
		cfg.Pagination.DefaultPageSize = 10
	}
	if cfg.Pagination.DefaultPageSize > cfg.Pagination.MaxPageSize {
		cfg.Pagination.DefaultPageSize = cfg.Pagination.MaxPageSize
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("jwt.secret is required (or set NOTEBOX_JWT_SECRET)")
	}
	if c.Pagination.MaxPageSize > 100 {
		return fmt.Errorf("pagination.max_page_size must not exceed 100, got %d", c.Pagination.MaxPageSize)
	}
	if c.Storage.MaxFileSize < 0 {
		return errors.New("storage.max_file_size must not be negative")
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
