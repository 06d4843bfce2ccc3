package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/retailanalytics/internal/db"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers accepted by store.driver.
const (
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"
	DriverMemory   = "memory"
)

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database db.Config
	Reports  ReportsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	MaxUploadBytes int64
}

type StoreConfig struct {
	Driver     string
	DuckDBPath string
}

type ReportsConfig struct {
	CacheTTL        time.Duration
	CacheSize       int
	DefaultSupplier string
}

type LogConfig struct {
	Level       string
	Development bool
}

// Load reads config.yaml from configPath, then applies environment
// overrides (APP_SERVER_ADDR, APP_DATABASE_HOST, ...). An optional .env file
// in the working directory is loaded into the environment first. A missing
// config file is not an error.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:           v.GetString("server.addr"),
			ReadTimeout:    v.GetDuration("server.read_timeout"),
			WriteTimeout:   v.GetDuration("server.write_timeout"),
			IdleTimeout:    v.GetDuration("server.idle_timeout"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
			MaxUploadBytes: v.GetInt64("server.max_upload_bytes"),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(strings.TrimSpace(v.GetString("store.driver"))),
			DuckDBPath: v.GetString("store.duckdb_path"),
		},
		Database: db.Config{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
			MaxConns: v.GetInt32("database.max_conns"),
		},
		Reports: ReportsConfig{
			CacheTTL:        v.GetDuration("reports.cache_ttl"),
			CacheSize:       v.GetInt("reports.cache_size"),
			DefaultSupplier: v.GetString("reports.default_supplier"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverDuckDB, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_upload_bytes", int64(32<<20))

	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("store.duckdb_path", "data/retail.duckdb")

	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", 5)

	v.SetDefault("reports.cache_ttl", 5*time.Minute)
	v.SetDefault("reports.cache_size", 128)
	v.SetDefault("reports.default_supplier", "bidco")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}
