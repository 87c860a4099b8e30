package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Supported history store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverRedis  = "redis"
)

type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`

	Store struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"store"`

	SQLite struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"sqlite"`

	Mongo struct {
		URI      string `mapstructure:"uri"`
		Database string `mapstructure:"database"`
	} `mapstructure:"mongo"`

	Redis struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
		DB   int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Executor struct {
		TimeoutSeconds     int  `mapstructure:"timeout_seconds"`
		InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
	} `mapstructure:"executor"`

	Log struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"log"`
}

// ExecutorTimeout returns the outbound call bound as a duration.
func (c *Config) ExecutorTimeout() time.Duration {
	return time.Duration(c.Executor.TimeoutSeconds) * time.Second
}

// LoadConfig loads the configuration from file, environment variables, and command-line arguments.
// Order of precedence: defaults < config file < .env / env vars < cmd flags.
func LoadConfig(configPath string, args []string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Warn().Err(err).Msg("Failed to load .env file")
		}
	}

	v := viper.New()

	v.SetDefault("server.port", 8000)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("sqlite.path", "data/history.db")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "request_tester")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("executor.timeout_seconds", 30)
	v.SetDefault("executor.insecure_skip_verify", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("config_path", configPath).Msg("Failed to read config file, relying on defaults, env, and flags")
		}
	}

	bindEnvOrPanic(v, "server.port", "PORT")
	bindEnvOrPanic(v, "store.driver", "STORE_DRIVER")
	bindEnvOrPanic(v, "sqlite.path", "DB_PATH")
	bindEnvOrPanic(v, "mongo.uri", "MONGO_URI")
	bindEnvOrPanic(v, "mongo.database", "MONGO_DATABASE")
	bindEnvOrPanic(v, "redis.host", "REDIS_HOST")
	bindEnvOrPanic(v, "redis.port", "REDIS_PORT")
	bindEnvOrPanic(v, "redis.db", "REDIS_DB")
	bindEnvOrPanic(v, "executor.timeout_seconds", "EXECUTOR_TIMEOUT_SECONDS")
	bindEnvOrPanic(v, "executor.insecure_skip_verify", "EXECUTOR_INSECURE_SKIP_VERIFY")
	bindEnvOrPanic(v, "log.level", "LOG_LEVEL")
	bindEnvOrPanic(v, "log.pretty", "LOG_PRETTY")

	fs := flag.NewFlagSet("request-tester", flag.ContinueOnError)
	port := fs.Int("port", 0, "Override HTTP listen port")
	driver := fs.String("store-driver", "", "Override history store driver (sqlite, mongo, redis)")
	dbPath := fs.String("db-path", "", "Override sqlite database path")
	timeout := fs.Int("timeout-seconds", 0, "Override outbound call timeout in seconds")
	logLevel := fs.String("log-level", "", "Override log level")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	if *port > 0 {
		v.Set("server.port", *port)
	}
	if *driver != "" {
		v.Set("store.driver", *driver)
	}
	if *dbPath != "" {
		v.Set("sqlite.path", *dbPath)
	}
	if *timeout > 0 {
		v.Set("executor.timeout_seconds", *timeout)
	}
	if *logLevel != "" {
		v.Set("log.level", *logLevel)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func bindEnvOrPanic(v *viper.Viper, key, env string) {
	if err := v.BindEnv(key, env); err != nil {
		log.Fatal().Err(err).Msgf("Failed to bind environment variable %s to key %s", env, key)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be in 1..65535, got %d", cfg.Server.Port)
	}

	switch cfg.Store.Driver {
	case DriverSQLite:
		if cfg.SQLite.Path == "" {
			return fmt.Errorf("sqlite path must not be empty")
		}
	case DriverMongo:
		if cfg.Mongo.URI == "" {
			log.Warn().Msg("MONGO_URI not provided, using default")
		}
		if cfg.Mongo.Database == "" {
			return fmt.Errorf("mongo database must not be empty")
		}
	case DriverRedis:
		if cfg.Redis.Host == "" {
			log.Warn().Msg("REDIS_HOST not provided, using default")
		}
		if cfg.Redis.Port <= 0 {
			return fmt.Errorf("redis port must be > 0, got %d", cfg.Redis.Port)
		}
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Executor.TimeoutSeconds <= 0 {
		return fmt.Errorf("executor timeout_seconds must be > 0, got %d", cfg.Executor.TimeoutSeconds)
	}

	return nil
}
