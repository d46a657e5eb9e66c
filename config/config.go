package config

import (
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type RegistryConfig struct {
	MaxRequestsPerWindow   int    `mapstructure:"max_requests_per_window"`
	WindowSize             string `mapstructure:"window_size"`
	CooldownPeriod         string `mapstructure:"cooldown_period"`
	DuplicateWindow        string `mapstructure:"duplicate_window"`
	CleanupInterval        string `mapstructure:"cleanup_interval"`
	MaxRegistrySize        int    `mapstructure:"max_registry_size"`
	MemoryCleanupThreshold int    `mapstructure:"memory_cleanup_threshold"`
}

type BreakerConfig struct {
	BaseMaxCallDepth int    `mapstructure:"base_max_call_depth"`
	MinCallDepth     int    `mapstructure:"min_call_depth"`
	MaxCallDepth     int    `mapstructure:"max_call_depth"`
	MaxErrors        int    `mapstructure:"max_errors"`
	ResetTimeout     string `mapstructure:"reset_timeout"`
	RapidCallLimit   int    `mapstructure:"rapid_call_limit"`
}

type TelemetryConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8090")
	viper.SetDefault("registry.max_requests_per_window", 10)
	viper.SetDefault("registry.window_size", "5s")
	viper.SetDefault("registry.cooldown_period", "30s")
	viper.SetDefault("registry.duplicate_window", "2s")
	viper.SetDefault("registry.cleanup_interval", "30s")
	viper.SetDefault("registry.max_registry_size", 1000)
	viper.SetDefault("registry.memory_cleanup_threshold", 500)
	viper.SetDefault("breaker.base_max_call_depth", 15)
	viper.SetDefault("breaker.min_call_depth", 5)
	viper.SetDefault("breaker.max_call_depth", 50)
	viper.SetDefault("breaker.max_errors", 3)
	viper.SetDefault("breaker.reset_timeout", "30s")
	viper.SetDefault("breaker.rapid_call_limit", 20)
	viper.SetDefault("telemetry.buffer_size", 1000)
	viper.SetDefault("logging.level", LogLevelInfo)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Error("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Registry,
			validation.Required,
			validation.By(validateRegistryConfig),
		),
		validation.Field(&c.Breaker,
			validation.Required,
			validation.By(validateBreakerConfig),
		),
		validation.Field(&c.Telemetry,
			validation.Required,
			validation.By(func(value interface{}) error {
				tc, ok := value.(TelemetryConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a TelemetryConfig")
				}
				return validation.ValidateStruct(&tc,
					validation.Field(&tc.BufferSize,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
	)
}

func validateRegistryConfig(value interface{}) error {
	rc, ok := value.(RegistryConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a RegistryConfig")
	}
	return validation.ValidateStruct(&rc,
		validation.Field(&rc.MaxRequestsPerWindow,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&rc.WindowSize,
			validation.Required,
			validation.By(validateDuration),
		),
		validation.Field(&rc.CooldownPeriod,
			validation.Required,
			validation.By(validateDuration),
		),
		validation.Field(&rc.DuplicateWindow,
			validation.Required,
			validation.By(validateDuration),
		),
		validation.Field(&rc.CleanupInterval,
			validation.Required,
			validation.By(validateDuration),
		),
		validation.Field(&rc.MaxRegistrySize,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&rc.MemoryCleanupThreshold,
			validation.Required,
			validation.Min(1),
		),
	)
}

func validateBreakerConfig(value interface{}) error {
	bc, ok := value.(BreakerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
	}

	if bc.MinCallDepth > bc.MaxCallDepth {
		return validation.NewError("validation_depth_bounds", "min_call_depth cannot exceed max_call_depth")
	}

	if bc.BaseMaxCallDepth < bc.MinCallDepth || bc.BaseMaxCallDepth > bc.MaxCallDepth {
		return validation.NewError("validation_depth_base", "base_max_call_depth must lie within [min_call_depth, max_call_depth]")
	}

	return validation.ValidateStruct(&bc,
		validation.Field(&bc.BaseMaxCallDepth,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&bc.MinCallDepth,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&bc.MaxCallDepth,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&bc.MaxErrors,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&bc.ResetTimeout,
			validation.Required,
			validation.By(validateDuration),
		),
		validation.Field(&bc.RapidCallLimit,
			validation.Required,
			validation.Min(1),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}
