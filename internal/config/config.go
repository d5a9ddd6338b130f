// Package config loads the gateway's tunables from a YAML file with
// environment-variable overrides, validating the result before the
// orchestrator starts any component.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Server holds the TCP ingest front-end tunables (C3).
type Server struct {
	// Port is the listening TCP port. The CLI's positional <port>
	// argument, when given, overrides this value.
	Port                int `mapstructure:"port" validate:"gte=0,lte=65535"`
	TCPBacklog          int `mapstructure:"tcp_backlog" validate:"gt=0"`
	MaxConnections      int `mapstructure:"max_connections" validate:"gt=0"`
	MaxConnectionsPerIP int `mapstructure:"max_connections_per_ip" validate:"gt=0"`
	SensorTimeoutSec    int `mapstructure:"sensor_timeout_sec" validate:"gt=0"`
	SelectTimeoutSec    int `mapstructure:"select_timeout_sec" validate:"gt=0"`
}

// Buffer holds the staging buffer tunable (C1).
type Buffer struct {
	SBufferSize int `mapstructure:"sbuffer_size" validate:"gt=0"`
}

// Analytics holds the alert threshold tunables (C4).
type Analytics struct {
	TempTooHotThreshold  float64 `mapstructure:"temp_too_hot_threshold"`
	TempTooColdThreshold float64 `mapstructure:"temp_too_cold_threshold"`
}

// Storage holds the storage worker's reconnect/retry tunables (C5).
type Storage struct {
	DBConnectRetryAttempts  int    `mapstructure:"db_connect_retry_attempts" validate:"gt=0"`
	DBConnectRetryDelaySec  int    `mapstructure:"db_connect_retry_delay_sec" validate:"gt=0"`
	RetryQueueCapacity      int    `mapstructure:"retry_queue_capacity" validate:"gt=0"`
	DSN                     string `mapstructure:"dsn"`
	Driver                  string `mapstructure:"driver" validate:"oneof=postgres sqlite"`
}

// RoomMap holds the room map loader tunable (C2).
type RoomMap struct {
	MapFileName string `mapstructure:"map_file_name"`
}

// Logging holds the ambient logging configuration.
type Logging struct {
	Level  string `mapstructure:"level" validate:"oneof=DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
	Output string `mapstructure:"output"`
}

// ControlSocket holds the local operational-query listener tunable.
type ControlSocket struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Metrics holds the Prometheus exporter tunable.
type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Config is the gateway's complete set of tunables.
type Config struct {
	Server        Server        `mapstructure:"server"`
	Buffer        Buffer        `mapstructure:"buffer"`
	Analytics     Analytics     `mapstructure:"analytics"`
	Storage       Storage       `mapstructure:"storage"`
	RoomMap       RoomMap       `mapstructure:"room_map"`
	Logging       Logging       `mapstructure:"logging"`
	ControlSocket ControlSocket `mapstructure:"control_socket"`
	Metrics       Metrics       `mapstructure:"metrics"`
}

// ApplyDefaults fills every tunable with the default named in spec.md
// §6 that has not otherwise been set.
func ApplyDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 0)
	v.SetDefault("server.tcp_backlog", 10)
	v.SetDefault("server.max_connections", 100)
	v.SetDefault("server.max_connections_per_ip", 5)
	v.SetDefault("server.sensor_timeout_sec", 5)
	v.SetDefault("server.select_timeout_sec", 1)

	v.SetDefault("buffer.sbuffer_size", 15)

	v.SetDefault("analytics.temp_too_hot_threshold", 30.0)
	v.SetDefault("analytics.temp_too_cold_threshold", 15.0)

	v.SetDefault("storage.db_connect_retry_attempts", 3)
	v.SetDefault("storage.db_connect_retry_delay_sec", 5)
	v.SetDefault("storage.retry_queue_capacity", 20)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "gateway.db")

	v.SetDefault("room_map.map_file_name", "room_sensor.map")

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("control_socket.enabled", true)
	v.SetDefault("control_socket.address", "127.0.0.1:7070")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", "127.0.0.1:9090")
}

// Validate runs struct-tag validation over the config.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}

// Load builds a Viper instance layered as: defaults, optional config
// file at configPath (if non-empty), then GATEWAY_-prefixed
// environment variable overrides (e.g. GATEWAY_SERVER_PORT). It
// returns a validated Config.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	ApplyDefaults(v)

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolvePort applies the CLI's positional <port> argument, which
// takes precedence over server.port from the loaded config, matching
// the source program's argv-first contract (spec.md §6).
func ResolvePort(cfg *Config, cliPort int) error {
	if cliPort == 0 {
		if cfg.Server.Port == 0 {
			return fmt.Errorf("config: no port given on the command line or in config")
		}
		return nil
	}
	if cliPort < 1 || cliPort > 65535 {
		return fmt.Errorf("config: port %d out of range [1, 65535]", cliPort)
	}
	cfg.Server.Port = cliPort
	return nil
}
