// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Link kinds
const (
	LinkAuto      = ""
	LinkSerial    = "serial"
	LinkWebSocket = "websocket"
	LinkBLE       = "ble"
	LinkReplay    = "replay"
	LinkMock      = "mock"
)

// BLEConfig selects a Bluetooth LE board
type BLEConfig struct {
	NamePrefix   string        `mapstructure:"namePrefix"`
	ServiceUUID  string        `mapstructure:"serviceUUID"`
	TxUUID       string        `mapstructure:"txUUID"`
	RxUUID       string        `mapstructure:"rxUUID"`
	ScanTimeout  time.Duration `mapstructure:"scanTimeout"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

// LinkConfig selects and tunes the board connection
type LinkConfig struct {
	Kind            string        `mapstructure:"kind"`
	Port            string        `mapstructure:"port"`
	Baud            int           `mapstructure:"baud"`
	URL             string        `mapstructure:"url"`
	Username        string        `mapstructure:"username"`
	NoSSLVerify     bool          `mapstructure:"noSSLVerify"`
	BLE             BLEConfig     `mapstructure:"ble"`
	ReplayFile      string        `mapstructure:"replayFile"`
	MockSensorFrame string        `mapstructure:"mockSensorFrame"`
	CommandRate     float64       `mapstructure:"commandRate"`
	CommandBurst    int           `mapstructure:"commandBurst"`
	SensorTimeout   time.Duration `mapstructure:"sensorTimeout"`
}

// ResolvedKind returns the link kind, inferring it from the other settings
// when Kind is empty
func (l LinkConfig) ResolvedKind() string {
	if l.Kind != LinkAuto {
		return l.Kind
	}
	switch {
	case l.URL != "":
		return LinkWebSocket
	case l.Port != "":
		return LinkSerial
	case l.ReplayFile != "":
		return LinkReplay
	}
	return LinkAuto
}

// LumberjackConfig configures log file rotation
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig sets the log level and outputs. Logs go to stderr, and also
// to File.Filename when it is set.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint of the HTTP bridge
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// HTTPConfig configures the HTTP bridge
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the top-level configuration
type Config struct {
	Link    LinkConfig    `mapstructure:"link"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

// FlagKeys maps command-line flag names to configuration keys. Flags that
// are present and set on the command line override file and environment
// values.
var FlagKeys = map[string]string{
	"link":          "link.kind",
	"port":          "link.port",
	"baud":          "link.baud",
	"url":           "link.url",
	"username":      "link.username",
	"no-ssl-verify": "link.noSSLVerify",
	"replay":        "link.replayFile",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"log-file":      "logging.file.filename",
	"addr":          "http.addr",
}

// Load reads configuration from a YAML/TOML/JSON file, BITBRICK_* environment
// variables and flags, in increasing priority. If path is empty
// BITBRICK_CONFIG is consulted, then bitbrick.yaml in the working directory
// and ~/.config/bitbrick. A missing default file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BITBRICK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/bitbrick")
		v.SetConfigName("bitbrick")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	switch c.Link.Kind {
	case LinkAuto, LinkSerial, LinkWebSocket, LinkBLE, LinkReplay, LinkMock:
	default:
		return fmt.Errorf("link.kind: unknown link %q (serial, websocket, ble, replay or mock)", c.Link.Kind)
	}
	if c.Link.Baud <= 0 {
		return fmt.Errorf("link.baud: must be positive, got %d", c.Link.Baud)
	}
	if c.Link.CommandRate < 0 {
		return fmt.Errorf("link.commandRate: must not be negative, got %v", c.Link.CommandRate)
	}
	if c.Link.SensorTimeout <= 0 {
		return fmt.Errorf("link.sensorTimeout: must be positive, got %v", c.Link.SensorTimeout)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format: unknown format %q (json or console)", c.Logging.Format)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("link.kind", LinkAuto)
	v.SetDefault("link.port", "")
	v.SetDefault("link.baud", 115200)
	v.SetDefault("link.url", "")
	v.SetDefault("link.username", "")
	v.SetDefault("link.noSSLVerify", false)
	v.SetDefault("link.ble.namePrefix", "BitBrick")
	v.SetDefault("link.ble.serviceUUID", "0000ffe0-0000-1000-8000-00805f9b34fb")
	v.SetDefault("link.ble.txUUID", "0000ffe1-0000-1000-8000-00805f9b34fb")
	v.SetDefault("link.ble.rxUUID", "0000ffe1-0000-1000-8000-00805f9b34fb")
	v.SetDefault("link.ble.scanTimeout", "10s")
	v.SetDefault("link.ble.pollInterval", "50ms")
	v.SetDefault("link.replayFile", "")
	v.SetDefault("link.mockSensorFrame", "")
	v.SetDefault("link.commandRate", 0)
	v.SetDefault("link.commandBurst", 1)
	v.SetDefault("link.sensorTimeout", "2s")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 28)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("http.addr", ":8080")
}
