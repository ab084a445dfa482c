// Package env provides configuration from environment variables and
// command line flags.
package env

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/datalogger/pkg/device"
	"github.com/robotalks/datalogger/pkg/link"
)

// Environment variables.
const (
	EnvPort    = "DATALOGGER_PORT"
	EnvMQTTURL = "DATALOGGER_MQTT_URL"
	EnvHostID  = "DATALOGGER_HOST_ID"
)

// Config is the runtime configuration.
type Config struct {
	// Port is the endpoint to connect on startup, e.g. COM5,
	// /dev/ttyUSB0, tcp://host:port or sim://name.
	Port string
	// BaudRate applies to serial endpoints.
	BaudRate int
	// OpenSettle is the wait after opening before the first command.
	OpenSettle time.Duration
	// LineTimeout bounds the wait for each dump line.
	LineTimeout time.Duration
	// StateTimeout bounds the wait for the state reply.
	StateTimeout time.Duration
	// MQTTURL enables publishing when not empty,
	// e.g. mqtt://host:1883/datalogger/
	MQTTURL string
	// HostID identifies this host in published topics.
	HostID string
}

var defaultConfig = newDefault()

func newDefault() Config {
	opts := device.DefaultOptions()
	return Config{
		BaudRate:     opts.Link.BaudRate,
		OpenSettle:   opts.Link.OpenSettle,
		LineTimeout:  opts.LineTimeout,
		StateTimeout: opts.StateTimeout,
	}
}

func init() {
	loadEnv(&defaultConfig, os.Getenv)
}

func loadEnv(conf *Config, getenv func(string) string) {
	if val := getenv(EnvPort); val != "" {
		conf.Port = val
	}
	if val := getenv(EnvMQTTURL); val != "" {
		conf.MQTTURL = val
	}
	if val := getenv(EnvHostID); val != "" {
		conf.HostID = val
	}
}

// SetupFlags binds the default config to command line flags.
func SetupFlags() {
	SetupFlagSet(flag.CommandLine, &defaultConfig)
}

// SetupFlagSet binds conf to flags in fs.
func SetupFlagSet(fs *flag.FlagSet, conf *Config) {
	fs.StringVar(&conf.Port, "port", conf.Port, "Endpoint to connect on startup.")
	fs.IntVar(&conf.BaudRate, "baud", conf.BaudRate, "Serial baud rate.")
	fs.DurationVar(&conf.OpenSettle, "open-settle", conf.OpenSettle, "Wait after opening the port.")
	fs.DurationVar(&conf.LineTimeout, "line-timeout", conf.LineTimeout, "Timeout waiting for each dump line.")
	fs.DurationVar(&conf.StateTimeout, "state-timeout", conf.StateTimeout, "Timeout waiting for the state reply.")
	fs.StringVar(&conf.MQTTURL, "mqtt", conf.MQTTURL, "MQTT broker URL to publish results, empty to disable.")
	fs.StringVar(&conf.HostID, "host-id", conf.HostID, "Host ID in published topics, defaults to machine ID.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the durations and baud rate.
func (c *Config) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.LineTimeout <= 0 {
		return fmt.Errorf("line timeout must be positive: %v", c.LineTimeout)
	}
	if c.StateTimeout <= 0 {
		return fmt.Errorf("state timeout must be positive: %v", c.StateTimeout)
	}
	if c.OpenSettle < 0 {
		return fmt.Errorf("open settle must not be negative: %v", c.OpenSettle)
	}
	return nil
}

// DeviceOptions builds device.Options from the config.
func (c *Config) DeviceOptions() device.Options {
	opts := device.DefaultOptions()
	opts.Link = link.Options{BaudRate: c.BaudRate, OpenSettle: c.OpenSettle}
	opts.LineTimeout = c.LineTimeout
	opts.StateTimeout = c.StateTimeout
	return opts
}

// ResolveHostID returns HostID, or the machine ID when not set.
func (c *Config) ResolveHostID() string {
	if c.HostID != "" {
		return c.HostID
	}
	id, err := machineid.ProtectedID("datalogger")
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		host, _ := os.Hostname()
		if host == "" {
			host = "datalogger"
		}
		return host
	}
	return id[:12]
}
