// Package config collects the daemon configuration from command line flags
// and an optional YAML config file, flags taking precedence.
package config

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/zalando/inflow"
	"github.com/zalando/inflow/limit"
)

type Config struct {
	ConfigFile string
	Flags      *flag.FlagSet

	// generic:
	Address string `yaml:"address"`

	// logging, metrics:
	ApplicationLogLevel       log.Level `yaml:"-"`
	ApplicationLogLevelString string    `yaml:"application-log-level"`
	ApplicationLogPrefix      string    `yaml:"application-log-prefix"`
	ApplicationLogJSONEnabled bool      `yaml:"application-log-json-enabled"`
	MetricsListener           string    `yaml:"metrics-listener"`
	MetricsPrefix             string    `yaml:"metrics-prefix"`

	// content pipeline:
	MaxFormContentSize int64 `yaml:"max-form-content-size"`
	MaxFormKeys        int   `yaml:"max-form-keys"`
	CodecBufferSize    int   `yaml:"codec-buffer-size"`
}

const (
	defaultAddress              = ":9090"
	defaultApplicationLogPrefix = "[APP]"
	defaultApplicationLogLevel  = "INFO"
	defaultMetricsPrefix        = "inflow."
)

func NewConfig() *Config {
	cfg := new(Config)

	flag := flag.NewFlagSet("", flag.ExitOnError)
	flag.StringVar(&cfg.ConfigFile, "config-file", "", "if provided the flags are loaded/overwritten by the values on the file (yaml)")

	// generic:
	flag.StringVar(&cfg.Address, "address", defaultAddress, "network address that the server should listen on")

	// logging, metrics:
	flag.StringVar(&cfg.ApplicationLogLevelString, "application-log-level", defaultApplicationLogLevel, "log level for application logs, possible values: PANIC, FATAL, ERROR, WARN, INFO, DEBUG")
	flag.StringVar(&cfg.ApplicationLogPrefix, "application-log-prefix", defaultApplicationLogPrefix, "prefix for each log entry")
	flag.BoolVar(&cfg.ApplicationLogJSONEnabled, "application-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.StringVar(&cfg.MetricsListener, "metrics-listener", "", "network address used for exposing the /metrics endpoint, keep empty to disable")
	flag.StringVar(&cfg.MetricsPrefix, "metrics-prefix", defaultMetricsPrefix, "allows setting a custom path prefix for metrics export")

	// content pipeline:
	flag.Int64Var(&cfg.MaxFormContentSize, "max-form-content-size", limit.DefaultMaxLength, "maximum decoded size in bytes of a form body, a negative value disables the ceiling")
	flag.IntVar(&cfg.MaxFormKeys, "max-form-keys", limit.DefaultMaxFields, "maximum number of keys in a form body, a negative value disables the ceiling")
	flag.IntVar(&cfg.CodecBufferSize, "codec-buffer-size", 0, "read and decode buffer size in bytes, keep unset for the built-in default")

	cfg.Flags = flag
	return cfg
}

func (c *Config) Parse() error {
	return c.ParseArgs(os.Args[0], os.Args[1:])
}

func (c *Config) ParseArgs(progname string, args []string) error {
	c.Flags.Init(progname, flag.ExitOnError)
	err := c.Flags.Parse(args)
	if err != nil {
		return err
	}

	// check if arguments were correctly parsed.
	if len(c.Flags.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %s", c.Flags.Args())
	}

	if c.ConfigFile != "" {
		yamlFile, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}

		err = yaml.Unmarshal(yamlFile, c)
		if err != nil {
			return fmt.Errorf("unmarshalling config file error: %w", err)
		}

		// flags win over the config file
		err = c.Flags.Parse(args)
		if err != nil {
			return err
		}
	}

	level, err := log.ParseLevel(c.ApplicationLogLevelString)
	if err != nil {
		return fmt.Errorf("invalid application-log-level: %w", err)
	}

	c.ApplicationLogLevel = level
	return nil
}

func (c *Config) ToOptions() inflow.Options {
	o := inflow.Options{
		Address: c.Address,

		// logging, metrics:
		ApplicationLogLevel:       c.ApplicationLogLevel,
		ApplicationLogPrefix:      c.ApplicationLogPrefix,
		ApplicationLogJSONEnabled: c.ApplicationLogJSONEnabled,
		MetricsListener:           c.MetricsListener,
		MetricsPrefix:             c.MetricsPrefix,

		// content pipeline:
		MaxFormContentSize: c.MaxFormContentSize,
		MaxFormKeys:        c.MaxFormKeys,
		CodecBufferSize:    c.CodecBufferSize,
	}

	return o
}
