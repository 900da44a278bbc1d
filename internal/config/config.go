// Package config resolves run settings from flags, FAULTCHECK_* environment
// variables and an optional config file, and decodes suite files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"faultcheck/internal/logger"
	"faultcheck/internal/probe"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const EnvPrefix = "FAULTCHECK"

// Config holds the settings shared by every subcommand.
type Config struct {
	ProxyURL    string
	Scheme      string
	Host        string
	Port        int
	VirtualHost string
	ServerName  string
	Insecure    bool
	Timeout     time.Duration
	Pace        time.Duration

	Log logger.Config

	Out         string // export prefix; empty disables export
	MetricsAddr string
	TUI         bool
	Quiet       bool
}

// NewViper returns a viper instance reading FAULTCHECK_* variables and, if
// present, the config file. An explicit cfgFile must exist; the default
// $HOME/.faultcheck.yaml is optional.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidConfig, cfgFile, err)
		}
		return v, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".faultcheck")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidConfig, filepath.Join(home, ".faultcheck.yaml"), err)
			}
		}
	}
	return v, nil
}

// BindFlags makes every flag in fs a viper key of the same name. Flags set
// on the command line win over the environment and the config file.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ProxyURL:    v.GetString("proxy-url"),
		Scheme:      v.GetString("scheme"),
		Host:        v.GetString("host"),
		Port:        v.GetInt("port"),
		VirtualHost: v.GetString("virtual-host"),
		ServerName:  v.GetString("sni"),
		Insecure:    v.GetBool("insecure"),
		Timeout:     v.GetDuration("timeout"),
		Pace:        v.GetDuration("pace"),
		Log: logger.Config{
			Level:  v.GetString("log-level"),
			Format: v.GetString("log-format"),
			Output: v.GetString("log-output"),
		},
		Out:         v.GetString("out"),
		MetricsAddr: v.GetString("metrics-addr"),
		TUI:         v.GetBool("tui"),
		Quiet:       v.GetBool("quiet"),
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := logger.DefaultConfig()
	if cfg.Scheme == "" {
		cfg.Scheme = string(probe.SchemeHTTP)
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Format
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = def.Output
	}
	cfg.Log.TimeFormat = def.TimeFormat
}

func (c *Config) validate() error {
	var errs []error
	if _, err := c.BaseTarget(); err != nil {
		errs = append(errs, err)
	}
	if c.Pace < 0 {
		errs = append(errs, fmt.Errorf("pace %s is negative", c.Pace))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s is negative", c.Timeout))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// BaseTarget is the proxy endpoint scenarios start from. ProxyURL, when
// set, replaces scheme, host, port and path.
func (c *Config) BaseTarget() (probe.Target, error) {
	t := probe.Target{
		Scheme: probe.Scheme(strings.ToLower(c.Scheme)),
		Host:   c.Host,
		Port:   c.Port,
		Path:   "/",
	}
	if c.ProxyURL != "" {
		parsed, err := probe.ParseURL(c.ProxyURL)
		if err != nil {
			return probe.Target{}, err
		}
		t = parsed
	}
	t.VirtualHost = c.VirtualHost
	t.ServerName = c.ServerName
	if t.ServerName == "" {
		t.ServerName = t.VirtualHost
	}
	t.Insecure = c.Insecure
	t.Timeout = c.Timeout

	if err := t.Validate(); err != nil {
		return probe.Target{}, err
	}
	return t, nil
}
