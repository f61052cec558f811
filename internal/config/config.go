package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/alvmarrod/sitegraph/internal/version"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration parameters
type Config struct {
	RootURL          string `mapstructure:"root_url"`
	AllowedScheme    string `mapstructure:"allowed_scheme"`
	AllowedHost      string `mapstructure:"allowed_host"`
	DataDir          string `mapstructure:"data_dir"`
	VertexFile       string `mapstructure:"vertex_file"`
	EdgeFile         string `mapstructure:"edge_file"`
	FrontierFile     string `mapstructure:"frontier_file"`
	CheckpointEvery  int    `mapstructure:"checkpoint_every"`
	MaxVisits        int    `mapstructure:"max_visits"`
	RequestTimeoutMs int    `mapstructure:"request_timeout_ms"`
	UserAgent        string `mapstructure:"user_agent"`
	DBPath           string `mapstructure:"db_path"`
	MetricsPath      string `mapstructure:"metrics_path"`
	PromTextfile     string `mapstructure:"prom_textfile"`
	LogLevel         string `mapstructure:"log_level"`
}

// LoadConfig reads configuration from path, the environment and flags.
// An empty path searches the working directory for config.{json,yaml};
// not finding one there is fine. flags may be nil; a "root" flag, when
// set, overrides root_url.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if flags != nil {
		if f := flags.Lookup("root"); f != nil {
			if err := v.BindPFlag("root_url", f); err != nil {
				return nil, fmt.Errorf("failed to bind root flag: %w", err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.complete(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(v *viper.Viper) {
	v.SetDefault("root_url", "")
	v.SetDefault("allowed_scheme", "")
	v.SetDefault("allowed_host", "")
	v.SetDefault("data_dir", ".")
	v.SetDefault("vertex_file", "vertices.txt")
	v.SetDefault("edge_file", "edges.csv")
	v.SetDefault("frontier_file", "queue.txt")
	v.SetDefault("checkpoint_every", 0)
	v.SetDefault("max_visits", 0)
	v.SetDefault("request_timeout_ms", 30000)
	v.SetDefault("user_agent", "sitegraph/"+version.Version)
	v.SetDefault("db_path", "")
	v.SetDefault("metrics_path", "metrics.json")
	v.SetDefault("prom_textfile", "")
	v.SetDefault("log_level", "info")
}

// complete places relative output paths under data_dir and derives the
// crawl scope from the root URL when it is not set explicitly.
func (c *Config) complete() error {
	c.DBPath = c.underDataDir(c.DBPath)
	c.MetricsPath = c.underDataDir(c.MetricsPath)
	c.PromTextfile = c.underDataDir(c.PromTextfile)

	if c.RootURL == "" {
		return nil
	}
	u, err := url.Parse(c.RootURL)
	if err != nil {
		return fmt.Errorf("root_url is not a valid URL: %w", err)
	}
	if c.AllowedScheme == "" {
		c.AllowedScheme = u.Scheme
	}
	if c.AllowedHost == "" {
		c.AllowedHost = u.Host
	}
	c.AllowedScheme = strings.ToLower(c.AllowedScheme)
	c.AllowedHost = strings.ToLower(c.AllowedHost)
	return nil
}

func (c *Config) underDataDir(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// Validate checks that required fields are present and values are sensible
func (c *Config) Validate() error {
	if c.RootURL == "" {
		return fmt.Errorf("root_url is required")
	}
	u, err := url.Parse(c.RootURL)
	if err != nil {
		return fmt.Errorf("root_url is not a valid URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("root_url must include a host")
	}
	if c.AllowedScheme != "http" && c.AllowedScheme != "https" {
		return fmt.Errorf("allowed_scheme must be http or https, got %q", c.AllowedScheme)
	}
	if c.AllowedHost == "" {
		return fmt.Errorf("allowed_host is required")
	}
	if c.VertexFile == "" || c.EdgeFile == "" || c.FrontierFile == "" {
		return fmt.Errorf("vertex_file, edge_file and frontier_file are required")
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("checkpoint_every must be >= 0")
	}
	if c.MaxVisits < 0 {
		return fmt.Errorf("max_visits must be >= 0")
	}
	if c.RequestTimeoutMs < 0 {
		return fmt.Errorf("request_timeout_ms must be >= 0")
	}
	return nil
}
