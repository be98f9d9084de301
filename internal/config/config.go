package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "okinoko.config"

const (
	DefaultDataDir     = ".okinoko"
	DefaultMetricsAddr = "127.0.0.1:12799"
	DefaultFactory     = "contract:okinoko-factory"
)

// ErrInvalidConfig wraps every validation failure of a loaded config.
var ErrInvalidConfig = errors.New("invalid config")

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// Holder is one founding share holder.
type Holder struct {
	Address string `yaml:"address"`
	Shares  uint64 `yaml:"shares"`
}

// Holders decodes from the environment as a comma separated list of
// address=shares pairs, e.g. "hive:alice=60,hive:bob=40".
type Holders []Holder

func (h *Holders) Decode(value string) error {
	var out Holders
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, shares, ok := strings.Cut(part, "=")
		if !ok || addr == "" {
			return fmt.Errorf("holder %q: expected address=shares", part)
		}
		n, err := strconv.ParseUint(shares, 10, 64)
		if err != nil {
			return fmt.Errorf("holder %q: %w", part, err)
		}
		out = append(out, Holder{Address: addr, Shares: n})
	}
	*h = out
	return nil
}

// SummonConfig holds the parameters of the instance created by the summon command.
type SummonConfig struct {
	Salt          string  `yaml:"salt"`
	Name          string  `yaml:"name"`
	Symbol        string  `yaml:"symbol"`
	URI           string  `yaml:"uri"`
	QuorumBps     uint16  `yaml:"quorumBps"     split_words:"true"`
	Ragequittable bool    `yaml:"ragequittable"`
	Holders       Holders `yaml:"holders"`
}

type Config struct {
	DataDir     string       `yaml:"dataDir"     split_words:"true"`
	IndexerPath string       `yaml:"indexerPath" split_words:"true"`
	Debug       bool         `yaml:"debug"`
	LogLevel    string       `yaml:"logLevel"    split_words:"true"`
	MetricsAddr string       `yaml:"metricsAddr" split_words:"true"`
	Factory     string       `yaml:"factory"`
	Summon      SummonConfig `yaml:"summon"`
}

// Level resolves the log level; debug wins over the configured level.
func (c *Config) Level() (slog.Level, error) {
	if c.Debug {
		return slog.LevelDebug, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return lvl, nil
}

// IndexDir is where the indexer keeps its database. It defaults to a
// directory under the data dir.
func (c *Config) IndexDir() string {
	if c.IndexerPath != "" {
		return c.IndexerPath
	}
	return filepath.Join(c.DataDir, "index")
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data dir is empty", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.Factory, "contract:") {
		return fmt.Errorf("%w: factory %q is not a contract address", ErrInvalidConfig, c.Factory)
	}
	if c.Summon.QuorumBps > 10000 {
		return fmt.Errorf("%w: quorum %d bps", ErrInvalidConfig, c.Summon.QuorumBps)
	}
	seen := make(map[string]bool, len(c.Summon.Holders))
	for _, h := range c.Summon.Holders {
		if seen[h.Address] {
			return fmt.Errorf("%w: holder %s listed twice", ErrInvalidConfig, h.Address)
		}
		seen[h.Address] = true
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		DataDir:     DefaultDataDir,
		LogLevel:    "info",
		MetricsAddr: DefaultMetricsAddr,
		Factory:     DefaultFactory,
		Summon: SummonConfig{
			Salt:      "genesis",
			QuorumBps: 5000,
		},
	}
}

var globalConfig = defaultConfig()

// LoadConfig layers the defaults, the YAML file and OKINOKO_* environment
// variables, in that order. Without an explicit file it looks for
// ~/.okinoko/okinoko.yaml and then /etc/okinoko/okinoko.yaml.
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".okinoko", "okinoko.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/okinoko/okinoko.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process("okinoko", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

func GetConfig() *Config {
	return globalConfig
}
