package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides, e.g. CHURN_TRAIN_THRESHOLD.
const EnvPrefix = "CHURN_"

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"csv":           "data.csv",
	"target":        "data.target",
	"model-dir":     "model.dir",
	"test-size":     "train.test_size",
	"threshold":     "train.threshold",
	"epochs":        "train.epochs",
	"learning-rate": "train.learning_rate",
	"seed":          "train.seed",
	"db":            "tracking.db",
	"experiment":    "tracking.experiment",
	"addr":          "serve.addr",
	"watch":         "serve.watch",
	"log-format":    "log.format",
	"verbose":       "log.verbose",
}

func defaultTrackingDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".churn-features", "tracking.db")
	}
	return filepath.Join(home, ".churn-features", "tracking.db")
}

// findConfigFile returns the explicit path, or churn.yaml in the working
// directory when it exists.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// envKey turns CHURN_TRAIN_TEST_SIZE into train.test_size. Only the first
// underscore separates the section from the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Load reads configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only explicitly set flags override lower layers.
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Data.Target == "" {
		return fmt.Errorf("data.target must not be empty")
	}
	if c.Model.Dir == "" {
		return fmt.Errorf("model.dir must not be empty")
	}
	if c.Train.TestSize <= 0 || c.Train.TestSize >= 1 {
		return fmt.Errorf("train.test_size must be in (0, 1), got %v", c.Train.TestSize)
	}
	if c.Train.Threshold < 0 || c.Train.Threshold > 1 {
		return fmt.Errorf("train.threshold must be in [0, 1], got %v", c.Train.Threshold)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
