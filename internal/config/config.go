// Package config loads migration settings from flags, IFJ_* environment
// variables and an optional YAML config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. IFJ_INSTANCE.
const EnvPrefix = "IFJ"

// Keys.
const (
	KeyInstance        = "instance"
	KeyUser            = "user"
	KeyPassword        = "password"
	KeyEntitiesXMLFile = "entities-xml-file"
	KeyRetryMax        = "retry.max"
	KeyRetryInterval   = "retry.initial-interval"
	KeyHTTPTimeout     = "http.timeout"
	KeyHTTPRateLimit   = "http.rate-limit"
	KeyReport          = "report"
)

var instancePattern = regexp.MustCompile(`^https://[\w-]+\.atlassian\.net$`)

// Config is a fully resolved migration configuration.
type Config struct {
	Instance        string `mapstructure:"instance"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	EntitiesXMLFile string `mapstructure:"entities-xml-file"`
	Report          string `mapstructure:"report"`

	Retry RetryConfig `mapstructure:"retry"`
	HTTP  HTTPConfig  `mapstructure:"http"`
}

// RetryConfig controls transport retries.
type RetryConfig struct {
	Max             int           `mapstructure:"max"`
	InitialInterval time.Duration `mapstructure:"initial-interval"`
}

// HTTPConfig controls the HTTP client.
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate-limit"`
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyRetryMax, 3)
	v.SetDefault(KeyRetryInterval, time.Second)
	v.SetDefault(KeyHTTPTimeout, 30*time.Second)
	v.SetDefault(KeyHTTPRateLimit, 0.0)
	v.SetDefault(KeyReport, "")

	// AutomaticEnv only resolves keys viper already knows about.
	for _, k := range []string{KeyInstance, KeyUser, KeyPassword, KeyEntitiesXMLFile} {
		_ = v.BindEnv(k)
	}
	return v
}

// BindFlags binds command flags to their keys. flagNames maps a key to the
// flag that sets it; flags that are not defined are skipped.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, flagNames map[string]string) error {
	for key, name := range flagNames {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads the optional config file and decodes the merged settings.
// It does not validate them.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Instance = strings.TrimSpace(cfg.Instance)
	cfg.User = strings.TrimSpace(cfg.User)
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if !instancePattern.MatchString(c.Instance) {
		errs = append(errs, fmt.Errorf("instance must be the Jira Cloud instance URL (https://???.atlassian.net), got %q", c.Instance))
	}
	if addr, err := mail.ParseAddress(c.User); err != nil || addr.Address != c.User {
		errs = append(errs, fmt.Errorf("user must be a valid Atlassian admin user email address, got %q", c.User))
	}
	if c.Password == "" {
		errs = append(errs, errors.New("password must be a valid Atlassian API token for the admin user"))
	}
	if !strings.HasSuffix(c.EntitiesXMLFile, "entities.xml") {
		errs = append(errs, fmt.Errorf("entities xml file must point to the entities.xml file of a DC/Server backup, got %q", c.EntitiesXMLFile))
	}
	if c.Retry.Max < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyRetryMax))
	}
	if c.Retry.InitialInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyRetryInterval))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyHTTPTimeout))
	}
	if c.HTTP.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyHTTPRateLimit))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to print or persist.
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = "********"
	}
	return c
}
