package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
	"github.com/bacalhau-project/contractnet/pkg/config/types"
)

const (
	environmentVariablePrefix = "CONTRACTNET"
	inferConfigTypes          = true
	component                 = "Config"
)

var (
	environmentVariableReplace = strings.NewReplacer(".", "_")
	DecoderHook                = viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
)

type Config struct {
	// viper instance for holding user provided configuration.
	base *viper.Viper
	// the default configuration values to initialize with.
	defaultCfg types.Validatable

	// paths to configuration files merged from [0] to [N]
	// e.g. file at index 1 overrides index 0, index 2 overrides index 1 and 0, etc.
	paths []string

	flags map[string]*pflag.Flag

	environmentVariables map[string][]string

	// values to inject into the config, taking highest precedence.
	values map[string]any
}

type Option = func(s *Config)

// WithDefault sets the default config to be used when no values are provided.
func WithDefault(cfg types.Validatable) Option {
	return func(c *Config) {
		c.defaultCfg = cfg
	}
}

// WithPaths sets paths to configuration files to be loaded
// paths to configuration files merged from [0] to [N]
// e.g. file at index 1 overrides index 0, index 2 overrides index 1 and 0, etc.
func WithPaths(path ...string) Option {
	return func(c *Config) {
		c.paths = append(c.paths, path...)
	}
}

// WithFlags binds flags to config keys, e.g. "bus.port" to --bus-port.
func WithFlags(flags map[string]*pflag.Flag) Option {
	return func(s *Config) {
		s.flags = flags
	}
}

func WithEnvironmentVariables(ev map[string][]string) Option {
	return func(s *Config) {
		s.environmentVariables = ev
	}
}

// WithValues sets values to be injected into the config, taking precedence over all other options.
func WithValues(values map[string]any) Option {
	return func(c *Config) {
		c.values = values
	}
}

// New returns a configuration with the provided options applied. If no options are provided, the returned config
// contains only the default values.
// Precedence from highest to lowest is values, flags, environment variables, files, defaults.
func New(opts ...Option) (*Config, error) {
	base := viper.New()
	base.SetEnvPrefix(environmentVariablePrefix)
	base.SetTypeByDefaultValue(inferConfigTypes)
	base.AutomaticEnv()
	base.SetEnvKeyReplacer(environmentVariableReplace)

	c := &Config{
		base:       base,
		defaultCfg: Default,
		paths:      make([]string, 0),
	}
	for _, opt := range opts {
		opt(c)
	}

	var defaultMap map[string]interface{}
	err := mapstructure.Decode(c.defaultCfg, &defaultMap)
	if err != nil {
		return nil, err
	}

	if err := c.base.MergeConfigMap(defaultMap); err != nil {
		return nil, err
	}

	// merge the config files in the order they were passed.
	for _, path := range c.paths {
		if err := c.Merge(path); err != nil {
			if os.IsNotExist(err) {
				return nil, newConfigError(err, "the specified configuration file %q doesn't exist", path)
			}
			return nil, newConfigError(err, "opening config file %q", path)
		}
	}

	for name, values := range c.environmentVariables {
		if err := c.base.BindEnv(append([]string{name}, values...)...); err != nil {
			return nil, newConfigError(err, "binding environment variable %q to config", name)
		}
	}

	for name, flag := range c.flags {
		if err := c.base.BindPFlag(name, flag); err != nil {
			return nil, newConfigError(err, "binding flag %q to config", name)
		}
	}

	// merge the passed values last as they take highest precedence
	for name, value := range c.values {
		c.base.Set(name, value)
	}

	return c, nil
}

// Load reads in the configuration file specified by `path` overriding any previously set configuration with the values
// from the read config file.
// Load returns an error if the file cannot be read.
func (c *Config) Load(path string) error {
	log.Debug().Msgf("loading config file: %q", path)
	c.base.SetConfigFile(path)
	if err := c.base.ReadInConfig(); err != nil {
		return err
	}
	return nil
}

// Merge merges a new configuration file specified by `path` with the existing config.
// Merge returns an error if the file cannot be read
func (c *Config) Merge(path string) error {
	log.Debug().Msgf("merging config file: %q", path)
	c.base.SetConfigFile(path)
	if err := c.base.MergeInConfig(); err != nil {
		return err
	}
	return nil
}

// Unmarshal returns the current configuration.
// Unmarshal returns an error if the configuration cannot be unmarshalled or is invalid.
func (c *Config) Unmarshal(out types.Validatable) error {
	if err := c.base.Unmarshal(out, DecoderHook); err != nil {
		return newConfigError(err, "decoding configuration")
	}
	if err := out.Validate(); err != nil {
		return newConfigError(err, "invalid configuration")
	}
	return nil
}

// Get returns the value of a single key, e.g. "bus.port".
func (c *Config) Get(key string) any {
	return c.base.Get(key)
}

// Load builds the effective configuration of an agent from the defaults, the
// config.yaml file in configDir if there is one, environment variables and flags.
func Load(configDir string, opts ...Option) (types.ContractNet, error) {
	var cfg types.ContractNet
	path, err := configFilePath(configDir)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		opts = append([]Option{WithPaths(path)}, opts...)
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return cfg, newConfigError(statErr, "reading config file %q", path)
	}

	c, err := New(opts...)
	if err != nil {
		return cfg, err
	}
	if err = c.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// configFilePath expands a leading ~ in the config directory.
func configFilePath(configDir string) (string, error) {
	if configDir == "" {
		configDir = DefaultConfigDir
	}
	if strings.HasPrefix(configDir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", newConfigError(err, "resolving home directory for %q", configDir)
		}
		configDir = filepath.Join(home, strings.TrimPrefix(configDir, "~"))
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// Render returns the configuration as YAML.
func Render(cfg types.ContractNet) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("rendering configuration: %w", err)
	}
	return out, nil
}

// KeyAsEnvVar returns the environment variable that sets key, e.g. CONTRACTNET_BUS_PORT for "bus.port".
func KeyAsEnvVar(key string) string {
	return environmentVariablePrefix + "_" + strings.ToUpper(environmentVariableReplace.Replace(key))
}

func newConfigError(err error, format string, args ...any) cnerrors.Error {
	return cnerrors.Wrap(err, format, args...).
		WithCode(cnerrors.ConfigurationError).
		WithComponent(component)
}
