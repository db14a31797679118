// Package config loads the odc-controller configuration file: viper
// reads a YAML file, pflag binds command-line overrides, and
// go-playground/validator checks the decoded struct before anything
// else touches it.
package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the top-level odc-controller configuration.
type Config struct {
	GrpcListenAddress   string        `mapstructure:"grpcListenAddress" validate:"required"`
	MetricsListenAddress string       `mapstructure:"metricsListenAddress" validate:"required"`
	DefaultTimeout      time.Duration `mapstructure:"defaultTimeout" validate:"required"`
	RecoveryPollBound   time.Duration `mapstructure:"recoveryPollBound" validate:"required"`
	ScriptTimeout       time.Duration `mapstructure:"scriptTimeout" validate:"required"`

	RestoreFileEnabled bool   `mapstructure:"restoreFileEnabled"`
	RestoreFilePath    string `mapstructure:"restoreFilePath"`
	HistoryFilePath    string `mapstructure:"historyFilePath"`

	ResourcePluginDir string            `mapstructure:"resourcePluginDir"`
	TriggerScriptDir  string            `mapstructure:"triggerScriptDir"`
	RequestTriggers   map[string]string `mapstructure:"requestTriggers"`
}

// Default returns the built-in defaults, applied before the config file
// and flag overrides.
func Default() Config {
	return Config{
		GrpcListenAddress:    ":45454",
		MetricsListenAddress: ":9090",
		DefaultTimeout:       30 * time.Second,
		RecoveryPollBound:    20 * time.Second,
		ScriptTimeout:        30 * time.Second,
		RestoreFileEnabled:   false,
		RestoreFilePath:      "/var/lib/odc/restore.yaml",
		HistoryFilePath:      "/var/lib/odc/history.yaml",
		RequestTriggers:      map[string]string{},
	}
}

// BindFlags registers the --config override on fs, ahead of Load.
func BindFlags(fs *pflag.FlagSet) *string {
	return fs.String("config", "", "path to the odc-controller config directory")
}

// pluginMapHook decodes a "name:value" string into a map[string]string
// entry via a mapstructure.DecodeHookFuncType.
func pluginMapHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(map[string]string{}) || f.Kind() != reflect.Slice {
			return data, nil
		}
		raw, ok := data.([]interface{})
		if !ok {
			return data, nil
		}
		out := map[string]string{}
		for _, item := range raw {
			s, ok := item.(string)
			if !ok {
				continue
			}
			for i := 0; i < len(s); i++ {
				if s[i] == ':' {
					out[s[:i]] = s[i+1:]
					break
				}
			}
		}
		return out, nil
	}
}

// Load reads configDir/config.yaml, overlays it on Default, and
// validates the result via viper's SetConfigName/AddConfigPath/
// ReadInConfig/Unmarshal sequence.
func Load(configDir string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		log.WithField("dir", configDir).Warn("no config.yaml found, using defaults")
	} else if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		pluginMapHook(),
	))); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		LogValidationErrors(err)
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LogValidationErrors logs each validator.ValidationErrors entry at
// Error level.
func LogValidationErrors(err error) {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return
	}
	for _, fe := range verrs {
		log.Errorf("ConfigError: field %s has invalid value %v: %s", fe.Namespace(), fe.Value(), fe.Tag())
	}
}
