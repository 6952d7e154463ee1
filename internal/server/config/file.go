package config

import (
	"fmt"
	"reflect"

	"github.com/spf13/viper"
)

const envPrefix = "SARAHA"

// parseFile overlays values from the config file at path (skipped when path
// is empty) and from SARAHA_* environment variables onto config. Keys that
// appear in neither keep their current value.
func parseFile(config *Config, path string) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	for _, key := range configKeys() {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func configKeys() []string {
	t := reflect.TypeOf(Config{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("mapstructure"); tag != "" {
			keys = append(keys, tag)
		}
	}
	return keys
}
