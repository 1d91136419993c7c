package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "FETCHER"
	defaultConfigFile = "config.toml"
)

// newViper merges the config file, FETCHER_* environment variables and flags.
// The file content goes through ${VAR} substitution before parsing, with
// variables from a local .env file available. A missing default config file
// is not an error; an explicit one is.
func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	path := cfgFile
	if path == "" {
		path = defaultConfigFile
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if cfgFile == "" && errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	v.SetConfigType(configType(path))
	if err := v.ReadConfig(bytes.NewReader([]byte(os.ExpandEnv(string(raw))))); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return v, nil
}

func configType(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "toml"
	}
	return strings.ToLower(ext)
}
