package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Load reads config from flags, env, and file. Without an explicit file it
// searches for dbbench.{yaml,json,toml,hcl} in ., ~/.dbbench and
// /etc/dbbench; a missing file is only an error when one was requested.
func Load(v *viper.Viper, configFile string) error {
	bindEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("dbbench")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath("/etc/dbbench")
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) || configFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// bindEnv maps DBBENCH_<SECTION>_<KEY> variables onto v.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// LoadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing file is fine unless explicit.
func LoadEnvFile(path string, explicit bool) error {
	if path == "" {
		path = Common.EnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// LoadInto applies defaults, loads the env file and config file named by
// cmd's flags, and unmarshals into a Config. The env file must exist when
// --env-file or DBBENCH_ENV_FILE names it.
func LoadInto(cmd *cobra.Command, v *viper.Viper) (Config, error) {
	SetDefaults(v)
	bindEnv(v)

	configFile, _ := cmd.Flags().GetString("config")
	_, envSet := os.LookupEnv(EnvPrefix + "_ENV_FILE")
	explicit := cmd.Flags().Changed("env-file") || envSet
	if err := LoadEnvFile(v.GetString("env_file"), explicit); err != nil {
		return Config{}, err
	}
	if err := Load(v, configFile); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Backends = backendMaps(v)
	return cfg, nil
}

// backendMaps reads the backends table key by key so every value arrives
// as a string whatever the file format typed it as.
func backendMaps(v *viper.Viper) map[string]map[string]string {
	raw := v.GetStringMap("backends")
	out := make(map[string]map[string]string, len(raw))
	for name := range raw {
		out[name] = v.GetStringMapString("backends." + name)
	}
	return out
}

// StringList returns the repeatable flag's values when it was given on the
// command line and the config key's values otherwise.
func StringList(cmd *cobra.Command, v *viper.Viper, flag, key string) []string {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		vals, err := cmd.Flags().GetStringArray(flag)
		if err == nil {
			return vals
		}
	}
	return v.GetStringSlice(key)
}
