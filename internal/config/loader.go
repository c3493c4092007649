package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/rileyhilliard/connmon/internal/errors"
)

const (
	// ConfigFileName is the per-directory config file name.
	ConfigFileName = ".connmon.yaml"
	// GlobalConfigDir is the directory under XDG_CONFIG_HOME for global config.
	GlobalConfigDir = "connmon"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes every environment override, e.g. CONNMON_SESSION_SSID.
	EnvPrefix = "CONNMON"
)

// Environment variables read by earlier releases of the monitor.
const (
	LegacySSIDEnv    = "POCKET_SSID"
	LegacyUseRealEnv = "POCKET_USE_REAL"
)

// Load reads config from path and applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'connmon init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// FromEnv returns defaults with environment overrides applied. It is what
// LoadOrDefault returns when no config file exists.
func FromEnv() (*Config, error) {
	return parseConfig(viper.New(), "")
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .connmon.yaml in the current directory
// 3. $XDG_CONFIG_HOME/connmon/config.yaml (~/.config when unset)
// 4. ~/.connmon.yaml
//
// Returns an empty path when nothing is found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	for _, candidate := range searchPaths() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

// LoadOrDefault loads the config at explicit, or the first one Find
// locates, or defaults with environment overrides when there is none.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		cfg, err := FromEnv()
		return cfg, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// GlobalConfigPath returns where `connmon init --global` writes.
func GlobalConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, GlobalConfigDir, GlobalConfigFile)
}

func searchPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ConfigFileName))
	}
	paths = append(paths, GlobalConfigPath())
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ConfigFileName))
	}
	return paths
}

// parseConfig decodes v on top of the defaults.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()
	bindEnv(v)

	if err := v.Unmarshal(cfg); err != nil {
		hint := "Check the YAML syntax"
		if path != "" {
			hint += " in " + path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Invalid config format", hint)
	}

	applyLegacyEnv(cfg)
	return cfg, nil
}

// bindEnv registers every config key with viper so AutomaticEnv-style
// overrides reach Unmarshal even when the file does not mention the key.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range configKeys(reflect.TypeOf(Config{}), "") {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("session.ssid", EnvPrefix+"_SESSION_SSID", LegacySSIDEnv)
}

// configKeys lists the dotted mapstructure keys of t's leaf fields.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			keys = append(keys, configKeys(f.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// applyLegacyEnv maps POCKET_USE_REAL=true to the Socket.IO transport
// unless CONNMON_TRANSPORT_KIND is set.
func applyLegacyEnv(cfg *Config) {
	if _, ok := os.LookupEnv(EnvPrefix + "_TRANSPORT_KIND"); ok {
		return
	}
	if useReal, err := strconv.ParseBool(os.Getenv(LegacyUseRealEnv)); err == nil && useReal {
		cfg.Transport.Kind = "socketio"
	}
}
