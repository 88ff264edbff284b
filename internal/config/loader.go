// Package config provides configuration loading, defaults, and validation.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all engine settings.
const envPrefix = "TSFINDER"

// settingKeys lists every configuration key.  Viper resolves environment
// variables during Unmarshal only for keys it already knows about, so each
// key is bound explicitly; a key absent from this list cannot be set from
// the environment.
var settingKeys = []string{
	"log.level", "log.format", "log.output_paths", "log.error_output_paths",

	"search.min_imag_freq", "search.orientation_restarts", "search.orientation_seed",
	"search.scan_points_low", "search.scan_points_high", "search.truncation_threshold",
	"search.disable_template_save", "search.disable_template_use",
	"search.max_atom_disp_plausible", "search.max_atom_disp_link", "search.disp_magnitude",
	"search.delta_loose", "search.delta_strict",
	"search.breaking_bond_shift", "search.breaking_bond_shift_charged",
	"search.graph_tolerance",

	"methods.low.name", "methods.low.command", "methods.low.args",
	"methods.low.low_opt_keywords", "methods.low.opt_keywords",
	"methods.low.hess_keywords", "methods.low.opt_ts_keywords",
	"methods.high.name", "methods.high.command", "methods.high.args",
	"methods.high.low_opt_keywords", "methods.high.opt_keywords",
	"methods.high.hess_keywords", "methods.high.opt_ts_keywords",
	"methods.n_cores", "methods.max_core_mb", "methods.calc_timeout",

	"postgres.host", "postgres.port", "postgres.user", "postgres.password",
	"postgres.db_name", "postgres.ssl_mode", "postgres.max_conns",
	"postgres.conn_max_lifetime", "postgres.migration_path",

	"redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.pool_size",
	"redis.dial_timeout", "redis.read_timeout", "redis.write_timeout",
	"redis.default_ttl", "redis.key_prefix",

	"metrics.enabled", "metrics.namespace",
}

// newViper builds a pre-configured Viper instance with the engine's standard
// settings: YAML file type, TSFINDER_ env prefix, automatic env binding, and
// a key replacer that maps "." → "_" so that nested keys like
// "search.min_imag_freq" resolve to "TSFINDER_SEARCH_MIN_IMAG_FREQ".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range settingKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the YAML file at configPath, merges any TSFINDER_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from TSFINDER_* environment variables,
// with no config file required.
func LoadFromEnv() (*Config, error) {
	v := newViper()
	return unmarshalAndFinalize(v)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk.  It is intended for
// hot-reloading non-critical settings such as log level and scan point
// counts; callers are responsible for applying only the safe subset of
// changes at runtime.  If the changed file fails to parse or validate,
// onChange is not called and the previous configuration stays in effect.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
func Watch(configPath string, onChange func(*Config)) error {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
