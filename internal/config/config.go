// Package config defines all configuration structures for the tsfinder
// engine.  No I/O or parsing logic lives here, only plain data types and
// validation.  The Search section is consumed, not owned, by the core: the
// locator threads it explicitly through every component call instead of
// reading ambient process-wide state.
package config

import (
	"fmt"
	"time"

	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/logging"
)

// SearchConfig holds the transition-state search tunables.
type SearchConfig struct {
	// MinImagFreq is the minimum magnitude (cm⁻¹) the dominant imaginary
	// frequency must exceed to count as a real reaction coordinate rather
	// than numerical noise.
	MinImagFreq float64 `mapstructure:"min_imag_freq"`

	// OrientationRestarts is the number of random-restart minimisations used
	// when orienting multi-fragment reactant complexes.
	OrientationRestarts int `mapstructure:"orientation_restarts"`

	// OrientationSeed seeds the restart RNG.  Every value, zero included,
	// gives fully deterministic poses; each restart offsets the seed by its
	// index.
	OrientationSeed int64 `mapstructure:"orientation_seed"`

	// ScanPointsLow / ScanPointsHigh are the point counts used for cheap and
	// expensive scan axes respectively.
	ScanPointsLow  int `mapstructure:"scan_points_low"`
	ScanPointsHigh int `mapstructure:"scan_points_high"`

	// TruncationThreshold is the complex atom count above which building a
	// truncated stand-in complex is considered.
	TruncationThreshold int `mapstructure:"truncation_threshold"`

	// Template reuse is on whenever a store is configured. The disable flags
	// switch off writing and reading the persistent TS-template store.
	DisableTemplateSave bool `mapstructure:"disable_template_save"`
	DisableTemplateUse  bool `mapstructure:"disable_template_use"`

	// MaxAtomDispPlausible / MaxAtomDispLink cap the single-atom displacement
	// (Å) when displacing along the imaginary mode for the cheap plausibility
	// check and the reactant-product linking check respectively.
	MaxAtomDispPlausible float64 `mapstructure:"max_atom_disp_plausible"`
	MaxAtomDispLink      float64 `mapstructure:"max_atom_disp_link"`

	// DispMagnitude is the nominal displacement distance (Å) along the
	// imaginary mode before the per-atom cap is applied.
	DispMagnitude float64 `mapstructure:"disp_magnitude"`

	// DeltaLoose / DeltaStrict are the bond-length change thresholds (Å) for
	// the conservative and strict displacement checks.
	DeltaLoose  float64 `mapstructure:"delta_loose"`
	DeltaStrict float64 `mapstructure:"delta_strict"`

	// BreakingBondShift / BreakingBondShiftCharged are the distances (Å) a
	// breaking bond is elongated to during scans; the charged variant applies
	// when any product carries net charge.  Empirical corrections, exposed as
	// tunables rather than hard-coded branches.
	BreakingBondShift        float64 `mapstructure:"breaking_bond_shift"`
	BreakingBondShiftCharged float64 `mapstructure:"breaking_bond_shift_charged"`

	// GraphTolerance is the relative tolerance on covalent-radius sums used
	// when inferring bonds from geometry.
	GraphTolerance float64 `mapstructure:"graph_tolerance"`
}

// MethodConfig identifies one electronic-structure method level passed to the
// oracle.
type MethodConfig struct {
	Name       string   `mapstructure:"name"`
	LowOptKeys []string `mapstructure:"low_opt_keywords"`
	OptKeys    []string `mapstructure:"opt_keywords"`
	HessKeys   []string `mapstructure:"hess_keywords"`
	OptTSKeys  []string `mapstructure:"opt_ts_keywords"`

	// Command and Args name the external driver executable for this level.
	// The driver receives a calculation request as JSON on stdin and writes
	// a result as JSON on stdout.
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// MethodsConfig holds the low/high method pair and shared execution hints.
type MethodsConfig struct {
	Low         MethodConfig  `mapstructure:"low"`
	High        MethodConfig  `mapstructure:"high"`
	NCores      int           `mapstructure:"n_cores"`
	MaxCoreMB   int           `mapstructure:"max_core_mb"`
	CalcTimeout time.Duration `mapstructure:"calc_timeout"`
}

// PostgresConfig holds template-store connection parameters.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// DSN builds a postgres connection string from the configuration.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisConfig holds calculation-cache connection parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Config is the root configuration object.
type Config struct {
	Log      logging.LogConfig `mapstructure:"log"`
	Search   SearchConfig      `mapstructure:"search"`
	Methods  MethodsConfig     `mapstructure:"methods"`
	Postgres PostgresConfig    `mapstructure:"postgres"`
	Redis    RedisConfig       `mapstructure:"redis"`
	Metrics  MetricsConfig     `mapstructure:"metrics"`
}

// Validate checks cross-field consistency.  It is called by the loader after
// defaults are applied, so zero values for optional sections are fine.
func (c *Config) Validate() error {
	s := c.Search
	if s.MinImagFreq <= 0 {
		return fmt.Errorf("search.min_imag_freq must be positive, got %v", s.MinImagFreq)
	}
	if s.OrientationRestarts < 1 {
		return fmt.Errorf("search.orientation_restarts must be >= 1, got %d", s.OrientationRestarts)
	}
	if s.ScanPointsLow < 3 || s.ScanPointsHigh < 3 {
		return fmt.Errorf("scan point counts must be >= 3, got low=%d high=%d",
			s.ScanPointsLow, s.ScanPointsHigh)
	}
	if s.MaxAtomDispPlausible <= 0 || s.MaxAtomDispLink <= 0 {
		return fmt.Errorf("displacement caps must be positive")
	}
	if s.GraphTolerance <= 0 || s.GraphTolerance >= 1 {
		return fmt.Errorf("search.graph_tolerance must be in (0, 1), got %v", s.GraphTolerance)
	}
	if c.Methods.NCores < 1 {
		return fmt.Errorf("methods.n_cores must be >= 1, got %d", c.Methods.NCores)
	}
	return nil
}
