package config

import "time"

// ApplyDefaults fills any unset field with the engine's standard value.
// Values mirror the search heuristics the engine was tuned with: a 40 cm⁻¹
// imaginary-frequency floor, ten orientation restarts, 12-point cheap and
// 8-point expensive scan axes, and 1.5 / 2.5 Å breaking-bond elongations.
func ApplyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	s := &cfg.Search
	if s.MinImagFreq == 0 {
		s.MinImagFreq = 40.0
	}
	if s.OrientationRestarts == 0 {
		s.OrientationRestarts = 10
	}
	if s.ScanPointsLow == 0 {
		s.ScanPointsLow = 12
	}
	if s.ScanPointsHigh == 0 {
		s.ScanPointsHigh = 8
	}
	if s.TruncationThreshold == 0 {
		s.TruncationThreshold = 20
	}
	if s.MaxAtomDispPlausible == 0 {
		s.MaxAtomDispPlausible = 0.5
	}
	if s.MaxAtomDispLink == 0 {
		s.MaxAtomDispLink = 0.2
	}
	if s.DispMagnitude == 0 {
		s.DispMagnitude = 1.0
	}
	if s.DeltaLoose == 0 {
		s.DeltaLoose = 0.05
	}
	if s.DeltaStrict == 0 {
		s.DeltaStrict = 0.3
	}
	if s.BreakingBondShift == 0 {
		s.BreakingBondShift = 1.5
	}
	if s.BreakingBondShiftCharged == 0 {
		s.BreakingBondShiftCharged = 2.5
	}
	if s.GraphTolerance == 0 {
		s.GraphTolerance = 0.25
	}

	m := &cfg.Methods
	if m.Low.Name == "" {
		m.Low.Name = "xtb"
	}
	if m.High.Name == "" {
		m.High.Name = "orca"
	}
	if m.NCores == 0 {
		m.NCores = 4
	}
	if m.MaxCoreMB == 0 {
		m.MaxCoreMB = 1000
	}
	if m.CalcTimeout == 0 {
		m.CalcTimeout = 2 * time.Hour
	}

	p := &cfg.Postgres
	if p.Port == 0 {
		p.Port = 5432
	}
	if p.SSLMode == "" {
		p.SSLMode = "disable"
	}
	if p.MaxConns == 0 {
		p.MaxConns = 10
	}
	if p.ConnMaxLifetime == 0 {
		p.ConnMaxLifetime = 30 * time.Minute
	}
	if p.MigrationPath == "" {
		p.MigrationPath = "file://migrations"
	}

	r := &cfg.Redis
	if r.Addr == "" {
		r.Addr = "localhost:6379"
	}
	if r.PoolSize == 0 {
		r.PoolSize = 10
	}
	if r.DialTimeout == 0 {
		r.DialTimeout = 5 * time.Second
	}
	if r.ReadTimeout == 0 {
		r.ReadTimeout = 3 * time.Second
	}
	if r.WriteTimeout == 0 {
		r.WriteTimeout = 3 * time.Second
	}
	if r.DefaultTTL == 0 {
		r.DefaultTTL = 720 * time.Hour
	}
	if r.KeyPrefix == "" {
		r.KeyPrefix = "tsfinder:"
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "tsfinder"
	}
}
