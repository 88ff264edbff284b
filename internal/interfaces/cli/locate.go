package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/domain/reaction"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/internal/domain/transition"
	"github.com/molkinetics/tsfinder/internal/infrastructure/database/postgres"
	"github.com/molkinetics/tsfinder/internal/infrastructure/database/postgres/repositories"
	"github.com/molkinetics/tsfinder/internal/infrastructure/database/redis"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/prometheus"
	"github.com/molkinetics/tsfinder/internal/infrastructure/oracle"
)

// reactionFile is the on-disk JSON description of a reaction.
type reactionFile struct {
	Name      string         `json:"name"`
	Reactants []moleculeFile `json:"reactants"`
	Products  []moleculeFile `json:"products"`
}

type moleculeFile struct {
	Name   string     `json:"name"`
	Charge int        `json:"charge"`
	Mult   int        `json:"mult"`
	Atoms  []atomFile `json:"atoms"`
}

type atomFile struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// tsReport is the JSON output shape for one located transition state.
type tsReport struct {
	Name      string   `json:"name"`
	Origin    string   `json:"origin"`
	Signature string   `json:"signature"`
	Energy    *float64 `json:"energy,omitempty"`
	ImagFreq  *float64 `json:"imag_freq,omitempty"`
	Lowest    bool     `json:"lowest"`
}

func newLocateCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "locate <reaction.json>",
		Short: "Locate transition states for a reaction",
		Long:  "Locate reads a reaction description (reactant and product molecules with\n3-D geometries), enumerates bond rearrangements linking them, and searches\nfor a validated transition state on each.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			return runLocate(cmd, cc, args[0], outputFormat)
		},
	}
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json)")
	return cmd
}

func runLocate(cmd *cobra.Command, cc *CLIContext, path, outputFormat string) error {
	r, err := loadReaction(path)
	if err != nil {
		return err
	}

	orc, store, cleanup, err := buildDependencies(cmd, cc)
	if err != nil {
		return err
	}
	defer cleanup()

	locator := reaction.NewLocator(orc, store, *cc.Config, cc.Logger)
	found, err := locator.Locate(cmd.Context(), r)
	if err != nil {
		return err
	}
	return printResults(cmd, r, found, outputFormat)
}

func loadReaction(path string) (*reaction.Reaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reaction file: %w", err)
	}
	var rf reactionFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse reaction file: %w", err)
	}

	toSpecies := func(ms []moleculeFile) []*species.Species {
		out := make([]*species.Species, 0, len(ms))
		for _, m := range ms {
			atoms := make([]species.Atom, 0, len(m.Atoms))
			for _, a := range m.Atoms {
				atoms = append(atoms, species.Atom{Label: a.Label, Coord: [3]float64{a.X, a.Y, a.Z}})
			}
			mult := m.Mult
			if mult == 0 {
				mult = 1
			}
			out = append(out, species.New(m.Name, m.Charge, mult, atoms))
		}
		return out
	}
	return reaction.New(rf.Name, toSpecies(rf.Reactants), toSpecies(rf.Products))
}

// buildDependencies wires the oracle chain (driver, optional metrics,
// optional cache) and the template store from configuration.
func buildDependencies(cmd *cobra.Command, cc *CLIContext) (calc.Oracle, transition.TemplateStore, func(), error) {
	cfg := cc.Config
	log := cc.Logger
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var orc calc.Oracle = oracle.NewExecOracle(cfg.Methods, log.Named("oracle"))

	var metrics *prometheus.EngineMetrics
	if cfg.Metrics.Enabled {
		collector := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace: cfg.Metrics.Namespace,
		}, log.Named("metrics"))
		metrics = prometheus.NewEngineMetrics(collector)
		orc = prometheus.NewInstrumentedOracle(orc, metrics)
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis, log.Named("redis"))
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = client.Close() })
		orc = redis.NewOracleCache(orc, client, cfg.Redis, metrics, log.Named("cache"))
	}

	var store transition.TemplateStore
	if cfg.Postgres.Host != "" {
		if err := postgres.RunMigrations(cfg.Postgres.DSN(), cfg.Postgres.MigrationPath); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		pool, err := postgres.Connect(cmd.Context(), cfg.Postgres, log.Named("postgres"))
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		cleanups = append(cleanups, pool.Close)
		store = repositories.NewTemplateRepository(pool, log.Named("templates"))
	} else {
		store = transition.NewMemoryTemplateStore()
	}
	return orc, store, cleanup, nil
}

func printResults(cmd *cobra.Command, r *reaction.Reaction, found []*transition.TransitionState, outputFormat string) error {
	lowest := r.LowestEnergyTS()
	reports := make([]tsReport, 0, len(found))
	for _, ts := range found {
		rep := tsReport{
			Name:      ts.Species.Name,
			Origin:    ts.Origin,
			Signature: ts.Rearrangement.Signature(),
			Lowest:    ts == lowest,
		}
		if e, ok := ts.Energy(); ok {
			rep.Energy = &e
		}
		if fs := ts.ImagFreqs; len(fs) > 0 {
			f := fs[0]
			rep.ImagFreq = &f
		}
		reports = append(reports, rep)
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Reaction string     `json:"reaction"`
			Class    string     `json:"class"`
			Switched bool       `json:"switched"`
			TSs      []tsReport `json:"transition_states"`
		}{Reaction: r.Name, Class: string(r.Class), Switched: r.Switched, TSs: reports})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "reaction %s (%s): %d transition state(s)\n", r.Name, r.Class, len(reports))
	for _, rep := range reports {
		fmt.Fprintf(out, "  %s  origin=%s  signature=%s", rep.Name, rep.Origin, rep.Signature)
		if rep.Energy != nil {
			fmt.Fprintf(out, "  energy=%.6f Ha", *rep.Energy)
		}
		if rep.ImagFreq != nil {
			fmt.Fprintf(out, "  imag=%.1f cm-1", *rep.ImagFreq)
		}
		if rep.Lowest {
			fmt.Fprint(out, "  (lowest)")
		}
		fmt.Fprintln(out)
	}
	if dE, ok := r.DeltaEDagger(); ok {
		fmt.Fprintf(out, "barrier: %.6f Ha\n", dE)
	}
	return nil
}
