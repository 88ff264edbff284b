package prometheus

import (
	"context"
	"time"

	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/pkg/errors"
)

// oracleDurationBuckets spans the fraction of a second a cached answer takes
// up to the hours a high-level Hessian can run.
var oracleDurationBuckets = []float64{0.1, 1, 5, 30, 60, 300, 900, 1800, 3600, 7200}

// EngineMetrics holds the metrics observed at the oracle boundary, which is
// where all the search cost concentrates.
type EngineMetrics struct {
	OracleCallsTotal   CounterVec
	OracleCallDuration HistogramVec
	ScanPointsTotal    CounterVec
	CacheHitsTotal     CounterVec
	CacheMissesTotal   CounterVec
}

// NewEngineMetrics registers the engine metric set on the collector.
func NewEngineMetrics(collector MetricsCollector) *EngineMetrics {
	return &EngineMetrics{
		OracleCallsTotal: collector.RegisterCounter("oracle_calls_total",
			"Oracle invocations by task, level and outcome", "task", "level", "outcome"),
		OracleCallDuration: collector.RegisterHistogram("oracle_call_duration_seconds",
			"Wall-clock oracle call duration", oracleDurationBuckets, "task", "level"),
		ScanPointsTotal: collector.RegisterCounter("scan_points_total",
			"Constrained-optimisation scan points by level and outcome", "level", "outcome"),
		CacheHitsTotal: collector.RegisterCounter("calc_cache_hits_total",
			"Oracle results served from cache", "task"),
		CacheMissesTotal: collector.RegisterCounter("calc_cache_misses_total",
			"Oracle requests not found in cache", "task"),
	}
}

// instrumentedOracle decorates an Oracle with call metrics, keeping the
// search core oblivious to instrumentation.
type instrumentedOracle struct {
	inner   calc.Oracle
	metrics *EngineMetrics
}

// NewInstrumentedOracle wraps oracle so every invocation is counted and
// timed.  A nil metrics set returns the oracle unwrapped.
func NewInstrumentedOracle(oracle calc.Oracle, metrics *EngineMetrics) calc.Oracle {
	if metrics == nil {
		return oracle
	}
	return &instrumentedOracle{inner: oracle, metrics: metrics}
}

func (o *instrumentedOracle) Run(ctx context.Context, req *calc.Request) (*calc.Result, error) {
	start := time.Now()
	res, err := o.inner.Run(ctx, req)

	task, level := string(req.Task), string(req.Level)
	o.metrics.OracleCallDuration.WithLabelValues(task, level).Observe(time.Since(start).Seconds())
	o.metrics.OracleCallsTotal.WithLabelValues(task, level, outcome(res, err)).Inc()

	// Scan points are the constrained optimisations; they dominate call
	// volume and deserve their own series.
	if len(req.DistanceConstraints) > 0 {
		o.metrics.ScanPointsTotal.WithLabelValues(level, outcome(res, err)).Inc()
	}
	return res, err
}

func outcome(res *calc.Result, err error) string {
	switch {
	case err != nil:
		if errors.GetCode(err) == errors.ErrCodeCalcTimeout {
			return "timeout"
		}
		return "error"
	case res == nil || !res.TerminatedNormally:
		return "failed"
	default:
		return "ok"
	}
}
