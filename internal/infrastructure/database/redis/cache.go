package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/mat"

	"github.com/molkinetics/tsfinder/internal/config"
	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/logging"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/prometheus"
)

// OracleCache decorates an Oracle with a shared result cache.  Only results
// that terminated normally are stored; failures are always retried.  A
// singleflight group collapses concurrent identical requests into one
// oracle run.
type OracleCache struct {
	inner   calc.Oracle
	client  *Client
	cfg     config.RedisConfig
	metrics *prometheus.EngineMetrics
	log     logging.Logger
	group   singleflight.Group
}

// NewOracleCache wraps oracle with the cache.  metrics may be nil.
func NewOracleCache(oracle calc.Oracle, client *Client, cfg config.RedisConfig, metrics *prometheus.EngineMetrics, log logging.Logger) *OracleCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &OracleCache{inner: oracle, client: client, cfg: cfg, metrics: metrics, log: log}
}

// Run serves the request from cache when possible.  Cache infrastructure
// failures degrade to a direct oracle call, never to a search failure.
func (c *OracleCache) Run(ctx context.Context, req *calc.Request) (*calc.Result, error) {
	key := c.cfg.KeyPrefix + "calc:" + RequestKey(req)

	if data, found, err := c.client.Get(ctx, key); err != nil {
		c.log.Warn("calc cache unavailable, calling oracle directly", logging.Err(err))
	} else if found {
		if res, err := decodeResult(data); err == nil {
			c.hit(req)
			return res, nil
		}
		c.log.Warn("corrupt calc cache entry, recomputing", logging.String("key", key))
	}
	c.miss(req)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		res, err := c.inner.Run(ctx, req)
		if err != nil || res == nil || !res.TerminatedNormally {
			return res, err
		}
		if data, encErr := encodeResult(res); encErr == nil {
			if setErr := c.client.Set(ctx, key, data, c.cfg.DefaultTTL); setErr != nil {
				c.log.Warn("failed to store calc result", logging.Err(setErr))
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	res, _ := v.(*calc.Result)
	return res, nil
}

func (c *OracleCache) hit(req *calc.Request) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(string(req.Task)).Inc()
	}
}

func (c *OracleCache) miss(req *calc.Request) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(string(req.Task)).Inc()
	}
}

// RequestKey hashes everything that determines a calculation's outcome.
// The request ID and execution hints (core count, memory) are excluded so
// physically identical requests share an entry.
func RequestKey(req *calc.Request) string {
	var b strings.Builder
	b.WriteString(string(req.Task))
	b.WriteByte('|')
	b.WriteString(string(req.Level))
	b.WriteByte('|')
	fmt.Fprintf(&b, "%d|%d|%s|", req.Charge, req.Mult, req.Solvent)
	b.WriteString(strings.Join(req.Labels, ","))
	b.WriteByte('|')
	for _, c := range req.Coords {
		// Fixed precision; coordinates closer than 1e-8 Å are the same point.
		fmt.Fprintf(&b, "%.8f,%.8f,%.8f;", c[0], c[1], c[2])
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(req.Keywords, ","))
	b.WriteByte('|')
	for _, dc := range req.DistanceConstraints {
		fmt.Fprintf(&b, "%d-%d:%.8f;", dc.I, dc.J, dc.Distance)
	}
	b.WriteByte('|')
	for _, a := range req.FrozenAtoms {
		fmt.Fprintf(&b, "%d,", a)
	}
	b.WriteByte('|')
	for _, a := range req.CoreAtoms {
		fmt.Fprintf(&b, "%d,", a)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// cachedResult is the wire form of a calc.Result; the Hessian is flattened
// because mat.Dense does not round-trip through JSON.
type cachedResult struct {
	TerminatedNormally bool         `json:"terminated_normally"`
	Energy             *float64     `json:"energy,omitempty"`
	Coords             [][3]float64 `json:"coords,omitempty"`
	Gradient           [][3]float64 `json:"gradient,omitempty"`
	HessianRows        int          `json:"hessian_rows,omitempty"`
	HessianData        []float64    `json:"hessian_data,omitempty"`
}

func encodeResult(res *calc.Result) ([]byte, error) {
	c := cachedResult{
		TerminatedNormally: res.TerminatedNormally,
		Energy:             res.Energy,
		Coords:             res.Coords,
		Gradient:           res.Gradient,
	}
	if res.Hessian != nil {
		rows, cols := res.Hessian.Dims()
		c.HessianRows = rows
		c.HessianData = make([]float64, 0, rows*cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				c.HessianData = append(c.HessianData, res.Hessian.At(i, j))
			}
		}
	}
	return json.Marshal(c)
}

func decodeResult(data []byte) (*calc.Result, error) {
	var c cachedResult
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	res := &calc.Result{
		TerminatedNormally: c.TerminatedNormally,
		Energy:             c.Energy,
		Coords:             c.Coords,
		Gradient:           c.Gradient,
	}
	if c.HessianRows > 0 && len(c.HessianData) == c.HessianRows*c.HessianRows {
		res.Hessian = mat.NewDense(c.HessianRows, c.HessianRows, c.HessianData)
	}
	return res, nil
}
