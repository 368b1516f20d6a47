package sentiment

import (
	"context"
	"math"
	"time"

	"github.com/raphaelgruber/signalroom/internal/metrics"
)

// EscalationPolicy decides when the hybrid scorer calls the language model.
type EscalationPolicy struct {
	MinConfidence float64 // escalate when the fast confidence is below this
	NeutralBand   float64 // escalate when |score| is below this
}

// DefaultEscalationPolicy escalates below 0.7 confidence or inside |score| < 0.2.
func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{MinConfidence: 0.7, NeutralBand: 0.2}
}

// ShouldEscalate reports whether a fast result is too uncertain to keep.
func (p EscalationPolicy) ShouldEscalate(r Result) bool {
	return r.Confidence < p.MinConfidence || math.Abs(r.Score) < p.NeutralBand
}

// Hybrid scores with the fast provider and escalates uncertain results.
type Hybrid struct {
	fast    Provider
	heavy   Provider
	policy  EscalationPolicy
	metrics *metrics.Collector
}

// NewHybrid wraps a fast and a heavy provider.
func NewHybrid(fast, heavy Provider, policy EscalationPolicy) *Hybrid {
	return &Hybrid{fast: fast, heavy: heavy, policy: policy}
}

// WithMetrics counts escalations into c.
func (h *Hybrid) WithMetrics(c *metrics.Collector) *Hybrid {
	h.metrics = c
	return h
}

// Name identifies the pair of providers.
func (h *Hybrid) Name() string {
	return "hybrid(" + h.fast.Name() + "," + h.heavy.Name() + ")"
}

// Score implements Provider. The returned Model is that of whichever
// provider produced the kept result.
func (h *Hybrid) Score(ctx context.Context, in Input) Result {
	start := time.Now()
	r := h.fast.Score(ctx, in)
	h.metrics.Time(metrics.OpScoreFast, start)
	if !h.policy.ShouldEscalate(r) {
		return r
	}
	h.metrics.Incr(metrics.CountEscalations)
	return h.heavy.Score(ctx, in)
}
