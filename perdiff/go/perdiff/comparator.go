package perdiff

import (
	"math"
	"sync/atomic"

	"go.crawlkit.dev/infra/go/workerpool"
)

// leafSize is the largest pixel range that is never split.
const leafSize = 512

// comparator runs the per-pixel test over a pair of pyramids, splitting the
// pixel range across a worker pool. A comparator is used for a single pair.
type comparator struct {
	a, b            *Pyramid
	model           model
	weights         PerceptualWeights
	adaptationLevel int
	luminanceOnly   bool
	colorFactor     float64
	threshold       int64
	failFast        bool
	pool            *workerpool.Pool

	// diff is nil unless a difference map was requested. Tasks write disjoint
	// ranges of it.
	diff []uint32

	failed atomic.Int64
	stop   atomic.Bool
}

func newComparator(cfg *Config, a, b *Pyramid, failFast bool, pool *workerpool.Pool, wantDiff bool) *comparator {
	c := &comparator{
		a:               a,
		b:               b,
		model:           cfg.model,
		weights:         cfg.Weights(a.Width),
		adaptationLevel: cfg.adaptationLevel,
		luminanceOnly:   cfg.opts.LuminanceOnly,
		colorFactor:     cfg.opts.ColorFactor,
		threshold:       int64(cfg.opts.ThresholdPixels),
		failFast:        failFast,
		pool:            pool,
	}
	if wantDiff {
		c.diff = make([]uint32, len(a.A))
	}
	return c
}

// run compares every pixel. Returns false if the comparison stopped early,
// either through fail-fast or cancel.
func (c *comparator) run() bool {
	return c.compute(0, len(c.a.A))
}

// cancel asks all tasks to stop at the next pixel.
func (c *comparator) cancel() {
	c.stop.Store(true)
}

type forkedRange struct {
	lo, hi int
	task   *workerpool.Task
	ok     bool
}

// compute handles [lo, hi). While the range is large and the pool has room,
// the right half is forked and the left half kept. Forked halves are then
// taken back in reverse order: run inline if no worker picked them up,
// otherwise joined.
func (c *comparator) compute(lo, hi int) bool {
	var forked []*forkedRange
	for !c.stop.Load() && hi-lo > leafSize && c.pool.HasCapacity() {
		mid := int(uint(lo+hi) >> 1)
		fr := &forkedRange{lo: mid, hi: hi}
		task, ok := c.pool.Fork(func() {
			fr.ok = c.compute(fr.lo, fr.hi)
		})
		if !ok {
			break
		}
		fr.task = task
		forked = append(forked, fr)
		hi = mid
	}

	running := c.atLeaf(lo, hi)
	for i := len(forked) - 1; i >= 0; i-- {
		fr := forked[i]
		if running {
			if !fr.task.Reclaim() {
				fr.task.Join()
			}
			running = fr.ok
			continue
		}
		// A task already picked up by a worker still writes to diff, so it
		// must finish before the caller can see the result.
		if !fr.task.Cancel() {
			fr.task.Join()
		}
	}
	return running
}

// atLeaf compares the pixels in [begin, end). Returns true if every pixel in
// the range was compared.
func (c *comparator) atLeaf(begin, end int) bool {
	var contrast, mask [MaxLevels - 2]float64
	la, lb := &c.a.Levels, &c.b.Levels
	cpd := &c.weights.CyclesPerDegree
	freq := &c.weights.FrequencyWeight

	for index := begin; index < end; index++ {
		if c.stop.Load() {
			return false
		}
		sumContrast := 0.0
		for i := 0; i < MaxLevels-2; i++ {
			n1 := math.Abs(float64(la[i][index] - la[i+1][index]))
			n2 := math.Abs(float64(lb[i][index] - lb[i+1][index]))
			numerator := math.Max(n1, n2)
			d1 := math.Abs(float64(la[i+2][index]))
			d2 := math.Abs(float64(lb[i+2][index]))
			denominator := math.Max(math.Max(d1, d2), 1e-5)
			contrast[i] = numerator / denominator
			sumContrast += contrast[i]
		}
		if sumContrast < 1e-5 {
			sumContrast = 1e-5
		}

		adapt := 0.5 * float64(la[c.adaptationLevel][index]+lb[c.adaptationLevel][index])
		if adapt < 1e-5 {
			adapt = 1e-5
		}
		for i := 0; i < MaxLevels-2; i++ {
			mask[i] = c.model.mask(contrast[i] * c.model.csf(cpd[i], adapt))
		}
		factor := 0.0
		for i := 0; i < MaxLevels-2; i++ {
			factor += contrast[i] * freq[i] * mask[i] / sumContrast
		}
		factor = math.Min(math.Max(factor, 1), 10)

		delta := math.Abs(float64(la[0][index] - lb[0][index]))

		pass := true
		if delta > factor*c.model.tvi(adapt) {
			pass = false
		} else if !c.luminanceOnly && adapt >= 10.0 {
			// No color test in scotopic regions.
			da := float64(c.a.A[index] - c.b.A[index])
			db := float64(c.a.B[index] - c.b.B[index])
			if (da*da+db*db)*c.colorFactor > factor {
				pass = false
			}
		}

		if c.diff != nil {
			if pass {
				c.diff[index] = ColorPass
			} else {
				c.diff[index] = ColorFail
			}
		}

		if !pass && c.failed.Add(1) >= c.threshold && c.failFast {
			c.stop.Store(true)
			return false
		}
	}
	return true
}
