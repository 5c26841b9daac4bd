// Package perdiff decides whether two images are perceptually
// indistinguishable using Yee's model of the human visual system: contrast
// sensitivity, threshold versus intensity and visual masking evaluated over a
// pyramid of blurred luminance images.
package perdiff

import (
	"context"
	"runtime"
	"slices"
	"sync/atomic"

	"go.crawlkit.dev/infra/go/metrics2"
	"go.crawlkit.dev/infra/go/skerr"
	"go.crawlkit.dev/infra/go/sklog"
	"go.crawlkit.dev/infra/go/workerpool"
	"golang.org/x/sync/errgroup"
)

// Stats counts what an Engine has done since it was created.
type Stats struct {
	Comparisons            int64
	IdenticalShortCircuits int64
	AlphaMismatches        int64
	PyramidsBuilt          int64
	FailFastAborts         int64
}

type engineStats struct {
	comparisons            atomic.Int64
	identicalShortCircuits atomic.Int64
	alphaMismatches        atomic.Int64
	pyramidsBuilt          atomic.Int64
	failFastAborts         atomic.Int64
}

type engineMetrics struct {
	comparisons            metrics2.Counter
	identicalShortCircuits metrics2.Counter
	alphaMismatches        metrics2.Counter
	pyramidsBuilt          metrics2.Counter
	failedPixels           metrics2.Counter
	failFastAborts         metrics2.Counter
}

func newEngineMetrics() engineMetrics {
	return engineMetrics{
		comparisons:            metrics2.GetCounter("perdiff_comparisons"),
		identicalShortCircuits: metrics2.GetCounter("perdiff_identical_shortcircuits"),
		alphaMismatches:        metrics2.GetCounter("perdiff_alpha_mismatches"),
		pyramidsBuilt:          metrics2.GetCounter("perdiff_pyramids_built"),
		failedPixels:           metrics2.GetCounter("perdiff_failed_pixels"),
		failFastAborts:         metrics2.GetCounter("perdiff_failfast_aborts"),
	}
}

// Engine compares pairs of images with a fixed Config. It owns a worker pool
// and is safe for concurrent use. Call Close when done.
type Engine struct {
	cfg     *Config
	pool    *workerpool.Pool
	stats   engineStats
	metrics engineMetrics
}

// NewEngine returns an Engine with numWorkers comparison workers. If
// numWorkers is not positive, GOMAXPROCS is used.
func NewEngine(cfg *Config, numWorkers int) *Engine {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		cfg:     cfg,
		pool:    workerpool.New(numWorkers),
		metrics: newEngineMetrics(),
	}
}

// Close stops the worker pool. The Engine may not be used afterward.
func (e *Engine) Close() {
	e.pool.Wait()
}

// Config returns the Engine's configuration.
func (e *Engine) Config() *Config {
	return e.cfg
}

// Stats returns a snapshot of the Engine's counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Comparisons:            e.stats.comparisons.Load(),
		IdenticalShortCircuits: e.stats.identicalShortCircuits.Load(),
		AlphaMismatches:        e.stats.alphaMismatches.Load(),
		PyramidsBuilt:          e.stats.pyramidsBuilt.Load(),
		FailFastAborts:         e.stats.failFastAborts.Load(),
	}
}

// Compare decides whether a and b are perceptually indistinguishable. If
// wantDiff is true the Result carries a per-pixel difference map.
//
// The images must have the same, non-zero dimensions. Cancelling ctx stops
// the comparison and returns ctx's error.
func (e *Engine) Compare(ctx context.Context, a, b *Raster, wantDiff bool) (*Result, error) {
	return e.compare(ctx, a, b, wantDiff, e.cfg.opts.FailFast)
}

// Distance returns the fraction of pixels in [0, 1] which fail the
// perceptual test. Fail-fast is never used, so the count is exact.
func (e *Engine) Distance(ctx context.Context, a, b *Raster) (float64, error) {
	res, err := e.compare(ctx, a, b, false, false)
	if err != nil {
		return 0, skerr.Wrap(err)
	}
	return res.Distance(), nil
}

func (e *Engine) compare(ctx context.Context, a, b *Raster, wantDiff, failFast bool) (*Result, error) {
	defer metrics2.NewTimer("perdiff_compare").Stop()
	if err := a.validate(); err != nil {
		return nil, skerr.Wrapf(err, "first image")
	}
	if err := b.validate(); err != nil {
		return nil, skerr.Wrapf(err, "second image")
	}
	if a.Width != b.Width || a.Height != b.Height {
		return nil, skerr.Wrapf(ErrDimensionMismatch, "%dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
	}
	if err := ctx.Err(); err != nil {
		return nil, skerr.Wrap(err)
	}
	e.stats.comparisons.Add(1)
	e.metrics.comparisons.Inc(1)

	res := &Result{
		Width:    a.Width,
		Height:   a.Height,
		Complete: true,
	}

	if slices.Equal(a.Pix, b.Pix) {
		e.stats.identicalShortCircuits.Add(1)
		e.metrics.identicalShortCircuits.Inc(1)
		res.Passed = true
		res.Reason = ReasonBinaryIdentical
		if wantDiff {
			res.DiffMap = make([]uint32, len(a.Pix))
			for i := range res.DiffMap {
				res.DiffMap[i] = ColorPass
			}
		}
		sklog.Debugf("perdiff: %dx%d images are binary identical", a.Width, a.Height)
		return res, nil
	}

	if !a.IsOpaque() || !b.IsOpaque() {
		if e.checkAlpha(a, b, res, wantDiff) {
			return res, nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	var pa, pb *Pyramid
	g.Go(func() error {
		pa = e.cfg.NewPyramid(a)
		return gctx.Err()
	})
	g.Go(func() error {
		pb = e.cfg.NewPyramid(b)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, skerr.Wrap(err)
	}
	e.stats.pyramidsBuilt.Add(2)
	e.metrics.pyramidsBuilt.Inc(2)

	c := newComparator(e.cfg, pa, pb, failFast, e.pool, wantDiff)
	stopCancel := context.AfterFunc(ctx, c.cancel)
	completed := c.run()
	stopCancel()
	if err := stoppedBy(ctx, completed); err != nil {
		return nil, skerr.Wrap(err)
	}

	res.FailedPixels = int(c.failed.Load())
	res.Complete = completed
	res.Passed = c.failed.Load() < c.threshold
	res.DiffMap = c.diff
	if res.Passed {
		res.Reason = ReasonIndistinguishable
	} else {
		res.Reason = ReasonVisiblyDifferent
	}
	if !completed {
		e.stats.failFastAborts.Add(1)
		e.metrics.failFastAborts.Inc(1)
	}
	e.metrics.failedPixels.Inc(int64(res.FailedPixels))
	sklog.Debugf("perdiff: %dx%d images are %s: %s", a.Width, a.Height, res.Reason, res)
	return res, nil
}

// stoppedBy returns ctx's error if the comparator stopped early while ctx was
// done. A run which compared every pixel is kept even if ctx ended after it.
func stoppedBy(ctx context.Context, completed bool) error {
	if completed {
		return nil
	}
	return ctx.Err()
}

// checkAlpha compares the alpha channel of every pixel. If any differ it fills
// in res as a failure and returns true.
func (e *Engine) checkAlpha(a, b *Raster, res *Result, wantDiff bool) bool {
	mismatched := 0
	var diff []uint32
	if wantDiff {
		diff = make([]uint32, len(a.Pix))
	}
	for i := range a.Pix {
		same := a.Pix[i]&alphaMask == b.Pix[i]&alphaMask
		if !same {
			mismatched++
		}
		if diff != nil {
			if same {
				diff[i] = ColorPass
			} else {
				diff[i] = ColorFail
			}
		}
	}
	if mismatched == 0 {
		return false
	}
	e.stats.alphaMismatches.Add(1)
	e.metrics.alphaMismatches.Inc(1)
	res.Passed = false
	res.Reason = ReasonAlphaMismatch
	res.FailedPixels = mismatched
	res.DiffMap = diff
	sklog.Debugf("perdiff: %dx%d images have %d pixels with different alpha", a.Width, a.Height, mismatched)
	return true
}

// Compare is a convenience wrapper which builds a Config and a short-lived
// Engine for a single comparison.
func Compare(ctx context.Context, a, b *Raster, opts Options, wantDiff bool) (*Result, error) {
	cfg, err := NewConfig(opts)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	e := NewEngine(cfg, 0)
	defer e.Close()
	return e.Compare(ctx, a, b, wantDiff)
}
