// Package perceptual adapts the perceptual difference engine to the
// imgmatching.Matcher interface.
package perceptual

import (
	"context"
	"errors"
	"sync"

	"go.crawlkit.dev/infra/go/skerr"
	"go.crawlkit.dev/infra/perdiff/go/perdiff"
)

// Matcher considers two screenshots equal if the perceptual difference
// engine cannot tell them apart. Images of different size never match.
type Matcher struct {
	engine *perdiff.Engine

	mtx  sync.Mutex
	last *perdiff.Result
}

// New returns a Matcher using cfg. Close it when done.
func New(cfg *perdiff.Config) *Matcher {
	return &Matcher{
		engine: perdiff.NewEngine(cfg, 0),
	}
}

// Match implements the imgmatching.Matcher interface.
func (m *Matcher) Match(ctx context.Context, expected, actual *perdiff.Raster) (bool, error) {
	// Expected image will be nil if no earlier state is known.
	if expected == nil || actual == nil {
		return false, nil
	}
	res, err := m.engine.Compare(ctx, expected, actual, false)
	if errors.Is(err, perdiff.ErrDimensionMismatch) {
		return false, nil
	}
	if err != nil {
		return false, skerr.Wrap(err)
	}
	m.mtx.Lock()
	m.last = res
	m.mtx.Unlock()
	return res.Passed, nil
}

// LastResult returns the result of the most recent successful Match, or nil.
func (m *Matcher) LastResult() *perdiff.Result {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.last
}

// Options returns the options the Matcher compares with.
func (m *Matcher) Options() perdiff.Options {
	return m.engine.Config().Options()
}

// Close releases the Matcher's workers.
func (m *Matcher) Close() error {
	m.engine.Close()
	return nil
}
