// Package statestore decides whether two crawler states look the same. It
// keeps the screenshot of each state and caches the perceptual distance
// between every pair that has been compared.
package statestore

import (
	"context"
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"go.crawlkit.dev/infra/go/metrics2"
	"go.crawlkit.dev/infra/go/skerr"
	"go.crawlkit.dev/infra/go/sklog"
	"go.crawlkit.dev/infra/perdiff/go/perdiff"
)

const (
	// DefaultCapacity is the number of screenshots kept by default.
	DefaultCapacity = 1000

	// MaxDistance is the distance between screenshots that cannot be
	// compared, e.g. because they differ in size.
	MaxDistance = 1.0
)

var (
	// ErrUnknownState is returned when a state ID has no screenshot in the
	// store.
	ErrUnknownState = errors.New("unknown state")

	// ErrInvalidStateID is returned for an empty state ID or one containing
	// the diff ID separator.
	ErrInvalidStateID = errors.New("invalid state ID")
)

func validateID(id string) error {
	if id == "" || strings.Contains(id, diffIDSeparator) {
		return skerr.Fmt("%w: %q", ErrInvalidStateID, id)
	}
	return nil
}

// Store holds screenshots by state ID. It is safe for concurrent use.
type Store struct {
	engine    *perdiff.Engine
	threshold float64

	screenshots *lru.Cache
	metrics     MetricsStore

	cacheHits   metrics2.Counter
	cacheMisses metrics2.Counter
	evictions   metrics2.Counter
}

// New returns a Store that keeps at most capacity screenshots and treats two
// states as equivalent when their distance is at most threshold. Distances are
// computed by engine and cached in ms.
func New(engine *perdiff.Engine, threshold float64, capacity int, ms MetricsStore) (*Store, error) {
	if engine == nil || ms == nil {
		return nil, skerr.Fmt("engine and metrics store must be non-nil")
	}
	if threshold < 0 || threshold > MaxDistance {
		return nil, skerr.Fmt("threshold must be in [0, %g], got %g", MaxDistance, threshold)
	}
	s := &Store{
		engine:      engine,
		threshold:   threshold,
		metrics:     ms,
		cacheHits:   metrics2.GetCounter("statestore_distance_cache_hits"),
		cacheMisses: metrics2.GetCounter("statestore_distance_cache_misses"),
		evictions:   metrics2.GetCounter("statestore_evictions"),
	}
	cache, err := lru.NewWithEvict(capacity, func(key, _ interface{}) {
		s.evictions.Inc(1)
		sklog.Debugf("Evicted screenshot of state %s", key)
	})
	if err != nil {
		return nil, skerr.Wrapf(err, "creating screenshot cache of size %d", capacity)
	}
	s.screenshots = cache
	return s, nil
}

// Threshold returns the largest distance at which two states are equivalent.
func (s *Store) Threshold() float64 {
	return s.threshold
}

// Len returns the number of screenshots held.
func (s *Store) Len() int {
	return s.screenshots.Len()
}

// Put stores the screenshot of a state. Any distances cached for id are
// dropped, including those left behind by an evicted screenshot or an earlier
// run sharing a persistent MetricsStore.
func (s *Store) Put(ctx context.Context, id string, img *perdiff.Raster) error {
	if err := validateID(id); err != nil {
		return err
	}
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return skerr.Wrapf(perdiff.ErrEmptyImage, "screenshot of state %s", id)
	}
	if len(img.Pix) != img.Width*img.Height {
		return skerr.Wrapf(perdiff.ErrInvalidRaster, "screenshot of state %s", id)
	}
	if err := s.metrics.Purge(ctx, []string{id}); err != nil {
		return skerr.Wrapf(err, "storing state %s", id)
	}
	s.screenshots.Add(id, img)
	return nil
}

// Get returns the screenshot of a state.
func (s *Store) Get(id string) (*perdiff.Raster, bool) {
	v, ok := s.screenshots.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*perdiff.Raster), true
}

// Distance returns the perceptual distance in [0, 1] between two states.
// States whose screenshots differ in size are at MaxDistance.
func (s *Store) Distance(ctx context.Context, id1, id2 string) (float64, error) {
	for _, id := range []string{id1, id2} {
		if err := validateID(id); err != nil {
			return 0, err
		}
	}
	if id1 == id2 {
		if _, ok := s.Get(id1); !ok {
			return 0, skerr.Wrapf(ErrUnknownState, "state %s", id1)
		}
		return 0, nil
	}
	diffID := DiffID(id1, id2)
	dist, ok, err := s.metrics.Get(ctx, diffID)
	if err != nil {
		sklog.Warningf("Could not read cached distance %s: %s", diffID, err)
	} else if ok {
		s.cacheHits.Inc(1)
		return dist, nil
	}
	s.cacheMisses.Inc(1)

	a, ok := s.Get(id1)
	if !ok {
		return 0, skerr.Wrapf(ErrUnknownState, "state %s", id1)
	}
	b, ok := s.Get(id2)
	if !ok {
		return 0, skerr.Wrapf(ErrUnknownState, "state %s", id2)
	}
	dist, err = s.distance(ctx, a, b)
	if err != nil {
		return 0, skerr.Wrapf(err, "comparing states %s and %s", id1, id2)
	}
	if err := s.metrics.Put(ctx, diffID, dist); err != nil {
		sklog.Warningf("Could not cache distance %s: %s", diffID, err)
	}
	return dist, nil
}

func (s *Store) distance(ctx context.Context, a, b *perdiff.Raster) (float64, error) {
	if a.Width != b.Width || a.Height != b.Height {
		return MaxDistance, nil
	}
	return s.engine.Distance(ctx, a, b)
}

// Equivalent returns true if the distance between two states is at most the
// store's threshold.
func (s *Store) Equivalent(ctx context.Context, id1, id2 string) (bool, error) {
	dist, err := s.Distance(ctx, id1, id2)
	if err != nil {
		return false, err
	}
	return dist <= s.threshold, nil
}

// FindEquivalent returns the ID of the oldest known state whose screenshot is
// within the threshold of img, along with its distance. The bool is false if
// there is none.
func (s *Store) FindEquivalent(ctx context.Context, img *perdiff.Raster) (string, float64, bool, error) {
	defer metrics2.FuncTimer().Stop()
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return "", 0, false, skerr.Wrap(perdiff.ErrEmptyImage)
	}
	for _, k := range s.screenshots.Keys() {
		id := k.(string)
		known, ok := s.screenshots.Peek(id)
		if !ok {
			// Evicted since Keys was called.
			continue
		}
		dist, err := s.distance(ctx, known.(*perdiff.Raster), img)
		if err != nil {
			return "", 0, false, skerr.Wrapf(err, "comparing with state %s", id)
		}
		if dist <= s.threshold {
			return id, dist, true, nil
		}
	}
	return "", 0, false, nil
}

// Purge drops the given states and every cached distance involving them.
func (s *Store) Purge(ctx context.Context, ids ...string) error {
	defer metrics2.FuncTimer().Stop()
	for _, id := range ids {
		s.screenshots.Remove(id)
	}
	return skerr.Wrap(s.metrics.Purge(ctx, ids))
}

// Close releases the metrics store. The engine is owned by the caller.
func (s *Store) Close() error {
	s.screenshots.Purge()
	return s.metrics.Close()
}
