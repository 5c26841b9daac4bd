package statestore

import (
	"context"
	"encoding/binary"
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"go.crawlkit.dev/infra/go/skerr"
	"go.crawlkit.dev/infra/go/sklog"
)

// diffIDSeparator separates the two state IDs of a diff ID.
const diffIDSeparator = ":"

// MetricsStore persists the distance between pairs of states, keyed by diff ID.
type MetricsStore interface {
	// Get returns the distance stored under diffID. The bool is false if
	// nothing is stored.
	Get(ctx context.Context, diffID string) (float64, bool, error)

	// Put stores the distance under diffID.
	Put(ctx context.Context, diffID string, dist float64) error

	// Purge removes every distance that involves one of the given state IDs.
	Purge(ctx context.Context, stateIDs []string) error

	// Close releases any resources held by the store.
	Close() error
}

// DiffID returns a sorted, colon-separated concatenation of two state IDs.
// DiffID(a, b) == DiffID(b, a). The IDs must not contain the separator, which
// Store enforces.
func DiffID(left, right string) string {
	if right < left {
		left, right = right, left
	}
	return left + diffIDSeparator + right
}

// SplitDiffID is the inverse of DiffID.
func SplitDiffID(diffID string) (string, string) {
	left, right, _ := strings.Cut(diffID, diffIDSeparator)
	return left, right
}

// involves returns true if diffID was built from any of the IDs in ids.
func involves(diffID string, ids map[string]bool) bool {
	left, right := SplitDiffID(diffID)
	return ids[left] || ids[right]
}

func idSet(ids []string) map[string]bool {
	ret := make(map[string]bool, len(ids))
	for _, id := range ids {
		ret[id] = true
	}
	return ret
}

// memMetricsStore keeps the most recently used distances in memory.
type memMetricsStore struct {
	cache *lru.Cache
}

// NewMemMetricsStore returns a MetricsStore that holds at most maxEntries
// distances in memory.
func NewMemMetricsStore(maxEntries int) (MetricsStore, error) {
	cache, err := lru.New(maxEntries)
	if err != nil {
		return nil, skerr.Wrapf(err, "creating metrics cache of size %d", maxEntries)
	}
	return &memMetricsStore{cache: cache}, nil
}

// Get implements the MetricsStore interface.
func (m *memMetricsStore) Get(_ context.Context, diffID string) (float64, bool, error) {
	v, ok := m.cache.Get(diffID)
	if !ok {
		return 0, false, nil
	}
	return v.(float64), true, nil
}

// Put implements the MetricsStore interface.
func (m *memMetricsStore) Put(_ context.Context, diffID string, dist float64) error {
	m.cache.Add(diffID, dist)
	return nil
}

// Purge implements the MetricsStore interface.
func (m *memMetricsStore) Purge(ctx context.Context, stateIDs []string) error {
	ids := idSet(stateIDs)
	for _, k := range m.cache.Keys() {
		if err := ctx.Err(); err != nil {
			return skerr.Wrap(err)
		}
		if key := k.(string); involves(key, ids) {
			m.cache.Remove(key)
		}
	}
	return nil
}

// Close implements the MetricsStore interface.
func (m *memMetricsStore) Close() error {
	m.cache.Purge()
	return nil
}

// levelDBMetricsStore stores distances on disk, so they survive restarts of
// a crawl.
type levelDBMetricsStore struct {
	db *leveldb.DB
}

// NewLevelDBMetricsStore opens (or creates) a leveldb database in dir. A
// corrupted database is recovered if possible.
func NewLevelDBMetricsStore(dir string) (MetricsStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil && lerrors.IsCorrupted(err) {
		sklog.Warningf("Metrics database at %s is corrupted, recovering: %s", dir, err)
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "opening metrics database at %s", dir)
	}
	return &levelDBMetricsStore{db: db}, nil
}

// Get implements the MetricsStore interface.
func (l *levelDBMetricsStore) Get(_ context.Context, diffID string) (float64, bool, error) {
	b, err := l.db.Get([]byte(diffID), nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, skerr.Wrapf(err, "reading distance %s", diffID)
	}
	if len(b) != 8 {
		return 0, false, skerr.Fmt("corrupt distance record for %s: %d bytes", diffID, len(b))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), true, nil
}

// Put implements the MetricsStore interface.
func (l *levelDBMetricsStore) Put(_ context.Context, diffID string, dist float64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(dist))
	if err := l.db.Put([]byte(diffID), b[:], nil); err != nil {
		return skerr.Wrapf(err, "writing distance %s", diffID)
	}
	return nil
}

// Purge implements the MetricsStore interface.
func (l *levelDBMetricsStore) Purge(ctx context.Context, stateIDs []string) error {
	ids := idSet(stateIDs)
	batch := new(leveldb.Batch)
	iter := l.db.NewIterator(nil, nil)
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			iter.Release()
			return skerr.Wrap(err)
		}
		if involves(string(iter.Key()), ids) {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return skerr.Wrapf(err, "scanning metrics database")
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := l.db.Write(batch, nil); err != nil {
		return skerr.Wrapf(err, "purging %d distances", batch.Len())
	}
	return nil
}

// Close implements the MetricsStore interface.
func (l *levelDBMetricsStore) Close() error {
	return skerr.Wrap(l.db.Close())
}
