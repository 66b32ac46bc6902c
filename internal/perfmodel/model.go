// Package perfmodel keeps history-based execution time predictions keyed by
// operation name, argument footprint and worker kind.
package perfmodel

import (
	"io"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/23skdu/longbow-tessera/internal/device"
)

// Key identifies one history bucket.
type Key struct {
	Symbol    string
	Footprint uint32
	Kind      device.Kind
}

// Entry is a running mean/variance of observed durations (Welford).
type Entry struct {
	Count int64
	Mean  float64 // seconds
	M2    float64
}

// Stddev returns the sample standard deviation in seconds.
func (e Entry) Stddev() float64 {
	if e.Count < 2 {
		return 0
	}
	return math.Sqrt(e.M2 / float64(e.Count-1))
}

// Record is the persisted form of an entry.
type Record struct {
	Symbol    string  `cbor:"symbol"`
	Footprint uint32  `cbor:"footprint"`
	Kind      uint32  `cbor:"kind"`
	Count     int64   `cbor:"count"`
	Mean      float64 `cbor:"mean"`
	M2        float64 `cbor:"m2"`
}

// Model is a thread-safe history-based performance model.
type Model struct {
	mu         sync.RWMutex
	entries    map[Key]*Entry
	minSamples int64
}

// New creates an empty model. A bucket is considered calibrated once it holds
// at least minSamples observations.
func New(minSamples int) *Model {
	if minSamples < 1 {
		minSamples = 1
	}
	return &Model{
		entries:    make(map[Key]*Entry),
		minSamples: int64(minSamples),
	}
}

// Record adds one observed execution time.
func (m *Model) Record(k Key, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[k]
	if !ok {
		e = &Entry{}
		m.entries[k] = e
		entriesGauge.Inc()
	}
	x := d.Seconds()
	e.Count++
	delta := x - e.Mean
	e.Mean += delta / float64(e.Count)
	e.M2 += delta * (x - e.Mean)
}

// Predict returns the expected duration of a task in bucket k. ok is false
// while the bucket is not calibrated.
func (m *Model) Predict(k Key) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, found := m.entries[k]
	if !found || e.Count < m.minSamples {
		return 0, false
	}
	return time.Duration(e.Mean * float64(time.Second)), true
}

// Samples returns the number of observations in bucket k.
func (m *Model) Samples(k Key) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[k]; ok {
		return e.Count
	}
	return 0
}

// Get returns a copy of the entry for k.
func (m *Model) Get(k Key) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[k]; ok {
		return *e, true
	}
	return Entry{}, false
}

// Size returns the number of buckets.
func (m *Model) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Snapshot returns every bucket sorted by symbol, footprint and kind.
func (m *Model) Snapshot() []Record {
	m.mu.RLock()
	out := make([]Record, 0, len(m.entries))
	for k, e := range m.entries {
		out = append(out, Record{
			Symbol:    k.Symbol,
			Footprint: k.Footprint,
			Kind:      uint32(k.Kind),
			Count:     e.Count,
			Mean:      e.Mean,
			M2:        e.M2,
		})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		if out[i].Footprint != out[j].Footprint {
			return out[i].Footprint < out[j].Footprint
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Save writes the model as CBOR.
func (m *Model) Save(w io.Writer) error {
	if err := cbor.NewEncoder(w).Encode(m.Snapshot()); err != nil {
		return errors.Wrap(err, "encode performance model")
	}
	return nil
}

// Load merges a CBOR-encoded model into m. Loaded buckets replace existing
// ones with the same key.
func (m *Model) Load(r io.Reader) error {
	var records []Record
	if err := cbor.NewDecoder(r).Decode(&records); err != nil {
		return errors.Wrap(err, "decode performance model")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		k := Key{Symbol: rec.Symbol, Footprint: rec.Footprint, Kind: device.Kind(rec.Kind)}
		if _, ok := m.entries[k]; !ok {
			entriesGauge.Inc()
		}
		m.entries[k] = &Entry{Count: rec.Count, Mean: rec.Mean, M2: rec.M2}
	}
	return nil
}

// SaveFile writes the model to path.
func (m *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := m.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadFile merges the model stored at path. A missing file is not an error.
func (m *Model) LoadFile(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return m.Load(f)
}
