package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/hydrozone/sprinkler-weather/internal/observability"
	"github.com/hydrozone/sprinkler-weather/internal/weather"
)

// SnapshotFile is the on-disk name of the persisted observation array.
const SnapshotFile = "observations.json"

// maxAge is the observation retention window.
const maxAge = 8 * 24 * time.Hour

// ObservationStore is the process-wide, append-only sequence of
// weather-station samples. Writers append under the lock; readers get
// a capacity-capped slice of the backing array, so a snapshot stays
// stable while new samples keep arriving.
type ObservationStore struct {
	mu  sync.RWMutex
	obs []weather.Observation

	// Rain-counter state. Written only under mu (by Ingest, and by
	// Restore when rebuilding it); atomics make the values readable
	// off-lock.
	lastDailyRain *atomic.Float64
	lastRainEpoch *atomic.Int64

	path    string
	metrics *observability.Metrics
}

// New creates an ObservationStore persisting under dir.
func New(dir string, metrics *observability.Metrics) *ObservationStore {
	return &ObservationStore{
		lastDailyRain: atomic.NewFloat64(0),
		lastRainEpoch: atomic.NewInt64(0),
		path:          filepath.Join(dir, SnapshotFile),
		metrics:       metrics,
	}
}

// Ingest appends a sample and advances the rain-counter state. It
// never fails; absent fields are simply carried as nil.
//
// The station reports DailyRainIn as a running total that resets at
// local midnight or on a power cycle. The delta recorded on the sample
// treats any decrease as a reset, so rain is captured across the reset
// without double-counting.
func (s *ObservationStore) Ingest(o weather.Observation) {
	s.mu.Lock()

	if o.DailyRainIn != nil {
		last := s.lastDailyRain.Load()
		var interval float64
		if *o.DailyRainIn < last {
			interval = *o.DailyRainIn
		} else {
			interval = *o.DailyRainIn - last
		}
		o.IntervalRainIn = weather.Float64(interval)
		s.lastDailyRain.Store(*o.DailyRainIn)
	}
	if o.RainRateInHr != nil && *o.RainRateInHr > 0 {
		s.lastRainEpoch.Store(o.Timestamp)
	}

	s.obs = append(s.obs, o)
	size := len(s.obs)
	s.mu.Unlock()

	s.metrics.ObservationsIngested.Inc()
	s.metrics.StoreSize.Set(float64(size))
}

// SnapshotView returns a read-consistent view of the store in insertion
// order (oldest first). The slice capacity is capped at its length so a
// concurrent append can never write into the caller's view.
func (s *ObservationStore) SnapshotView() []weather.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.obs[:len(s.obs):len(s.obs)]
}

// Trim drops observations older than the 8-day retention window.
func (s *ObservationStore) Trim(now time.Time) {
	cutoff := now.Add(-maxAge).Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	i := 0
	for ; i < len(s.obs); i++ {
		if s.obs[i].Timestamp >= cutoff {
			break
		}
	}
	if i > 0 {
		// Reallocate so the store stops referencing the trimmed prefix;
		// the old array is collected once no snapshot view holds it.
		remaining := make([]weather.Observation, len(s.obs)-i)
		copy(remaining, s.obs[i:])
		s.obs = remaining
	}
	s.metrics.StoreSize.Set(float64(len(s.obs)))
}

// Len reports the number of stored samples.
func (s *ObservationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.obs)
}

// LastRainEpoch reports the timestamp of the last sample whose rain
// rate was above zero, or 0 when none has been seen.
func (s *ObservationStore) LastRainEpoch() int64 {
	return s.lastRainEpoch.Load()
}

// Persist writes the store to disk as a single JSON array. The write
// goes to a temp file first and is renamed into place so a crash
// mid-write cannot corrupt the previous snapshot.
func (s *ObservationStore) Persist() error {
	snapshot := s.SnapshotView()

	data, err := json.Marshal(snapshot)
	if err != nil {
		s.metrics.PersistRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal observations: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.metrics.PersistRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("write observation snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.metrics.PersistRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("rename observation snapshot: %w", err)
	}

	s.metrics.PersistRuns.WithLabelValues("success").Inc()
	return nil
}

// Restore loads the persisted snapshot, if any. A missing file is a
// clean first run. A corrupt file resets the store to empty and returns
// the parse error for logging; the store stays usable either way.
func (s *ObservationStore) Restore() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read observation snapshot: %w", err)
	}

	var obs []weather.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		s.mu.Lock()
		s.obs = nil
		s.mu.Unlock()
		return fmt.Errorf("corrupt observation snapshot, starting empty: %w", err)
	}

	s.mu.Lock()
	s.obs = obs
	// Rebuild the counter state from the newest persisted sample so the
	// first post-restart delta is computed against the right baseline.
	for i := len(obs) - 1; i >= 0; i-- {
		if obs[i].DailyRainIn != nil {
			s.lastDailyRain.Store(*obs[i].DailyRainIn)
			break
		}
	}
	for i := len(obs) - 1; i >= 0; i-- {
		if obs[i].RainRateInHr != nil && *obs[i].RainRateInHr > 0 {
			s.lastRainEpoch.Store(obs[i].Timestamp)
			break
		}
	}
	size := len(s.obs)
	s.mu.Unlock()

	s.metrics.StoreSize.Set(float64(size))
	return nil
}
