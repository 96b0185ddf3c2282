package history

import (
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/beaconradar/internal/beacon"
)

// TimestampLayout is the format of ExportRecord timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// InactiveSample is appended to the series of a device that was not active
// at poll time.
const InactiveSample = -100

// ExportRecord is one logged reading of an active device.
type ExportRecord struct {
	Timestamp string `json:"timestamp"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	RSSI      int    `json:"rssi"`
}

// Recorder owns the per-device series and the export log.
type Recorder struct {
	mu       sync.RWMutex
	capacity int
	series   map[string]*Series
	log      []ExportRecord
}

// NewRecorder creates an empty recorder with Capacity samples per device.
func NewRecorder() *Recorder {
	return NewRecorderWithCapacity(Capacity)
}

// NewRecorderWithCapacity creates an empty recorder with a custom per-device
// capacity.
func NewRecorderWithCapacity(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Recorder{capacity: capacity, series: make(map[string]*Series)}
}

// Record takes one poll's snapshot. Every device gets a series; active
// devices get their RSSI appended and one export record, inactive ones get
// InactiveSample. Imported devices already have their history and are left
// alone. It returns the number of export records written.
func (r *Recorder) Record(now time.Time, snapshot []beacon.DisplayRecord) int {
	ts := now.Format(TimestampLayout)

	r.mu.Lock()
	defer r.mu.Unlock()

	written := 0
	for _, rec := range snapshot {
		s, ok := r.series[rec.ID]
		if !ok {
			s = NewSeries(r.capacity)
			r.series[rec.ID] = s
		}
		if rec.IsImported {
			continue
		}
		if !rec.IsActive {
			s.Append(InactiveSample)
			continue
		}
		s.Append(rec.RSSI)
		r.log = append(r.log, ExportRecord{Timestamp: ts, ID: rec.ID, Name: rec.Name, RSSI: rec.RSSI})
		written++
	}
	return written
}

// Track gives every device in the snapshot a series without appending to
// any of them.
func (r *Recorder) Track(snapshot []beacon.DisplayRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range snapshot {
		if _, ok := r.series[rec.ID]; !ok {
			r.series[rec.ID] = NewSeries(r.capacity)
		}
	}
}

// Window returns up to n of the newest samples for id. n <= 0 returns all.
func (r *Recorder) Window(id string, n int) ([]int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.series[id]
	if !ok {
		return nil, false
	}
	return s.Last(n), true
}

// IDs returns the ids that have a series, sorted.
func (r *Recorder) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.series))
	for id := range r.series {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Log returns a copy of the export log.
func (r *Recorder) Log() []ExportRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ExportRecord(nil), r.log...)
}

// LogLen returns the number of export records.
func (r *Recorder) LogLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.log)
}

// Reset clears every series and the export log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.series = make(map[string]*Series)
	r.log = nil
	r.mu.Unlock()
}

// Replace swaps in the given series and log. Series longer than the
// capacity keep only their newest samples.
func (r *Recorder) Replace(series map[string][]int, log []ExportRecord) {
	m := make(map[string]*Series, len(series))
	for id, values := range series {
		s := NewSeries(r.capacity)
		for _, v := range values {
			s.Append(v)
		}
		m[id] = s
	}
	r.mu.Lock()
	r.series = m
	r.log = append([]ExportRecord(nil), log...)
	r.mu.Unlock()
}
