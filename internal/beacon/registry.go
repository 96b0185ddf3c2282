package beacon

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/beaconradar/internal/timeutil"
)

// Registry maps device id to its latest Observation. Entries are only
// removed by Reset or Replace.
type Registry struct {
	mu    sync.RWMutex
	clock timeutil.Clock
	obs   map[string]Observation
}

// NewRegistry creates an empty registry. A nil clock uses the wall clock.
func NewRegistry(clock timeutil.Clock) *Registry {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Registry{clock: clock, obs: make(map[string]Observation)}
}

// Upsert records a detection as the latest observation for its address.
// Detections without an address are ignored and reported as false.
func (r *Registry) Upsert(d Detection) bool {
	if d.Address == "" {
		return false
	}
	name := d.Name
	if name == "" {
		name = UnknownName
	}
	o := Observation{
		ID:         d.Address,
		Name:       name,
		RSSI:       d.RSSI,
		LastSeen:   r.clock.Now(),
		VendorData: cloneVendorData(d.VendorData),
	}

	r.mu.Lock()
	r.obs[o.ID] = o
	r.mu.Unlock()
	return true
}

// Get returns the observation for id.
func (r *Registry) Get(id string) (Observation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.obs[id]
	if ok {
		o.VendorData = cloneVendorData(o.VendorData)
	}
	return o, ok
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.obs)
}

// IDs returns every known device id in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.obs))
	for id := range r.obs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Reset forgets every device.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.obs = make(map[string]Observation)
	r.mu.Unlock()
}

// Replace swaps the whole registry content for obs. Used by import.
func (r *Registry) Replace(obs []Observation) {
	m := make(map[string]Observation, len(obs))
	for _, o := range obs {
		o.VendorData = cloneVendorData(o.VendorData)
		m[o.ID] = o
	}
	r.mu.Lock()
	r.obs = m
	r.mu.Unlock()
}

// IsActive reports whether o counts as active at now.
func IsActive(o Observation, now time.Time, threshold time.Duration) bool {
	return o.Imported || now.Sub(o.LastSeen) <= threshold
}

// Snapshot returns one DisplayRecord per device, classified against
// threshold. A non-empty nameFilter keeps only devices whose name contains
// it, case-insensitively. Records are ordered active first, then by RSSI
// descending, then by id.
func (r *Registry) Snapshot(threshold time.Duration, nameFilter string) []DisplayRecord {
	now := r.clock.Now()
	needle := strings.ToLower(nameFilter)

	r.mu.RLock()
	out := make([]DisplayRecord, 0, len(r.obs))
	for _, o := range r.obs {
		if needle != "" && !strings.Contains(strings.ToLower(o.Name), needle) {
			continue
		}
		out = append(out, DisplayRecord{
			ID:         o.ID,
			Name:       o.Name,
			RSSI:       o.RSSI,
			LastSeen:   o.LastSeen,
			IsActive:   IsActive(o, now, threshold),
			IsImported: o.Imported,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsActive != b.IsActive {
			return a.IsActive
		}
		if a.RSSI != b.RSSI {
			return a.RSSI > b.RSSI
		}
		return a.ID < b.ID
	})
	return out
}
