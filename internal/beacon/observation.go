// Package beacon holds the in-session device registry: the latest
// observation per beacon, how detections get into it, and the activity
// classification applied when it is read.
package beacon

import "time"

// UnknownName is used for devices that advertise no local name.
const UnknownName = "Unknown"

// Detection is one advertisement as delivered by a scanner source.
type Detection struct {
	Address    string
	Name       string
	RSSI       int
	VendorData map[uint16][]byte
}

// Observation is the latest known state of one device.
type Observation struct {
	ID         string
	Name       string
	RSSI       int
	LastSeen   time.Time
	VendorData map[uint16][]byte
	// Imported marks observations rebuilt from an export file. They are
	// reported active regardless of LastSeen.
	Imported bool
}

// DisplayRecord is the per-device row handed to the query engine and the API.
type DisplayRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	RSSI       int       `json:"rssi"`
	LastSeen   time.Time `json:"last_seen"`
	IsActive   bool      `json:"is_active"`
	IsImported bool      `json:"is_imported"`
}

func cloneVendorData(in map[uint16][]byte) map[uint16][]byte {
	if in == nil {
		return nil
	}
	out := make(map[uint16][]byte, len(in))
	for k, v := range in {
		out[k] = append([]byte(nil), v...)
	}
	return out
}
