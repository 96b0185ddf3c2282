// Package query filters and orders registry snapshots for display.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/banshee-data/beaconradar/internal/beacon"
)

// InactiveRSSI is the signal value an inactive device is treated as having
// when filtering and sorting. The stored RSSI is left unchanged.
const InactiveRSSI = -100

// Column identifies a sortable display column.
type Column string

const (
	ColumnMAC    Column = "mac"
	ColumnStatus Column = "status"
	ColumnRSSI   Column = "rssi"
	ColumnName   Column = "name"
)

// Columns lists every sortable column in display order.
var Columns = []Column{ColumnMAC, ColumnStatus, ColumnRSSI, ColumnName}

// ParseColumn validates a column name.
func ParseColumn(s string) (Column, error) {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Columns {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown sort column %q", s)
}

// DefaultDescending reports the direction a column sorts in when first
// selected: text columns ascend, status and signal descend.
func (c Column) DefaultDescending() bool {
	return c == ColumnStatus || c == ColumnRSSI
}

// SortState is the current sort column and direction.
type SortState struct {
	Column     Column `json:"column"`
	Descending bool   `json:"descending"`
}

// DefaultSort orders by signal, strongest first.
func DefaultSort() SortState {
	return SortState{Column: ColumnRSSI, Descending: true}
}

// Select returns the state after the user picks column c. Picking the
// current column flips the direction; a new column starts at its default.
func (s SortState) Select(c Column) SortState {
	if c == s.Column {
		return SortState{Column: c, Descending: !s.Descending}
	}
	return SortState{Column: c, Descending: c.DefaultDescending()}
}

// Indicator is the arrow shown next to the sorted column header.
func (s SortState) Indicator() string {
	if s.Descending {
		return "▼"
	}
	return "▲"
}

// EffectiveRSSI is the signal used for filtering and ordering r.
func EffectiveRSSI(r beacon.DisplayRecord) int {
	if !r.IsActive {
		return InactiveRSSI
	}
	return r.RSSI
}

// Apply drops records whose effective RSSI is below minRSSI and orders the
// rest by s. The input slice is not modified. Equal keys keep input order.
func Apply(records []beacon.DisplayRecord, minRSSI int, s SortState) []beacon.DisplayRecord {
	out := make([]beacon.DisplayRecord, 0, len(records))
	for _, r := range records {
		if EffectiveRSSI(r) >= minRSSI {
			out = append(out, r)
		}
	}

	less := lessFunc(s.Column)
	if less == nil {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		if s.Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func lessFunc(c Column) func(a, b beacon.DisplayRecord) bool {
	switch c {
	case ColumnMAC:
		return func(a, b beacon.DisplayRecord) bool { return a.ID < b.ID }
	case ColumnName:
		return func(a, b beacon.DisplayRecord) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case ColumnRSSI:
		return func(a, b beacon.DisplayRecord) bool { return EffectiveRSSI(a) < EffectiveRSSI(b) }
	case ColumnStatus:
		return func(a, b beacon.DisplayRecord) bool {
			if a.IsActive != b.IsActive {
				return !a.IsActive
			}
			return EffectiveRSSI(a) < EffectiveRSSI(b)
		}
	}
	return nil
}
