package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/beaconradar/internal/beacon"
)

func ids(records []beacon.DisplayRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func sample() []beacon.DisplayRecord {
	return []beacon.DisplayRecord{
		{ID: "c", Name: "charlie", RSSI: -50, IsActive: true},
		{ID: "a", Name: "Alpha", RSSI: -99, IsActive: true},
		{ID: "d", Name: "delta", RSSI: -20, IsActive: false},
		{ID: "b", Name: "bravo", RSSI: -70, IsActive: true},
	}
}

func TestParseColumn(t *testing.T) {
	for _, s := range []string{"mac", "STATUS", " rssi ", "name"} {
		_, err := ParseColumn(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseColumn("vendor")
	assert.Error(t, err)
}

func TestSortState_Select(t *testing.T) {
	s := DefaultSort()
	assert.Equal(t, SortState{Column: ColumnRSSI, Descending: true}, s)

	s = s.Select(ColumnRSSI)
	assert.Equal(t, SortState{Column: ColumnRSSI, Descending: false}, s)
	assert.Equal(t, "▲", s.Indicator())

	s = s.Select(ColumnName)
	assert.Equal(t, SortState{Column: ColumnName, Descending: false}, s)

	s = s.Select(ColumnStatus)
	assert.True(t, s.Descending)
	assert.Equal(t, "▼", s.Indicator())

	s = s.Select(ColumnMAC)
	assert.False(t, s.Descending)
}

func TestApply_SignalDescendingPutsInactiveLast(t *testing.T) {
	got := Apply(sample(), -100, DefaultSort())
	assert.Equal(t, []string{"c", "b", "a", "d"}, ids(got))
}

func TestApply_SignalAscending(t *testing.T) {
	got := Apply(sample(), -100, SortState{Column: ColumnRSSI})
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(got))
}

func TestApply_MinRSSIUsesEffectiveValue(t *testing.T) {
	got := Apply(sample(), -99, DefaultSort())
	assert.Equal(t, []string{"c", "b", "a"}, ids(got))

	got = Apply(sample(), -60, DefaultSort())
	assert.Equal(t, []string{"c"}, ids(got))
}

func TestApply_PreservesStoredRSSI(t *testing.T) {
	in := sample()
	got := Apply(in, -100, DefaultSort())
	require.Len(t, got, 4)
	assert.Equal(t, -20, got[3].RSSI)
	if diff := cmp.Diff(sample(), in); diff != "" {
		t.Errorf("input modified (-want +got):\n%s", diff)
	}
}

func TestApply_NameCaseInsensitive(t *testing.T) {
	got := Apply(sample(), -100, SortState{Column: ColumnName})
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(got))

	got = Apply(sample(), -100, SortState{Column: ColumnName, Descending: true})
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids(got))
}

func TestApply_MAC(t *testing.T) {
	got := Apply(sample(), -100, SortState{Column: ColumnMAC})
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(got))
}

func TestApply_StatusThenSignal(t *testing.T) {
	got := Apply(sample(), -100, SortState{Column: ColumnStatus, Descending: true})
	assert.Equal(t, []string{"c", "b", "a", "d"}, ids(got))

	got = Apply(sample(), -100, SortState{Column: ColumnStatus})
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(got))
}

func TestApply_StatusTiesKeepInputOrder(t *testing.T) {
	records := []beacon.DisplayRecord{
		{ID: "x", RSSI: -60, IsActive: true},
		{ID: "y", RSSI: -10, IsActive: false},
		{ID: "w", RSSI: -60, IsActive: true},
		{ID: "z", RSSI: -80, IsActive: false},
	}
	got := Apply(records, -100, SortState{Column: ColumnStatus, Descending: true})
	assert.Equal(t, []string{"x", "w", "y", "z"}, ids(got))
}

func TestApply_Empty(t *testing.T) {
	assert.Empty(t, Apply(nil, -100, DefaultSort()))
}
