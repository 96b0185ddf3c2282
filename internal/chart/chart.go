// Package chart renders RSSI history: interactive HTML line charts with
// go-echarts, PNG exports with gonum/plot, and summary statistics.
package chart

import (
	"fmt"

	"github.com/banshee-data/beaconradar/internal/history"
)

const (
	DefaultTitle  = "Signal strength (RSSI) over time"
	DefaultYLabel = "RSSI (dBm)"

	// The y-axis is fixed so charts of different devices compare directly.
	YMin = -100
	YMax = -20
)

// Series is one device's samples, oldest first.
type Series struct {
	ID      string
	Name    string
	Samples []int
}

// Options controls chart labels. Empty fields take the defaults.
type Options struct {
	Title  string
	XLabel string
	YLabel string
	// Legends overrides the legend label per device id.
	Legends map[string]string
	Window  history.Window
}

// DefaultXLabel describes the time window on the x-axis.
func DefaultXLabel(w history.Window) string {
	if w <= 0 {
		return "Readings (full active history)"
	}
	return fmt.Sprintf("Readings (last %s)", w)
}

// DefaultLegend is "<name> (<last five characters of id>)".
func DefaultLegend(name, id string) string {
	suffix := id
	if len(suffix) > 5 {
		suffix = suffix[len(suffix)-5:]
	}
	return fmt.Sprintf("%s (%s)", name, suffix)
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.XLabel == "" {
		o.XLabel = DefaultXLabel(o.Window)
	}
	if o.YLabel == "" {
		o.YLabel = DefaultYLabel
	}
	return o
}

func (o Options) legend(s Series) string {
	if l, ok := o.Legends[s.ID]; ok && l != "" {
		return l
	}
	return DefaultLegend(s.Name, s.ID)
}
