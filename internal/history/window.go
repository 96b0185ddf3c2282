package history

import (
	"fmt"
	"strings"
)

// Window is a history time window expressed in samples (one per second).
// Zero means the full series.
type Window int

// Windows are the selectable history windows, in menu order.
var Windows = []Window{30, 60, 120, 300, 0}

// DefaultWindow is shown when nothing else is selected.
const DefaultWindow Window = 60

// String returns the label used in menus and query strings.
func (w Window) String() string {
	if w <= 0 {
		return "all"
	}
	return fmt.Sprintf("%ds", int(w))
}

// Samples returns the argument for Recorder.Window.
func (w Window) Samples() int { return int(w) }

// ParseWindow parses one of the labels returned by Window.String. An empty
// label gives DefaultWindow.
func ParseWindow(s string) (Window, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultWindow, nil
	}
	for _, w := range Windows {
		if w.String() == s {
			return w, nil
		}
	}
	return 0, fmt.Errorf("unknown history window %q", s)
}
