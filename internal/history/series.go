// Package history keeps the bounded per-device RSSI series and the
// append-only log of readings that sessions are exported from.
package history

// Capacity is the number of samples kept per device. At one sample per
// second this is one hour.
const Capacity = 3600

// Series is a fixed-capacity ring of RSSI samples. Once full, each append
// evicts the oldest sample.
type Series struct {
	buf   []int
	start int
	n     int
}

// NewSeries returns an empty series holding at most capacity samples.
// A non-positive capacity uses Capacity.
func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Series{buf: make([]int, capacity)}
}

// Append adds v as the newest sample.
func (s *Series) Append(v int) {
	c := len(s.buf)
	if s.n < c {
		s.buf[(s.start+s.n)%c] = v
		s.n++
		return
	}
	s.buf[s.start] = v
	s.start = (s.start + 1) % c
}

// Len returns the number of samples held.
func (s *Series) Len() int { return s.n }

// Cap returns the maximum number of samples held.
func (s *Series) Cap() int { return len(s.buf) }

// Values returns every sample, oldest first.
func (s *Series) Values() []int { return s.Last(s.n) }

// Last returns up to n of the newest samples, oldest first. n <= 0 returns
// all samples.
func (s *Series) Last(n int) []int {
	if n <= 0 || n > s.n {
		n = s.n
	}
	out := make([]int, n)
	c := len(s.buf)
	first := s.start + s.n - n
	for i := 0; i < n; i++ {
		out[i] = s.buf[(first+i)%c]
	}
	return out
}
