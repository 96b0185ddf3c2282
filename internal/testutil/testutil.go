// Package testutil provides shared test helpers.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/beaconradar/internal/monitoring"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// MuteLogs silences monitoring.Logf for the rest of the test.
func MuteLogs(t testing.TB) {
	t.Helper()
	orig := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(orig) })
}

// CaptureLogs collects every monitoring.Logf line for the rest of the test.
// The returned func reports the lines logged so far.
func CaptureLogs(t testing.TB) func() []string {
	t.Helper()
	orig := monitoring.Logf
	logs := make(chan string, 1024)
	monitoring.SetLogger(func(format string, v ...interface{}) {
		select {
		case logs <- fmt.Sprintf(format, v...):
		default:
		}
	})
	t.Cleanup(func() { monitoring.SetLogger(orig) })

	var lines []string
	return func() []string {
		for {
			select {
			case l := <-logs:
				lines = append(lines, l)
			default:
				return lines
			}
		}
	}
}

// LocalRequest builds a request that appears to come from the loopback
// interface, which the tsweb debug routes require.
func LocalRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// DecodeJSON decodes the recorded response body into v.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
