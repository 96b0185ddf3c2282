package serialmux

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// localHostRequest creates an httptest request that appears to come from localhost.
// This bypasses tsweb.AllowDebugAccess which checks for loopback IPs.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestAttachAdminRoutes_SendCommandAPI(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		formData       url.Values
		expectedStatus int
		wantBody       string
	}{
		{"valid POST", http.MethodPost, url.Values{"command": {CommandScanOn}}, http.StatusOK, CommandScanOn},
		{"empty command", http.MethodPost, url.Values{"command": {""}}, http.StatusBadRequest, "Missing command"},
		{"whitespace command", http.MethodPost, url.Values{"command": {"   "}}, http.StatusBadRequest, "Missing command"},
		{"not an AT command", http.MethodPost, url.Values{"command": {"reboot"}}, http.StatusBadRequest, "Not a dongle command"},
		{"lower case AT", http.MethodPost, url.Values{"command": {"at+scan=1"}}, http.StatusOK, "at+scan=1"},
		{"GET not allowed", http.MethodGet, nil, http.StatusMethodNotAllowed, "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := NewFakeDongle()
			mux := NewSerialMux(port)
			httpMux := http.NewServeMux()
			mux.AttachAdminRoutes(httpMux)

			var body io.Reader
			if tt.formData != nil {
				body = strings.NewReader(tt.formData.Encode())
			}
			req := localHostRequest(tt.method, "/debug/send-command-api", body)
			if tt.formData != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			rec := httptest.NewRecorder()
			httpMux.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (body %q)", rec.Code, tt.expectedStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.wantBody)
			}
			cmds := port.Commands()
			if tt.expectedStatus == http.StatusOK && len(cmds) != 1 {
				t.Errorf("commands written = %v", cmds)
			}
			if tt.expectedStatus != http.StatusOK && len(cmds) != 0 {
				t.Errorf("rejected command reached the port: %v", cmds)
			}
		})
	}
}

func TestAttachAdminRoutes_SendCommandPage(t *testing.T) {
	mux := NewSerialMux(NewFakeDongle())
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/send-command", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "BLE dongle console") {
		t.Errorf("unexpected page: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/tail.js", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "EventSource") {
		t.Errorf("tail.js: status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestAttachAdminRoutes_Tail(t *testing.T) {
	port := NewFakeDongle()
	port.Block = true
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	srv := httptest.NewServer(httpMux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/debug/tail?type=advertisement", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET tail: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	if line, _ := reader.ReadString('\n'); !strings.HasPrefix(line, ": ping") {
		t.Fatalf("expected ping, got %q", line)
	}

	// The subscriber is registered before the ping is flushed.
	port.Feed([]byte("OK\nAA:BB,-61,tag\n"))

	got := make(chan [2]string, 1)
	go func() {
		var event string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
			case strings.HasPrefix(line, "data: "):
				got <- [2]string{event, strings.TrimSpace(strings.TrimPrefix(line, "data: "))}
				return
			}
		}
	}()

	select {
	case ev := <-got:
		// The OK ack is filtered out by ?type=advertisement.
		if ev != [2]string{LineTypeAdvertisement, "AA:BB,-61,tag"} {
			t.Errorf("tail event = %q", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tail data")
	}
	cancel()
	port.Close()
}
