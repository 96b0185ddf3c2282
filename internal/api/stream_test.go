package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/beaconradar/internal/beacon"
	"github.com/banshee-data/beaconradar/internal/session"
)

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessages(conn *websocket.Conn) <-chan []byte {
	msgs := make(chan []byte, 16)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- msg
		}
	}()
	return msgs
}

func TestHub_Publish(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.srv.Hub().Run(ctx)

	ts := httptest.NewServer(LoggingMiddleware(e.mux))
	defer ts.Close()

	conn := dialWS(t, ts)
	require.Eventually(t, func() bool { return e.srv.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	msgs := readMessages(conn)
	e.srv.Hub().Publish(map[string]string{"hello": "radar"})

	select {
	case msg := <-msgs:
		assert.JSONEq(t, `{"hello":"radar"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no websocket message received")
	}

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok, "connection should close when the hub stops")
	case <-time.After(2 * time.Second):
		t.Fatal("connection not closed after hub shutdown")
	}
	assert.Zero(t, e.srv.Hub().Clients())
}

func TestServer_RunFeedsUpdates(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.srv.Run(ctx)

	ts := httptest.NewServer(e.mux)
	defer ts.Close()

	conn := dialWS(t, ts)
	require.Eventually(t, func() bool { return e.srv.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	msgs := readMessages(conn)

	require.NoError(t, e.sess.Start(ctx))
	e.sess.Submit(beacon.Detection{Address: "AA:01", Name: "kitchen", RSSI: -60})

	// Feed subscribes asynchronously, so keep polling until an update
	// comes through.
	var got session.Update
	require.Eventually(t, func() bool {
		e.sess.Poll()
		select {
		case msg := <-msgs:
			return json.Unmarshal(msg, &got) == nil
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, session.StateScanning, got.State)
	require.Len(t, got.Beacons, 1)
	assert.Equal(t, "AA:01", got.Beacons[0].ID)
}

func TestHub_ServeWSAfterShutdown(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	h := e.srv.Hub()
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	ts := httptest.NewServer(e.mux)
	defer ts.Close()

	conn := dialWS(t, ts)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, h.Clients())
}

func TestListenAndServe(t *testing.T) {
	e := newTestEnv(t)

	// Reserve a free port, then hand it to ListenAndServe.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- ListenAndServe(ctx, addr, e.mux) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/status")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}

func TestListenAndServe_BadAddr(t *testing.T) {
	e := newTestEnv(t)
	err := ListenAndServe(context.Background(), "127.0.0.1:-1", e.mux)
	assert.Error(t, err)
}
