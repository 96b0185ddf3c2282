package serialmux

import (
	"bytes"
	"errors"
	"strings"
	"sync"
)

// ErrPortClosed is returned by FakeDongle after Close.
var ErrPortClosed = errors.New("serial port closed")

// FakeDongle is an in-memory SerialPorter standing in for a BLE dongle in
// tests. Bytes queued with Feed come back from Read; everything written is
// kept and can be read back with Commands.
type FakeDongle struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending bytes.Buffer
	written bytes.Buffer
	closed  bool

	// Block makes Read wait for Feed or Close instead of returning io.EOF
	// when nothing is queued.
	Block bool
	// ReadError and WriteError fail the next Read or Write, once.
	ReadError  error
	WriteError error
}

func NewFakeDongle() *FakeDongle {
	d := &FakeDongle{}
	d.cond = sync.NewCond(&d.mu)
	return d
}

func (d *FakeDongle) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ReadError; err != nil {
		d.ReadError = nil
		return 0, err
	}
	for d.Block && !d.closed && d.pending.Len() == 0 {
		d.cond.Wait()
	}
	if d.closed {
		return 0, ErrPortClosed
	}
	return d.pending.Read(p)
}

func (d *FakeDongle) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrPortClosed
	}
	if err := d.WriteError; err != nil {
		d.WriteError = nil
		return 0, err
	}
	return d.written.Write(p)
}

func (d *FakeDongle) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.cond.Broadcast()
	return nil
}

// Feed queues raw output from the dongle.
func (d *FakeDongle) Feed(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.Write(data)
	d.cond.Broadcast()
}

// Closed reports whether Close was called.
func (d *FakeDongle) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Commands returns the newline-terminated commands written so far.
func (d *FakeDongle) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	text := strings.TrimSuffix(d.written.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
