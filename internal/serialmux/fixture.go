package serialmux

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// FixturePort is a SerialPorter that replays recorded dongle lines in a
// loop, one line per interval. Commands written to it are recorded and
// AT+SCAN=0 / AT+SCAN=1 pause and resume output like the real firmware.
type FixturePort struct {
	lines    []string
	interval time.Duration

	r *io.PipeReader
	w *io.PipeWriter

	mu       sync.Mutex
	scanning bool
	commands []string
	done     chan struct{}
	once     sync.Once
}

// NewFixturePort starts replaying lines. Output begins paused until
// AT+SCAN=1 is written, unless startScanning is set.
func NewFixturePort(lines []string, interval time.Duration, startScanning bool) *FixturePort {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	r, w := io.Pipe()
	p := &FixturePort{
		lines:    lines,
		interval: interval,
		r:        r,
		w:        w,
		scanning: startScanning,
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *FixturePort) run() {
	defer p.w.Close()
	if len(p.lines) == 0 {
		<-p.done
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			scanning := p.scanning
			p.mu.Unlock()
			if !scanning {
				continue
			}
			if _, err := io.WriteString(p.w, p.lines[i%len(p.lines)]+"\n"); err != nil {
				return
			}
			i++
		}
	}
}

func (p *FixturePort) Read(b []byte) (int, error) { return p.r.Read(b) }

// Write records a command and applies scan on/off commands.
func (p *FixturePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cmd := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		p.commands = append(p.commands, cmd)
		switch cmd {
		case CommandScanOn:
			p.scanning = true
		case CommandScanOff:
			p.scanning = false
		}
	}
	return len(b), nil
}

// Close stops the replay and unblocks readers.
func (p *FixturePort) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.r.CloseWithError(io.EOF)
	})
	return nil
}

// Commands returns the commands received so far.
func (p *FixturePort) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

// LoadFixtures reads a fixture file: one dongle line per row, blank lines
// and lines starting with "//" ignored.
func LoadFixtures(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return ReadFixtures(f)
}

// ReadFixtures parses fixture lines from r.
func ReadFixtures(r io.Reader) ([]string, error) {
	var lines []string
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return lines, nil
}

// NewFixtureSerialMux wraps a FixturePort in a SerialMux.
func NewFixtureSerialMux(lines []string, interval time.Duration) *SerialMux[*FixturePort] {
	return NewSerialMux(NewFixturePort(lines, interval, false))
}
