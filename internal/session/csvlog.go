package session

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/beaconradar/internal/beacon"
	"github.com/banshee-data/beaconradar/internal/history"
)

// CSVHeader is the first row of every exported session file.
var CSVHeader = []string{"Timestamp", "MAC", "Name", "RSSI"}

// ImportResult reports what an import did.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Devices  int `json:"devices"`
}

// WriteCSV writes the header and records to w.
func WriteCSV(w io.Writer, records []history.ExportRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{r.Timestamp, r.ID, r.Name, strconv.Itoa(r.RSSI)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV streams the current export log to w.
func (s *Session) WriteCSV(w io.Writer) error {
	records := s.rec.Log()
	if len(records) == 0 {
		return ErrNothingToExport
	}
	if err := WriteCSV(w, records); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// Export writes the export log to path. The file is written beside path
// under a temporary name and renamed into place, so a failure leaves any
// existing file at path unchanged. It returns the number of records written.
func (s *Session) Export(path string) (int, error) {
	records := s.rec.Log()
	if len(records) == 0 {
		return 0, ErrNothingToExport
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("%w: create %s: %w", ErrIO, dir, err)
		}
	}

	tmp := path + ".tmp-" + uuid.NewString()
	f, err := s.fs.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", ErrIO, tmp, err)
	}
	werr := WriteCSV(f, records)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		s.removeTemp(tmp)
		return 0, fmt.Errorf("%w: write %s: %w", ErrIO, path, werr)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		s.removeTemp(tmp)
		return 0, fmt.Errorf("%w: rename to %s: %w", ErrIO, path, err)
	}

	logf("exported %d records to %s", len(records), path)
	return len(records), nil
}

func (s *Session) removeTemp(name string) {
	if err := s.fs.Remove(name); err != nil {
		logf("failed to remove temporary export %s: %v", name, err)
	}
}

// Import replaces the session with the contents of the CSV file at path.
func (s *Session) Import(path string) (ImportResult, error) {
	if s.Scanning() {
		return ImportResult{}, ErrScanning
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()
	return s.ImportReader(f)
}

// ImportReader replaces the session with the CSV read from r. Nothing is
// changed unless the whole stream parses. Rows that are short or carry a
// non-integer RSSI are skipped.
func (s *Session) ImportReader(r io.Reader) (ImportResult, error) {
	if s.Scanning() {
		return ImportResult{}, ErrScanning
	}

	parsed, err := parseCSV(r, s.clock.Now())
	if err != nil {
		return ImportResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateScanning {
		return ImportResult{}, ErrScanning
	}
	s.ing.Drain()
	s.reg.Replace(parsed.observations)
	s.rec.Replace(parsed.series, parsed.log)
	s.id = uuid.NewString()
	s.startedAt = s.clock.Now()
	s.state = StateImported

	res := ImportResult{
		Imported: len(parsed.log),
		Skipped:  parsed.skipped,
		Devices:  len(parsed.observations),
	}
	logf("imported %d readings of %d devices (%d rows skipped) as session %s",
		res.Imported, res.Devices, res.Skipped, s.id)
	return res, nil
}

type parsedLog struct {
	observations []beacon.Observation
	series       map[string][]int
	log          []history.ExportRecord
	skipped      int
}

func parseCSV(r io.Reader, now time.Time) (*parsedLog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	// Names typed on the tag may carry bare quotes.
	cr.LazyQuotes = true

	out := &parsedLog{series: make(map[string][]int)}
	latest := make(map[string]int) // id -> index in observations

	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				if line > 1 {
					out.skipped++
					logf("import: skipping malformed row %d: %v", line, err)
				}
				continue
			}
			return nil, fmt.Errorf("%w: read csv: %w", ErrIO, err)
		}
		if line == 1 {
			continue
		}

		rec, ok := parseRow(row)
		if !ok {
			out.skipped++
			logf("import: skipping row %d: %q", line, row)
			continue
		}

		out.log = append(out.log, rec)
		out.series[rec.ID] = append(out.series[rec.ID], rec.RSSI)

		seen, err := time.ParseInLocation(history.TimestampLayout, rec.Timestamp, time.Local)
		if err != nil {
			seen = now
		}
		o := beacon.Observation{ID: rec.ID, Name: rec.Name, RSSI: rec.RSSI, LastSeen: seen, Imported: true}
		if i, ok := latest[rec.ID]; ok {
			out.observations[i] = o
		} else {
			latest[rec.ID] = len(out.observations)
			out.observations = append(out.observations, o)
		}
	}
	return out, nil
}

func parseRow(row []string) (history.ExportRecord, bool) {
	if len(row) < 4 {
		return history.ExportRecord{}, false
	}
	id := strings.TrimSpace(row[1])
	if id == "" {
		return history.ExportRecord{}, false
	}
	rssi, err := strconv.Atoi(strings.TrimSpace(row[3]))
	if err != nil {
		return history.ExportRecord{}, false
	}
	name := row[2]
	if name == "" {
		name = beacon.UnknownName
	}
	return history.ExportRecord{Timestamp: row[0], ID: id, Name: name, RSSI: rssi}, true
}
