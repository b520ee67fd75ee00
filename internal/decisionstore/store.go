package decisionstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"sentibot/internal/logger"
	"sentibot/internal/types"
)

// Store is the append-only decision history. One CSV file per
// deployment, optionally mirrored into a per-day archive. Records are
// never mutated or deleted.
type Store struct {
	mu         sync.Mutex
	path       string
	archiveDir string
}

func New(path, archiveDir string) *Store {
	return &Store{path: path, archiveDir: archiveDir}
}

// Snapshot is an immutable view of the store taken at run start. All
// decisions in a run are computed against the same snapshot, so the
// order symbols are processed in cannot change what "previous decision"
// means.
type Snapshot struct {
	records []types.DecisionRecord
	latest  map[string]types.DecisionRecord
	skipped int
}

// Records returns all readable records, in file order.
func (s *Snapshot) Records() []types.DecisionRecord {
	return s.records
}

// SkippedRows reports how many historical rows could not be parsed.
func (s *Snapshot) SkippedRows() int {
	return s.skipped
}

// LatestDecisionFor resolves the most recent prior decision for a
// symbol by record timestamp, not physical file order. Symbols with no
// history get NoPrior.
func (s *Snapshot) LatestDecisionFor(symbol string) types.Decision {
	if rec, ok := s.latest[symbol]; ok {
		return rec.Decision
	}
	return types.NoPrior
}

// Snapshot reads the full store. A missing file is a first run: the
// snapshot is empty, not an error. Corrupt rows are skipped with a
// warning and counted, never fatal.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{latest: map[string]types.DecisionRecord{}}

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open decision store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read decision store header: %w", err)
	}
	cols := columnIndex(header)

	line := 1
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			snap.skipped++
			logger.Warn(ctx, "Skipping unreadable decision row", "path", s.path, "line", line, "error", err)
			continue
		}

		rec, perr := parseRow(cols, row)
		if perr != nil {
			snap.skipped++
			logger.Warn(ctx, "Skipping corrupt decision row", "path", s.path, "line", line, "error", perr)
			continue
		}

		snap.records = append(snap.records, rec)
		prev, ok := snap.latest[rec.Symbol]
		if !ok || !rec.Time().Before(prev.Time()) {
			snap.latest[rec.Symbol] = rec
		}
	}

	return snap, nil
}

// Append durably adds records to the store (and the daily archive
// mirror, when configured). Writes are serialized; the caller batches
// all of a run's records into a single call at run end.
func (s *Store) Append(ctx context.Context, records []types.DecisionRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := appendCSV(s.path, records); err != nil {
		return fmt.Errorf("append decision store: %w", err)
	}

	if s.archiveDir != "" {
		day := time.Now().UTC().Format("2006-01-02")
		archive := filepath.Join(s.archiveDir, day+".csv")
		if err := appendCSV(archive, records); err != nil {
			// The primary write succeeded; the mirror is best-effort.
			logger.Warn(ctx, "Failed to mirror records to daily archive", "path", archive, "error", err)
		}
	}

	return nil
}

func appendCSV(path string, records []types.DecisionRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	var out string
	if info.Size() == 0 {
		out, err = gocsv.MarshalString(&records)
	} else {
		out, err = gocsv.MarshalStringWithoutHeaders(&records)
	}
	if err != nil {
		return err
	}

	if _, err := f.WriteString(out); err != nil {
		return err
	}
	return f.Sync()
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	return cols
}

func parseRow(cols map[string]int, row []string) (types.DecisionRecord, error) {
	field := func(name string) (string, error) {
		i, ok := cols[name]
		if !ok {
			return "", fmt.Errorf("missing column %q", name)
		}
		if i >= len(row) {
			return "", fmt.Errorf("row too short for column %q", name)
		}
		return strings.TrimSpace(row[i]), nil
	}

	var rec types.DecisionRecord
	var err error
	if rec.RunID, err = field("run_id"); err != nil {
		return rec, err
	}
	if rec.Symbol, err = field("symbol"); err != nil {
		return rec, err
	}
	if rec.Symbol == "" {
		return rec, errors.New("empty symbol")
	}
	if rec.Timestamp, err = field("timestamp"); err != nil {
		return rec, err
	}
	if _, err := time.Parse(time.RFC3339, rec.Timestamp); err != nil {
		return rec, fmt.Errorf("bad timestamp %q: %w", rec.Timestamp, err)
	}

	scoreStr, err := field("score")
	if err != nil {
		return rec, err
	}
	if rec.Score, err = strconv.ParseFloat(scoreStr, 64); err != nil {
		return rec, fmt.Errorf("bad score %q: %w", scoreStr, err)
	}

	dec, err := field("decision")
	if err != nil {
		return rec, err
	}
	switch types.Decision(dec) {
	case types.Buy, types.Sell, types.Hold:
		rec.Decision = types.Decision(dec)
	default:
		return rec, fmt.Errorf("bad decision %q", dec)
	}

	prev, err := field("previous_decision")
	if err != nil {
		return rec, err
	}
	switch types.Decision(prev) {
	case types.Buy, types.Sell, types.Hold, types.NoPrior:
		rec.PreviousDecision = types.Decision(prev)
	default:
		return rec, fmt.Errorf("bad previous_decision %q", prev)
	}

	execStr, err := field("trade_executed")
	if err != nil {
		return rec, err
	}
	if rec.TradeExecuted, err = strconv.ParseBool(execStr); err != nil {
		return rec, fmt.Errorf("bad trade_executed %q: %w", execStr, err)
	}

	return rec, nil
}
