package data

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sw33tLie/powerlole/pkg/network"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

type table struct {
	header []string
	rows   [][]string
}

func readTable(raw []byte) (*table, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidData)
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return &table{header: header, rows: rows}, nil
}

func (t *table) column(name string) int {
	for i, h := range t.header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

func parseValue(s string, row int, column string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: row %d column %s: %v", ErrInvalidData, row+2, column, err)
	}
	return v, nil
}

// parseDemand reads the snapshot index and raw demand. Every column other
// than timestamp and weight is a region.
func parseDemand(raw []byte) ([]network.Snapshot, map[string][]float64, error) {
	t, err := readTable(raw)
	if err != nil {
		return nil, nil, err
	}
	ts := t.column("timestamp")
	if ts < 0 {
		return nil, nil, fmt.Errorf("%w: missing timestamp column", ErrInvalidData)
	}
	weight := t.column("weight")
	if len(t.rows) == 0 {
		return nil, nil, fmt.Errorf("%w: no rows", ErrInvalidData)
	}

	snapshots := make([]network.Snapshot, len(t.rows))
	demand := make(map[string][]float64)
	for i, h := range t.header {
		if i == ts || i == weight {
			continue
		}
		if _, dup := demand[h]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate region column %q", ErrInvalidData, h)
		}
		demand[h] = make([]float64, len(t.rows))
	}

	for r, row := range t.rows {
		when, err := parseTime(row[ts])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: row %d: %v", ErrInvalidData, r+2, err)
		}
		if r > 0 && !when.After(snapshots[r-1].Time) {
			return nil, nil, fmt.Errorf("%w: row %d: timestamps must be strictly increasing", ErrInvalidData, r+2)
		}
		snapshots[r] = network.Snapshot{Time: when, Weight: 1}
		if weight >= 0 && strings.TrimSpace(row[weight]) != "" {
			if snapshots[r].Weight, err = parseValue(row[weight], r, "weight"); err != nil {
				return nil, nil, err
			}
			if snapshots[r].Weight <= 0 {
				return nil, nil, fmt.Errorf("%w: row %d: weight must be positive, got %v", ErrInvalidData, r+2, snapshots[r].Weight)
			}
		}
		for i, h := range t.header {
			if i == ts || i == weight {
				continue
			}
			if demand[h][r], err = parseValue(row[i], r, h); err != nil {
				return nil, nil, err
			}
		}
	}
	return snapshots, demand, nil
}

// parseProfiles reads availability fractions keyed by "<region>-<tech>".
// The timestamp column is optional but the row count must match the
// snapshot index.
func parseProfiles(raw []byte, steps int) (map[string][]float64, error) {
	t, err := readTable(raw)
	if err != nil {
		return nil, err
	}
	if len(t.rows) != steps {
		return nil, fmt.Errorf("%w: %d rows for %d snapshots", network.ErrSeriesLength, len(t.rows), steps)
	}
	ts := t.column("timestamp")

	profiles := make(map[string][]float64)
	for i, h := range t.header {
		if i == ts {
			continue
		}
		series := make([]float64, steps)
		for r, row := range t.rows {
			v, err := parseValue(row[i], r, h)
			if err != nil {
				return nil, err
			}
			if v < 0 || v > 1 {
				return nil, fmt.Errorf("%w: row %d column %s: availability %v outside [0,1]", ErrInvalidData, r+2, h, v)
			}
			series[r] = v
		}
		profiles[h] = series
	}
	return profiles, nil
}
