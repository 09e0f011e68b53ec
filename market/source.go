package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// BarSource yields an ordered bar series for a symbol/timeframe. A zero start
// or end leaves that side of the range open.
type BarSource interface {
	GetBars(ctx context.Context, symbol, timeframe string, start, end int64) (Series, error)
}

// CSVSource reads bars from a CSV file with columns
// time,open,high,low,close[,volume]. time is unix milliseconds or RFC3339.
// A header row is detected and skipped.
type CSVSource struct {
	Path string
}

// GetBars loads the whole file, stamps symbol/timeframe, trims to the range
// and validates the result.
func (c CSVSource) GetBars(ctx context.Context, symbol, timeframe string, start, end int64) (Series, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadCSV(f, symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars = bars.Between(start, end)
	if err := bars.Validate(); err != nil {
		return nil, err
	}
	return bars, nil
}

// ReadCSV parses bars from r without validating them.
func ReadCSV(r io.Reader, symbol, timeframe string) (Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out Series
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") ||
			line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "timestamp") {
			continue
		}
		b, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b.Symbol = symbol
		b.Timeframe = timeframe
		out = append(out, b)
	}
}

func parseRow(row []string) (Bar, error) {
	if len(row) < 5 {
		return Bar{}, fmt.Errorf("need at least 5 columns time,open,high,low,close: %v", row)
	}
	ts, err := parseTimestamp(strings.TrimSpace(row[0]))
	if err != nil {
		return Bar{}, err
	}
	vals := make([]float64, 5)
	for i := 1; i < len(row) && i <= 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad number %q: %w", row[i], err)
		}
		vals[i-1] = v
	}
	return Bar{
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

func parseTimestamp(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, s)
		if err2 != nil {
			return 0, fmt.Errorf("bad time %q: %w", s, err)
		}
		t = t2
	}
	return t.UnixMilli(), nil
}
