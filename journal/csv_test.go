package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	tests := []struct {
		file   string
		header []string
	}{
		{"decisions.csv", decisionHeader},
		{"trades.csv", tradeHeader},
		{"backtests.csv", runHeader},
	}
	for _, tt := range tests {
		rows := readCSV(t, filepath.Join(dir, tt.file))
		require.Len(t, rows, 1, tt.file)
		assert.Equal(t, tt.header, rows[0])
	}
}

func TestCSVJournalRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(filepath.Join(dir, "out"))
	require.NoError(t, err)

	d := sampleDecision("2024-03-04", "14:30-16:00")
	require.NoError(t, j.RecordDecision(d))
	assert.ErrorIs(t, j.RecordDecision(d), ErrDuplicate)

	closeAt := time.Date(2024, 1, 2, 4, 5, 6, 0, time.UTC)
	require.NoError(t, j.RecordTrade(sampleTrade("T1", closeAt)))
	require.NoError(t, j.RecordBacktest(BacktestRun{RunID: "RUN1", Symbol: "SPY", Trades: 4}))
	require.NoError(t, j.Close())

	decisions := readCSV(t, filepath.Join(dir, "out", "decisions.csv"))
	require.Len(t, decisions, 2)
	row := decisions[1]
	require.Len(t, row, len(decisionHeader))
	assert.Equal(t, "SPY", row[1])
	assert.Equal(t, "LONG", row[6])
	assert.Equal(t, "99.400000", row[12])
	assert.Equal(t, "true", row[19])

	trades := readCSV(t, filepath.Join(dir, "out", "trades.csv"))
	require.Len(t, trades, 2)
	assert.Equal(t, []string{
		"T1", "RUN1", "SPY", "SHORT", "123.500000", "101.250000", "100.750000", "102.000000", "99.750000",
		"2024-01-02T03:05:06Z", "2024-01-02T04:05:06Z", "1.500000", "60.250000", "take_profit",
	}, trades[1])

	runs := readCSV(t, filepath.Join(dir, "out", "backtests.csv"))
	require.Len(t, runs, 2)
	assert.Equal(t, "RUN1", runs[1][0])
	assert.Equal(t, "4", runs[1][8])
}

func TestFormatFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.000000"},
		{1.23456789, "1.234568"},
		{-12.5, "-12.500000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f(tt.in))
	}
}
