package cmd

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/config"
	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/journal"
	"github.com/rustyeddy/daytrader/pipeline"
)

func TestParseRange(t *testing.T) {
	t.Parallel()

	day := func(s string) int64 {
		ts, _ := time.ParseInLocation("2006-01-02", s, time.UTC)
		return ts.UnixMilli()
	}
	tests := []struct {
		name     string
		from, to string
		start    int64
		end      int64
		wantErr  bool
	}{
		{"open", "", "", 0, 0, false},
		{"from only", "2024-03-04", "", day("2024-03-04"), 0, false},
		{"to is inclusive", "2024-03-04", "2024-03-05", day("2024-03-04"), day("2024-03-06"), false},
		{"bad date", "2024-3-4", "", 0, 0, true},
		{"reversed", "2024-03-05", "2024-03-03", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			start, end, err := parseRange(tt.from, tt.to, time.UTC)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	return rootCmd.Execute()
}

func writeBars(t *testing.T, path string, days int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	day0 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	prev := 100.0
	n := 0
	for d := 0; d < days; d++ {
		for k := 0; k < 28; k++ {
			i := float64(n)
			c := 100 + 2*math.Sin(i/9) + 0.3*math.Sin(0.7*i)
			ts := day0.AddDate(0, 0, d).Add(time.Duration(k) * 15 * time.Minute)
			fmt.Fprintf(&b, "%s,%.4f,%.4f,%.4f,%.4f,1000\n", ts.Format(time.RFC3339),
				prev, math.Max(prev, c)+0.2, math.Min(prev, c)-0.2, c)
			prev = c
			n++
		}
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

// Commands share cobra's global flag state, so these run sequentially.
func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")
	require.NoError(t, execute(t, "config", "init", "-o", path))
	require.FileExists(t, path)
	require.NoError(t, execute(t, "config", "validate", "-f", path))

	require.NoError(t, os.WriteFile(path, []byte("risk_pct: 3\n"), 0o644))
	assert.Error(t, execute(t, "config", "validate", "-f", path))
}

// testSetup writes five days of bars and a matching sqlite-journaled config.
func testSetup(t *testing.T, mod func(*config.Config)) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "spy.csv")
	writeBars(t, data, 5)

	cfg := config.Default()
	cfg.Data = data
	cfg.Timezone = "UTC"
	cfg.TradingWindows = []string{"10:00-11:00", "13:00-14:00"}
	cfg.ForcedCloseTime = "15:00"
	cfg.Strategies = []pipeline.StrategySpec{
		{Name: "trend_cross", Params: map[string]float64{"fast_period": 5, "slow_period": 20}},
	}
	cfg.Decision.MinConfidence = 0
	cfg.Decision.MaxEntryDistancePct = 0.05
	cfg.Journal = config.JournalConfig{Type: "sqlite", Path: filepath.Join(dir, "journal.sqlite")}
	if mod != nil {
		mod(cfg)
	}
	cfgPath := filepath.Join(dir, "trader.yaml")
	require.NoError(t, cfg.SaveToFile(cfgPath))
	return cfg, cfgPath
}

func TestBacktestAndDecideCommands(t *testing.T) {
	cfg, cfgPath := testSetup(t, nil)
	dir := filepath.Dir(cfgPath)

	org := filepath.Join(dir, "run.org")
	require.NoError(t, execute(t, "backtest", "--config", cfgPath, "--org", org))
	report, err := os.ReadFile(org)
	require.NoError(t, err)
	assert.Contains(t, string(report), "* BACKTEST: trend_cross SPY 15m")

	orgLog := filepath.Join(dir, "decisions.org")
	require.NoError(t, execute(t, "decide", "--config", cfgPath, "--replay", "--org-log", orgLog))

	j, err := journal.NewSQLite(cfg.Journal.Path)
	require.NoError(t, err)
	ds, err := j.ListDecisions("SPY", "2024-03-04", "2024-03-08")
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.NotEmpty(t, ds)
	seen := map[string]bool{}
	for _, d := range ds {
		key := d.Day + "|" + d.Window
		assert.False(t, seen[key], key)
		seen[key] = true
	}

	logged, err := os.ReadFile(orgLog)
	require.NoError(t, err)
	assert.Len(t, regexp.MustCompile(`(?m)^\*\* `).FindAllString(string(logged), -1), len(ds))

	// Replaying again finds every window already journaled.
	require.NoError(t, execute(t, "decide", "--config", cfgPath, "--replay", "--org-log", ""))
	j, err = journal.NewSQLite(cfg.Journal.Path)
	require.NoError(t, err)
	again, err := j.ListDecisions("SPY", "2024-03-04", "2024-03-08")
	require.NoError(t, err)
	require.NoError(t, j.Close())
	assert.Len(t, again, len(ds))
}

func TestDecideSizesKellyFromJournaledTrades(t *testing.T) {
	cfg, cfgPath := testSetup(t, func(c *config.Config) {
		c.Decision.Sizing = decision.Kelly
		c.Decision.KellyMinTrades = 1
	})

	require.NoError(t, execute(t, "backtest", "--config", cfgPath, "--org", ""))
	require.NoError(t, execute(t, "decide", "--config", cfgPath, "--replay", "--org-log", ""))

	j, err := journal.NewSQLite(cfg.Journal.Path)
	require.NoError(t, err)
	defer j.Close()
	trades, err := j.LatestRunTrades("SPY")
	require.NoError(t, err)
	require.NotEmpty(t, trades)
	ds, err := j.ListDecisions("SPY", "2024-03-04", "2024-03-08")
	require.NoError(t, err)
	require.NotEmpty(t, ds)

	var kelly int
	for _, d := range ds {
		closedBefore := 0
		for _, tr := range trades {
			if tr.CloseTime.UnixMilli() <= d.BarTime {
				closedBefore++
			}
		}
		assert.Equal(t, closedBefore >= 1, d.UsedKelly, "%s %s", d.Day, d.Window)
		if d.UsedKelly {
			kelly++
		}
	}
	assert.Positive(t, kelly)
}
