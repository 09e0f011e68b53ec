package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/daytrader/montecarlo"
)

var montecarloCmd = &cobra.Command{
	Use:   "montecarlo",
	Short: "Stress a backtest by reshuffling its trades or returns",
	Long: `Montecarlo backtests the configured ensemble, then runs monte_carlo_trials
block permutations (or bootstrap resamples) of its trade PnLs or bar returns
and reports the distribution of outcomes.

Example:
  trader montecarlo --data data/SPY_15m.csv --kind pnl`,
	RunE: runMontecarlo,
}

var (
	mcDataPath string
	mcFrom     string
	mcTo       string
	mcKind     string
	mcJSON     bool
)

func init() {
	rootCmd.AddCommand(montecarloCmd)

	montecarloCmd.Flags().StringVar(&mcDataPath, "data", "", "path to bar CSV; default from config")
	montecarloCmd.Flags().StringVar(&mcFrom, "from", "", "first day (YYYY-MM-DD)")
	montecarloCmd.Flags().StringVar(&mcTo, "to", "", "last day, inclusive (YYYY-MM-DD)")
	montecarloCmd.Flags().StringVar(&mcKind, "kind", string(montecarlo.PnL), "series to resample: pnl (trades) or returns (bars)")
	montecarloCmd.Flags().BoolVar(&mcJSON, "json", false, "print the report as JSON")
}

func runMontecarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return err
	}
	start, end, err := parseRange(mcFrom, mcTo, cal.Location)
	if err != nil {
		return err
	}
	// The source backtest is not journaled.
	cfg.Journal.Type = "none"

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, mcDataPath)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.p.Backtest(ctx, start, end)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	kind := montecarlo.Kind(mcKind)
	series := res.TradePnLs()
	if kind == montecarlo.Returns {
		series = res.Returns()
	}
	mc := cfg.MonteCarloConfig()
	mc.Log = log
	rep, err := montecarlo.Analyze(ctx, series, kind, mc)
	if err != nil {
		return fmt.Errorf("montecarlo: %w", err)
	}

	if mcJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	out.Printf("Monte Carlo %s of %s, block %d, %d/%d trials\n", rep.Mode, rep.Kind, rep.BlockSize, rep.Trials, rep.Requested)
	out.Printf("  Observed return:   %s (max drawdown %s)\n", pct(rep.Observed.TotalReturn), pct(rep.Observed.MaxDrawdown))
	out.Printf("  Mean return:       %s\n", pct(rep.MeanReturn))
	out.Printf("  Median return:     %s\n", pct(rep.MedianReturn))
	out.Printf("  95%% return CI:     [%s, %s]\n", pct(rep.Return95.Lower), pct(rep.Return95.Upper))
	out.Printf("  99%% return CI:     [%s, %s]\n", pct(rep.Return99.Lower), pct(rep.Return99.Upper))
	out.Printf("  95%% Sharpe CI:     [%.2f, %.2f]\n", rep.Sharpe95.Lower, rep.Sharpe95.Upper)
	out.Printf("  Expected max DD:   %s (worst %s)\n", pct(rep.ExpectedMaxDrawdown), pct(rep.WorstMaxDrawdown))
	out.Printf("  P(profit):         %s\n", pct(rep.ProbProfit))
	out.Printf("  Risk of ruin:      %s\n", pct(rep.RiskOfRuin))
	return nil
}
