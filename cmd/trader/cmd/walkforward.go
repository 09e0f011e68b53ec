package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/walkforward"
)

var walkforwardCmd = &cobra.Command{
	Use:   "walkforward",
	Short: "Optimise a strategy on train windows and score it out of sample",
	Long: `Walkforward splits the bars into walk_forward_train_days train windows each
followed by a walk_forward_test_days test window, searches the walk_forward
ranges on every train window and backtests the winner on the test window.

Example:
  trader walkforward --strategy trend_cross --data data/SPY_15m.csv`,
	RunE: runWalkforward,
}

var (
	wfDataPath string
	wfStrategy string
	wfFrom     string
	wfTo       string
	wfJSON     bool
)

func init() {
	rootCmd.AddCommand(walkforwardCmd)

	walkforwardCmd.Flags().StringVar(&wfDataPath, "data", "", "path to bar CSV; default from config")
	walkforwardCmd.Flags().StringVarP(&wfStrategy, "strategy", "s", "", "strategy to tune (overrides walk_forward.strategy)")
	walkforwardCmd.Flags().StringVar(&wfFrom, "from", "", "first day (YYYY-MM-DD)")
	walkforwardCmd.Flags().StringVar(&wfTo, "to", "", "last day, inclusive (YYYY-MM-DD)")
	walkforwardCmd.Flags().BoolVar(&wfJSON, "json", false, "print the report as JSON")
}

func runWalkforward(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if wfStrategy != "" {
		cfg.WalkForward.Strategy = wfStrategy
	}
	if cfg.WalkForward.Strategy == "" {
		return fmt.Errorf("no strategy to tune: set walk_forward.strategy or --strategy")
	}
	if wfDataPath != "" {
		cfg.Data = wfDataPath
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return err
	}
	start, end, err := parseRange(wfFrom, wfTo, cal.Location)
	if err != nil {
		return err
	}

	bt := cfg.Backtest(cal)
	bt.Log = log
	wf := cfg.WalkForwardConfig(bt)
	wf.Log = log
	if err := wf.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	bars, err := market.CSVSource{Path: cfg.Data}.GetBars(ctx, cfg.Symbol, cfg.Timeframe, start, end)
	if err != nil {
		return err
	}
	rep, err := walkforward.Run(ctx, bars, wf)
	if err != nil {
		return fmt.Errorf("walkforward: %w", err)
	}

	if wfJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printWalkforward(rep, cal.Location)
	return nil
}

func printWalkforward(rep *walkforward.Report, loc *time.Location) {
	day := func(ms int64) string { return time.UnixMilli(ms).In(loc).Format("2006-01-02") }
	out.Printf("Walk-forward %s, objective %s, %d splits\n", rep.Strategy, rep.Objective, len(rep.Splits))
	for _, s := range rep.Splits {
		out.Printf("  #%d train %s..%s test %s..%s  IS %.3f  OOS %.3f  trades %d  params %v\n",
			s.Index, day(s.TrainStart), day(s.TrainEnd), day(s.TestStart), day(s.TestEnd),
			s.ISObjective, s.OOSObjective, s.OutOfSample.Trades, s.Best)
	}
	out.Printf("  Efficiency:  %.2f\n", rep.Efficiency)
	out.Printf("  Consistency: %s\n", pct(rep.Consistency))
}
