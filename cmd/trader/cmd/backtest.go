package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/daytrader/backtest"
	"github.com/rustyeddy/daytrader/journal"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest the configured strategy ensemble",
	Long: `Backtest runs every configured strategy over the bar file, combines the
signals and simulates at most one entry per trading day inside the
trading windows, with ATR stops and targets and a forced close.

The run and its trades are written to the journal.

Example:
  trader backtest --data data/SPY_15m.csv --from 2024-01-01 --to 2024-06-30 --org run.org`,
	RunE: runBacktest,
}

var (
	btDataPath string
	btFrom     string
	btTo       string
	btOrgPath  string
	btJSON     bool
	btTrades   bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btDataPath, "data", "", "path to bar CSV (timestamp,open,high,low,close,volume); default from config")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "first day (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "last day, inclusive (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btOrgPath, "org", "", "write an org-mode report to this path")
	backtestCmd.Flags().BoolVar(&btJSON, "json", false, "print the full result as JSON")
	backtestCmd.Flags().BoolVar(&btTrades, "trades", false, "list every trade")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return err
	}
	start, end, err := parseRange(btFrom, btTo, cal.Location)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, btDataPath)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.p.Backtest(ctx, start, end)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	if btOrgPath != "" {
		run := journal.FromResult(res, strings.Join(a.p.StrategyNames(), ","), string(cfg.CombinationMethod), cfg.Data)
		run.OrgPath = btOrgPath
		if err := run.WriteBacktestOrg(); err != nil {
			return fmt.Errorf("write org report: %w", err)
		}
	}

	if btJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printBacktest(res)
	return nil
}

func printBacktest(res *backtest.Result) {
	m := res.Metrics
	out.Printf("Backtest %s  %s %s\n", res.ID, res.Symbol, res.Timeframe)
	out.Printf("  Capital:       %.2f\n", res.Config.Capital)
	out.Printf("  Final equity:  %.2f\n", res.FinalEquity())
	out.Printf("  Total return:  %s\n", pct(m.TotalReturn))
	out.Printf("  Max drawdown:  %s\n", pct(m.MaxDrawdown))
	out.Printf("  Sharpe:        %.2f\n", m.Sharpe)
	out.Printf("  Sortino:       %.2f\n", m.Sortino)
	out.Printf("  Trades:        %d (%d wins, %d losses)\n", m.Trades, m.Wins, m.Losses)
	out.Printf("  Win rate:      %s\n", pct(m.WinRate))
	out.Printf("  Profit factor: %.2f\n", m.ProfitFactor)
	out.Printf("  Expectancy:    %.2f\n", m.Expectancy)

	rejected := 0
	for _, c := range res.Candidates {
		if !c.Executed {
			rejected++
		}
	}
	out.Printf("  Candidates:    %d (%d rejected)\n", len(res.Candidates), rejected)

	if !btTrades {
		return
	}
	fmt.Println()
	for _, t := range res.Trades {
		out.Printf("  %s %-5s %-11s qty %.2f  %.4f -> %.4f  pnl %.2f\n",
			t.Day, t.Side, t.ExitReason, t.Quantity, t.EntryPrice, t.ExitPrice, t.PnL)
	}
}
