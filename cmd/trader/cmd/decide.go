package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/daytrader/decision"
	"github.com/rustyeddy/daytrader/notify"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Emit the trading decision for the latest bar",
	Long: `Decide evaluates the last bar of the data file and emits one decision for
its day and trading window: entry, stop, target and size, or the reason the
trade is skipped. A decision already journaled for the same day and window is
not emitted again.

With --replay every trading window in the range is decided in turn, as a
scheduler running at each window open would have.

Examples:
  trader decide --data data/SPY_15m.csv
  trader decide --replay --from 2024-03-01 --to 2024-03-31 --org-log decisions.org`,
	RunE: runDecide,
}

var (
	decDataPath string
	decFrom     string
	decTo       string
	decReplay   bool
	decJSON     bool
	decOrgLog   string
)

func init() {
	rootCmd.AddCommand(decideCmd)

	decideCmd.Flags().StringVar(&decDataPath, "data", "", "path to bar CSV; default from config")
	decideCmd.Flags().StringVar(&decFrom, "from", "", "first day (YYYY-MM-DD)")
	decideCmd.Flags().StringVar(&decTo, "to", "", "last day, inclusive (YYYY-MM-DD)")
	decideCmd.Flags().BoolVar(&decReplay, "replay", false, "decide every trading window in the range")
	decideCmd.Flags().BoolVar(&decJSON, "json", false, "print decisions as JSON lines")
	decideCmd.Flags().StringVar(&decOrgLog, "org-log", "", "append each decision as an org entry to this file")
}

func runDecide(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return err
	}
	start, end, err := parseRange(decFrom, decTo, cal.Location)
	if err != nil {
		return err
	}

	var hooks []notify.Hook
	if decOrgLog != "" {
		hooks = append(hooks, notify.OrgHook{Write: orgAppender(decOrgLog)})
	}
	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, decDataPath, hooks...)
	if err != nil {
		return err
	}
	defer a.Close()

	if decReplay {
		ds, err := a.p.Replay(ctx, start, end)
		for _, d := range ds {
			if perr := printDecision(d); perr != nil {
				return perr
			}
		}
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		executed := 0
		for _, d := range ds {
			if d.ShouldExecute {
				executed++
			}
		}
		log.Info().Int("decisions", len(ds)).Int("executed", executed).Msg("replay complete")
		return nil
	}

	d, fresh, err := a.p.Decide(ctx, start, end)
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}
	if !fresh {
		log.Info().Str("day", d.Day).Str("window", d.Window).Msg("decision already emitted for this window")
	}
	return printDecision(d)
}

func printDecision(d decision.DailyDecision) error {
	if decJSON {
		return json.NewEncoder(os.Stdout).Encode(d)
	}
	window := d.Window
	if window == "" {
		window = "-"
	}
	if !d.ShouldExecute {
		out.Printf("%s %s %-11s %-5s SKIP %s (confidence %.2f)\n",
			d.Day, d.Symbol, window, d.Signal, d.SkipReason, d.Confidence)
		return nil
	}
	out.Printf("%s %s %-11s %-5s EXECUTE entry %.4f stop %.4f target %.4f size %.2f risk %.2f (%s) rr %.2f\n",
		d.Day, d.Symbol, window, d.Signal, d.EntryPrice, d.StopLoss, d.TakeProfit,
		d.PositionSize, d.RiskAmount, pct(d.RiskPct), d.RewardRisk)
	if d.Advisory != nil {
		out.Printf("    advisory: %s\n", d.Advisory.Summary)
	}
	return nil
}
