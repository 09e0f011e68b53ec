package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/daytrader/decision"
)

// FormatTradeOrg renders a trade as an org-mode heading with a properties
// drawer and empty review sections.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** Trade: %s %s (%s)", t.Symbol, t.Side, shortID(t.TradeID))
	// Use RFC3339 for copy/paste friendliness.
	open := t.OpenTime.UTC().Format(time.RFC3339)
	close := t.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":ID: %s\n", t.TradeID)
	if t.RunID != "" {
		fmt.Fprintf(&b, ":RUN_ID: %s\n", t.RunID)
	}
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":QUANTITY: %g\n", t.Quantity)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.5f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.5f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":STOP_LOSS: %.5f\n", t.StopLoss)
	fmt.Fprintf(&b, ":TAKE_PROFIT: %.5f\n", t.TakeProfit)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", open)
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", close)
	fmt.Fprintf(&b, ":FEES: %.2f\n", t.Fees)
	fmt.Fprintf(&b, ":REALIZED_PL: %.2f\n", t.RealizedPL)
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// FormatDecisionOrg renders a daily decision. Skipped decisions carry a
// SKIP tag and their reason.
func FormatDecisionOrg(d decision.DailyDecision) string {
	verdict := "EXECUTE"
	if !d.ShouldExecute {
		verdict = "SKIP"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "** %s %s %s %s :%s:\n", verdict, d.Symbol, d.Day, d.Signal, strings.ToLower(verdict))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", d.ID)
	fmt.Fprintf(&b, ":WINDOW: %s\n", orDash(d.Window))
	fmt.Fprintf(&b, ":CONFIDENCE: %.2f\n", d.Confidence)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.5f\n", d.EntryPrice)
	fmt.Fprintf(&b, ":ENTRY_BAND: %.5f-%.5f\n", d.Band.Low, d.Band.High)
	fmt.Fprintf(&b, ":STOP_LOSS: %.5f\n", d.StopLoss)
	fmt.Fprintf(&b, ":TAKE_PROFIT: %.5f\n", d.TakeProfit)
	fmt.Fprintf(&b, ":STOP_METHOD: %s\n", d.StopMethod)
	fmt.Fprintf(&b, ":REWARD_RISK: %.2f\n", d.RewardRisk)
	fmt.Fprintf(&b, ":POSITION_SIZE: %g\n", d.PositionSize)
	fmt.Fprintf(&b, ":RISK_AMOUNT: %.2f\n", d.RiskAmount)
	fmt.Fprintf(&b, ":RISK_PCT: %.2f\n", 100*d.RiskPct)
	if d.SkipReason != "" {
		fmt.Fprintf(&b, ":SKIP_REASON: %s\n", d.SkipReason)
	}
	b.WriteString(":END:\n")
	if d.Advisory != nil {
		fmt.Fprintf(&b, "\n%s\n", d.Advisory.Summary)
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
