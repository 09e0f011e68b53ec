package journal

import (
	"encoding/json"
	"io"
	"os"
	"text/template"
	"time"

	"github.com/rustyeddy/daytrader/backtest"
)

// BacktestRun mirrors the backtest_runs table.
type BacktestRun struct {
	RunID     string
	Created   time.Time
	Symbol    string
	Timeframe string
	Dataset   string

	Strategy string // comma separated strategy names
	Method   string // combination method
	Config   []byte // engine config as JSON

	// Risk Management
	RiskPct   float64
	StopATR   float64
	TargetATR float64

	Start time.Time
	End   time.Time

	// Results
	Trades int
	Wins   int
	Losses int

	StartBalance float64
	EndBalance   float64

	NetPL        float64
	ReturnPct    float64
	WinRate      float64
	ProfitFactor float64
	MaxDDPct     float64
	Sharpe       float64

	OrgPath string

	Notes       []string
	NextActions []string

	Equity []EquitySnapshot
}

// FromResult summarises res. strategy and method describe the signal that
// drove the run; dataset names the bar source.
func FromResult(res *backtest.Result, strategy, method, dataset string) BacktestRun {
	cfg, _ := json.Marshal(res.Config)
	m := res.Metrics
	run := BacktestRun{
		RunID:        res.ID,
		Created:      res.CreatedAt,
		Symbol:       res.Symbol,
		Timeframe:    res.Timeframe,
		Dataset:      dataset,
		Strategy:     strategy,
		Method:       method,
		Config:       cfg,
		RiskPct:      res.Config.RiskPct,
		StopATR:      res.Config.StopATR,
		TargetATR:    res.Config.TargetATR,
		Start:        time.UnixMilli(res.Start).UTC(),
		End:          time.UnixMilli(res.End).UTC(),
		Trades:       m.Trades,
		Wins:         m.Wins,
		Losses:       m.Losses,
		StartBalance: res.Config.Capital,
		EndBalance:   res.FinalEquity(),
		NetPL:        res.FinalEquity() - res.Config.Capital,
		ReturnPct:    100 * m.TotalReturn,
		WinRate:      m.WinRate,
		ProfitFactor: m.ProfitFactor,
		MaxDDPct:     100 * m.MaxDrawdown,
		Sharpe:       m.Sharpe,
	}
	run.Equity = make([]EquitySnapshot, len(res.Equity))
	for i, p := range res.Equity {
		run.Equity[i] = EquitySnapshot{
			RunID:   res.ID,
			Time:    time.UnixMilli(p.Time).UTC(),
			Equity:  p.Equity,
			Exposed: p.Exposed,
		}
	}
	return run
}

var backtestOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var backtestOrg = template.Must(template.New("backtest").Funcs(backtestOrgFuncs).Parse(BacktestOrgTemplate))

// WriteOrg renders the run as an org-mode section.
func (v *BacktestRun) WriteOrg(w io.Writer) error {
	return backtestOrg.Execute(w, v)
}

// WriteBacktestOrg writes the org section to OrgPath.
func (v *BacktestRun) WriteBacktestOrg() error {
	f, err := os.Create(v.OrgPath)
	if err != nil {
		return err
	}
	if err := v.WriteOrg(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

const BacktestOrgTemplate = `
* BACKTEST: {{if .Strategy}}{{.Strategy}}{{else}}(strategy?){{end}} {{.Symbol}} {{if .Timeframe}}{{.Timeframe}}{{else}}(timeframe?){{end}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:METHOD:      {{if .Method}}{{.Method}}{{else}}(method?){{end}}
:TIMEFRAME:   {{if .Timeframe}}{{.Timeframe}}{{else}}(timeframe?){{end}}
:SYMBOL:      {{.Symbol}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_BAL:   {{printf "%.2f" .StartBalance}}
:END_BAL:     {{printf "%.2f" .EndBalance}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDDPct}}
:SHARPE:      {{printf "%.2f" .Sharpe}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:PROFIT_FAC:  {{if ne .ProfitFactor 0.0}}{{printf "%.2f" .ProfitFactor}}{{else}}(profit-factor?){{end}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Parameters
| Parameter        | Value |
|------------------+-------|
| Config           | {{printf "%s" .Config}} |
| Stop (ATR)       | {{printf "%.2f" .StopATR}} |
| Target (ATR)     | {{printf "%.2f" .TargetATR}} |
| Risk per Trade % | {{printf "%.2f" (mul100 .RiskPct)}} |

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPL}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDDPct}}%*
- Sharpe:           *{{printf "%.2f" .Sharpe}}*
- Win Rate:         *{{printf "%.2f" (mul100 .WinRate)}}%*
- Profit Factor:    *{{if ne .ProfitFactor 0.0}}{{printf "%.2f" .ProfitFactor}}{{else}}(profit-factor?){{end}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |

{{- if .Notes }}
** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}

{{- if .NextActions }}
** Notes / Next Actions
{{- range .NextActions }}
- [ ] {{.}}
{{- end }}
{{- end }}
`
