package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rustyeddy/daytrader/config"
	"github.com/rustyeddy/daytrader/journal"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/notify"
	"github.com/rustyeddy/daytrader/pipeline"
)

// out prints numbers with thousands separators.
var out = message.NewPrinter(language.English)

// openJournal returns nil for journal type "none".
func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "sqlite":
		j, err := journal.NewSQLite(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	case "csv":
		j, err := journal.NewCSV(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open csv journal: %w", err)
		}
		return j, nil
	default:
		return nil, nil
	}
}

// app bundles a pipeline with the sink and dispatcher it writes to.
type app struct {
	cfg  *config.Config
	p    *pipeline.Pipeline
	sink journal.Journal
	disp *notify.Dispatcher
}

func openApp(ctx context.Context, cfg *config.Config, dataPath string, hooks ...notify.Hook) (*app, error) {
	if dataPath == "" {
		dataPath = cfg.Data
	}
	cfg.Data = dataPath
	pc, err := cfg.Pipeline(log)
	if err != nil {
		return nil, err
	}
	sink, err := openJournal(cfg)
	if err != nil {
		return nil, err
	}
	hooks = append([]notify.Hook{notify.LogHook{Log: log}}, hooks...)
	disp := notify.NewDispatcher(ctx, 256, log, hooks...)
	p, err := pipeline.New(pc, market.CSVSource{Path: dataPath}, sink, disp)
	if err != nil {
		disp.Close()
		if sink != nil {
			sink.Close()
		}
		return nil, err
	}
	return &app{cfg: cfg, p: p, sink: sink, disp: disp}, nil
}

func (s *app) Close() {
	s.disp.Close()
	if s.disp.Dropped() > 0 {
		log.Warn().Int64("dropped", s.disp.Dropped()).Msg("notifications dropped")
	}
	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			log.Error().Err(err).Msg("close journal")
		}
	}
}

// orgAppender appends org entries to path.
func orgAppender(path string) func(string) error {
	return func(entry string) error {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = fmt.Fprintln(f, entry)
		return err
	}
}

// parseRange turns optional YYYY-MM-DD bounds into [start, end) millis in
// loc. to is inclusive; zero means open.
func parseRange(from, to string, loc *time.Location) (start, end int64, err error) {
	if from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, loc)
		if err != nil {
			return 0, 0, fmt.Errorf("--from: %w", err)
		}
		start = t.UnixMilli()
	}
	if to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, loc)
		if err != nil {
			return 0, 0, fmt.Errorf("--to: %w", err)
		}
		end = t.AddDate(0, 0, 1).UnixMilli()
	}
	if start != 0 && end != 0 && end <= start {
		return 0, 0, fmt.Errorf("--to must not be before --from")
	}
	return start, end, nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}

func pct(x float64) string { return out.Sprintf("%.2f%%", x*100) }
