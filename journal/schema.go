package journal

const Schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	day TEXT NOT NULL,
	trade_window TEXT NOT NULL,
	bar_time INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	signal INTEGER NOT NULL,
	confidence REAL NOT NULL,
	method TEXT NOT NULL,
	last_price REAL NOT NULL,
	entry_price REAL NOT NULL,
	band_low REAL NOT NULL,
	band_high REAL NOT NULL,
	stop_loss REAL NOT NULL,
	take_profit REAL NOT NULL,
	stop_method TEXT NOT NULL,
	reward_risk REAL NOT NULL,
	position_size REAL NOT NULL,
	notional REAL NOT NULL,
	risk_amount REAL NOT NULL,
	risk_pct REAL NOT NULL,
	used_kelly INTEGER NOT NULL,
	should_execute INTEGER NOT NULL,
	skip_reason TEXT NOT NULL,
	advisory TEXT NOT NULL,
	UNIQUE (symbol, day, trade_window)
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side INTEGER NOT NULL,
	quantity REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	stop_loss REAL NOT NULL,
	take_profit REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	fees REAL NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	dataset TEXT NOT NULL,
	strategy TEXT NOT NULL,
	method TEXT NOT NULL,
	config BLOB,
	risk_pct REAL NOT NULL,
	stop_atr REAL NOT NULL,
	target_atr REAL NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	start_balance REAL NOT NULL,
	end_balance REAL NOT NULL,
	net_pl REAL NOT NULL,
	return_pct REAL NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	max_dd_pct REAL NOT NULL,
	sharpe REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	equity REAL NOT NULL,
	exposed INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);
CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);
`
