// Package errs defines the error taxonomy shared by the core packages.
//
// DataError and ConfigError are returned immediately to the caller and carry
// enough context to reproduce the failure. Trading-rule violations are not
// errors; they travel as skip reasons on normal return values.
package errs

import (
	"errors"
	"fmt"
)

// DataError reports unusable input bars: short history, non-monotonic
// timestamps, malformed OHLC values.
type DataError struct {
	Symbol    string
	Timeframe string
	Index     int // offending bar index, -1 when not tied to a bar
	Reason    string
}

func (e *DataError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("data error %s/%s at bar %d: %s", e.Symbol, e.Timeframe, e.Index, e.Reason)
	}
	return fmt.Sprintf("data error %s/%s: %s", e.Symbol, e.Timeframe, e.Reason)
}

// ConfigError reports a parameter outside its documented bounds or an
// incompatible combination of parameters. It is raised at construction.
type ConfigError struct {
	Component string
	Param     string
	Value     any
	Reason    string
}

func (e *ConfigError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("config error in %s: %s", e.Component, e.Reason)
	}
	return fmt.Sprintf("config error in %s: %s=%v: %s", e.Component, e.Param, e.Value, e.Reason)
}

// Data builds a *DataError.
func Data(symbol, timeframe string, index int, format string, args ...any) error {
	return &DataError{
		Symbol:    symbol,
		Timeframe: timeframe,
		Index:     index,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// Config builds a *ConfigError.
func Config(component, param string, value any, format string, args ...any) error {
	return &ConfigError{
		Component: component,
		Param:     param,
		Value:     value,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// IsData reports whether err wraps a *DataError.
func IsData(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// IsConfig reports whether err wraps a *ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
