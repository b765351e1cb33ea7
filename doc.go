// Package rebalance backtests rule based portfolio strategies and explains
// their results.
//
// The engine is split in packages, each depending only on the ones listed
// before it:
//   - date: calendar dates, date indexed series and their truncated views.
//   - signal: percentile rank of the latest observation within a trailing window.
//   - weights: target weights from percentile signals, with a residual asset.
//   - market: the in-memory market data, and its look-ahead free views.
//   - backtest: the day by day simulation with threshold rebalancing and a
//     one period settlement lag.
//   - attribution: Brinson allocation, selection and interaction effects
//     versus a benchmark, per sector and period.
//
// This package ties them together: it reads the strategy configuration, runs
// the backtest and its attribution, and exports the results. It serves as the
// foundational logic for the `rebal` command-line tool.
package rebalance
