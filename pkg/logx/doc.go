// Package logx configures shakethefrog's structured logging.
//
// Logger is a small value type over zerolog:
//   - Console output stays readable (short timestamp + short caller)
//   - File output is JSON, one event per line
//   - Service swaps sinks and levels at runtime on config reload
package logx
