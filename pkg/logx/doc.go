// Package logx configures agendaengine's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional alert sink (min-level + rate limiting) that hands warnings
//     and errors to a pluggable AlertSender
package logx
