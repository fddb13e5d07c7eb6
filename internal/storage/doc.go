// Package storage persists agendas, agenda items, routines and alarm plans.
//
// Drivers:
//   - "memory": process-local maps, the default and the test backend
//   - "file":   memory plus a JSON snapshot and an append-only item log journal
//   - "sqlite": modernc.org/sqlite with embedded migrations
//
// WithEvents wraps any Store and publishes entity change events on a bus.
package storage
