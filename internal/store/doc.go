// Package store persists component instance state.
//
// State is owned by exactly one instance and keyed by its identity
// (org, app, stage, name). Three StateStore implementations are provided:
//
//   - SQLite: durable store used by the engine server. Every save bumps a
//     per-instance revision and appends to an append-only history table.
//   - FileStore: one JSON file per instance under ".serverless", used by
//     local runs.
//   - Memory: in-process store for tests and embedded use.
//
// A remote StateStore backed by the engine HTTP API lives in package rpc.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Stored state is canonical JSON (sorted keys, NFC strings), so saving equal
// state twice writes identical text.
package store
