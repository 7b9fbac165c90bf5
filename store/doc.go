// Package store provides Store adapters for the session Manager.
//
// Every adapter implements Get, Set and Remove plus the batch pair SetMany
// and RemoveMany, which write the token and user record as one unit:
//
//   - Memory keeps entries in a map. It can simulate write failures and is
//     the default for tests.
//   - File persists a single JSON object, rewritten atomically on every
//     change. It is the analogue of browser local storage for CLIs.
//   - Redis stores each key under a prefix and batches in MULTI/EXEC.
//   - SQL keeps a key/value table through bun and batches in a transaction.
//
// Absent keys are reported with ok=false and a nil error.
package store
