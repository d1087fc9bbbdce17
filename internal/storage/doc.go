// Package storage provides the small persistence layer used by the client.
//
// It currently supports:
//   - Meta key/value records (installed build, pending old-version marker)
//   - Notice dedup state (so a service notice survives restarts only once)
package storage
