// Package notifier delivers service notices to a chat.
//
// A notice is a finished block of text addressed to a chat (optionally a
// forum thread). Notify only enqueues; a small worker pool drains the queue
// under a token-bucket rate limit and retries failed sends with jittered
// exponential backoff.
//
// # Idempotency
//
// Every notice carries a dedup key (explicit, or derived from target + text).
// A key that was delivered inside the dedup window is suppressed. With
// PersistDedup the suppression survives process restarts through
// storage.Store, so a notice queued again after a crash is not shown twice.
package notifier
