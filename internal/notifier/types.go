package notifier

import (
	"time"

	kit "whatsnew/internal/transport"
)

// Config controls the async notice pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

// Notice is one message to deliver.
type Notice struct {
	Target  kit.ChatTarget
	Text    string
	Options *kit.SendOptions
	// Key overrides the content-derived dedup key.
	Key string
}

// Event is the payload of notifier.* bus events.
type Event struct {
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	Key      string    `json:"key"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}
