package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Changelog ChangelogConfig `json:"changelog"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerChatID is the chat that receives service notices.
	OwnerChatID int64 `json:"owner_chat_id"`
	// ThreadID targets a forum topic inside the owner chat (0 = none).
	ThreadID int `json:"thread_id,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ChangelogConfig points at the remote changelog and overrides the wording of
// the generic notice. Empty Link/AppName keep the values compiled into the build.
type ChangelogConfig struct {
	Endpoint string `json:"endpoint"`
	// Timeout is a Go duration string; defaults to 10s.
	Timeout string `json:"timeout,omitempty"`
	Link    string `json:"link,omitempty"`
	AppName string `json:"app_name,omitempty"`
}

// NotifierConfig controls the async notice pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// If the whole section is omitted the notifier is enabled with defaults.
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// StorageConfig controls persistence of the version marker and notice dedup.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./whatsnew_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
