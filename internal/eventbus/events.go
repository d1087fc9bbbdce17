package eventbus

// Event types published by the session and the notice pipeline.
const (
	// TypeChatsListChanged fires whenever a chat list finishes (re)loading.
	TypeChatsListChanged = "chats.list_changed"
	// TypeUpdatesApplied fires after a server updates batch was applied.
	TypeUpdatesApplied = "updates.applied"

	TypeNoticeQueued  = "notifier.queued"
	TypeNoticeDeduped = "notifier.deduped"
	TypeNoticeDropped = "notifier.dropped"
	TypeNoticeSent    = "notifier.sent"
	TypeNoticeFailed  = "notifier.failed"
)

// ChatsListChanged is the payload of TypeChatsListChanged.
// FolderID is zero for the top-level list.
type ChatsListChanged struct {
	FolderID int64 `json:"folder_id,omitempty"`
	Chats    int   `json:"chats"`
}

// TopLevel reports whether the event refers to the main chat list.
func (c ChatsListChanged) TopLevel() bool { return c.FolderID == 0 }

// UpdatesApplied is the payload of TypeUpdatesApplied.
type UpdatesApplied struct {
	Kind    string `json:"kind"`
	Updates int    `json:"updates"`
	Shown   int    `json:"shown"`
}
