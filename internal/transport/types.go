package transport

import "context"

type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Message is an incoming text message.
type Message struct {
	ID       int
	ChatID   int64
	ThreadID int
	FromID   int64
	Text     string
}

// Chat is the resolved view of a conversation.
type Chat struct {
	ID    int64
	Title string
	Type  string
}

// Sender delivers text to a chat.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// ChatLoader resolves conversations by id.
type ChatLoader interface {
	LoadChat(ctx context.Context, chatID int64) (Chat, error)
}

type Adapter interface {
	Sender
	ChatLoader
	Start(ctx context.Context, out chan<- Message) error
	Stop(ctx context.Context) error
}
