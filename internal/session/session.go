// Package session is the owner's client session: it loads the chat list,
// applies server updates and shows service notices in the owner's chat.
package session

import (
	"context"
	"fmt"
	"sync"

	"whatsnew/internal/changelog"
	"whatsnew/internal/eventbus"
	"whatsnew/internal/notifier"
	kit "whatsnew/internal/transport"
	logx "whatsnew/pkg/logx"
)

// Notices accepts notices for asynchronous delivery.
type Notices interface {
	Notify(ctx context.Context, n notifier.Notice) error
}

type Config struct {
	Owner kit.ChatTarget
}

type Session struct {
	cfg     Config
	loader  kit.ChatLoader
	notices Notices
	bus     eventbus.Bus
	log     logx.Logger

	mu         sync.Mutex
	chats      map[int64]kit.Chat
	changelogs *changelog.Notifier
	closed     bool
}

func New(cfg Config, loader kit.ChatLoader, notices Notices, bus eventbus.Bus, log logx.Logger) *Session {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Session{
		cfg:     cfg,
		loader:  loader,
		notices: notices,
		bus:     bus,
		log:     log.With(logx.String("comp", "session")),
		chats:   map[int64]kit.Chat{},
	}
}

// LoadChats (re)loads the top-level chat list and announces it on the bus.
func (s *Session) LoadChats(ctx context.Context) error {
	if s.loader == nil {
		return fmt.Errorf("session: no chat loader")
	}
	chat, err := s.loader.LoadChat(ctx, s.cfg.Owner.ChatID)
	if err != nil {
		return fmt.Errorf("load owner chat: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.chats[chat.ID] = chat
	n := len(s.chats)
	s.mu.Unlock()

	s.log.Debug("chat list loaded", logx.Int("chats", n), logx.String("owner", chat.Title))
	s.publish(eventbus.TypeChatsListChanged, eventbus.ChatsListChanged{Chats: n})
	return nil
}

// ApplyUpdates shows the service notifications carried by r.
func (s *Session) ApplyUpdates(ctx context.Context, r changelog.Response) {
	shown := 0
	for _, u := range r.Updates {
		if u.Type != changelog.TypeServiceNotification || u.Message == "" {
			continue
		}
		s.ServiceNotification(ctx, u.Message)
		shown++
	}
	s.publish(eventbus.TypeUpdatesApplied, eventbus.UpdatesApplied{
		Kind:    r.Kind.String(),
		Updates: len(r.Updates),
		Shown:   shown,
	})
}

// ServiceNotification queues text for the owner's chat. Failures are logged.
func (s *Session) ServiceNotification(ctx context.Context, text string) {
	if s.notices == nil || text == "" {
		return
	}
	err := s.notices.Notify(ctx, notifier.Notice{Target: s.cfg.Owner, Text: text})
	if err != nil {
		s.log.Warn("service notification not queued", logx.Err(err))
	}
}

// AttachChangelogs hands the changelog notifier to the session, which closes
// it together with itself. A nil n is ignored.
func (s *Session) AttachChangelogs(n *changelog.Notifier) {
	if n == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		n.Close()
		return
	}
	prev := s.changelogs
	s.changelogs = n
	s.mu.Unlock()
	prev.Close()
}

// HandleMessage reacts to an incoming message. Activity in the owner's chat
// refreshes the chat list.
func (s *Session) HandleMessage(ctx context.Context, m kit.Message) {
	if m.ChatID != s.cfg.Owner.ChatID {
		return
	}
	if err := s.LoadChats(ctx); err != nil {
		s.log.Warn("chat reload failed", logx.Err(err))
	}
}

// Run consumes messages until ctx is done or in is closed.
func (s *Session) Run(ctx context.Context, in <-chan kit.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			s.HandleMessage(ctx, m)
		}
	}
}

// Close releases the changelog notifier. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	n := s.changelogs
	s.changelogs = nil
	s.mu.Unlock()
	n.Close()
}

func (s *Session) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
