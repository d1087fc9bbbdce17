package changelog

import (
	"context"
	"sync"

	"whatsnew/internal/eventbus"
	"whatsnew/internal/version"
	logx "whatsnew/pkg/logx"
)

type State int

const (
	StateAwaitingReady State = iota
	StateFetchInFlight
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateAwaitingReady:
		return "awaiting_ready"
	case StateFetchInFlight:
		return "fetch_in_flight"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Notifier shows release notes once for one upgrade. It lives as long as the
// session and is released with Close.
type Notifier struct {
	ctx  context.Context
	old  version.Version
	deps Deps
	log  logx.Logger
	life lifetime

	mu             sync.Mutex
	state          State
	addedSomeLocal bool
	closed         bool
	unsub          func()
}

func newNotifier(ctx context.Context, old version.Version, deps Deps) *Notifier {
	n := &Notifier{
		// Requests outlive Close; only the callback is guarded.
		ctx:  context.WithoutCancel(ctx),
		old:  old,
		deps: deps,
		log:  deps.Log,
	}
	ch, unsub := deps.Bus.Subscribe(4, eventbus.TypeChatsListChanged)
	n.unsub = unsub
	go n.watch(ch)
	return n
}

func (n *Notifier) watch(ch <-chan eventbus.Event) {
	for ev := range ch {
		if ev.Type != eventbus.TypeChatsListChanged {
			continue
		}
		if !topLevel(ev.Data) {
			continue
		}
		n.requestCloudLogs()
		return
	}
}

func topLevel(data any) bool {
	switch p := data.(type) {
	case eventbus.ChatsListChanged:
		return p.TopLevel()
	case *eventbus.ChatsListChanged:
		return p != nil && p.TopLevel()
	default:
		return false
	}
}

func (n *Notifier) requestCloudLogs() {
	n.mu.Lock()
	if n.closed || n.state != StateAwaitingReady {
		n.mu.Unlock()
		return
	}
	n.state = StateFetchInFlight
	unsub := n.unsub
	n.unsub = nil
	n.mu.Unlock()

	if unsub != nil {
		unsub()
	}

	prev := version.Precise(n.old)
	n.log.Debug("requesting remote changelog", logx.String("prev", prev))
	n.deps.Requester.RequestChangelog(n.ctx, prev, wrap(&n.life, n.onResponse))
}

func (n *Notifier) onResponse(r Response) {
	n.mu.Lock()
	if n.state != StateFetchInFlight {
		n.mu.Unlock()
		return
	}
	n.state = StateResolved
	n.mu.Unlock()

	if n.deps.Applier != nil {
		n.deps.Applier.ApplyUpdates(n.ctx, r)
	}

	empty, err := classify(r)
	if err != nil {
		n.log.Error(err.Error(), logx.String("kind", r.Kind.String()))
	}
	if empty {
		n.addLocalLogs()
	}
}

func (n *Notifier) addLocalLogs() {
	notes := LocalNotes(n.deps.Build, n.old, n.deps.Catalog)
	n.log.Info("showing local changelog", logx.Int("notes", len(notes)))
	for _, text := range notes {
		n.addLocalLog(text)
	}
}

func (n *Notifier) addLocalLog(text string) {
	n.deps.Sink.ServiceNotification(n.ctx, text)
	n.mu.Lock()
	n.addedSomeLocal = true
	n.mu.Unlock()
}

// Close releases the readiness subscription and makes a pending response a
// no-op. It blocks while a response is being processed. Idempotent.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.life.destroy()

	n.mu.Lock()
	n.closed = true
	unsub := n.unsub
	n.unsub = nil
	n.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// AddedSomeLocal reports whether any local note was emitted.
func (n *Notifier) AddedSomeLocal() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addedSomeLocal
}

func (n *Notifier) OldVersion() version.Version { return n.old }
