package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"whatsnew/internal/eventbus"
	rtsup "whatsnew/internal/runtime/supervisor"
	"whatsnew/internal/storage"
	kit "whatsnew/internal/transport"
	logx "whatsnew/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

type job struct {
	n   Notice
	key string
}

// Service implements queue + worker pool + rate limit + retry + dedup.
// Notices for one chat target always go through the same worker, so they are
// delivered in the order Notify accepted them. It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender kit.Sender
	bus    eventbus.Bus
	store  storage.Store

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup
	queues    []chan job
	sup       *rtsup.Supervisor

	// key -> suppress until; set on enqueue, dropped again if delivery fails.
	dmu   sync.Mutex
	dedup map[string]time.Time
}

func New(cfg Config, sender kit.Sender, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log, bus: bus, store: store, dedup: map[string]time.Time{}}
	s.Apply(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply updates tunables. Worker count and queue size take effect on the next Start.
func (s *Service) Apply(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 2000
	}

	s.mu.Lock()
	s.cfg = cfg
	// Burst equals rate so short spikes of notices go out immediately.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	s.mu.Unlock()
}

// Start is idempotent. Workers keep running after ctx is canceled; only Stop
// ends them, so notices accepted before shutdown still get their drain window.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.queues != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}
	perWorker := max(s.cfg.QueueSize/s.cfg.Workers, 1)
	s.queues = make([]chan job, s.cfg.Workers)
	for i := range s.queues {
		s.queues[i] = make(chan job, perWorker)
	}
	s.accepting = true
	s.sup = rtsup.New(context.WithoutCancel(ctx),
		rtsup.WithLogger(s.log.With(logx.String("comp", "notifier"))),
		rtsup.WithCancelOnError(false),
	)
	queues, sup := s.queues, s.sup
	s.mu.Unlock()

	for i, q := range queues {
		sup.Go0(fmt.Sprintf("worker.%d", i), func(c context.Context) {
			for {
				select {
				case <-c.Done():
					return
				case j, ok := <-q:
					if !ok {
						return
					}
					s.deliver(c, j)
				}
			}
		})
	}
}

// Stop stops intake and drains the queues until ctx is done. Whatever is
// still pending at the deadline is abandoned.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.queues == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	queues, sup := s.queues, s.sup
	s.queues, s.sup = nil, nil
	s.mu.Unlock()

	s.sendWG.Wait()
	for _, q := range queues {
		close(q)
	}
	err := sup.Wait(ctx)
	sup.Cancel()
	if err != nil {
		pending := 0
		for _, q := range queues {
			pending += len(q)
		}
		s.log.Warn("notifier stop did not drain", logx.Err(err),
			logx.Int("pending", pending), logx.Int64("workers_left", sup.Active()))
	}
}

// Notify enqueues n. A notice already delivered (or pending) inside the dedup
// window is dropped silently and reported as success.
func (s *Service) Notify(ctx context.Context, n Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queues == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queues[shard(n.Target, len(s.queues))]
	cfg := s.cfg
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	key := n.Key
	if key == "" {
		key = DedupKey(n)
	}
	if cfg.DedupWindow > 0 && !s.dedupAllow(ctx, key, cfg) {
		s.publish(eventbus.TypeNoticeDeduped, n, key, nil)
		return nil
	}

	select {
	case q <- job{n: n, key: key}:
		s.publish(eventbus.TypeNoticeQueued, n, key, nil)
		return nil
	default:
		s.forget(key)
		s.publish(eventbus.TypeNoticeDropped, n, key, ErrQueueFull)
		return ErrQueueFull
	}
}

func (s *Service) deliver(ctx context.Context, j job) {
	s.mu.Lock()
	cfg, lim := s.cfg, s.limiter
	s.mu.Unlock()

	if s.sender == nil || j.n.Text == "" {
		return
	}

	attempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			s.forget(j.key)
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := s.sender.SendText(callCtx, j.n.Target, j.n.Text, j.n.Options)
		cancel()
		if err == nil {
			s.persist(ctx, j.key, cfg)
			s.publish(eventbus.TypeNoticeSent, j.n, j.key, nil)
			return
		}
		lastErr = err
		s.log.Debug("notice send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", attempts))
		if attempt == attempts {
			break
		}

		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			s.forget(j.key)
			return
		}
	}

	s.forget(j.key)
	s.log.Warn("notice delivery failed", logx.Err(lastErr), logx.Int64("chat_id", j.n.Target.ChatID))
	s.publish(eventbus.TypeNoticeFailed, j.n, j.key, lastErr)
}

// shard maps a chat target onto a worker queue.
func shard(t kit.ChatTarget, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%d:%d", t.ChatID, t.ThreadID)
	return int(h.Sum32() % uint32(n))
}

// DedupKey derives a stable key from the notice target and text.
func DedupKey(n Notice) string {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d:%d|", n.Target.ChatID, n.Target.ThreadID)
	_, _ = h.Write([]byte(n.Text))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) dedupAllow(ctx context.Context, key string, cfg Config) bool {
	now := time.Now()

	s.dmu.Lock()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		s.dmu.Unlock()
		return false
	}
	s.dmu.Unlock()

	if cfg.PersistDedup && s.store != nil {
		cctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		until, ok, err := s.store.GetDedup(cctx, key)
		cancel()
		if err != nil {
			s.log.Debug("dedup lookup failed", logx.Err(err))
		} else if ok && now.Before(until) {
			s.dmu.Lock()
			s.dedup[key] = until
			s.dmu.Unlock()
			return false
		}
	}

	s.dmu.Lock()
	defer s.dmu.Unlock()
	// Re-check: a concurrent Notify may have claimed the key meanwhile.
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	s.dedup[key] = now.Add(cfg.DedupWindow)
	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	for len(s.dedup) > cfg.DedupMaxEntries {
		var (
			oldest  string
			oldestT time.Time
		)
		for k, t := range s.dedup {
			if oldest == "" || t.Before(oldestT) {
				oldest, oldestT = k, t
			}
		}
		delete(s.dedup, oldest)
	}
	return true
}

func (s *Service) forget(key string) {
	s.dmu.Lock()
	delete(s.dedup, key)
	s.dmu.Unlock()
}

func (s *Service) persist(ctx context.Context, key string, cfg Config) {
	if !cfg.PersistDedup || s.store == nil || cfg.DedupWindow <= 0 {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.store.PutDedup(cctx, key, time.Now().Add(cfg.DedupWindow)); err != nil {
		s.log.Warn("dedup persist failed", logx.Err(err), logx.String("key", key))
	}
}

func (s *Service) publish(typ string, n Notice, key string, err error) {
	if s.bus == nil {
		return
	}
	now := time.Now()
	ev := Event{ChatID: n.Target.ChatID, ThreadID: n.Target.ThreadID, Key: key, At: now}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}

// retryDelay returns the wait before attempt+1: base * 2^(attempt-1), capped,
// with 0.7..1.3 jitter.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt && d < cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	return min(max(d, 0), cfg.RetryMaxDelay)
}
