package notifier

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsnew/internal/eventbus"
	"whatsnew/internal/storage"
	kit "whatsnew/internal/transport"
	logx "whatsnew/pkg/logx"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	fails int
}

func (f *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return kit.MessageRef{}, errors.New("flaky")
	}
	f.sent = append(f.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func testConfig() Config {
	return Config{
		Enabled:       true,
		Workers:       1,
		QueueSize:     8,
		RatePerSec:    100,
		RetryMax:      2,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
		DedupWindow:   time.Hour,
	}
}

func stop(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestNotifyDeliversInOrder(t *testing.T) {
	snd := &fakeSender{}
	s := New(testConfig(), snd, logx.Nop(), nil, nil)
	s.Start(context.Background())

	target := kit.ChatTarget{ChatID: 42}
	require.NoError(t, s.Notify(context.Background(), Notice{Target: target, Text: "one"}))
	require.NoError(t, s.Notify(context.Background(), Notice{Target: target, Text: "two"}))
	stop(t, s)

	assert.Equal(t, []string{"one", "two"}, snd.texts())
}

func TestNotifyKeepsOrderPerTargetAcrossWorkers(t *testing.T) {
	snd := &fakeSender{fails: 1}
	cfg := testConfig()
	cfg.Workers = 2
	s := New(cfg, snd, logx.Nop(), nil, nil)
	s.Start(context.Background())

	target := kit.ChatTarget{ChatID: 42, ThreadID: 5}
	for _, text := range []string{"note 1", "note 2", "note 3"} {
		require.NoError(t, s.Notify(context.Background(), Notice{Target: target, Text: text}))
	}
	stop(t, s)

	assert.Equal(t, []string{"note 1", "note 2", "note 3"}, snd.texts())
}

func TestStopDrainsAfterRunContextCanceled(t *testing.T) {
	snd := &fakeSender{}
	cfg := testConfig()
	cfg.RatePerSec = 2
	s := New(cfg, snd, logx.Nop(), nil, nil)

	runCtx, cancelRun := context.WithCancel(context.Background())
	s.Start(runCtx)

	want := []string{"note 1", "note 2", "note 3", "note 4", "note 5"}
	for _, text := range want {
		require.NoError(t, s.Notify(context.Background(), Notice{Target: kit.ChatTarget{ChatID: 9}, Text: text}))
	}
	cancelRun()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)

	assert.Equal(t, want, snd.texts())
}

func TestShardIsStablePerTarget(t *testing.T) {
	a := kit.ChatTarget{ChatID: 100, ThreadID: 2}
	for n := 1; n <= 8; n++ {
		i := shard(a, n)
		assert.Equal(t, i, shard(a, n))
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, n)
	}
	assert.Equal(t, 0, shard(a, 0))
}

func TestNotifyDedupSuppressesRepeat(t *testing.T) {
	snd := &fakeSender{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	s := New(testConfig(), snd, logx.Nop(), bus, nil)
	s.Start(context.Background())

	n := Notice{Target: kit.ChatTarget{ChatID: 1}, Text: "hello"}
	require.NoError(t, s.Notify(context.Background(), n))
	require.NoError(t, s.Notify(context.Background(), n))
	stop(t, s)

	assert.Equal(t, []string{"hello"}, snd.texts())

	var deduped int
	for len(events) > 0 {
		if ev := <-events; ev.Type == eventbus.TypeNoticeDeduped {
			deduped++
		}
	}
	assert.Equal(t, 1, deduped)
}

func TestNotifyRetriesThenSucceeds(t *testing.T) {
	snd := &fakeSender{fails: 2}
	s := New(testConfig(), snd, logx.Nop(), nil, nil)
	s.Start(context.Background())

	require.NoError(t, s.Notify(context.Background(), Notice{Target: kit.ChatTarget{ChatID: 1}, Text: "x"}))
	stop(t, s)

	assert.Equal(t, []string{"x"}, snd.texts())
}

func TestFailedDeliveryReleasesDedupKey(t *testing.T) {
	snd := &fakeSender{fails: 3}
	cfg := testConfig()
	s := New(cfg, snd, logx.Nop(), nil, nil)
	s.Start(context.Background())

	n := Notice{Target: kit.ChatTarget{ChatID: 1}, Text: "x"}
	require.NoError(t, s.Notify(context.Background(), n))
	stop(t, s)
	require.Empty(t, snd.texts())

	s.Start(context.Background())
	require.NoError(t, s.Notify(context.Background(), n))
	stop(t, s)
	assert.Equal(t, []string{"x"}, snd.texts())
}

func TestPersistentDedupSurvivesRestart(t *testing.T) {
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "state")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	cfg := testConfig()
	cfg.PersistDedup = true
	n := Notice{Target: kit.ChatTarget{ChatID: 7}, Text: "once"}

	first := &fakeSender{}
	s1 := New(cfg, first, logx.Nop(), nil, st)
	s1.Start(context.Background())
	require.NoError(t, s1.Notify(context.Background(), n))
	stop(t, s1)
	require.Equal(t, []string{"once"}, first.texts())

	second := &fakeSender{}
	s2 := New(cfg, second, logx.Nop(), nil, st)
	s2.Start(context.Background())
	require.NoError(t, s2.Notify(context.Background(), n))
	stop(t, s2)
	assert.Empty(t, second.texts())
}

func TestNotifyStates(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	s := New(cfg, &fakeSender{}, logx.Nop(), nil, nil)
	assert.ErrorIs(t, s.Notify(context.Background(), Notice{Text: "x"}), ErrDisabled)

	s = New(testConfig(), &fakeSender{}, logx.Nop(), nil, nil)
	assert.ErrorIs(t, s.Notify(context.Background(), Notice{Text: "x"}), ErrStopped)
}

func TestDedupKey(t *testing.T) {
	a := Notice{Target: kit.ChatTarget{ChatID: 1}, Text: "x"}
	b := Notice{Target: kit.ChatTarget{ChatID: 1, ThreadID: 3}, Text: "x"}
	assert.Equal(t, DedupKey(a), DedupKey(a))
	assert.NotEqual(t, DedupKey(a), DedupKey(b))
}

func TestRetryDelayCapped(t *testing.T) {
	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}
	for attempt := 1; attempt < 10; attempt++ {
		d := retryDelay(cfg, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}
