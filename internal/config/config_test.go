package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  owner_chat_id: 42
  thread_id: 7
  poll_timeout: 10s
logging:
  level: info
  console: true
changelog:
  endpoint: https://example.org/changelog
  timeout: 5s
storage:
  driver: file
  path: ./state
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestParseYAML(t *testing.T) {
	m := NewConfigManager(writeFile(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Telegram.OwnerChatID)
	assert.Equal(t, 7, cfg.Telegram.ThreadID)
	assert.Equal(t, "https://example.org/changelog", cfg.Changelog.Endpoint)
	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Nil(t, cfg.Notifier)
	assert.Same(t, cfg, m.Get())
	require.NoError(t, Validate(cfg))
}

func TestParseJSONRejectsUnknownFields(t *testing.T) {
	m := NewConfigManager(writeFile(t, "config.json", `{"telegram":{"token":"x","owner_chat_id":1},"plugins":{}}`))
	_, err := m.Parse()
	assert.ErrorContains(t, err, "unknown field")
}

func TestParseRejectsTrailingData(t *testing.T) {
	m := NewConfigManager(writeFile(t, "config.json", `{} {}`))
	_, err := m.Parse()
	assert.ErrorContains(t, err, "trailing data")
}

func TestValidate(t *testing.T) {
	err := Validate(&Config{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "telegram.token")
	assert.ErrorContains(t, err, "telegram.owner_chat_id")

	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t", OwnerChatID: 1, PollTimeout: "soon"},
		Changelog: ChangelogConfig{Endpoint: "ftp://x"},
		Storage:   &StorageConfig{Driver: "redis"},
	}
	err = Validate(cfg)
	assert.ErrorContains(t, err, "telegram.poll_timeout")
	assert.ErrorContains(t, err, "changelog.endpoint")
	assert.ErrorContains(t, err, "storage.driver")
}

func TestDurations(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	d, err = ParseDurationOrDefault("x", "0s", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	d, err = ParseDurationField("x", " 2m ")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	_, err = ParseDurationField("x", "-1s")
	assert.ErrorContains(t, err, "x: duration must be >= 0")
}

func TestSummarizeConfigChange(t *testing.T) {
	a := &Config{Telegram: TelegramConfig{Token: "secret", OwnerChatID: 1}}
	b := *a
	b.Logging.Level = "debug"

	changed, _ := SummarizeConfigChange(a, &b)
	assert.Equal(t, []string{"logging"}, changed)
	assert.False(t, NeedsRestart(changed))

	c := b
	c.Telegram.Token = "other"
	c.Storage = &StorageConfig{Driver: "sqlite", Path: "x.db"}
	changed, attrs := SummarizeConfigChange(&b, &c)
	assert.Equal(t, []string{"storage", "telegram"}, changed)
	assert.True(t, NeedsRestart(changed))
	assert.NotEmpty(t, attrs)

	changed, _ = SummarizeConfigChange(a, a)
	assert.Empty(t, changed)
}

func TestSubscribeKeepsLatest(t *testing.T) {
	m := NewConfigManager("unused.json")
	ch := m.Subscribe(1)
	first, second := &Config{}, &Config{}
	m.publish(first)
	m.publish(second)
	assert.Same(t, second, <-ch)

	m.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestWatchPublishesReload(t *testing.T) {
	path := writeFile(t, "config.yaml", sampleYAML)
	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML+"  busy_timeout: 2s\n"), 0o600))

	select {
	case cfg := <-ch:
		assert.Equal(t, "2s", cfg.Storage.BusyTimeout)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload published")
	}
	cancel()
	<-done
}
