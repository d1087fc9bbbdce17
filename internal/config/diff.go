package config

import (
	"reflect"
	"sort"
	"strings"

	logx "whatsnew/pkg/logx"
)

// DefaultNotifier is the effective notifier section when it is omitted.
func DefaultNotifier() NotifierConfig {
	return NotifierConfig{
		Enabled:         true,
		Workers:         2,
		QueueSize:       256,
		RatePerSec:      3,
		RetryMax:        3,
		RetryBase:       "500ms",
		RetryMaxDelay:   "10s",
		DedupWindow:     "720h",
		DedupMaxEntries: 2000,
		PersistDedup:    true,
	}
}

// EffectiveNotifier returns the configured notifier section or the defaults.
func (c *Config) EffectiveNotifier() NotifierConfig {
	if c == nil || c.Notifier == nil {
		return DefaultNotifier()
	}
	return *c.Notifier
}

// SummarizeConfigChange returns the changed sections (sorted) and safe
// structured attrs for logging. Secrets are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.OwnerChatID != nt.OwnerChatID || ot.ThreadID != nt.ThreadID ||
		strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
			logx.Int64("telegram.owner_chat_id", nt.OwnerChatID),
			logx.Int("telegram.thread_id", nt.ThreadID),
			logx.String("telegram.poll_timeout", strings.TrimSpace(nt.PollTimeout)),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Changelog != newCfg.Changelog {
		changed = append(changed, "changelog")
		attrs = append(attrs,
			logx.String("changelog.endpoint", newCfg.Changelog.Endpoint),
			logx.String("changelog.timeout", newCfg.Changelog.Timeout),
		)
	}

	oldN, newN := oldCfg.EffectiveNotifier(), newCfg.EffectiveNotifier()
	if !reflect.DeepEqual(oldN, newN) {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newN.Enabled),
			logx.Int("notifier.workers", newN.Workers),
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Bool("notifier.persist_dedup", newN.PersistDedup),
		)
	}

	var oldS, newS StorageConfig
	if oldCfg.Storage != nil {
		oldS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newS = *newCfg.Storage
	}
	if oldS != newS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// NeedsRestart reports whether any changed section only takes effect on the
// next start. Logging is applied live.
func NeedsRestart(changed []string) bool {
	for _, s := range changed {
		if s != "logging" {
			return true
		}
	}
	return false
}
