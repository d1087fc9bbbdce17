package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks fields that would otherwise fail late at startup.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if cfg.Telegram.OwnerChatID == 0 {
		errs = append(errs, errors.New("telegram.owner_chat_id is required"))
	}
	if cfg.Telegram.ThreadID < 0 {
		errs = append(errs, errors.New("telegram.thread_id must be >= 0"))
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		errs = append(errs, errors.New("logging.file.path is required when file logging is enabled"))
	}

	if ep := strings.TrimSpace(cfg.Changelog.Endpoint); ep != "" {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("changelog.endpoint: invalid url %q", ep))
		}
	}
	if _, err := ParseDurationField("changelog.timeout", cfg.Changelog.Timeout); err != nil {
		errs = append(errs, err)
	}

	if n := cfg.Notifier; n != nil {
		for path, raw := range map[string]string{
			"notifier.retry_base":      n.RetryBase,
			"notifier.retry_max_delay": n.RetryMaxDelay,
			"notifier.dedup_window":    n.DedupWindow,
		} {
			if _, err := ParseDurationField(path, raw); err != nil {
				errs = append(errs, err)
			}
		}
		if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 {
			errs = append(errs, errors.New("notifier: counts must be >= 0"))
		}
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(s.Path) == "" {
				errs = append(errs, errors.New("storage.path is required"))
			}
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
