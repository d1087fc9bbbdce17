package app

import (
	"fmt"
	"strings"
	"time"

	"whatsnew/internal/config"
	"whatsnew/internal/notifier"
	"whatsnew/internal/storage"
	"whatsnew/internal/transport/changelogapi"
	"whatsnew/internal/version"
	logx "whatsnew/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := cfg.EffectiveNotifier()

	retryBase, err := config.ParseDurationOrDefault("notifier.retry_base", nc.RetryBase, 500*time.Millisecond)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMax, err := config.ParseDurationOrDefault("notifier.retry_max_delay", nc.RetryMaxDelay, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	dedup, err := config.ParseDurationField("notifier.dedup_window", nc.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}

	return notifier.Config{
		Enabled:         nc.Enabled,
		Workers:         nc.Workers,
		QueueSize:       nc.QueueSize,
		RatePerSec:      nc.RatePerSec,
		RetryMax:        nc.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMax,
		DedupWindow:     dedup,
		DedupMaxEntries: nc.DedupMaxEntries,
		PersistDedup:    nc.PersistDedup,
	}, nil
}

func mapChangelogConfig(cfg *config.Config) (changelogapi.Config, error) {
	timeout, err := config.ParseDurationOrDefault("changelog.timeout", cfg.Changelog.Timeout, changelogapi.DefaultTimeout)
	if err != nil {
		return changelogapi.Config{}, err
	}
	return changelogapi.Config{
		Endpoint: strings.TrimSpace(cfg.Changelog.Endpoint),
		Timeout:  timeout,
	}, nil
}

// buildInfo returns the compiled-in build with config overrides applied.
func buildInfo(cfg *config.Config) version.Build {
	b := version.Current()
	if s := strings.TrimSpace(cfg.Changelog.AppName); s != "" {
		b.AppName = s
	}
	if s := strings.TrimSpace(cfg.Changelog.Link); s != "" {
		b.ChangelogLink = s
	}
	return b
}
