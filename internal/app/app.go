package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"whatsnew/internal/changelog"
	"whatsnew/internal/config"
	"whatsnew/internal/eventbus"
	"whatsnew/internal/notifier"
	rtsup "whatsnew/internal/runtime/supervisor"
	"whatsnew/internal/session"
	"whatsnew/internal/storage"
	kit "whatsnew/internal/transport"
	"whatsnew/internal/transport/changelogapi"
	"whatsnew/internal/transport/telegram"
	"whatsnew/internal/version"
	logx "whatsnew/pkg/logx"
	"whatsnew/pkg/systemd"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store  storage.Store
	marker *storage.VersionMarker

	adapter kit.Adapter
	notif   *notifier.Service
	remote  changelog.Requester
	sess    *session.Session

	build   version.Build
	catalog changelog.Catalog

	messages chan kit.Message
}

// Deps replaces the components NewApp would otherwise build from config.
// Nil fields are built as usual.
type Deps struct {
	Adapter   kit.Adapter
	Requester changelog.Requester
	Build     *version.Build
}

func NewApp(cfgPath string) (*App, error) {
	return NewAppWith(cfgPath, Deps{})
}

func NewAppWith(cfgPath string, deps Deps) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	catalog, err := changelog.DefaultCatalog()
	if err != nil {
		return nil, err
	}

	build := buildInfo(cfg)
	if deps.Build != nil {
		build = *deps.Build
	}

	ad := deps.Adapter
	if ad == nil {
		pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		tg, err := telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			PollTimeout: pollTimeout,
		}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		ad = tg
	}

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notifSvc := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), bus, store)

	sess := session.New(session.Config{
		Owner: kit.ChatTarget{ChatID: cfg.Telegram.OwnerChatID, ThreadID: cfg.Telegram.ThreadID},
	}, ad, notifSvc, bus, log)

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		marker:   storage.NewVersionMarker(store),
		adapter:  ad,
		notif:    notifSvc,
		remote:   deps.Requester,
		sess:     sess,
		build:    build,
		catalog:  catalog,
		messages: make(chan kit.Message, 64),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})
	runCtx := a.sup.Context()

	// The marker must be recorded before the gate consumes it.
	if err := a.marker.Record(runCtx, a.build.Current); err != nil {
		if errors.Is(err, storage.ErrDisabled) {
			a.log.Info("storage disabled; release notes will not be shown")
		} else {
			a.log.Warn("record app version failed", logx.Err(err))
		}
	}

	if a.notif.Enabled() {
		a.notif.Start(runCtx)
	}
	if err := a.adapter.Start(runCtx, a.messages); err != nil {
		return err
	}

	if err := a.attachChangelogs(runCtx); err != nil {
		return err
	}

	a.sup.Go0("session.run", func(c context.Context) { a.sess.Run(c, a.messages) })
	a.sup.GoRestart("session.load", a.sess.LoadChats,
		rtsup.WithRestartBackoff(time.Second, time.Minute),
		rtsup.WithStopOnCleanExit(true),
	)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if _, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	}
	if _, err := systemd.Status("running %s (%s)", version.Display(a.build.Current), a.build.Channel()); err != nil {
		a.log.Debug("sd_notify status failed", logx.Err(err))
	}
	a.log.Info("app started",
		logx.String("version", version.Display(a.build.Current)),
		logx.String("channel", a.build.Channel()),
	)
	return nil
}

func (a *App) attachChangelogs(ctx context.Context) error {
	req := a.remote
	if req == nil {
		cc, err := mapChangelogConfig(a.cfgm.Get())
		if err != nil {
			return err
		}
		if cc.Endpoint == "" {
			req = localOnly{}
		} else {
			client, err := changelogapi.New(ctx, cc, a.log)
			if err != nil {
				return err
			}
			req = client
		}
		a.remote = req
	}

	a.sess.AttachChangelogs(changelog.Create(ctx, a.marker, changelog.Deps{
		Bus:       a.bus,
		Requester: req,
		Applier:   a.sess,
		Sink:      a.sess,
		Build:     a.build,
		Catalog:   a.catalog,
		Log:       a.log,
	}))
	return nil
}

// localOnly answers every changelog request with an empty batch, so only the
// bundled notes are shown.
type localOnly struct{}

func (localOnly) RequestChangelog(_ context.Context, _ string, done func(changelog.Response)) {
	go done(changelog.Response{Kind: changelog.KindCombinedUpdates})
}

func (a *App) reloadLoop(c context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}

			sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Info("config reloaded (no changes)")
				continue
			}

			a.logs.Apply(mapLogConfig(newCfg))
			if config.NeedsRestart(sections) {
				a.log.Warn("config changed; restart required for changes to take effect",
					logx.String("changed", strings.Join(sections, ",")))
			}
			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Info("config reloaded", fields...)
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := systemd.Stopping(); err != nil {
		a.log.Debug("sd_notify stopping failed", logx.Err(err))
	}
	_, _ = systemd.Status("stopping: %s", reason)

	a.sup.Cancel()

	// Each step gets an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("session", time.Second, func(context.Context) error { a.sess.Close(); return nil })
	step("changelog", 2*time.Second, func(c context.Context) error {
		if cl, ok := a.remote.(interface{ Close(context.Context) error }); ok {
			return cl.Close(c)
		}
		return nil
	})
	// The notifier outlives the run context; queued notices get this window to go out.
	step("notifier", 5*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error {
		if err := a.sup.Wait(c); err != nil {
			return fmt.Errorf("%w (%d goroutines left)", err, a.sup.Active())
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
