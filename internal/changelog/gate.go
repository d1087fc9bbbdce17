package changelog

import (
	"context"

	"whatsnew/internal/eventbus"
	"whatsnew/internal/version"
	logx "whatsnew/pkg/logx"
)

// Sink shows a service notice to the user. Delivery is fire-and-forget.
type Sink interface {
	ServiceNotification(ctx context.Context, text string)
}

// Requester fetches the remote changelog for the given previous version.
// done is invoked at most once, and only when a response was decoded.
type Requester interface {
	RequestChangelog(ctx context.Context, prevVersion string, done func(Response))
}

// UpdateApplier applies a server updates batch to the session.
type UpdateApplier interface {
	ApplyUpdates(ctx context.Context, r Response)
}

// VersionMarker is the persisted "version before upgrade" marker.
type VersionMarker interface {
	OldVersion(ctx context.Context) (version.Version, error)
	ClearOldVersion(ctx context.Context) error
}

type Deps struct {
	Bus       eventbus.Bus
	Requester Requester
	Applier   UpdateApplier
	Sink      Sink
	Build     version.Build
	Catalog   Catalog
	Log       logx.Logger
}

// ShouldNotify reports whether an upgrade from old to current shows release notes.
func ShouldNotify(old, current version.Version) bool {
	return old > 0 && old < current
}

// Create consumes the old-version marker and returns a Notifier when the client
// was upgraded, nil otherwise. The marker is cleared in every case.
func Create(ctx context.Context, marker VersionMarker, deps Deps) *Notifier {
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "changelog"))
	deps.Log = log

	var old version.Version
	if marker != nil {
		v, err := marker.OldVersion(ctx)
		if err != nil {
			log.Warn("read old version failed", logx.Err(err))
		} else {
			old = v
		}
		if err := marker.ClearOldVersion(ctx); err != nil {
			log.Warn("clear old version failed", logx.Err(err))
		}
	}

	if !ShouldNotify(old, deps.Build.Current) {
		log.Debug("no changelog for this start",
			logx.Int("old", int(old)),
			logx.Int("current", int(deps.Build.Current)),
		)
		return nil
	}
	if deps.Bus == nil || deps.Requester == nil || deps.Sink == nil {
		log.Warn("changelog dependencies missing, skipping")
		return nil
	}

	log.Info("client upgraded",
		logx.String("from", version.Display(old)),
		logx.String("to", version.Display(deps.Build.Current)),
		logx.String("channel", deps.Build.Channel()),
	)
	return newNotifier(ctx, old, deps)
}
