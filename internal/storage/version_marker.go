package storage

import (
	"context"
	"fmt"
	"strconv"

	"whatsnew/internal/version"
)

const (
	metaAppVersion = "app_version"
	metaOldVersion = "old_version"
)

// VersionMarker tracks which build last ran and, after an upgrade or
// downgrade, which build ran before it. The old-version marker persists until
// ClearOldVersion so a crash before the session loads does not lose it.
type VersionMarker struct {
	store Store
}

func NewVersionMarker(st Store) *VersionMarker { return &VersionMarker{store: st} }

// Record notes the running build. When the stored build differs from current,
// the stored one becomes the old-version marker.
func (m *VersionMarker) Record(ctx context.Context, current version.Version) error {
	if m == nil || m.store == nil {
		return ErrDisabled
	}
	prev, err := m.getVersion(ctx, metaAppVersion)
	if err != nil {
		return err
	}
	if prev == current {
		return nil
	}
	if prev > 0 {
		if err := m.store.PutMeta(ctx, metaOldVersion, strconv.Itoa(int(prev))); err != nil {
			return fmt.Errorf("store old version: %w", err)
		}
	}
	if err := m.store.PutMeta(ctx, metaAppVersion, strconv.Itoa(int(current))); err != nil {
		return fmt.Errorf("store app version: %w", err)
	}
	return nil
}

// OldVersion returns the pending old-version marker, or 0 if none.
func (m *VersionMarker) OldVersion(ctx context.Context) (version.Version, error) {
	if m == nil || m.store == nil {
		return 0, nil
	}
	return m.getVersion(ctx, metaOldVersion)
}

func (m *VersionMarker) ClearOldVersion(ctx context.Context) error {
	if m == nil || m.store == nil {
		return nil
	}
	return m.store.DeleteMeta(ctx, metaOldVersion)
}

func (m *VersionMarker) getVersion(ctx context.Context, key string) (version.Version, error) {
	raw, ok, err := m.store.GetMeta(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		// A corrupt value must not block startup; treat as absent.
		return 0, nil
	}
	return version.Version(n), nil
}
