// Package changelog decides whether an upgraded client shows release notes and
// produces them.
//
// At startup Create consumes the persisted old-version marker. When the client
// was upgraded (0 < old < current) it returns a Notifier which waits for the
// top-level chat list to load, requests the remote changelog once, and hands
// the response to the update applier. If the response carries no updates the
// notifier falls back to the bundled notes: beta notes newer than the old
// version on prerelease builds, otherwise a single generic notice.
package changelog
