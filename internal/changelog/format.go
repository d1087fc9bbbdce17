package changelog

import (
	"strings"

	"whatsnew/internal/version"
)

const (
	bullet       = "• "
	minorChanges = "— Bug fixes and other minor improvements"
)

// FormatBetaNote renders one beta note as shown to the user.
func FormatBetaNote(n BetaNote) string {
	return "New in version " + version.Display(n.Threshold) + " beta:\n\n" + normalizeBullets(n.Body)
}

// normalizeBullets trims s and turns "- " list markers into bullets. Only line
// starts are rewritten.
func normalizeBullets(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "- "); ok {
		s = bullet + rest
	}
	return strings.ReplaceAll(s, "\n- ", "\n"+bullet)
}

// GenericNote is the notice shown when no specific notes apply.
func GenericNote(b version.Build) string {
	text := b.AppName + " was updated to version " + version.Display(b.Current) + "\n\n" +
		minorChanges + "\n\n" +
		"Full version history is available here:\n" + b.ChangelogLink
	return strings.TrimSpace(text)
}

// LocalNotes returns the local fallback for an upgrade from old: the beta notes
// newer than old on prerelease builds, or one generic notice when there are none.
func LocalNotes(b version.Build, old version.Version, c Catalog) []string {
	var out []string
	if b.Prerelease() {
		for _, n := range c.Since(old) {
			out = append(out, FormatBetaNote(n))
		}
	}
	if len(out) == 0 {
		out = append(out, GenericNote(b))
	}
	return out
}
