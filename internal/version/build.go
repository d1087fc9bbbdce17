package version

import "strings"

// Set at link time, e.g.
//
//	-ldflags "-X whatsnew/internal/version.appVersion=2009013 -X whatsnew/internal/version.channel=beta"
var (
	appVersion    = "2009013"
	channel       = "stable"
	appName       = "Telegram Desktop"
	changelogLink = "https://desktop.telegram.org/changelog"
)

// Build describes the running client build.
type Build struct {
	Current       Version
	Beta          bool
	Alpha         bool
	AppName       string
	ChangelogLink string
}

// Prerelease reports whether the build is a beta or alpha build.
func (b Build) Prerelease() bool { return b.Beta || b.Alpha }

// Channel returns "alpha", "beta" or "stable".
func (b Build) Channel() string {
	switch {
	case b.Alpha:
		return "alpha"
	case b.Beta:
		return "beta"
	default:
		return "stable"
	}
}

// Current returns the build compiled into the binary.
// A malformed ldflags version yields Current == 0, which disables the changelog gate.
func Current() Build {
	v, _ := Parse(appVersion)
	ch := strings.ToLower(strings.TrimSpace(channel))
	return Build{
		Current:       v,
		Beta:          ch == "beta",
		Alpha:         ch == "alpha",
		AppName:       appName,
		ChangelogLink: changelogLink,
	}
}
