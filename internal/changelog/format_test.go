package changelog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsnew/internal/version"
)

func TestNormalizeBullets(t *testing.T) {
	cases := map[string]struct {
		in, want string
	}{
		"leading and inner": {"- first\n- second", "• first\n• second"},
		"trimmed":           {"\n\n  - only\n", "• only"},
		"no leading dash":   {"intro\n- item", "intro\n• item"},
		"dash mid line":     {"a - b\n-c", "a - b\n-c"},
		"empty":             {"   ", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeBullets(tc.in))
		})
	}
}

func TestFormatBetaNote(t *testing.T) {
	got := FormatBetaNote(BetaNote{Threshold: 2009013, Body: "- See unread comments count.\n"})
	assert.Equal(t, "New in version 2.9.13 beta:\n\n• See unread comments count.", got)

	got = FormatBetaNote(BetaNote{Threshold: 2009000, Body: "- x"})
	assert.Equal(t, "New in version 2.9 beta:\n\n• x", got)
}

func TestGenericNote(t *testing.T) {
	b := version.Build{Current: 2009000, AppName: "App", ChangelogLink: "https://example.org/log"}
	assert.Equal(t,
		"App was updated to version 2.9\n\n— Bug fixes and other minor improvements\n\nFull version history is available here:\nhttps://example.org/log",
		GenericNote(b))
}

func TestLocalNotes(t *testing.T) {
	c := MustCatalog()
	beta := version.Build{Current: 2009013, Beta: true, AppName: "App", ChangelogLink: "l"}
	alpha := beta
	alpha.Beta, alpha.Alpha = false, true
	stable := beta
	stable.Beta = false

	notes := LocalNotes(beta, 2007006, c)
	require.Len(t, notes, 8)
	assert.True(t, strings.HasPrefix(notes[0], "New in version 2.7.7 beta:"))
	assert.True(t, strings.HasPrefix(notes[7], "New in version 2.9.13 beta:"))

	assert.Equal(t, notes, LocalNotes(alpha, 2007006, c))
	assert.Equal(t, []string{GenericNote(stable)}, LocalNotes(stable, 2007006, c))

	// Threshold equal to the old version is not shown again.
	notes = LocalNotes(beta, 2009005, c)
	require.Len(t, notes, 1)
	assert.True(t, strings.HasPrefix(notes[0], "New in version 2.9.13 beta:"))

	assert.Equal(t, []string{GenericNote(beta)}, LocalNotes(beta, 2009013, c))
}

func TestLocalNotesIsDeterministic(t *testing.T) {
	c := MustCatalog()
	b := version.Build{Current: 2009013, Beta: true, AppName: "App", ChangelogLink: "l"}
	assert.Equal(t, LocalNotes(b, 2007004, c), LocalNotes(b, 2007004, c))
	assert.Len(t, LocalNotes(b, 2007004, c), c.Len())
}
