package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestNotesTable(t *testing.T) {
	out := execute(t, "notes")
	assert.Contains(t, out, "Version")
	assert.Contains(t, out, "2.7.5")
	assert.Contains(t, out, "2009013")
}

func TestNotesSinceBeta(t *testing.T) {
	out := execute(t, "notes", "--since", "2.7.6", "--current", "2.9.13", "--beta")
	assert.Equal(t, 8, strings.Count(out, "beta:\n"))
	assert.Contains(t, out, "• Added a simple image editor.")
}

func TestNotesSinceStable(t *testing.T) {
	out := execute(t, "notes", "--since", "2.7.6", "--current", "2.9.13", "--beta=false")
	assert.Contains(t, out, "was updated to version 2.9.13")
	assert.NotContains(t, out, "beta:")
}

func TestNotesNotOlder(t *testing.T) {
	out := execute(t, "notes", "--since", "2.9.13", "--current", "2.9.13")
	assert.Contains(t, out, "no notes")
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "2.9.13")
}

func TestNotesRejectsBadVersion(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"notes", "--since", "x.y"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	assert.Error(t, cmd.Execute())
}
