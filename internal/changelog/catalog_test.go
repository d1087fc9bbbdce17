package changelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsnew/internal/version"
)

func TestEmbeddedCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	notes := c.Notes()
	require.Len(t, notes, 9)
	want := []version.Version{2007005, 2007007, 2007009, 2007010, 2008006, 2008012, 2009004, 2009005, 2009013}
	for i, n := range notes {
		assert.Equal(t, want[i], n.Threshold)
		assert.NotEmpty(t, n.Body)
	}
	assert.Contains(t, notes[4].Body, "Added a simple image editor. Crop photos")
}

func TestCatalogSince(t *testing.T) {
	c := MustCatalog()
	assert.Len(t, c.Since(0), 9)
	assert.Len(t, c.Since(2007006), 8)
	assert.Len(t, c.Since(2007007), 7)
	assert.Empty(t, c.Since(2009013))
}

func TestLoadCatalogSortsAndValidates(t *testing.T) {
	c, err := LoadCatalog([]byte(`
notes:
  - version: "2.0.2"
    body: "- b"
  - version: "2000001"
    body: "- a"
`))
	require.NoError(t, err)
	notes := c.Notes()
	require.Len(t, notes, 2)
	assert.Equal(t, version.Version(2000001), notes[0].Threshold)
	assert.Equal(t, version.Version(2000002), notes[1].Threshold)

	_, err = LoadCatalog([]byte("notes:\n  - version: \"2.0.1\"\n    body: x\n  - version: \"2000001\"\n    body: y\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = LoadCatalog([]byte("notes:\n  - version: \"2.0.1\"\n    body: \"  \"\n"))
	assert.ErrorContains(t, err, "empty body")

	_, err = LoadCatalog([]byte("notes:\n  - version: \"x.y\"\n    body: a\n"))
	assert.Error(t, err)

	_, err = LoadCatalog([]byte("notes:\n  - version: \"2.0.1\"\n    text: a\n"))
	assert.Error(t, err)
}

func TestCatalogNotesIsCopy(t *testing.T) {
	c := MustCatalog()
	notes := c.Notes()
	notes[0].Body = "changed"
	assert.NotEqual(t, "changed", c.Notes()[0].Body)
}
