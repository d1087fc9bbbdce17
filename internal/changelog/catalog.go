package changelog

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"whatsnew/internal/version"
)

//go:embed beta_notes.yaml
var betaNotesYAML []byte

// BetaNote is one bundled release note, shown to prerelease users whose old
// version is below Threshold.
type BetaNote struct {
	Threshold version.Version
	Body      string
}

// Catalog is an immutable list of beta notes in ascending threshold order.
type Catalog struct {
	notes []BetaNote
}

type catalogFile struct {
	Notes []struct {
		Version string `yaml:"version"`
		Body    string `yaml:"body"`
	} `yaml:"notes"`
}

// LoadCatalog parses and validates a YAML catalog. Notes are sorted by
// threshold; duplicate thresholds and empty bodies are rejected.
func LoadCatalog(raw []byte) (Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Catalog{}, fmt.Errorf("decode beta notes: %w", err)
	}

	notes := make([]BetaNote, 0, len(f.Notes))
	for i, n := range f.Notes {
		v, err := version.Parse(n.Version)
		if err != nil {
			return Catalog{}, fmt.Errorf("beta note %d: %w", i, err)
		}
		if v <= 0 {
			return Catalog{}, fmt.Errorf("beta note %d: version must be positive", i)
		}
		if strings.TrimSpace(n.Body) == "" {
			return Catalog{}, fmt.Errorf("beta note %s: empty body", version.Display(v))
		}
		notes = append(notes, BetaNote{Threshold: v, Body: n.Body})
	}
	return NewCatalog(notes)
}

// NewCatalog builds a catalog from notes in any order.
func NewCatalog(notes []BetaNote) (Catalog, error) {
	out := append([]BetaNote(nil), notes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Threshold < out[j].Threshold })
	for i := 1; i < len(out); i++ {
		if out[i].Threshold == out[i-1].Threshold {
			return Catalog{}, fmt.Errorf("duplicate beta note for version %s", version.Display(out[i].Threshold))
		}
	}
	return Catalog{notes: out}, nil
}

var embedded = sync.OnceValues(func() (Catalog, error) {
	return LoadCatalog(betaNotesYAML)
})

// DefaultCatalog returns the catalog bundled into the binary.
func DefaultCatalog() (Catalog, error) { return embedded() }

// MustCatalog is DefaultCatalog for callers that treat a broken bundled asset
// as a programming error.
func MustCatalog() Catalog {
	c, err := embedded()
	if err != nil {
		panic(err)
	}
	return c
}

// Notes returns a copy of all notes in ascending order.
func (c Catalog) Notes() []BetaNote {
	return append([]BetaNote(nil), c.notes...)
}

func (c Catalog) Len() int { return len(c.notes) }

// Since returns the notes with Threshold > old, ascending.
func (c Catalog) Since(old version.Version) []BetaNote {
	i := sort.Search(len(c.notes), func(i int) bool { return c.notes[i].Threshold > old })
	return append([]BetaNote(nil), c.notes[i:]...)
}
