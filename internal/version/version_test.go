package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplay(t *testing.T) {
	tests := map[string]struct {
		v    Version
		want string
	}{
		"with patch":      {v: 2007005, want: "2.7.5"},
		"patch elided":    {v: 2008000, want: "2.8"},
		"three digit":     {v: 2009013, want: "2.9.13"},
		"zero minor":      {v: 3000001, want: "3.0.1"},
		"zero everything": {v: 0, want: "0.0"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Display(tt.v))
		})
	}
}

func TestPrecise(t *testing.T) {
	assert.Equal(t, "2.8.0", Precise(2008000))
	assert.Equal(t, "2.7.6", Precise(2007006))
	assert.Equal(t, "2.9.13", Precise(2009013))
}

func TestComponents(t *testing.T) {
	v := Version(4014009)
	assert.Equal(t, 4, v.Major())
	assert.Equal(t, 14, v.Minor())
	assert.Equal(t, 9, v.Patch())
	assert.Equal(t, "4.14.9", v.String())
}

func TestParse(t *testing.T) {
	tests := map[string]struct {
		in      string
		want    Version
		wantErr bool
	}{
		"packed":          {in: "2009013", want: 2009013},
		"dotted":          {in: "2.9.13", want: 2009013},
		"dotted no patch": {in: "2.8", want: 2008000},
		"padded":          {in: " 2.7.6 ", want: 2007006},
		"empty":           {in: "", wantErr: true},
		"letters":         {in: "abc", wantErr: true},
		"too many parts":  {in: "1.2.3.4", wantErr: true},
		"minor overflow":  {in: "1.1000.0", wantErr: true},
		"negative":        {in: "-5", wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildChannel(t *testing.T) {
	assert.Equal(t, "stable", Build{}.Channel())
	assert.Equal(t, "beta", Build{Beta: true}.Channel())
	assert.Equal(t, "alpha", Build{Alpha: true, Beta: true}.Channel())
	assert.False(t, Build{}.Prerelease())
	assert.True(t, Build{Alpha: true}.Prerelease())
}

func TestCurrentUsesLinkedValues(t *testing.T) {
	prevV, prevC := appVersion, channel
	t.Cleanup(func() { appVersion, channel = prevV, prevC })

	appVersion, channel = "2.9.5", "Beta"
	b := Current()
	assert.Equal(t, Version(2009005), b.Current)
	assert.True(t, b.Beta)
	assert.False(t, b.Alpha)

	appVersion = "garbage"
	assert.Equal(t, Version(0), Current().Current)
}
