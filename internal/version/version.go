// Package version encodes client build versions.
//
// A Version packs major, minor and patch into one integer:
// major*1_000_000 + minor*1000 + patch. Zero means no installation.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

type Version int

func (v Version) Major() int { return int(v) / 1000000 }
func (v Version) Minor() int { return (int(v) % 1000000) / 1000 }
func (v Version) Patch() int { return int(v) % 1000 }

// Display returns "major.minor", with ".patch" appended only when patch is non-zero.
func Display(v Version) string {
	s := strconv.Itoa(v.Major()) + "." + strconv.Itoa(v.Minor())
	if p := v.Patch(); p != 0 {
		s += "." + strconv.Itoa(p)
	}
	return s
}

// Precise always returns "major.minor.patch".
func Precise(v Version) string {
	return strconv.Itoa(v.Major()) + "." + strconv.Itoa(v.Minor()) + "." + strconv.Itoa(v.Patch())
}

func (v Version) String() string { return Display(v) }

// Parse accepts the packed form ("2009013") or dotted form ("2.9.13", "2.9").
func Parse(raw string) (Version, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty version")
	}
	if !strings.Contains(s, ".") {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid version %q", raw)
		}
		return Version(n), nil
	}

	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid version %q: want major.minor[.patch]", raw)
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid version %q: bad component %q", raw, p)
		}
		if i > 0 && n > 999 {
			return 0, fmt.Errorf("invalid version %q: component %d out of range", raw, n)
		}
		nums[i] = n
	}
	return Version(nums[0]*1000000 + nums[1]*1000 + nums[2]), nil
}
