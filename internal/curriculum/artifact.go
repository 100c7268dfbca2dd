// Package curriculum models the on-disk exercise series: numbered test
// artifacts discovered in a directory and the declared progress pointer.
//
// Artifact names follow "<major>[.<minor>].test.<ext>", for example
// "1.test.js", "1.1.test.js" or "20.test.py". Steps are ordered by the
// integer pair (major, minor) rather than by decimal value, so "1.10" sorts
// after "1.9" and "1.05" is distinct from "1.5".
package curriculum

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var artifactPattern = regexp.MustCompile(`^(\d+)(?:\.(\d+))?\.test\.([A-Za-z0-9]+)$`)

// Step is the ordering key parsed from an artifact identifier.
type Step struct {
	Major int
	Minor int
	// HasMinor distinguishes "1.test" from "1.0.test".
	HasMinor bool
	// minorText keeps the minor digits as written, for String.
	minorText string
}

// Compare orders steps by (Major, Minor). A step without a minor sorts
// before the same major with any explicit minor. Minors with the same value
// but different digits ("05" and "5") are ordered lexically.
func (s Step) Compare(o Step) int {
	switch {
	case s.Major != o.Major:
		return cmpInt(s.Major, o.Major)
	case s.HasMinor != o.HasMinor:
		if !s.HasMinor {
			return -1
		}
		return 1
	case s.Minor != o.Minor:
		return cmpInt(s.Minor, o.Minor)
	default:
		// "1.05" and "1.5" share a minor value; order them by the digits as written.
		return strings.Compare(s.minorText, o.minorText)
	}
}

// Less reports whether s orders strictly before o.
func (s Step) Less(o Step) bool { return s.Compare(o) < 0 }

func (s Step) String() string {
	if !s.HasMinor {
		return strconv.Itoa(s.Major)
	}
	return fmt.Sprintf("%d.%s", s.Major, s.minorText)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Artifact is one discovered test unit.
type Artifact struct {
	Identifier string // the filename, e.g. "1.1.test.js"
	Path       string // absolute path on disk; empty for synthetic artifacts
	Step       Step
	Extension  string // without the dot, e.g. "js"
}

// ParseIdentifier parses an artifact filename. ok is false when the name
// does not follow the naming convention.
func ParseIdentifier(name string) (Artifact, bool) {
	m := artifactPattern.FindStringSubmatch(name)
	if m == nil {
		return Artifact{}, false
	}

	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Artifact{}, false
	}

	step := Step{Major: major}
	if m[2] != "" {
		minor, err := strconv.Atoi(m[2])
		if err != nil {
			return Artifact{}, false
		}
		step.Minor = minor
		step.HasMinor = true
		step.minorText = m[2]
	}

	return Artifact{Identifier: name, Step: step, Extension: m[3]}, true
}

// Identifiers returns the identifiers of artifacts in order.
func Identifiers(artifacts []Artifact) []string {
	ids := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		ids = append(ids, a.Identifier)
	}
	return ids
}
