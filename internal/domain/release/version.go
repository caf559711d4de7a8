package release

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// versionDelimiter separates numeric segments in the text form of a version.
const versionDelimiter = "."

// Version is an immutable sequence of non-negative numeric segments
// ("1.2.3", "0.0.10", possibly more segments). Ordering is numeric per
// segment with missing trailing segments treated as zero, so "1.2" and
// "1.2.0" are equal.
type Version struct {
	// segments holds the parsed numeric segments in order of significance.
	segments []uint64
}

// ParseVersion parses the dotted text form of a version.
// It fails with ErrMalformedVersion unless the text is a non-empty sequence
// of non-negative integers separated by single dots. Segments with leading
// zeros are rejected so that the text form round-trips through String.
func ParseVersion(text string) (Version, error) {
	if text == "" {
		return Version{}, fmt.Errorf("%w: empty string", ErrMalformedVersion)
	}

	parts := strings.Split(text, versionDelimiter)
	segments := make([]uint64, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			return Version{}, fmt.Errorf("%w: %q has an empty segment", ErrMalformedVersion, text)
		}

		if len(part) > 1 && part[0] == '0' {
			return Version{}, fmt.Errorf("%w: %q has a leading zero", ErrMalformedVersion, text)
		}

		value, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q is not a numeric sequence", ErrMalformedVersion, text)
		}

		segments = append(segments, value)
	}

	return Version{segments: segments}, nil
}

// MustParseVersion is ParseVersion that panics on error. Intended for tests
// and compile-time constants.
func MustParseVersion(text string) Version {
	v, err := ParseVersion(text)
	if err != nil {
		panic(err)
	}

	return v
}

// IsZero reports whether the version is the zero value (never parsed).
func (v Version) IsZero() bool {
	return len(v.segments) == 0
}

// String renders the version in its dotted text form.
func (v Version) String() string {
	parts := make([]string, len(v.segments))
	for i, segment := range v.segments {
		parts[i] = strconv.FormatUint(segment, 10)
	}

	return strings.Join(parts, versionDelimiter)
}

// Compare orders two versions segment by segment, padding the shorter one
// with zeros. It returns -1 when v is lower, 0 when equal, and 1 when higher.
func (v Version) Compare(other Version) int {
	length := len(v.segments)
	if len(other.segments) > length {
		length = len(other.segments)
	}

	for i := 0; i < length; i++ {
		a := v.segmentAt(i)
		b := other.segmentAt(i)

		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}

	return 0
}

// Less reports whether v orders strictly before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Equal reports whether both versions denote the same release,
// treating missing trailing segments as zero.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// segmentAt returns the segment at index i, or zero past the end.
func (v Version) segmentAt(i int) uint64 {
	if i < len(v.segments) {
		return v.segments[i]
	}

	return 0
}

// MaxVersion returns the highest version of the provided set.
// It fails with ErrEmptyVersionSet on empty input.
func MaxVersion(versions []Version) (Version, error) {
	if len(versions) == 0 {
		return Version{}, ErrEmptyVersionSet
	}

	highest := versions[0]
	for _, candidate := range versions[1:] {
		if highest.Less(candidate) {
			highest = candidate
		}
	}

	return highest, nil
}

// SortVersionsAscending orders versions in place from lowest to highest.
func SortVersionsAscending(versions []Version) {
	slices.SortFunc(versions, Version.Compare)
}
