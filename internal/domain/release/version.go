package release

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Channel is the distribution channel a version tag is published on.
type Channel string

const (
	// ChannelRelease holds regular releases under /dist.
	ChannelRelease Channel = "release"
	// ChannelRC holds release candidates under /download/rc.
	ChannelRC Channel = "rc"
	// ChannelTest holds test builds under /download/test.
	ChannelTest Channel = "test"
	// ChannelNightly holds nightly builds under /download/nightly.
	ChannelNightly Channel = "nightly"
)

// PathPrefix returns the URL path segment the channel is served from.
func (c Channel) PathPrefix() string {
	switch c {
	case ChannelRC:
		return "download/rc"
	case ChannelTest:
		return "download/test"
	case ChannelNightly:
		return "download/nightly"
	default:
		return "dist"
	}
}

var (
	// errEmptyVersion is returned when no version is supplied.
	errEmptyVersion = errors.New("version must be provided")
	// errInvalidVersion is returned when the tag is not a semantic version.
	errInvalidVersion = errors.New("invalid version")
)

// VersionSpec is the requested runtime version. It is immutable once parsed.
type VersionSpec struct {
	// Tag is the catalog version, always prefixed with "v" (e.g. "v18.2.0").
	Tag string
	// Prerelease is an optional label appended to package versions.
	Prerelease string
}

// NormalizeTag prefixes the tag with "v" when it is missing.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.HasPrefix(tag, "v") {
		return tag
	}

	return "v" + tag
}

// ParseVersion builds a VersionSpec from the positional CLI arguments.
func ParseVersion(version, prerelease string) (VersionSpec, error) {
	tag := NormalizeTag(version)
	if tag == "" {
		return VersionSpec{}, errEmptyVersion
	}

	if _, err := semver.NewVersion(tag); err != nil {
		return VersionSpec{}, fmt.Errorf("%w %q: %w", errInvalidVersion, tag, err)
	}

	return VersionSpec{
		Tag:        tag,
		Prerelease: strings.TrimSpace(prerelease),
	}, nil
}

// Number returns the tag without its leading "v".
func (v VersionSpec) Number() string {
	return strings.TrimPrefix(v.Tag, "v")
}

// PackageVersion returns the version written into package descriptors.
func (v VersionSpec) PackageVersion() string {
	if v.Prerelease == "" {
		return v.Number()
	}

	return v.Number() + "-" + v.Prerelease
}

// Channel picks the distribution channel by substring match on the tag.
func (v VersionSpec) Channel() Channel {
	switch {
	case strings.Contains(v.Tag, "rc"):
		return ChannelRC
	case strings.Contains(v.Tag, "test"):
		return ChannelTest
	case strings.Contains(v.Tag, "nightly"):
		return ChannelNightly
	default:
		return ChannelRelease
	}
}

// String implements fmt.Stringer.
func (v VersionSpec) String() string {
	if v.Prerelease == "" {
		return v.Tag
	}

	return v.Tag + " (" + v.Prerelease + ")"
}
