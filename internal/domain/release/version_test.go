package release

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNormalizeTag checks that the "v" prefix is added once and never twice.
func TestNormalizeTag(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"18.2.0":       "v18.2.0",
		"v18.2.0":      "v18.2.0",
		" 20.1.0 ":     "v20.1.0",
		"v21.0.0-rc.1": "v21.0.0-rc.1",
		"":             "",
	}
	for in, want := range cases {
		got := NormalizeTag(in)
		require.Equal(t, want, got, in)
		require.Equal(t, got, NormalizeTag(got), "normalization must be idempotent")
	}
}

// TestParseVersion covers package version rendering with and without a prerelease label.
func TestParseVersion(t *testing.T) {
	t.Parallel()

	spec, err := ParseVersion("18.2.0", "")
	require.NoError(t, err)
	require.Equal(t, "v18.2.0", spec.Tag)
	require.Equal(t, "18.2.0", spec.Number())
	require.Equal(t, "18.2.0", spec.PackageVersion())

	spec, err = ParseVersion("v18.2.0", "nightly1")
	require.NoError(t, err)
	require.Equal(t, "18.2.0-nightly1", spec.PackageVersion())
	require.Equal(t, "v18.2.0 (nightly1)", spec.String())

	_, err = ParseVersion("", "")
	require.ErrorIs(t, err, errEmptyVersion)

	_, err = ParseVersion("not-a-version", "")
	require.ErrorIs(t, err, errInvalidVersion)
}

// TestChannel verifies substring-based channel detection and URL prefixes.
func TestChannel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tag    string
		want   Channel
		prefix string
	}{
		{"v18.2.0", ChannelRelease, "dist"},
		{"v21.0.0-rc.1", ChannelRC, "download/rc"},
		{"v18.0.0-test20220101abcdef", ChannelTest, "download/test"},
		{"v22.0.0-nightly20240101abcdef", ChannelNightly, "download/nightly"},
	}
	for _, tc := range cases {
		got := VersionSpec{Tag: tc.tag}.Channel()
		require.Equal(t, tc.want, got, tc.tag)
		require.Equal(t, tc.prefix, got.PathPrefix(), tc.tag)
	}
}
