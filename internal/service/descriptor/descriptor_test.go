package descriptor

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/node-bin-gen/internal/domain/release"
)

// TestForTarget covers naming, npm platform mapping and the binary path.
func TestForTarget(t *testing.T) {
	t.Parallel()

	spec := release.VersionSpec{Tag: "v18.2.0"}

	linux, err := ForTarget("node", spec, release.BuildTarget{OS: "linux", CPU: "x64", Format: release.FormatTarGz})
	require.NoError(t, err)
	require.Equal(t, "node-linux-x64", linux.Name)
	require.Equal(t, "18.2.0", linux.Version)
	require.Equal(t, "linux", linux.OS)
	require.Equal(t, "x64", linux.CPU)
	require.Equal(t, map[string]string{"node": "bin/node"}, linux.Bin)
	require.Equal(t, []string{"bin/node", "share", "include", "*.md", "LICENSE"}, linux.Files)

	win, err := ForTarget("node", spec, release.BuildTarget{OS: "win", CPU: "ia32", Format: release.FormatZip})
	require.NoError(t, err)
	require.Equal(t, "node-win-ia32", win.Name)
	require.Equal(t, "win32", win.OS)
	require.Equal(t, "x86", win.CPU)
	require.Equal(t, "bin/node.exe", win.Bin["node"])

	ppc, err := ForTarget("node", spec, release.BuildTarget{OS: "linux", CPU: "ppc64le"})
	require.NoError(t, err)
	require.Equal(t, "ppc64le", ppc.CPU)
}

// TestForTarget_Prerelease appends the prerelease label and rejects non-semver labels.
func TestForTarget_Prerelease(t *testing.T) {
	t.Parallel()

	target := release.BuildTarget{OS: "darwin", CPU: "arm64"}

	pkg, err := ForTarget("node", release.VersionSpec{Tag: "v18.2.0", Prerelease: "nightly1"}, target)
	require.NoError(t, err)
	require.Equal(t, "18.2.0-nightly1", pkg.Version)

	_, err = ForTarget("node", release.VersionSpec{Tag: "v18.2.0", Prerelease: "bad label"}, target)
	require.ErrorIs(t, err, errInvalidPackageVersion)
}

// TestRoundTrip writes a descriptor and reads back identical identity fields.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	pkg, err := ForTarget("node", release.VersionSpec{Tag: "v18.2.0", Prerelease: "rc1"},
		release.BuildTarget{OS: "win", CPU: "x64", Format: release.FormatZip})
	require.NoError(t, err)
	require.NoError(t, Write(dir, pkg))

	got, err := Read(dir)
	require.NoError(t, err)
	require.Equal(t, pkg.Name, got.Name)
	require.Equal(t, pkg.Version, got.Version)
	require.Equal(t, pkg.OS, got.OS)
	require.Equal(t, pkg.CPU, got.CPU)
	require.Equal(t, pkg, got)
}

// TestMetapackage checks the umbrella fields and the serialized shape.
func TestMetapackage(t *testing.T) {
	t.Parallel()

	pkg, err := Metapackage(MetaOptions{
		Product:       "node",
		Spec:          release.VersionSpec{Tag: "v18.2.0"},
		HelperPackage: "node-bin-setup",
		HelperVersion: "^1.0.0",
		Preinstall:    "node installArchSpecificPackage",
	})
	require.NoError(t, err)
	require.Equal(t, "node-bin", pkg.Name)
	require.Equal(t, "18.2.0", pkg.Version)
	require.Equal(t, "bin/node", pkg.Bin["node"])
	require.Equal(t, "^1.0.0", pkg.Dependencies["node-bin-setup"])
	require.Equal(t, "node installArchSpecificPackage", pkg.Scripts["preinstall"])

	data, err := Marshal(pkg)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "author")
	require.NotContains(t, raw, "os")
	require.NotContains(t, raw, "cpu")
	require.Equal(t, map[string]any{"npm": ">=5.0.0"}, raw["engines"])

	named, err := Metapackage(MetaOptions{Name: "node-custom", Product: "node", Spec: release.VersionSpec{Tag: "v18.2.0"}})
	require.NoError(t, err)
	require.Equal(t, "node-custom", named.Name)
	require.Nil(t, named.Dependencies)
}

// TestRead_Missing reports a FilesystemError.
func TestRead_Missing(t *testing.T) {
	t.Parallel()

	_, err := Read(t.TempDir())
	require.ErrorIs(t, err, release.ErrFilesystem)
}

// TestMetapackage_Name accepts npm names and refuses anything path-like.
func TestMetapackage_Name(t *testing.T) {
	t.Parallel()

	spec := release.VersionSpec{Tag: "v18.2.0"}

	for _, name := range []string{"node-bin", "@acme/node-bin", "node.bin_2", "~node"} {
		pkg, err := Metapackage(MetaOptions{Name: name, Product: "node", Spec: spec})
		require.NoError(t, err, name)
		require.Equal(t, name, pkg.Name)
	}

	for _, name := range []string{
		"../escaped",
		"..",
		".hidden",
		"a/b",
		"@acme/../x",
		"/abs",
		"Node-Bin",
		"node bin",
		strings.Repeat("n", 215),
	} {
		_, err := Metapackage(MetaOptions{Name: name, Product: "node", Spec: spec})
		require.ErrorIs(t, err, errInvalidPackageName, name)
	}
}
