package integration

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/node-bin-gen/cmd/node-bin-gen/cmd"
	"github.com/oshokin/node-bin-gen/internal/config"
)

// fakeNPM stands in for npm: it creates the package tree the stub links from.
const fakeNPM = `#!/bin/sh
spec="$3"
pkg="${spec%@*}"
mkdir -p "node_modules/$pkg/bin"
printf '%s' "$spec" > "node_modules/$pkg/bin/node"
`

// TestGenerator_EndToEnd runs the CLI against a fake distribution server
// using the configuration file found in the working directory.
func TestGenerator_EndToEnd(t *testing.T) {
	// Setup test directory and change working directory.
	dir := t.TempDir()
	t.Chdir(dir)

	srv := startDist(t)

	cfg := config.Default()
	cfg.CatalogBaseURL = srv.URL
	cfg.DistBaseURL = srv.URL
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.LogLevel = "error"
	cfg.StubDialect = "sh"
	require.NoError(t, config.Save(config.DefaultConfigFilename, cfg))

	// Two runs: the second one is served from the cache.
	for range 2 {
		runCLI(t, "18.2.0", "--no-progress")
	}

	binary, err := os.ReadFile(filepath.Join(dir, "node-linux-x64", "bin", "node"))
	require.NoError(t, err)
	require.Equal(t, "#!/bin/sh\necho v18.2.0\n", string(binary))

	require.FileExists(t, filepath.Join(dir, "node-linux-x64", "package.json"))
	require.FileExists(t, filepath.Join(dir, "node-bin", "package.json"))
	require.FileExists(t, filepath.Join(dir, "node-bin", "README.md"))

	entries, err := os.ReadDir(cfg.CacheDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

// TestGenerator_ShellStubLinksBinary executes the generated shell stub with a
// fake npm and checks the binary is linked into bin/.
func TestGenerator_ShellStubLinksBinary(t *testing.T) {
	arch := map[string]string{"amd64": "x64", "arm64": "arm64"}[runtime.GOARCH]
	if runtime.GOOS != "linux" || arch == "" {
		t.Skip("stub execution is only checked on linux x64 and arm64")
	}

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}

	dir := t.TempDir()
	t.Chdir(dir)

	runCLI(t, "18.2.0", "--skip-binaries", "--no-progress", "--log-level", "error", "--stub-dialect", "sh")

	fakeBin := filepath.Join(dir, "fake-bin")
	require.NoError(t, os.MkdirAll(fakeBin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(fakeBin, "npm"), []byte(fakeNPM), 0o755)) //nolint:gosec // Test helper must be executable.

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	metaDir := filepath.Join(dir, "node-bin")

	// Run twice: the second run replaces the existing link.
	for range 2 {
		stub := exec.CommandContext(ctx, "sh", "installArchSpecificPackage.sh")
		stub.Dir = metaDir
		stub.Env = append(os.Environ(), "PATH="+fakeBin+string(os.PathListSeparator)+os.Getenv("PATH"))

		out, err := stub.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	linked, err := os.ReadFile(filepath.Join(metaDir, "bin", "node"))
	require.NoError(t, err)
	require.Equal(t, "node-linux-"+arch+"@18.2.0", string(linked))
}

func runCLI(t *testing.T, args ...string) {
	t.Helper()

	var out bytes.Buffer

	root := cmd.NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	require.NoError(t, root.Execute(), out.String())
}

// startDist serves a catalog listing linux-x64 and its tarball, with ETags.
func startDist(t *testing.T) *httptest.Server {
	t.Helper()

	archive := linuxTarball(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/dist/index.json", func(w http.ResponseWriter, r *http.Request) {
		serveWithETag(w, r, `"catalog"`, []byte(`[{"version": "v18.2.0", "files": ["linux-x64", "headers", "src"]}]`))
	})
	mux.HandleFunc("/dist/v18.2.0/node-v18.2.0-linux-x64.tar.gz", func(w http.ResponseWriter, r *http.Request) {
		serveWithETag(w, r, `"archive"`, archive)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func serveWithETag(w http.ResponseWriter, r *http.Request, etag string, body []byte) {
	w.Header().Set("ETag", etag)

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)

		return
	}

	_, _ = w.Write(body)
}

func linuxTarball(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	content := []byte("#!/bin/sh\necho v18.2.0\n")

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "node-v18.2.0-linux-x64/bin/node",
		Typeflag: tar.TypeReg,
		Mode:     0o755,
		Size:     int64(len(content)),
	}))

	_, err := tw.Write(content)
	require.NoError(t, err)

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}
