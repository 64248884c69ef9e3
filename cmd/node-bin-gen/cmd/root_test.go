package cmd

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/node-bin-gen/internal/config"
	"github.com/oshokin/node-bin-gen/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

// TestRoot_Args requires a version and accepts at most a prerelease.
func TestRoot_Args(t *testing.T) {
	t.Parallel()

	_, err := execute(t)
	require.Error(t, err)

	_, err = execute(t, "18.2.0", "rc1", "extra")
	require.Error(t, err)
}

// TestRoot_SkipBinaries writes the metapackage into the requested directory.
func TestRoot_SkipBinaries(t *testing.T) {
	t.Parallel()

	out := t.TempDir()

	stdout, err := execute(t, "18.2.0", "nightly1",
		"--skip-binaries",
		"--no-progress",
		"--log-level", "error",
		"--output-dir", out,
		"--package-name", "node-nightly",
		"--stub-dialect", "sh")
	require.NoError(t, err)
	require.Contains(t, stdout, "node-nightly")

	pkg, err := os.ReadFile(filepath.Join(out, "node-nightly", "package.json"))
	require.NoError(t, err)
	require.Contains(t, string(pkg), `"version": "18.2.0-nightly1"`)
	require.FileExists(t, filepath.Join(out, "node-nightly", "installArchSpecificPackage.sh"))
}

// TestRoot_InvalidFlags rejects values the configuration does not accept.
func TestRoot_InvalidFlags(t *testing.T) {
	t.Parallel()

	out := t.TempDir()

	_, err := execute(t, "18.2.0", "--skip-binaries", "--output-dir", out, "--compression", "bz2")
	require.Error(t, err)

	_, err = execute(t, "18.2.0", "--skip-binaries", "--output-dir", out, "--log-level", "loud")
	require.ErrorIs(t, err, errUnknownLogLevel)

	_, err = execute(t, "18.2.0", "--skip-binaries", "--config", filepath.Join(out, "missing.yaml"))
	require.Error(t, err)
}

// TestRoot_ConfigFile reads settings from an explicit file.
func TestRoot_ConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := config.Default()
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.Product = "iojs"
	cfg.LogLevel = "error"
	require.NoError(t, config.Save(path, cfg))

	_, err := execute(t, "3.3.1", "--skip-binaries", "--no-progress", "--config", path)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "out", "iojs-bin", "package.json"))
}

// TestInitConfig writes defaults once and refuses to overwrite without --force.
func TestInitConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "node-bin-gen.yaml")

	stdout, err := execute(t, "init-config", "--config", path)
	require.NoError(t, err)
	require.Contains(t, stdout, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.DefaultProduct, cfg.Product)

	_, err = execute(t, "init-config", "--config", path)
	require.ErrorIs(t, err, errConfigExists)

	_, err = execute(t, "init-config", "--config", path, "--force")
	require.NoError(t, err)
}

// TestVersion prints the build version.
func TestVersion(t *testing.T) {
	t.Parallel()

	stdout, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, stdout, version.Short())
}

// executeArgsEnv carries the arguments for the Execute child process, separated by executeArgsSep.
const (
	executeArgsEnv = "NODE_BIN_GEN_EXECUTE_ARGS"
	executeArgsSep = "\x1f"
)

// TestExecuteHelper is the child process body of TestExecute_FailureExitCode.
func TestExecuteHelper(t *testing.T) {
	args, ok := os.LookupEnv(executeArgsEnv)
	if !ok {
		t.Skip("runs only as a child of TestExecute_FailureExitCode")
	}

	os.Args = append([]string{"node-bin-gen"}, strings.Split(args, executeArgsSep)...)

	Execute()
}

// TestExecute_FailureExitCode exits with status 1 and logs the failing archive URL.
func TestExecute_FailureExitCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dist/index.json" {
			_, _ = io.WriteString(w, `[{"version":"v18.2.0","files":["linux-x64"]}]`)

			return
		}

		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "node-bin-gen.yaml")

	cfg := config.Default()
	cfg.CatalogBaseURL = srv.URL
	cfg.DistBaseURL = srv.URL
	cfg.LogLevel = "error"
	require.NoError(t, config.Save(cfgPath, cfg))

	args := []string{
		"18.2.0",
		"--no-progress",
		"--no-cache",
		"--output-dir", filepath.Join(dir, "out"),
		"--config", cfgPath,
	}

	var stderr bytes.Buffer

	child := exec.Command(os.Args[0], "-test.run=^TestExecuteHelper$") //nolint:gosec // Re-runs this test binary.
	child.Env = append(os.Environ(), executeArgsEnv+"="+strings.Join(args, executeArgsSep))
	child.Stderr = &stderr

	err := child.Run()

	var exitErr *exec.ExitError

	require.True(t, errors.As(err, &exitErr), "child error: %v", err)
	require.Equal(t, 1, exitErr.ExitCode())
	require.Contains(t, stderr.String(), srv.URL+"/dist/v18.2.0/node-v18.2.0-linux-x64.tar.gz")
}
