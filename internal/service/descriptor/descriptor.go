package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"

	"github.com/oshokin/node-bin-gen/internal/domain/release"
)

const (
	// Filename is the descriptor file written into every package directory.
	Filename = "package.json"
	// fileMode is used for written descriptors.
	fileMode = 0o644
	// metaSuffix is appended to the product for the default metapackage name.
	metaSuffix = "-bin"

	// maxNameLength is npm's limit on package names.
	maxNameLength = 214
)

var (
	// errInvalidPackageVersion is returned when a descriptor version is not strict semver.
	errInvalidPackageVersion = errors.New("invalid package version")
	// errInvalidPackageName is returned for names npm would not publish.
	errInvalidPackageName = errors.New("invalid package name")

	// namePattern matches lowercase npm names, optionally scoped ("@scope/name").
	namePattern = regexp.MustCompile(`^(?:@[a-z0-9~-][a-z0-9._~-]*/)?[a-z0-9~-][a-z0-9._~-]*$`)
)

// Platform maps a catalog OS token to npm's "os" value.
func Platform(osName string) string {
	if osName == "win" {
		return "win32"
	}

	return osName
}

// Arch maps a catalog CPU token to npm's "cpu" value.
func Arch(osName, cpu string) string {
	if osName == "win" && cpu == "ia32" {
		return "x86"
	}

	return cpu
}

// DefaultName returns the metapackage name used when none is configured.
func DefaultName(product string) string {
	return product + metaSuffix
}

// ForTarget builds the descriptor of the architecture-specific package for target.
func ForTarget(product string, spec release.VersionSpec, target release.BuildTarget) (*release.PackageDescriptor, error) {
	pkgVersion, err := packageVersion(spec)
	if err != nil {
		return nil, err
	}

	executable := target.Executable(product)

	return &release.PackageDescriptor{
		Name:        target.StagingName(product),
		Version:     pkgVersion,
		Description: product,
		Bin: map[string]string{
			product: executable,
		},
		Files: []string{
			executable,
			"share",
			"include",
			"*.md",
			"LICENSE",
		},
		OS:  Platform(target.OS),
		CPU: Arch(target.OS, target.CPU),
	}, nil
}

// MetaOptions are the inputs of the metapackage descriptor.
type MetaOptions struct {
	// Name overrides DefaultName(Product) when set.
	Name string
	// Product is the runtime name.
	Product string
	// Spec is the requested version.
	Spec release.VersionSpec
	// HelperPackage and HelperVersion declare the install-time helper dependency.
	HelperPackage string
	HelperVersion string
	// Preinstall is the command that runs the installer stub.
	Preinstall string
}

// Metapackage builds the umbrella descriptor that selects an architecture
// package at install time.
func Metapackage(opts MetaOptions) (*release.PackageDescriptor, error) {
	pkgVersion, err := packageVersion(opts.Spec)
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = DefaultName(opts.Product)
	}

	if err = ValidateName(name); err != nil {
		return nil, err
	}

	author := ""

	pkg := &release.PackageDescriptor{
		Name:        name,
		Version:     pkgVersion,
		Description: opts.Product,
		Main:        "index.js",
		Keywords:    []string{"runtime"},
		Scripts: map[string]string{
			"preinstall": opts.Preinstall,
		},
		Bin: map[string]string{
			opts.Product: "bin/" + opts.Product,
		},
		License: "ISC",
		Author:  &author,
		Engines: map[string]string{
			"npm": ">=5.0.0",
		},
	}

	if opts.HelperPackage != "" {
		pkg.Dependencies = map[string]string{
			opts.HelperPackage: opts.HelperVersion,
		}
	}

	return pkg, nil
}

// ValidateName checks name against npm's naming rules. Valid names are
// also safe to use as a relative directory path.
func ValidateName(name string) error {
	if len(name) > maxNameLength || !namePattern.MatchString(name) {
		return fmt.Errorf("%w %q", errInvalidPackageName, name)
	}

	return nil
}

// Write serializes pkg into dir/package.json.
func Write(dir string, pkg *release.PackageDescriptor) error {
	data, err := Marshal(pkg)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, Filename)
	if err = os.WriteFile(path, data, fileMode); err != nil {
		return &release.FilesystemError{Op: "write", Path: path, Err: err}
	}

	return nil
}

// Marshal renders pkg as indented JSON with a trailing newline.
func Marshal(pkg *release.PackageDescriptor) ([]byte, error) {
	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", pkg.Name, err)
	}

	return append(data, '\n'), nil
}

// Read parses dir/package.json.
func Read(dir string) (*release.PackageDescriptor, error) {
	path := filepath.Join(dir, Filename)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &release.FilesystemError{Op: "read", Path: path, Err: err}
	}

	var pkg release.PackageDescriptor
	if err = json.Unmarshal(data, &pkg); err != nil {
		return nil, &release.DecodeError{Source: path, Err: err}
	}

	return &pkg, nil
}

// packageVersion renders the descriptor version and checks it is strict semver.
func packageVersion(spec release.VersionSpec) (string, error) {
	v := spec.PackageVersion()
	if _, err := semver.StrictNewVersion(v); err != nil {
		return "", fmt.Errorf("%w %q: %w", errInvalidPackageVersion, v, err)
	}

	return v, nil
}
