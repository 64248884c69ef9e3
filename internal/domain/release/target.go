package release

import (
	"errors"
	"fmt"
	"strings"
)

// ArchiveFormat is the container format of a downloadable archive.
type ArchiveFormat string

const (
	// FormatTarGz is a gzip-compressed tarball.
	FormatTarGz ArchiveFormat = "tar.gz"
	// FormatTarXz is an xz-compressed tarball.
	FormatTarXz ArchiveFormat = "tar.xz"
	// FormatZip is a zip archive, used for Windows builds.
	FormatZip ArchiveFormat = "zip"
)

// Compression selects which tarball flavour is downloaded for non-Windows targets.
type Compression string

const (
	// CompressionGzip downloads .tar.gz archives.
	CompressionGzip Compression = "gz"
	// CompressionXz downloads .tar.xz archives.
	CompressionXz Compression = "xz"
)

const (
	// osWindows is the OS token used by the catalog for Windows builds.
	osWindows = "win"
	// tokenSeparator splits variant tokens into os, cpu and format.
	tokenSeparator = "-"
)

// errMalformedToken is returned for variant tokens without an os and cpu segment.
var errMalformedToken = errors.New("malformed variant token")

// BuildTarget is one platform/arch/format combination with a published binary.
type BuildTarget struct {
	// OS is the normalized platform token ("darwin", "linux", "win", ...).
	OS string
	// CPU is the architecture token ("x64", "arm64", "ppc64le", ...).
	CPU string
	// Format is the format segment of the catalog token, "tar.gz" when absent.
	Format ArchiveFormat
}

// ParseTarget splits a catalog token such as "osx-x64-tar" into a BuildTarget.
func ParseTarget(token string) (BuildTarget, error) {
	bits := strings.Split(strings.TrimSpace(token), tokenSeparator)
	if len(bits) < 2 || bits[0] == "" || bits[1] == "" {
		return BuildTarget{}, fmt.Errorf("%w: %q", errMalformedToken, token)
	}

	osName := bits[0]
	if osName == "osx" {
		osName = "darwin"
	}

	format := FormatTarGz
	if len(bits) > 2 && bits[2] != "" {
		format = ArchiveFormat(strings.Join(bits[2:], tokenSeparator))
	}

	return BuildTarget{
		OS:     osName,
		CPU:    bits[1],
		Format: format,
	}, nil
}

// Token returns the "os-cpu" pair identifying the target.
func (t BuildTarget) Token() string {
	return t.OS + tokenSeparator + t.CPU
}

// StagingName returns the deterministic staging directory name for the product.
func (t BuildTarget) StagingName(product string) string {
	return product + tokenSeparator + t.Token()
}

// IsWindows reports whether the target ships as a Windows build.
func (t BuildTarget) IsWindows() bool {
	return t.OS == osWindows
}

// Archive returns the archive format actually downloaded for the target.
func (t BuildTarget) Archive(compression Compression) ArchiveFormat {
	switch {
	case t.IsWindows() || t.Format == FormatZip:
		return FormatZip
	case compression == CompressionXz:
		return FormatTarXz
	default:
		return FormatTarGz
	}
}

// ArchiveBase returns the archive name without extension,
// which is also the top-level directory inside the archive.
func (t BuildTarget) ArchiveBase(product, tag string) string {
	return product + tokenSeparator + tag + tokenSeparator + t.Token()
}

// ArchiveName returns the archive file name for the target.
func (t BuildTarget) ArchiveName(product, tag string, compression Compression) string {
	return t.ArchiveBase(product, tag) + "." + string(t.Archive(compression))
}

// Executable returns the path of the runtime binary relative to the package root.
func (t BuildTarget) Executable(product string) string {
	if t.IsWindows() {
		return "bin/" + product + ".exe"
	}

	return "bin/" + product
}
