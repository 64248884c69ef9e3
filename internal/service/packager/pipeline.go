package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/node-bin-gen/internal/domain/release"
	"github.com/oshokin/node-bin-gen/internal/fetch"
	"github.com/oshokin/node-bin-gen/internal/logger"
	"github.com/oshokin/node-bin-gen/internal/service/descriptor"
	"github.com/oshokin/node-bin-gen/internal/service/unpack"
)

const (
	// stagingPermissions is used for staging directories.
	stagingPermissions = 0o755
	// stripComponents drops the top-level directory of tarballs.
	stripComponents = 1
)

// errUnsupportedFormat is returned for archive formats without a decoder.
var errUnsupportedFormat = errors.New("unsupported archive format")

// ArchiveURL returns the download location of the archive for target.
func ArchiveURL(distBase string, spec release.VersionSpec, product string,
	target release.BuildTarget, compression release.Compression,
) string {
	return strings.TrimRight(distBase, "/") + "/" +
		spec.Channel().PathPrefix() + "/" +
		spec.Tag + "/" +
		target.ArchiveName(product, spec.Tag, compression)
}

// buildTarget wipes the staging directory, unpacks the archive into it and
// writes the descriptor. Steps run strictly in that order.
func (g *generator) buildTarget(
	ctx context.Context,
	spec release.VersionSpec,
	target release.BuildTarget,
) (*TargetResult, error) {
	ctx = logger.WithKV(ctx, "target", target.Token())

	dir := g.stagingDir(target)

	logger.DebugKV(ctx, "Preparing staging directory", "dir", dir)

	if err := os.RemoveAll(dir); err != nil {
		return nil, &release.FilesystemError{Op: "remove", Path: dir, Err: err}
	}

	if err := os.MkdirAll(dir, stagingPermissions); err != nil {
		return nil, &release.FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}

	url := ArchiveURL(g.cfg.DistBaseURL, spec, g.cfg.Product, target, g.compression)

	resp, err := g.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	logger.DebugKV(ctx, "Unpacking archive", "url", url, "cached", resp.Cached, "dir", dir)

	if err = g.unpack(ctx, spec, target, resp, dir); err != nil {
		return nil, err
	}

	pkg, err := descriptor.ForTarget(g.cfg.Product, spec, target)
	if err != nil {
		return nil, err
	}

	if err = descriptor.Write(dir, pkg); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Wrote package", "name", pkg.Name, "version", pkg.Version)

	return &TargetResult{
		Target:  target,
		Dir:     dir,
		URL:     url,
		Cached:  resp.Cached,
		Package: pkg,
	}, nil
}

// unpack decodes the archive body into dir according to its format.
func (g *generator) unpack(
	ctx context.Context,
	spec release.VersionSpec,
	target release.BuildTarget,
	resp *fetch.Response,
	dir string,
) error {
	var err error

	switch format := target.Archive(g.compression); format {
	case release.FormatZip:
		err = g.unpackZip(ctx, spec, target, resp.Body, dir)
	case release.FormatTarGz:
		err = unpack.TarGz(resp.Body, dir, stripComponents)
	case release.FormatTarXz:
		err = unpack.TarXz(resp.Body, dir, stripComponents)
	default:
		err = fmt.Errorf("%w %q", errUnsupportedFormat, format)
	}

	if err != nil {
		return &release.DecodeError{Source: resp.URL, Err: err}
	}

	// Reading to EOF lets the cache commit the body.
	if _, err = io.Copy(io.Discard, resp.Body); err != nil {
		return &release.TransportError{URL: resp.URL, Err: err}
	}

	return nil
}

// unpackZip spools the body to a temporary file and extracts only the
// executable into dir/bin.
func (g *generator) unpackZip(
	ctx context.Context,
	spec release.VersionSpec,
	target release.BuildTarget,
	body io.Reader,
	dir string,
) error {
	base := target.ArchiveBase(g.cfg.Product, spec.Tag)

	tmp, err := os.CreateTemp("", base+"-*.zip")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer func() {
		if rerr := os.Remove(tmp.Name()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove temp file", "path", tmp.Name(), "error", rerr)
		}
	}()

	if _, err = io.Copy(tmp, body); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("spool archive: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	entry := base + "/" + g.cfg.Product + ".exe"

	extracted, err := unpack.ZipEntry(tmp.Name(), entry, filepath.Join(dir, "bin"))
	if err != nil {
		return err
	}

	logger.DebugKV(ctx, "Extracted executable", "path", extracted)

	return nil
}
