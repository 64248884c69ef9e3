package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/node-bin-gen/internal/config"
	"github.com/oshokin/node-bin-gen/internal/domain/release"
	"github.com/oshokin/node-bin-gen/internal/fetch"
	"github.com/oshokin/node-bin-gen/internal/logger"
	"github.com/oshokin/node-bin-gen/internal/repository/cache"
	"github.com/oshokin/node-bin-gen/internal/service/common"
	"github.com/oshokin/node-bin-gen/internal/service/descriptor"
	"github.com/oshokin/node-bin-gen/internal/service/manifest"
	"github.com/oshokin/node-bin-gen/internal/service/stub"
	"github.com/oshokin/node-bin-gen/internal/service/variant"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// Config holds the validated settings. Defaults are used when nil.
	Config *config.Config
	// Version is the requested runtime version, with or without the leading "v".
	Version string
	// Prerelease is an optional label appended to every package version.
	Prerelease string
	// SkipBinaries only writes the metapackage, without any network access.
	SkipBinaries bool
	// Only restricts the run to a single "os-cpu" variant token.
	Only string
	// PackageName overrides the metapackage name.
	PackageName string
	// ShowProgress draws a progress bar on Progress.
	ShowProgress bool
	// Stdout receives the summary table. Nothing is printed when nil.
	Stdout io.Writer
	// Progress receives the progress bar, stderr when nil.
	Progress io.Writer
}

// TargetResult describes one written architecture-specific package.
type TargetResult struct {
	// Target is the build target the package was produced for.
	Target release.BuildTarget
	// Dir is the staging directory.
	Dir string
	// URL is the archive location.
	URL string
	// Cached reports that the archive was served from the local cache.
	Cached bool
	// Package is the descriptor written into Dir.
	Package *release.PackageDescriptor
}

// Result summarizes a finished run.
type Result struct {
	// Spec is the resolved version.
	Spec release.VersionSpec
	// Targets holds one entry per build target, in enumeration order.
	Targets []TargetResult
	// MetaDir is the metapackage directory.
	MetaDir string
	// Meta is the metapackage descriptor.
	Meta *release.PackageDescriptor
}

// errNoTargets is returned when the catalog entry yields nothing to package.
var errNoTargets = errors.New("no build targets to package")

// generator runs one generation. It is unexported: callers use Run.
type generator struct {
	// cfg is the validated configuration, never mutated.
	cfg *config.Config
	// opts are the per-run inputs.
	opts *Options
	// fetcher downloads catalogs and archives.
	fetcher manifest.Fetcher
	// compression selects tarball flavour for non-Windows targets.
	compression release.Compression
	// dialect selects the installer stub language.
	dialect stub.Dialect
}

// Run executes a generation run and prints its summary.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "packager")

	if opts == nil {
		opts = new(Options)
	}

	g, err := newGenerator(opts)
	if err != nil {
		return err
	}

	result, err := g.run(ctx)
	if err != nil {
		return err
	}

	if opts.Stdout != nil {
		writeSummary(opts.Stdout, result)
	}

	logger.InfoKV(ctx, "Generation completed",
		"version", result.Spec.PackageVersion(),
		"targets", len(result.Targets),
		"metapackage", result.MetaDir)

	return nil
}

// newGenerator validates the options and builds the fetch stack.
func newGenerator(opts *Options) (*generator, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	dialect, err := stub.ParseDialect(cfg.StubDialect)
	if err != nil {
		return nil, err
	}

	fetchOpts := []fetch.Option{fetch.WithTimeout(cfg.Timeout)}
	if !cfg.DisableCache {
		fetchOpts = append(fetchOpts, fetch.WithCache(cache.NewFileRepository(cfg.CacheDir)))
	}

	return &generator{
		cfg:         cfg,
		opts:        opts,
		fetcher:     fetch.New(fetchOpts...),
		compression: release.Compression(cfg.Compression),
		dialect:     dialect,
	}, nil
}

// run performs resolve, fan-out, join and metapackage synthesis.
func (g *generator) run(ctx context.Context) (*Result, error) {
	spec, err := release.ParseVersion(g.opts.Version, g.opts.Prerelease)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithKV(ctx, "version", spec.Tag)

	// The metapackage descriptor is built up front so a bad prerelease
	// label fails before anything is downloaded.
	meta, err := descriptor.Metapackage(descriptor.MetaOptions{
		Name:          g.opts.PackageName,
		Product:       g.cfg.Product,
		Spec:          spec,
		HelperPackage: g.cfg.HelperPackage,
		HelperVersion: g.cfg.HelperVersion,
		Preinstall:    g.dialect.Hook(),
	})
	if err != nil {
		return nil, err
	}

	lock, err := common.AcquireLock(ctx, g.cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rerr := lock.Release(); rerr != nil {
			logger.WarnKV(ctx, "Unable to release run lock", "error", rerr)
		}
	}()

	result := &Result{Spec: spec, Meta: meta}

	if g.opts.SkipBinaries {
		logger.Info(ctx, "Skipping binaries")
	} else {
		result.Targets, err = g.buildTargets(ctx, spec)
		if err != nil {
			return nil, err
		}
	}

	result.MetaDir, err = g.writeMetapackage(ctx, spec, meta)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// buildTargets resolves the catalog entry and processes every target.
func (g *generator) buildTargets(ctx context.Context, spec release.VersionSpec) ([]TargetResult, error) {
	entry, err := manifest.NewResolver(g.fetcher, g.cfg.CatalogBaseURL).Resolve(ctx, spec)
	if err != nil {
		return nil, err
	}

	targets := variant.Enumerate(ctx, entry, g.opts.Only)
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s", errNoTargets, spec.Tag)
	}

	logger.InfoKV(ctx, "Packaging targets", "count", len(targets), "concurrency", g.cfg.Concurrency)

	bar := newProgress(g.opts, len(targets))
	results := make([]TargetResult, len(targets))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)

	for i, target := range targets {
		eg.Go(func() error {
			res, err := g.buildTarget(egctx, spec, target)
			if err != nil {
				return fmt.Errorf("target %s: %w", target.Token(), err)
			}

			results[i] = *res

			bar.done(target.StagingName(g.cfg.Product))

			return nil
		})
	}

	if err = eg.Wait(); err != nil {
		return nil, err
	}

	bar.finish()

	return results, nil
}

// stagingDir returns the output directory of a target.
func (g *generator) stagingDir(target release.BuildTarget) string {
	return filepath.Join(g.cfg.OutputDir, target.StagingName(g.cfg.Product))
}
