package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/node-bin-gen/internal/config"
	"github.com/oshokin/node-bin-gen/internal/logger"
	"github.com/oshokin/node-bin-gen/internal/service/packager"
	"github.com/oshokin/node-bin-gen/internal/version"
)

// errUnknownLogLevel is returned for --log-level values zap does not know.
var errUnknownLogLevel = errors.New("unknown log level")

// flags holds the parsed command-line flags of one command instance.
type flags struct {
	configPath   string
	skipBinaries bool
	only         string
	packageName  string
	outputDir    string
	concurrency  int
	compression  string
	stubDialect  string
	noCache      bool
	noProgress   bool
	logLevel     string
}

// NewRootCommand builds the node-bin-gen command tree.
func NewRootCommand() *cobra.Command {
	f := new(flags)

	rootCmd := &cobra.Command{
		Use:   "node-bin-gen <version> [prerelease]",
		Short: "Generate architecture-specific runtime packages and a selecting metapackage",
		Long: `Resolves the version in the published catalog, downloads and unpacks one binary
archive per platform and architecture, and writes an npm package for each of them.

A metapackage is written next to them. Its preinstall hook installs the package
matching the installing machine and links its binary into bin/.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}

			if err = applyLogLevel(cfg.LogLevel); err != nil {
				return err
			}

			options := &packager.Options{
				Config:       cfg,
				Version:      args[0],
				SkipBinaries: f.skipBinaries,
				Only:         f.only,
				PackageName:  f.packageName,
				ShowProgress: !f.noProgress,
				Stdout:       cmd.OutOrStdout(),
				Progress:     cmd.ErrOrStderr(),
			}

			if len(args) > 1 {
				options.Prerelease = args[1]
			}

			return packager.Run(ctx, options)
		},
	}

	rootCmd.Flags().StringVarP(&f.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().BoolVar(&f.skipBinaries, "skip-binaries", false, "skip downloading the binaries")
	rootCmd.Flags().StringVar(&f.only, "only", "", "only package this os-cpu variant")
	rootCmd.Flags().StringVar(&f.packageName, "package-name", "", "metapackage name (default <product>-bin)")
	rootCmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "directory packages are written to")
	rootCmd.Flags().IntVarP(&f.concurrency, "concurrency", "j", config.DefaultConcurrency, "targets processed in parallel")
	rootCmd.Flags().StringVar(&f.compression, "compression", config.DefaultCompression, "tarball compression: gz or xz")
	rootCmd.Flags().StringVar(&f.stubDialect, "stub-dialect", config.DefaultStubDialect, "installer stub language: node or sh")
	rootCmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the conditional download cache")
	rootCmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "do not draw a progress bar")
	rootCmd.Flags().StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")

	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(newInitConfigCommand())

	return rootCmd
}

// Execute runs the node-bin-gen CLI and exits with non-zero status on error.
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		logger.ErrorKV(context.Background(), "node-bin-gen failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies explicitly set flags on top.
func (f *flags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := f.configPath
	if !cmd.Flags().Changed("config") {
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed

	if changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}

	if changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}

	if changed("compression") {
		cfg.Compression = f.compression
	}

	if changed("stub-dialect") {
		cfg.StubDialect = f.stubDialect
	}

	if changed("no-cache") {
		cfg.DisableCache = f.noCache
	}

	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyLogLevel(level string) error {
	lvl, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, level)
	}

	logger.SetLevel(lvl)

	return nil
}
