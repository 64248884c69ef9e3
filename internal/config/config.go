package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by every stage of the generator.
type Config struct {
	// Product is the runtime name used in archive, package and binary names.
	Product string `yaml:"product"`
	// CatalogBaseURL is where the channel index.json catalogs are served.
	CatalogBaseURL string `yaml:"catalog_base_url"`
	// DistBaseURL is where the binary archives are served.
	DistBaseURL string `yaml:"dist_base_url"`
	// OutputDir is the directory staging and metapackage directories are created in.
	OutputDir string `yaml:"output_dir"`
	// CacheDir stores fetched catalogs and archives for conditional requests.
	CacheDir string `yaml:"cache_dir"`
	// DisableCache turns off the conditional request cache.
	DisableCache bool `yaml:"disable_cache"`
	// Concurrency bounds how many targets are fetched and unpacked at once.
	Concurrency int `yaml:"concurrency"`
	// Timeout bounds a single HTTP exchange including the body transfer.
	Timeout time.Duration `yaml:"timeout"`
	// Compression selects "gz" or "xz" tarballs for non-Windows targets.
	Compression string `yaml:"compression"`
	// StubDialect selects the installer stub language: "node" or "sh".
	StubDialect string `yaml:"stub_dialect"`
	// HelperPackage is the runtime dependency declared by the metapackage.
	HelperPackage string `yaml:"helper_package"`
	// HelperVersion is the semver range of HelperPackage.
	HelperVersion string `yaml:"helper_version"`
	// ReadmeTemplate is an optional path to a README text/template file.
	ReadmeTemplate string `yaml:"readme_template"`
	// LogLevel is the minimum level of diagnostic output.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for generator settings.
	DefaultConfigFilename = "node-bin-gen.yaml"

	// DefaultProduct is the runtime packaged when no product is configured.
	DefaultProduct = "node"

	// DefaultBaseURL serves both the catalogs and the archives.
	DefaultBaseURL = "https://nodejs.org"

	// DefaultConcurrency is the number of targets processed in parallel.
	DefaultConcurrency = 4

	// DefaultTimeout is the default duration for a single download.
	DefaultTimeout = 10 * time.Minute

	// DefaultCompression downloads gzip tarballs.
	DefaultCompression = "gz"

	// DefaultStubDialect renders a Node.js installer stub.
	DefaultStubDialect = "node"

	// DefaultHelperPackage is the install-time helper the metapackage depends on.
	DefaultHelperPackage = "node-bin-setup"

	// DefaultHelperVersion is the semver range of the helper dependency.
	DefaultHelperVersion = "^1.0.0"

	// DefaultLogLevel is the default minimum log level.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the file permission for saved settings.
	DefaultFilePermissions = 0o600

	// cacheDirName is the directory created under the user cache directory.
	cacheDirName = "node-bin-gen"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidProduct is returned when the product cannot be used in package names.
	errInvalidProduct = errors.New("product must be a lowercase npm name segment")
	// errInvalidConcurrency is returned for a negative concurrency.
	errInvalidConcurrency = errors.New("concurrency must not be negative")
	// errUnknownCompression is returned for compression values other than gz and xz.
	errUnknownCompression = errors.New("unknown compression")
	// errUnknownDialect is returned for stub dialects other than node and sh.
	errUnknownDialect = errors.New("unknown stub dialect")
	// errUnsupportedScheme is returned for base URLs that are not http(s).
	errUnsupportedScheme = errors.New("unsupported URL scheme")

	// productPattern matches names that are valid npm package name segments.
	productPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// Default returns settings with every field set to its default.
func Default() *Config {
	cfg := new(Config)

	// Validate only fills defaults on an empty config, it never fails here.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// A missing file at the default path yields the defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills unset fields with defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if !productPattern.MatchString(cfg.Product) {
		return fmt.Errorf("%w: %q", errInvalidProduct, cfg.Product)
	}

	if err := validateBaseURL(cfg.CatalogBaseURL); err != nil {
		return fmt.Errorf("invalid catalog base URL: %w", err)
	}

	if err := validateBaseURL(cfg.DistBaseURL); err != nil {
		return fmt.Errorf("invalid dist base URL: %w", err)
	}

	if cfg.Concurrency < 0 {
		return errInvalidConcurrency
	}

	switch cfg.Compression {
	case "gz", "xz":
	default:
		return fmt.Errorf("%w: %q", errUnknownCompression, cfg.Compression)
	}

	switch cfg.StubDialect {
	case "node", "sh":
	default:
		return fmt.Errorf("%w: %q", errUnknownDialect, cfg.StubDialect)
	}

	return nil
}

// applyDefaults fills empty fields. Concurrency 0 means the default.
func applyDefaults(cfg *Config) {
	if cfg.Product == "" {
		cfg.Product = DefaultProduct
	}

	if cfg.CatalogBaseURL == "" {
		cfg.CatalogBaseURL = DefaultBaseURL
	}

	if cfg.DistBaseURL == "" {
		cfg.DistBaseURL = DefaultBaseURL
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = defaultCacheDir()
	}

	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Compression == "" {
		cfg.Compression = DefaultCompression
	}

	if cfg.StubDialect == "" {
		cfg.StubDialect = DefaultStubDialect
	}

	if cfg.HelperPackage == "" {
		cfg.HelperPackage = DefaultHelperPackage
	}

	if cfg.HelperVersion == "" {
		cfg.HelperVersion = DefaultHelperVersion
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

// validateBaseURL accepts absolute http and https URLs.
func validateBaseURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", errUnsupportedScheme, u.Scheme)
	}

	return nil
}

// defaultCacheDir resolves the per-user cache directory, falling back to the home directory.
func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, cacheDirName)
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "."+cacheDirName)
	}

	return filepath.Join(os.TempDir(), cacheDirName)
}
