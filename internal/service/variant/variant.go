package variant

import (
	"context"
	"strings"

	"github.com/oshokin/node-bin-gen/internal/domain/release"
	"github.com/oshokin/node-bin-gen/internal/logger"
)

// DefaultTokens is used when a catalog entry lists no files.
func DefaultTokens() []string {
	return []string{
		"darwin-x64",
		"darwin-arm64",
		"linux-arm64",
		"linux-armv7l",
		"linux-ppc64",
		"linux-ppc64le",
		"linux-s390x",
		"linux-x64",
		"linux-x86",
		"sunos-x64",
		"win-arm64",
		"win-x64",
		"win-x86",
	}
}

// installerFormats are Windows installer formats that are not plain archives.
//
//nolint:gochecknoglobals // Read-only lookup table.
var installerFormats = map[release.ArchiveFormat]struct{}{
	"exe": {},
	"msi": {},
	"7z":  {},
}

// Enumerate returns the build targets for entry in catalog order.
// A non-empty only short-circuits to that single token.
func Enumerate(ctx context.Context, entry *release.ManifestEntry, only string) []release.BuildTarget {
	var tokens []string

	switch {
	case only != "":
		tokens = []string{only}
	case entry == nil || len(entry.Files) == 0:
		logger.Debug(ctx, "Catalog entry lists no files, using the default targets")

		tokens = DefaultTokens()
	default:
		tokens = entry.Files
	}

	targets := make([]release.BuildTarget, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))

	for _, token := range tokens {
		if only == "" && isExcluded(token) {
			continue
		}

		target, err := release.ParseTarget(token)
		if err != nil {
			logger.WarnKV(ctx, "Skipping variant", "token", token, "error", err)

			continue
		}

		if only == "" && isInstaller(target) {
			continue
		}

		// One staging directory per os-cpu pair.
		if _, dup := seen[target.Token()]; dup {
			continue
		}

		seen[target.Token()] = struct{}{}
		targets = append(targets, target)
	}

	return targets
}

// isExcluded matches header-only, source-only and .pkg installer tokens.
func isExcluded(token string) bool {
	return strings.HasPrefix(token, "headers") ||
		strings.HasPrefix(token, "src") ||
		strings.HasSuffix(token, "pkg")
}

// isInstaller matches Windows installer formats.
func isInstaller(target release.BuildTarget) bool {
	_, ok := installerFormats[target.Format]

	return ok
}
