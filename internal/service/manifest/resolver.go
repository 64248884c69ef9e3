package manifest

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/oshokin/node-bin-gen/internal/domain/release"
	"github.com/oshokin/node-bin-gen/internal/fetch"
	"github.com/oshokin/node-bin-gen/internal/logger"
)

// catalogFilename is the name of the catalog under every channel prefix.
const catalogFilename = "index.json"

// schemaName identifies the embedded schema inside the compiler.
const schemaName = "catalog.schema.json"

//go:embed catalog.schema.json
var catalogSchema []byte

// compiledSchema compiles the embedded schema once.
//
//nolint:gochecknoglobals // Compiled lazily and shared by all resolvers.
var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	comp := jsonschema.NewCompiler()
	if err := comp.AddResource(schemaName, bytes.NewReader(catalogSchema)); err != nil {
		return nil, fmt.Errorf("loading schema %q: %w", schemaName, err)
	}

	return comp.Compile(schemaName)
})

// Fetcher is the fetch capability the resolver depends on.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Response, error)
}

// Resolver finds a version in the catalog of its channel.
type Resolver struct {
	fetcher Fetcher
	baseURL string
}

// NewResolver creates a resolver reading catalogs below baseURL.
func NewResolver(fetcher Fetcher, baseURL string) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		baseURL: baseURL,
	}
}

// CatalogURL returns the catalog location for a channel.
func CatalogURL(baseURL string, channel release.Channel) string {
	return strings.TrimRight(baseURL, "/") + "/" + channel.PathPrefix() + "/" + catalogFilename
}

// Resolve fetches the catalog for spec's channel and returns the entry for spec.Tag.
func (r *Resolver) Resolve(ctx context.Context, spec release.VersionSpec) (*release.ManifestEntry, error) {
	url := CatalogURL(r.baseURL, spec.Channel())

	logger.InfoKV(ctx, "Fetching catalog", "url", url, "channel", spec.Channel())

	resp, err := r.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &release.TransportError{URL: url, Err: err}
	}

	entries, err := Parse(url, data)
	if err != nil {
		return nil, err
	}

	entry, err := release.FindEntry(entries, spec.Tag)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Resolved catalog entry", "version", entry.Version, "files", len(entry.Files))

	return entry, nil
}

// Parse validates a catalog document and decodes its entries in order.
// Source names the document in errors.
func Parse(source string, data []byte) ([]release.ManifestEntry, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}

	var doc any
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, &release.DecodeError{Source: source, Err: err}
	}

	if err = schema.Validate(doc); err != nil {
		return nil, &release.DecodeError{Source: source, Err: err}
	}

	var entries []release.ManifestEntry
	if err = json.Unmarshal(data, &entries); err != nil {
		return nil, &release.DecodeError{Source: source, Err: err}
	}

	return entries, nil
}
