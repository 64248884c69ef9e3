// Package manifest resolves a requested version against the published catalog.
//
// The catalog for the version's channel is fetched once, validated against
// an embedded JSON schema, decoded into release.ManifestEntry values and
// searched for the exact tag.
package manifest
