// Package release contains the core domain types of the generator.
//
// VersionSpec is the parsed runtime version, ManifestEntry a catalog row,
// BuildTarget one platform/arch/format variant and PackageDescriptor the
// package.json written for a target or for the metapackage. The package also
// defines the error taxonomy shared by every pipeline stage.
package release
