// Package packager drives a generation run.
//
// It resolves the requested version in the catalog, enumerates the build
// targets, fetches and unpacks one archive per target with bounded
// parallelism, writes a package descriptor into every staging directory and,
// once all targets are done, writes the metapackage with its installer stub
// and README. The first failing target cancels the rest of the run.
package packager
