// Package config defines the generator settings and helpers to load,
// validate and save them in YAML format.
//
// Settings cover the catalog and download endpoints, the product name,
// output and cache locations, pipeline concurrency and the metapackage
// options. Command-line flags override values read from the file.
package config
