// Package cache implements the on-disk store behind conditional HTTP requests.
//
// The FileRepository keeps one body file and one YAML metadata file per URL.
// Bodies are written through a Writer that only becomes visible after Commit,
// so an interrupted download never replaces a good cached copy.
package cache
