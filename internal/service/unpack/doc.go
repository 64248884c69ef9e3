// Package unpack extracts downloaded archives into staging directories.
//
// Tarballs are decoded as a stream (gzip via klauspost/compress, xz via
// ulikunitz/xz) and written entry by entry with the leading path components
// stripped. Zip archives need random access, so a single member is pulled
// out of an archive file and installed with go-update.
package unpack
