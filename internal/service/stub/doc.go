// Package stub renders the installer script shipped inside the metapackage.
//
// The script runs on the machine that installs the metapackage: it works out
// the local platform and architecture, installs the matching
// architecture-specific package at the pinned version and hard-links its
// binary into the metapackage's bin directory. Nothing is executed during
// generation; rendering is pure text substitution over embedded templates.
package stub
