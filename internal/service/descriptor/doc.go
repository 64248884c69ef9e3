// Package descriptor synthesizes the package.json documents the generator
// writes: one per build target and one for the metapackage.
//
// Platform and architecture fields use npm's naming ("win32" for Windows,
// "x86" for 32-bit Windows). Other CPU names, ppc64le included, are kept as
// published so little- and big-endian builds remain distinguishable.
package descriptor
