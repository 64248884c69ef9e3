// Package variant turns the file tokens of a catalog entry into build targets.
package variant
