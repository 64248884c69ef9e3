package unpack

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

const (
	// dirPermissions is used for directories the archive does not describe.
	dirPermissions = 0o755
	// ownerWrite keeps extracted directories writable so they can be wiped on the next run.
	ownerWrite = 0o200
)

var (
	// errUnsafePath is returned for entries that would land outside the destination.
	errUnsafePath = errors.New("unsafe path in archive")
	// errEntryNotFound is returned when a requested zip member is missing.
	errEntryNotFound = errors.New("entry not found in archive")
)

// TarGz extracts a gzip-compressed tar stream into dest.
func TarGz(r io.Reader, dest string, strip int) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}

	defer func() {
		_ = gz.Close()
	}()

	return Tar(gz, dest, strip)
}

// TarXz extracts an xz-compressed tar stream into dest.
func TarXz(r io.Reader, dest string, strip int) error {
	xzr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("xz reader: %w", err)
	}

	return Tar(xzr, dest, strip)
}

// Tar extracts a tar stream into dest, dropping the first strip path
// components of every entry like tar --strip-components.
func Tar(r io.Reader, dest string, strip int) error {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("abs dest: %w", err)
	}

	tr := tar.NewReader(r)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("tar entry %q: %w", hdr.Name, errUnsafePath)
		}

		if err != nil {
			return fmt.Errorf("tar read: %w", err)
		}

		rel, ok := stripComponents(hdr.Name, strip)
		if !ok {
			continue
		}

		target, err := secureJoin(absDest, rel)
		if err != nil {
			return fmt.Errorf("tar entry %q: %w", hdr.Name, err)
		}

		if err = extractEntry(tr, hdr, absDest, target, strip); err != nil {
			return fmt.Errorf("tar entry %q: %w", hdr.Name, err)
		}
	}
}

// extractEntry writes one tar member to target. No entry is written through
// a symlink extracted earlier, and an existing link at target is replaced
// rather than followed.
func extractEntry(tr *tar.Reader, hdr *tar.Header, absDest, target string, strip int) error {
	mode := hdr.FileInfo().Mode().Perm()

	if hdr.Typeflag == tar.TypeDir || hdr.Typeflag == tar.TypeReg ||
		hdr.Typeflag == tar.TypeSymlink || hdr.Typeflag == tar.TypeLink {
		if err := checkParents(absDest, target); err != nil {
			return err
		}
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: directory %q replaces a symlink", errUnsafePath, hdr.Name)
		}

		return os.MkdirAll(target, mode|ownerWrite)

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
			return err
		}

		if err := removeExisting(target); err != nil {
			return err
		}

		out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
		if err != nil {
			return err
		}

		if _, err = io.Copy(out, tr); err != nil {
			_ = out.Close()

			return err
		}

		return out.Close()

	case tar.TypeSymlink:
		if filepath.IsAbs(hdr.Linkname) {
			return fmt.Errorf("%w: absolute symlink %q", errUnsafePath, hdr.Linkname)
		}

		resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(hdr.Linkname))
		if !within(absDest, resolved) {
			return fmt.Errorf("%w: symlink %q escapes destination", errUnsafePath, hdr.Linkname)
		}

		if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
			return err
		}

		if err := removeExisting(target); err != nil {
			return err
		}

		return os.Symlink(hdr.Linkname, target)

	case tar.TypeLink:
		linkRel, ok := stripComponents(hdr.Linkname, strip)
		if !ok {
			return fmt.Errorf("%w: hardlink %q outside archive root", errUnsafePath, hdr.Linkname)
		}

		linkTarget, err := secureJoin(absDest, linkRel)
		if err != nil {
			return err
		}

		if err = checkParents(absDest, linkTarget); err != nil {
			return err
		}

		if info, lerr := os.Lstat(linkTarget); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: hardlink %q points at a symlink", errUnsafePath, hdr.Linkname)
		}

		if err = os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
			return err
		}

		if err = removeExisting(target); err != nil {
			return err
		}

		return os.Link(linkTarget, target)

	default:
		// Pax headers, devices and fifos are not part of a runtime distribution.
		return nil
	}
}

// checkParents fails when a directory between root and target is a symlink.
// Missing directories are fine, they are created as plain directories.
func checkParents(root, target string) error {
	rel, err := filepath.Rel(root, filepath.Dir(target))
	if err != nil {
		return fmt.Errorf("%w: %q", errUnsafePath, target)
	}

	if rel == "." {
		return nil
	}

	current := root

	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)

		info, err := os.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		if err != nil {
			return err
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %q passes through symlink %q", errUnsafePath, target, current)
		}
	}

	return nil
}

// removeExisting deletes a non-directory at path so it is never written through.
func removeExisting(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return err
	}

	if info.IsDir() {
		return fmt.Errorf("%w: %q replaces a directory", errUnsafePath, path)
	}

	return os.Remove(path)
}

// stripComponents drops the first n slash-separated components of name.
// It reports false when nothing is left.
func stripComponents(name string, n int) (string, bool) {
	parts := strings.Split(strings.Trim(filepath.ToSlash(name), "/"), "/")

	kept := parts[:0]

	for _, part := range parts {
		if part != "" && part != "." {
			kept = append(kept, part)
		}
	}

	if len(kept) <= n {
		return "", false
	}

	return strings.Join(kept[n:], "/"), true
}

// secureJoin joins rel onto root and rejects results outside root.
func secureJoin(root, rel string) (string, error) {
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: %q", errUnsafePath, rel)
	}

	target := filepath.Join(root, filepath.FromSlash(rel))
	if !within(root, target) {
		return "", fmt.Errorf("%w: %q", errUnsafePath, rel)
	}

	return target, nil
}

// within reports whether path is root or below it. Both must be clean.
func within(root, path string) bool {
	path = filepath.Clean(path)

	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}
