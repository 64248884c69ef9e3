package unpack

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/klauspost/compress/zip"
)

// executableMode is applied to binaries pulled out of zip archives.
const executableMode os.FileMode = 0o755

// ZipEntry extracts the member named entry from the zip file at archivePath
// into destDir, dropping its directory part and replacing any existing file.
func ZipEntry(archivePath, entry, destDir string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}

	defer func() {
		_ = zr.Close()
	}()

	var member *zip.File

	for _, f := range zr.File {
		if f.Name == entry {
			member = f

			break
		}
	}

	if member == nil {
		return "", fmt.Errorf("%w: %s", errEntryNotFound, entry)
	}

	if err = os.MkdirAll(destDir, dirPermissions); err != nil {
		return "", err
	}

	target := filepath.Join(destDir, path.Base(member.Name))

	// go-update swaps the new file in by renaming the old one away first.
	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		placeholder, cerr := os.Create(target)
		if cerr != nil {
			return "", cerr
		}

		_ = placeholder.Close()
	}

	rc, err := member.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", entry, err)
	}

	defer func() {
		_ = rc.Close()
	}()

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: executableMode,
	}

	if err = goupdate.Apply(rc, options); err != nil {
		return "", fmt.Errorf("install %s: %w", entry, err)
	}

	return target, nil
}
