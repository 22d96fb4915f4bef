// Package archiveutil extracts a single matching entry out of a
// .tar.gz/.tgz/.zip archive, the "archive extraction as a primitive"
// external collaborator the downloader depends on.
package archiveutil

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/mholt/archiver/v3"
)

// ExtractMatching walks archivePath and copies the first entry whose
// path matches entryPattern to destPath with the given file mode. It
// returns an error if no entry matches.
func ExtractMatching(archivePath string, entryPattern *regexp.Regexp, destPath string, mode os.FileMode) error {
	found := false
	walkErr := archiver.Walk(archivePath, func(f archiver.File) error {
		if found {
			return nil
		}
		name := entryName(f)
		if !entryPattern.MatchString(name) {
			return nil
		}
		if err := copyEntry(f, destPath, mode); err != nil {
			return err
		}
		found = true
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("failed to walk archive %s: %w", archivePath, walkErr)
	}
	if !found {
		return fmt.Errorf("no entry in %s matched pattern %q", archivePath, entryPattern.String())
	}
	return nil
}

// entryName returns the entry's full in-archive path. f.Name() alone
// would give only the base name (os.FileInfo.Name), which loses the
// "bin/" prefix our match patterns rely on.
func entryName(f archiver.File) string {
	switch h := f.Header.(type) {
	case *tar.Header:
		return h.Name
	case zip.FileHeader:
		return h.Name
	default:
		return f.Name()
	}
}

func copyEntry(f archiver.File, destPath string, mode os.FileMode) error {
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, f); err != nil {
		return fmt.Errorf("failed to copy entry into %s: %w", destPath, err)
	}
	return out.Chmod(mode)
}
