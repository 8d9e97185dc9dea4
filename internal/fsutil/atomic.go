// Package fsutil holds small filesystem helpers shared by the adapters.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TempFilePrefix is the prefix of temporary files created by WriteFileAtomic.
// The leading dot keeps them out of vault listings and watch events.
const TempFilePrefix = ".fieldwatch-tmp-"

// IsTempFile reports whether path names a temporary file of WriteFileAtomic.
func IsTempFile(path string) bool {
	return strings.HasPrefix(filepath.Base(path), TempFilePrefix)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over filename, so readers never observe a partial write.
func WriteFileAtomic(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)

	tmpFile, err := os.CreateTemp(dir, TempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name()) // no-op once renamed

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpFile.Name(), perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), filename); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", filename, err)
	}

	return nil
}

// PreservePerm returns the permission bits of an existing file, or fallback
// when it does not exist.
func PreservePerm(filename string, fallback os.FileMode) os.FileMode {
	info, err := os.Stat(filename)
	if err != nil {
		return fallback
	}
	return info.Mode().Perm()
}
