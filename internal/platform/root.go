package platform

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrRootNotFound is returned by FindRoot when no vault marker exists
// between the start directory and the filesystem root.
var ErrRootNotFound = errors.New("vault root not found")

// rootMarkers identify a vault root, in order of precedence.
var rootMarkers = []string{".fieldwatch", ".fieldwatch.yaml", ".git"}

// FindRoot looks upwards from startDir for a vault marker and returns the
// absolute path of the first directory holding one.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		for _, marker := range rootMarkers {
			if hasFile(dir, marker) {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrRootNotFound
		}
		dir = parent
	}
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
