package platform

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/aretw0/notely/pkg/adapters/fs"
)

// ErrRootNotFound is returned by FindRoot when no vault marker exists above startDir.
var ErrRootNotFound = errors.New("vault root not found")

// FindRoot walks upwards from startDir looking for a vault: a directory
// holding .notely, .git or notely.yaml. It returns the absolute path of the
// first match.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, fs.DefaultSystemDir) || hasFile(dir, ".git") || hasFile(dir, DefaultConfigFile) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrRootNotFound
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
