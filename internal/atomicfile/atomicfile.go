// Package atomicfile replaces files so that readers only ever observe the
// old or the new content, never a partial write.
package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
)

// Write stores data at path with the given permissions.
//
// Implementation details:
//   - Ensures the parent directory exists (0755).
//   - Writes to a temp file in the same directory, fsyncs and closes it.
//   - Chmods the temp file, then renames it over path.
//
// If any step fails, path is left untouched.
func Write(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return errors.New("atomicfile: path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// No-op after a successful rename.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
