package flowfile

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Find walks dir and returns every flow file below it, skipping hidden
// directories and node_modules
func Find(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			if path != dir && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}

		if _, err := FormatOf(path); err == nil {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}
