package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxPathLength = 4096

// bundleExts are plugin formats shipped as directories rather than single files.
var bundleExts = map[string]bool{
	".vst":       true,
	".vst3":      true,
	".component": true,
}

// ValidatePath checks that path can name a plugin module before it is handed
// to a loader:
//   - non-empty, at most 4096 characters
//   - exists
//   - a regular file, or a directory with a bundle extension (.vst, .vst3, .component)
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("plugin path is empty")
	}
	if len(path) > maxPathLength {
		return fmt.Errorf("plugin path too long (%d chars, max %d)", len(path), maxPathLength)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat plugin path: %w", err)
	}

	if fi.IsDir() {
		ext := strings.ToLower(filepath.Ext(path))
		if !bundleExts[ext] {
			return fmt.Errorf("%s is a directory but not a plugin bundle", path)
		}
		return nil
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return nil
}
