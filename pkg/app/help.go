package app

import (
	"errors"
	"path/filepath"
	"runtime"
	"strings"
)

// FormatBaseName is formatted as an executable file name under different
// operating systems according to the given name.
func FormatBaseName(basename string) string {
	// Make case-insensitive and strip executable suffix if present
	if runtime.GOOS == "windows" {
		basename = strings.ToLower(basename)
		basename = strings.TrimSuffix(basename, ".exe")
	}
	return filepath.Base(basename)
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
