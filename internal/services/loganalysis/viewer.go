package loganalysis

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// TailText returns the last n lines of path for display. Missing or unreadable
// files produce a notice instead of an error.
func TailText(label, path string, n int) string {
	if path == "" {
		return fmt.Sprintf("%s not configured", label)
	}
	lines, _, err := ReadTail(path, n, DefaultWholeReadBytes)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Sprintf("%s not found: %s", label, path)
	case err != nil:
		return fmt.Sprintf("%s could not be read: %v", label, err)
	case len(lines) == 0:
		return fmt.Sprintf("%s is empty: %s", label, path)
	}
	return strings.Join(lines, "\n")
}
