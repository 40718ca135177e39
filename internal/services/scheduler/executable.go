package scheduler

import (
	"os"
	"path/filepath"
	"strings"
)

var executableExtensions = []string{".exe", ".ps1", ".bat", ".cmd", ".sh"}

const conventionalLauncher = "StartServices.exe"

// FindExecutable guesses the program that writes logPath. It looks for
// <logname>.{exe,ps1,bat,cmd,sh} and StartServices.exe next to the log, then in
// the parent directory, then for any .exe beside the log whose name shares the
// log's name or contains "start" or "service". Returns "" when nothing fits.
func FindExecutable(logPath string) string {
	if logPath == "" {
		return ""
	}
	dir := filepath.Dir(logPath)
	base := filepath.Base(logPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	searchDir := func(d string) string {
		for _, ext := range executableExtensions {
			if candidate := filepath.Join(d, stem+ext); isFile(candidate) {
				return candidate
			}
		}
		if candidate := filepath.Join(d, conventionalLauncher); isFile(candidate) {
			return candidate
		}
		return ""
	}

	if found := searchDir(dir); found != "" {
		return found
	}
	if parent := filepath.Dir(dir); parent != dir {
		if found := searchDir(parent); found != "" {
			return found
		}
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.exe"))
	lowerStem := strings.ToLower(stem)
	for _, candidate := range matches {
		name := strings.ToLower(strings.TrimSuffix(filepath.Base(candidate), filepath.Ext(candidate)))
		if strings.Contains(name, lowerStem) || strings.Contains(lowerStem, name) ||
			strings.Contains(name, "start") || strings.Contains(name, "service") {
			return candidate
		}
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
