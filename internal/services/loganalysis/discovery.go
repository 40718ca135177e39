package loganalysis

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	discoveryPatterns = []string{"*.log", "*.logs", "*.txt"}
	logIndicators     = []string{"log", "error", "batch", "output", "trace", "debug", "info", "warn", "exception", "audit"}
)

// IsLikelyLogFile reports whether a file name looks like log output
func IsLikelyLogFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, indicator := range logIndicators {
		if strings.Contains(name, indicator) {
			return true
		}
	}
	return false
}

// DiscoverLogFiles lists likely log files directly inside dir, most recently modified first.
// A missing or unreadable directory yields an empty list.
func DiscoverLogFiles(dir string) []string {
	type candidate struct {
		path    string
		modTime time.Time
	}

	seen := map[string]bool{}
	var found []candidate
	for _, pattern := range discoveryPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		for _, path := range matches {
			if seen[path] || !IsLikelyLogFile(path) {
				continue
			}
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			seen[path] = true
			found = append(found, candidate{path: path, modTime: info.ModTime()})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].modTime.After(found[j].modTime)
	})

	paths := make([]string, 0, len(found))
	for _, c := range found {
		paths = append(paths, c.path)
	}
	return paths
}

// DailyArchivePath is where an Hourly job's log is archived for the day before now:
// <dir>/<name>_<yyyyMMdd>.zip. The archive is never created here.
func DailyArchivePath(logPath string, now time.Time) string {
	base := filepath.Base(logPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	yesterday := now.AddDate(0, 0, -1).Format("20060102")
	return filepath.Join(filepath.Dir(logPath), name+"_"+yesterday+".zip")
}

// IsRecentlyUpdated reports whether path was modified within threshold of now
func IsRecentlyUpdated(path string, threshold time.Duration, now time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().After(now.Add(-threshold))
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
