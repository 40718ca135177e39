package loganalysis

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/common"
	"github.com/ternarybob/batchmon/internal/models"
)

const (
	DefaultTailLines      = 5000
	DefaultWholeReadBytes = 1024 * 1024
)

// FileAnalysis is the classified tail of one log file
type FileAnalysis struct {
	Path    string
	Issues  []models.LogIssue
	Status  models.Status
	Message string
	ModTime time.Time
	// LastTimestamp is the newest timestamp actually parsed from the window, zero if none
	LastTimestamp time.Time
	// ReadFailed is set when the file opened but its content could not be read
	ReadFailed bool
}

// IssuesOfKind returns the issues of one class dated on day, in line order
func (fa *FileAnalysis) IssuesOfKind(kind models.IssueKind, day time.Time) []models.LogIssue {
	var out []models.LogIssue
	for _, issue := range fa.Issues {
		if issue.Kind != kind {
			continue
		}
		if !day.IsZero() && !sameDay(issue.Timestamp, day) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

// Analyzer reads a bounded tail of a log file and classifies each line
type Analyzer struct {
	logger         arbor.ILogger
	tailLines      int
	wholeReadBytes int64
	rules          []Rule
	now            func() time.Time
}

// AnalyzerOption customizes an Analyzer
type AnalyzerOption func(*Analyzer)

// WithTailLines caps the number of trailing lines examined
func WithTailLines(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.tailLines = n
		}
	}
}

// WithWholeReadBytes sets the size below which files are read in one call
func WithWholeReadBytes(n int64) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.wholeReadBytes = n
		}
	}
}

// WithRules replaces the classification chain
func WithRules(rules []Rule) AnalyzerOption {
	return func(a *Analyzer) { a.rules = rules }
}

// WithClock injects the clock used as the timestamp fallback
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer creates a log file analyzer
func NewAnalyzer(logger arbor.ILogger, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		logger:         logger,
		tailLines:      DefaultTailLines,
		wholeReadBytes: DefaultWholeReadBytes,
		rules:          DefaultRules,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeFile classifies the tail of path. Lines dated before filterDate are dropped;
// a zero filterDate keeps every line. Failures are reported in the result, never returned.
func (a *Analyzer) AnalyzeFile(path string, filterDate time.Time) *FileAnalysis {
	result := &FileAnalysis{
		Path:   path,
		Issues: []models.LogIssue{},
		Status: models.StatusUnknown,
	}

	lines, info, err := ReadTail(path, a.tailLines, a.wholeReadBytes)
	if info != nil {
		result.ModTime = info.ModTime()
	}
	if err != nil {
		var readErr *ReadError
		if errors.As(err, &readErr) {
			a.logger.Warn().Err(err).Str("path", path).Msg("Log file read failed part way")
			result.Status = models.StatusError
			result.ReadFailed = true
			result.Message = fmt.Sprintf("Error reading log file: %v", readErr.Err)
			return result
		}
		a.logger.Debug().Err(err).Str("path", path).Msg("Cannot open log file")
		result.Message = fmt.Sprintf("Cannot open log file: %v", err)
		return result
	}
	if len(lines) == 0 {
		result.Message = "Log file is empty"
		return result
	}

	now := a.now()
	fileName := filepath.Base(path)

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		ts, message, parsed := splitTimestamp(line, now)
		if parsed && ts.After(result.LastTimestamp) {
			result.LastTimestamp = ts
		}
		if !filterDate.IsZero() && common.BeforeDay(ts, filterDate) {
			continue
		}

		kind := ClassifyWith(a.rules, line)
		if kind == models.IssueNone {
			continue
		}

		result.Issues = append(result.Issues, models.LogIssue{
			Kind:       kind,
			Message:    message,
			LineNumber: i + 1,
			FileName:   fileName,
			Timestamp:  ts,
		})
	}

	result.Status, result.Message = aggregate(result.Issues, fileName)
	return result
}

// aggregate picks the file status: Error > Warning > Success > Unknown
func aggregate(issues []models.LogIssue, fileName string) (models.Status, string) {
	counts := map[models.IssueKind]int{}
	for _, issue := range issues {
		counts[issue.Kind]++
	}
	switch {
	case counts[models.IssueError] > 0:
		return models.StatusError, fmt.Sprintf("%d error(s) in %s", counts[models.IssueError], fileName)
	case counts[models.IssueWarning] > 0:
		return models.StatusWarning, fmt.Sprintf("%d warning(s) in %s", counts[models.IssueWarning], fileName)
	case counts[models.IssueInfo] > 0:
		return models.StatusSuccess, fmt.Sprintf("Success entries found in %s", fileName)
	default:
		return models.StatusUnknown, fmt.Sprintf("No classified log entries in %s", fileName)
	}
}

func sameDay(a, b time.Time) bool {
	return common.StartOfDay(a).Equal(common.StartOfDay(b))
}
