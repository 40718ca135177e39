package loganalysis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/models"
)

var fixedNow = time.Date(2025, 7, 15, 12, 0, 0, 0, time.Local)

func fixedClock() time.Time { return fixedNow }

func writeLog(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestAnalyzer(opts ...AnalyzerOption) *Analyzer {
	return NewAnalyzer(arbor.NewLogger(), append([]AnalyzerOption{WithClock(fixedClock)}, opts...)...)
}

func TestAnalyzeFile_LineNumbersMatchFilePosition(t *testing.T) {
	path := writeLog(t, t.TempDir(), "job.log",
		"2025-07-15 01:00:00 batch started",
		"",
		"2025-07-15 01:00:05 processing",
		"2025-07-15 01:00:09 WARN retrying upload",
		"2025-07-15 01:00:12 Successfully completed",
	)

	fa := newTestAnalyzer().AnalyzeFile(path, time.Time{})

	require.Len(t, fa.Issues, 3)
	assert.Equal(t, 1, fa.Issues[0].LineNumber)
	assert.Equal(t, 4, fa.Issues[1].LineNumber)
	assert.Equal(t, 5, fa.Issues[2].LineNumber)
	assert.Equal(t, "job.log", fa.Issues[0].FileName)
	assert.Equal(t, "WARN retrying upload", fa.Issues[1].Message)
	assert.Equal(t, models.StatusWarning, fa.Status)
}

func TestAnalyzeFile_CustomRules(t *testing.T) {
	path := writeLog(t, t.TempDir(), "job.log",
		"2025-07-15 01:00:00 ERROR ignored by these rules",
		"2025-07-15 01:00:05 query slow: 12s",
	)
	rules := []Rule{{Kind: models.IssueWarning, Match: containsAny("slow")}}

	fa := newTestAnalyzer(WithRules(rules)).AnalyzeFile(path, time.Time{})

	require.Len(t, fa.Issues, 1)
	assert.Equal(t, 2, fa.Issues[0].LineNumber)
	assert.Equal(t, models.StatusWarning, fa.Status)
}

func TestAnalyzeFile_TailWindow(t *testing.T) {
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, fmt.Sprintf("2025-07-15 01:00:%02d step %d completed", i, i))
	}
	path := writeLog(t, t.TempDir(), "job.log", lines...)

	for name, analyzer := range map[string]*Analyzer{
		"whole read": newTestAnalyzer(WithTailLines(3)),
		"streamed":   newTestAnalyzer(WithTailLines(3), WithWholeReadBytes(1)),
	} {
		t.Run(name, func(t *testing.T) {
			fa := analyzer.AnalyzeFile(path, time.Time{})
			require.Len(t, fa.Issues, 3)
			assert.Equal(t, "step 8 completed", fa.Issues[0].Message)
			assert.Equal(t, 1, fa.Issues[0].LineNumber)
			assert.Equal(t, "step 10 completed", fa.Issues[2].Message)
			assert.Equal(t, 3, fa.Issues[2].LineNumber)
		})
	}
}

func TestAnalyzeFile_StreamedHandlesCRLF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.log")
	require.NoError(t, os.WriteFile(path, []byte("2025-07-15 01:00:00 started\r\n2025-07-15 01:00:01 failed\r\n"), 0644))

	fa := newTestAnalyzer(WithWholeReadBytes(1)).AnalyzeFile(path, time.Time{})

	require.Len(t, fa.Issues, 2)
	assert.Equal(t, "failed", fa.Issues[1].Message)
	assert.Equal(t, models.StatusError, fa.Status)
}

func TestAnalyzeFile_DropsLinesBeforeFilterDate(t *testing.T) {
	path := writeLog(t, t.TempDir(), "job.log",
		"2025-07-14 23:00:00 ERROR yesterday's failure",
		"2025-07-15 01:00:00 Successfully completed",
	)

	fa := newTestAnalyzer().AnalyzeFile(path, time.Date(2025, 7, 15, 0, 0, 0, 0, time.Local))

	require.Len(t, fa.Issues, 1)
	assert.Equal(t, models.IssueInfo, fa.Issues[0].Kind)
	assert.Equal(t, 2, fa.Issues[0].LineNumber)
	assert.Equal(t, models.StatusSuccess, fa.Status)
}

func TestAnalyzeFile_UnparseableLineUsesAnalysisTime(t *testing.T) {
	path := writeLog(t, t.TempDir(), "job.log", "export finished")

	fa := newTestAnalyzer().AnalyzeFile(path, time.Time{})

	require.Len(t, fa.Issues, 1)
	assert.True(t, fixedNow.Equal(fa.Issues[0].Timestamp))
	assert.True(t, fa.LastTimestamp.IsZero())
}

func TestAnalyzeFile_LastTimestamp(t *testing.T) {
	path := writeLog(t, t.TempDir(), "job.log",
		"2025-07-15 09:00:00 started",
		"2025-07-15 10:30:00 completed",
		"trailing noise",
	)

	fa := newTestAnalyzer().AnalyzeFile(path, time.Time{})

	assert.True(t, time.Date(2025, 7, 15, 10, 30, 0, 0, time.Local).Equal(fa.LastTimestamp))
	assert.False(t, fa.ModTime.IsZero())
}

func TestAnalyzeFile_Failures(t *testing.T) {
	dir := t.TempDir()

	missing := newTestAnalyzer().AnalyzeFile(filepath.Join(dir, "missing.log"), time.Time{})
	assert.Equal(t, models.StatusUnknown, missing.Status)
	assert.Empty(t, missing.Issues)
	assert.Contains(t, missing.Message, "Cannot open log file")

	empty := newTestAnalyzer().AnalyzeFile(writeLog(t, dir, "empty.log"), time.Time{})
	assert.Equal(t, models.StatusUnknown, empty.Status)
	assert.Equal(t, "Log file is empty", empty.Message)
}

func TestAggregatePriority(t *testing.T) {
	issues := []models.LogIssue{
		{Kind: models.IssueInfo},
		{Kind: models.IssueWarning},
		{Kind: models.IssueError},
	}
	status, _ := aggregate(issues, "job.log")
	assert.Equal(t, models.StatusError, status)

	status, _ = aggregate(issues[:2], "job.log")
	assert.Equal(t, models.StatusWarning, status)

	status, _ = aggregate(issues[:1], "job.log")
	assert.Equal(t, models.StatusSuccess, status)

	status, _ = aggregate(nil, "job.log")
	assert.Equal(t, models.StatusUnknown, status)
}

func TestTailText(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "job.log", "one", "two", "three")

	assert.Equal(t, "two\nthree", TailText("Main log", path, 2))
	assert.Equal(t, "Error log not configured", TailText("Error log", "", 10))
	assert.Contains(t, TailText("Config", filepath.Join(dir, "nope.toml"), 10), "Config not found")
}
