package report

import (
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

var reportDate = time.Date(2025, 7, 15, 0, 0, 0, 0, time.Local)

func result(name string, status models.Status, message string, issues ...models.LogIssue) *models.AnalysisResult {
	r := models.NewAnalysisResult(name)
	r.Status = status
	r.StatusMessage = message
	r.Issues = append(r.Issues, issues...)
	return r
}

func newTestBuilder(maxIssues int) *Builder {
	b := NewBuilder(arbor.NewLogger(), maxIssues)
	b.now = func() time.Time { return time.Date(2025, 7, 15, 9, 0, 0, 0, time.Local) }
	return b
}

func sampleResults() []*models.AnalysisResult {
	next := time.Date(2025, 7, 16, 2, 30, 0, 0, time.Local)
	ok := result("Export", models.StatusSuccess, "Success entries found in main log for the specified date")
	ok.LastRun = time.Date(2025, 7, 15, 2, 31, 0, 0, time.Local)
	ok.Schedule = models.ScheduleInfo{IsScheduled: true, NextRun: &next}

	return []*models.AnalysisResult{
		ok,
		result("Import", models.StatusError, "Errors found in error log for the specified date",
			models.LogIssue{Kind: models.IssueError, Message: "ERROR disk full", LineNumber: 4, FileName: "import_error.log"},
			models.LogIssue{Kind: models.IssueError, Message: "ERROR retry failed", LineNumber: 9, FileName: "import_error.log"}),
		result("Sync", models.StatusWarning, "Warnings found | main log"),
		result("Archive", models.StatusUnknown, "No log entries found for the specified date (2025-07-15)"),
	}
}

func TestCount(t *testing.T) {
	totals := Count(append(sampleResults(), nil, result("Live", models.StatusRunning, "")))

	assert.Equal(t, Totals{Total: 5, Success: 1, Failed: 1, Warning: 1, Running: 1, Unknown: 1}, totals)
}

func TestBuilder_Markdown(t *testing.T) {
	md := newTestBuilder(1).Markdown(sampleResults(), reportDate)

	assert.Contains(t, md, "# Batch Monitor Report - 2025-07-15")
	assert.Contains(t, md, "| 4 | 1 | 1 | 1 | 0 | 1 |")
	assert.Contains(t, md, "| Export | Success | 2025-07-15 02:31 | 2025-07-16 02:30 |")
	assert.Contains(t, md, `Warnings found \| main log`)
	assert.Contains(t, md, "### Import")
	assert.Contains(t, md, "- **ERROR** `import_error.log:4` ERROR disk full")
	assert.NotContains(t, md, "retry failed")
	assert.Contains(t, md, "- ... 1 more")
}

func TestBuilder_MarkdownEmpty(t *testing.T) {
	md := newTestBuilder(0).Markdown(nil, reportDate)

	assert.Contains(t, md, "No batches configured.")
}

func TestBuilder_HTML(t *testing.T) {
	doc, err := newTestBuilder(0).HTML(sampleResults(), reportDate)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, "<title>Batch Monitor Report - 2025-07-15</title>")
	assert.Contains(t, doc, "<table>")
	assert.Contains(t, doc, "<td>Import</td>")
	assert.NotContains(t, doc, "| Total |")
}

func TestBuilder_FailureDigest(t *testing.T) {
	digest := newTestBuilder(0).FailureDigest(sampleResults(), reportDate)

	assert.True(t, strings.HasPrefix(digest, "Failed Batches Report - 2025-07-15\n"))
	assert.Contains(t, digest, "Total Failed: 1")
	assert.Contains(t, digest, "Batch: Import")
	assert.Contains(t, digest, "Issues (2):")
	assert.Contains(t, digest, "  File: import_error.log, Line: 9")
	assert.NotContains(t, digest, "Batch: Export")
}

func TestBuilder_FailureDigestAllSuccess(t *testing.T) {
	b := newTestBuilder(0)
	all := []*models.AnalysisResult{
		result("A", models.StatusSuccess, ""),
		result("B", models.StatusSuccess, ""),
	}

	digest := b.FailureDigest(all, reportDate)
	assert.Contains(t, digest, "All batches running successfully!")
	assert.Contains(t, digest, "Total Batches: 2")

	mixed := append(all, result("C", models.StatusWarning, ""))
	assert.Empty(t, b.FailureDigest(mixed, reportDate))
	assert.Empty(t, b.FailureDigest(nil, reportDate))
}

func TestBuilder_WriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	b := newTestBuilder(0)

	path, err := b.WriteFile(dir, "html", sampleResults(), reportDate)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "batch-report-2025-07-15.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<main>")

	path, err = b.WriteFile(dir, "markdown", sampleResults(), reportDate)
	require.NoError(t, err)
	assert.Equal(t, ".md", filepath.Ext(path))

	_, err = b.WriteFile(dir, "pdf", sampleResults(), reportDate)
	assert.Error(t, err)
}
