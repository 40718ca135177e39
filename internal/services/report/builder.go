package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/batchmon/internal/common"
	"github.com/ternarybob/batchmon/internal/models"
)

// Totals counts results by status
type Totals struct {
	Total   int
	Success int
	Failed  int
	Warning int
	Running int
	Unknown int
}

// Count tallies results by status
func Count(results []*models.AnalysisResult) Totals {
	var t Totals
	for _, r := range results {
		if r == nil {
			continue
		}
		t.Total++
		switch r.Status {
		case models.StatusSuccess:
			t.Success++
		case models.StatusError:
			t.Failed++
		case models.StatusWarning:
			t.Warning++
		case models.StatusRunning:
			t.Running++
		default:
			t.Unknown++
		}
	}
	return t
}

// Builder renders pass results for a report consumer
type Builder struct {
	logger    arbor.ILogger
	maxIssues int
	now       func() time.Time
}

// NewBuilder creates a report builder. maxIssues caps the issues listed per
// job; zero or less lists them all.
func NewBuilder(logger arbor.ILogger, maxIssues int) *Builder {
	return &Builder{logger: logger, maxIssues: maxIssues, now: time.Now}
}

// Markdown renders the full report: totals, a summary table and per-job details
func (b *Builder) Markdown(results []*models.AnalysisResult, filterDate time.Time) string {
	var sb strings.Builder
	totals := Count(results)

	fmt.Fprintf(&sb, "# Batch Monitor Report - %s\n\n", filterDate.Format(common.DateLayout))
	fmt.Fprintf(&sb, "Generated %s\n\n", b.now().Format("2006-01-02 15:04:05"))

	sb.WriteString("| Total | Success | Failed | Warning | Running | Unknown |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d | %d | %d |\n\n",
		totals.Total, totals.Success, totals.Failed, totals.Warning, totals.Running, totals.Unknown)

	if totals.Total == 0 {
		sb.WriteString("No batches configured.\n")
		return sb.String()
	}

	sb.WriteString("## Batches\n\n")
	sb.WriteString("| Batch | Status | Last Run | Next Run | Message |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, r := range results {
		if r == nil {
			continue
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			cell(r.JobName), r.Status.Label(), formatTime(r.LastRun), formatNextRun(r.Schedule), cell(r.StatusMessage))
	}
	sb.WriteString("\n")

	for _, r := range results {
		if r == nil || len(r.Issues) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n", r.JobName)
		issues := r.Issues
		if b.maxIssues > 0 && len(issues) > b.maxIssues {
			issues = issues[:b.maxIssues]
		}
		for _, issue := range issues {
			fmt.Fprintf(&sb, "- **%s** `%s:%d` %s\n", strings.ToUpper(string(issue.Kind)), issue.FileName, issue.LineNumber, issue.Message)
		}
		if hidden := len(r.Issues) - len(issues); hidden > 0 {
			fmt.Fprintf(&sb, "- ... %d more\n", hidden)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// HTML renders the markdown report as a standalone HTML document
func (b *Builder) HTML(results []*models.AnalysisResult, filterDate time.Time) (string, error) {
	markdown := b.Markdown(results, filterDate)

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithXHTML()),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		b.logger.Error().Err(err).Int("markdown_len", len(markdown)).Msg("Failed to convert report to HTML")
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	title := html.EscapeString("Batch Monitor Report - " + filterDate.Format(common.DateLayout))
	return fmt.Sprintf(htmlTemplate, title, buf.String()), nil
}

// FailureDigest is the short chat-style summary of failed batches. It is
// empty when nothing failed but not every batch succeeded.
func (b *Builder) FailureDigest(results []*models.AnalysisResult, filterDate time.Time) string {
	date := filterDate.Format(common.DateLayout)
	var failed []*models.AnalysisResult
	for _, r := range results {
		if r != nil && r.Status == models.StatusError {
			failed = append(failed, r)
		}
	}

	var sb strings.Builder
	if len(failed) == 0 {
		totals := Count(results)
		if totals.Total > 0 && totals.Success == totals.Total {
			fmt.Fprintf(&sb, "Batch Status Report - %s\n", date)
			sb.WriteString("All batches running successfully!\n")
			fmt.Fprintf(&sb, "Total Batches: %d\n", totals.Total)
		}
		return sb.String()
	}

	fmt.Fprintf(&sb, "Failed Batches Report - %s\n", date)
	fmt.Fprintf(&sb, "Total Failed: %d\n\n", len(failed))
	for _, r := range failed {
		fmt.Fprintf(&sb, "Batch: %s\n", r.JobName)
		fmt.Fprintf(&sb, "Status: %s\n", r.Status.Label())
		if r.StatusMessage != "" {
			fmt.Fprintf(&sb, "Message: %s\n", r.StatusMessage)
		}
		if len(r.Issues) > 0 {
			fmt.Fprintf(&sb, "Issues (%d):\n", len(r.Issues))
			for _, issue := range r.Issues {
				fmt.Fprintf(&sb, "- %s: %s\n", issue.Kind, issue.Message)
				fmt.Fprintf(&sb, "  File: %s, Line: %d\n", issue.FileName, issue.LineNumber)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func formatNextRun(s models.ScheduleInfo) string {
	if s.NextRun == nil {
		if s.IsScheduled {
			return "scheduled"
		}
		return "-"
	}
	return formatTime(*s.NextRun)
}

// cell keeps a value from breaking a markdown table row
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<title>%s</title>
<style>
body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
main { max-width: 900px; margin: 0 auto; background-color: white; border: 1px solid #ddd; padding: 20px; }
table { border-collapse: collapse; width: 100%%; }
th, td { border: 1px solid #ddd; padding: 6px 8px; text-align: left; }
th { background-color: #4a5568; color: white; }
</style>
</head>
<body>
<main>
%s</main>
</body>
</html>
`
