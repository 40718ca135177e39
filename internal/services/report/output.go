package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/batchmon/internal/common"
	"github.com/ternarybob/batchmon/internal/models"
)

// Render produces the report in format ("markdown", "md" or "html")
func (b *Builder) Render(format string, results []*models.AnalysisResult, filterDate time.Time) (string, error) {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		return b.Markdown(results, filterDate), nil
	case "html":
		return b.HTML(results, filterDate)
	default:
		return "", fmt.Errorf("unsupported report format %q", format)
	}
}

// WriteFile renders the report into dir as batch-report-<date>.<ext> and
// returns the written path
func (b *Builder) WriteFile(dir, format string, results []*models.AnalysisResult, filterDate time.Time) (string, error) {
	content, err := b.Render(format, results, filterDate)
	if err != nil {
		return "", err
	}

	ext := ".md"
	if strings.EqualFold(format, "html") {
		ext = ".html"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, "batch-report-"+filterDate.Format(common.DateLayout)+ext)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	b.logger.Info().Str("path", path).Int("batches", len(results)).Msg("Report written")
	return path, nil
}
