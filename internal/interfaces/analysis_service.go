package interfaces

import (
	"time"

	"github.com/ternarybob/batchmon/internal/models"
)

// StatusResolver turns a job's log files into one status for a filter date.
// It never fails: problems become Unknown or Error results.
type StatusResolver interface {
	Resolve(job *models.Job, filterDate time.Time) *models.AnalysisResult
}
