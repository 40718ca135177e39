package loganalysis

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/common"
	"github.com/ternarybob/batchmon/internal/models"
)

// DefaultRecencyThreshold is how old an Hourly job's log may get before it is flagged
const DefaultRecencyThreshold = 2 * time.Hour

// classOutcome maps one severity class to the status it produces. Outcomes are
// tried in order and the first class with entries becomes the whole result.
type classOutcome struct {
	kind   models.IssueKind
	status models.Status
	label  string
}

var classOutcomes = []classOutcome{
	{kind: models.IssueError, status: models.StatusError, label: "Errors"},
	{kind: models.IssueWarning, status: models.StatusWarning, label: "Warnings"},
	{kind: models.IssueInfo, status: models.StatusSuccess, label: "Success entries"},
}

// resolutionStep handles a job if its log source is usable and reports whether it did
type resolutionStep struct {
	name    string
	resolve func(job *models.Job, day time.Time, result *models.AnalysisResult) bool
}

// Resolver applies the cross-file priority policy to produce one status per job
type Resolver struct {
	analyzer         *Analyzer
	logger           arbor.ILogger
	recencyThreshold time.Duration
	now              func() time.Time
	steps            []resolutionStep
}

// NewResolver creates a resolver. A non-positive recencyThreshold uses DefaultRecencyThreshold.
func NewResolver(analyzer *Analyzer, logger arbor.ILogger, recencyThreshold time.Duration) *Resolver {
	if recencyThreshold <= 0 {
		recencyThreshold = DefaultRecencyThreshold
	}
	r := &Resolver{
		analyzer:         analyzer,
		logger:           logger,
		recencyThreshold: recencyThreshold,
		now:              time.Now,
	}
	r.steps = []resolutionStep{
		{name: "custom log", resolve: r.resolveCustomLog},
		{name: "main log", resolve: r.resolveMainLog},
		{name: "auto-discovery", resolve: r.resolveDiscovered},
	}
	return r
}

// Resolve returns the status of job for filterDate. It never fails: a panic or
// read failure becomes an Error result carrying the failure text.
func (r *Resolver) Resolve(job *models.Job, filterDate time.Time) (result *models.AnalysisResult) {
	result = models.NewAnalysisResult(job.Name)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("job", job.Name).
				Str("panic", fmt.Sprintf("%v", rec)).
				Msg("Recovered from panic while analyzing job")
			result.Status = models.StatusError
			result.StatusMessage = fmt.Sprintf("Error analyzing batch: %v", rec)
		}
	}()

	day := common.StartOfDay(filterDate)

	handled := ""
	for _, step := range r.steps {
		if step.resolve(job, day, result) {
			handled = step.name
			break
		}
	}
	if handled == "" {
		result.StatusMessage = "No log files could be discovered for this batch"
	}

	if job.IsHourly() {
		r.annotateHourly(result)
	}

	r.logger.Debug().
		Str("job", job.Name).
		Str("date", day.Format(common.DateLayout)).
		Str("source", handled).
		Str("status", string(result.Status)).
		Int("issues", len(result.Issues)).
		Msg("Job resolved")

	return result
}

func (r *Resolver) resolveCustomLog(job *models.Job, day time.Time, result *models.AnalysisResult) bool {
	if !fileExists(job.CustomLogFilePath) {
		return false
	}
	result.DiscoveredLogFiles = []string{job.CustomLogFilePath}
	r.resolvePair(job, job.CustomLogFilePath, "", day, result)
	return true
}

func (r *Resolver) resolveMainLog(job *models.Job, day time.Time, result *models.AnalysisResult) bool {
	if !fileExists(job.LogFilePath) {
		return false
	}
	result.DiscoveredLogFiles = []string{job.LogFilePath}

	errorLog := ""
	if fileExists(job.ErrorLogFilePath) {
		errorLog = job.ErrorLogFilePath
		result.DiscoveredLogFiles = append(result.DiscoveredLogFiles, errorLog)
	}

	r.resolvePair(job, job.LogFilePath, errorLog, day, result)
	return true
}

// resolvePair checks the error log for errors on day first; those alone decide the
// result. Otherwise the main log's most severe class for day wins.
func (r *Resolver) resolvePair(job *models.Job, mainLog, errorLog string, day time.Time, result *models.AnalysisResult) {
	var errorAnalysis *FileAnalysis
	if errorLog != "" {
		errorAnalysis = r.analyzer.AnalyzeFile(errorLog, day)
		if issues := errorAnalysis.IssuesOfKind(models.IssueError, day); len(issues) > 0 {
			result.Status = models.StatusError
			result.StatusMessage = "Errors found in error log for the specified date"
			result.Issues = issues
			result.LastRun = lastRun(job, errorAnalysis)
			return
		}
	}

	mainAnalysis := r.analyzer.AnalyzeFile(mainLog, day)
	if mainAnalysis.ReadFailed {
		result.Status = models.StatusError
		result.StatusMessage = fmt.Sprintf("Error analyzing batch: %s", mainAnalysis.Message)
		result.LastRun = mainAnalysis.ModTime
		return
	}

	for _, outcome := range classOutcomes {
		if issues := mainAnalysis.IssuesOfKind(outcome.kind, day); len(issues) > 0 {
			result.Status = outcome.status
			result.StatusMessage = fmt.Sprintf("%s found in main log for the specified date", outcome.label)
			result.Issues = issues
			result.LastRun = lastRun(job, mainAnalysis)
			return
		}
	}

	result.Status = models.StatusUnknown
	result.StatusMessage = fmt.Sprintf("No log entries found for the specified date (%s)", day.Format(common.DateLayout))
	result.Issues = []models.LogIssue{}
	switch {
	case !mainAnalysis.ModTime.IsZero():
		result.LastRun = mainAnalysis.ModTime
	case errorAnalysis != nil:
		result.LastRun = errorAnalysis.ModTime
	}
}

// resolveDiscovered looks for log files next to the executable. The newest one is
// analyzed without a date filter.
func (r *Resolver) resolveDiscovered(job *models.Job, _ time.Time, result *models.AnalysisResult) bool {
	if job.ExecutablePath == "" {
		return false
	}
	files := DiscoverLogFiles(filepath.Dir(job.ExecutablePath))
	if len(files) == 0 {
		return false
	}

	result.DiscoveredLogFiles = files
	primary := r.analyzer.AnalyzeFile(files[0], time.Time{})
	fileName := filepath.Base(files[0])
	result.LastRun = lastRun(job, primary)

	if primary.ReadFailed {
		result.Status = models.StatusError
		result.StatusMessage = fmt.Sprintf("Auto-discovered: %s", primary.Message)
		return true
	}

	for _, outcome := range classOutcomes {
		if issues := primary.IssuesOfKind(outcome.kind, time.Time{}); len(issues) > 0 {
			result.Status = outcome.status
			result.StatusMessage = fmt.Sprintf("Auto-discovered: %s found in %s", outcome.label, fileName)
			result.Issues = issues
			return true
		}
	}

	result.Status = models.StatusUnknown
	result.StatusMessage = fmt.Sprintf("Auto-discovered: No log entries found in %s", fileName)
	return true
}

// annotateHourly notes yesterday's archive and a stale primary log on Hourly results
func (r *Resolver) annotateHourly(result *models.AnalysisResult) {
	if len(result.DiscoveredLogFiles) == 0 {
		return
	}
	primary := result.DiscoveredLogFiles[0]
	now := r.now()

	if archive := DailyArchivePath(primary, now); fileExists(archive) {
		result.StatusMessage += fmt.Sprintf(" (Previous day archived: %s)", filepath.Base(archive))
	}
	if !IsRecentlyUpdated(primary, r.recencyThreshold, now) {
		result.StatusMessage += " (Log not recently updated)"
	}
}

// lastRun is the file's modification time, or for Hourly jobs the newest timestamp in the log
func lastRun(job *models.Job, fa *FileAnalysis) time.Time {
	if job.IsHourly() && !fa.LastTimestamp.IsZero() {
		return fa.LastTimestamp
	}
	return fa.ModTime
}
