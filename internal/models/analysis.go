package models

import "time"

// Status is the health of a job for one filter date
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
	StatusRunning Status = "running"
)

// Label returns the short operator-facing text for the status
func (s Status) Label() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusWarning:
		return "Warnings"
	case StatusError:
		return "Errors"
	case StatusRunning:
		return "Running"
	default:
		return "Unknown"
	}
}

// IssueKind is the severity class of a classified log line
type IssueKind string

const (
	IssueError   IssueKind = "error"
	IssueWarning IssueKind = "warning"
	IssueInfo    IssueKind = "info"
	// IssueNone marks a line that matched no rule; it is never stored
	IssueNone IssueKind = ""
)

// StatusFor maps a severity class to the status it produces
func (k IssueKind) StatusFor() Status {
	switch k {
	case IssueError:
		return StatusError
	case IssueWarning:
		return StatusWarning
	case IssueInfo:
		return StatusSuccess
	default:
		return StatusUnknown
	}
}

// LogIssue is one classified line from a log file
type LogIssue struct {
	Kind       IssueKind `json:"kind"`
	Message    string    `json:"message"`
	LineNumber int       `json:"line_number"` // 1-based within the tail window
	FileName   string    `json:"file_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScheduleInfo is the live scheduler view of a job
type ScheduleInfo struct {
	IsScheduled bool       `json:"is_scheduled"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

// AnalysisResult is the merged status of one job for one filter date.
// It is rebuilt on every pass and never stored.
type AnalysisResult struct {
	JobName            string       `json:"job_name"`
	Status             Status       `json:"status"`
	StatusMessage      string       `json:"status_message"`
	LastRun            time.Time    `json:"last_run"`
	DiscoveredLogFiles []string     `json:"discovered_log_files"`
	Issues             []LogIssue   `json:"issues"`
	Schedule           ScheduleInfo `json:"schedule"`
}

// NewAnalysisResult returns the starting point every resolution begins from
func NewAnalysisResult(jobName string) *AnalysisResult {
	return &AnalysisResult{
		JobName:            jobName,
		Status:             StatusUnknown,
		StatusMessage:      "No log files found",
		DiscoveredLogFiles: []string{},
		Issues:             []LogIssue{},
	}
}

// IssueCount counts issues of the given kind
func (r *AnalysisResult) IssueCount(kind IssueKind) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			n++
		}
	}
	return n
}
