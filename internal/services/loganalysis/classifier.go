package loganalysis

import (
	"strings"

	"github.com/ternarybob/batchmon/internal/models"
)

// Rule maps a predicate over a lower-cased line to a severity class
type Rule struct {
	Kind  models.IssueKind
	Match func(lower string) bool
}

func containsAny(keywords ...string) func(string) bool {
	return func(lower string) bool {
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
		return false
	}
}

// DefaultRules is the severity priority chain. The first matching rule wins,
// so error keywords always beat warning and info keywords in the same line.
var DefaultRules = []Rule{
	{Kind: models.IssueError, Match: containsAny("] error ", "[error]", "error", "failed", "fatal", "critical", "access is denied")},
	{Kind: models.IssueWarning, Match: containsAny("] warn ", "warning", "warn", "caution", "exception", " alert ")},
	{Kind: models.IssueInfo, Match: containsAny("] info ", "info", "successfully", "completed", "started", "finished")},
}

// Classify returns the severity class of a log line using DefaultRules
func Classify(line string) models.IssueKind {
	return ClassifyWith(DefaultRules, line)
}

// ClassifyWith returns the kind of the first rule matching line, or IssueNone
func ClassifyWith(rules []Rule, line string) models.IssueKind {
	lower := strings.ToLower(strings.TrimSpace(line))
	if lower == "" {
		return models.IssueNone
	}
	for _, rule := range rules {
		if rule.Match(lower) {
			return rule.Kind
		}
	}
	return models.IssueNone
}
