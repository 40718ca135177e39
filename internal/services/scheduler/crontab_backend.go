package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/models"
)

const crontabMarker = "# batchmon:"

// CrontabBackend manages tasks in the current user's crontab. Each task is a
// marker comment followed by one schedule line.
//
// Hourly tasks run every hour indefinitely: cron has no way to bound a
// repetition to one day the way the Windows trigger does.
type CrontabBackend struct {
	runner  Runner
	logger  arbor.ILogger
	crontab string
	now     func() time.Time
	// serializes read-modify-write cycles on the crontab
	mu sync.Mutex
}

// NewCrontabBackend creates the crontab backend
func NewCrontabBackend(runner Runner, logger arbor.ILogger, crontabPath string) *CrontabBackend {
	if crontabPath == "" {
		crontabPath = "crontab"
	}
	return &CrontabBackend{
		runner:  runner,
		logger:  logger,
		crontab: crontabPath,
		now:     time.Now,
	}
}

func (b *CrontabBackend) Name() string { return "crontab" }

// Apply replaces any existing entry for the task with the definition
func (b *CrontabBackend) Apply(ctx context.Context, def *models.TaskDefinition) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines, err := b.read(ctx)
	if err != nil {
		return err
	}
	lines = removeEntry(lines, def.Name)
	lines = append(lines, renderEntry(def)...)
	return b.write(ctx, lines)
}

// Remove deletes the task's entry; a missing entry is not an error
func (b *CrontabBackend) Remove(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines, err := b.read(ctx)
	if err != nil {
		return err
	}
	kept := removeEntry(lines, name)
	if len(kept) == len(lines) {
		return nil
	}
	return b.write(ctx, kept)
}

// Query finds the task's entry and computes its next run
func (b *CrontabBackend) Query(ctx context.Context, name string) (*models.TaskState, error) {
	b.mu.Lock()
	lines, err := b.read(ctx)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	state := &models.TaskState{Name: name}
	marker, entry, found := findEntry(lines, name)
	if !found {
		return state, nil
	}

	state.Exists = true
	state.State = models.TaskStateReady
	if strings.HasPrefix(entry, "#") {
		state.State = "Disabled"
		entry = strings.TrimSpace(strings.TrimPrefix(entry, "#"))
	}

	fields := strings.Fields(entry)
	if len(fields) < 6 {
		return nil, fmt.Errorf("malformed crontab entry for %q: %q", name, entry)
	}
	spec := strings.Join(fields[:5], " ")
	if schedule, err := cron.ParseStandard(spec); err == nil && state.State == models.TaskStateReady {
		next := schedule.Next(b.now())
		state.NextRun = &next
	}

	def := parseMarker(name, marker)
	def.Action = splitCommand(commandPart(entry))
	state.Definition = def

	return state, nil
}

func (b *CrontabBackend) read(ctx context.Context) ([]string, error) {
	stdout, stderr, err := b.runner.Run(ctx, b.crontab, []string{"-l"}, "")
	if err != nil {
		if strings.Contains(strings.ToLower(stderr), "no crontab") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read crontab: %w (%s)", err, strings.TrimSpace(stderr))
	}
	content := strings.TrimRight(stdout, "\n")
	if content == "" {
		return nil, nil
	}
	return strings.Split(content, "\n"), nil
}

func (b *CrontabBackend) write(ctx context.Context, lines []string) error {
	content := strings.Join(lines, "\n") + "\n"
	if _, stderr, err := b.runner.Run(ctx, b.crontab, []string{"-"}, content); err != nil {
		return fmt.Errorf("failed to install crontab: %w (%s)", err, strings.TrimSpace(stderr))
	}
	b.logger.Debug().Int("lines", len(lines)).Msg("Crontab installed")
	return nil
}

func markerPrefix(name string) string {
	return crontabMarker + name + " "
}

func renderEntry(def *models.TaskDefinition) []string {
	start := def.StartTime
	spec := fmt.Sprintf("%d %d * * *", start.Minute(), start.Hour())
	if def.Trigger == models.TriggerHourly {
		spec = fmt.Sprintf("%d * * * *", start.Minute())
	}

	command := quoteIfNeeded(def.Action.Execute)
	if def.Action.Arguments != "" {
		command += " " + def.Action.Arguments
	}
	command = strings.ReplaceAll(command, "%", `\%`)

	return []string{
		fmt.Sprintf("%skind=%s start=%s", markerPrefix(def.Name), def.Trigger, clock(start)),
		spec + " " + command,
	}
}

// findEntry returns the marker and schedule lines for name
func findEntry(lines []string, name string) (marker, entry string, found bool) {
	prefix := markerPrefix(name)
	for i, line := range lines {
		if strings.HasPrefix(line, prefix) && i+1 < len(lines) {
			return line, strings.TrimSpace(lines[i+1]), true
		}
	}
	return "", "", false
}

// removeEntry drops the marker and schedule lines for name
func removeEntry(lines []string, name string) []string {
	prefix := markerPrefix(name)
	kept := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], prefix) {
			i++ // skip the schedule line too
			continue
		}
		kept = append(kept, lines[i])
	}
	return kept
}

func parseMarker(name, marker string) *models.TaskDefinition {
	def := &models.TaskDefinition{Name: name, Trigger: models.TriggerDaily}
	for _, field := range strings.Fields(strings.TrimPrefix(marker, markerPrefix(name))) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "kind":
			if value == string(models.TriggerHourly) {
				def.Trigger = models.TriggerHourly
				def.RepetitionEvery = time.Hour
				def.RepetitionLasting = 24 * time.Hour
			}
		case "start":
			if t, err := time.ParseInLocation("15:04", value, time.Local); err == nil {
				def.StartTime = t
			}
		}
	}
	return def
}

// commandPart strips the five schedule fields from a crontab line
func commandPart(entry string) string {
	rest := strings.TrimSpace(entry)
	for i := 0; i < 5; i++ {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = strings.TrimSpace(rest[idx:])
	}
	return strings.ReplaceAll(rest, `\%`, "%")
}

// splitCommand separates the executable from its arguments, honoring a leading quoted path
func splitCommand(command string) models.TaskAction {
	if strings.HasPrefix(command, `"`) {
		if end := strings.Index(command[1:], `"`); end >= 0 {
			return models.TaskAction{
				Execute:   command[1 : end+1],
				Arguments: strings.TrimSpace(command[end+2:]),
			}
		}
	}
	execute, args, _ := strings.Cut(command, " ")
	return models.TaskAction{Execute: execute, Arguments: strings.TrimSpace(args)}
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}
