package scheduler

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/batchmon/internal/models"
)

const psNotFound = "NotFound"

// PowerShellBackend drives the Windows Task Scheduler through PowerShell cmdlets.
// Mutations run from a temporary script in an elevated PowerShell whose output
// cannot be captured, which is why the controller verifies every mutation.
// Queries run unelevated with the script on stdin.
type PowerShellBackend struct {
	runner     Runner
	logger     arbor.ILogger
	powershell string
	tempDir    string
	elevate    bool
	userID     func() string
}

// PowerShellOption customizes a PowerShellBackend
type PowerShellOption func(*PowerShellBackend)

// WithoutElevation runs mutation scripts in the current process token
func WithoutElevation() PowerShellOption {
	return func(b *PowerShellBackend) { b.elevate = false }
}

// WithTempDir sets where mutation scripts are written
func WithTempDir(dir string) PowerShellOption {
	return func(b *PowerShellBackend) { b.tempDir = dir }
}

// NewPowerShellBackend creates the Windows Task Scheduler backend
func NewPowerShellBackend(runner Runner, logger arbor.ILogger, powershellPath string, opts ...PowerShellOption) *PowerShellBackend {
	if powershellPath == "" {
		powershellPath = "powershell.exe"
	}
	b := &PowerShellBackend{
		runner:     runner,
		logger:     logger,
		powershell: powershellPath,
		tempDir:    os.TempDir(),
		elevate:    true,
		userID:     currentWindowsUser,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *PowerShellBackend) Name() string { return "powershell" }

// Apply unregisters any task with the same name and registers the definition
func (b *PowerShellBackend) Apply(ctx context.Context, def *models.TaskDefinition) error {
	return b.runPrivileged(ctx, b.registerScript(def))
}

// Remove unregisters the task
func (b *PowerShellBackend) Remove(ctx context.Context, name string) error {
	script := fmt.Sprintf("try {\n    Unregister-ScheduledTask -TaskName %s -Confirm:$false -ErrorAction Stop\n} catch {\n    Write-Error $_.Exception.Message\n}\n", psQuote(name))
	return b.runPrivileged(ctx, script)
}

// Query reads task state, next run and the registered definition
func (b *PowerShellBackend) Query(ctx context.Context, name string) (*models.TaskState, error) {
	stdout, stderr, err := b.runner.Run(ctx, b.powershell,
		[]string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command", "-"},
		b.queryScript(name))
	if err != nil {
		return nil, fmt.Errorf("task query failed: %w (%s)", err, strings.TrimSpace(stderr))
	}
	state, err := parseQueryOutput(name, stdout)
	if err != nil {
		return nil, err
	}
	if !state.Exists && strings.TrimSpace(stderr) != "" {
		return nil, fmt.Errorf("task query failed: %s", strings.TrimSpace(stderr))
	}
	return state, nil
}

func (b *PowerShellBackend) registerScript(def *models.TaskDefinition) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "$taskName = %s\n", psQuote(def.Name))
	fmt.Fprintf(&sb, "$time = '%s'\n\n", clock(def.StartTime))

	if def.Action.Arguments != "" {
		fmt.Fprintf(&sb, "$action = New-ScheduledTaskAction -Execute %s -Argument %s\n", psQuote(def.Action.Execute), psQuote(def.Action.Arguments))
	} else {
		fmt.Fprintf(&sb, "$action = New-ScheduledTaskAction -Execute %s\n", psQuote(def.Action.Execute))
	}

	switch def.Trigger {
	case models.TriggerHourly:
		fmt.Fprintf(&sb, "$trigger = New-ScheduledTaskTrigger -Once -At $time -RepetitionInterval (New-TimeSpan -Minutes %d) -RepetitionDuration (New-TimeSpan -Minutes %d)\n",
			int(def.RepetitionEvery/time.Minute), int(def.RepetitionLasting/time.Minute))
	default:
		sb.WriteString("$trigger = New-ScheduledTaskTrigger -Daily -At $time\n")
	}

	sb.WriteString("$settings = New-ScheduledTaskSettingsSet -WakeToRun -StartWhenAvailable -AllowStartIfOnBatteries\n")
	fmt.Fprintf(&sb, "$principal = New-ScheduledTaskPrincipal -UserId %s -LogonType Interactive\n", psQuote(b.userID()))
	sb.WriteString("try {\n")
	sb.WriteString("    Unregister-ScheduledTask -TaskName $taskName -Confirm:$false -ErrorAction SilentlyContinue\n")
	sb.WriteString("    Register-ScheduledTask -TaskName $taskName -Action $action -Trigger $trigger -Settings $settings -Principal $principal -Force | Out-Null\n")
	sb.WriteString("} catch {\n")
	sb.WriteString("    Write-Error $_.Exception.Message\n")
	sb.WriteString("}\n")
	return sb.String()
}

func (b *PowerShellBackend) queryScript(name string) string {
	return fmt.Sprintf(`try {
    $task = Get-ScheduledTask -TaskName %[1]s -ErrorAction Stop
    $info = Get-ScheduledTaskInfo -TaskName %[1]s -ErrorAction Stop
    "State=" + $task.State
    if ($info.NextRunTime) { "NextRun=" + $info.NextRunTime.ToString('yyyy-MM-ddTHH:mm:ss') }
    "Execute=" + $task.Actions[0].Execute
    "Arguments=" + $task.Actions[0].Arguments
    "StartBoundary=" + $task.Triggers[0].StartBoundary
    "Repetition=" + $task.Triggers[0].Repetition.Interval
    "RepetitionDuration=" + $task.Triggers[0].Repetition.Duration
} catch {
    '%[2]s'
}
`, psQuote(name), psNotFound)
}

// runPrivileged writes script to a temp file and runs it, elevated when configured
func (b *PowerShellBackend) runPrivileged(ctx context.Context, script string) error {
	scriptPath := filepath.Join(b.tempDir, fmt.Sprintf("BatchMonitor_%s.ps1", uuid.New().String()))
	if err := os.WriteFile(scriptPath, []byte(script), 0600); err != nil {
		return fmt.Errorf("failed to write scheduler script: %w", err)
	}
	defer func() {
		if err := os.Remove(scriptPath); err != nil && !os.IsNotExist(err) {
			b.logger.Debug().Err(err).Str("path", scriptPath).Msg("Failed to remove scheduler script")
		}
	}()

	args := []string{"-NoProfile", "-ExecutionPolicy", "Bypass", "-File", scriptPath}
	if b.elevate {
		args = []string{"-NoProfile", "-Command", fmt.Sprintf(
			"Start-Process -FilePath %s -Verb RunAs -Wait -WindowStyle Hidden -ArgumentList %s",
			psQuote(b.powershell),
			psQuote(fmt.Sprintf(`-NoProfile -ExecutionPolicy Bypass -File "%s"`, scriptPath)))}
	}

	_, stderr, err := b.runner.Run(ctx, b.powershell, args, "")
	if err != nil {
		return fmt.Errorf("powershell command failed: %w (%s)", err, strings.TrimSpace(stderr))
	}
	return nil
}

// parseQueryOutput reads the key=value lines printed by queryScript
func parseQueryOutput(name, output string) (*models.TaskState, error) {
	state := &models.TaskState{Name: name}
	values := map[string]string{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == psNotFound {
			return state, nil
		}
		if key, value, ok := strings.Cut(line, "="); ok {
			values[key] = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read task query output: %w", err)
	}

	taskState, ok := values["State"]
	if !ok {
		return nil, fmt.Errorf("unexpected task query output for %q: %q", name, strings.TrimSpace(output))
	}
	state.Exists = true
	state.State = taskState

	if next, ok := values["NextRun"]; ok && next != "" {
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", next, time.Local); err == nil {
			state.NextRun = &t
		}
	}

	def := &models.TaskDefinition{
		Name:    name,
		Action:  models.TaskAction{Execute: values["Execute"], Arguments: values["Arguments"]},
		Trigger: models.TriggerDaily,
	}
	if start, ok := parseStartBoundary(values["StartBoundary"]); ok {
		def.StartTime = start
	}
	if interval := values["Repetition"]; interval != "" {
		def.Trigger = models.TriggerHourly
		def.RepetitionEvery = parseISODuration(interval, time.Hour)
		def.RepetitionLasting = parseISODuration(values["RepetitionDuration"], 24*time.Hour)
	}
	state.Definition = def

	return state, nil
}

func parseStartBoundary(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(time.Local), true
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.Local); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// parseISODuration handles the PT#H#M#S and P#D forms the Task Scheduler uses
func parseISODuration(value string, fallback time.Duration) time.Duration {
	value = strings.ToUpper(strings.TrimSpace(value))
	if !strings.HasPrefix(value, "P") {
		return fallback
	}
	value = value[1:]

	var total time.Duration
	datePart, timePart, _ := strings.Cut(value, "T")
	if datePart != "" {
		if !strings.HasSuffix(datePart, "D") {
			return fallback
		}
		var days int
		if _, err := fmt.Sscanf(datePart, "%dD", &days); err != nil {
			return fallback
		}
		total += time.Duration(days) * 24 * time.Hour
	}
	if timePart != "" {
		d, err := time.ParseDuration(strings.ToLower(timePart))
		if err != nil {
			return fallback
		}
		total += d
	}
	if total <= 0 {
		return fallback
	}
	return total
}

// psQuote renders s as a single-quoted PowerShell string literal
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func currentWindowsUser() string {
	user := os.Getenv("USERNAME")
	if domain := os.Getenv("USERDOMAIN"); domain != "" && user != "" {
		return domain + `\` + user
	}
	if user == "" {
		user = os.Getenv("USER")
	}
	return user
}
