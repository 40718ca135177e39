package models

import "time"

// TriggerKind is the recurrence registered with the host scheduler
type TriggerKind string

const (
	// TriggerDaily fires once a day at the start time
	TriggerDaily TriggerKind = "daily"
	// TriggerHourly fires every hour from the start time for one day
	TriggerHourly TriggerKind = "hourly"
)

// TaskAction is what the scheduler runs: an executable, or an interpreter with a script
type TaskAction struct {
	Execute   string `json:"execute"`
	Arguments string `json:"arguments,omitempty"`
	// ScriptPath is set when Execute is an interpreter
	ScriptPath string `json:"script_path,omitempty"`
}

// TaskDefinition is a named, idempotent register-or-replace request for the host scheduler
type TaskDefinition struct {
	Name              string        `json:"name"`
	Action            TaskAction    `json:"action"`
	Trigger           TriggerKind   `json:"trigger"`
	StartTime         time.Time     `json:"start_time"`
	RepetitionEvery   time.Duration `json:"repetition_every,omitempty"`
	RepetitionLasting time.Duration `json:"repetition_lasting,omitempty"`
}

// TaskState is what a scheduler query reports for one task name
type TaskState struct {
	Name    string `json:"name"`
	Exists  bool   `json:"exists"`
	State   string `json:"state"` // Ready, Running, Disabled, ...
	NextRun *time.Time
	// Definition is the recovered registration, when the backend can read it back
	Definition *TaskDefinition
}

// TaskStateReady is the host state for an enabled, idle task
const TaskStateReady = "Ready"

// IsReady reports whether the task exists and is enabled
func (s *TaskState) IsReady() bool {
	return s != nil && s.Exists && s.State == TaskStateReady
}
