package types

import (
	"fmt"
	"strings"
)

// Phase identifies which model call produced an interaction log entry.
type Phase string

const (
	PhasePlanner  Phase = "planner"
	PhaseExecutor Phase = "executor"
)

// Action names as they appear in Executor output.
const (
	ActionGenerateFile = "Generate_File"
	ActionNoOp         = "NoOp"
)

// Plan is produced by the Planner call and consumed by the Task Selector.
// It lives only as long as the session that requested it.
type Plan struct {
	Objective    string      `json:"objective"`
	Milestones   []Milestone `json:"milestones"`
	Deliverables []string    `json:"deliverables"`
	Notes        string      `json:"notes"`
}

// Milestone groups tasks. ID is unique within a Plan by convention only.
type Milestone struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	EstHours int    `json:"est_hours"`
	Tasks    []Task `json:"tasks"`
}

// Task is one unit of work. (Milestone.ID, Task.ID) addresses it within a Plan.
type Task struct {
	ID   string `json:"id"`
	Desc string `json:"desc"`
}

// TaskRecord is the flattened, read-only projection of a Task used for selection.
// It is recomputed whenever the Plan changes.
type TaskRecord struct {
	Label       string `json:"label"`
	Desc        string `json:"desc"`
	MilestoneID int    `json:"mid"`
	TaskID      string `json:"tid"`
}

// Key returns the composite "milestone.task" address of the record.
func (r TaskRecord) Key() string {
	return TaskKey(r.MilestoneID, r.TaskID)
}

// TaskKey joins a milestone id and a task id with a dot. Models usually number
// tasks "1.1", "1.2" under milestone 1; such ids already carry the milestone
// prefix and are returned as is.
func TaskKey(milestoneID int, taskID string) string {
	prefix := fmt.Sprintf("%d.", milestoneID)
	if strings.HasPrefix(taskID, prefix) {
		return taskID
	}
	return prefix + taskID
}

// Action is the closed set of Executor results. Only the types in this package
// implement it, so a type switch over GenerateFile, NoOp and Unknown is exhaustive.
type Action interface {
	// Name returns the literal action string as the model spelled it.
	Name() string
	isAction()
}

// GenerateFile asks for Content to be written to Filename under the work directory.
type GenerateFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// NoOp means the model found nothing to do for the task.
type NoOp struct{}

// Unknown carries an action string outside the supported set.
type Unknown struct {
	Action string `json:"action"`
}

func (GenerateFile) Name() string { return ActionGenerateFile }
func (NoOp) Name() string         { return ActionNoOp }
func (u Unknown) Name() string    { return u.Action }

func (GenerateFile) isAction() {}
func (NoOp) isAction()         {}
func (Unknown) isAction()      {}

// ParseFailure is returned when model output (or a human correction) is not
// valid JSON of the expected shape. Raw is the text exactly as received so it
// can be shown for manual correction and resubmitted.
type ParseFailure struct {
	Stage Phase
	Raw   string
	Err   error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("%s: invalid JSON: %v", e.Stage, e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }
