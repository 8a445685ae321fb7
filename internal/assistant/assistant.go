// Package assistant is the front controller shared by the CLI and the HTTP
// service. One Assistant holds one session: a brief, its plan and the repair
// state, and it records every accepted model reply in the interaction log.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/haricheung/assignment-helper/internal/llm"
	"github.com/haricheung/assignment-helper/internal/roles/executor"
	"github.com/haricheung/assignment-helper/internal/roles/planner"
	"github.com/haricheung/assignment-helper/internal/types"
)

var (
	ErrEmptyBrief = errors.New("assistant: assignment brief is empty")
	ErrEmptyTask  = errors.New("assistant: task description is empty")

	// ErrRecord wraps interaction log failures. The call itself succeeded.
	ErrRecord = errors.New("assistant: record interaction")
)

// Gateway is the Model Gateway. *llm.Client satisfies it.
type Gateway interface {
	Chat(ctx context.Context, messages []llm.Message, maxTokens int) (string, llm.Usage, error)
}

// Recorder receives interaction log entries. *auditlog.Log satisfies it.
type Recorder interface {
	Append(entry any) error
}

// Options configures an Assistant.
type Options struct {
	Model     string // recorded in log entries
	MaxTokens int
	WorkDir   string
	DryRun    bool // Execute parses and reports actions but never writes files
}

// Assistant drives one Planner/Executor session.
type Assistant struct {
	planner   *planner.Planner
	executor  *executor.Executor
	rec       Recorder
	opts      Options
	sessionID string
	brief     string
	session   *planner.Session
}

// New creates an Assistant with a fresh session id. rec may be nil.
func New(gw Gateway, rec Recorder, opts Options) *Assistant {
	return &Assistant{
		planner:   planner.New(gw, opts.MaxTokens),
		executor:  executor.New(gw, opts.MaxTokens),
		rec:       rec,
		opts:      opts,
		sessionID: uuid.NewString(),
		session:   planner.NewSession(),
	}
}

// SessionID returns the id stamped into every log entry of this session.
func (a *Assistant) SessionID() string { return a.sessionID }

// SetBrief replaces the brief used by Execute without drafting a plan.
func (a *Assistant) SetBrief(brief string) { a.brief = brief }

// Session exposes the repair state machine.
func (a *Assistant) Session() *planner.Session { return a.session }

type plannerEntry struct {
	Phase         types.Phase `json:"phase"`
	SessionID     string      `json:"session_id"`
	Model         string      `json:"model,omitempty"`
	Assignment    string      `json:"assignment"`
	PlannerOutput string      `json:"planner_output"`
	Repaired      bool        `json:"repaired,omitempty"`
	Diff          string      `json:"diff,omitempty"`
}

type executorEntry struct {
	Phase          types.Phase `json:"phase"`
	SessionID      string      `json:"session_id"`
	Model          string      `json:"model,omitempty"`
	Assignment     string      `json:"assignment"`
	Task           string      `json:"task"`
	ExecutorOutput string      `json:"executor_output"`
	Action         string      `json:"action"`
	Written        string      `json:"written,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// Plan drafts a plan for brief and parses it.
//
// Expectations:
//   - Returns ErrEmptyBrief for a blank brief without calling the model
//   - Returns the gateway error unchanged in the chain; nothing is logged
//   - Returns *types.ParseFailure when the reply is not a valid plan; nothing is logged
//   - On success stores the plan in the session and logs one planner entry
func (a *Assistant) Plan(ctx context.Context, brief string) (types.Plan, error) {
	if strings.TrimSpace(brief) == "" {
		return types.Plan{}, ErrEmptyBrief
	}
	a.brief = brief
	raw, err := a.planner.Draft(ctx, brief)
	if err != nil {
		return types.Plan{}, err
	}
	if err := a.session.Receive(raw); err != nil {
		log.Printf("[ASSIST] session=%s planner output rejected: %v", a.sessionID, err)
		return types.Plan{}, err
	}
	plan := a.session.Plan()
	log.Printf("[ASSIST] session=%s plan parsed: %d milestones, %d tasks",
		a.sessionID, len(plan.Milestones), len(a.session.Tasks()))
	return plan, a.record(plannerEntry{
		Phase:         types.PhasePlanner,
		SessionID:     a.sessionID,
		Model:         a.opts.Model,
		Assignment:    brief,
		PlannerOutput: raw,
	})
}

// Repair re-validates human-corrected planner output.
//
// Expectations:
//   - Returns planner.ErrNothingToRepair before any plan was drafted
//   - Returns *types.ParseFailure when corrected is still invalid; nothing is logged
//   - On success replaces the plan and logs a planner entry with repaired=true and a diff
func (a *Assistant) Repair(corrected string) (types.Plan, error) {
	if err := a.session.Submit(corrected); err != nil {
		return types.Plan{}, err
	}
	log.Printf("[ASSIST] session=%s plan repaired", a.sessionID)
	return a.session.Plan(), a.record(plannerEntry{
		Phase:         types.PhasePlanner,
		SessionID:     a.sessionID,
		Model:         a.opts.Model,
		Assignment:    a.brief,
		PlannerOutput: corrected,
		Repaired:      true,
		Diff:          a.session.Diff(),
	})
}

// Tasks flattens the current plan. Empty when no plan has parsed.
func (a *Assistant) Tasks() []types.TaskRecord {
	return a.session.Tasks()
}

// Execute runs the Executor for one task description against the current brief.
//
// Expectations:
//   - Returns ErrEmptyTask for a blank task and ErrEmptyBrief without a brief, before any model call
//   - Returns *types.ParseFailure when the reply is not valid; nothing is logged
//   - Applies the action under WorkDir, or only previews it when DryRun is set
//   - Logs one executor entry per parsed reply, including the write error if any
//   - Returns *executor.FileWriteError after logging when the file cannot be written
func (a *Assistant) Execute(ctx context.Context, taskDesc, extra string) (executor.Outcome, error) {
	if strings.TrimSpace(taskDesc) == "" {
		return executor.Outcome{}, ErrEmptyTask
	}
	if strings.TrimSpace(a.brief) == "" {
		return executor.Outcome{}, ErrEmptyBrief
	}
	raw, err := a.executor.Draft(ctx, taskDesc, a.brief, extra)
	if err != nil {
		return executor.Outcome{}, err
	}
	action, err := executor.ParseResult(raw)
	if err != nil {
		log.Printf("[ASSIST] session=%s executor output rejected: %v", a.sessionID, err)
		return executor.Outcome{}, err
	}

	var out executor.Outcome
	var applyErr error
	if a.opts.DryRun {
		out = executor.Preview(action)
	} else {
		out, applyErr = executor.ApplyAction(action, a.opts.WorkDir)
	}

	entry := executorEntry{
		Phase:          types.PhaseExecutor,
		SessionID:      a.sessionID,
		Model:          a.opts.Model,
		Assignment:     a.brief,
		Task:           taskDesc,
		ExecutorOutput: raw,
		Action:         action.Name(),
	}
	if out.Written() {
		entry.Written = out.Path
	}
	if applyErr != nil {
		entry.Error = applyErr.Error()
	}
	if err := a.record(entry); err != nil {
		return out, errors.Join(applyErr, err)
	}
	return out, applyErr
}

// ExecuteTask is Execute for a flattened task record.
func (a *Assistant) ExecuteTask(ctx context.Context, task types.TaskRecord, extra string) (executor.Outcome, error) {
	return a.Execute(ctx, task.Desc, extra)
}

func (a *Assistant) record(entry any) error {
	if a.rec == nil {
		return nil
	}
	if err := a.rec.Append(entry); err != nil {
		return fmt.Errorf("%w: %w", ErrRecord, err)
	}
	return nil
}
