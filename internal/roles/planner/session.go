package planner

import (
	"errors"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/haricheung/assignment-helper/internal/types"
)

// State is a step of the manual repair loop.
type State int

const (
	Awaiting    State = iota // no Planner reply received yet
	Parsed                   // Planner reply parsed as-is
	ParseFailed              // last text did not parse; a correction is expected
	Repaired                 // a human-submitted correction parsed
)

func (s State) String() string {
	switch s {
	case Awaiting:
		return "awaiting"
	case Parsed:
		return "parsed"
	case ParseFailed:
		return "parse_failed"
	case Repaired:
		return "repaired"
	default:
		return "unknown"
	}
}

// ErrNothingToRepair is returned by Submit before any Planner reply was received.
var ErrNothingToRepair = errors.New("planner: no plan received yet")

// Session holds one brief's plan through the edit-and-resubmit loop.
// Transitions:
//
//	Awaiting|*  --Receive(raw)-->      Parsed | ParseFailed(raw)
//	ParseFailed --Submit(corrected)--> Repaired | ParseFailed(corrected)
//	Parsed|Repaired --Submit(edit)-->  Repaired | (unchanged, error returned)
//
// A successful Submit replaces the plan in full; nothing is merged.
//
// Expectations:
//   - Starts in Awaiting with no plan
//   - Receive of valid JSON moves to Parsed and stores the plan
//   - Receive of invalid JSON moves to ParseFailed and keeps the raw text
//   - Submit in Awaiting returns ErrNothingToRepair
//   - Submit of valid JSON from ParseFailed moves to Repaired and replaces the plan
//   - Submit of invalid JSON from ParseFailed stays in ParseFailed with the new text
//   - Submit of invalid JSON from Parsed or Repaired keeps the state and the current plan
//   - Tasks is recomputed from the current plan on every call
type Session struct {
	state    State
	plan     types.Plan
	raw      string // text behind the current plan, or the last rejected text
	rejected string // last text that failed to parse; source side of Diff
}

// NewSession returns a Session in the Awaiting state.
func NewSession() *Session {
	return &Session{state: Awaiting}
}

// Receive records a fresh Planner reply. Any earlier plan is discarded.
func (s *Session) Receive(raw string) error {
	s.plan = types.Plan{}
	s.rejected = ""
	s.raw = raw
	plan, err := ParsePlan(raw)
	if err != nil {
		s.state = ParseFailed
		s.rejected = raw
		return err
	}
	s.plan = plan
	s.state = Parsed
	return nil
}

// Submit re-validates human-corrected text through ParsePlan.
func (s *Session) Submit(corrected string) error {
	if s.state == Awaiting {
		return ErrNothingToRepair
	}
	plan, err := ParsePlan(corrected)
	if err != nil {
		if s.state == ParseFailed {
			s.raw = corrected
			s.rejected = corrected
		}
		return err
	}
	if s.state != ParseFailed {
		s.rejected = s.raw
	}
	s.plan = plan
	s.raw = corrected
	s.state = Repaired
	return nil
}

// State returns the current step.
func (s *Session) State() State { return s.state }

// HasPlan reports whether a parsed plan is available.
func (s *Session) HasPlan() bool { return s.state == Parsed || s.state == Repaired }

// Plan returns the current plan; the zero Plan when none parsed.
func (s *Session) Plan() types.Plan { return s.plan }

// Raw returns the text of the current plan, or the rejected text in ParseFailed.
func (s *Session) Raw() string { return s.raw }

// Tasks flattens the current plan. Empty when no plan is available.
func (s *Session) Tasks() []types.TaskRecord {
	if !s.HasPlan() {
		return []types.TaskRecord{}
	}
	return Flatten(s.plan)
}

// Diff returns a unified diff from the text that was replaced to the accepted
// correction. Empty unless the session is Repaired.
func (s *Session) Diff() string {
	if s.state != Repaired || s.rejected == "" {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(s.rejected),
		B:        difflib.SplitLines(s.raw),
		FromFile: "planner_output",
		ToFile:   "corrected",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return strings.TrimRight(text, "\n")
}
