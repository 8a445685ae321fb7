package planner

import (
	"github.com/haricheung/assignment-helper/internal/llm"
	"github.com/haricheung/assignment-helper/internal/types"
)

// ParsePlan decodes raw into a Plan. raw is decoded as-is first; a markdown
// fence or <think> block is stripped only when that fails. Everything else
// must be strict JSON of the plan shape.
// A missing "milestones" key is not an error.
//
// Expectations:
//   - Returns the decoded Plan for a valid plan object
//   - Treats an absent "milestones" key as no milestones
//   - Accepts a plan wrapped in a ```json fence
//   - Keeps "<think>" inside string values intact
//   - Returns *types.ParseFailure carrying raw unchanged on syntax errors
//   - Returns *types.ParseFailure when the top level is not an object (array, null, scalar)
//   - Returns *types.ParseFailure when a field has the wrong type
//   - Rejects trailing content after the object
func ParsePlan(raw string) (types.Plan, error) {
	var plan types.Plan
	if err := llm.DecodeObject(raw, &plan); err != nil {
		return types.Plan{}, &types.ParseFailure{Stage: types.PhasePlanner, Raw: raw, Err: err}
	}
	return plan, nil
}

// Flatten lists every task of plan in milestone-major, task-minor order.
// It never deduplicates: repeated ids produce repeated records.
//
// Expectations:
//   - Returns one record per task, sum(len(m.Tasks)) in total
//   - Preserves milestone order, then task order within a milestone
//   - Returns an empty, non-nil slice for a plan without milestones
//   - Labels read "{milestone}.{task} — {desc}"
//   - Does not repeat the milestone prefix when the task id already starts with "{milestone}."
func Flatten(plan types.Plan) []types.TaskRecord {
	records := make([]types.TaskRecord, 0)
	for _, m := range plan.Milestones {
		for _, t := range m.Tasks {
			records = append(records, types.TaskRecord{
				Label:       label(m.ID, t),
				Desc:        t.Desc,
				MilestoneID: m.ID,
				TaskID:      t.ID,
			})
		}
	}
	return records
}

func label(milestoneID int, t types.Task) string {
	return types.TaskKey(milestoneID, t.ID) + " — " + t.Desc
}
