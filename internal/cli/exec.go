package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haricheung/assignment-helper/internal/assistant"
	"github.com/haricheung/assignment-helper/internal/roles/planner"
	"github.com/haricheung/assignment-helper/internal/types"
	"github.com/haricheung/assignment-helper/internal/ui"
)

func (a *app) execCmd() *cobra.Command {
	var planPath, taskSel, brief, extra string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run the Executor for one task of a saved plan",
		Example: `  sah exec --plan plan.json --task 1
  sah exec --plan plan.json --task 1.1 --context "use Go"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, err := readPlan(planPath)
			if err != nil {
				return err
			}
			task, err := selectTask(planner.Flatten(sp.Plan), taskSel)
			if err != nil {
				return err
			}
			if brief == "" {
				brief = sp.Assignment
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			asst, rec, err := a.newAssistant(cfg, dryRun)
			if err != nil {
				return err
			}
			defer rec.Close()

			asst.SetBrief(brief)
			fmt.Fprintf(cmd.OutOrStdout(), "▶ %s\n", task.Label)
			out, err := asst.ExecuteTask(cmd.Context(), task, extra)
			if err != nil {
				ui.RenderError(cmd.ErrOrStderr(), err)
				if !errors.Is(err, assistant.ErrRecord) {
					return err
				}
			}
			ui.RenderOutcome(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "plan.json", "Plan saved by `sah plan --out`")
	cmd.Flags().StringVarP(&taskSel, "task", "t", "", "Task number from the list (1-based) or milestone.task key")
	cmd.Flags().StringVar(&brief, "brief", "", "Override the saved assignment brief")
	cmd.Flags().StringVar(&extra, "context", "", "Additional context for the Executor")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the action without writing files")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

// selectTask resolves sel against tasks.
//
// Expectations:
//   - A plain integer selects by 1-based position
//   - Anything else matches the first record whose "milestone.task" key equals sel
//   - Returns an error for out-of-range positions, unknown keys and empty selections
func selectTask(tasks []types.TaskRecord, sel string) (types.TaskRecord, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return types.TaskRecord{}, fmt.Errorf("no task selected")
	}
	if n, err := strconv.Atoi(sel); err == nil {
		if n < 1 || n > len(tasks) {
			return types.TaskRecord{}, fmt.Errorf("task %d out of range (1-%d)", n, len(tasks))
		}
		return tasks[n-1], nil
	}
	for _, t := range tasks {
		if t.Key() == sel {
			return t, nil
		}
	}
	return types.TaskRecord{}, fmt.Errorf("no task %q in plan", sel)
}
