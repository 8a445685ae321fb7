// Package ui renders plans, task lists and executor outcomes for the terminal.
package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/haricheung/assignment-helper/internal/roles/executor"
	"github.com/haricheung/assignment-helper/internal/types"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)
)

// clip truncates s to at most n terminal cells, appending "…" if trimmed.
// Wide (CJK) runes count as two cells.
//
// Expectations:
//   - Returns s unchanged when it fits in n cells
//   - Truncates ASCII to n cells including the trailing "…"
//   - Never splits a wide rune: the result is at most n cells
//   - Returns "" for n <= 0
func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return runewidth.Truncate(s, n, "…")
}

// RenderPlan prints the objective, milestones with their tasks, deliverables
// and notes.
func RenderPlan(w io.Writer, plan types.Plan) {
	fmt.Fprintln(w, titleStyle.Render("📐 Plan"))
	if plan.Objective != "" {
		fmt.Fprintf(w, "Objective: %s\n", plan.Objective)
	}
	for _, m := range plan.Milestones {
		head := fmt.Sprintf("Milestone %d: %s", m.ID, m.Title)
		if m.EstHours > 0 {
			head += fmt.Sprintf(" (~%dh)", m.EstHours)
		}
		fmt.Fprintln(w, headerStyle.Render(head))
		for _, t := range m.Tasks {
			fmt.Fprintf(w, "  - %s %s\n", types.TaskKey(m.ID, t.ID), t.Desc)
		}
	}
	if len(plan.Milestones) == 0 {
		fmt.Fprintln(w, dimStyle.Render("(no milestones)"))
	}
	if len(plan.Deliverables) > 0 {
		fmt.Fprintf(w, "Deliverables: %s\n", strings.Join(plan.Deliverables, ", "))
	}
	if plan.Notes != "" {
		fmt.Fprintf(w, "Notes: %s\n", plan.Notes)
	}
}

// TaskLine formats one selectable entry: "[n] label", clipped to width cells.
func TaskLine(n int, rec types.TaskRecord, width int) string {
	return clip(fmt.Sprintf("[%d] %s", n, rec.Label), width)
}

// RenderTasks prints the numbered task list used for selection. Numbers start at 1.
func RenderTasks(w io.Writer, tasks []types.TaskRecord, width int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if len(tasks) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No tasks in this plan."))
		return
	}
	fmt.Fprintln(w, headerStyle.Render("Tasks"))
	for i, t := range tasks {
		fmt.Fprintln(w, TaskLine(i+1, t, width))
	}
}

// RenderOutcome prints the result of one Executor call.
func RenderOutcome(w io.Writer, out executor.Outcome) {
	switch a := out.Action.(type) {
	case types.GenerateFile:
		if out.Written() {
			fmt.Fprintf(w, "%s %s\n", okStyle.Render("✅ Generated"), out.AbsPath)
		} else {
			fmt.Fprintf(w, "%s %s (not written)\n", warnStyle.Render("📝 Proposed"), out.Path)
		}
		fmt.Fprintln(w, dimStyle.Render(clip(firstLine(a.Content), DefaultWidth)))
	case types.NoOp:
		fmt.Fprintln(w, dimStyle.Render("NoOp: nothing to do for this task."))
	case types.Unknown:
		fmt.Fprintf(w, "%s unsupported action %q\n", warnStyle.Render("⚠️  Unknown"), a.Action)
	default:
		fmt.Fprintln(w, out.Message)
	}
}

// RenderError prints err. A *types.ParseFailure is shown with its raw text so
// it can be copied, corrected and resubmitted.
func RenderError(w io.Writer, err error) {
	var pf *types.ParseFailure
	if errors.As(err, &pf) {
		fmt.Fprintf(w, "%s %s output is not valid JSON: %v\n", errStyle.Render("❌"), pf.Stage, pf.Err)
		fmt.Fprintln(w, headerStyle.Render("Raw output:"))
		fmt.Fprintln(w, pf.Raw)
		return
	}
	fmt.Fprintf(w, "%s %v\n", errStyle.Render("❌"), err)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
