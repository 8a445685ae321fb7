package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/haricheung/assignment-helper/internal/assistant"
	"github.com/haricheung/assignment-helper/internal/tools"
	"github.com/haricheung/assignment-helper/internal/types"
	"github.com/haricheung/assignment-helper/internal/ui"
)

// blockEnd terminates multi-line input.
const blockEnd = "."

// LineReader is the subset of *readline.Instance the session loop uses.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

var newLineReader = func() (LineReader, error) {
	home, _ := tools.WorkDir("~")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "brief> ",
		HistoryFile:     filepath.Join(home, ".sah_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return rl, nil
}

var errQuit = errors.New("quit")

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Interactive session: brief, plan, repair, pick tasks, execute",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			asst, rec, err := a.newAssistant(cfg, false)
			if err != nil {
				return err
			}
			defer rec.Close()

			rl, err := newLineReader()
			if err != nil {
				return fmt.Errorf("start line editor: %w", err)
			}
			defer rl.Close()

			s := &session{asst: asst, rl: rl, out: cmd.OutOrStdout()}
			err = s.loop(cmd.Context())
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		},
	}
}

// session is one interactive run.
type session struct {
	asst *assistant.Assistant
	rl   LineReader
	out  io.Writer
}

// readLine returns the next trimmed line. EOF and Ctrl-C end the session.
func (s *session) readLine(prompt string) (string, error) {
	s.rl.SetPrompt(prompt)
	line, err := s.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", errQuit
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readBlock collects lines until a line holding only blockEnd. An empty first
// line returns "".
//
// Expectations:
//   - Joins lines with "\n" and drops the terminating "."
//   - Returns "" when the first line is empty
//   - Returns errQuit on EOF or interrupt
func (s *session) readBlock(prompt string) (string, error) {
	var lines []string
	for {
		s.rl.SetPrompt(prompt)
		line, err := s.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", errQuit
		}
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) == blockEnd {
			break
		}
		if len(lines) == 0 && strings.TrimSpace(line) == "" {
			return "", nil
		}
		lines = append(lines, line)
		prompt = "... "
	}
	return strings.Join(lines, "\n"), nil
}

func (s *session) loop(ctx context.Context) error {
	fmt.Fprintln(s.out, "Smart Assignment Helper. Enter a brief; finish with a line containing only \".\".")
	for {
		brief, err := s.readBlock("brief> ")
		if err != nil {
			return err
		}
		if strings.TrimSpace(brief) == "" {
			continue
		}
		if !s.plan(ctx, brief) {
			continue
		}
		if err := s.tasks(ctx); err != nil {
			return err
		}
	}
}

// plan drafts a plan and runs the repair loop on a parse failure. It reports
// whether a plan is available.
func (s *session) plan(ctx context.Context, brief string) bool {
	plan, err := s.asst.Plan(ctx, brief)
	var pf *types.ParseFailure
	for errors.As(err, &pf) {
		ui.RenderError(s.out, err)
		fmt.Fprintln(s.out, "Paste corrected JSON, end with \".\" (empty line to give up):")
		corrected, rerr := s.readBlock("fix> ")
		if rerr != nil || strings.TrimSpace(corrected) == "" {
			return false
		}
		plan, err = s.asst.Repair(corrected)
	}
	if err != nil {
		ui.RenderError(s.out, err)
		if !errors.Is(err, assistant.ErrRecord) {
			return false
		}
	}
	ui.RenderPlan(s.out, plan)
	return true
}

// tasks is the selection loop for the current plan. It returns nil when the
// user asks for a new brief.
func (s *session) tasks(ctx context.Context) error {
	for {
		fmt.Fprintln(s.out)
		tasks := s.asst.Tasks()
		ui.RenderTasks(s.out, tasks, ui.DefaultWidth)
		line, err := s.readLine("task [number | e=edit plan | n=new brief | q=quit]> ")
		if err != nil {
			return err
		}
		switch line {
		case "":
			continue
		case "q", "quit", "exit":
			return errQuit
		case "n":
			return nil
		case "e":
			fmt.Fprintln(s.out, "Paste the edited plan JSON, end with \".\":")
			edited, err := s.readBlock("edit> ")
			if err != nil {
				return err
			}
			if strings.TrimSpace(edited) == "" {
				continue
			}
			if _, err := s.asst.Repair(edited); err != nil {
				ui.RenderError(s.out, err)
			}
			continue
		}
		task, err := selectTask(tasks, line)
		if err != nil {
			ui.RenderError(s.out, err)
			continue
		}
		extra, err := s.readLine("context (optional)> ")
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "▶ %s\n", task.Label)
		out, err := s.asst.ExecuteTask(ctx, task, extra)
		if err != nil {
			ui.RenderError(s.out, err)
			continue
		}
		ui.RenderOutcome(s.out, out)
	}
}
