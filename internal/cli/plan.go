package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haricheung/assignment-helper/internal/assistant"
	"github.com/haricheung/assignment-helper/internal/tools"
	"github.com/haricheung/assignment-helper/internal/types"
	"github.com/haricheung/assignment-helper/internal/ui"
)

// savedPlan is the file written by `sah plan --out` and read by `sah exec`.
type savedPlan struct {
	Assignment string     `json:"assignment"`
	Plan       types.Plan `json:"plan"`
}

func (a *app) planCmd() *cobra.Command {
	var briefFile, outPath string
	cmd := &cobra.Command{
		Use:   "plan [brief...]",
		Short: "Draft a milestone plan for an assignment brief",
		Example: `  sah plan "Build a CLI todo app"
  sah plan --brief-file assignment.txt --out plan.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			brief, err := readBrief(args, briefFile)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			asst, rec, err := a.newAssistant(cfg, false)
			if err != nil {
				return err
			}
			defer rec.Close()

			out := cmd.OutOrStdout()
			plan, planErr := asst.Plan(cmd.Context(), brief)
			if planErr != nil {
				ui.RenderError(cmd.ErrOrStderr(), planErr)
				if !errors.Is(planErr, assistant.ErrRecord) {
					return planErr
				}
			}
			ui.RenderPlan(out, plan)
			fmt.Fprintln(out)
			ui.RenderTasks(out, asst.Tasks(), ui.DefaultWidth)

			if outPath != "" {
				if err := writePlan(outPath, savedPlan{Assignment: brief, Plan: plan}); err != nil {
					return errors.Join(planErr, err)
				}
				fmt.Fprintf(out, "\nPlan saved to %s\n", outPath)
			}
			// A failed log write still fails the command once the plan is shown.
			return planErr
		},
	}
	cmd.Flags().StringVar(&briefFile, "brief-file", "", "Read the brief from a file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Save the plan as JSON for `sah exec`")
	return cmd
}

// readBrief takes the brief from a file when briefFile is set, else from args.
func readBrief(args []string, briefFile string) (string, error) {
	brief := strings.Join(args, " ")
	if briefFile != "" {
		data, err := os.ReadFile(briefFile)
		if err != nil {
			return "", fmt.Errorf("read brief: %w", err)
		}
		brief = string(data)
	}
	if strings.TrimSpace(brief) == "" {
		return "", errors.New("an assignment brief is required (argument or --brief-file)")
	}
	return brief, nil
}

func writePlan(path string, sp savedPlan) error {
	data, err := json.MarshalIndent(sp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if err := tools.WriteFile(path, string(data)+"\n"); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

func readPlan(path string) (savedPlan, error) {
	data, err := tools.ReadFile(path)
	if err != nil {
		return savedPlan{}, fmt.Errorf("read plan: %w", err)
	}
	var sp savedPlan
	if err := json.Unmarshal([]byte(data), &sp); err != nil {
		return savedPlan{}, fmt.Errorf("decode plan %s: %w", path, err)
	}
	return sp, nil
}
