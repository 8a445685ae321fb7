// Package cli implements the sah command: one-shot plan and exec commands, an
// interactive session and the HTTP service.
package cli

import (
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/haricheung/assignment-helper/internal/assistant"
	"github.com/haricheung/assignment-helper/internal/auditlog"
	"github.com/haricheung/assignment-helper/internal/config"
	"github.com/haricheung/assignment-helper/internal/llm"
)

// Overridden in tests.
var (
	getenv     = os.Getenv
	newGateway = func(cfg config.Config) (assistant.Gateway, error) {
		c, err := llm.New(cfg.LLMConfig())
		if err != nil {
			return nil, err
		}
		return c, nil
	}
)

// app carries global flag values into the subcommands.
type app struct {
	configPath string
	verbose    bool
	model      string
	workDir    string
	logFile    string
}

// NewRootCmd builds the sah command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "sah",
		Short: "Smart Assignment Helper",
		Long: `sah turns an assignment brief into a milestone plan with one model call,
then runs one task at a time with a second call that may write a file.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load(".env")
			if a.verbose {
				log.SetOutput(cmd.ErrOrStderr())
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Print prompts, replies and diagnostics to stderr")
	pf.StringVar(&a.model, "model", "", "Model name (overrides SAH_MODEL)")
	pf.StringVar(&a.workDir, "workdir", "", "Directory generated files are written to (overrides SAH_WORKDIR)")
	pf.StringVar(&a.logFile, "log-file", "", "Interaction log path (overrides SAH_LOG_FILE)")

	root.AddCommand(a.planCmd(), a.execCmd(), a.runCmd(), a.serveCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves defaults, file, environment and flags, in that order.
func (a *app) loadConfig() (config.Config, error) {
	cfg, err := config.Load(a.configPath, getenv)
	if err != nil {
		return config.Config{}, err
	}
	if a.model != "" {
		cfg.LLM.Model = a.model
	}
	if a.workDir != "" {
		cfg.WorkDir = a.workDir
	}
	if a.logFile != "" {
		cfg.LogFile = a.logFile
	}
	return cfg, nil
}

// newAssistant builds the gateway and an Assistant logging to cfg.LogFile.
// The caller closes the returned log.
func (a *app) newAssistant(cfg config.Config, dryRun bool) (*assistant.Assistant, *auditlog.Log, error) {
	gw, err := newGateway(cfg)
	if err != nil {
		return nil, nil, err
	}
	rec := auditlog.New(cfg.LogFile)
	return assistant.New(gw, rec, assistant.Options{
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.MaxTokens,
		WorkDir:   cfg.WorkDir,
		DryRun:    dryRun,
	}), rec, nil
}
