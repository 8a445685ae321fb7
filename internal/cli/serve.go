package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haricheung/assignment-helper/internal/assistant"
	"github.com/haricheung/assignment-helper/internal/auditlog"
	"github.com/haricheung/assignment-helper/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	var writeFiles bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Planner and Executor calls over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("write-files") {
				cfg.Server.WriteFiles = writeFiles
			}
			rec := auditlog.New(cfg.LogFile)
			defer rec.Close()

			// Credentials are re-read on every attempt so a fixed environment
			// or config file recovers a degraded service without a restart.
			factory := func() (assistant.Gateway, error) {
				fresh, err := a.loadConfig()
				if err != nil {
					return nil, err
				}
				return newGateway(fresh)
			}
			srv, err := server.New(cfg, rec, factory)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(cmd.OutOrStdout(), "sah serving on %s (model %s, log %s)\n", cfg.Server.Addr, cfg.LLM.Model, rec.Path())
			if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides SAH_ADDR)")
	cmd.Flags().BoolVar(&writeFiles, "write-files", false, "Apply Generate_File actions under the work directory")
	return cmd
}
