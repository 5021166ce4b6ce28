package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/yasi-python/samplebound/pkg/api"
	"github.com/yasi-python/samplebound/pkg/metrics"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var auditEvery time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API over the configured campaign database.

Campaigns listed in the config are created on startup. The server stops on
SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if auditEvery <= 0 {
				return errors.New("--audit-interval must be positive")
			}
			m, closeDB, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			if err := m.SeedCampaigns(); err != nil {
				return err
			}
			metrics.MustRegister(prometheus.DefaultRegisterer)

			ctx, cancel := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			go m.backgroundLoop(ctx, auditEvery)

			srv := api.New(m, m.cfg)
			m.log.Info("api_start", "listen", m.cfg.Service.HTTPListen, "version", version)
			if err := srv.Serve(ctx, m.cfg.Service.HTTPListen); err != nil {
				m.log.Error("api_stopped", "err", err.Error())
				return err
			}
			m.log.Info("api_stopped")
			return nil
		},
	}
	cmd.Flags().DurationVar(&auditEvery, "audit-interval", time.Minute, "How often to scan for due re-audits")
	return cmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
