package cmd

import (
	"context"
	"os"
	"os/signal"
	"reviewq/internal/api"
	"reviewq/internal/app"
	"reviewq/internal/config"
	"reviewq/internal/infra/redisq"
	"reviewq/internal/usecase"
	"reviewq/internal/worker"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func apiCmd() *cobra.Command {
	var (
		port       int
		withWorker bool
	)
	var command = &cobra.Command{
		Use:   "api",
		Short: "Start API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = log.Logger.WithContext(ctx)

			a, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			log.Info().
				Str("store", cfg.Workflow.Store).
				Str("reject_policy", cfg.Workflow.RejectPolicy).
				Dur("lease_ttl", cfg.Workflow.LeaseTTL).
				Msg("workflow engine ready")

			var wg sync.WaitGroup
			// the in-memory outbox only exists in this process
			if withWorker || cfg.Workflow.Store == app.StoreMemory {
				if a.Redis != nil {
					sched := redisq.NewScheduler(a.Redis, time.Second)
					wg.Add(1)
					go func() {
						defer wg.Done()
						_ = sched.Run(ctx)
					}()
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := worker.Consume(ctx, a.Payouts, a.Settler, worker.Config{
						ConsumerName: "api-inline",
						BaseBackoff:  500 * time.Millisecond,
						MaxBackoff:   30 * time.Second,
					}); err != nil {
						log.Error().Err(err).Msg("inline settlement worker stopped")
					}
				}()
			}
			if cfg.Workflow.LeaseTTL > 0 {
				sweeper := usecase.Sweeper{Engine: a.Engine, Interval: cfg.Workflow.SweepInterval}
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = sweeper.Run(ctx)
				}()
			}

			server := api.NewServer(api.Deps{
				Engine:    a.Engine,
				Payouts:   a.Payouts,
				Images:    a.Images,
				JWTSecret: cfg.Auth.JWTSecret,
			})
			err = server.Run(ctx, port)
			stop()
			wg.Wait()
			return err
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the server on")
	command.Flags().BoolVar(&withWorker, "with-worker", false, "Also run the settlement worker in this process")
	return command
}
