package cmd

import (
	"reviewq/internal/worker"
	"time"

	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	var cfg worker.Config

	var command = &cobra.Command{
		Use:   "worker",
		Short: "Start settlement worker",
		Long: "Drains the Redis payout outbox into the settlement service, retrying failed\n" +
			"payouts with backoff and parking exhausted ones on the dead-letter stream.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return worker.Run(cfg)
		},
	}

	command.Flags().StringVar(&cfg.ConsumerName, "consumer", "worker-1", "Consumer name within the settlement group")
	command.Flags().DurationVar(&cfg.BaseBackoff, "base-backoff", 500*time.Millisecond, "Base retry backoff for failed settlements")
	command.Flags().DurationVar(&cfg.MaxBackoff, "max-backoff", 30*time.Second, "Max retry backoff for failed settlements")
	command.Flags().DurationVar(&cfg.Block, "block", 5*time.Second, "How long one claim waits for a payout")
	command.Flags().DurationVar(&cfg.SchedulerInterval, "scheduler-interval", time.Second, "How often due retries are re-offered")

	return command
}
