package worker

import (
	"context"
	"os"
	"os/signal"
	"reviewq/internal/app"
	"reviewq/internal/config"
	"reviewq/internal/infra/redisq"
	"reviewq/internal/ports"
	"reviewq/internal/usecase"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	ConsumerName      string
	BaseBackoff       time.Duration
	MaxBackoff        time.Duration
	Block             time.Duration
	SchedulerInterval time.Duration // defaults to one second
}

// Run drains the Redis payout outbox until interrupted.
func Run(cfg Config) error {
	appCfg := config.Load()
	cli := redisq.New(appCfg.Redis)
	defer cli.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	if err := cli.Init(ctx); err != nil {
		return err
	}

	interval := cfg.SchedulerInterval
	if interval <= 0 {
		interval = time.Second
	}
	sched := redisq.NewScheduler(cli, interval)
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.Ctx(ctx).Error().Err(err).Msg("scheduler stopped with error")
		}
	}()

	return Consume(ctx, cli, app.NewSettler(appCfg.Settlement), cfg)
}

// Consume runs the settlement consumer against any payout outbox.
func Consume(ctx context.Context, q ports.PayoutQueue, settler ports.Settler, cfg Config) error {
	consumer := usecase.Consumer{
		Q:            q,
		Settler:      settler,
		ConsumerName: cfg.ConsumerName,
		BaseBackoff:  cfg.BaseBackoff,
		MaxBackoff:   cfg.MaxBackoff,
		Block:        cfg.Block,
	}
	log.Ctx(ctx).Info().Str("consumer", cfg.ConsumerName).Msg("settlement worker started")
	err := consumer.Run(ctx)
	if ctx.Err() != nil {
		log.Ctx(ctx).Info().Msg("settlement worker stopped")
		return nil
	}
	return err
}
