// Package app wires configuration into the workflow engine and its collaborators.
package app

import (
	"context"
	"fmt"
	"reviewq/internal/config"
	"reviewq/internal/domain"
	"reviewq/internal/infra/kafka"
	"reviewq/internal/infra/memory"
	"reviewq/internal/infra/objectstore"
	"reviewq/internal/infra/redisq"
	"reviewq/internal/infra/settlement"
	"reviewq/internal/ports"
	"reviewq/internal/usecase"

	"github.com/rs/zerolog/log"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type App struct {
	Cfg     *config.Config
	Engine  *usecase.Engine
	Payouts ports.PayoutQueue
	Settler ports.Settler
	Images  ports.ObjectStorage

	// Redis is nil for the memory store.
	Redis *redisq.Client

	closers []func() error
}

// Build connects every configured collaborator.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	policy, err := usecase.ParseRejectPolicy(cfg.Workflow.RejectPolicy)
	if err != nil {
		return nil, err
	}
	recipient, err := usecase.ParseRecipient(cfg.Payout.Recipient)
	if err != nil {
		return nil, err
	}

	a := &App{Cfg: cfg, Settler: NewSettler(cfg.Settlement)}
	ec := usecase.EngineConfig{
		Clock:        ports.SystemClock{},
		RejectPolicy: policy,
		LeaseTTL:     cfg.Workflow.LeaseTTL,
	}

	switch cfg.Workflow.Store {
	case StoreRedis:
		cli := redisq.New(cfg.Redis)
		if err := cli.Init(ctx); err != nil {
			return nil, err
		}
		a.Redis = cli
		a.Payouts = cli
		a.closers = append(a.closers, cli.Close)
		ec.Tasks = redisq.NewTaskStore(cli)
		ec.Reviews = redisq.NewReviewStore(cli)
		ec.TaskQueue = redisq.NewQueue(cli, "tasks")
		ec.ReviewQueue = redisq.NewQueue(cli, "reviews")
	case StoreMemory:
		pq := memory.NewPayoutQueue(1024)
		a.Payouts = pq
		a.closers = append(a.closers, func() error { pq.Close(); return nil })
		ec.Tasks = memory.NewStore[domain.Task]()
		ec.Reviews = memory.NewStore[domain.ReviewTask]()
		ec.TaskQueue = memory.NewQueue()
		ec.ReviewQueue = memory.NewQueue()
	default:
		return nil, fmt.Errorf("%w: unknown workflow store %q", domain.ErrInvalidArgument, cfg.Workflow.Store)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub := kafka.NewPublisher(cfg.Kafka)
		a.closers = append(a.closers, pub.Close)
		ec.Events = pub
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing workflow events to kafka")
	} else {
		ec.Events = memory.NewEvents(1000)
	}

	if cfg.Storage.Endpoint != "" {
		st, err := objectstore.New(ctx, cfg.Storage)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Images = st
	}

	if cfg.Payout.Account == "" && recipient == usecase.RecipientAccount {
		log.Warn().Msg("Payout_Account is empty, accepted reviews will not be paid")
	}
	ec.Payouts = usecase.PayoutTrigger{
		Q:           a.Payouts,
		Amount:      cfg.Payout.Amount,
		Account:     cfg.Payout.Account,
		Recipient:   recipient,
		MaxAttempts: cfg.Payout.MaxAttempts,
		Clock:       ec.Clock,
	}

	a.Engine = usecase.NewEngine(ec)
	return a, nil
}

// NewSettler posts to the settlement service when one is configured.
func NewSettler(cfg config.Settlement) ports.Settler {
	if cfg.URL == "" {
		return settlement.LogSettler{}
	}
	return settlement.NewHTTPSettler(cfg.URL, cfg.Timeout)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close resource")
		}
	}
}
