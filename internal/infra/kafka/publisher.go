package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"reviewq/internal/config"
	"reviewq/internal/domain"
	"reviewq/internal/ports"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

var _ ports.EventPublisher = (*Publisher)(nil)

// Publisher writes workflow events to a topic, keyed by task id so that all
// events of one task land on the same partition in order.
type Publisher struct {
	w *kafka.Writer
}

func NewPublisher(cfg config.Kafka) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("messages", len(messages)).Msg("failed to deliver workflow events")
			}
		},
	}
	return &Publisher{w: w}
}

func (p *Publisher) Publish(ctx context.Context, e domain.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(e.TaskID, 10)),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
}

func (p *Publisher) Close() error { return p.w.Close() }
