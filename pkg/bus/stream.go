package bus

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const payloadField = "payload"

// Message is one delivery pulled from the work stream.
type Message struct {
	ID      string
	Payload []byte
}

// Handler processes a delivered message. The subscriber acknowledges the
// message after the handler returns, so handlers must persist any terminal
// state before returning.
type Handler func(ctx context.Context, msg Message)

// Publisher appends work messages to a Redis stream.
type Publisher struct {
	client *redis.Client
	stream string
}

// NewPublisher builds a publisher bound to the given stream.
func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

// Publish appends the payload to the stream.
func (p *Publisher) Publish(ctx context.Context, payload []byte) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{payloadField: payload},
	}).Err()
}

// SubscriberConfig configures consumer-group consumption.
type SubscriberConfig struct {
	Stream   string
	Group    string
	Consumer string
	Workers  int
	Block    time.Duration
	Logger   *zap.Logger
}

// Subscriber consumes work messages through a Redis consumer group. Every
// pulled message is acknowledged exactly once, after its handler completes;
// there is no dead-letter destination.
type Subscriber struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	workers  int
	block    time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSubscriber builds a subscriber for the configured stream and group.
func NewSubscriber(client *redis.Client, cfg SubscriberConfig) *Subscriber {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Subscriber{
		client:   client,
		stream:   cfg.Stream,
		group:    cfg.Group,
		consumer: cfg.Consumer,
		workers:  cfg.Workers,
		block:    cfg.Block,
		logger:   cfg.Logger,
	}
}

// Start creates the consumer group if needed and begins consumption.
func (s *Subscriber) Start(ctx context.Context, handler Handler) error {
	if err := s.ensureGroup(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.consume(runCtx, i+1, handler)
	}
	s.logger.Sugar().Infow("bus subscriber started", "stream", s.stream, "group", s.group, "workers", s.workers)
	return nil
}

// Stop cancels consumption and waits for in-flight handlers.
func (s *Subscriber) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Sugar().Infow("bus subscriber stopped", "stream", s.stream, "group", s.group)
}

func (s *Subscriber) ensureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (s *Subscriber) consume(ctx context.Context, workerID int, handler Handler) {
	defer s.wg.Done()
	consumer := s.consumer
	if s.workers > 1 {
		consumer = s.consumer + "-" + itoa(workerID)
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: consumer,
			Streams:  []string{s.stream, ">"},
			Count:    1,
			Block:    s.block,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			s.logger.Sugar().Warnw("bus read failed", "stream", s.stream, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				s.dispatch(ctx, entry, handler)
			}
		}
	}
}

func (s *Subscriber) dispatch(ctx context.Context, entry redis.XMessage, handler Handler) {
	msg := Message{ID: entry.ID}
	if raw, ok := entry.Values[payloadField]; ok {
		switch v := raw.(type) {
		case string:
			msg.Payload = []byte(v)
		case []byte:
			msg.Payload = v
		}
	}

	handler(ctx, msg)

	if err := s.client.XAck(ctx, s.stream, s.group, entry.ID).Err(); err != nil {
		s.logger.Sugar().Warnw("bus ack failed", "stream", s.stream, "message_id", entry.ID, "error", err)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := make([]byte, 0, 4)
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
