package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/turn"
)

const (
	streamKey     = "msg:inbound"
	consumerGroup = "orchestrator-group"
	readBlock     = 5 * time.Second
)

// TurnProcessor is the conversational core the router feeds.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, identity, text, language string) ([]models.Outbound, error)
}

// Router consumes inbound envelopes from the channel adapters and sends the
// replies back through the delivery layer.
type Router struct {
	rdb      *redis.Client
	turns    TurnProcessor
	delivery turn.Delivery
	consumer string
	log      *logger.Logger
}

func New(rdb *redis.Client, turns TurnProcessor, delivery turn.Delivery, consumer string, log *logger.Logger) *Router {
	return &Router{
		rdb:      rdb,
		turns:    turns,
		delivery: delivery,
		consumer: consumer,
		log:      log.With("component", "router", "consumer", consumer),
	}
}

func (r *Router) EnsureConsumerGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, streamKey, consumerGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (r *Router) ConsumeLoop(ctx context.Context) {
	r.log.Info("starting consumer loop")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := r.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: r.consumer,
			Streams:  []string{streamKey, ">"},
			Count:    1,
			Block:    readBlock,
		}).Result()

		if errors.Is(err, redis.Nil) || err != nil && ctx.Err() != nil {
			continue
		}
		if err != nil {
			r.log.Error("error reading stream", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				r.handleMessage(ctx, msg)
			}
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, msg redis.XMessage) {
	defer r.ack(ctx, msg.ID)

	envelopeJSON, ok := msg.Values["envelope"].(string)
	if !ok {
		r.log.Warn("invalid message format, missing envelope field", "stream_id", msg.ID)
		return
	}

	var envelope models.MessageEnvelope
	if err := json.Unmarshal([]byte(envelopeJSON), &envelope); err != nil {
		r.log.Warn("failed to unmarshal envelope", "stream_id", msg.ID, "error", err)
		return
	}

	identity := envelope.Identity()
	if identity == "" {
		r.log.Warn("envelope without identity", "message_id", envelope.MessageID)
		return
	}
	r.log.Debug("processing message", "message_id", envelope.MessageID, "identity", identity, "channel", envelope.Channel)

	if err := r.delivery.Send(ctx, identity, []models.Outbound{{Type: "typing"}}); err != nil {
		r.log.Warn("failed to send typing indicator", "identity", identity, "error", err)
	}

	outs, err := r.turns.ProcessTurn(ctx, identity, envelope.Content.Text, envelope.Metadata.Language)
	if err != nil {
		r.log.Error("turn failed", "message_id", envelope.MessageID, "identity", identity, "error", err)
	}
	if len(outs) == 0 {
		return
	}
	if err := r.delivery.Send(ctx, identity, outs); err != nil {
		r.log.Error("failed to deliver replies", "message_id", envelope.MessageID, "identity", identity, "error", err)
	}
}

func (r *Router) ack(ctx context.Context, id string) {
	if err := r.rdb.XAck(ctx, streamKey, consumerGroup, id).Err(); err != nil {
		r.log.Warn("failed to ack message", "stream_id", id, "error", err)
	}
}
