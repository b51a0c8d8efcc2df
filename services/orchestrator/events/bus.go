// Package events carries profile and application changes between orchestrator
// instances over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/store"
)

const (
	ChannelProfileChanged   = "events:profile_changed"
	ChannelApplicationState = "events:application_status"

	claimPrefix = "events:claimed:"
	claimTTL    = 10 * time.Minute
)

const (
	TypeProfileChanged    = "profile_changed"
	TypeApplicationStatus = "application_status"
)

// Event is the wire form of a store change.
type Event struct {
	ID          string                   `json:"id"`
	Type        string                   `json:"type"`
	At          time.Time                `json:"at"`
	Before      *models.Profile          `json:"before,omitempty"`
	After       *models.Profile          `json:"after,omitempty"`
	Application *models.Application      `json:"application,omitempty"`
	Previous    models.ApplicationStatus `json:"previous,omitempty"`
}

// Bus publishes store changes and hands them to one handler across all
// subscribed instances. It implements store.EventSink.
type Bus struct {
	rdb *redis.Client
	log *logger.Logger
	now func() time.Time
}

var _ store.EventSink = (*Bus)(nil)

func NewBus(rdb *redis.Client, log *logger.Logger) *Bus {
	return &Bus{rdb: rdb, log: log.With("component", "events"), now: time.Now}
}

func (b *Bus) ProfileChanged(ctx context.Context, before, after models.Profile) {
	b.publish(ctx, ChannelProfileChanged, Event{
		Type:   TypeProfileChanged,
		Before: &before,
		After:  &after,
	})
}

func (b *Bus) ApplicationStatusChanged(ctx context.Context, app models.Application, previous models.ApplicationStatus) {
	b.publish(ctx, ChannelApplicationState, Event{
		Type:        TypeApplicationStatus,
		Application: &app,
		Previous:    previous,
	})
}

func (b *Bus) publish(ctx context.Context, channel string, ev Event) {
	ev.ID = uuid.New().String()
	ev.At = b.now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("failed to marshal event", "type", ev.Type, "error", err)
		return
	}
	if err := b.rdb.Publish(ctx, channel, data).Err(); err != nil {
		b.log.Error("failed to publish event", "type", ev.Type, "event_id", ev.ID, "error", err)
		return
	}
	b.log.Debug("event published", "type", ev.Type, "event_id", ev.ID)
}

// Start subscribes to both event channels and dispatches to handler until ctx
// is done. It returns once the subscription is confirmed.
func (b *Bus) Start(ctx context.Context, handler store.EventSink) error {
	ps := b.rdb.Subscribe(ctx, ChannelProfileChanged, ChannelApplicationState)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	go func() {
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.dispatch(ctx, msg, handler)
			}
		}
	}()
	b.log.Info("listening for events")
	return nil
}

func (b *Bus) dispatch(ctx context.Context, msg *redis.Message, handler store.EventSink) {
	var ev Event
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		b.log.Warn("dropping malformed event", "channel", msg.Channel, "error", err)
		return
	}

	// every instance receives every event; the first to claim it handles it
	claimed, err := b.rdb.SetNX(ctx, claimPrefix+ev.ID, 1, claimTTL).Result()
	if err != nil {
		b.log.Warn("failed to claim event", "event_id", ev.ID, "error", err)
		return
	}
	if !claimed {
		return
	}

	switch ev.Type {
	case TypeProfileChanged:
		if ev.Before == nil || ev.After == nil {
			b.log.Warn("profile event without profiles", "event_id", ev.ID)
			return
		}
		handler.ProfileChanged(ctx, *ev.Before, *ev.After)
	case TypeApplicationStatus:
		if ev.Application == nil {
			b.log.Warn("application event without application", "event_id", ev.ID)
			return
		}
		handler.ApplicationStatusChanged(ctx, *ev.Application, ev.Previous)
	default:
		b.log.Warn("unknown event type", "event_id", ev.ID, "type", ev.Type)
	}
}
