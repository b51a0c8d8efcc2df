package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/metrics"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

const responsePrefix = "response:"

// MaxMessageLength is the longest text a single outbound message may carry.
const MaxMessageLength = 1600

// RedisDelivery publishes replies on response:<identity>, where the channel
// adapter holding the user's connection picks them up.
type RedisDelivery struct {
	rdb     *redis.Client
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewRedisDelivery(rdb *redis.Client, m *metrics.Metrics, log *logger.Logger) *RedisDelivery {
	return &RedisDelivery{rdb: rdb, metrics: m, log: log.With("component", "delivery")}
}

func ResponseChannel(identity string) string {
	return fmt.Sprintf("%s%s", responsePrefix, identity)
}

// Send publishes msgs in order, splitting long texts into consecutive parts.
func (d *RedisDelivery) Send(ctx context.Context, identity string, msgs []models.Outbound) error {
	channel := ResponseChannel(identity)
	for _, m := range msgs {
		parts := []string{m.Text}
		if m.Text != "" {
			parts = SplitText(m.Text, MaxMessageLength)
		}
		for _, part := range parts {
			data, err := json.Marshal(models.WSResponse{
				Type:      m.Type,
				Text:      part,
				SessionID: identity,
				Action:    m.Action,
			})
			if err != nil {
				return fmt.Errorf("failed to marshal response: %w", err)
			}
			if err := d.rdb.Publish(ctx, channel, string(data)).Err(); err != nil {
				return fmt.Errorf("failed to publish response: %w", err)
			}
			if m.Type != "typing" && d.metrics != nil {
				d.metrics.OutboundMessages.Inc()
			}
		}
	}
	return nil
}

// SplitText cuts text into parts of at most limit characters, preferring to break
// at a newline, then at a space. The whitespace at a break is dropped.
func SplitText(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var parts []string
	rest := []rune(text)
	for len(rest) > limit {
		cut := lastIndex(rest[:limit+1], '\n')
		if cut <= 0 {
			cut = lastIndex(rest[:limit+1], ' ')
		}
		if cut <= 0 {
			parts = append(parts, string(rest[:limit]))
			rest = rest[limit:]
			continue
		}
		if part := strings.TrimRight(string(rest[:cut]), " \n"); part != "" {
			parts = append(parts, part)
		}
		rest = rest[cut+1:]
	}
	if len(rest) > 0 {
		parts = append(parts, string(rest))
	}
	return parts
}

func lastIndex(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}
	return -1
}
