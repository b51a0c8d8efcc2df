package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

const sessionPrefix = "session:"

// RedisStore keeps each session as a JSON value under session:<identity>.
type RedisStore struct {
	rdb  *redis.Client
	opts Options
}

func NewRedisStore(rdb *redis.Client, opts Options) *RedisStore {
	return &RedisStore{rdb: rdb, opts: opts.withDefaults()}
}

func (s *RedisStore) key(identity string) string {
	return fmt.Sprintf("%s%s", sessionPrefix, identity)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, g getter, identity string) (*models.Session, error) {
	data, err := g.Get(ctx, s.key(identity)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.History == nil {
		sess.History = []models.ConversationMessage{}
	}
	return &sess, nil
}

func (s *RedisStore) Inspect(ctx context.Context, identity string) (*models.Session, error) {
	return s.load(ctx, s.rdb, identity)
}

func (s *RedisStore) Get(ctx context.Context, identity string) (*models.Session, error) {
	sess, err := s.load(ctx, s.rdb, identity)
	if err != nil {
		return nil, err
	}
	if expired(sess, s.opts.TTL, s.opts.Now()) {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *RedisStore) GetOrCreate(ctx context.Context, identity string) (*models.Session, bool, error) {
	now := s.opts.Now()
	sess, err := s.load(ctx, s.rdb, identity)
	if errors.Is(err, ErrNotFound) {
		return NewSession(identity, now), true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expired(sess, s.opts.TTL, now) {
		return replacement(sess, now), true, nil
	}
	return sess, false, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *models.Session) error {
	key := s.key(sess.Identity)
	now := s.opts.Now()

	next := *sess
	txf := func(tx *redis.Tx) error {
		stored, err := s.load(ctx, tx, sess.Identity)
		var storedVersion int64
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		default:
			storedVersion = stored.Version
		}
		if storedVersion != sess.Version {
			return ErrVersionConflict
		}

		next.Version = sess.Version + 1
		next.LastActivity = now
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.opts.Retention)
			return nil
		})
		return err
	}

	err := s.rdb.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("failed to save session: %w", err)
	}
	sess.Version = next.Version
	sess.LastActivity = now
	return nil
}

// Touch refreshes the activity window without bumping the version.
func (s *RedisStore) Touch(ctx context.Context, identity string) error {
	key := s.key(identity)
	txf := func(tx *redis.Tx) error {
		sess, err := s.load(ctx, tx, identity)
		if err != nil {
			return err
		}
		now := s.opts.Now()
		if expired(sess, s.opts.TTL, now) {
			return ErrNotFound
		}
		sess.LastActivity = now
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.opts.Retention)
			return nil
		})
		return err
	}
	err := s.rdb.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}
