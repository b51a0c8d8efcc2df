package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/patrickmn/go-cache"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

// MemoryStore is a single-process Store. Records are kept as encoded JSON so
// callers never share memory with the stored copy.
type MemoryStore struct {
	cache *cache.Cache
	opts  Options
	mu    sync.Mutex
}

func NewMemoryStore(opts Options) *MemoryStore {
	opts = opts.withDefaults()
	return &MemoryStore{
		cache: cache.New(opts.Retention, opts.Retention/4),
		opts:  opts,
	}
}

func (m *MemoryStore) load(identity string) (*models.Session, error) {
	raw, found := m.cache.Get(identity)
	if !found {
		return nil, ErrNotFound
	}
	var sess models.Session
	if err := json.Unmarshal(raw.([]byte), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.History == nil {
		sess.History = []models.ConversationMessage{}
	}
	return &sess, nil
}

func (m *MemoryStore) Inspect(ctx context.Context, identity string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(identity)
}

func (m *MemoryStore) Get(ctx context.Context, identity string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.load(identity)
	if err != nil {
		return nil, err
	}
	if expired(sess, m.opts.TTL, m.opts.Now()) {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, identity string) (*models.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.opts.Now()
	sess, err := m.load(identity)
	if err == ErrNotFound {
		return NewSession(identity, now), true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expired(sess, m.opts.TTL, now) {
		return replacement(sess, now), true, nil
	}
	return sess, false, nil
}

func (m *MemoryStore) Save(ctx context.Context, sess *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var storedVersion int64
	stored, err := m.load(sess.Identity)
	switch {
	case err == ErrNotFound:
	case err != nil:
		return err
	default:
		storedVersion = stored.Version
	}
	if storedVersion != sess.Version {
		return ErrVersionConflict
	}

	next := *sess
	next.Version++
	next.LastActivity = m.opts.Now()
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	m.cache.Set(sess.Identity, data, cache.DefaultExpiration)
	sess.Version = next.Version
	sess.LastActivity = next.LastActivity
	return nil
}

func (m *MemoryStore) Touch(ctx context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.load(identity)
	if err != nil {
		return err
	}
	now := m.opts.Now()
	if expired(sess, m.opts.TTL, now) {
		return ErrNotFound
	}
	sess.LastActivity = now
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	m.cache.Set(identity, data, cache.DefaultExpiration)
	return nil
}
