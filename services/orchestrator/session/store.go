// Package session keeps one durable conversation record per user identity.
//
// A session expires logically after TTL of inactivity: Get reports ErrNotFound and
// GetOrCreate hands back a fresh session. The stored record itself is retained for
// Retention so it stays inspectable until a fresh session overwrites it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

const (
	DefaultTTL       = 24 * time.Hour
	DefaultRetention = 7 * 24 * time.Hour
	DefaultLanguage  = "en"
	MaxHistory       = 20
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrVersionConflict = errors.New("session version conflict")
)

// Store persists sessions keyed by identity.
type Store interface {
	Get(ctx context.Context, identity string) (*models.Session, error)
	GetOrCreate(ctx context.Context, identity string) (*models.Session, bool, error)
	Inspect(ctx context.Context, identity string) (*models.Session, error)
	// Save writes s if the stored version still equals s.Version, then bumps the
	// version and resets the activity window.
	Save(ctx context.Context, s *models.Session) error
	// Touch resets the activity window of a live session. An expired or missing
	// session reports ErrNotFound.
	Touch(ctx context.Context, identity string) error
}

type Options struct {
	TTL       time.Duration
	Retention time.Duration
	Now       func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Retention < o.TTL {
		o.Retention = DefaultRetention
		if o.Retention < o.TTL {
			o.Retention = o.TTL
		}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// NewSession returns an empty session in the idle flow.
func NewSession(identity string, now time.Time) *models.Session {
	return &models.Session{
		Identity:     identity,
		Language:     DefaultLanguage,
		CurrentFlow:  models.FlowIdle,
		History:      []models.ConversationMessage{},
		CreatedAt:    now,
		LastActivity: now,
	}
}

func expired(s *models.Session, ttl time.Duration, now time.Time) bool {
	return now.Sub(s.LastActivity) > ttl
}

// replacement builds the fresh session that takes over an expired record. It keeps
// the stored version so the overwrite passes the compare-and-set, and the language
// preference so a returning user is not asked again.
func replacement(old *models.Session, now time.Time) *models.Session {
	fresh := NewSession(old.Identity, now)
	fresh.Version = old.Version
	if old.Language != "" {
		fresh.Language = old.Language
	}
	return fresh
}
