// Package conversation layers structured conversational memory over a session:
// bounded history, free-form values, scheme references and flow interruption.
package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/session"
)

var ErrNoReferent = errors.New("no referent")

// Manager owns the reads and writes of conversational memory.
// Mutating methods operate on a session the caller holds the identity lock for.
type Manager struct {
	store session.Store
	log   *logger.Logger
	now   func() time.Time
}

func NewManager(store session.Store, log *logger.Logger) *Manager {
	return &Manager{
		store: store,
		log:   log.With("component", "conversation"),
		now:   time.Now,
	}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// RestoreOrStart returns the live session for identity with resumed=true, or a fresh
// one with resumed=false when none exists or the last one went idle past its TTL.
func (m *Manager) RestoreOrStart(ctx context.Context, identity string) (*models.Session, bool, error) {
	sess, created, err := m.store.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, false, err
	}
	if created {
		m.log.Debug("starting fresh session", "identity", identity)
	}
	return sess, !created, nil
}

func (m *Manager) Save(ctx context.Context, s *models.Session) error {
	return m.store.Save(ctx, s)
}

// AppendMessage pushes msg and evicts from the front until the history fits.
func (m *Manager) AppendMessage(s *models.Session, msg models.ConversationMessage) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.now().UTC()
	}
	s.History = append(s.History, msg)
	for len(s.History) > session.MaxHistory {
		s.History = s.History[1:]
	}
}

// UpdateContext merges a free-form value. Last write wins.
func (m *Manager) UpdateContext(s *models.Session, key, value string) {
	if s.Context.Values == nil {
		s.Context.Values = make(map[string]string)
	}
	s.Context.Values[key] = value
}

func (m *Manager) ContextValue(s *models.Session, key string) (string, bool) {
	v, ok := s.Context.Values[key]
	return v, ok
}

// RememberMatches stores the ranked id set later used for ordinal references.
func (m *Manager) RememberMatches(s *models.Session, schemeIDs []string) {
	s.Context.LastMatches = append([]string(nil), schemeIDs...)
}

var anaphora = map[string]bool{
	"it": true, "its": true, "that": true, "this": true, "same": true, "scheme": true,
	"that scheme": true, "this scheme": true, "same scheme": true,
	"that one": true, "this one": true,
	"yeh": true, "ye": true, "woh": true, "vo": true, "wo": true,
	"yeh yojana": true, "woh yojana": true, "is yojana": true, "us yojana": true,
}

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"last": -1,
	"pehla": 1, "pehli": 1, "doosra": 2, "doosri": 2, "teesra": 3, "teesri": 3,
}

// ResolveReference maps mentions like "it" or "the second one" to a scheme id.
// Anaphora resolve to the most recently mentioned scheme scanning history newest
// first; ordinals index the last delivered match set. No mentions is treated as
// an implicit "it".
func (m *Manager) ResolveReference(s *models.Session, mentions []string) (string, error) {
	if len(mentions) == 0 {
		mentions = []string{"it"}
	}
	for _, raw := range mentions {
		mention := normalizeMention(raw)
		if n, ok := ordinalOf(mention); ok {
			if id, ok := nthMatch(s.Context.LastMatches, n); ok {
				return id, nil
			}
			continue
		}
		if anaphora[mention] {
			if id, ok := latestMention(s.History); ok {
				return id, nil
			}
		}
	}
	return "", ErrNoReferent
}

func normalizeMention(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, ".,!?\"'")
	s = strings.TrimPrefix(s, "the ")
	for _, suffix := range []string{" one", " scheme", " wala", " wali", " yojana"} {
		if base := strings.TrimSuffix(s, suffix); base != s {
			if _, ok := ordinalOf(base); ok {
				return base
			}
		}
	}
	return s
}

func ordinalOf(mention string) (int, bool) {
	if n, ok := ordinals[mention]; ok {
		return n, true
	}
	trimmed := strings.TrimRight(mention, "stndrh")
	if trimmed == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(trimmed); err == nil && n > 0 {
		return n, true
	}
	return 0, false
}

func nthMatch(ids []string, n int) (string, bool) {
	if len(ids) == 0 {
		return "", false
	}
	if n == -1 {
		return ids[len(ids)-1], true
	}
	if n < 1 || n > len(ids) {
		return "", false
	}
	return ids[n-1], true
}

func latestMention(history []models.ConversationMessage) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if len(history[i].Schemes) > 0 {
			return history[i].Schemes[0], true
		}
	}
	return "", false
}

// ContextSummary is the slice of memory handed to the intent extractor.
func (m *Manager) ContextSummary(s *models.Session) map[string]string {
	out := map[string]string{
		"flow": string(s.CurrentFlow),
	}
	if s.Context.PendingField != "" {
		out["pending_field"] = s.Context.PendingField
	}
	if id, ok := latestMention(s.History); ok {
		out["last_scheme"] = id
	}
	if s.Context.Interrupted != nil {
		out["interrupted_flow"] = string(s.Context.Interrupted.Flow)
	}
	return out
}
