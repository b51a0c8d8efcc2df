// Package turn is the single entry point for user messages. It serializes turns
// per identity, runs intent extraction outside the session lock and commits the
// flow machine's changes with an optimistic session save.
package turn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/conversation"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/flow"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/metrics"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/session"
)

const (
	DefaultDedupWindow    = 30 * time.Second
	DefaultExtractTimeout = 8 * time.Second
	DefaultMinConfidence  = 0.5

	// saveAttempts is the first try plus one retry after a version conflict.
	saveAttempts = 2
)

// Outbound message types.
const (
	OutboundMessage = "message"
	OutboundAction  = "action"
)

var ErrEmptyIdentity = errors.New("turn: identity is required")

// FailureKind classifies what went wrong in a turn.
type FailureKind string

const (
	FailureTransient     FailureKind = "transient_external"
	FailureValidation    FailureKind = "validation"
	FailureStateConflict FailureKind = "state_conflict"
	FailureCatalog       FailureKind = "catalog_unavailable"
)

// Error is returned alongside the fallback replies of a turn that could not be
// committed. The session is left at its last committed state.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Extraction is the structured reading of one user message.
type Extraction struct {
	Intent     models.Intent
	Entities   map[string]string
	Confidence float64
	Answer     string
}

type Extractor interface {
	Extract(ctx context.Context, text, language string, context map[string]string) (Extraction, error)
}

// Delivery hands messages to the user's channel, in order.
type Delivery interface {
	Send(ctx context.Context, identity string, msgs []models.Outbound) error
}

type Options struct {
	DedupWindow    time.Duration
	ExtractTimeout time.Duration
	MinConfidence  float64
	Now            func() time.Time
}

type Deps struct {
	Locks        *session.Locks
	Conversation *conversation.Manager
	Machine      *flow.Machine
	Extractor    Extractor
	Matcher      flow.Matcher
	Profiles     flow.ProfileStore
	Delivery     Delivery
	Metrics      *metrics.Metrics
}

type Processor struct {
	locks     *session.Locks
	convo     *conversation.Manager
	machine   *flow.Machine
	extractor Extractor
	keywords  KeywordExtractor
	matcher   flow.Matcher
	profiles  flow.ProfileStore
	delivery  Delivery
	metrics   *metrics.Metrics
	recent    *cache.Cache
	opts      Options
	log       *logger.Logger
}

func NewProcessor(deps Deps, opts Options, log *logger.Logger) *Processor {
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = DefaultDedupWindow
	}
	if opts.ExtractTimeout <= 0 {
		opts.ExtractTimeout = DefaultExtractTimeout
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	locks := deps.Locks
	if locks == nil {
		locks = session.NewLocks()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &Processor{
		locks:     locks,
		convo:     deps.Conversation,
		machine:   deps.Machine,
		extractor: deps.Extractor,
		matcher:   deps.Matcher,
		profiles:  deps.Profiles,
		delivery:  deps.Delivery,
		metrics:   m,
		recent:    cache.New(2*opts.DedupWindow, opts.DedupWindow),
		opts:      opts,
		log:       log.With("component", "turn"),
	}
}

// ProcessTurn handles one user message and returns the replies to deliver. A
// duplicate of a message seen in the same dedup window returns no replies. When
// the turn cannot be committed the replies hold a fallback message and the error
// is an *Error.
func (p *Processor) ProcessTurn(ctx context.Context, identity, text, language string) (outs []models.Outbound, err error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, ErrEmptyIdentity
	}
	started := time.Now()
	defer func() { p.metrics.TurnLatency.Observe(time.Since(started).Seconds()) }()
	text = strings.TrimSpace(text)

	key, fresh := p.claim(identity, text, p.opts.Now())
	if !fresh {
		p.metrics.DuplicateTurns.Inc()
		p.metrics.Turns.WithLabelValues("duplicate").Inc()
		p.log.Info("dropping duplicate turn", "identity", identity)
		return nil, nil
	}
	// a failed turn stays retryable within the window
	defer func() {
		if err != nil {
			p.recent.Delete(key)
		}
	}()

	turnID := uuid.New().String()
	log := p.log.With("identity", identity, "turn_id", turnID)

	unlock := p.locks.Lock(identity)
	s, resumed, err := p.convo.RestoreOrStart(ctx, identity)
	unlock()
	if err != nil {
		return p.fail(log, s, FailureTransient, fmt.Errorf("restore session: %w", err))
	}
	observed := s.Version
	lang := s.Language
	if !resumed && language != "" {
		lang = language
	}

	ext, source := p.extract(ctx, log, text, lang, p.convo.ContextSummary(s))

	var lastErr error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		replies, err := p.apply(ctx, log, applyArgs{
			identity: identity,
			turnID:   turnID,
			text:     text,
			language: language,
			resumed:  resumed,
			observed: observed,
			ext:      ext,
			source:   source,
		})
		if err == nil {
			if attempt > 1 {
				p.metrics.SessionConflicts.WithLabelValues("true").Inc()
			}
			p.metrics.Turns.WithLabelValues("ok").Inc()
			return replies, nil
		}
		if !errors.Is(err, session.ErrVersionConflict) {
			return p.fail(log, s, FailureTransient, err)
		}
		lastErr = err
		log.Warn("session save conflict", "attempt", attempt)
	}
	p.metrics.SessionConflicts.WithLabelValues("false").Inc()
	return p.fail(log, s, FailureStateConflict, lastErr)
}

// greeting opens a fresh session. Users with a stored profile are greeted by name.
func (p *Processor) greeting(ctx context.Context, identity, lang string) string {
	if p.profiles != nil {
		if prof, err := p.profiles.Get(ctx, identity); err == nil && prof.Name != "" {
			return flow.Text(lang, "welcome_back", prof.Name)
		}
	}
	return flow.Text(lang, "welcome_new")
}

// claim records the turn's dedup key. It reports false when the same text from
// the same identity was already claimed in the current window.
func (p *Processor) claim(identity, text string, now time.Time) (string, bool) {
	sum := sha256.Sum256([]byte(text))
	bucket := now.UnixNano() / int64(p.opts.DedupWindow)
	key := fmt.Sprintf("%s|%s|%d", identity, hex.EncodeToString(sum[:]), bucket)
	return key, p.recent.Add(key, struct{}{}, cache.DefaultExpiration) == nil
}

// extract asks the extractor for the intent, falling back to keyword matching
// when it fails. Low-confidence results become UNCLEAR.
func (p *Processor) extract(ctx context.Context, log *logger.Logger, text, lang string, summary map[string]string) (Extraction, string) {
	ectx, cancel := context.WithTimeout(ctx, p.opts.ExtractTimeout)
	defer cancel()

	source := "extractor"
	var ext Extraction
	var err error
	if p.extractor != nil {
		ext, err = p.extractor.Extract(ectx, text, lang, summary)
	} else {
		err = errors.New("no extractor configured")
	}
	if err != nil {
		p.metrics.Failures.WithLabelValues(string(FailureTransient)).Inc()
		log.Warn("intent extraction failed, using keywords",
			"kind", FailureTransient,
			"error", err)
		ext, _ = p.keywords.Extract(ctx, text, lang, summary)
		source = "keywords"
	}
	if !ext.Intent.Valid() {
		ext.Intent = models.IntentUnclear
	}
	if ext.Confidence < p.opts.MinConfidence && ext.Intent != models.IntentUnclear {
		log.Debug("low confidence extraction", "intent", ext.Intent, "confidence", ext.Confidence)
		ext.Intent = models.IntentUnclear
	}
	return ext, source
}

type applyArgs struct {
	identity string
	turnID   string
	text     string
	language string
	resumed  bool
	observed int64
	ext      Extraction
	source   string
}

// apply reloads the session under the identity lock, runs the flow machine on a
// copy and saves it.
func (p *Processor) apply(ctx context.Context, log *logger.Logger, a applyArgs) ([]models.Outbound, error) {
	unlock := p.locks.Lock(a.identity)
	defer unlock()

	current, _, err := p.convo.RestoreOrStart(ctx, a.identity)
	if err != nil {
		return nil, fmt.Errorf("reload session: %w", err)
	}
	if current.Version != a.observed {
		log.Info("session changed during extraction", "observed", a.observed, "current", current.Version)
	}

	s := current.Clone()
	if !a.resumed && a.language != "" {
		s.Language = a.language
	}

	res, err := p.machine.Handle(ctx, s, flow.Turn{
		ID:       a.turnID,
		Text:     a.text,
		Intent:   a.ext.Intent,
		Entities: a.ext.Entities,
		Answer:   a.ext.Answer,
	})
	if err != nil {
		return nil, err
	}

	var outs []models.Outbound
	if !a.resumed {
		outs = append(outs, models.Outbound{Type: OutboundMessage, Text: p.greeting(ctx, a.identity, s.Language)})
	}
	p.convo.AppendMessage(s, models.ConversationMessage{
		Role:    models.RoleUser,
		Content: a.text,
		Intent:  res.Intent,
	})
	for _, r := range res.Replies {
		p.convo.AppendMessage(s, models.ConversationMessage{
			Role:    models.RoleSystem,
			Content: r.Text,
			Schemes: r.Schemes,
		})
		outs = append(outs, models.Outbound{Type: OutboundMessage, Text: r.Text})
	}
	for _, act := range res.Actions {
		outs = append(outs, models.Outbound{Type: OutboundAction, Action: string(act)})
	}

	if err := p.convo.Save(ctx, s); err != nil {
		return nil, err
	}

	p.record(log, a, res)
	return outs, nil
}

func (p *Processor) record(log *logger.Logger, a applyArgs, res flow.Result) {
	p.metrics.Intents.WithLabelValues(string(res.Intent), a.source).Inc()
	if res.HasAction(flow.ActionEscalate) {
		p.metrics.Escalations.Inc()
	}
	if res.InvalidInput {
		p.metrics.Failures.WithLabelValues(string(FailureValidation)).Inc()
		log.Info("input failed validation", "kind", FailureValidation)
	}
	if res.CatalogUnavailable {
		p.metrics.CatalogUnavailable.Inc()
		p.metrics.Failures.WithLabelValues(string(FailureCatalog)).Inc()
		log.Warn("scheme catalog unavailable", "kind", FailureCatalog)
	}
	log.Info("turn processed",
		"intent", res.Intent,
		"extracted", a.ext.Intent,
		"source", a.source,
		"replies", len(res.Replies),
		"actions", len(res.Actions))
}

func (p *Processor) fail(log *logger.Logger, s *models.Session, kind FailureKind, err error) ([]models.Outbound, error) {
	p.metrics.Failures.WithLabelValues(string(kind)).Inc()
	p.metrics.Turns.WithLabelValues("failed").Inc()
	log.Error("turn failed", "kind", kind, "at", p.opts.Now().UTC(), "error", err)
	lang := session.DefaultLanguage
	if s != nil && s.Language != "" {
		lang = s.Language
	}
	return []models.Outbound{{Type: OutboundMessage, Text: flow.Text(lang, "try_again")}}, &Error{Kind: kind, Err: err}
}
