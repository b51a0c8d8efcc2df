// Package flow drives a session through the assistant's conversational flows.
// One Machine serves all sessions; the state lives on the session itself.
package flow

import (
	"context"
	"errors"
	"strings"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/conversation"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/store"
)

// ErrNoProfile is returned by ProfileStore.Get for identities that never registered.
var ErrNoProfile = store.ErrNotFound

// MaxAttempts bounds both consecutive UNCLEAR turns and failed validations of one field.
const MaxAttempts = 3

// TopMatches is how many ranked schemes a search delivers.
const TopMatches = 10

type Action string

const (
	ActionEscalate             Action = "escalate_to_human"
	ActionProfileCreated       Action = "profile_created"
	ActionApplicationSubmitted Action = "application_submitted"
)

// Matcher is the part of the matching engine the flows use.
type Matcher interface {
	FindEligibleSchemes(ctx context.Context, p models.Profile) ([]models.SchemeMatch, error)
	CheckEligibility(ctx context.Context, p models.Profile, schemeID string) (models.EligibilityResult, error)
	Scheme(ctx context.Context, id string) (models.Scheme, error)
	ActiveSchemes(ctx context.Context) ([]models.Scheme, error)
}

// ProfileStore must return an error matching ErrNoProfile from Get when the
// identity has not registered.
type ProfileStore interface {
	Get(ctx context.Context, identity string) (models.Profile, error)
	Create(ctx context.Context, p models.Profile) error
	Update(ctx context.Context, p models.Profile) error
}

type ApplicationStore interface {
	Create(ctx context.Context, app models.Application) (models.Application, error)
	List(ctx context.Context, identity string) ([]models.Application, error)
}

// Turn is one classified user message.
type Turn struct {
	ID       string
	Text     string
	Intent   models.Intent
	Entities map[string]string
	// Answer is the extractor's reply to an ASK_QUESTION turn.
	Answer string
}

func (t Turn) entity(key string) string {
	return strings.TrimSpace(t.Entities[key])
}

type Reply struct {
	Text string
	// Schemes are the scheme ids the reply mentions, most relevant first.
	Schemes []string
}

// Result is everything a turn produced. The session is mutated in place.
type Result struct {
	Replies []Reply
	Actions []Action
	// Intent is the intent after legality checks.
	Intent             models.Intent
	Illegal            bool
	InvalidInput       bool
	CatalogUnavailable bool
}

// HasAction reports whether a was emitted.
func (r Result) HasAction(a Action) bool {
	for _, got := range r.Actions {
		if got == a {
			return true
		}
	}
	return false
}

// turnState carries the session and the result being built through one turn.
type turnState struct {
	ctx context.Context
	s   *models.Session
	t   Turn
	res *Result
}

func (ts *turnState) say(key string, args ...interface{}) {
	ts.res.Replies = append(ts.res.Replies, Reply{Text: Text(ts.s.Language, key, args...)})
}

func (ts *turnState) sayWith(text string, schemes []string) {
	ts.res.Replies = append(ts.res.Replies, Reply{Text: text, Schemes: schemes})
}

func (ts *turnState) act(a Action) {
	ts.res.Actions = append(ts.res.Actions, a)
}

type Machine struct {
	table    Table
	convo    *conversation.Manager
	matcher  Matcher
	profiles ProfileStore
	apps     ApplicationStore
	forms    FormFiller
	log      *logger.Logger
}

type Deps struct {
	Conversation *conversation.Manager
	Matcher      Matcher
	Profiles     ProfileStore
	Applications ApplicationStore
	Forms        FormFiller
}

// NewMachine validates table and returns a machine running on it. A nil table
// means DefaultTable.
func NewMachine(deps Deps, table Table, log *logger.Logger) (*Machine, error) {
	if table == nil {
		table = DefaultTable()
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if deps.Conversation == nil || deps.Matcher == nil || deps.Profiles == nil || deps.Applications == nil {
		return nil, errors.New("flow: conversation, matcher, profiles and applications are required")
	}
	forms := deps.Forms
	if forms == nil {
		forms = ProfileFormFiller{}
	}
	return &Machine{
		table:    table,
		convo:    deps.Conversation,
		matcher:  deps.Matcher,
		profiles: deps.Profiles,
		apps:     deps.Applications,
		forms:    forms,
		log:      log.With("component", "flow"),
	}, nil
}

// Handle applies one turn to s. The returned error is set only when a store
// failed; the session must then be discarded rather than saved.
func (m *Machine) Handle(ctx context.Context, s *models.Session, t Turn) (Result, error) {
	ts := &turnState{ctx: ctx, s: s, t: t, res: &Result{Intent: t.Intent}}
	if !s.CurrentFlow.Valid() {
		m.log.Warn("unknown flow on session, resetting", "identity", s.Identity, "flow", s.CurrentFlow)
		m.convo.FinishFlow(s)
	}

	var err error
	switch {
	case t.Intent == models.IntentChangeLanguage:
		err = m.changeLanguage(ts)
	case s.CurrentFlow.MultiTurn():
		err = m.inFlow(ts)
	default:
		err = m.open(ts)
	}
	return *ts.res, err
}

// open handles a turn while no multi-turn flow is active.
func (m *Machine) open(ts *turnState) error {
	s, t := ts.s, ts.t

	if snap, ok := m.convo.Interrupted(s); ok {
		if m.resumesBy(ts, snap) {
			return m.resume(ts)
		}
	}

	if t.Intent == models.IntentUnclear {
		return m.unclear(ts)
	}

	next, ok := m.table[s.CurrentFlow][t.Intent]
	if !ok {
		return m.illegal(ts)
	}
	s.Context.Clarifications = 0
	s.CurrentFlow = next
	return m.enter(ts, next)
}

// inFlow handles a turn while registration or an application is open.
func (m *Machine) inFlow(ts *turnState) error {
	s, t := ts.s, ts.t
	current := s.CurrentFlow

	next, ok := m.table[current][t.Intent]
	if !ok {
		return m.illegal(ts)
	}
	if next != current {
		m.convo.SwitchFlow(s, next)
		s.Context.Clarifications = 0
		return m.enter(ts, next)
	}

	switch t.Intent {
	case models.IntentAskQuestion:
		m.answer(ts)
		return m.prompt(ts)
	case startIntent[current]:
		if v := t.entity(s.Context.PendingField); v != "" {
			return m.input(ts, v)
		}
		if current == models.FlowApplication && s.Context.Draft == nil {
			return m.input(ts, t.Text)
		}
		return m.prompt(ts)
	default:
		return m.input(ts, m.inputValue(ts))
	}
}

func (m *Machine) inputValue(ts *turnState) string {
	if v := ts.t.entity(ts.s.Context.PendingField); v != "" {
		return v
	}
	return ts.t.Text
}

// enter runs the flow an intent just led to.
func (m *Machine) enter(ts *turnState, next models.FlowState) error {
	switch next {
	case models.FlowRegistration:
		return m.startRegistration(ts)
	case models.FlowSchemeSearch:
		return m.search(ts)
	case models.FlowSchemeDetails:
		return m.details(ts)
	case models.FlowApplication:
		return m.startApplication(ts)
	case models.FlowStatusCheck:
		return m.status(ts)
	case models.FlowIdle:
		m.answer(ts)
		m.convo.FinishFlow(ts.s)
		m.resumeHint(ts)
		return nil
	case models.FlowAwaitingClarification:
		return m.unclear(ts)
	}
	return nil
}

// input routes a reply to the active multi-turn flow.
func (m *Machine) input(ts *turnState, value string) error {
	switch ts.s.CurrentFlow {
	case models.FlowRegistration:
		return m.registrationInput(ts, value)
	case models.FlowApplication:
		return m.applicationInput(ts, value)
	}
	return nil
}

// prompt repeats the question the active flow is waiting on.
func (m *Machine) prompt(ts *turnState) error {
	switch ts.s.CurrentFlow {
	case models.FlowRegistration:
		return m.nextRegistrationStep(ts)
	case models.FlowApplication:
		return m.nextApplicationStep(ts)
	}
	return nil
}

// resumesBy reports whether the turn maps back to the interrupted flow, either by
// naming it or by answering its pending question.
func (m *Machine) resumesBy(ts *turnState, snap models.FlowSnapshot) bool {
	t := ts.t
	if t.Intent != models.IntentUnclear {
		if t.Intent != startIntent[snap.Flow] {
			return false
		}
		// a different scheme named while an application waits starts a new one
		if snap.Flow == models.FlowApplication && snap.Draft != nil {
			if id := t.entity("scheme_id"); id != "" && id != snap.Draft.SchemeID {
				return false
			}
		}
		return true
	}
	field := snap.PendingField
	if field == "" {
		return false
	}
	if t.entity(field) != "" {
		return true
	}
	switch snap.Flow {
	case models.FlowRegistration:
		v, ok := validators[field]
		if !ok || v.freeText {
			return false
		}
		_, err := v.check(t.Text)
		return err == nil
	case models.FlowApplication:
		if field == fieldConfirm || field == fieldScheme || m.forms.FreeText(field) {
			return false
		}
		return m.forms.Validate(field, t.Text) == nil
	}
	return false
}

func (m *Machine) resume(ts *turnState) error {
	s := ts.s
	m.convo.Resume(s)
	s.Context.Clarifications = 0
	m.log.Info("resuming interrupted flow", "identity", s.Identity, "turn_id", ts.t.ID,
		"flow", s.CurrentFlow, "pending_field", s.Context.PendingField)

	if ts.t.Intent == models.IntentUnclear {
		return m.input(ts, m.inputValue(ts))
	}
	switch s.CurrentFlow {
	case models.FlowRegistration:
		ts.say("registration_resume")
	case models.FlowApplication:
		if s.Context.Draft == nil {
			return m.applicationInput(ts, ts.t.Text)
		}
		ts.say("app_resume", m.schemeName(ts.ctx, s.Context.Draft.SchemeID))
	}
	return m.prompt(ts)
}

// unclear asks the user to rephrase, escalating on the third consecutive miss.
func (m *Machine) unclear(ts *turnState) error {
	s := ts.s
	s.Context.Clarifications++
	if s.Context.Clarifications >= MaxAttempts {
		m.escalate(ts, "escalate", "clarification_limit")
		return nil
	}
	s.CurrentFlow = models.FlowAwaitingClarification
	ts.say("clarify", Text(s.Language, "help"))
	return nil
}

// illegal treats an intent the current flow cannot take as UNCLEAR.
func (m *Machine) illegal(ts *turnState) error {
	m.log.Info("intent not allowed in flow",
		"identity", ts.s.Identity,
		"turn_id", ts.t.ID,
		"flow", ts.s.CurrentFlow,
		"intent", ts.t.Intent)
	ts.res.Illegal = true
	ts.res.Intent = models.IntentUnclear
	m.convo.SwitchFlow(ts.s, models.FlowAwaitingClarification)
	return m.unclear(ts)
}

func (m *Machine) escalate(ts *turnState, key, reason string) {
	s := ts.s
	m.log.Warn("escalating to human support",
		"identity", s.Identity,
		"turn_id", ts.t.ID,
		"flow", s.CurrentFlow,
		"reason", reason)
	ts.say(key)
	ts.act(ActionEscalate)
	s.Context.Clarifications = 0
	m.convo.FinishFlow(s)
}

func (m *Machine) answer(ts *turnState) {
	if a := strings.TrimSpace(ts.t.Answer); a != "" {
		ts.sayWith(a, nil)
		return
	}
	ts.say("help")
}

// changeLanguage switches the reply language and leaves the flow where it is.
func (m *Machine) changeLanguage(ts *turnState) error {
	s := ts.s
	raw := ts.t.entity("language")
	if raw == "" {
		raw = ts.t.Text
	}
	lang, err := parseLanguage(raw)
	if err != nil {
		ts.res.InvalidInput = true
		ts.say("invalid_language")
		return m.prompt(ts)
	}
	if s.CurrentFlow == models.FlowRegistration && s.Context.PendingField == FieldLanguage {
		return m.registrationInput(ts, lang)
	}
	s.Language = lang
	s.Context.Clarifications = 0
	ts.say("language_changed")
	return m.prompt(ts)
}

func (m *Machine) resumeHint(ts *turnState) {
	if snap, ok := m.convo.Interrupted(ts.s); ok {
		ts.say("resume_hint", flowName(ts.s.Language, snap.Flow))
	}
}

func flowName(lang string, f models.FlowState) string {
	key := "flow_" + string(f)
	if name := Text(lang, key); name != key {
		return name
	}
	return strings.ReplaceAll(string(f), "_", " ")
}

// fieldLabel is the user-facing name of a registration or form field.
func fieldLabel(lang, field string) string {
	key := "field_" + field
	if label := Text(lang, key); label != key {
		return label
	}
	return strings.ReplaceAll(field, "_", " ")
}
