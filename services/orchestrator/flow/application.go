package flow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/conversation"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/matching"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

// Pending fields of the application flow that are not form fields.
const (
	fieldScheme  = "scheme"
	fieldConfirm = "confirm"
)

var (
	yesWords    = map[string]bool{"yes": true, "y": true, "haan": true, "ha": true, "han": true, "submit": true, "confirm": true, "ok": true, "okay": true, "हाँ": true, "हां": true}
	cancelWords = map[string]bool{"cancel": true, "stop": true, "no": true, "nahi": true, "nahin": true, "रद्द": true, "नहीं": true}
)

func reply(text string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(text), ".!"))
}

// startApplication opens an application for the scheme the turn refers to.
func (m *Machine) startApplication(ts *turnState) error {
	s := ts.s
	s.CurrentFlow = models.FlowApplication
	s.Context.Draft = nil
	s.Context.Attempts = 0
	m.convo.DiscardInterrupted(s, models.FlowApplication)

	sc, err := m.resolveScheme(ts)
	switch {
	case errors.Is(err, matching.ErrCatalogUnavailable):
		ts.res.CatalogUnavailable = true
		ts.say("catalog_unavailable")
		m.convo.FinishFlow(s)
		return nil
	case err != nil:
		s.Context.PendingField = fieldScheme
		ts.say("app_which")
		return nil
	}
	return m.openDraft(ts, sc)
}

func (m *Machine) openDraft(ts *turnState, sc models.Scheme) error {
	s := ts.s
	p, err := m.profiles.Get(ts.ctx, s.Identity)
	if errors.Is(err, ErrNoProfile) {
		ts.say("need_profile")
		if snap, ok := m.convo.Interrupted(s); ok && snap.Flow == models.FlowRegistration {
			m.convo.Resume(s)
			return m.nextRegistrationStep(ts)
		}
		return m.startRegistration(ts)
	}
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	res, err := m.matcher.CheckEligibility(ts.ctx, p, sc.ID)
	switch {
	case errors.Is(err, matching.ErrCatalogUnavailable):
		ts.res.CatalogUnavailable = true
		ts.say("catalog_unavailable")
		m.convo.FinishFlow(s)
		return nil
	case err != nil:
		return fmt.Errorf("check eligibility: %w", err)
	case !res.Eligible:
		ts.sayWith(Text(s.Language, "app_ineligible", sc.Name, reasons(res)), []string{sc.ID})
		m.convo.FinishFlow(s)
		return nil
	}

	fields := sc.FormFields
	if len(fields) == 0 {
		fields = DefaultFormFields
	}
	filled, missing := m.forms.AutoFill(p, fields)
	s.Context.Draft = &models.ApplicationDraft{SchemeID: sc.ID, Fields: filled, Missing: missing}
	s.Context.PendingField = ""
	s.Context.Attempts = 0
	ts.sayWith(Text(s.Language, "app_start", sc.Name), []string{sc.ID})
	return m.nextApplicationStep(ts)
}

// nextApplicationStep asks for the next missing field, or for confirmation once
// the form is complete.
func (m *Machine) nextApplicationStep(ts *turnState) error {
	s := ts.s
	d := s.Context.Draft
	if d == nil {
		s.Context.PendingField = fieldScheme
		ts.say("app_which")
		return nil
	}
	if len(d.Missing) > 0 {
		field := d.Missing[0]
		if s.Context.PendingField != field {
			s.Context.PendingField = field
			s.Context.Attempts = 0
		}
		ts.say("app_ask_field", fieldLabel(s.Language, field))
		return nil
	}

	if !d.Confirming {
		d.Confirming = true
		s.Context.Attempts = 0
	}
	if d.ApplicationID == "" {
		d.ApplicationID = uuid.New().String()
	}
	s.Context.PendingField = fieldConfirm
	lines := make([]string, 0, len(d.Fields))
	for _, f := range formOrder(d) {
		lines = append(lines, fmt.Sprintf("%s: %s", fieldLabel(s.Language, f), d.Fields[f]))
	}
	ts.say("app_summary", m.schemeName(ts.ctx, d.SchemeID), strings.Join(lines, "\n"))
	return nil
}

func (m *Machine) applicationInput(ts *turnState, value string) error {
	s := ts.s
	if cancelWords[reply(value)] {
		ts.say("app_cancelled")
		m.convo.FinishFlow(s)
		return nil
	}

	d := s.Context.Draft
	if d == nil {
		t := ts.t
		if t.entity("scheme_id") == "" && t.entity("scheme_name") == "" && t.entity("reference") == "" {
			ts.t.Entities = withEntity(t.Entities, "scheme_name", value)
		}
		sc, err := m.resolveScheme(ts)
		if errors.Is(err, conversation.ErrNoReferent) {
			if id, rerr := m.convo.ResolveReference(s, []string{value}); rerr == nil {
				sc, err = m.matcher.Scheme(ts.ctx, id)
			}
		}
		if errors.Is(err, matching.ErrCatalogUnavailable) {
			ts.res.CatalogUnavailable = true
			ts.say("catalog_unavailable")
			m.convo.FinishFlow(s)
			return nil
		}
		if err != nil {
			return m.rejectInput(ts, "app_which")
		}
		return m.openDraft(ts, sc)
	}

	if d.Confirming {
		if !yesWords[reply(value)] {
			return m.rejectInput(ts, "app_confirm_again")
		}
		return m.submit(ts)
	}

	field := s.Context.PendingField
	value, err := m.forms.Normalize(field, value)
	if err != nil {
		ts.res.InvalidInput = true
		s.Context.Attempts++
		if s.Context.Attempts >= MaxAttempts {
			m.escalate(ts, "escalate_validation", "validation_limit")
			return nil
		}
		label := fieldLabel(s.Language, field)
		ts.say("app_invalid_field", label, Text(s.Language, "app_ask_field", label))
		return nil
	}
	if d.Fields == nil {
		d.Fields = map[string]string{}
	}
	d.Fields[field] = value
	d.Missing = removeField(d.Missing, field)
	s.Context.Attempts = 0
	return m.nextApplicationStep(ts)
}

// rejectInput re-asks with key, escalating on the last allowed attempt.
func (m *Machine) rejectInput(ts *turnState, key string) error {
	s := ts.s
	ts.res.InvalidInput = true
	s.Context.Attempts++
	if s.Context.Attempts >= MaxAttempts {
		m.escalate(ts, "escalate_validation", "validation_limit")
		return nil
	}
	ts.say(key)
	return nil
}

func (m *Machine) submit(ts *turnState) error {
	s := ts.s
	d := s.Context.Draft
	if d.ApplicationID == "" {
		d.ApplicationID = uuid.New().String()
	}
	app, err := m.apps.Create(ts.ctx, models.Application{
		ID:       d.ApplicationID,
		SchemeID: d.SchemeID,
		Identity: s.Identity,
		Fields:   d.Fields,
	})
	if err != nil {
		return fmt.Errorf("submit application: %w", err)
	}
	m.log.Info("application submitted",
		"identity", s.Identity,
		"turn_id", ts.t.ID,
		"scheme_id", d.SchemeID,
		"application_id", app.ID)

	ts.act(ActionApplicationSubmitted)
	ts.sayWith(Text(s.Language, "app_submitted", m.schemeName(ts.ctx, d.SchemeID), app.ID), []string{d.SchemeID})
	m.convo.FinishFlow(s)
	m.resumeHint(ts)
	return nil
}

// formOrder lists filled fields in the scheme's form order.
func formOrder(d *models.ApplicationDraft) []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range DefaultFormFields {
		if _, ok := d.Fields[f]; ok {
			out = append(out, f)
			seen[f] = true
		}
	}
	var rest []string
	for f := range d.Fields {
		if !seen[f] {
			rest = append(rest, f)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func removeField(fields []string, field string) []string {
	out := fields[:0]
	for _, f := range fields {
		if f != field {
			out = append(out, f)
		}
	}
	return out
}

func withEntity(entities map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(entities)+1)
	for k, v := range entities {
		out[k] = v
	}
	out[key] = value
	return out
}
