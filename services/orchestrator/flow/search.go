package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/conversation"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/matching"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

// search runs matching for the session's profile. A registration left half way
// is searched with what it collected so far; users with neither are sent into
// registration.
func (m *Machine) search(ts *turnState) error {
	p, err := m.profiles.Get(ts.ctx, ts.s.Identity)
	if errors.Is(err, ErrNoProfile) {
		if snap, ok := m.convo.Interrupted(ts.s); ok && snap.Flow == models.FlowRegistration && len(snap.Registration) > 0 {
			m.convo.FinishFlow(ts.s)
			return m.searchFor(ts, provisionalProfile(ts.s.Identity, snap.Registration))
		}
		ts.say("need_profile")
		return m.startRegistration(ts)
	}
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	m.convo.FinishFlow(ts.s)
	return m.searchFor(ts, p)
}

func (m *Machine) searchFor(ts *turnState, p models.Profile) error {
	s := ts.s
	defer m.resumeHint(ts)

	matches, err := m.matcher.FindEligibleSchemes(ts.ctx, p)
	if errors.Is(err, matching.ErrCatalogUnavailable) {
		m.log.Warn("catalog unavailable during search", "identity", s.Identity, "turn_id", ts.t.ID, "error", err)
		ts.res.CatalogUnavailable = true
		ts.say("catalog_unavailable")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find eligible schemes: %w", err)
	}
	if len(matches) == 0 {
		m.convo.RememberMatches(s, nil)
		ts.say("search_none")
		return nil
	}
	if len(matches) > TopMatches {
		matches = matches[:TopMatches]
	}

	ids := make([]string, 0, len(matches))
	lines := []string{Text(s.Language, "search_header")}
	for _, sm := range matches {
		ids = append(ids, sm.Scheme.ID)
		lines = append(lines, Text(s.Language, "search_item", sm.Rank, sm.Scheme.Name, sm.Scheme.Benefit))
	}
	lines = append(lines, Text(s.Language, "search_footer"))

	m.convo.RememberMatches(s, ids)
	ts.sayWith(strings.Join(lines, "\n"), ids)
	return nil
}

// details explains one scheme and whether the user qualifies for it.
func (m *Machine) details(ts *turnState) error {
	s := ts.s
	sc, err := m.resolveScheme(ts)
	switch {
	case errors.Is(err, matching.ErrCatalogUnavailable):
		ts.res.CatalogUnavailable = true
		ts.say("catalog_unavailable")
		m.convo.FinishFlow(s)
		return nil
	case err != nil:
		ts.say("details_which")
		s.CurrentFlow = models.FlowAwaitingClarification
		return nil
	}

	text := Text(s.Language, "details", sc.Name, sc.Description, sc.Benefit,
		strings.Join(sc.RequiredDocuments, ", "), sc.ApplicationProcess)
	if sc.Deadline != nil {
		text += "\n" + Text(s.Language, "deadline", sc.Deadline.Format("02 Jan 2006"))
	}
	ts.sayWith(text, []string{sc.ID})

	p, err := m.profiles.Get(ts.ctx, s.Identity)
	switch {
	case errors.Is(err, ErrNoProfile):
		ts.say("details_register")
	case err != nil:
		return fmt.Errorf("load profile: %w", err)
	default:
		res, err := m.matcher.CheckEligibility(ts.ctx, p, sc.ID)
		switch {
		case errors.Is(err, matching.ErrCatalogUnavailable):
			ts.res.CatalogUnavailable = true
			ts.say("catalog_unavailable")
		case err != nil:
			return fmt.Errorf("check eligibility: %w", err)
		case res.Eligible:
			ts.say("details_eligible")
		default:
			ts.say("details_ineligible", reasons(res))
		}
	}
	m.convo.FinishFlow(s)
	m.resumeHint(ts)
	return nil
}

// status lists the user's applications.
func (m *Machine) status(ts *turnState) error {
	s := ts.s
	apps, err := m.apps.List(ts.ctx, s.Identity)
	if err != nil {
		return fmt.Errorf("list applications: %w", err)
	}
	m.convo.FinishFlow(s)
	defer m.resumeHint(ts)
	if len(apps) == 0 {
		ts.say("status_none")
		return nil
	}
	lines := []string{Text(s.Language, "status_header")}
	ids := make([]string, 0, len(apps))
	for _, a := range apps {
		lines = append(lines, Text(s.Language, "status_item",
			m.schemeName(ts.ctx, a.SchemeID), a.ID, StatusLabel(s.Language, a.Status)))
		ids = append(ids, a.SchemeID)
	}
	ts.sayWith(strings.Join(lines, "\n"), ids)
	return nil
}

// StatusLabel is the user-facing wording of an application status.
func StatusLabel(lang string, st models.ApplicationStatus) string {
	return Text(lang, "status_"+string(st))
}

func reasons(res models.EligibilityResult) string {
	failed := res.Failed()
	out := make([]string, 0, len(failed))
	for _, c := range failed {
		out = append(out, c.Reason)
	}
	return strings.Join(out, "; ")
}

// resolveScheme finds the scheme a turn talks about: an explicit id, a name, or a
// reference such as "it" or "the second one".
func (m *Machine) resolveScheme(ts *turnState) (models.Scheme, error) {
	if id := ts.t.entity("scheme_id"); id != "" {
		sc, err := m.matcher.Scheme(ts.ctx, id)
		if err == nil || errors.Is(err, matching.ErrCatalogUnavailable) {
			return sc, err
		}
	}
	if name := ts.t.entity("scheme_name"); name != "" {
		sc, err := m.schemeByName(ts, name)
		if err == nil || errors.Is(err, matching.ErrCatalogUnavailable) {
			return sc, err
		}
	}

	var mentions []string
	if ref := ts.t.entity("reference"); ref != "" {
		mentions = append(mentions, ref)
	} else if ts.t.entity("scheme_id") != "" || ts.t.entity("scheme_name") != "" {
		return models.Scheme{}, conversation.ErrNoReferent
	}
	id, err := m.convo.ResolveReference(ts.s, mentions)
	if err != nil {
		return models.Scheme{}, err
	}
	return m.matcher.Scheme(ts.ctx, id)
}

func (m *Machine) schemeByName(ts *turnState, name string) (models.Scheme, error) {
	schemes, err := m.matcher.ActiveSchemes(ts.ctx)
	if err != nil {
		return models.Scheme{}, err
	}
	want := strings.ToLower(strings.TrimSpace(name))
	var partial *models.Scheme
	for i := range schemes {
		got := strings.ToLower(schemes[i].Name)
		if got == want || strings.ToLower(schemes[i].ID) == want {
			return schemes[i], nil
		}
		if partial == nil && len(want) >= 4 && (strings.Contains(got, want) || strings.Contains(want, got)) {
			partial = &schemes[i]
		}
	}
	if partial != nil {
		return *partial, nil
	}
	return models.Scheme{}, conversation.ErrNoReferent
}

func (m *Machine) schemeName(ctx context.Context, id string) string {
	sc, err := m.matcher.Scheme(ctx, id)
	if err != nil || sc.Name == "" {
		return id
	}
	return sc.Name
}
