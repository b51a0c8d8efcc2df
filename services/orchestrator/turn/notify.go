package turn

import (
	"context"
	"errors"
	"strings"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/flow"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/session"
)

// ProfileChanged re-runs matching when an eligibility attribute changed and tells
// the user about schemes they newly qualify for.
func (p *Processor) ProfileChanged(ctx context.Context, before, after models.Profile) {
	if !models.EligibilityChanged(before, after) {
		return
	}
	log := p.log.With("identity", after.Identity, "event", "profile_changed")

	now, err := p.matcher.FindEligibleSchemes(ctx, after)
	if err != nil {
		p.metrics.Failures.WithLabelValues(string(FailureCatalog)).Inc()
		log.Warn("re-matching after profile change failed", "kind", FailureCatalog, "error", err)
		return
	}
	was := map[string]bool{}
	if before.Identity != "" {
		prev, err := p.matcher.FindEligibleSchemes(ctx, before)
		if err != nil {
			log.Warn("matching previous profile failed", "error", err)
			return
		}
		for _, m := range prev {
			was[m.Scheme.ID] = true
		}
	}

	var ids, names []string
	for _, m := range now {
		if !was[m.Scheme.ID] {
			ids = append(ids, m.Scheme.ID)
			names = append(names, m.Scheme.Name)
		}
	}
	if len(ids) == 0 {
		log.Debug("no newly eligible schemes")
		return
	}
	if len(ids) > flow.TopMatches {
		ids, names = ids[:flow.TopMatches], names[:flow.TopMatches]
	}

	lang := languageOf(after)
	text := flow.Text(lang, "new_matches", strings.Join(names, ", "))
	p.notify(ctx, after.Identity, "new_matches", text, ids, func(s *models.Session) {
		p.convo.RememberMatches(s, ids)
	})
}

// ApplicationStatusChanged forwards a status change to the applicant.
func (p *Processor) ApplicationStatusChanged(ctx context.Context, app models.Application, previous models.ApplicationStatus) {
	lang := session.DefaultLanguage
	if prof, err := p.profiles.Get(ctx, app.Identity); err == nil {
		lang = languageOf(prof)
	}
	name := app.SchemeID
	if sc, err := p.matcher.Scheme(ctx, app.SchemeID); err == nil && sc.Name != "" {
		name = sc.Name
	}
	p.log.Info("application status changed",
		"identity", app.Identity,
		"application_id", app.ID,
		"from", previous,
		"to", app.Status)
	text := flow.Text(lang, "status_changed", name, app.ID, flow.StatusLabel(lang, app.Status))
	p.notify(ctx, app.Identity, "status_changed", text, []string{app.SchemeID}, nil)
}

// notify records a system message on the live session, if there is one, and
// delivers it.
func (p *Processor) notify(ctx context.Context, identity, kind, text string, schemes []string, mutate func(*models.Session)) {
	log := p.log.With("identity", identity, "notification", kind)

	unlock := p.locks.Lock(identity)
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		err := p.recordNotification(ctx, identity, text, schemes, mutate)
		if errors.Is(err, session.ErrVersionConflict) {
			continue
		}
		if err != nil {
			log.Warn("could not record notification on session", "error", err)
		}
		break
	}
	unlock()

	if err := p.delivery.Send(ctx, identity, []models.Outbound{{Type: OutboundMessage, Text: text}}); err != nil {
		p.metrics.Failures.WithLabelValues(string(FailureTransient)).Inc()
		log.Error("notification delivery failed", "kind", FailureTransient, "error", err)
		return
	}
	p.metrics.Notifications.WithLabelValues(kind).Inc()
}

func (p *Processor) recordNotification(ctx context.Context, identity, text string, schemes []string, mutate func(*models.Session)) error {
	s, resumed, err := p.convo.RestoreOrStart(ctx, identity)
	if err != nil {
		return err
	}
	if !resumed {
		return nil
	}
	if mutate != nil {
		mutate(s)
	}
	p.convo.AppendMessage(s, models.ConversationMessage{Role: models.RoleSystem, Content: text, Schemes: schemes})
	return p.convo.Save(ctx, s)
}

func languageOf(p models.Profile) string {
	if p.Language != "" {
		return p.Language
	}
	return session.DefaultLanguage
}
