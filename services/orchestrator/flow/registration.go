package flow

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

func (m *Machine) startRegistration(ts *turnState) error {
	s := ts.s
	s.CurrentFlow = models.FlowRegistration
	s.Context.Registration = map[string]string{}
	s.Context.PendingField = ""
	s.Context.Attempts = 0
	m.convo.DiscardInterrupted(s, models.FlowRegistration)

	for _, field := range registrationFields {
		raw := ts.t.entity(field)
		if raw == "" {
			continue
		}
		if v, err := validators[field].check(raw); err == nil {
			s.Context.Registration[field] = v
		}
	}
	if lang, ok := s.Context.Registration[FieldLanguage]; ok {
		s.Language = lang
	}
	ts.say("registration_start")
	return m.nextRegistrationStep(ts)
}

// nextRegistrationStep asks for the first missing field or completes the profile.
func (m *Machine) nextRegistrationStep(ts *turnState) error {
	s := ts.s
	for _, field := range registrationFields {
		if _, ok := s.Context.Registration[field]; ok {
			continue
		}
		if s.Context.PendingField != field {
			s.Context.PendingField = field
			s.Context.Attempts = 0
		}
		ts.say("ask_" + field)
		return nil
	}
	return m.completeRegistration(ts)
}

func (m *Machine) registrationInput(ts *turnState, value string) error {
	s := ts.s
	if s.Context.Registration == nil {
		s.Context.Registration = map[string]string{}
	}
	field := s.Context.PendingField
	v, ok := validators[field]
	if !ok {
		return m.nextRegistrationStep(ts)
	}

	parsed, err := v.check(value)
	if err != nil {
		ts.res.InvalidInput = true
		s.Context.Attempts++
		m.log.Debug("registration input rejected",
			"identity", s.Identity,
			"turn_id", ts.t.ID,
			"field", field,
			"attempt", s.Context.Attempts)
		if s.Context.Attempts >= MaxAttempts {
			m.escalate(ts, "escalate_validation", "validation_limit")
			return nil
		}
		ts.say(v.invalidKey)
		ts.say("ask_" + field)
		return nil
	}

	s.Context.Registration[field] = parsed
	s.Context.Attempts = 0
	if field == FieldLanguage {
		s.Language = parsed
	}
	return m.nextRegistrationStep(ts)
}

func (m *Machine) completeRegistration(ts *turnState) error {
	s := ts.s
	reg := s.Context.Registration

	existing, err := m.profiles.Get(ts.ctx, s.Identity)
	exists := err == nil
	if err != nil && !errors.Is(err, ErrNoProfile) {
		return fmt.Errorf("load profile: %w", err)
	}

	p := applyRegistration(existing, s.Identity, reg)

	if exists {
		err = m.profiles.Update(ts.ctx, p)
	} else {
		err = m.profiles.Create(ts.ctx, p)
	}
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	m.log.Info("profile registered", "identity", s.Identity, "turn_id", ts.t.ID, "updated", exists)

	ts.act(ActionProfileCreated)
	ts.say("registration_done", p.Name)
	m.convo.FinishFlow(s)
	return m.searchFor(ts, p)
}

func applyRegistration(p models.Profile, identity string, reg map[string]string) models.Profile {
	age, _ := strconv.Atoi(reg[FieldAge])
	p.Identity = identity
	p.Language = reg[FieldLanguage]
	p.Name = reg[FieldName]
	p.Age = age
	p.State = reg[FieldState]
	p.District = reg[FieldDistrict]
	p.Occupation = reg[FieldOccupation]
	p.IncomeCategory = reg[FieldIncomeCategory]
	return p
}

// provisionalProfile is a partial registration used for matching before the
// profile is stored. Missing attributes fail the criteria that need them.
func provisionalProfile(identity string, reg map[string]string) models.Profile {
	return applyRegistration(models.Profile{}, identity, reg)
}
