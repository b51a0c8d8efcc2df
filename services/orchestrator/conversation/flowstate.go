package conversation

import (
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

// SwitchFlow moves to target, snapshotting an active multi-turn flow first.
func (m *Manager) SwitchFlow(s *models.Session, target models.FlowState) {
	if s.CurrentFlow.MultiTurn() && s.CurrentFlow != target {
		if s.Context.Interrupted != nil {
			m.log.Debug("replacing interrupted flow",
				"identity", s.Identity,
				"dropped", s.Context.Interrupted.Flow,
				"interrupted", s.CurrentFlow)
		}
		s.Context.Interrupted = &models.FlowSnapshot{
			Flow:          s.CurrentFlow,
			PendingField:  s.Context.PendingField,
			Attempts:      s.Context.Attempts,
			Registration:  s.Context.Registration,
			Draft:         s.Context.Draft,
			InterruptedAt: m.now().UTC(),
		}
		m.clearFlow(s)
	}
	s.CurrentFlow = target
}

// Interrupted returns the flow waiting to be resumed, if any.
func (m *Manager) Interrupted(s *models.Session) (models.FlowSnapshot, bool) {
	if s.Context.Interrupted == nil {
		return models.FlowSnapshot{}, false
	}
	return *s.Context.Interrupted, true
}

// Resume restores the interrupted flow at the step it was left on.
func (m *Manager) Resume(s *models.Session) bool {
	snap := s.Context.Interrupted
	if snap == nil {
		return false
	}
	s.CurrentFlow = snap.Flow
	s.Context.PendingField = snap.PendingField
	s.Context.Attempts = snap.Attempts
	s.Context.Registration = snap.Registration
	s.Context.Draft = snap.Draft
	s.Context.Interrupted = nil
	return true
}

// DiscardInterrupted drops the snapshot for flow, if that is what is stored.
func (m *Manager) DiscardInterrupted(s *models.Session, flow models.FlowState) {
	if s.Context.Interrupted != nil && s.Context.Interrupted.Flow == flow {
		s.Context.Interrupted = nil
	}
}

// FinishFlow returns the session to idle and clears the active flow's fields.
func (m *Manager) FinishFlow(s *models.Session) {
	m.clearFlow(s)
	s.CurrentFlow = models.FlowIdle
}

func (m *Manager) clearFlow(s *models.Session) {
	s.Context.PendingField = ""
	s.Context.Attempts = 0
	s.Context.Registration = nil
	s.Context.Draft = nil
}
