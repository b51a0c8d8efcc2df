package flow

import (
	"fmt"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

// Table maps (current flow, intent) to the flow the intent leads to. A missing
// entry is an illegal transition. For a multi-turn flow an entry pointing back to
// the same flow means the intent is handled as input to that flow.
type Table map[models.FlowState]map[models.Intent]models.FlowState

var allStates = []models.FlowState{
	models.FlowIdle,
	models.FlowRegistration,
	models.FlowSchemeSearch,
	models.FlowSchemeDetails,
	models.FlowApplication,
	models.FlowStatusCheck,
	models.FlowAwaitingClarification,
}

// CHANGE_LANGUAGE is accepted in every state and never appears in the table.
var routedIntents = []models.Intent{
	models.IntentRegister,
	models.IntentSearchSchemes,
	models.IntentSchemeDetails,
	models.IntentStartApplication,
	models.IntentCheckStatus,
	models.IntentAskQuestion,
	models.IntentUnclear,
}

func openRow() map[models.Intent]models.FlowState {
	return map[models.Intent]models.FlowState{
		models.IntentRegister:         models.FlowRegistration,
		models.IntentSearchSchemes:    models.FlowSchemeSearch,
		models.IntentSchemeDetails:    models.FlowSchemeDetails,
		models.IntentStartApplication: models.FlowApplication,
		models.IntentCheckStatus:      models.FlowStatusCheck,
		models.IntentAskQuestion:      models.FlowIdle,
		models.IntentUnclear:          models.FlowAwaitingClarification,
	}
}

// DefaultTable is the transition table the assistant runs with.
func DefaultTable() Table {
	t := Table{
		models.FlowRegistration: {
			models.IntentRegister:         models.FlowRegistration,
			models.IntentAskQuestion:      models.FlowRegistration,
			models.IntentUnclear:          models.FlowRegistration,
			models.IntentSearchSchemes:    models.FlowSchemeSearch,
			models.IntentSchemeDetails:    models.FlowSchemeDetails,
			models.IntentStartApplication: models.FlowApplication,
			models.IntentCheckStatus:      models.FlowStatusCheck,
		},
		models.FlowApplication: {
			models.IntentRegister:         models.FlowRegistration,
			models.IntentStartApplication: models.FlowApplication,
			models.IntentAskQuestion:      models.FlowApplication,
			models.IntentUnclear:          models.FlowApplication,
			models.IntentSearchSchemes:    models.FlowSchemeSearch,
			models.IntentSchemeDetails:    models.FlowSchemeDetails,
			models.IntentCheckStatus:      models.FlowStatusCheck,
		},
	}
	for _, st := range []models.FlowState{
		models.FlowIdle,
		models.FlowAwaitingClarification,
		models.FlowSchemeSearch,
		models.FlowSchemeDetails,
		models.FlowStatusCheck,
	} {
		t[st] = openRow()
	}
	return t
}

// Validate checks that every state has a row, every target is a known state,
// single-turn states accept every routed intent and multi-turn flows accept
// UNCLEAR as their own input.
func (t Table) Validate() error {
	for _, st := range allStates {
		row, ok := t[st]
		if !ok {
			return fmt.Errorf("flow table: no row for state %q", st)
		}
		for in, next := range row {
			if in == models.IntentChangeLanguage {
				return fmt.Errorf("flow table: %s is handled globally, remove it from %q", in, st)
			}
			if !next.Valid() {
				return fmt.Errorf("flow table: %q on %s leads to unknown state %q", st, in, next)
			}
		}
		if st.MultiTurn() {
			if row[models.IntentUnclear] != st {
				return fmt.Errorf("flow table: %q must take UNCLEAR as input", st)
			}
			continue
		}
		for _, in := range routedIntents {
			if _, ok := row[in]; !ok {
				return fmt.Errorf("flow table: %q has no transition for %s", st, in)
			}
		}
	}
	for st := range t {
		if !st.Valid() {
			return fmt.Errorf("flow table: unknown state %q", st)
		}
	}
	return nil
}

// startIntent is the intent that opens each multi-turn flow.
var startIntent = map[models.FlowState]models.Intent{
	models.FlowRegistration: models.IntentRegister,
	models.FlowApplication:  models.IntentStartApplication,
}
