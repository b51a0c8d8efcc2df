package models

import "strings"

// Intent is the structured classification of a user turn.
type Intent string

const (
	IntentRegister         Intent = "REGISTER"
	IntentSearchSchemes    Intent = "SEARCH_SCHEMES"
	IntentSchemeDetails    Intent = "GET_SCHEME_DETAILS"
	IntentStartApplication Intent = "START_APPLICATION"
	IntentCheckStatus      Intent = "CHECK_STATUS"
	IntentAskQuestion      Intent = "ASK_QUESTION"
	IntentChangeLanguage   Intent = "CHANGE_LANGUAGE"
	IntentUnclear          Intent = "UNCLEAR"
)

var knownIntents = map[Intent]bool{
	IntentRegister:         true,
	IntentSearchSchemes:    true,
	IntentSchemeDetails:    true,
	IntentStartApplication: true,
	IntentCheckStatus:      true,
	IntentAskQuestion:      true,
	IntentChangeLanguage:   true,
	IntentUnclear:          true,
}

func (i Intent) Valid() bool { return knownIntents[i] }

// ParseIntent maps an extractor label onto the closed intent set. Unknown labels are UNCLEAR.
func ParseIntent(label string) Intent {
	in := Intent(strings.ToUpper(strings.TrimSpace(label)))
	if knownIntents[in] {
		return in
	}
	return IntentUnclear
}

// FlowState names the conversational flow a session is in.
type FlowState string

const (
	FlowIdle                  FlowState = "idle"
	FlowRegistration          FlowState = "registration"
	FlowSchemeSearch          FlowState = "scheme_search"
	FlowSchemeDetails         FlowState = "scheme_details"
	FlowApplication           FlowState = "application"
	FlowStatusCheck           FlowState = "status_check"
	FlowAwaitingClarification FlowState = "awaiting_clarification"
)

var knownStates = map[FlowState]bool{
	FlowIdle:                  true,
	FlowRegistration:          true,
	FlowSchemeSearch:          true,
	FlowSchemeDetails:         true,
	FlowApplication:           true,
	FlowStatusCheck:           true,
	FlowAwaitingClarification: true,
}

func (f FlowState) Valid() bool { return knownStates[f] }

// MultiTurn reports whether the flow stays open across turns and can be interrupted.
func (f FlowState) MultiTurn() bool {
	return f == FlowRegistration || f == FlowApplication
}
