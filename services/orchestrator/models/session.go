package models

import (
	"encoding/json"
	"time"
)

const (
	RoleUser   = "user"
	RoleSystem = "system"
)

// ConversationMessage is one retained entry of a session's history.
type ConversationMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Intent    Intent    `json:"intent,omitempty"`
	Schemes   []string  `json:"schemes,omitempty"`
}

// ApplicationDraft holds the form being collected by the application flow.
// ApplicationID is assigned when the draft reaches confirmation and is the
// id the application is stored under, so submitting the same draft twice
// yields one application.
type ApplicationDraft struct {
	SchemeID      string            `json:"scheme_id"`
	Fields        map[string]string `json:"fields"`
	Missing       []string          `json:"missing"`
	Confirming    bool              `json:"confirming"`
	ApplicationID string            `json:"application_id,omitempty"`
}

// FlowSnapshot is the partial state of a multi-turn flow that was interrupted by a topic switch.
type FlowSnapshot struct {
	Flow          FlowState         `json:"flow"`
	PendingField  string            `json:"pending_field"`
	Attempts      int               `json:"attempts"`
	Registration  map[string]string `json:"registration,omitempty"`
	Draft         *ApplicationDraft `json:"draft,omitempty"`
	InterruptedAt time.Time         `json:"interrupted_at"`
}

// ConversationContext is the structured memory of a session.
type ConversationContext struct {
	// PendingField is the input the active flow expects next.
	PendingField string `json:"pending_field,omitempty"`
	// Attempts counts failed validations of PendingField.
	Attempts int `json:"attempts,omitempty"`
	// Clarifications counts consecutive UNCLEAR turns.
	Clarifications int               `json:"clarifications,omitempty"`
	Registration   map[string]string `json:"registration,omitempty"`
	Draft          *ApplicationDraft `json:"draft,omitempty"`
	// LastMatches is the ranked scheme id set last delivered to the user.
	LastMatches []string          `json:"last_matches,omitempty"`
	Interrupted *FlowSnapshot     `json:"interrupted,omitempty"`
	Values      map[string]string `json:"values,omitempty"`
}

type Session struct {
	Identity     string                `json:"identity"`
	Language     string                `json:"language"`
	CurrentFlow  FlowState             `json:"current_flow"`
	Context      ConversationContext   `json:"context"`
	History      []ConversationMessage `json:"history"`
	Version      int64                 `json:"version"`
	CreatedAt    time.Time             `json:"created_at"`
	LastActivity time.Time             `json:"last_activity"`
}

// Clone returns a deep copy so a turn can be applied and discarded on conflict.
func (s *Session) Clone() *Session {
	data, err := json.Marshal(s)
	if err != nil {
		cp := *s
		return &cp
	}
	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		cp := *s
		return &cp
	}
	return &out
}
