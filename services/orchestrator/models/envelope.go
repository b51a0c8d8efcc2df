package models

import "time"

type MessageContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type MessageMetadata struct {
	Language     string                 `json:"language"`
	PlatformData map[string]interface{} `json:"platform_data"`
}

// MessageEnvelope is the normalized inbound message published by channel adapters.
// UserID carries the phone-equivalent identity the session is keyed on.
type MessageEnvelope struct {
	MessageID string          `json:"message_id"`
	SessionID string          `json:"session_id"`
	Channel   string          `json:"channel"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Content   MessageContent  `json:"content"`
	Metadata  MessageMetadata `json:"metadata"`
}

// Identity returns the key the conversation is tracked under.
func (e MessageEnvelope) Identity() string {
	if e.UserID != "" && e.UserID != "anonymous" {
		return e.UserID
	}
	return e.SessionID
}

type ExtractRequest struct {
	Message  string            `json:"message"`
	Language string            `json:"language"`
	Flow     string            `json:"flow"`
	Pending  string            `json:"pending_field,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
}

type ExtractResponse struct {
	Intent     string            `json:"intent"`
	Entities   map[string]string `json:"entities"`
	Confidence float64           `json:"confidence"`
	Answer     string            `json:"answer,omitempty"`
}

// Outbound is one logical message handed to the delivery layer.
type Outbound struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Action string `json:"action,omitempty"`
}

type WSResponse struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Action    string `json:"action,omitempty"`
}

// WSIncoming is a message a web client sends over its socket.
type WSIncoming struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}
