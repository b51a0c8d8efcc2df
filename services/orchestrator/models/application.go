package models

import "time"

type ApplicationStatus string

const (
	StatusSubmitted         ApplicationStatus = "submitted"
	StatusUnderReview       ApplicationStatus = "under_review"
	StatusApproved          ApplicationStatus = "approved"
	StatusRejected          ApplicationStatus = "rejected"
	StatusDocumentsRequired ApplicationStatus = "documents_required"
)

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected, StatusDocumentsRequired:
		return true
	}
	return false
}

type Application struct {
	ID          string            `json:"id"`
	SchemeID    string            `json:"scheme_id"`
	Identity    string            `json:"identity"`
	Fields      map[string]string `json:"fields"`
	Status      ApplicationStatus `json:"status"`
	SubmittedAt time.Time         `json:"submitted_at"`
}
