package models

import "time"

// Profile is a snapshot of the eligibility-relevant attributes of a user.
type Profile struct {
	Identity       string    `json:"identity"`
	Name           string    `json:"name"`
	Age            int       `json:"age"`
	Gender         string    `json:"gender,omitempty"`
	State          string    `json:"state"`
	District       string    `json:"district"`
	Occupation     string    `json:"occupation"`
	IncomeCategory string    `json:"income_category"`
	Disability     bool      `json:"disability"`
	SocialCategory string    `json:"social_category,omitempty"`
	Education      string    `json:"education,omitempty"`
	FamilySize     int       `json:"family_size,omitempty"`
	Language       string    `json:"language"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EligibilityChanged reports whether any attribute that drives re-matching differs.
func EligibilityChanged(before, after Profile) bool {
	return before.Age != after.Age ||
		before.IncomeCategory != after.IncomeCategory ||
		before.State != after.State ||
		before.District != after.District ||
		before.Occupation != after.Occupation
}
