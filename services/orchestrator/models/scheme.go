package models

import "time"

type JurisdictionLevel string

const (
	JurisdictionCentral  JurisdictionLevel = "central"
	JurisdictionState    JurisdictionLevel = "state"
	JurisdictionDistrict JurisdictionLevel = "district"
)

type Jurisdiction struct {
	Level    JurisdictionLevel `json:"level" yaml:"level"`
	State    string            `json:"state,omitempty" yaml:"state,omitempty"`
	District string            `json:"district,omitempty" yaml:"district,omitempty"`
}

// Eligibility is the structured predicate of a scheme. A nil bound or empty set
// imposes no constraint on that dimension.
type Eligibility struct {
	AgeMin           *int     `json:"age_min,omitempty" yaml:"age_min,omitempty"`
	AgeMax           *int     `json:"age_max,omitempty" yaml:"age_max,omitempty"`
	IncomeCategories []string `json:"income_categories,omitempty" yaml:"income_categories,omitempty"`
	Occupations      []string `json:"occupations,omitempty" yaml:"occupations,omitempty"`
	States           []string `json:"states,omitempty" yaml:"states,omitempty"`
	Districts        []string `json:"districts,omitempty" yaml:"districts,omitempty"`
	Genders          []string `json:"genders,omitempty" yaml:"genders,omitempty"`
	SocialCategories []string `json:"social_categories,omitempty" yaml:"social_categories,omitempty"`
	Disability       *bool    `json:"disability,omitempty" yaml:"disability,omitempty"`
}

type Scheme struct {
	ID                 string       `json:"id" yaml:"id"`
	Name               string       `json:"name" yaml:"name"`
	Description        string       `json:"description" yaml:"description"`
	Eligibility        Eligibility  `json:"eligibility" yaml:"eligibility"`
	RequiredDocuments  []string     `json:"required_documents" yaml:"required_documents"`
	FormFields         []string     `json:"form_fields,omitempty" yaml:"form_fields,omitempty"`
	Benefit            string       `json:"benefit" yaml:"benefit"`
	BenefitAmount      float64      `json:"benefit_amount" yaml:"benefit_amount"`
	ApplicationProcess string       `json:"application_process" yaml:"application_process"`
	Deadline           *time.Time   `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	Jurisdiction       Jurisdiction `json:"jurisdiction" yaml:"jurisdiction"`
	Category           string       `json:"category" yaml:"category"`
	Active             bool         `json:"active" yaml:"active"`
	Version            int          `json:"version" yaml:"-"`
	UpdatedAt          time.Time    `json:"updated_at" yaml:"-"`
}

// SchemeVersion is the immutable record written for every content change.
type SchemeVersion struct {
	SchemeID  string            `json:"scheme_id"`
	Version   int               `json:"version"`
	ChangedAt time.Time         `json:"changed_at"`
	Diff      map[string]string `json:"diff"`
	Snapshot  Scheme            `json:"snapshot"`
}

type CriterionResult struct {
	Criterion string `json:"criterion"`
	Passed    bool   `json:"passed"`
	Reason    string `json:"reason,omitempty"`
}

// SchemeMatch is derived per evaluation and never persisted.
type SchemeMatch struct {
	Scheme   Scheme            `json:"scheme"`
	Criteria []CriterionResult `json:"criteria"`
	Score    float64           `json:"score"`
	Rank     int               `json:"rank"`
}

type EligibilityResult struct {
	Scheme   Scheme            `json:"scheme"`
	Eligible bool              `json:"eligible"`
	Criteria []CriterionResult `json:"criteria"`
}

// Failed returns the criteria that did not pass.
func (r EligibilityResult) Failed() []CriterionResult {
	var out []CriterionResult
	for _, c := range r.Criteria {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}
