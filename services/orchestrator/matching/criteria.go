package matching

import (
	"fmt"
	"strings"
	"time"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

const (
	CriterionAge            = "age"
	CriterionIncome         = "income_category"
	CriterionRegion         = "region"
	CriterionState          = "state"
	CriterionDistrict       = "district"
	CriterionOccupation     = "occupation"
	CriterionGender         = "gender"
	CriterionSocialCategory = "social_category"
	CriterionDisability     = "disability"
	CriterionDeadline       = "deadline"
)

// Evaluate checks every criterion the scheme declares against the profile.
// Dimensions the scheme leaves empty are not constrained and produce no result,
// except region, which every scheme carries through its jurisdiction.
func Evaluate(p models.Profile, s models.Scheme, now time.Time) []models.CriterionResult {
	e := s.Eligibility
	var out []models.CriterionResult

	if e.AgeMin != nil || e.AgeMax != nil {
		out = append(out, checkAge(p.Age, e.AgeMin, e.AgeMax))
	}
	if len(e.IncomeCategories) > 0 {
		out = append(out, checkSet(CriterionIncome, "income category", p.IncomeCategory, e.IncomeCategories))
	}
	out = append(out, checkJurisdiction(p, s.Jurisdiction))
	if len(e.States) > 0 {
		out = append(out, checkSet(CriterionState, "state", p.State, e.States))
	}
	if len(e.Districts) > 0 {
		out = append(out, checkSet(CriterionDistrict, "district", p.District, e.Districts))
	}
	if len(e.Occupations) > 0 {
		out = append(out, checkSet(CriterionOccupation, "occupation", p.Occupation, e.Occupations))
	}
	if len(e.Genders) > 0 {
		out = append(out, checkSet(CriterionGender, "gender", p.Gender, e.Genders))
	}
	if len(e.SocialCategories) > 0 {
		out = append(out, checkSet(CriterionSocialCategory, "social category", p.SocialCategory, e.SocialCategories))
	}
	if e.Disability != nil {
		out = append(out, checkDisability(p.Disability, *e.Disability))
	}
	if s.Deadline != nil {
		out = append(out, checkDeadline(*s.Deadline, now))
	}
	return out
}

func allPassed(results []models.CriterionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func checkAge(age int, min, max *int) models.CriterionResult {
	r := models.CriterionResult{Criterion: CriterionAge}
	if age <= 0 {
		r.Reason = "age unknown"
		return r
	}
	if min != nil && age < *min {
		r.Reason = fmt.Sprintf("age mismatch: minimum age is %d, profile age is %d", *min, age)
		return r
	}
	if max != nil && age > *max {
		r.Reason = fmt.Sprintf("age mismatch: maximum age is %d, profile age is %d", *max, age)
		return r
	}
	r.Passed = true
	r.Reason = fmt.Sprintf("age %d within %s", age, ageRange(min, max))
	return r
}

func ageRange(min, max *int) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("%d-%d", *min, *max)
	case min != nil:
		return fmt.Sprintf("%d+", *min)
	default:
		return fmt.Sprintf("up to %d", *max)
	}
}

func checkSet(criterion, label, value string, allowed []string) models.CriterionResult {
	r := models.CriterionResult{Criterion: criterion}
	if value == "" {
		r.Reason = fmt.Sprintf("%s unknown: requires one of %s", label, strings.Join(allowed, ", "))
		return r
	}
	if containsNorm(allowed, value) {
		r.Passed = true
		r.Reason = fmt.Sprintf("%s %s accepted", label, value)
		return r
	}
	r.Reason = fmt.Sprintf("%s mismatch: requires one of %s, profile has %s", label, strings.Join(allowed, ", "), value)
	return r
}

func checkJurisdiction(p models.Profile, j models.Jurisdiction) models.CriterionResult {
	r := models.CriterionResult{Criterion: CriterionRegion}
	switch j.Level {
	case models.JurisdictionState:
		if j.State != "" && !sameNorm(j.State, p.State) {
			r.Reason = fmt.Sprintf("state mismatch: scheme is run by %s, profile state is %s", j.State, orUnknown(p.State))
			return r
		}
	case models.JurisdictionDistrict:
		if j.State != "" && !sameNorm(j.State, p.State) {
			r.Reason = fmt.Sprintf("state mismatch: scheme is run in %s, profile state is %s", j.State, orUnknown(p.State))
			return r
		}
		if j.District != "" && !sameNorm(j.District, p.District) {
			r.Reason = fmt.Sprintf("district mismatch: scheme is run by %s district, profile district is %s", j.District, orUnknown(p.District))
			return r
		}
	default:
		r.Passed = true
		r.Reason = "central scheme, available in every state"
		return r
	}
	r.Passed = true
	r.Reason = fmt.Sprintf("%s-level scheme covers the profile's region", j.Level)
	return r
}

func checkDisability(has, required bool) models.CriterionResult {
	r := models.CriterionResult{Criterion: CriterionDisability}
	if has == required {
		r.Passed = true
		if required {
			r.Reason = "scheme is for persons with disability"
		} else {
			r.Reason = "scheme is for persons without disability"
		}
		return r
	}
	if required {
		r.Reason = "disability mismatch: scheme is for persons with disability"
	} else {
		r.Reason = "disability mismatch: scheme excludes persons with disability"
	}
	return r
}

func checkDeadline(deadline, now time.Time) models.CriterionResult {
	r := models.CriterionResult{Criterion: CriterionDeadline}
	if now.After(deadline) {
		r.Reason = fmt.Sprintf("applications closed on %s", deadline.Format("2 Jan 2006"))
		return r
	}
	r.Passed = true
	r.Reason = fmt.Sprintf("open until %s", deadline.Format("2 Jan 2006"))
	return r
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// norm folds case and separators so "Below 5L" and "below_5l" compare equal.
func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func sameNorm(a, b string) bool { return norm(a) == norm(b) }

func containsNorm(set []string, v string) bool {
	n := norm(v)
	for _, s := range set {
		if norm(s) == n {
			return true
		}
	}
	return false
}
