package matching

import (
	"math"
	"time"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

// Weights of the relevance sub-scores. Each sub-score is in [0,1].
type Weights struct {
	Benefit    float64
	Simplicity float64
	Urgency    float64
	Affinity   float64
}

var DefaultWeights = Weights{Benefit: 0.4, Simplicity: 0.3, Urgency: 0.2, Affinity: 0.1}

// urgencyHorizon is the number of days before a deadline at which urgency starts to rise.
const urgencyHorizon = 90.0

// benefitPercentile is the share of catalog schemes with a strictly smaller benefit
// amount. Schemes without an amount score zero.
func benefitPercentile(amount float64, catalog []models.Scheme) float64 {
	if amount <= 0 {
		return 0
	}
	if len(catalog) <= 1 {
		return 1
	}
	less := 0
	for _, s := range catalog {
		if s.BenefitAmount < amount {
			less++
		}
	}
	return float64(less) / float64(len(catalog)-1)
}

// simplicity decreases with the number of required documents.
func simplicity(s models.Scheme) float64 {
	return 1 / float64(1+len(s.RequiredDocuments))
}

// urgency rises linearly from 0 at urgencyHorizon days out to 1 at the deadline.
func urgency(s models.Scheme, now time.Time) float64 {
	if s.Deadline == nil {
		return 0
	}
	days := s.Deadline.Sub(now).Hours() / 24
	return clamp01(1 - days/urgencyHorizon)
}

// affinity is 1 when the scheme's category is one the profile points at.
func affinity(p models.Profile, s models.Scheme) float64 {
	if s.Category == "" {
		return 0
	}
	if interests(p)[norm(s.Category)] {
		return 1
	}
	return 0
}

var occupationCategories = map[string][]string{
	"farmer":                {"agriculture", "farmer_welfare"},
	"agricultural_labourer": {"agriculture", "labour"},
	"student":               {"education", "scholarship"},
	"labourer":              {"labour", "social_security"},
	"construction_worker":   {"labour", "housing"},
	"street_vendor":         {"livelihood", "credit"},
	"fisherman":             {"fisheries", "agriculture"},
	"artisan":               {"livelihood", "skill_development"},
	"self_employed":         {"livelihood", "credit"},
	"unemployed":            {"employment", "skill_development"},
}

func interests(p models.Profile) map[string]bool {
	out := map[string]bool{}
	for _, c := range occupationCategories[norm(p.Occupation)] {
		out[c] = true
	}
	if p.Disability {
		out["disability"] = true
	}
	if norm(p.Gender) == "female" {
		out["women"] = true
		out["women_and_child"] = true
	}
	if p.Age >= 60 {
		out["pension"] = true
		out["senior_citizen"] = true
	}
	switch norm(p.IncomeCategory) {
	case "bpl", "below_1l":
		out["housing"] = true
		out["food_security"] = true
		out["social_security"] = true
	}
	return out
}

func (w Weights) score(p models.Profile, s models.Scheme, catalog []models.Scheme, now time.Time) float64 {
	total := w.Benefit*benefitPercentile(s.BenefitAmount, catalog) +
		w.Simplicity*simplicity(s) +
		w.Urgency*urgency(s, now) +
		w.Affinity*affinity(p, s)
	sum := w.Benefit + w.Simplicity + w.Urgency + w.Affinity
	if sum > 0 && math.Abs(sum-1) > 1e-9 {
		total /= sum
	}
	return clamp01(total)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
