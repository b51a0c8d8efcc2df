package turn

import (
	"context"
	"regexp"
	"strings"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/flow"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

// keywordConfidence is what a keyword hit reports. It clears DefaultMinConfidence
// so a confident guess is acted on.
const keywordConfidence = 0.6

type keywordRule struct {
	intent models.Intent
	words  []string
}

// Checked in order; the first rule with a hit wins.
var keywordRules = []keywordRule{
	{models.IntentCheckStatus, []string{"status", "track my", "tracking", "sthiti", "स्थिति", "kya hua"}},
	{models.IntentStartApplication, []string{"apply", "application", "aavedan", "avedan", "आवेदन", "form bharo"}},
	{models.IntentRegister, []string{"register", "registration", "sign up", "signup", "my profile", "panjikaran", "पंजीकरण", "रजिस्टर"}},
	{models.IntentSchemeDetails, []string{"tell me about", "details", "more about", "know more", "batao", "बताओ", "बताइए", "jankari", "जानकारी"}},
	{models.IntentSearchSchemes, []string{"scheme", "yojana", "योजना", "eligible", "benefit", "qualify", "labh", "लाभ"}},
}

var languageWords = []string{"language", "bhasha", "भाषा", "speak", "mein baat", "में बात", "talk in", "reply in"}

var (
	ordinalWords = []string{"first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth", "tenth", "last", "pehla", "pehli", "doosra", "doosri", "teesra", "teesri"}
	numberOnly   = regexp.MustCompile(`^\d{1,2}(st|nd|rd|th)?$`)
)

// KeywordExtractor guesses an intent from fixed keywords. It is the fallback
// when the extraction service cannot be reached.
type KeywordExtractor struct{}

func (KeywordExtractor) Extract(_ context.Context, text, _ string, summary map[string]string) (Extraction, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	guess := Extraction{Intent: models.IntentUnclear, Entities: map[string]string{}}
	if lower == "" {
		return guess, nil
	}

	if containsAny(lower, languageWords) {
		for _, word := range strings.Fields(lower) {
			if len(word) <= 2 {
				continue
			}
			if code, ok := flow.LanguageCode(word); ok {
				guess.Intent = models.IntentChangeLanguage
				guess.Entities["language"] = code
				guess.Confidence = keywordConfidence
				return guess, nil
			}
		}
	}

	// a bare number answers the pending question, or points into the last list
	if numberOnly.MatchString(lower) {
		if summary["pending_field"] == "" {
			guess.Intent = models.IntentSchemeDetails
			guess.Entities["reference"] = lower
			guess.Confidence = keywordConfidence
		}
		return guess, nil
	}

	for _, rule := range keywordRules {
		if !containsAny(lower, rule.words) {
			continue
		}
		guess.Intent = rule.intent
		guess.Confidence = keywordConfidence
		if rule.intent == models.IntentSchemeDetails || rule.intent == models.IntentStartApplication {
			if ord := firstWord(lower, ordinalWords); ord != "" {
				guess.Entities["reference"] = ord
			}
		}
		if rule.intent == models.IntentSearchSchemes {
			if ord := firstWord(lower, ordinalWords); ord != "" {
				guess.Intent = models.IntentSchemeDetails
				guess.Entities["reference"] = ord
			}
		}
		return guess, nil
	}

	if strings.HasSuffix(lower, "?") && summary["pending_field"] == "" {
		guess.Intent = models.IntentAskQuestion
		guess.Confidence = keywordConfidence
	}
	return guess, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func firstWord(s string, words []string) string {
	for _, field := range strings.Fields(s) {
		field = strings.Trim(field, ".,!?")
		for _, w := range words {
			if field == w {
				return w
			}
		}
	}
	return ""
}
