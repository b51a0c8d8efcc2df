package turn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

func TestKeywordExtractor(t *testing.T) {
	cases := []struct {
		text     string
		pending  string
		intent   models.Intent
		entities map[string]string
	}{
		{text: "What is my application status", intent: models.IntentCheckStatus},
		{text: "I want to apply", intent: models.IntentStartApplication},
		{text: "continue registration", intent: models.IntentRegister},
		{text: "show me schemes", intent: models.IntentSearchSchemes},
		{text: "tell me about the second scheme", intent: models.IntentSchemeDetails, entities: map[string]string{"reference": "second"}},
		{text: "mujhe yojana batao", intent: models.IntentSchemeDetails},
		{text: "please speak in hindi", intent: models.IntentChangeLanguage, entities: map[string]string{"language": "hi"}},
		{text: "2", intent: models.IntentSchemeDetails, entities: map[string]string{"reference": "2"}},
		{text: "34", pending: "age", intent: models.IntentUnclear},
		{text: "how long does it take?", intent: models.IntentAskQuestion},
		{text: "Bihar", pending: "state", intent: models.IntentUnclear},
		{text: "yes", pending: "confirm", intent: models.IntentUnclear},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			summary := map[string]string{"flow": "idle"}
			if tc.pending != "" {
				summary["pending_field"] = tc.pending
			}
			got, err := KeywordExtractor{}.Extract(context.Background(), tc.text, "en", summary)
			require.NoError(t, err)
			assert.Equal(t, tc.intent, got.Intent)
			for k, v := range tc.entities {
				assert.Equal(t, v, got.Entities[k])
			}
			if tc.intent == models.IntentUnclear {
				assert.Zero(t, got.Confidence)
			} else {
				assert.GreaterOrEqual(t, got.Confidence, DefaultMinConfidence)
			}
		})
	}
}
