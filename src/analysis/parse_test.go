package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valueinvestor/src/model"
)

func TestParseResponseTolerantOfProse(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		action model.RecommendationAction
		score  float64
	}{
		{
			name:   "plain",
			text:   "RECOMMENDATION: BUY\nSCORE: 8.5\nRATIONALE: strong moat",
			action: model.RecommendationBuy,
			score:  8.5,
		},
		{
			name:   "markdown and prose",
			text:   "Sure! Here is my view.\n\n**Recommendation:** hold\n**Score:** 5\n\nRationale: fairly priced.",
			action: model.RecommendationHold,
			score:  5,
		},
		{
			name:   "restated answer uses the last one",
			text:   "Initial recommendation: BUY, score: 6.\nOn reflection:\nRECOMMENDATION: SELL\nSCORE: 2",
			action: model.RecommendationSell,
			score:  2,
		},
		{
			name:   "dash separators",
			text:   "Recommendation - HOLD\nScore - 4\nRationale - cyclical",
			action: model.RecommendationHold,
			score:  4,
		},
		{
			name:   "json-ish",
			text:   `{"recommendation": "buy", "score": 7}`,
			action: model.RecommendationBuy,
			score:  7,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := ParseResponse("KO", tc.text)
			require.NoError(t, err)
			assert.Equal(t, "KO", rec.Symbol)
			assert.Equal(t, tc.action, rec.Recommendation)
			assert.InDelta(t, tc.score, rec.Score, 1e-9)
			assert.NotEmpty(t, rec.Rationale)
		})
	}
}

func TestParseResponseFailsInsteadOfDefaulting(t *testing.T) {
	cases := map[string]string{
		"neither token":    "I think this company looks interesting but I cannot decide.",
		"empty":            "",
		"no score":         "RECOMMENDATION: BUY\nRATIONALE: good",
		"no action":        "SCORE: 9",
		"template echoed":  "RECOMMENDATION: <BUY|HOLD|SELL>\nSCORE: <number>",
		"score over range": "RECOMMENDATION: BUY\nSCORE: 85",
		"negative score":   "RECOMMENDATION: BUY\nSCORE: -3",
		"negative, no gap": "RECOMMENDATION: BUY\nSCORE:-3",
	}

	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResponse("KO", text)
			assert.ErrorIs(t, err, ErrAnalysisParse)
		})
	}
}
