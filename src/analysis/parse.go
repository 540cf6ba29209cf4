package analysis

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"valueinvestor/src/model"
)

const maxRationale = 2000

var (
	reRecommendation = regexp.MustCompile(`(?i)` + recommendationLabel + `[\s*_"'=:\-]*\b(buy|hold|sell)\b`)
	reScore          = regexp.MustCompile(`(?i)\b` + scoreLabel + `[\s*_"'=:\-]*?(-?\d+(?:\.\d+)?)`)
	reRationale      = regexp.MustCompile(`(?is)` + rationaleLabel + `[\s*_"'=:\-]*(.+)$`)
)

// ParseResponse extracts the recommendation and score tokens from free text. Prose around the
// tokens is fine; missing tokens are an error, never a silent HOLD.
func ParseResponse(symbol, text string) (model.Recommendation, error) {
	recs := reRecommendation.FindAllStringSubmatch(text, -1)
	scores := reScore.FindAllStringSubmatch(text, -1)

	switch {
	case len(recs) == 0 && len(scores) == 0:
		return model.Recommendation{}, fmt.Errorf("%w: %s: no recommendation or score token", ErrAnalysisParse, symbol)
	case len(recs) == 0:
		return model.Recommendation{}, fmt.Errorf("%w: %s: no recommendation token", ErrAnalysisParse, symbol)
	case len(scores) == 0:
		return model.Recommendation{}, fmt.Errorf("%w: %s: no score token", ErrAnalysisParse, symbol)
	}

	// models sometimes restate the answer; the last occurrence wins
	action := model.RecommendationAction(strings.ToUpper(recs[len(recs)-1][1]))

	score, err := strconv.ParseFloat(scores[len(scores)-1][1], 64)
	if err != nil {
		return model.Recommendation{}, fmt.Errorf("%w: %s: score: %v", ErrAnalysisParse, symbol, err)
	}
	if score < minScore || score > maxScore {
		return model.Recommendation{}, fmt.Errorf("%w: %s: score %v outside %d..%d", ErrAnalysisParse, symbol, score, minScore, maxScore)
	}

	return model.Recommendation{
		Symbol:         symbol,
		Recommendation: action,
		Score:          score,
		Rationale:      rationale(text),
	}, nil
}

func rationale(text string) string {
	out := strings.TrimSpace(text)
	if m := reRationale.FindStringSubmatch(text); m != nil {
		out = strings.TrimSpace(m[1])
	}
	if len(out) > maxRationale {
		out = out[:maxRationale]
	}
	return out
}
