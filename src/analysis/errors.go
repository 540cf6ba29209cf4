package analysis

import "errors"

var (
	// ErrAnalysisUnavailable means the scoring service could not be reached or refused the call.
	ErrAnalysisUnavailable = errors.New("analysis unavailable")
	// ErrAnalysisParse means the response did not carry the recommendation and score tokens.
	ErrAnalysisParse = errors.New("analysis response not parseable")
)
