package model

type RecommendationAction string

const (
	RecommendationBuy  RecommendationAction = "BUY"
	RecommendationHold RecommendationAction = "HOLD"
	RecommendationSell RecommendationAction = "SELL"
)

// Recommendation is the scored signal for one candidate.
type Recommendation struct {
	Symbol         string               `json:"symbol"`
	Recommendation RecommendationAction `json:"recommendation"`
	Score          float64              `json:"score"`
	Rationale      string               `json:"rationale"`
}
