package analysis

import "fmt"

// The parser looks for these labels. Changing them means changing parse.go as well.
const (
	recommendationLabel = "RECOMMENDATION"
	scoreLabel          = "SCORE"
	rationaleLabel      = "RATIONALE"

	minScore = 0
	maxScore = 10
)

const promptTemplate = `You are a disciplined long-term value investor. Judge whether the stock below is worth buying today, using only the fundamentals provided.

Symbol: %s

Fundamentals:
%s

Answer with exactly these three lines and nothing else:
%s: <BUY|HOLD|SELL>
%s: <number from %d to %d, higher means more undervalued>
%s: <one short paragraph>`

// BuildPrompt embeds the symbol and the fundamentals verbatim. Same input, same prompt.
func BuildPrompt(symbol, fundamentals string) string {
	return fmt.Sprintf(promptTemplate,
		symbol,
		fundamentals,
		recommendationLabel,
		scoreLabel, minScore, maxScore,
		rationaleLabel,
	)
}
