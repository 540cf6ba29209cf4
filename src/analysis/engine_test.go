package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valueinvestor/src/model"
)

type stubBackend struct {
	response string
	err      error
	pingErr  error
	models   []string
	prompts  []string
}

func (s *stubBackend) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func (s *stubBackend) Ping(context.Context) error { return s.pingErr }

func (s *stubBackend) Models(context.Context) ([]string, error) {
	if s.pingErr != nil {
		return nil, s.pingErr
	}
	return s.models, nil
}

func newTestEngine(b Backend, modelName string) *Engine {
	logger, _ := logrustest.NewNullLogger()
	return NewEngine(b, modelName, logrus.NewEntry(logger))
}

func TestEngineAnalyze(t *testing.T) {
	backend := &stubBackend{response: "Looks cheap.\nRECOMMENDATION: BUY\nSCORE: 8\nRATIONALE: low P/E"}
	engine := newTestEngine(backend, "m")

	rec, err := engine.Analyze(context.Background(), "KO", "P/E 12")
	require.NoError(t, err)
	assert.Equal(t, model.RecommendationBuy, rec.Recommendation)
	assert.Equal(t, 8.0, rec.Score)
	require.Len(t, backend.prompts, 1)
	assert.Equal(t, BuildPrompt("KO", "P/E 12"), backend.prompts[0])
}

func TestEngineAnalyzeErrors(t *testing.T) {
	unreachable := newTestEngine(&stubBackend{err: errors.New("connection refused")}, "m")
	_, err := unreachable.Analyze(context.Background(), "KO", "x")
	assert.ErrorIs(t, err, ErrAnalysisUnavailable)

	garbled := newTestEngine(&stubBackend{response: "no idea"}, "m")
	_, err = garbled.Analyze(context.Background(), "KO", "x")
	assert.ErrorIs(t, err, ErrAnalysisParse)
}

func TestEngineAvailability(t *testing.T) {
	up := newTestEngine(&stubBackend{models: []string{"llama3.1:8b", "qwen2:latest"}}, "qwen2")
	assert.True(t, up.Available(context.Background()))

	present, err := up.ModelAvailable(context.Background())
	require.NoError(t, err)
	assert.True(t, present)

	missing := newTestEngine(&stubBackend{models: []string{"llama3.1:8b"}}, "phi3")
	present, err = missing.ModelAvailable(context.Background())
	require.NoError(t, err)
	assert.False(t, present)

	down := newTestEngine(&stubBackend{pingErr: ErrAnalysisUnavailable}, "phi3")
	assert.False(t, down.Available(context.Background()))
	_, err = down.ModelAvailable(context.Background())
	assert.Error(t, err)
}
