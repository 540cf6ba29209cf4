package probe

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valueinvestor/src/model"
)

type stubBroker bool

func (s stubBroker) Probe(context.Context, model.TradingMode) bool { return bool(s) }

type stubAnalysis struct {
	up, present bool
}

func (s stubAnalysis) Available(context.Context) bool               { return s.up }
func (s stubAnalysis) ModelAvailable(context.Context) (bool, error) { return s.present, nil }
func (s stubAnalysis) Model() string                                { return "llama3" }

func TestProbeAllUp(t *testing.T) {
	var out bytes.Buffer
	p := &Probe{Broker: stubBroker(true), Analysis: stubAnalysis{up: true, present: true}, Out: &out}

	require.NoError(t, p.Run(context.Background(), "live"))
	assert.Contains(t, out.String(), "mode: LIVE")
	assert.Contains(t, out.String(), "broker adapter: ok")
	assert.Contains(t, out.String(), "analysis model llama3: ok")
}

func TestProbeReportsFailures(t *testing.T) {
	var out bytes.Buffer
	p := &Probe{Broker: stubBroker(false), Analysis: stubAnalysis{up: true, present: false}, Out: &out}

	err := p.Run(context.Background(), "LIEV")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker adapter")
	assert.Contains(t, err.Error(), "analysis model")
	assert.Contains(t, out.String(), "fallback true")
}
