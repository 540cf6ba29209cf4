package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"valueinvestor/src/model"
)

// Backend is the scoring service behind the engine.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Ping(ctx context.Context) error
	Models(ctx context.Context) ([]string, error)
}

// Engine turns fundamentals into a Recommendation. It keeps no state between calls.
type Engine struct {
	backend Backend
	model   string
	logger  *logrus.Entry
}

func NewEngine(backend Backend, modelName string, logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{backend: backend, model: modelName, logger: logger.WithField("component", "analysis")}
}

// NewEngineFromConfig wires the HTTP client for cfg.
func NewEngineFromConfig(cfg Config, logger *logrus.Entry) *Engine {
	return NewEngine(NewClient(cfg), cfg.Model, logger)
}

func (e *Engine) Analyze(ctx context.Context, symbol, fundamentals string) (model.Recommendation, error) {
	log := e.logger.WithField("symbol", symbol)

	text, err := e.backend.Generate(ctx, BuildPrompt(symbol, fundamentals))
	if err != nil {
		if !errors.Is(err, ErrAnalysisUnavailable) {
			err = fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
		}
		log.WithError(err).Warn("analysis call failed")
		return model.Recommendation{}, err
	}

	rec, err := ParseResponse(symbol, text)
	if err != nil {
		log.WithError(err).WithField("response", truncate(text, 512)).Warn("analysis response rejected")
		return model.Recommendation{}, err
	}

	log.WithFields(logrus.Fields{
		"recommendation": rec.Recommendation,
		"score":          rec.Score,
	}).Info("analysis complete")

	return rec, nil
}

// Available reports whether the scoring service answers right now.
func (e *Engine) Available(ctx context.Context) bool {
	if err := e.backend.Ping(ctx); err != nil {
		e.logger.WithError(err).Warn("analysis backend unreachable")
		return false
	}
	return true
}

// ModelAvailable reports whether the configured model is installed. Absence is false, not an
// error; the error is only for an unreachable backend.
func (e *Engine) ModelAvailable(ctx context.Context) (bool, error) {
	names, err := e.backend.Models(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == e.model || strings.TrimSuffix(name, ":latest") == e.model {
			return true, nil
		}
	}
	e.logger.WithField("model", e.model).Warn("configured analysis model is not installed")
	return false, nil
}

func (e *Engine) Model() string { return e.model }
