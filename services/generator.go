package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"compforge/models"
)

// Generator is the stateless entry point of the generation pipeline:
// context builder -> provider dispatch -> artifact parser, with timing and
// token accounting attached to the result. Every failure inside the
// pipeline surfaces as a single ErrGeneration with its cause preserved.
type Generator struct {
	dispatcher   *Dispatcher
	defaultModel string
}

func NewGenerator(dispatcher *Dispatcher, defaultModel string) *Generator {
	return &Generator{dispatcher: dispatcher, defaultModel: defaultModel}
}

// GenerateComponent creates a fresh component from a prompt and bounded
// conversation history.
func (g *Generator) GenerateComponent(ctx context.Context, prompt string, prior []models.Message, settings models.SessionSettings) (*models.Component, *models.MessageMeta, error) {
	start := time.Now()
	settings = g.withDefaults(settings)

	turns := BuildGenerationContext(prompt, prior)
	component, meta, err := g.run(ctx, turns, settings, start)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("component generated",
		"model", settings.Model,
		"tokens", meta.Tokens,
		"processing_ms", meta.ProcessingTime)
	return component, meta, nil
}

// RefineComponent edits the current component in place based on user
// feedback.
func (g *Generator) RefineComponent(ctx context.Context, prompt string, current *models.Component, prior []models.Message, settings models.SessionSettings) (*models.Component, *models.MessageMeta, error) {
	start := time.Now()
	settings = g.withDefaults(settings)

	turns := BuildRefinementContext(prompt, current, prior)
	component, meta, err := g.run(ctx, turns, settings, start)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("component refined",
		"model", settings.Model,
		"tokens", meta.Tokens,
		"processing_ms", meta.ProcessingTime)
	return component, meta, nil
}

func (g *Generator) run(ctx context.Context, turns []Turn, settings models.SessionSettings, start time.Time) (*models.Component, *models.MessageMeta, error) {
	result, err := g.dispatcher.Call(ctx, turns, CompletionSettings{
		Model:       settings.Model,
		Temperature: *settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	})
	if err != nil {
		slog.Error("generation pipeline failed", "model", settings.Model, "error", err)
		return nil, nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	component := ParseArtifact(result.Text)
	meta := &models.MessageMeta{
		Tokens:         result.TokensUsed,
		Model:          settings.Model,
		ProcessingTime: time.Since(start).Milliseconds(),
		Temperature:    *settings.Temperature,
		MaxTokens:      settings.MaxTokens,
	}
	return &component, meta, nil
}

// withDefaults fills absent settings. An explicit temperature of 0 is a
// valid choice and is passed through untouched.
func (g *Generator) withDefaults(settings models.SessionSettings) models.SessionSettings {
	if settings.Model == "" {
		settings.Model = g.defaultModel
	}
	if settings.Temperature == nil {
		t := models.DefaultTemperature
		settings.Temperature = &t
	}
	if settings.MaxTokens == 0 {
		settings.MaxTokens = 2000
	}
	return settings
}

// AvailableModels exposes the dispatcher's model catalog.
func (g *Generator) AvailableModels() []ModelInfo {
	return g.dispatcher.AvailableModels()
}
