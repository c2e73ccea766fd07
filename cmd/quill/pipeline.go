package main

import (
	"time"

	"github.com/quillworks-ai/quill"
	"github.com/quillworks-ai/quill/ai"
	"github.com/quillworks-ai/quill/ai/openai"
	"github.com/quillworks-ai/quill/config"
	"github.com/quillworks-ai/quill/trace"
)

// resolveModel builds the configured model. Names in "provider/model" form
// go through the provider registry when the provider is known; everything
// else, including OpenRouter-style ids paired with a base URL override,
// uses the OpenAI-compatible driver.
func resolveModel(cfg *config.Config) *ai.Model {
	if model, err := ai.Resolve(cfg.Model.Name, cfg.Model.APIKey, cfg.Model.BaseURL); err == nil {
		return model
	}
	return openai.NewModel(cfg.Model.Name, cfg.Model.APIKey, cfg.Model.BaseURL)
}

func buildPipeline(cfg *config.Config) *quill.Pipeline {
	model := resolveModel(cfg)
	if cfg.Model.MaxRetries > 0 {
		model.WithMaxRetries(cfg.Model.MaxRetries)
	}

	p := &quill.Pipeline{
		Model:    model,
		Limiter:  ai.NewLimiter(cfg.Limits.MaxConcurrentCalls, cfg.Limits.TokenBudget),
		LogLevel: cfg.LogLevel(),
	}

	if cfg.Trace.Enabled {
		p.Tracer = trace.NewTracer(trace.Config{
			Directory:         cfg.Trace.Directory,
			MaxTraceFiles:     cfg.Trace.MaxFiles,
			RetentionDuration: time.Duration(cfg.Trace.RetentionDays) * 24 * time.Hour,
		})
	}
	return p
}
