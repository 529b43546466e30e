package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/ai"
	"github.com/spigell/matchmaker/internal/ai/gemini"
	"github.com/spigell/matchmaker/internal/filtering"
	"github.com/spigell/matchmaker/internal/logger"
	"github.com/spigell/matchmaker/internal/matching"
	"github.com/spigell/matchmaker/internal/model"
	"github.com/spigell/matchmaker/internal/secrets"
)

const geminiKeyEnv = "GEMINI_API_KEY"

// newMatcher loads the model artifact and wires filters and the optional
// narrator around it.
func newMatcher(ctx context.Context, config *Config, lg *zap.Logger) (*matching.Matcher, error) {
	path := config.modelPath()
	artifact, err := model.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}

	regressor, err := artifact.Regressor()
	if err != nil {
		return nil, err
	}

	lg.Info("model loaded",
		zap.String("path", path),
		zap.String("kernel", artifact.Kind),
		zap.Int("samples", artifact.Samples),
		zap.Time("trained_at", artifact.TrainedAt),
	)

	filters := prepareFilters(config.Match, lg)
	if err := filters.Validate(); err != nil {
		return nil, fmt.Errorf("validating filters: %w", err)
	}
	for _, status := range filters.Describe() {
		lg.Debug("filter configured",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	var narrator ai.Narrator
	if config.AI != nil && config.AI.Enabled {
		narrator, err = newNarrator(ctx, config.AI, lg)
		if err != nil {
			lg.Warn("skipping match rationales", zap.Error(err))
		}
	}

	return matching.New(regressor, matching.Options{
		Filters:  filters,
		Narrator: narrator,
		MinScore: config.Match.MinScore,
	}, lg)
}

func prepareFilters(config *MatchConfig, lg *zap.Logger) *filtering.Filtering {
	steps := []filtering.Filter{
		filtering.NewSelf(),
		filtering.NewExcludeFile(config.ExcludeFile),
		filtering.NewOrigin(config.Origins),
	}

	f := filtering.New(steps, lg)
	if config.ExcludeFile == "" {
		f.DisableByName("exclude_file", "no exclude file configured")
	}
	return f
}

func newNarrator(ctx context.Context, config *AIConfig, lg *zap.Logger) (ai.Narrator, error) {
	gcfg := config.Gemini
	if gcfg == nil {
		gcfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: gcfg.APIKeyFile,
		Env:  geminiKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or %s)", err, geminiKeyEnv)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, gcfg.Model, gcfg.MaxRetries,
		logger.WithFields(lg, zap.Int("ai_retry_attempts", gcfg.MaxRetries)))
	if err != nil {
		return nil, err
	}

	return gemini.NewNarrator(generator, gcfg.MaxLogLength,
		logger.WithCommonFields(lg, "gemini", generator.Model())), nil
}
