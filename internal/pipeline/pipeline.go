package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/Risbinrh/OMR-Service/internal/answer"
	"github.com/Risbinrh/OMR-Service/internal/detector"
	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
	"github.com/Risbinrh/OMR-Service/internal/layout"
	"github.com/Risbinrh/OMR-Service/internal/normalizer"
	"github.com/Risbinrh/OMR-Service/internal/validation"
	"github.com/Risbinrh/OMR-Service/pkg/models"
)

// Strategy names a stage configuration. The advanced strategy runs every
// detection signal and corner strategy; the basic strategy is the cheaper
// degraded configuration the fallback controller retries with.
type Strategy string

const (
	StrategyAdvanced Strategy = "advanced"
	StrategyBasic    Strategy = "basic"
)

// Pipeline is one fully wired detection configuration. All stage state is
// either immutable after construction or scoped to a single Run call, so
// one Pipeline value serves concurrent requests.
type Pipeline struct {
	strategy   Strategy
	normalizer *normalizer.Normalizer
	layout     *layout.Resolver
	detector   *detector.Detector
	answers    *answer.Resolver
	validator  *validation.Engine
}

// New builds the stage set for a strategy. workers bounds the detector's
// internal parallelism.
func New(strategy Strategy, workers int) *Pipeline {
	normOpts := normalizer.AdvancedOptions()
	mode := detector.ModeAdvanced
	if strategy == StrategyBasic {
		normOpts = normalizer.BasicOptions()
		mode = detector.ModeBasic
	}
	return &Pipeline{
		strategy:   strategy,
		normalizer: normalizer.New(normOpts),
		layout:     layout.New(layout.DefaultOptions()),
		detector:   detector.New(mode, workers),
		answers:    answer.New(),
		validator:  validation.New(),
	}
}

// Run executes normalize, resolve grid, detect, resolve answers and
// validate in order. The context deadline is checked at every stage
// boundary; an expired deadline surfaces as a processing timeout rather
// than a half-finished result.
func (p *Pipeline) Run(ctx context.Context, img image.Image, opts models.ProcessingOptions) (*models.SheetResult, error) {
	if err := stageDeadline(ctx, "normalize"); err != nil {
		return nil, err
	}
	norm, err := p.normalizer.Normalize(img)
	if err != nil {
		return nil, err
	}

	if err := stageDeadline(ctx, "layout"); err != nil {
		return nil, err
	}
	grid, err := p.layout.Resolve(norm.Gray)
	if err != nil {
		return nil, err
	}

	if err := stageDeadline(ctx, "detect"); err != nil {
		return nil, err
	}
	signals := p.detector.Detect(norm.Gray, grid)

	if err := stageDeadline(ctx, "resolve"); err != nil {
		return nil, err
	}
	results := p.answers.Resolve(signals, opts)

	if err := stageDeadline(ctx, "validate"); err != nil {
		return nil, err
	}
	verdict := p.validator.Validate(validation.Input{Results: results, Meta: norm.Meta})

	sheet := &models.SheetResult{
		Results:       results,
		Verdict:       verdict,
		Normalization: norm.Meta,
		StudentID:     detector.ReadStudentID(norm.Gray),
		Strategy:      string(p.strategy),
		Timestamp:     time.Now().UTC(),
	}
	if opts.ReturnDebugInfo {
		sheet.DebugSignals = detector.Flatten(signals)
	}
	return sheet, nil
}

func stageDeadline(ctx context.Context, stage string) error {
	select {
	case <-ctx.Done():
		return apperrors.NewTimeoutError("processing deadline exceeded before "+stage+" stage", ctx.Err())
	default:
		return nil
	}
}
