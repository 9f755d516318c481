package fallback

import (
	"context"
	"image"

	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
	"github.com/Risbinrh/OMR-Service/internal/logger"
	"github.com/Risbinrh/OMR-Service/pkg/models"
)

// State of the fallback state machine. Transitions are one-way:
// advanced_attempt -> basic_attempt -> failed. There is never more than
// one degraded retry.
type State string

const (
	StateAdvancedAttempt State = "advanced_attempt"
	StateBasicAttempt    State = "basic_attempt"
	StateFailed          State = "failed"
)

// Runner is one strategy's full detection pipeline.
type Runner interface {
	Run(ctx context.Context, img image.Image, opts models.ProcessingOptions) (*models.SheetResult, error)
}

// Attempt records one state machine step for the response metadata.
type Attempt struct {
	State  State                `json:"state"`
	Error  string               `json:"error,omitempty"`
	Action models.VerdictAction `json:"action,omitempty"`
}

// Outcome is the controller's final result: the sheet that won, plus the
// attempt trace. Degraded is set when the basic strategy produced the
// returned sheet.
type Outcome struct {
	Sheet    *models.SheetResult
	Attempts []Attempt
	Degraded bool
}

// Controller drives the strategy state machine around the two pipelines.
type Controller struct {
	advanced Runner
	basic    Runner
}

func New(advanced, basic Runner) *Controller {
	return &Controller{advanced: advanced, basic: basic}
}

// Process tries the advanced strategy and degrades to the basic one on
// recoverable detection failures, or optionally when the advanced result
// was rejected by validation and the caller opted into a retry. Timeouts
// and caller errors are never retried. When both attempts produce a
// sheet, the higher validation score wins.
func (c *Controller) Process(ctx context.Context, img image.Image, opts models.ProcessingOptions) (*Outcome, error) {
	log := logger.WithStage("fallback")
	outcome := &Outcome{}

	sheet, err := c.advanced.Run(ctx, img, opts)
	if err != nil {
		outcome.Attempts = append(outcome.Attempts, Attempt{State: StateAdvancedAttempt, Error: err.Error()})
		if !retryable(err) {
			return outcome, err
		}
		log.WithError(err).Warn("advanced strategy failed, degrading to basic")
		return c.runBasic(ctx, img, opts, outcome, err)
	}

	outcome.Attempts = append(outcome.Attempts, Attempt{State: StateAdvancedAttempt, Action: sheet.Verdict.Action})
	outcome.Sheet = sheet

	if sheet.Verdict.Action == models.ActionReject && opts.RetryOnReject {
		log.WithField("validation_score", sheet.Verdict.ValidationScore).
			Info("advanced result rejected, retrying with basic strategy")
		retried, rerr := c.runBasic(ctx, img, opts, outcome, nil)
		if rerr == nil && retried.Sheet != nil &&
			retried.Sheet.Verdict.ValidationScore > sheet.Verdict.ValidationScore {
			return retried, nil
		}
		// Keep the advanced result when the retry did not improve on it.
		outcome.Sheet = sheet
		outcome.Degraded = false
	}
	return outcome, nil
}

func (c *Controller) runBasic(ctx context.Context, img image.Image, opts models.ProcessingOptions, outcome *Outcome, prior error) (*Outcome, error) {
	select {
	case <-ctx.Done():
		outcome.Attempts = append(outcome.Attempts, Attempt{State: StateFailed, Error: ctx.Err().Error()})
		return outcome, apperrors.NewTimeoutError("deadline exceeded before degraded retry", ctx.Err())
	default:
	}

	sheet, err := c.basic.Run(ctx, img, opts)
	if err != nil {
		outcome.Attempts = append(outcome.Attempts, Attempt{State: StateBasicAttempt, Error: err.Error()})
		if prior != nil {
			// Both strategies failed; report the advanced failure, it is
			// the more informative one.
			outcome.Attempts = append(outcome.Attempts, Attempt{State: StateFailed})
			return outcome, prior
		}
		return outcome, err
	}

	outcome.Attempts = append(outcome.Attempts, Attempt{State: StateBasicAttempt, Action: sheet.Verdict.Action})
	outcome.Sheet = sheet
	outcome.Degraded = true
	return outcome, nil
}

// retryable reports whether a degraded attempt could plausibly succeed
// where the advanced one failed. Timeouts, bad requests and infrastructure
// failures are not detection problems and propagate immediately.
func retryable(err error) bool {
	switch {
	case apperrors.IsCode(err, apperrors.CodeTemplateNotFound),
		apperrors.IsCode(err, apperrors.CodeBubbleDetection),
		apperrors.IsCode(err, apperrors.CodePoorQuality):
		return true
	default:
		return false
	}
}
