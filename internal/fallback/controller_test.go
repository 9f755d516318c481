package fallback

import (
	"context"
	"image"
	"testing"
	"time"

	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
	"github.com/Risbinrh/OMR-Service/pkg/models"
)

type stubRunner struct {
	sheet *models.SheetResult
	err   error
	calls int
}

func (s *stubRunner) Run(ctx context.Context, img image.Image, opts models.ProcessingOptions) (*models.SheetResult, error) {
	s.calls++
	return s.sheet, s.err
}

func sheetWith(action models.VerdictAction, score float64) *models.SheetResult {
	return &models.SheetResult{
		Verdict: models.ValidationVerdict{Action: action, ValidationScore: score},
	}
}

func testImage() image.Image {
	return image.NewGray(image.Rect(0, 0, 10, 10))
}

func TestProcessAdvancedSucceeds(t *testing.T) {
	advanced := &stubRunner{sheet: sheetWith(models.ActionAccept, 0.9)}
	basic := &stubRunner{sheet: sheetWith(models.ActionAccept, 0.5)}

	outcome, err := New(advanced, basic).Process(context.Background(), testImage(), models.DefaultProcessingOptions())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if basic.calls != 0 {
		t.Error("basic strategy should not run when advanced succeeds")
	}
	if outcome.Degraded {
		t.Error("outcome should not be degraded")
	}
	if len(outcome.Attempts) != 1 || outcome.Attempts[0].State != StateAdvancedAttempt {
		t.Errorf("attempts = %+v, want single advanced attempt", outcome.Attempts)
	}
}

func TestProcessDegradesOnTemplateNotFound(t *testing.T) {
	advanced := &stubRunner{err: apperrors.NewTemplateNotFoundError("located 2 of 4 corner markers", nil)}
	basic := &stubRunner{sheet: sheetWith(models.ActionReviewRecommended, 0.7)}

	outcome, err := New(advanced, basic).Process(context.Background(), testImage(), models.DefaultProcessingOptions())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !outcome.Degraded {
		t.Error("outcome should be degraded after fallback")
	}
	if basic.calls != 1 {
		t.Errorf("basic strategy ran %d times, want 1", basic.calls)
	}
	states := []State{StateAdvancedAttempt, StateBasicAttempt}
	if len(outcome.Attempts) != 2 {
		t.Fatalf("attempts = %+v, want 2", outcome.Attempts)
	}
	for i, want := range states {
		if outcome.Attempts[i].State != want {
			t.Errorf("attempt %d state = %q, want %q", i, outcome.Attempts[i].State, want)
		}
	}
}

func TestProcessTimeoutNotRetried(t *testing.T) {
	advanced := &stubRunner{err: apperrors.NewTimeoutError("stage deadline exceeded", nil)}
	basic := &stubRunner{}

	_, err := New(advanced, basic).Process(context.Background(), testImage(), models.DefaultProcessingOptions())
	if err == nil {
		t.Fatal("expected timeout to propagate")
	}
	if !apperrors.IsCode(err, apperrors.CodeProcessingTimeout) {
		t.Errorf("error code = %v, want timeout", err)
	}
	if basic.calls != 0 {
		t.Error("timeouts must not trigger the degraded retry")
	}
}

func TestProcessValidationErrorNotRetried(t *testing.T) {
	advanced := &stubRunner{err: apperrors.NewValidationError("unsupported or corrupt image payload", nil)}
	basic := &stubRunner{}

	_, err := New(advanced, basic).Process(context.Background(), testImage(), models.DefaultProcessingOptions())
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if basic.calls != 0 {
		t.Error("caller errors must not trigger the degraded retry")
	}
}

func TestProcessBothFailReportsAdvancedError(t *testing.T) {
	advErr := apperrors.NewBubbleDetectionError("no regular bubble grid found", nil)
	advanced := &stubRunner{err: advErr}
	basic := &stubRunner{err: apperrors.NewBubbleDetectionError("found only 3 bubble candidates", nil)}

	outcome, err := New(advanced, basic).Process(context.Background(), testImage(), models.DefaultProcessingOptions())
	if err != advErr {
		t.Errorf("got %v, want the advanced attempt's error", err)
	}
	last := outcome.Attempts[len(outcome.Attempts)-1]
	if last.State != StateFailed {
		t.Errorf("final state = %q, want %q", last.State, StateFailed)
	}
}

func TestProcessRetryOnRejectKeepsBetterResult(t *testing.T) {
	advanced := &stubRunner{sheet: sheetWith(models.ActionReject, 0.3)}
	basic := &stubRunner{sheet: sheetWith(models.ActionManualReview, 0.5)}

	opts := models.DefaultProcessingOptions()
	opts.RetryOnReject = true
	outcome, err := New(advanced, basic).Process(context.Background(), testImage(), opts)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !outcome.Degraded {
		t.Error("higher-scoring basic result should win")
	}
	if outcome.Sheet.Verdict.ValidationScore != 0.5 {
		t.Errorf("kept score %f, want 0.5", outcome.Sheet.Verdict.ValidationScore)
	}
}

func TestProcessRetryOnRejectKeepsAdvancedWhenRetryWorse(t *testing.T) {
	advanced := &stubRunner{sheet: sheetWith(models.ActionReject, 0.35)}
	basic := &stubRunner{sheet: sheetWith(models.ActionReject, 0.2)}

	opts := models.DefaultProcessingOptions()
	opts.RetryOnReject = true
	outcome, err := New(advanced, basic).Process(context.Background(), testImage(), opts)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if outcome.Degraded {
		t.Error("worse basic result must not replace the advanced one")
	}
	if outcome.Sheet.Verdict.ValidationScore != 0.35 {
		t.Errorf("kept score %f, want the advanced 0.35", outcome.Sheet.Verdict.ValidationScore)
	}
	if basic.calls != 1 {
		t.Errorf("basic ran %d times, want exactly 1", basic.calls)
	}
}

func TestProcessNoRetryOnRejectByDefault(t *testing.T) {
	advanced := &stubRunner{sheet: sheetWith(models.ActionReject, 0.3)}
	basic := &stubRunner{sheet: sheetWith(models.ActionAccept, 0.9)}

	outcome, err := New(advanced, basic).Process(context.Background(), testImage(), models.DefaultProcessingOptions())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if basic.calls != 0 {
		t.Error("rejected result should stand without the retry opt-in")
	}
	if outcome.Sheet.Verdict.Action != models.ActionReject {
		t.Errorf("action = %q, want the advanced reject", outcome.Sheet.Verdict.Action)
	}
}

func TestProcessCancelledContextBeforeRetry(t *testing.T) {
	advanced := &stubRunner{err: apperrors.NewImageQualityError("image too dark", nil)}
	basic := &stubRunner{sheet: sheetWith(models.ActionAccept, 0.9)}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := New(advanced, basic).Process(ctx, testImage(), models.DefaultProcessingOptions())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !apperrors.IsCode(err, apperrors.CodeProcessingTimeout) {
		t.Errorf("error = %v, want timeout code", err)
	}
	if basic.calls != 0 {
		t.Error("degraded retry must not run on an expired context")
	}
}
