package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
	"github.com/Risbinrh/OMR-Service/internal/sheettest"
	"github.com/Risbinrh/OMR-Service/pkg/models"
)

func TestRunFullSheet(t *testing.T) {
	spec := sheettest.DefaultSpec()
	spec.MarkAll()
	sheet := sheettest.Render(spec)

	p := New(StrategyAdvanced, 4)
	result, err := p.Run(context.Background(), sheet, models.DefaultProcessingOptions())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Results) != spec.TotalQuestions() {
		t.Fatalf("resolved %d questions, want %d", len(result.Results), spec.TotalQuestions())
	}
	if result.Strategy != string(StrategyAdvanced) {
		t.Errorf("strategy = %q, want advanced", result.Strategy)
	}
	if result.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}

	correct := 0
	for _, r := range result.Results {
		want := models.OptionLabels[(r.QuestionNumber-1)%spec.Options]
		if r.ChosenOption == want {
			correct++
		}
	}
	// Every question carries exactly one clean mark; near-perfect
	// recovery is expected on a synthetic sheet.
	if correct < spec.TotalQuestions()*95/100 {
		t.Errorf("recovered %d of %d answers", correct, spec.TotalQuestions())
	}

	if result.Verdict.Action != models.ActionAccept {
		t.Errorf("verdict = %q (score %f, flags %v), want accept",
			result.Verdict.Action, result.Verdict.ValidationScore, result.Verdict.SuspicionFlags)
	}
}

func TestRunQuarterTurnedSheet(t *testing.T) {
	spec := sheettest.DefaultSpec()
	spec.MarkAll()
	sheet := imaging.Rotate90(sheettest.Render(spec))

	p := New(StrategyAdvanced, 4)
	result, err := p.Run(context.Background(), sheet, models.DefaultProcessingOptions())
	if err != nil {
		t.Fatalf("Run failed on a sideways photograph: %v", err)
	}

	correct := 0
	for _, r := range result.Results {
		if r.ChosenOption == models.OptionLabels[(r.QuestionNumber-1)%spec.Options] {
			correct++
		}
	}
	if correct < spec.TotalQuestions()*95/100 {
		t.Errorf("recovered %d of %d answers", correct, spec.TotalQuestions())
	}
}

func TestRunBasicStrategy(t *testing.T) {
	spec := sheettest.DefaultSpec()
	spec.MarkAll()
	sheet := sheettest.Render(spec)

	p := New(StrategyBasic, 2)
	result, err := p.Run(context.Background(), sheet, models.DefaultProcessingOptions())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Strategy != string(StrategyBasic) {
		t.Errorf("strategy = %q, want basic", result.Strategy)
	}
	if len(result.Results) != spec.TotalQuestions() {
		t.Errorf("resolved %d questions, want %d", len(result.Results), spec.TotalQuestions())
	}
}

func TestRunDebugSignals(t *testing.T) {
	spec := sheettest.DefaultSpec()
	spec.MarkAll()
	sheet := sheettest.Render(spec)

	opts := models.DefaultProcessingOptions()
	opts.ReturnDebugInfo = true
	result, err := New(StrategyAdvanced, 2).Run(context.Background(), sheet, opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.DebugSignals) != spec.TotalQuestions()*spec.Options {
		t.Errorf("debug signals = %d, want %d", len(result.DebugSignals), spec.TotalQuestions()*spec.Options)
	}

	result, err = New(StrategyAdvanced, 2).Run(context.Background(), sheet, models.DefaultProcessingOptions())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.DebugSignals) != 0 {
		t.Error("debug signals should be omitted unless requested")
	}
}

func TestRunExpiredDeadline(t *testing.T) {
	spec := sheettest.DefaultSpec()
	sheet := sheettest.Render(spec)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := New(StrategyAdvanced, 2).Run(ctx, sheet, models.DefaultProcessingOptions())
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !apperrors.IsCode(err, apperrors.CodeProcessingTimeout) {
		t.Errorf("error = %v, want processing timeout", err)
	}
}
