package service

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
	"github.com/Risbinrh/OMR-Service/internal/fallback"
	"github.com/Risbinrh/OMR-Service/internal/grading"
	"github.com/Risbinrh/OMR-Service/internal/imgproc"
	"github.com/Risbinrh/OMR-Service/internal/logger"
	"github.com/Risbinrh/OMR-Service/internal/observer"
	"github.com/Risbinrh/OMR-Service/internal/ocr"
	"github.com/Risbinrh/OMR-Service/internal/repository"
	"github.com/Risbinrh/OMR-Service/pkg/models"
	"github.com/Risbinrh/OMR-Service/pkg/validation"
)

// EvaluationService orchestrates one sheet evaluation end to end: fetch,
// detect with fallback, optional header verification, grade. All state is
// request-scoped; a single service value serves concurrent requests.
type EvaluationService struct {
	repo              repository.SheetRepository
	controller        *fallback.Controller
	verifier          *ocr.Verifier
	events            observer.Subject
	processingTimeout time.Duration
	maxWorkers        int
}

func New(
	repo repository.SheetRepository,
	controller *fallback.Controller,
	verifier *ocr.Verifier,
	events observer.Subject,
	processingTimeout time.Duration,
	maxWorkers int,
) *EvaluationService {
	return &EvaluationService{
		repo:              repo,
		controller:        controller,
		verifier:          verifier,
		events:            events,
		processingTimeout: processingTimeout,
		maxWorkers:        maxWorkers,
	}
}

// Evaluate runs the full flow for one sheet. requestID identifies the
// request in logs and events; the caller supplies it so the transport
// envelope and the event stream agree.
func (s *EvaluationService) Evaluate(ctx context.Context, requestID string, req models.EvaluationRequest) (*models.EvaluationResult, error) {
	if err := s.repo.ValidateSheetURL(req.ImageURL); err != nil {
		return nil, err
	}
	key, keyErr := validation.ParseAnswerKey(req.AnswerKey)
	if keyErr != nil {
		return nil, keyErr
	}
	opts, err := resolveOptions(req.Options)
	if err != nil {
		return nil, err
	}

	s.events.Notify(ctx, observer.EvaluationEvent{
		EventType: observer.EvaluationStarted,
		RequestID: requestID,
		ImageURL:  req.ImageURL,
	})

	img, err := s.repo.FetchSheet(ctx, req.ImageURL)
	if err != nil {
		s.events.Notify(ctx, observer.EvaluationEvent{
			EventType:    observer.SheetFetchFailed,
			RequestID:    requestID,
			ImageURL:     req.ImageURL,
			ErrorMessage: err.Error(),
		})
		return nil, err
	}
	s.events.Notify(ctx, observer.EvaluationEvent{
		EventType: observer.SheetFetched,
		RequestID: requestID,
		ImageURL:  req.ImageURL,
		Success:   true,
	})

	procCtx, cancel := context.WithTimeout(ctx, s.processingTimeout)
	defer cancel()

	outcome, err := s.controller.Process(procCtx, img, opts)
	if err != nil {
		return nil, err
	}
	if outcome.Degraded {
		s.events.Notify(ctx, observer.EvaluationEvent{
			EventType: observer.FallbackTriggered,
			RequestID: requestID,
			Metadata:  map[string]interface{}{"attempts": len(outcome.Attempts)},
		})
	}
	sheet := outcome.Sheet

	s.verifyHeader(img, req.ExamMetadata, sheet)
	if req.ExamMetadata.TotalQuestions > 0 && req.ExamMetadata.TotalQuestions != len(sheet.Results) {
		sheet.Verdict.Warnings = append(sheet.Verdict.Warnings,
			fmt.Sprintf("detected %d questions but exam metadata declares %d",
				len(sheet.Results), req.ExamMetadata.TotalQuestions))
	}

	scheme := models.DefaultScoringScheme()
	if req.ScoringScheme != nil {
		scheme = *req.ScoringScheme
	}
	scoring, details := grading.New(scheme).Grade(sheet.Results, key)

	result := &models.EvaluationResult{
		Sheet:           *sheet,
		Scoring:         scoring,
		QuestionDetails: details,
	}
	if opts.ReturnDebugInfo {
		result.Analytics = grading.Analytics(details)
	}
	return result, nil
}

// EvaluateBatch processes sheets concurrently, bounded by the configured
// worker count. Per-sheet failures land in that sheet's envelope; one bad
// sheet never fails the batch.
func (s *EvaluationService) EvaluateBatch(ctx context.Context, req models.BatchEvaluationRequest) models.BatchEvaluationResponse {
	response := models.BatchEvaluationResponse{
		BatchID: uuid.New().String(),
		Results: make([]models.EvaluationResponse, len(req.Sheets)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)
	for i, sheetReq := range req.Sheets {
		g.Go(func() error {
			requestID := uuid.New().String()
			start := time.Now()
			result, err := s.Evaluate(gctx, requestID, sheetReq)
			response.Results[i] = s.BuildResponse(gctx, requestID, start, result, err)
			return nil
		})
	}
	// Workers never return errors; Wait only fences the goroutines.
	_ = g.Wait()
	return response
}

// BuildResponse assembles the transport envelope for one evaluation and
// emits the matching lifecycle event.
func (s *EvaluationService) BuildResponse(ctx context.Context, requestID string, start time.Time, result *models.EvaluationResult, err error) models.EvaluationResponse {
	elapsed := time.Since(start)
	resp := models.EvaluationResponse{
		RequestID:        requestID,
		ProcessingTimeMS: elapsed.Milliseconds(),
	}
	if err != nil {
		appErr := apperrors.AsAppError(err)
		resp.Status = "error"
		resp.Error = &models.ErrorBody{
			Code:             string(appErr.Code),
			Message:          appErr.Message,
			SuggestedActions: appErr.SuggestedActions,
		}
		s.events.Notify(ctx, observer.EvaluationEvent{
			EventType:      observer.EvaluationFailed,
			RequestID:      requestID,
			ProcessingTime: elapsed,
			ErrorMessage:   appErr.Message,
		})
		return resp
	}
	resp.Status = "success"
	resp.Results = result
	s.events.Notify(ctx, observer.EvaluationEvent{
		EventType:      observer.EvaluationCompleted,
		RequestID:      requestID,
		ProcessingTime: elapsed,
		Success:        true,
		Metadata: map[string]interface{}{
			"action":           string(result.Sheet.Verdict.Action),
			"validation_score": result.Sheet.Verdict.ValidationScore,
			"strategy":         result.Sheet.Strategy,
		},
	})
	return resp
}

// verifyHeader is advisory: OCR trouble never fails the evaluation, a
// header mismatch only flags the verdict for review.
func (s *EvaluationService) verifyHeader(img image.Image, meta models.ExamMetadata, sheet *models.SheetResult) {
	if s.verifier == nil || !s.verifier.Enabled() {
		return
	}
	check, err := s.verifier.VerifyHeader(imgproc.ToGray(img), meta)
	if err != nil {
		logger.WithStage("ocr").WithError(err).Warn("header verification skipped")
		return
	}
	if check != nil && !check.Matched {
		sheet.Verdict.SuspicionFlags = append(sheet.Verdict.SuspicionFlags, models.FlagHeaderMismatch)
		sheet.Verdict.Warnings = append(sheet.Verdict.Warnings,
			fmt.Sprintf("printed header does not match exam %s (similarity %.2f)",
				meta.ExamID, check.Similarity))
	}
}

func resolveOptions(opts *models.RequestOptions) (models.ProcessingOptions, error) {
	resolved := opts.Merge()
	if resolved.ConfidenceThreshold <= 0 || resolved.ConfidenceThreshold > 1 {
		return resolved, apperrors.NewValidationError(
			fmt.Sprintf("confidence_threshold %.2f outside (0, 1]", resolved.ConfidenceThreshold), nil)
	}
	return resolved, nil
}
