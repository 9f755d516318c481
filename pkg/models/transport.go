package models

// ProcessingOptions is the caller-supplied per-request policy. It travels
// through every pipeline stage explicitly; stages never consult ambient
// configuration.
type ProcessingOptions struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	StrictMode          bool    `json:"strict_mode"`
	ReturnDebugInfo     bool    `json:"return_debug_info"`
	RetryOnReject       bool    `json:"retry_on_reject"`
}

// DefaultProcessingOptions returns the documented defaults.
func DefaultProcessingOptions() ProcessingOptions {
	return ProcessingOptions{
		ConfidenceThreshold: 0.8,
		StrictMode:          true,
		ReturnDebugInfo:     false,
		RetryOnReject:       false,
	}
}

// MarkThreshold derives τ_mark from the configured confidence threshold.
// A cell scoring below this is treated as unmarked.
func (o ProcessingOptions) MarkThreshold() float64 {
	return o.ConfidenceThreshold * 0.5
}

// AmbiguityMargin derives δ: two cells above τ_mark whose scores differ by
// less than this margin constitute a multiple mark.
func (o ProcessingOptions) AmbiguityMargin() float64 {
	return 0.2
}

// RequestOptions is the wire form of ProcessingOptions. Fields are
// pointers so an omitted field keeps its default rather than zeroing it;
// in particular strict_mode stays on unless the caller turns it off.
type RequestOptions struct {
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	StrictMode          *bool    `json:"strict_mode,omitempty"`
	ReturnDebugInfo     *bool    `json:"return_debug_info,omitempty"`
	RetryOnReject       *bool    `json:"retry_on_reject,omitempty"`
}

// Merge overlays the supplied fields onto the defaults.
func (o *RequestOptions) Merge() ProcessingOptions {
	resolved := DefaultProcessingOptions()
	if o == nil {
		return resolved
	}
	if o.ConfidenceThreshold != nil {
		resolved.ConfidenceThreshold = *o.ConfidenceThreshold
	}
	if o.StrictMode != nil {
		resolved.StrictMode = *o.StrictMode
	}
	if o.ReturnDebugInfo != nil {
		resolved.ReturnDebugInfo = *o.ReturnDebugInfo
	}
	if o.RetryOnReject != nil {
		resolved.RetryOnReject = *o.RetryOnReject
	}
	return resolved
}

// ExamMetadata identifies the exam a sheet belongs to.
type ExamMetadata struct {
	ExamID         string `json:"exam_id"`
	Subject        string `json:"subject,omitempty"`
	ExamDate       string `json:"exam_date,omitempty"`
	TotalQuestions int    `json:"total_questions,omitempty"`
}

// EvaluationRequest is the transport payload for a single-sheet evaluation.
// AnswerKey uses string question numbers for JSON friendliness; it is
// validated and converted before reaching the grading engine.
type EvaluationRequest struct {
	ImageURL      string            `json:"image_url" binding:"required,url"`
	AnswerKey     map[string]string `json:"answer_key" binding:"required"`
	ExamMetadata  ExamMetadata      `json:"exam_metadata"`
	ScoringScheme *ScoringScheme    `json:"scoring_scheme,omitempty"`
	Options       *RequestOptions   `json:"options,omitempty"`
}

// EvaluationResult pairs detection output with its grade.
type EvaluationResult struct {
	Sheet           SheetResult       `json:"sheet"`
	Scoring         ScoringResult     `json:"scoring"`
	QuestionDetails []QuestionDetail  `json:"question_details"`
	Analytics       *GradingAnalytics `json:"analytics,omitempty"`
}

// ErrorBody is the structured failure payload.
type ErrorBody struct {
	Code             string   `json:"code"`
	Message          string   `json:"message"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
}

// EvaluationResponse is the top-level transport envelope.
type EvaluationResponse struct {
	RequestID        string            `json:"request_id"`
	Status           string            `json:"status"`
	ProcessingTimeMS int64             `json:"processing_time_ms"`
	Results          *EvaluationResult `json:"results,omitempty"`
	Error            *ErrorBody        `json:"error,omitempty"`
}

// BatchEvaluationRequest evaluates several sheets against their own
// answer keys in one call.
type BatchEvaluationRequest struct {
	Sheets []EvaluationRequest `json:"sheets" binding:"required,min=1,dive"`
}

// BatchEvaluationResponse carries one envelope per submitted sheet, in
// submission order.
type BatchEvaluationResponse struct {
	BatchID string               `json:"batch_id"`
	Results []EvaluationResponse `json:"results"`
}
