package models

import "time"

// Option identifies a single answer choice on the sheet ("A".."E").
type Option = string

// Options in column order for a 5-option sheet. Sheets with 4 options use
// the first four labels.
var OptionLabels = []Option{"A", "B", "C", "D", "E"}

// CellSignal carries the five independent fill estimates for one
// (question, option) cell plus their weighted fusion. Every component is
// bounded to [0,1] and computed from a disjoint detection strategy.
type CellSignal struct {
	QuestionNumber int     `json:"question_number"`
	Option         Option  `json:"option"`
	FillRatio      float64 `json:"fill_ratio"`
	IntensityScore float64 `json:"intensity_score"`
	EdgeScore      float64 `json:"edge_score"`
	TemplateScore  float64 `json:"template_score"`
	ContourScore   float64 `json:"contour_score"`
	CombinedScore  float64 `json:"combined_score"`
}

// QuestionResult is the resolved answer for one question.
// ChosenOption is empty when the question is unanswered, or when multiple
// marks were rejected under strict mode.
type QuestionResult struct {
	QuestionNumber   int                `json:"question_number"`
	ChosenOption     Option             `json:"chosen_option,omitempty"`
	IsMultipleMarked bool               `json:"is_multiple_marked"`
	Confidence       float64            `json:"confidence"`
	OptionScores     map[Option]float64 `json:"option_scores,omitempty"`
}

// Answered reports whether an option was selected for this question.
func (q QuestionResult) Answered() bool {
	return q.ChosenOption != ""
}

// VerdictAction is the recommendation attached to a ValidationVerdict.
type VerdictAction string

const (
	ActionAccept            VerdictAction = "accept"
	ActionReviewRecommended VerdictAction = "review_recommended"
	ActionManualReview      VerdictAction = "manual_review"
	ActionReject            VerdictAction = "reject"
)

// Suspicion flags raised by the validation engine.
const (
	FlagDominantOption     = "dominant_option"
	FlagLongRun            = "long_same_answer_run"
	FlagAlternatingPattern = "alternating_pattern"
	FlagNonUniform         = "non_uniform_distribution"
	FlagFullAnswerRate     = "implausible_full_answer_rate"
	FlagLowConfidence      = "low_mean_confidence"
	FlagQualityMismatch    = "confidence_quality_mismatch"
	FlagSpatialScatter     = "scattered_low_confidence"
	FlagManyMultipleMarks  = "excessive_multiple_marks"
	FlagHeaderMismatch     = "exam_header_mismatch"
)

// ValidationVerdict is the trust assessment over a full sheet of resolved
// answers. It is derived once and never mutated.
type ValidationVerdict struct {
	ValidationScore    float64       `json:"validation_score"`
	Action             VerdictAction `json:"action"`
	SuspicionFlags     []string      `json:"suspicion_flags,omitempty"`
	MeanConfidence     float64       `json:"mean_confidence"`
	AnomalousQuestions []int         `json:"anomalous_questions,omitempty"`
	Warnings           []string      `json:"warnings,omitempty"`
	SubScores          SubScores     `json:"sub_scores"`
}

// SubScores are the independent validation components before weighting.
type SubScores struct {
	Confidence         float64 `json:"confidence"`
	PatternValidity    float64 `json:"pattern_validity"`
	QualityCorrelation float64 `json:"quality_correlation"`
	SpatialConsistency float64 `json:"spatial_consistency"`
	Anomaly            float64 `json:"anomaly"`
}

// QualityMetrics are the normalizer's measurements of the corrected image.
type QualityMetrics struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	NoiseLevel float64 `json:"noise_level"`
}

// NormalizationMeta describes the geometric corrections applied to the
// input photograph.
type NormalizationMeta struct {
	SkewAngleDegrees     float64        `json:"skew_angle_degrees"`
	PerspectiveCorrected bool           `json:"perspective_corrected"`
	RotationCorrected    bool           `json:"rotation_corrected"`
	CornersDetected      int            `json:"corners_detected"`
	Quality              QualityMetrics `json:"quality"`
	ImageQuality         string         `json:"image_quality"`
	BrightnessLabel      string         `json:"brightness_level"`
	ContrastLabel        string         `json:"contrast_level"`
	ResolutionLabel      string         `json:"resolution"`
}

// SheetResult is the full detection outcome for one sheet: resolved answers,
// trust verdict and normalization metadata. DebugSignals is populated only
// when the caller requested debug info.
type SheetResult struct {
	Results       []QuestionResult  `json:"results"`
	Verdict       ValidationVerdict `json:"verdict"`
	Normalization NormalizationMeta `json:"normalization"`
	StudentID     string            `json:"student_id,omitempty"`
	Strategy      string            `json:"strategy"`
	Timestamp     time.Time         `json:"timestamp"`
	DebugSignals  []CellSignal      `json:"debug_signals,omitempty"`
}
