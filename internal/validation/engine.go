package validation

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/Risbinrh/OMR-Service/internal/imgproc"
	"github.com/Risbinrh/OMR-Service/internal/logger"
	"github.com/Risbinrh/OMR-Service/pkg/models"
)

// Sub-score weights. ValidationScore = 0.30*confidence + 0.20*pattern +
// 0.20*quality correlation + 0.15*spatial + 0.15*anomaly.
const (
	weightConfidence  = 0.30
	weightPattern     = 0.20
	weightQualityCorr = 0.20
	weightSpatial     = 0.15
	weightAnomaly     = 0.15
)

// Action thresholds on the weighted score.
const (
	acceptAbove       = 0.80
	reviewAbove       = 0.60
	manualReviewAbove = 0.40
)

const lowConfidence = 0.5

// Input is everything the engine inspects: the resolved answers and the
// normalization metadata of the image they came from.
type Input struct {
	Results []models.QuestionResult
	Meta    models.NormalizationMeta
}

// Engine derives a trust verdict over a fully resolved sheet. It never
// mutates its input and holds no state between sheets.
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

// Validate computes the five sub-scores, fuses them and maps the result
// to an action. Severe pattern findings cap the action at manual review
// even when the weighted score alone would accept the sheet.
func (e *Engine) Validate(in Input) models.ValidationVerdict {
	verdict := models.ValidationVerdict{Action: models.ActionReject}
	if len(in.Results) == 0 {
		verdict.Warnings = append(verdict.Warnings, "no questions resolved")
		return verdict
	}

	verdict.MeanConfidence = meanAnsweredConfidence(in.Results)

	confScore := verdict.MeanConfidence
	if confScore < lowConfidence+0.05 {
		verdict.SuspicionFlags = append(verdict.SuspicionFlags, models.FlagLowConfidence)
		verdict.Warnings = append(verdict.Warnings, "mean detection confidence is low")
	}

	pattern := analyzePattern(in.Results, verdict.MeanConfidence)
	verdict.SuspicionFlags = append(verdict.SuspicionFlags, pattern.flags...)
	verdict.Warnings = append(verdict.Warnings, pattern.warnings...)

	qualityScore, qualityFlagged := qualityCorrelation(verdict.MeanConfidence, in.Meta.ImageQuality)
	if qualityFlagged {
		verdict.SuspicionFlags = append(verdict.SuspicionFlags, models.FlagQualityMismatch)
		verdict.Warnings = append(verdict.Warnings,
			"detection confidence does not match measured image quality")
	}

	spatialScore, spatialFlagged := spatialConsistency(in.Results, in.Meta.ImageQuality)
	if spatialFlagged {
		verdict.SuspicionFlags = append(verdict.SuspicionFlags, models.FlagSpatialScatter)
		verdict.Warnings = append(verdict.Warnings,
			"low-confidence questions are scattered across the sheet")
	}

	anomalies := detectAnomalies(in.Results)
	verdict.AnomalousQuestions = anomalies.questions
	verdict.SuspicionFlags = append(verdict.SuspicionFlags, anomalies.flags...)
	verdict.Warnings = append(verdict.Warnings, anomalies.warnings...)

	verdict.SubScores = models.SubScores{
		Confidence:         confScore,
		PatternValidity:    pattern.score,
		QualityCorrelation: qualityScore,
		SpatialConsistency: spatialScore,
		Anomaly:            anomalies.score,
	}
	verdict.ValidationScore = weightConfidence*confScore +
		weightPattern*pattern.score +
		weightQualityCorr*qualityScore +
		weightSpatial*spatialScore +
		weightAnomaly*anomalies.score

	verdict.Action = actionFor(verdict.ValidationScore)
	if pattern.severe && (verdict.Action == models.ActionAccept || verdict.Action == models.ActionReviewRecommended) {
		verdict.Action = models.ActionManualReview
	}

	logger.WithStage("validation").WithFields(map[string]interface{}{
		"validation_score": verdict.ValidationScore,
		"action":           string(verdict.Action),
		"flags":            len(verdict.SuspicionFlags),
	}).Debug("verdict computed")

	return verdict
}

func actionFor(score float64) models.VerdictAction {
	switch {
	case score >= acceptAbove:
		return models.ActionAccept
	case score >= reviewAbove:
		return models.ActionReviewRecommended
	case score >= manualReviewAbove:
		return models.ActionManualReview
	default:
		return models.ActionReject
	}
}

// meanAnsweredConfidence averages confidence over answered questions,
// falling back to all questions on a blank sheet.
func meanAnsweredConfidence(results []models.QuestionResult) float64 {
	var vals []float64
	for _, r := range results {
		if r.Answered() {
			vals = append(vals, r.Confidence)
		}
	}
	if len(vals) == 0 {
		for _, r := range results {
			vals = append(vals, r.Confidence)
		}
	}
	return stat.Mean(vals, nil)
}

// expectedConfidenceByQuality is what a well-behaved detection run
// typically yields at each measured quality grade.
var expectedConfidenceByQuality = map[string]float64{
	"excellent": 0.85,
	"good":      0.75,
	"adequate":  0.60,
	"poor":      0.45,
}

// qualityCorrelation scores agreement between detection confidence and
// image quality. Both directions of mismatch are suspicious: sharp
// confidence from a poor photo suggests a detection artifact, mud from a
// pristine scan suggests the sheet itself is off.
func qualityCorrelation(meanConfidence float64, quality string) (float64, bool) {
	expected, ok := expectedConfidenceByQuality[quality]
	if !ok {
		expected = 0.6
	}
	diff := math.Abs(meanConfidence - expected)
	score := 1 - imgproc.Clamp01((diff-0.15)*2)
	return score, diff > 0.3
}

// spatialConsistency checks where the low-confidence questions sit. On a
// poor image they should cluster around the physical defect; scattered
// low confidence on a decent image points at unreliable detection.
func spatialConsistency(results []models.QuestionResult, quality string) (float64, bool) {
	lowSet := map[int]bool{}
	for _, r := range results {
		if r.Confidence < lowConfidence {
			lowSet[r.QuestionNumber] = true
		}
	}
	if len(lowSet) == 0 {
		return 1, false
	}

	adjacent := 0
	for n := range lowSet {
		if lowSet[n-1] || lowSet[n+1] {
			adjacent++
		}
	}
	clusterRatio := float64(adjacent) / float64(len(lowSet))
	lowFrac := float64(len(lowSet)) / float64(len(results))

	score := 1 - lowFrac
	if quality == "poor" && clusterRatio > 0.5 {
		// Clustered damage on a bad photo is the expected failure shape.
		score = math.Min(1, score+0.2)
	}

	flagged := len(lowSet) >= 5 && clusterRatio < 0.3 && quality != "poor"
	if flagged {
		score = imgproc.Clamp01(score - 0.2)
	}
	score = imgproc.Clamp01(score - sectionSpreadPenalty(results))
	return imgproc.Clamp01(score), flagged
}

const sectionSize = 25

// sectionSpreadPenalty compares 25-question sections against each other.
// A sheet whose sections disagree sharply on mean confidence or answer
// rate was read unevenly, which a quality label alone does not show.
func sectionSpreadPenalty(results []models.QuestionResult) float64 {
	if len(results) < 2*sectionSize {
		return 0
	}
	var confMeans, answerRates []float64
	for start := 0; start+sectionSize <= len(results); start += sectionSize {
		section := results[start : start+sectionSize]
		var confSum, answered float64
		for _, r := range section {
			confSum += r.Confidence
			if r.Answered() {
				answered++
			}
		}
		confMeans = append(confMeans, confSum/sectionSize)
		answerRates = append(answerRates, answered/sectionSize)
	}
	penalty := 0.0
	if stat.StdDev(confMeans, nil) > 0.15 {
		penalty += 0.1
	}
	if stat.StdDev(answerRates, nil) > 0.3 {
		penalty += 0.1
	}
	return penalty
}
