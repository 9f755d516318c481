package validation

import (
	"gonum.org/v1/gonum/stat"

	"github.com/Risbinrh/OMR-Service/internal/imgproc"
	"github.com/Risbinrh/OMR-Service/pkg/models"
)

const anomalyZScore = 2.5

// anomalyReport lists questions whose confidence is a statistical outlier
// against the rest of the sheet, plus the sub-score derived from the
// outlier and multiple-mark rates.
type anomalyReport struct {
	score     float64
	questions []int
	flags     []string
	warnings  []string
}

// detectAnomalies finds per-question confidence outliers by z-score. A
// handful of outliers on a big sheet is normal wear; many outliers or an
// excessive multiple-mark rate drags the score down.
func detectAnomalies(results []models.QuestionResult) anomalyReport {
	report := anomalyReport{score: 1}
	if len(results) < 5 {
		return report
	}

	confidences := make([]float64, len(results))
	multiMarked := 0
	for i, r := range results {
		confidences[i] = r.Confidence
		if r.IsMultipleMarked {
			multiMarked++
		}
	}

	mean := stat.Mean(confidences, nil)
	std := stat.StdDev(confidences, nil)
	if std > 0.01 {
		for i, r := range results {
			z := (confidences[i] - mean) / std
			if z < -anomalyZScore || z > anomalyZScore {
				report.questions = append(report.questions, r.QuestionNumber)
			}
		}
	}

	outlierFrac := float64(len(report.questions)) / float64(len(results))
	multiFrac := float64(multiMarked) / float64(len(results))

	report.score = imgproc.Clamp01(1 - outlierFrac*5)
	if multiFrac > 0.1 {
		report.score = imgproc.Clamp01(report.score - (multiFrac-0.1)*2)
	}
	if multiFrac > 0.3 {
		report.flags = append(report.flags, models.FlagManyMultipleMarks)
		report.warnings = append(report.warnings, "unusually many questions carry multiple marks")
	}
	return report
}
