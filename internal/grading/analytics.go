package grading

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/Risbinrh/OMR-Service/pkg/models"
)

// sectionSize groups questions into 25-question sections for the
// per-section breakdown.
const sectionSize = 25

// Analytics summarises a graded sheet: attempt and accuracy rates, the
// answer distribution and section-by-section performance.
func Analytics(details []models.QuestionDetail) *models.GradingAnalytics {
	if len(details) == 0 {
		return nil
	}

	analytics := &models.GradingAnalytics{
		TotalQuestions:     len(details),
		AnswerDistribution: make(map[models.Option]int),
	}

	var confidences []float64
	correct := 0
	for _, d := range details {
		if d.StudentAnswer != "" {
			analytics.AttemptedQuestions++
			analytics.AnswerDistribution[d.StudentAnswer]++
		}
		if d.IsCorrect {
			correct++
		}
		confidences = append(confidences, d.Confidence)
	}
	if analytics.AttemptedQuestions > 0 {
		analytics.AccuracyRate = float64(correct) / float64(analytics.AttemptedQuestions) * 100
	}
	analytics.AverageConfidence = stat.Mean(confidences, nil)
	analytics.SectionPerformance = sectionBreakdown(details)
	return analytics
}

func sectionBreakdown(details []models.QuestionDetail) []models.SectionPerformance {
	var sections []models.SectionPerformance
	for start := 0; start < len(details); start += sectionSize {
		end := start + sectionSize
		if end > len(details) {
			end = len(details)
		}
		chunk := details[start:end]

		correct := 0
		for _, d := range chunk {
			if d.IsCorrect {
				correct++
			}
		}
		sections = append(sections, models.SectionPerformance{
			Section:    start/sectionSize + 1,
			Questions:  fmt.Sprintf("%d-%d", chunk[0].QuestionNumber, chunk[len(chunk)-1].QuestionNumber),
			Correct:    correct,
			Total:      len(chunk),
			Percentage: float64(correct) / float64(len(chunk)) * 100,
		})
	}
	return sections
}
