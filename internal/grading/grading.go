package grading

import (
	"github.com/Risbinrh/OMR-Service/pkg/models"
	"github.com/Risbinrh/OMR-Service/pkg/validation"
)

// Grader applies a scoring scheme to resolved answers. Detection is done
// by the time grading runs; this stage only compares and counts.
type Grader struct {
	scheme models.ScoringScheme
}

func New(scheme models.ScoringScheme) *Grader {
	return &Grader{scheme: scheme}
}

// Grade walks the answer key in question order and scores every keyed
// question. Questions the detector flagged as multiple-marked earn zero
// points regardless of the scheme and are counted as invalid marks. The
// total never goes below zero.
func (g *Grader) Grade(results []models.QuestionResult, key models.AnswerKey) (models.ScoringResult, []models.QuestionDetail) {
	byNumber := make(map[int]models.QuestionResult, len(results))
	for _, r := range results {
		byNumber[r.QuestionNumber] = r
	}

	scoring := models.ScoringResult{
		MaxPossibleScore: len(key) * g.scheme.Correct,
	}
	details := make([]models.QuestionDetail, 0, len(key))

	for _, number := range validation.SortedQuestions(key) {
		correct := key[number]
		result, detected := byNumber[number]

		detail := models.QuestionDetail{
			QuestionNumber: number,
			CorrectAnswer:  correct,
		}
		if detected {
			detail.Confidence = result.Confidence
			detail.IsMultipleMarked = result.IsMultipleMarked
			detail.StudentAnswer = result.ChosenOption
		}

		switch {
		case detected && result.IsMultipleMarked:
			scoring.InvalidMarks++
			detail.StudentAnswer = ""
		case !detected || !result.Answered():
			scoring.Unanswered++
			detail.PointsAwarded = g.scheme.Unanswered
		case result.ChosenOption == correct:
			scoring.CorrectAnswers++
			detail.PointsAwarded = g.scheme.Correct
			detail.IsCorrect = true
		default:
			scoring.IncorrectAnswers++
			detail.PointsAwarded = g.scheme.Incorrect
		}

		scoring.TotalScore += detail.PointsAwarded
		details = append(details, detail)
	}

	if scoring.TotalScore < 0 {
		scoring.TotalScore = 0
	}
	if scoring.MaxPossibleScore > 0 {
		scoring.Percentage = float64(scoring.TotalScore) / float64(scoring.MaxPossibleScore) * 100
	}
	return scoring, details
}
