package answer

import (
	"github.com/Risbinrh/OMR-Service/internal/detector"
	"github.com/Risbinrh/OMR-Service/pkg/models"
)

// ambiguousPenalty discounts the confidence of answers picked under the
// lenient policy when competing marks were present.
const ambiguousPenalty = 0.7

// Resolver turns fused cell signals into per-question answers. Resolution
// is a pure function of the signals and options: the same inputs always
// produce the same answers.
type Resolver struct{}

func New() *Resolver {
	return &Resolver{}
}

// Resolve applies the marking policy to every question.
//
// A cell counts as marked when its combined score reaches the mark
// threshold. With no marked cell the question is unanswered and the
// confidence expresses how clearly blank it is. A question is
// multiple-marked only when a second cell also clears the threshold AND
// sits within the ambiguity margin of the top one; a marked cell that
// leads every rival by at least the margin wins outright. Multiple-marked
// questions follow the policy: strict mode rejects the question, lenient
// mode keeps the strongest mark at reduced confidence.
func (r *Resolver) Resolve(signals []detector.QuestionSignals, opts models.ProcessingOptions) []models.QuestionResult {
	results := make([]models.QuestionResult, 0, len(signals))
	threshold := opts.MarkThreshold()
	margin := opts.AmbiguityMargin()

	for _, q := range signals {
		results = append(results, resolveQuestion(q, threshold, margin, opts.StrictMode))
	}
	return results
}

func resolveQuestion(q detector.QuestionSignals, threshold, margin float64, strict bool) models.QuestionResult {
	result := models.QuestionResult{
		QuestionNumber: q.Number,
		OptionScores:   make(map[models.Option]float64, len(q.Cells)),
	}

	topIdx, secondScore := -1, 0.0
	marked := 0
	for i, cell := range q.Cells {
		result.OptionScores[cell.Option] = cell.CombinedScore
		if cell.CombinedScore >= threshold {
			marked++
		}
		// Strictly greater keeps the earliest option on exact ties.
		if topIdx < 0 || cell.CombinedScore > q.Cells[topIdx].CombinedScore {
			if topIdx >= 0 {
				secondScore = q.Cells[topIdx].CombinedScore
			}
			topIdx = i
		} else if cell.CombinedScore > secondScore {
			secondScore = cell.CombinedScore
		}
	}
	if topIdx < 0 {
		result.Confidence = 1
		return result
	}
	top := q.Cells[topIdx]

	if marked == 0 {
		result.Confidence = 1 - top.CombinedScore
		return result
	}

	ambiguous := secondScore >= threshold && top.CombinedScore-secondScore < margin
	if !ambiguous {
		result.ChosenOption = top.Option
		result.Confidence = top.CombinedScore
		return result
	}

	result.IsMultipleMarked = true
	if strict {
		result.Confidence = top.CombinedScore - secondScore
		if result.Confidence < 0 {
			result.Confidence = 0
		}
		return result
	}

	result.ChosenOption = top.Option
	result.Confidence = top.CombinedScore * ambiguousPenalty
	return result
}
