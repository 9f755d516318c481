package validation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Risbinrh/OMR-Service/pkg/models"
)

// patternReport is the outcome of response-pattern analysis. severe marks
// patterns so implausible the final action must not stay above manual
// review regardless of the other sub-scores.
type patternReport struct {
	score         float64
	flags         []string
	warnings      []string
	dominantRatio float64
	severe        bool
}

const (
	dominantRatioThreshold = 0.85
	severeDominantRatio    = 0.90
	longRunMinor           = 5
	longRunMajor           = 8
	alternationThreshold   = 0.90
	uniformityPValue       = 0.001
)

// analyzePattern inspects the sequence of chosen options for shapes real
// test-takers do not produce: one option dominating the sheet, very long
// same-answer runs, mechanical alternation and grossly non-uniform
// distributions.
func analyzePattern(results []models.QuestionResult, meanConfidence float64) patternReport {
	report := patternReport{score: 1}

	var answered []models.Option
	for _, r := range results {
		if r.Answered() {
			answered = append(answered, r.ChosenOption)
		}
	}
	if len(answered) < 5 {
		return report
	}

	counts := map[models.Option]int{}
	for _, o := range answered {
		counts[o]++
	}
	dominant, dominantCount := models.Option(""), 0
	for o, c := range counts {
		if c > dominantCount {
			dominant, dominantCount = o, c
		}
	}
	report.dominantRatio = float64(dominantCount) / float64(len(answered))

	if len(answered) >= 10 && report.dominantRatio > dominantRatioThreshold {
		report.score -= 0.6
		report.flags = append(report.flags, models.FlagDominantOption)
		report.warnings = append(report.warnings,
			fmt.Sprintf("option %s chosen for %.0f%% of answered questions", dominant, report.dominantRatio*100))
		if report.dominantRatio > severeDominantRatio {
			report.severe = true
		}
	}

	if run := longestRun(answered); run >= longRunMajor {
		report.score -= 0.4
		report.flags = append(report.flags, models.FlagLongRun)
		report.warnings = append(report.warnings,
			fmt.Sprintf("%d consecutive identical answers", run))
	} else if run >= longRunMinor {
		report.score -= 0.1
	}

	if len(answered) >= 10 {
		if alt := alternationRate(answered); alt > alternationThreshold {
			report.score -= 0.4
			report.flags = append(report.flags, models.FlagAlternatingPattern)
			report.warnings = append(report.warnings, "answers alternate mechanically between two options")
			report.severe = true
		}
	}

	if len(answered) >= 20 {
		if p := uniformityPValueOf(counts, len(answered)); p < uniformityPValue {
			report.score -= 0.1
			report.flags = append(report.flags, models.FlagNonUniform)
		}
	}

	if len(results) >= 50 && len(answered) == len(results) && meanConfidence < 0.6 {
		report.score -= 0.1
		report.flags = append(report.flags, models.FlagFullAnswerRate)
		report.warnings = append(report.warnings,
			"every question answered despite low detection confidence")
	}

	if report.score < 0 {
		report.score = 0
	}
	return report
}

func longestRun(answers []models.Option) int {
	best, run := 0, 0
	var prev models.Option
	for _, o := range answers {
		if o == prev {
			run++
		} else {
			run = 1
			prev = o
		}
		if run > best {
			best = run
		}
	}
	return best
}

// alternationRate measures how often the sequence flips between exactly
// two options in strict ABAB order.
func alternationRate(answers []models.Option) float64 {
	if len(answers) < 3 {
		return 0
	}
	alternating := 0
	for i := 2; i < len(answers); i++ {
		if answers[i] == answers[i-2] && answers[i] != answers[i-1] {
			alternating++
		}
	}
	return float64(alternating) / float64(len(answers)-2)
}

// uniformityPValueOf runs a chi-squared goodness-of-fit test of the
// option counts against the uniform distribution. Real answer keys are
// not uniform, so only extreme p-values are treated as signal.
func uniformityPValueOf(counts map[models.Option]int, total int) float64 {
	k := len(models.OptionLabels)
	expected := float64(total) / float64(k)
	if expected == 0 {
		return 1
	}

	var chi2 float64
	for _, label := range models.OptionLabels {
		diff := float64(counts[label]) - expected
		chi2 += diff * diff / expected
	}

	dist := distuv.ChiSquared{K: float64(k - 1)}
	p := dist.Survival(chi2)
	if math.IsNaN(p) {
		return 1
	}
	return p
}
