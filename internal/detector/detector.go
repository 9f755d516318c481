package detector

import (
	"image"
	"runtime"
	"sync"

	"github.com/Risbinrh/OMR-Service/internal/layout"
	"github.com/Risbinrh/OMR-Service/internal/logger"
	"github.com/Risbinrh/OMR-Service/pkg/models"
)

// Mode selects the signal set. Advanced fuses all five estimators; basic
// keeps only the fill ratio and is used by the degraded fallback path.
type Mode string

const (
	ModeAdvanced Mode = "advanced"
	ModeBasic    Mode = "basic"
)

// QuestionSignals holds the per-option cell signals for one question.
type QuestionSignals struct {
	Number int
	Cells  []models.CellSignal
}

// Detector measures mark evidence for every cell of a resolved grid.
type Detector struct {
	mode    Mode
	workers int
}

// New builds a detector. workers bounds the per-question parallelism;
// values below 1 fall back to the CPU count.
func New(mode Mode, workers int) *Detector {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Detector{mode: mode, workers: workers}
}

// Detect computes signals for all questions. Questions are processed
// concurrently but results land in a pre-sized slice indexed by question
// position, so the output order is deterministic regardless of
// scheduling. The sheet stats and template are built once and shared
// read-only.
func (d *Detector) Detect(gray *image.Gray, grid *layout.Layout) []QuestionSignals {
	stats := measureSheet(gray)
	template := newDiskTemplate(int(grid.BubbleRadius*2.4) | 1)

	out := make([]QuestionSignals, len(grid.Questions))
	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup

	for i, q := range grid.Questions {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, q layout.Question) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = d.measureQuestion(gray, stats, template, q)
		}(i, q)
	}
	wg.Wait()

	logger.WithStage("detector").WithFields(map[string]interface{}{
		"mode":      string(d.mode),
		"questions": len(out),
	}).Debug("signals computed")

	return out
}

func (d *Detector) measureQuestion(gray *image.Gray, stats sheetStats, template *diskTemplate, q layout.Question) QuestionSignals {
	qs := QuestionSignals{Number: q.Number, Cells: make([]models.CellSignal, len(q.Cells))}
	for i, cell := range q.Cells {
		qs.Cells[i] = d.measureCell(gray, stats, template, q.Number, cell)
	}
	return qs
}

func (d *Detector) measureCell(gray *image.Gray, stats sheetStats, template *diskTemplate, number int, cell layout.Cell) models.CellSignal {
	signal := models.CellSignal{
		QuestionNumber: number,
		Option:         cell.Option,
		FillRatio:      fillRatio(stats, cell.Center, cell.Radius),
	}

	if d.mode == ModeBasic {
		signal.CombinedScore = signal.FillRatio
		return signal
	}

	signal.IntensityScore = intensityScore(gray, stats, cell.Center, cell.Radius)
	signal.EdgeScore = edgeScore(gray, cell.Rect)
	signal.TemplateScore = templateScore(stats, template, cell.Rect)
	signal.ContourScore = contourScore(stats, cell.Rect)
	signal.CombinedScore = fuse(
		signal.FillRatio,
		signal.IntensityScore,
		signal.EdgeScore,
		signal.TemplateScore,
		signal.ContourScore,
	)
	return signal
}

// Flatten returns the signals in question order as a single slice, used
// for debug output.
func Flatten(signals []QuestionSignals) []models.CellSignal {
	var flat []models.CellSignal
	for _, q := range signals {
		flat = append(flat, q.Cells...)
	}
	return flat
}
