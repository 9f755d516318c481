package layout

import (
	"fmt"
	"image"
	"math"
	"sort"

	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
	"github.com/Risbinrh/OMR-Service/internal/imgproc"
	"github.com/Risbinrh/OMR-Service/internal/logger"
	"github.com/Risbinrh/OMR-Service/pkg/models"
)

// Cell is the image region of one (question, option) bubble.
type Cell struct {
	Option models.Option
	Rect   image.Rectangle
	Center imgproc.Point
	Radius float64
}

// Question is one row of option cells, ordered left to right.
type Question struct {
	Number int
	Cells  []Cell
}

// Layout is the discovered bubble grid. Every question carries the same
// number of option cells and cells never overlap.
type Layout struct {
	Questions          []Question
	OptionsPerQuestion int
	BubbleRadius       float64
	RowSpacing         float64
}

// Options bound what counts as a viable grid.
type Options struct {
	MinQuestions int
	MaxQuestions int
	MinOptions   int
	MaxOptions   int
}

func DefaultOptions() Options {
	return Options{MinQuestions: 10, MaxQuestions: 300, MinOptions: 4, MaxOptions: 5}
}

// Resolver discovers the answer grid on a normalized sheet image.
type Resolver struct {
	opts Options
}

func New(opts Options) *Resolver {
	return &Resolver{opts: opts}
}

// bubbleCandidate is a connected component plausible as a bubble outline
// or a filled bubble.
type bubbleCandidate struct {
	center   imgproc.Point
	diameter float64
}

// Resolve locates bubble candidates, clusters them into rows and option
// columns, and assembles the question grid. Question numbering runs down
// each column block, then continues at the top of the next block.
func (r *Resolver) Resolve(gray *image.Gray) (*Layout, error) {
	candidates := findBubbleCandidates(gray)
	if len(candidates) < r.opts.MinQuestions*r.opts.MinOptions/2 {
		return nil, apperrors.NewBubbleDetectionError(
			fmt.Sprintf("found only %d bubble candidates", len(candidates)), nil)
	}

	diameters := make([]float64, len(candidates))
	xs := make([]float64, len(candidates))
	ys := make([]float64, len(candidates))
	for i, c := range candidates {
		diameters[i] = c.diameter
		xs[i] = c.center.X
		ys[i] = c.center.Y
	}
	medianD := medianOf(diameters)
	eps := 0.7 * medianD

	rows := clusterPositions(ys, eps)
	rows = dropSparse(rows, 3)
	rows = filterRegularSpacing(rows)

	cols := clusterPositions(xs, eps)
	cols = dropSparse(cols, 3)
	cols = filterRegularSpacing(cols)

	if len(rows) == 0 || len(cols) == 0 {
		return nil, apperrors.NewBubbleDetectionError("no regular bubble grid found", nil)
	}

	blocks, optionCount := r.resolveBlocks(cols)
	if optionCount == 0 {
		return nil, apperrors.NewBubbleDetectionError(
			fmt.Sprintf("column groups do not form %d-%d option blocks",
				r.opts.MinOptions, r.opts.MaxOptions), nil)
	}

	total := len(rows) * len(blocks)
	if total < r.opts.MinQuestions {
		return nil, apperrors.NewBubbleDetectionError(
			fmt.Sprintf("grid has %d questions, minimum viable is %d", total, r.opts.MinQuestions), nil)
	}
	if total > r.opts.MaxQuestions {
		return nil, apperrors.NewBubbleDetectionError(
			fmt.Sprintf("grid has %d questions, maximum supported is %d", total, r.opts.MaxQuestions), nil)
	}

	radius := medianD / 2
	side := int(math.Round(medianD * 1.2))
	rowSpacing := 0.0
	if len(rows) > 1 {
		rowSpacing = (rows[len(rows)-1].center - rows[0].center) / float64(len(rows)-1)
	}

	layout := &Layout{
		OptionsPerQuestion: optionCount,
		BubbleRadius:       radius,
		RowSpacing:         rowSpacing,
	}
	number := 1
	for _, block := range blocks {
		for _, row := range rows {
			q := Question{Number: number}
			for i, col := range block {
				center := imgproc.Point{X: col.center, Y: row.center}
				q.Cells = append(q.Cells, Cell{
					Option: models.OptionLabels[i],
					Rect: image.Rect(
						int(center.X)-side/2, int(center.Y)-side/2,
						int(center.X)+side/2, int(center.Y)+side/2,
					),
					Center: center,
					Radius: radius,
				})
			}
			layout.Questions = append(layout.Questions, q)
			number++
		}
	}

	logger.WithStage("layout").WithFields(map[string]interface{}{
		"questions":     len(layout.Questions),
		"options":       optionCount,
		"blocks":        len(blocks),
		"bubble_radius": radius,
	}).Debug("grid resolved")

	return layout, nil
}

// resolveBlocks groups option columns into side-by-side question blocks
// and picks the dominant option count. Blocks of any other width are
// discarded as headers or ID grids.
func (r *Resolver) resolveBlocks(cols []cluster) ([][]cluster, int) {
	raw := splitBlocks(cols, 1.8)

	sizeVotes := map[int]int{}
	for _, b := range raw {
		if len(b) >= r.opts.MinOptions && len(b) <= r.opts.MaxOptions {
			sizeVotes[len(b)]++
		}
	}
	optionCount, best := 0, 0
	for size, votes := range sizeVotes {
		if votes > best || (votes == best && size > optionCount) {
			best = votes
			optionCount = size
		}
	}
	if optionCount == 0 {
		return nil, 0
	}

	var blocks [][]cluster
	for _, b := range raw {
		if len(b) == optionCount {
			blocks = append(blocks, b)
		}
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i][0].center < blocks[j][0].center
	})
	return blocks, optionCount
}

// findBubbleCandidates binarizes adaptively and keeps components shaped
// like bubble outlines or filled bubbles.
func findBubbleCandidates(gray *image.Gray) []bubbleCandidate {
	bounds := gray.Bounds()
	minDim := bounds.Dx()
	if bounds.Dy() < minDim {
		minDim = bounds.Dy()
	}

	bin := imgproc.AdaptiveBinarizeInv(gray, minDim/40, 12)

	// Bubble diameters on a canonical sheet run from roughly 1% to 6% of
	// the short dimension.
	minD := float64(minDim) * 0.01
	maxD := float64(minDim) * 0.06
	if minD < 6 {
		minD = 6
	}

	var candidates []bubbleCandidate
	for _, c := range imgproc.FindComponents(bin, int(minD*minD/4), int(maxD*maxD*2)) {
		w, h := float64(c.Bounds.Dx()), float64(c.Bounds.Dy())
		if w < minD || w > maxD || h < minD || h > maxD {
			continue
		}
		aspect := c.AspectRatio()
		if aspect < 0.6 || aspect > 1.6 {
			continue
		}
		candidates = append(candidates, bubbleCandidate{
			center: imgproc.Point{
				X: float64(c.Bounds.Min.X) + w/2,
				Y: float64(c.Bounds.Min.Y) + h/2,
			},
			diameter: (w + h) / 2,
		})
	}
	return candidates
}

func dropSparse(clusters []cluster, minMembers int) []cluster {
	kept := clusters[:0:0]
	for _, c := range clusters {
		if c.members >= minMembers {
			kept = append(kept, c)
		}
	}
	return kept
}
