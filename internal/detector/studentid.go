package detector

import (
	"image"
	"sort"
	"strconv"

	"github.com/Risbinrh/OMR-Service/internal/imgproc"
	"github.com/Risbinrh/OMR-Service/internal/logger"
)

const (
	idDigitRows   = 10 // digits 0-9, one per row
	idMaxColumns  = 8  // ID length printed on the sheet
	idMinColumns  = 4
	idMarkMinimum = 0.45
)

// ReadStudentID scans the digit-bubble grid printed in the top-right
// region of a normalized sheet. Each column encodes one digit: ten
// vertically stacked bubbles, the filled row is the digit value. Returns
// an empty string when no plausible grid is present or too few digits
// could be read.
func ReadStudentID(gray *image.Gray) string {
	bounds := gray.Bounds()
	region := image.Rect(
		bounds.Min.X+bounds.Dx()*60/100,
		bounds.Min.Y,
		bounds.Max.X,
		bounds.Min.Y+bounds.Dy()*30/100,
	)

	crop := image.NewGray(region)
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			crop.SetGray(x, y, gray.GrayAt(x, y))
		}
	}

	candidates := idBubbleCandidates(crop)
	if len(candidates) < idMinColumns*idDigitRows/2 {
		return ""
	}

	var xs, ys, ds []float64
	for _, c := range candidates {
		xs = append(xs, c.center.X)
		ys = append(ys, c.center.Y)
		ds = append(ds, c.diameter)
	}
	sort.Float64s(ds)
	medianD := ds[len(ds)/2]
	eps := 0.7 * medianD

	cols := clusterSorted(xs, eps)
	rows := clusterSorted(ys, eps)
	if len(cols) < idMinColumns || len(cols) > idMaxColumns || len(rows) != idDigitRows {
		return ""
	}

	stats := measureSheet(crop)
	radius := medianD / 2
	id := make([]byte, 0, len(cols))
	unread := 0
	for _, colX := range cols {
		digit, score := -1, 0.0
		for rowIdx, rowY := range rows {
			center := imgproc.Point{X: colX, Y: rowY}
			fill := fillRatio(stats, center, radius)
			intensity := intensityScore(crop, stats, center, radius)
			s := 0.6*fill + 0.4*intensity
			if s > score {
				score = s
				digit = rowIdx
			}
		}
		if digit < 0 || score < idMarkMinimum {
			unread++
			id = append(id, '?')
			continue
		}
		id = append(id, strconv.Itoa(digit)[0])
	}

	// A mostly unreadable grid is more likely noise than a student ID.
	if unread*2 > len(id) {
		return ""
	}

	logger.WithStage("detector").WithField("student_id", string(id)).Debug("student id grid read")
	return string(id)
}

type idCandidate struct {
	center   imgproc.Point
	diameter float64
}

func idBubbleCandidates(crop *image.Gray) []idCandidate {
	bounds := crop.Bounds()
	minDim := bounds.Dx()
	if bounds.Dy() < minDim {
		minDim = bounds.Dy()
	}
	if minDim < 40 {
		return nil
	}

	bin := imgproc.AdaptiveBinarizeInv(crop, minDim/20, 12)

	minD := 6.0
	maxD := float64(minDim) * 0.15
	var out []idCandidate
	for _, c := range imgproc.FindComponents(bin, int(minD*minD/4), int(maxD*maxD*2)) {
		w, h := float64(c.Bounds.Dx()), float64(c.Bounds.Dy())
		if w < minD || w > maxD || h < minD || h > maxD {
			continue
		}
		aspect := c.AspectRatio()
		if aspect < 0.6 || aspect > 1.6 {
			continue
		}
		out = append(out, idCandidate{
			center:   imgproc.Point{X: float64(c.Bounds.Min.X) + w/2, Y: float64(c.Bounds.Min.Y) + h/2},
			diameter: (w + h) / 2,
		})
	}
	return out
}

// clusterSorted groups 1-D values separated by at most eps and returns
// each group's mean, ascending.
func clusterSorted(values []float64, eps float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var out []float64
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i]-sorted[i-1] <= eps {
			continue
		}
		var sum float64
		for _, v := range sorted[start:i] {
			sum += v
		}
		out = append(out, sum/float64(i-start))
		start = i
	}
	return out
}
