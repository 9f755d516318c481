package detector

import (
	"image"
	"math"

	"github.com/Risbinrh/OMR-Service/internal/imgproc"
)

// Fusion weights for the five signals. Fixed and documented: combined =
// 0.30*fill + 0.20*intensity + 0.20*edge + 0.15*template + 0.15*contour.
const (
	weightFillRatio = 0.30
	weightIntensity = 0.20
	weightEdge      = 0.20
	weightTemplate  = 0.15
	weightContour   = 0.15
)

// fuse combines the five signal components with the fixed weights.
func fuse(fill, intensity, edge, template, contour float64) float64 {
	return weightFillRatio*fill +
		weightIntensity*intensity +
		weightEdge*edge +
		weightTemplate*template +
		weightContour*contour
}

// sheetStats are per-sheet reference intensities shared read-only by all
// cell measurements.
type sheetStats struct {
	paperMean float64
	inkMean   float64
	ink       *image.Gray // adaptive ink mask of the whole sheet
}

func measureSheet(gray *image.Gray) sheetStats {
	threshold := imgproc.OtsuThreshold(gray)
	bounds := gray.Bounds()

	var paperSum, inkSum float64
	var paperN, inkN int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(gray.GrayAt(x, y).Y)
			if v > float64(threshold) {
				paperSum += v
				paperN++
			} else {
				inkSum += v
				inkN++
			}
		}
	}

	stats := sheetStats{paperMean: 255, inkMean: 0}
	if paperN > 0 {
		stats.paperMean = paperSum / float64(paperN)
	}
	if inkN > 0 {
		stats.inkMean = inkSum / float64(inkN)
	}
	if stats.paperMean-stats.inkMean < 30 {
		stats.inkMean = math.Max(0, stats.paperMean-30)
	}

	minDim := bounds.Dx()
	if bounds.Dy() < minDim {
		minDim = bounds.Dy()
	}
	stats.ink = imgproc.AdaptiveBinarizeInv(gray, minDim/40, 12)
	return stats
}

// fillRatio is the fraction of ink pixels inside the measurement circle.
// The circle is shrunk to 75% of the bubble radius so the printed outline
// of an empty bubble does not count as a mark.
func fillRatio(stats sheetStats, center imgproc.Point, radius float64) float64 {
	r := 0.75 * radius
	var ink, total int
	forCircle(stats.ink.Bounds(), center, r, func(x, y int) {
		total++
		if stats.ink.GrayAt(x, y).Y > 0 {
			ink++
		}
	})
	if total == 0 {
		return 0
	}
	return float64(ink) / float64(total)
}

// intensityScore measures cell darkness relative to the sheet's paper and
// ink reference levels.
func intensityScore(gray *image.Gray, stats sheetStats, center imgproc.Point, radius float64) float64 {
	r := 0.75 * radius
	var sum float64
	var n int
	forCircle(gray.Bounds(), center, r, func(x, y int) {
		sum += float64(gray.GrayAt(x, y).Y)
		n++
	})
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return imgproc.Clamp01((stats.paperMean - mean) / (stats.paperMean - stats.inkMean))
}

// edgeScore is the density of strong Sobel edges over the cell rectangle,
// scaled so a fully marked bubble saturates at 1.
func edgeScore(gray *image.Gray, rect image.Rectangle) float64 {
	rect = rect.Intersect(gray.Bounds().Inset(1))
	if rect.Empty() {
		return 0
	}
	var edges, total int
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			gx := float64(imgproc.SobelX(gray, x, y))
			gy := float64(imgproc.SobelY(gray, x, y))
			if math.Hypot(gx, gy) > 120 {
				edges++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return imgproc.Clamp01(float64(edges) / float64(total) * 5)
}

// diskTemplate is a filled-circle reference patch. One instance is built
// per detection run and shared read-only across cells.
type diskTemplate struct {
	pix  []float64
	side int
	mean float64
	std  float64
}

func newDiskTemplate(side int) *diskTemplate {
	t := &diskTemplate{pix: make([]float64, side*side), side: side}
	c := float64(side-1) / 2
	r := float64(side) * 0.375 // matches the 75% measurement circle
	var sum float64
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			if math.Hypot(float64(x)-c, float64(y)-c) <= r {
				t.pix[y*side+x] = 1
				sum++
			}
		}
	}
	n := float64(side * side)
	t.mean = sum / n
	var varSum float64
	for _, v := range t.pix {
		varSum += (v - t.mean) * (v - t.mean)
	}
	t.std = math.Sqrt(varSum / n)
	return t
}

// templateScore is the normalized cross-correlation between the cell's
// ink mask and the filled-disk template.
func templateScore(stats sheetStats, t *diskTemplate, rect image.Rectangle) float64 {
	bounds := stats.ink.Bounds()
	n := t.side * t.side
	if n == 0 || t.std == 0 {
		return 0
	}

	var sum, cross float64
	samples := make([]float64, 0, n)
	for y := 0; y < t.side; y++ {
		for x := 0; x < t.side; x++ {
			px, py := rect.Min.X+x*rect.Dx()/t.side, rect.Min.Y+y*rect.Dy()/t.side
			v := 0.0
			if image.Pt(px, py).In(bounds) && stats.ink.GrayAt(px, py).Y > 0 {
				v = 1
			}
			samples = append(samples, v)
			sum += v
			cross += v * t.pix[y*t.side+x]
		}
	}
	mean := sum / float64(n)
	var varSum float64
	for _, v := range samples {
		varSum += (v - mean) * (v - mean)
	}
	std := math.Sqrt(varSum / float64(n))
	if std == 0 {
		return 0
	}

	ncc := (cross/float64(n) - mean*t.mean) / (std * t.std)
	return imgproc.Clamp01(ncc)
}

// contourScore looks at the largest connected ink region inside the cell:
// its area relative to the cell combined with how disk-like it is.
func contourScore(stats sheetStats, rect image.Rectangle) float64 {
	rect = rect.Intersect(stats.ink.Bounds())
	if rect.Empty() {
		return 0
	}

	patch := image.NewGray(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			patch.SetGray(x, y, stats.ink.GrayAt(x, y))
		}
	}

	comps := imgproc.FindComponents(patch, 4, 0)
	if len(comps) == 0 {
		return 0
	}
	largest := comps[0]
	for _, c := range comps[1:] {
		if c.Area > largest.Area {
			largest = c
		}
	}

	relArea := float64(largest.Area) / float64(rect.Dx()*rect.Dy())
	return imgproc.Clamp01(relArea*3) * largest.Circularity()
}

// forCircle visits every integer pixel inside the circle, clipped to the
// image bounds.
func forCircle(bounds image.Rectangle, center imgproc.Point, radius float64, visit func(x, y int)) {
	x0 := int(math.Floor(center.X - radius))
	x1 := int(math.Ceil(center.X + radius))
	y0 := int(math.Floor(center.Y - radius))
	y1 := int(math.Ceil(center.Y + radius))
	r2 := radius * radius
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if !image.Pt(x, y).In(bounds) {
				continue
			}
			dx := float64(x) - center.X
			dy := float64(y) - center.Y
			if dx*dx+dy*dy <= r2 {
				visit(x, y)
			}
		}
	}
}
