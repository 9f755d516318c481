package normalizer

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"

	"github.com/Risbinrh/OMR-Service/internal/imgproc"
)

// skewEstimate is the output of one rotation strategy.
type skewEstimate struct {
	degrees float64
	method  string
}

// estimateSkew runs the enabled rotation strategies and reconciles them by
// median vote. The sweep strategy fixes the sign: the histogram and
// regression strategies agree on magnitude far more reliably than on
// orientation convention.
func estimateSkew(gray *image.Gray, multiStrategy bool) float64 {
	small, _ := downsample(gray, 420)

	sweep := estimateSkewSweep(small)
	if !multiStrategy {
		return sweep
	}

	estimates := []skewEstimate{
		{degrees: sweep, method: "projection_sweep"},
		{degrees: estimateSkewHistogram(small), method: "orientation_histogram"},
		{degrees: estimateSkewRegression(small), method: "edge_regression"},
	}

	magnitudes := make([]float64, len(estimates))
	for i, e := range estimates {
		magnitudes[i] = math.Abs(e.degrees)
	}
	sort.Float64s(magnitudes)
	median := magnitudes[len(magnitudes)/2]

	if sweep < 0 {
		return -median
	}
	return median
}

// estimateSkewSweep rotates the image through candidate angles and finds
// the one maximising row projection variance: bubble rows aligned with the
// raster produce sharply peaked projections, misaligned rows smear them.
// Coarse one-degree pass over [-45, 45] followed by a quarter-degree
// refinement around the winner.
func estimateSkewSweep(gray *image.Gray) float64 {
	best, bestVar := 0.0, -1.0
	for a := -45.0; a <= 45.0; a += 1.0 {
		v := rotatedProjectionVariance(gray, a)
		if v > bestVar {
			bestVar = v
			best = a
		}
	}
	for a := best - 1.0; a <= best+1.0; a += 0.25 {
		v := rotatedProjectionVariance(gray, a)
		if v > bestVar {
			bestVar = v
			best = a
		}
	}
	// Rotating by +best degrees derotates the sheet, so the sheet itself
	// is rotated by -best.
	return -best
}

func rotatedProjectionVariance(gray *image.Gray, degrees float64) float64 {
	rotated := gray
	if degrees != 0 {
		rotated = imgproc.ToGray(imaging.Rotate(gray, degrees, color.White))
	}
	bounds := rotated.Bounds()
	if bounds.Dy() == 0 {
		return 0
	}
	rows := make([]float64, bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		var ink float64
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			ink += 255 - float64(rotated.GrayAt(x, y).Y)
		}
		rows[y-bounds.Min.Y] = ink
	}
	return stat.Variance(rows, nil)
}

// estimateSkewHistogram votes on line orientation using Sobel gradient
// directions at strong edges, folded modulo 90 degrees.
func estimateSkewHistogram(gray *image.Gray) float64 {
	const bins = 90
	hist := make([]float64, bins)
	bounds := gray.Bounds()

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			gx := float64(imgproc.SobelX(gray, x, y))
			gy := float64(imgproc.SobelY(gray, x, y))
			mag := math.Hypot(gx, gy)
			if mag < 100 {
				continue
			}
			// Line direction is perpendicular to the gradient.
			lineDeg := math.Atan2(gy, gx)*180/math.Pi + 90
			folded := math.Mod(math.Mod(lineDeg, 90)+90, 90)
			hist[int(folded)%bins] += mag
		}
	}

	peak, peakVal := 0, 0.0
	for i, v := range hist {
		// Smooth with immediate neighbours, wrapping at the fold.
		s := v + 0.5*hist[(i+1)%bins] + 0.5*hist[(i+bins-1)%bins]
		if s > peakVal {
			peakVal = s
			peak = i
		}
	}
	if peakVal == 0 {
		return 0
	}

	// Sub-degree refinement by weighted centroid around the peak.
	var num, den float64
	for d := -2; d <= 2; d++ {
		i := (peak + d + bins) % bins
		num += float64(d) * hist[i]
		den += hist[i]
	}
	angle := float64(peak)
	if den > 0 {
		angle += num / den
	}
	if angle > 45 {
		angle -= 90
	}
	return angle
}

// estimateSkewRegression fits a line through strong edge coordinates and
// reads the skew off its slope. Coarse, but cheap and independent of the
// other two strategies.
func estimateSkewRegression(gray *image.Gray) float64 {
	pts := imgproc.EdgePoints(gray, 150)
	if len(pts) < 30 {
		return 0
	}
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = p.X
		ys[i] = p.Y
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	angle := math.Atan(slope) * 180 / math.Pi
	for angle > 45 {
		angle -= 90
	}
	for angle < -45 {
		angle += 90
	}
	return angle
}

// rotateGray rotates with a white background and converts back to gray.
func rotateGray(gray *image.Gray, degrees float64) *image.Gray {
	if degrees == 0 {
		return gray
	}
	return imgproc.ToGray(imaging.Rotate(gray, degrees, color.White))
}

// downsample scales the longest side to maxDim, returning the scale factor
// applied (new/old). Images already small enough are returned as-is.
func downsample(gray *image.Gray, maxDim int) (*image.Gray, float64) {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxDim {
		return gray, 1.0
	}
	scale := float64(maxDim) / float64(longest)
	resized := imaging.Resize(gray, int(float64(w)*scale), 0, imaging.Box)
	return imgproc.ToGray(resized), scale
}
