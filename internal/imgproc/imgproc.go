package imgproc

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Point is a sub-pixel image coordinate.
type Point struct {
	X, Y float64
}

// Dist returns the euclidean distance to q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// ToGray converts any image to 8-bit grayscale.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

// MeanStd computes the mean and standard deviation of pixel intensities.
func MeanStd(gray *image.Gray) (mean, std float64) {
	bounds := gray.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0, 0
	}
	var sum, sumSq float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(gray.GrayAt(x, y).Y)
			sum += v
			sumSq += v * v
		}
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// PercentileRange returns the intensities at the given low and high
// cumulative-histogram percentiles.
func PercentileRange(gray *image.Gray, lowPct, highPct float64) (low, high int) {
	bounds := gray.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 0, 255
	}

	var hist [256]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}

	lowTarget := int(lowPct * float64(total))
	highTarget := int(highPct * float64(total))
	low, high = -1, 255
	cum := 0
	for i := 0; i < 256; i++ {
		cum += hist[i]
		if low < 0 && cum > lowTarget {
			low = i
		}
		if cum >= highTarget {
			high = i
			break
		}
	}
	if low < 0 {
		low = 0
	}
	return low, high
}

// OtsuThreshold computes the global binarization threshold that maximises
// between-class variance.
func OtsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	bounds := gray.Bounds()
	total := bounds.Dx() * bounds.Dy()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}
	if total == 0 {
		return 128
	}

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * float64(c)
	}

	var sumBack, weightBack float64
	var maxVariance float64
	best := uint8(128)
	for t := 0; t < 256; t++ {
		weightBack += float64(hist[t])
		if weightBack == 0 {
			continue
		}
		weightFore := float64(total) - weightBack
		if weightFore == 0 {
			break
		}
		sumBack += float64(t) * float64(hist[t])
		meanBack := sumBack / weightBack
		meanFore := (sumAll - sumBack) / weightFore
		variance := weightBack * weightFore * (meanBack - meanFore) * (meanBack - meanFore)
		if variance > maxVariance {
			maxVariance = variance
			best = uint8(t)
		}
	}
	return best
}

// BinarizeInv produces a binary image where ink (dark pixels at or below
// the threshold) becomes 255 and paper becomes 0.
func BinarizeInv(gray *image.Gray, threshold uint8) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if gray.GrayAt(x, y).Y <= threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// integralImage supports O(1) window sums for adaptive thresholding.
type integralImage struct {
	sums   []uint64
	w, h   int
	bounds image.Rectangle
}

func newIntegralImage(gray *image.Gray) *integralImage {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	ii := &integralImage{sums: make([]uint64, (w+1)*(h+1)), w: w, h: h, bounds: bounds}
	for y := 0; y < h; y++ {
		var rowSum uint64
		for x := 0; x < w; x++ {
			rowSum += uint64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			ii.sums[(y+1)*(w+1)+x+1] = ii.sums[y*(w+1)+x+1] + rowSum
		}
	}
	return ii
}

// windowMean returns the mean intensity over the clamped window centred at
// (x, y) in image coordinates.
func (ii *integralImage) windowMean(x, y, radius int) float64 {
	x0 := clampInt(x-ii.bounds.Min.X-radius, 0, ii.w)
	x1 := clampInt(x-ii.bounds.Min.X+radius+1, 0, ii.w)
	y0 := clampInt(y-ii.bounds.Min.Y-radius, 0, ii.h)
	y1 := clampInt(y-ii.bounds.Min.Y+radius+1, 0, ii.h)
	area := (x1 - x0) * (y1 - y0)
	if area <= 0 {
		return 0
	}
	sum := ii.sums[y1*(ii.w+1)+x1] - ii.sums[y0*(ii.w+1)+x1] -
		ii.sums[y1*(ii.w+1)+x0] + ii.sums[y0*(ii.w+1)+x0]
	return float64(sum) / float64(area)
}

// AdaptiveBinarizeInv thresholds each pixel against its local window mean
// minus an offset, marking ink as 255. Robust to uneven lighting where a
// single global threshold is not.
func AdaptiveBinarizeInv(gray *image.Gray, radius int, offset float64) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	ii := newIntegralImage(gray)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			local := ii.windowMean(x, y, radius)
			if float64(gray.GrayAt(x, y).Y) < local-offset {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// SobelX computes the horizontal Sobel gradient at (x, y).
func SobelX(gray *image.Gray, x, y int) int {
	return -1*int(gray.GrayAt(x-1, y-1).Y) + 1*int(gray.GrayAt(x+1, y-1).Y) +
		-2*int(gray.GrayAt(x-1, y).Y) + 2*int(gray.GrayAt(x+1, y).Y) +
		-1*int(gray.GrayAt(x-1, y+1).Y) + 1*int(gray.GrayAt(x+1, y+1).Y)
}

// SobelY computes the vertical Sobel gradient at (x, y).
func SobelY(gray *image.Gray, x, y int) int {
	return -1*int(gray.GrayAt(x-1, y-1).Y) - 2*int(gray.GrayAt(x, y-1).Y) - 1*int(gray.GrayAt(x+1, y-1).Y) +
		1*int(gray.GrayAt(x-1, y+1).Y) + 2*int(gray.GrayAt(x, y+1).Y) + 1*int(gray.GrayAt(x+1, y+1).Y)
}

// EdgePoints returns the coordinates of pixels whose Sobel gradient
// magnitude exceeds the threshold.
func EdgePoints(gray *image.Gray, magnitudeThreshold float64) []Point {
	bounds := gray.Bounds()
	var pts []Point
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			gx := SobelX(gray, x, y)
			gy := SobelY(gray, x, y)
			if math.Sqrt(float64(gx*gx+gy*gy)) > magnitudeThreshold {
				pts = append(pts, Point{X: float64(x), Y: float64(y)})
			}
		}
	}
	return pts
}

// LaplacianVariance measures local high-frequency energy. Low values on a
// document image indicate blur; very high values indicate sensor noise.
func LaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := make([]float64, 0, (width-2)*(height-2))
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)
			data = append(data, -4*center+top+bottom+left+right)
		}
	}
	if len(data) == 0 {
		return 0
	}
	return stat.Variance(data, nil)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
