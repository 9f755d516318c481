package normalizer

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Risbinrh/OMR-Service/internal/imgproc"
)

// homography is a 3x3 projective transform.
type homography struct {
	m *mat.Dense
}

// computeHomography solves the eight-parameter projective transform that
// maps each src corner onto the matching dst corner. Corners must be in
// the same order on both sides.
func computeHomography(src, dst [4]imgproc.Point) (*homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		sx, sy := src[i].X, src[i].Y
		dx, dy := dst[i].X, dst[i].Y

		a.SetRow(2*i, []float64{sx, sy, 1, 0, 0, 0, -sx * dx, -sy * dx})
		b.SetVec(2*i, dx)
		a.SetRow(2*i+1, []float64{0, 0, 0, sx, sy, 1, -sx * dy, -sy * dy})
		b.SetVec(2*i+1, dy)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("degenerate corner configuration: %w", err)
	}

	m := mat.NewDense(3, 3, []float64{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), 1,
	})
	return &homography{m: m}, nil
}

// apply maps a point through the transform.
func (h *homography) apply(p imgproc.Point) imgproc.Point {
	w := h.m.At(2, 0)*p.X + h.m.At(2, 1)*p.Y + h.m.At(2, 2)
	if w == 0 {
		return imgproc.Point{}
	}
	return imgproc.Point{
		X: (h.m.At(0, 0)*p.X + h.m.At(0, 1)*p.Y + h.m.At(0, 2)) / w,
		Y: (h.m.At(1, 0)*p.X + h.m.At(1, 1)*p.Y + h.m.At(1, 2)) / w,
	}
}

// warpPerspective resamples src into a width x height canonical image.
// The transform passed in must map canonical coordinates back to source
// coordinates (inverse mapping with bilinear interpolation).
func warpPerspective(src *image.Gray, inv *homography, width, height int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			s := inv.apply(imgproc.Point{X: float64(x), Y: float64(y)})
			out.Pix[y*out.Stride+x] = bilinearSample(src, s.X, s.Y)
		}
	}
	return out
}

// bilinearSample reads a sub-pixel intensity, treating everything outside
// the image as white paper.
func bilinearSample(src *image.Gray, x, y float64) uint8 {
	bounds := src.Bounds()
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	at := func(px, py int) float64 {
		if px < bounds.Min.X || px >= bounds.Max.X || py < bounds.Min.Y || py >= bounds.Max.Y {
			return 255
		}
		return float64(src.GrayAt(px, py).Y)
	}

	top := at(x0, y0)*(1-fx) + at(x0+1, y0)*fx
	bottom := at(x0, y0+1)*(1-fx) + at(x0+1, y0+1)*fx
	return uint8(math.Round(top*(1-fy) + bottom*fy))
}

// canonicalSize derives the output resolution from the measured corner
// distances, bounded to keep later stages within predictable budgets.
func canonicalSize(corners [4]imgproc.Point) (int, int) {
	width := math.Max(corners[0].Dist(corners[1]), corners[3].Dist(corners[2]))
	height := math.Max(corners[0].Dist(corners[3]), corners[1].Dist(corners[2]))

	w := int(math.Round(width))
	h := int(math.Round(height))
	const minDim, maxDim = 400, 2400
	if w < minDim {
		w = minDim
	}
	if h < minDim {
		h = minDim
	}
	if w > maxDim {
		h = h * maxDim / w
		w = maxDim
	}
	if h > maxDim {
		w = w * maxDim / h
		h = maxDim
	}
	return w, h
}
