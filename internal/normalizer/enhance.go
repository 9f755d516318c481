package normalizer

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/Risbinrh/OMR-Service/internal/imgproc"
)

// enhance applies light denoising followed by percentile contrast
// stretching. Aggressive enhancement would distort the fill estimates, so
// both steps are deliberately mild.
func enhance(gray *image.Gray) *image.Gray {
	denoised := imgproc.ToGray(imaging.Blur(gray, 0.6))
	return stretchContrast(denoised, 0.02, 0.98)
}

// stretchContrast remaps intensities linearly so the given low and high
// percentiles land on 0 and 255.
func stretchContrast(gray *image.Gray, lowPct, highPct float64) *image.Gray {
	bounds := gray.Bounds()
	if bounds.Dx()*bounds.Dy() == 0 {
		return gray
	}
	low, high := imgproc.PercentileRange(gray, lowPct, highPct)
	if high <= low {
		return gray
	}

	var lut [256]uint8
	scale := 255.0 / float64(high-low)
	for i := range lut {
		v := float64(i-low) * scale
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		lut[i] = uint8(v)
	}

	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Pix[(y-bounds.Min.Y)*out.Stride+(x-bounds.Min.X)] = lut[gray.GrayAt(x, y).Y]
		}
	}
	return out
}
