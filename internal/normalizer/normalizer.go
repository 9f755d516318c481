package normalizer

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
	"github.com/Risbinrh/OMR-Service/internal/imgproc"
	"github.com/Risbinrh/OMR-Service/internal/logger"
	"github.com/Risbinrh/OMR-Service/pkg/models"
	"github.com/Risbinrh/OMR-Service/pkg/validation"
)

// Options selects which detection strategies the normalizer runs. The
// advanced set uses every strategy; the basic set keeps only the cheap
// contour corner detector and the single sweep rotation estimator.
type Options struct {
	LineCornerStrategy    bool
	MultiStrategyRotation bool
}

func AdvancedOptions() Options {
	return Options{LineCornerStrategy: true, MultiStrategyRotation: true}
}

func BasicOptions() Options {
	return Options{}
}

// Result is the geometrically corrected sheet image plus everything the
// later stages and the final response need to know about how it was
// produced.
type Result struct {
	Gray *image.Gray
	Meta models.NormalizationMeta
}

// Normalizer turns an arbitrary photograph of an answer sheet into a
// canonical upright grayscale image.
type Normalizer struct {
	opts Options
}

func New(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Normalize runs skew estimation, fiducial detection, perspective
// correction, residual rotation correction, enhancement and quality
// assessment, in that order.
func (n *Normalizer) Normalize(img image.Image) (*Result, error) {
	gray := imgproc.ToGray(img)
	log := logger.WithStage("normalizer")

	// Gate on the same percentile window the contrast stretch uses, so
	// only images enhancement cannot recover are rejected.
	darkTail, brightTail := imgproc.PercentileRange(gray, 0.02, 0.98)
	if ok, reason := validation.Processable(float64(darkTail), float64(brightTail),
		gray.Bounds().Dx(), gray.Bounds().Dy()); !ok {
		return nil, apperrors.NewImageQualityError(reason, nil)
	}

	skew := estimateSkew(gray, n.opts.MultiStrategyRotation)
	log.WithField("skew_degrees", skew).Debug("skew estimated")

	detection, observed := n.detectCorners(gray)
	if !detection.found {
		return nil, apperrors.NewTemplateNotFoundError(
			fmt.Sprintf("located %d of 4 corner markers", observed), nil)
	}

	ordered := orderQuad(detection.corners)
	width, height := canonicalSize(ordered)
	dst := [4]imgproc.Point{
		{X: 0, Y: 0},
		{X: float64(width - 1), Y: 0},
		{X: float64(width - 1), Y: float64(height - 1)},
		{X: 0, Y: float64(height - 1)},
	}

	// Inverse mapping: canonical coordinates back into the source photo.
	inv, err := computeHomography(dst, ordered)
	if err != nil {
		return nil, apperrors.NewTemplateNotFoundError("corner markers are collinear", err)
	}
	warped := warpPerspective(gray, inv, width, height)
	warped = fixOrientation(warped)
	width, height = warped.Bounds().Dx(), warped.Bounds().Dy()

	// The warp removes global rotation, but imprecise corner centroids
	// leave residual skew worth correcting.
	residual := estimateSkew(warped, false)
	rotationCorrected := math.Abs(skew) > 0.5
	if math.Abs(residual) > 0.5 && math.Abs(residual) < 10 {
		warped = rotateGray(warped, -residual)
		rotationCorrected = true
	}

	enhanced := enhance(warped)

	// Quality labels come from the enhanced image. Processability is
	// gated on the raw input only: the contrast stretch pushes paper
	// toward pure white, past the overexposure ceiling.
	mean, std := imgproc.MeanStd(enhanced)
	noise := imgproc.Clamp01(math.Sqrt(imgproc.LaplacianVariance(downsampleForNoise(enhanced))) / 128)

	meta := models.NormalizationMeta{
		SkewAngleDegrees:     skew,
		PerspectiveCorrected: true,
		RotationCorrected:    rotationCorrected,
		CornersDetected:      observed,
		Quality: models.QualityMetrics{
			Brightness: mean,
			Contrast:   std,
			NoiseLevel: noise,
		},
		ImageQuality:    validation.OverallQualityLabel(mean, std, width, height),
		BrightnessLabel: validation.BrightnessLabel(mean),
		ContrastLabel:   validation.ContrastLabel(std),
		ResolutionLabel: validation.ResolutionLabel(width, height),
	}

	log.WithFields(map[string]interface{}{
		"corners_detected": observed,
		"corner_strategy":  detection.method,
		"image_quality":    meta.ImageQuality,
		"canonical_size":   fmt.Sprintf("%dx%d", width, height),
	}).Debug("sheet normalized")

	return &Result{Gray: enhanced, Meta: meta}, nil
}

// detectCorners runs the enabled strategies and arbitrates between their
// results by geometric regularity. The returned observed count is the
// best any strategy managed, so a failure reports how close it came.
func (n *Normalizer) detectCorners(gray *image.Gray) (cornerDetection, int) {
	contour := detectCornersByContours(gray)
	best := contour
	observed := contour.observed

	if n.opts.LineCornerStrategy {
		line := detectCornersByLines(gray)
		if line.observed > observed {
			observed = line.observed
		}
		if line.found && (!best.found || line.regularity > best.regularity) {
			best = line
		}
	}
	return best, observed
}

// fixOrientation picks among the four quarter-turn orientations left
// ambiguous after the warp: a 90 or 270 degree photograph warps into a
// sideways sheet, a 180 degree one upside down. The printed header band
// makes the top of an upright sheet reliably darker than the answer-free
// bottom margin, so the orientation with the strongest top-over-bottom
// ink excess wins. Quarter turns are exact pixel transposes, so trying
// all four loses nothing.
func fixOrientation(gray *image.Gray) *image.Gray {
	best, bestScore := gray, orientationScore(gray)
	turns := []func(image.Image) *image.NRGBA{
		imaging.Rotate90, imaging.Rotate180, imaging.Rotate270,
	}
	for _, turn := range turns {
		cand := imgproc.ToGray(turn(gray))
		if s := orientationScore(cand); s > bestScore {
			best, bestScore = cand, s
		}
	}
	return best
}

// orientationScore is the ink excess of the top band over the bottom
// band; positive for an upright sheet.
func orientationScore(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	band := bounds.Dy() / 8
	if band == 0 {
		return 0
	}

	inkSum := func(y0, y1 int) float64 {
		var total float64
		for y := y0; y < y1; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				total += 255 - float64(gray.GrayAt(x, y).Y)
			}
		}
		return total
	}

	top := inkSum(bounds.Min.Y, bounds.Min.Y+band)
	bottom := inkSum(bounds.Max.Y-band, bounds.Max.Y)
	return top - bottom
}

func downsampleForNoise(gray *image.Gray) *image.Gray {
	small, _ := downsample(gray, 800)
	return small
}
