package validation

// Quality labels reported alongside normalization metadata. Thresholds
// are tuned for 8-bit grayscale scans and phone photos of answer sheets.

const (
	// Brightness bands (mean intensity).
	darkBelow   = 100.0
	brightAbove = 200.0

	// Contrast bands (intensity standard deviation).
	lowContrastBelow  = 30.0
	highContrastAbove = 80.0

	// Resolution bands.
	lowResWidth         = 800
	lowResHeight        = 600
	highResWidth        = 1600
	highResHeight       = 1200
	minProcessWidth     = 400
	minProcessHeight    = 300
	usableBrightFloor   = 30.0
	usableBrightCeil    = 240.0
	usableWindowMinimum = 40.0
)

// BrightnessLabel maps mean intensity to dark / normal / bright.
func BrightnessLabel(mean float64) string {
	switch {
	case mean < darkBelow:
		return "dark"
	case mean > brightAbove:
		return "bright"
	default:
		return "normal"
	}
}

// ContrastLabel maps intensity standard deviation to low / normal / high.
func ContrastLabel(std float64) string {
	switch {
	case std < lowContrastBelow:
		return "low"
	case std > highContrastAbove:
		return "high"
	default:
		return "normal"
	}
}

// ResolutionLabel maps pixel dimensions to low / adequate / high.
func ResolutionLabel(width, height int) string {
	switch {
	case width < lowResWidth || height < lowResHeight:
		return "low"
	case width >= highResWidth && height >= highResHeight:
		return "high"
	default:
		return "adequate"
	}
}

// OverallQualityLabel folds the individual bands into a single grade. Each
// band in its normal range contributes one point.
func OverallQualityLabel(mean, std float64, width, height int) string {
	score := 0
	if BrightnessLabel(mean) == "normal" {
		score++
	}
	if ContrastLabel(std) != "low" {
		score++
	}
	if ResolutionLabel(width, height) != "low" {
		score++
	}
	switch score {
	case 3:
		return "excellent"
	case 2:
		return "good"
	case 1:
		return "adequate"
	default:
		return "poor"
	}
}

// Processable reports whether an image is within the bounds the detector
// can work with at all. Exposure is judged on the low/high percentile
// window contrast stretching has to work with, not the raw mean, so a
// bright-but-readable photograph passes while a genuinely clipped one
// fails. Images outside these bounds fail fast with an image quality
// error instead of producing garbage answers.
func Processable(darkTail, brightTail float64, width, height int) (bool, string) {
	if width < minProcessWidth || height < minProcessHeight {
		return false, "image resolution too low for bubble detection"
	}
	if darkTail > usableBrightCeil {
		return false, "image overexposed, marks are washed out"
	}
	if brightTail < usableBrightFloor {
		return false, "image too dark to distinguish marks from paper"
	}
	if brightTail-darkTail < usableWindowMinimum {
		return false, "image contrast too low to separate ink from paper"
	}
	return true, ""
}
