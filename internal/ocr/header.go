package ocr

import (
	"bytes"
	"image"
	"image/png"
	"regexp"
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
	"github.com/Risbinrh/OMR-Service/internal/logger"
	"github.com/Risbinrh/OMR-Service/pkg/models"
)

// matchSimilarity is the minimum normalized similarity between an OCR
// token and the expected exam ID before the header counts as matched.
const matchSimilarity = 0.8

// HeaderCheck is the outcome of verifying the printed sheet header
// against the exam metadata in the request.
type HeaderCheck struct {
	Text       string  `json:"text"`
	Matched    bool    `json:"matched"`
	Similarity float64 `json:"similarity"`
}

// Verifier reads the sheet's header strip with Tesseract and compares it
// to the expected exam identifier. The check is advisory: it feeds a
// suspicion flag, never a hard failure.
type Verifier struct {
	enabled bool
}

func New(enabled bool) *Verifier {
	return &Verifier{enabled: enabled}
}

// Enabled reports whether OCR verification is configured on.
func (v *Verifier) Enabled() bool {
	return v.enabled
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]+`)

// VerifyHeader crops the top strip of the normalized sheet, OCRs it and
// scores every token against the expected exam ID by edit distance.
// Returns nil when verification is disabled or no exam ID was supplied.
func (v *Verifier) VerifyHeader(gray *image.Gray, meta models.ExamMetadata) (*HeaderCheck, error) {
	if !v.enabled || meta.ExamID == "" {
		return nil, nil
	}

	bounds := gray.Bounds()
	strip := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+bounds.Dy()*12/100)
	header := image.NewGray(strip)
	for y := strip.Min.Y; y < strip.Max.Y; y++ {
		for x := strip.Min.X; x < strip.Max.X; x++ {
			header.SetGray(x, y, gray.GrayAt(x, y))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, header); err != nil {
		return nil, apperrors.NewInternalError("failed to encode header strip", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, apperrors.NewInternalError("failed to load header strip into tesseract", err)
	}
	text, err := client.Text()
	if err != nil {
		return nil, apperrors.NewInternalError("header text recognition failed", err)
	}

	check := &HeaderCheck{Text: strings.TrimSpace(text)}
	expected := nonAlnum.ReplaceAllString(strings.ToUpper(meta.ExamID), "")
	if expected == "" {
		return check, nil
	}

	for _, token := range strings.Fields(strings.ToUpper(text)) {
		token = nonAlnum.ReplaceAllString(token, "")
		if token == "" {
			continue
		}
		if s := similarity(token, expected); s > check.Similarity {
			check.Similarity = s
		}
	}
	check.Matched = check.Similarity >= matchSimilarity

	logger.WithStage("ocr").WithFields(map[string]interface{}{
		"matched":    check.Matched,
		"similarity": check.Similarity,
	}).Debug("header verified")

	return check, nil
}

// similarity normalizes the levenshtein distance into [0,1].
func similarity(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.Distance(a, b))/float64(longest)
}
