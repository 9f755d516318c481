package ocr

import (
	"image"
	"math"
	"testing"

	"github.com/Risbinrh/OMR-Service/pkg/models"
)

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"midterm exam 2026", "midterm exam 2026", 1},
		{"", "", 0},
		{"abcd", "abce", 0.75},
		{"exam", "", 0},
	}
	for _, c := range cases {
		if got := similarity(c.a, c.b); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("similarity(%q, %q) = %f, want %f", c.a, c.b, got, c.want)
		}
	}
}

func TestSimilaritySmallTypoStillMatches(t *testing.T) {
	got := similarity("physics final examination", "physics final examinatlon")
	if got < matchSimilarity {
		t.Errorf("one-character OCR error gives %f, want >= %f", got, matchSimilarity)
	}
}

func TestVerifyHeaderDisabled(t *testing.T) {
	v := New(false)
	if v.Enabled() {
		t.Error("verifier should report disabled")
	}
	img := image.NewGray(image.Rect(0, 0, 400, 400))
	check, err := v.VerifyHeader(img, models.ExamMetadata{ExamID: "MID-2026"})
	if err != nil {
		t.Fatalf("VerifyHeader failed: %v", err)
	}
	if check != nil {
		t.Error("disabled verifier should return no check")
	}
}
