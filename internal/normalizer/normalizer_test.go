package normalizer

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/Risbinrh/OMR-Service/internal/imgproc"
	"github.com/Risbinrh/OMR-Service/internal/sheettest"
)

func TestNormalizeCleanSheet(t *testing.T) {
	spec := sheettest.DefaultSpec()
	spec.MarkAll()
	sheet := sheettest.Render(spec)

	n := New(AdvancedOptions())
	res, err := n.Normalize(sheet)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if res.Meta.CornersDetected != 4 {
		t.Errorf("corners detected = %d, want 4", res.Meta.CornersDetected)
	}
	if math.Abs(res.Meta.SkewAngleDegrees) > 2 {
		t.Errorf("skew = %f degrees, want near 0", res.Meta.SkewAngleDegrees)
	}
	if res.Gray == nil || res.Gray.Bounds().Dx() == 0 {
		t.Fatal("normalized image is empty")
	}
}

func TestNormalizeRotatedSheet(t *testing.T) {
	spec := sheettest.DefaultSpec()
	spec.MarkAll()
	sheet := sheettest.Render(spec)

	const angle = 8.0
	rotated := imaging.Rotate(sheet, angle, color.Gray{Y: 245})

	n := New(AdvancedOptions())
	res, err := n.Normalize(rotated)
	if err != nil {
		t.Fatalf("Normalize of rotated sheet failed: %v", err)
	}
	if res.Meta.CornersDetected < 3 {
		t.Errorf("corners detected = %d, want at least 3", res.Meta.CornersDetected)
	}
	if !res.Meta.RotationCorrected && !res.Meta.PerspectiveCorrected {
		t.Error("rotated input should report a geometric correction")
	}
	if got := math.Abs(res.Meta.SkewAngleDegrees); math.Abs(got-angle) > 2.5 {
		t.Errorf("skew magnitude = %f, want about %f", got, angle)
	}
}

func TestNormalizeSidewaysSheetComesOutUpright(t *testing.T) {
	spec := sheettest.DefaultSpec()
	sheet := imaging.Rotate90(sheettest.Render(spec))

	n := New(AdvancedOptions())
	res, err := n.Normalize(sheet)
	if err != nil {
		t.Fatalf("Normalize failed on a sideways photograph: %v", err)
	}
	b := res.Gray.Bounds()
	if b.Dx() >= b.Dy() {
		t.Errorf("normalized sheet is %dx%d, want portrait", b.Dx(), b.Dy())
	}
	if res.Meta.CornersDetected != 4 {
		t.Errorf("corners detected = %d, want 4", res.Meta.CornersDetected)
	}
}

func TestNormalizeBrightPaperStillProcessable(t *testing.T) {
	// Pure-white paper pushes the global mean past the overexposure
	// band, but the ink tail leaves plenty for the contrast stretch.
	spec := sheettest.DefaultSpec()
	sheet := sheettest.Render(spec)
	for i, v := range sheet.Pix {
		if v >= 250 {
			sheet.Pix[i] = 255
		}
	}

	n := New(AdvancedOptions())
	res, err := n.Normalize(sheet)
	if err != nil {
		t.Fatalf("Normalize rejected a readable bright sheet: %v", err)
	}
	if res.Meta.CornersDetected != 4 {
		t.Errorf("corners detected = %d, want 4", res.Meta.CornersDetected)
	}
}

func TestNormalizeRejectsOverexposedImage(t *testing.T) {
	// A genuinely clipped photograph: even the dark tail is near-white.
	img := image.NewGray(image.Rect(0, 0, 900, 1200))
	for i := range img.Pix {
		img.Pix[i] = 246 + uint8(i%8)
	}
	n := New(AdvancedOptions())
	if _, err := n.Normalize(img); err == nil {
		t.Error("expected quality error for a clipped image")
	}
}

func TestNormalizeRejectsTinyImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 120, 90))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	n := New(AdvancedOptions())
	if _, err := n.Normalize(img); err == nil {
		t.Error("expected quality error for an image below the processable floor")
	}
}

func TestNormalizePageWithoutMarkers(t *testing.T) {
	// Text-like strokes give the page enough contrast to pass the quality
	// floor, but nothing shaped like a fiducial.
	img := image.NewGray(image.Rect(0, 0, 900, 1200))
	for i := range img.Pix {
		img.Pix[i] = 245
	}
	for line := 0; line < 30; line++ {
		y := 100 + line*35
		for x := 100; x < 800; x++ {
			img.SetGray(x, y, color.Gray{Y: 20})
			img.SetGray(x, y+1, color.Gray{Y: 20})
		}
	}
	n := New(Options{})
	if _, err := n.Normalize(img); err == nil {
		t.Error("expected an error when no corner markers exist")
	}
}

func TestQualityMetaLabels(t *testing.T) {
	spec := sheettest.DefaultSpec()
	sheet := sheettest.Render(spec)

	n := New(BasicOptions())
	res, err := n.Normalize(sheet)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if res.Meta.ResolutionLabel == "" || res.Meta.BrightnessLabel == "" {
		t.Error("quality labels should be populated")
	}
	if res.Meta.Quality.Brightness <= 0 || res.Meta.Quality.Contrast <= 0 {
		t.Errorf("quality metrics = %+v, want positive brightness and contrast", res.Meta.Quality)
	}
}

func TestOrderQuadAxisAligned(t *testing.T) {
	corners := [4]imgproc.Point{
		{X: 900, Y: 100}, {X: 100, Y: 1100},
		{X: 100, Y: 100}, {X: 900, Y: 1100},
	}
	ordered := orderQuad(corners)
	want := [4]imgproc.Point{
		{X: 100, Y: 100}, {X: 900, Y: 100},
		{X: 900, Y: 1100}, {X: 100, Y: 1100},
	}
	for i := range want {
		if ordered[i].Dist(want[i]) > 1 {
			t.Errorf("corner %d = %+v, want %+v", i, ordered[i], want[i])
		}
	}
}

func TestOrderQuadMildRotation(t *testing.T) {
	// A rectangle rotated by 20 degrees must keep its top-left corner
	// first in the ordering.
	base := [4]imgproc.Point{
		{X: -400, Y: -500}, {X: 400, Y: -500},
		{X: 400, Y: 500}, {X: -400, Y: 500},
	}
	rad := 20 * math.Pi / 180
	var rotated [4]imgproc.Point
	for i, p := range base {
		rotated[(i+2)%4] = imgproc.Point{
			X: p.X*math.Cos(rad) - p.Y*math.Sin(rad) + 600,
			Y: p.X*math.Sin(rad) + p.Y*math.Cos(rad) + 700,
		}
	}
	ordered := orderQuad(rotated)
	// Top-left corner of the rotated rectangle is the image of base[0].
	wantFirst := imgproc.Point{
		X: base[0].X*math.Cos(rad) - base[0].Y*math.Sin(rad) + 600,
		Y: base[0].X*math.Sin(rad) + base[0].Y*math.Cos(rad) + 700,
	}
	if ordered[0].Dist(wantFirst) > 1 {
		t.Errorf("first corner = %+v, want %+v", ordered[0], wantFirst)
	}
}

func TestCompleteParallelogram(t *testing.T) {
	// Three corners of a rectangle: the fourth must land on the missing
	// vertex.
	fourth := completeParallelogram(
		imgproc.Point{X: 900, Y: 100},
		imgproc.Point{X: 100, Y: 100},
		imgproc.Point{X: 100, Y: 1100},
	)
	if math.Abs(fourth.X-900) > 1 || math.Abs(fourth.Y-1100) > 1 {
		t.Errorf("completed corner = (%f, %f), want (900, 1100)", fourth.X, fourth.Y)
	}
}

func TestHomographyIdentity(t *testing.T) {
	quad := [4]imgproc.Point{
		{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 200}, {X: 0, Y: 200},
	}
	h, err := computeHomography(quad, quad)
	if err != nil {
		t.Fatalf("computeHomography failed: %v", err)
	}
	p := h.apply(imgproc.Point{X: 37, Y: 91})
	if math.Abs(p.X-37) > 0.01 || math.Abs(p.Y-91) > 0.01 {
		t.Errorf("identity homography moved point to (%f, %f)", p.X, p.Y)
	}
}
