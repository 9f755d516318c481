package validation

import (
	"strconv"
	"testing"

	apperrors "github.com/Risbinrh/OMR-Service/internal/errors"
)

func TestParseAnswerKeyValid(t *testing.T) {
	key, appErr := ParseAnswerKey(map[string]string{
		"1": "A", "2": "b", "3": " C ", "10": "D",
	})
	if appErr != nil {
		t.Fatalf("ParseAnswerKey failed: %v", appErr)
	}
	if len(key) != 4 {
		t.Fatalf("key has %d entries, want 4", len(key))
	}
	if key[2] != "B" {
		t.Errorf("lowercase option = %q, want normalized B", key[2])
	}
	if key[3] != "C" {
		t.Errorf("padded option = %q, want trimmed C", key[3])
	}
}

func TestParseAnswerKeyRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]string
	}{
		{"empty", map[string]string{}},
		{"bad question number", map[string]string{"abc": "A"}},
		{"zero question number", map[string]string{"0": "A"}},
		{"negative question number", map[string]string{"-3": "A"}},
		{"unknown option", map[string]string{"1": "F"}},
		{"empty option", map[string]string{"1": ""}},
	}
	for _, c := range cases {
		_, appErr := ParseAnswerKey(c.raw)
		if appErr == nil {
			t.Errorf("%s: expected an error", c.name)
			continue
		}
		if appErr.Code != apperrors.CodeInvalidAnswerKey {
			t.Errorf("%s: code = %q, want %q", c.name, appErr.Code, apperrors.CodeInvalidAnswerKey)
		}
	}
}

func TestParseAnswerKeyTooLarge(t *testing.T) {
	raw := make(map[string]string, MaxQuestions+1)
	for i := 1; i <= MaxQuestions+1; i++ {
		raw[strconv.Itoa(i)] = "A"
	}
	if _, appErr := ParseAnswerKey(raw); appErr == nil {
		t.Error("expected an error for an oversized key")
	}
}

func TestSortedQuestions(t *testing.T) {
	key, _ := ParseAnswerKey(map[string]string{"3": "A", "1": "B", "2": "C"})
	nums := SortedQuestions(key)
	for i, want := range []int{1, 2, 3} {
		if nums[i] != want {
			t.Errorf("position %d = %d, want %d", i, nums[i], want)
		}
	}
}

func TestBrightnessLabel(t *testing.T) {
	cases := []struct {
		mean float64
		want string
	}{
		{50, "dark"}, {99.9, "dark"}, {100, "normal"}, {150, "normal"},
		{200, "normal"}, {201, "bright"},
	}
	for _, c := range cases {
		if got := BrightnessLabel(c.mean); got != c.want {
			t.Errorf("BrightnessLabel(%f) = %q, want %q", c.mean, got, c.want)
		}
	}
}

func TestContrastLabel(t *testing.T) {
	cases := []struct {
		std  float64
		want string
	}{
		{10, "low"}, {30, "normal"}, {60, "normal"}, {81, "high"},
	}
	for _, c := range cases {
		if got := ContrastLabel(c.std); got != c.want {
			t.Errorf("ContrastLabel(%f) = %q, want %q", c.std, got, c.want)
		}
	}
}

func TestResolutionLabel(t *testing.T) {
	cases := []struct {
		w, h int
		want string
	}{
		{640, 480, "low"}, {800, 599, "low"}, {800, 600, "adequate"},
		{1280, 960, "adequate"}, {1600, 1200, "high"}, {1600, 1199, "adequate"},
	}
	for _, c := range cases {
		if got := ResolutionLabel(c.w, c.h); got != c.want {
			t.Errorf("ResolutionLabel(%d, %d) = %q, want %q", c.w, c.h, got, c.want)
		}
	}
}

func TestOverallQualityLabel(t *testing.T) {
	if got := OverallQualityLabel(150, 60, 1600, 1200); got != "excellent" {
		t.Errorf("all bands normal = %q, want excellent", got)
	}
	if got := OverallQualityLabel(50, 10, 640, 480); got != "poor" {
		t.Errorf("all bands out = %q, want poor", got)
	}
	if got := OverallQualityLabel(150, 60, 640, 480); got != "good" {
		t.Errorf("two bands normal = %q, want good", got)
	}
}

func TestProcessable(t *testing.T) {
	if ok, _ := Processable(10, 250, 1000, 1400); !ok {
		t.Error("healthy image should be processable")
	}
	// A bright photograph whose dark tail still carries ink is
	// recoverable by contrast stretching.
	if ok, _ := Processable(30, 252, 1000, 1400); !ok {
		t.Error("bright but readable image should be processable")
	}
	cases := []struct {
		name                 string
		darkTail, brightTail float64
		width, height        int
	}{
		{"too small", 10, 250, 200, 150},
		{"too dark", 0, 25, 1000, 1400},
		{"overexposed", 245, 252, 1000, 1400},
		{"flat", 120, 150, 1000, 1400},
	}
	for _, c := range cases {
		ok, reason := Processable(c.darkTail, c.brightTail, c.width, c.height)
		if ok {
			t.Errorf("%s: expected not processable", c.name)
		}
		if reason == "" {
			t.Errorf("%s: expected a reason", c.name)
		}
	}
}
