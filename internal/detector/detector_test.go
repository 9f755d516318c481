package detector

import (
	"math"
	"testing"

	"github.com/Risbinrh/OMR-Service/internal/layout"
	"github.com/Risbinrh/OMR-Service/internal/sheettest"
)

func resolveFixture(t *testing.T, spec sheettest.Spec) (*layout.Layout, *sheettest.Spec) {
	t.Helper()
	sheet := sheettest.Render(spec)
	grid, err := layout.New(layout.DefaultOptions()).Resolve(sheet)
	if err != nil {
		t.Fatalf("layout resolve failed: %v", err)
	}
	return grid, &spec
}

func TestFuseWeights(t *testing.T) {
	got := fuse(1, 1, 1, 1, 1)
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("fuse of all ones = %f, want 1", got)
	}
	got = fuse(1, 0, 0, 0, 0)
	if math.Abs(got-0.30) > 1e-9 {
		t.Errorf("fill-only fusion = %f, want 0.30", got)
	}
	got = fuse(0, 1, 1, 0, 0)
	if math.Abs(got-0.40) > 1e-9 {
		t.Errorf("intensity+edge fusion = %f, want 0.40", got)
	}
	got = fuse(0, 0, 0, 1, 1)
	if math.Abs(got-0.30) > 1e-9 {
		t.Errorf("template+contour fusion = %f, want 0.30", got)
	}
}

func TestDetectSeparatesFilledFromEmpty(t *testing.T) {
	spec := sheettest.DefaultSpec()
	spec.MarkAll()
	sheet := sheettest.Render(spec)
	grid, _ := resolveFixture(t, spec)

	d := New(ModeAdvanced, 4)
	signals := d.Detect(sheet, grid)
	if len(signals) != spec.TotalQuestions() {
		t.Fatalf("got signals for %d questions, want %d", len(signals), spec.TotalQuestions())
	}

	for _, qs := range signals {
		markedIdx := (qs.Number - 1) % spec.Options
		for i, cell := range qs.Cells {
			if i == markedIdx {
				if cell.CombinedScore < 0.5 {
					t.Errorf("question %d marked option score = %f, want >= 0.5",
						qs.Number, cell.CombinedScore)
				}
			} else if cell.CombinedScore > 0.35 {
				t.Errorf("question %d empty option %d score = %f, want < 0.35",
					qs.Number, i, cell.CombinedScore)
			}
		}
	}
}

func TestDetectDeterministicAcrossWorkerCounts(t *testing.T) {
	spec := sheettest.DefaultSpec()
	spec.MarkAll()
	sheet := sheettest.Render(spec)
	grid, _ := resolveFixture(t, spec)

	serial := New(ModeAdvanced, 1).Detect(sheet, grid)
	parallel := New(ModeAdvanced, 8).Detect(sheet, grid)
	if len(serial) != len(parallel) {
		t.Fatalf("lengths differ: %d vs %d", len(serial), len(parallel))
	}
	for i := range serial {
		if serial[i].Number != parallel[i].Number {
			t.Fatalf("question order differs at %d", i)
		}
		for j := range serial[i].Cells {
			if serial[i].Cells[j].CombinedScore != parallel[i].Cells[j].CombinedScore {
				t.Errorf("scores differ for question %d cell %d", serial[i].Number, j)
			}
		}
	}
}

func TestBasicModeUsesFillOnly(t *testing.T) {
	spec := sheettest.DefaultSpec()
	spec.Marked[1] = []int{2}
	sheet := sheettest.Render(spec)
	grid, _ := resolveFixture(t, spec)

	signals := New(ModeBasic, 2).Detect(sheet, grid)
	cell := signals[0].Cells[2]
	if cell.CombinedScore != cell.FillRatio {
		t.Errorf("basic mode combined = %f, fill = %f, want equal",
			cell.CombinedScore, cell.FillRatio)
	}
	if cell.TemplateScore != 0 || cell.EdgeScore != 0 {
		t.Error("basic mode should not compute auxiliary signals")
	}
	if cell.FillRatio < 0.5 {
		t.Errorf("marked cell fill ratio = %f, want >= 0.5", cell.FillRatio)
	}
}

func TestFlattenPreservesOrder(t *testing.T) {
	spec := sheettest.DefaultSpec()
	sheet := sheettest.Render(spec)
	grid, _ := resolveFixture(t, spec)

	signals := New(ModeAdvanced, 2).Detect(sheet, grid)
	flat := Flatten(signals)
	if len(flat) != spec.TotalQuestions()*spec.Options {
		t.Fatalf("flattened %d cells, want %d", len(flat), spec.TotalQuestions()*spec.Options)
	}
	if flat[0].QuestionNumber != 1 || flat[len(flat)-1].QuestionNumber != spec.TotalQuestions() {
		t.Error("flattened signals out of question order")
	}
}

func TestMultipleMarksBothScoreHigh(t *testing.T) {
	spec := sheettest.DefaultSpec()
	spec.Marked[5] = []int{1, 3}
	sheet := sheettest.Render(spec)
	grid, _ := resolveFixture(t, spec)

	signals := New(ModeAdvanced, 2).Detect(sheet, grid)
	cells := signals[4].Cells
	if cells[1].CombinedScore < 0.5 || cells[3].CombinedScore < 0.5 {
		t.Errorf("double-marked cells scored %f and %f, want both >= 0.5",
			cells[1].CombinedScore, cells[3].CombinedScore)
	}
}
