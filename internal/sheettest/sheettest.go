// Package sheettest renders synthetic answer sheet images for tests.
// Sheets are drawn the way the printed template looks: corner fiducials,
// a header band, and blocks of option bubbles with selected marks filled.
package sheettest

import (
	"image"
	"image/color"
	"math"
)

// Spec describes the synthetic sheet to render. The zero value is not
// usable; start from DefaultSpec.
type Spec struct {
	Width, Height int
	Rows          int // questions per block
	Blocks        int
	Options       int

	MarkerSize   int
	BubbleRadius int

	GridTop      int
	BlockLeft    int
	ColSpacing   int
	RowSpacing   int
	BlockSpacing int

	// Marked maps question number to the option indices filled in. More
	// than one index renders a multiple mark; an absent entry leaves the
	// question blank.
	Marked map[int][]int

	// HeaderBand draws the dark exam header strip near the top edge.
	HeaderBand bool
}

// DefaultSpec is a 2-block, 25-row, 5-option sheet: 50 questions on a
// 1000x1400 canvas.
func DefaultSpec() Spec {
	return Spec{
		Width:        1000,
		Height:       1400,
		Rows:         25,
		Blocks:       2,
		Options:      5,
		MarkerSize:   40,
		BubbleRadius: 12,
		GridTop:      320,
		BlockLeft:    120,
		ColSpacing:   44,
		RowSpacing:   40,
		BlockSpacing: 420,
		Marked:       map[int][]int{},
		HeaderBand:   true,
	}
}

// MarkAll fills option (question-1) mod Options for every question,
// giving a spread answer pattern.
func (s *Spec) MarkAll() {
	total := s.Rows * s.Blocks
	for q := 1; q <= total; q++ {
		s.Marked[q] = []int{(q - 1) % s.Options}
	}
}

// MarkSame fills the same option index for every question.
func (s *Spec) MarkSame(option int) {
	total := s.Rows * s.Blocks
	for q := 1; q <= total; q++ {
		s.Marked[q] = []int{option}
	}
}

// CellCenter returns the pixel center of (question, option index).
func (s Spec) CellCenter(question, option int) (int, int) {
	block := (question - 1) / s.Rows
	row := (question - 1) % s.Rows
	x := s.BlockLeft + block*s.BlockSpacing + option*s.ColSpacing
	y := s.GridTop + row*s.RowSpacing
	return x, y
}

// TotalQuestions returns the number of questions the sheet renders.
func (s Spec) TotalQuestions() int {
	return s.Rows * s.Blocks
}

// Render draws the sheet.
func Render(s Spec) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, s.Width, s.Height))
	for i := range img.Pix {
		img.Pix[i] = 250
	}

	// Corner fiducials inset from each edge.
	const inset = 40
	fillRect(img, inset, inset, s.MarkerSize)
	fillRect(img, s.Width-inset-s.MarkerSize, inset, s.MarkerSize)
	fillRect(img, inset, s.Height-inset-s.MarkerSize, s.MarkerSize)
	fillRect(img, s.Width-inset-s.MarkerSize, s.Height-inset-s.MarkerSize, s.MarkerSize)

	if s.HeaderBand {
		drawBand(img, s.Width/5, 120, s.Width*3/5, 26)
	}

	for q := 1; q <= s.TotalQuestions(); q++ {
		marked := map[int]bool{}
		for _, o := range s.Marked[q] {
			marked[o] = true
		}
		for o := 0; o < s.Options; o++ {
			cx, cy := s.CellCenter(q, o)
			if marked[o] {
				fillDisk(img, cx, cy, s.BubbleRadius)
			} else {
				drawRing(img, cx, cy, s.BubbleRadius)
			}
		}
	}
	return img
}

func fillRect(img *image.Gray, x, y, size int) {
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			img.SetGray(x+dx, y+dy, color.Gray{})
		}
	}
}

func drawBand(img *image.Gray, x, y, w, h int) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			img.SetGray(x+dx, y+dy, color.Gray{})
		}
	}
}

func fillDisk(img *image.Gray, cx, cy, r int) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				img.SetGray(cx+dx, cy+dy, color.Gray{})
			}
		}
	}
}

func drawRing(img *image.Gray, cx, cy, r int) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			d := math.Hypot(float64(dx), float64(dy))
			if d <= float64(r) && d >= float64(r)-2 {
				img.SetGray(cx+dx, cy+dy, color.Gray{})
			}
		}
	}
}
