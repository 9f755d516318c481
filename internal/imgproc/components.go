package imgproc

import (
	"image"
	"math"
)

// Component is a 4-connected region of ink pixels in a binary image.
type Component struct {
	Area     int
	Bounds   image.Rectangle
	Centroid Point
}

// AspectRatio returns width over height of the bounding box.
func (c Component) AspectRatio() float64 {
	h := c.Bounds.Dy()
	if h == 0 {
		return 0
	}
	return float64(c.Bounds.Dx()) / float64(h)
}

// Extent returns the fraction of the bounding box the component fills. A
// filled disk scores around 0.78, a filled square around 1.0, a thin ring
// or line much lower.
func (c Component) Extent() float64 {
	box := c.Bounds.Dx() * c.Bounds.Dy()
	if box == 0 {
		return 0
	}
	return float64(c.Area) / float64(box)
}

// Circularity compares the component area against the circle inscribed in
// its bounding box. 1.0 means the shape fills an inscribed circle exactly.
func (c Component) Circularity() float64 {
	d := math.Min(float64(c.Bounds.Dx()), float64(c.Bounds.Dy()))
	if d <= 0 {
		return 0
	}
	ideal := math.Pi * d * d / 4
	ratio := float64(c.Area) / ideal
	if ratio > 1 {
		ratio = 1 / ratio
	}
	return ratio
}

// FindComponents labels 4-connected ink regions (value > 0) in a binary
// image and returns those whose pixel area falls within [minArea, maxArea].
func FindComponents(bin *image.Gray, minArea, maxArea int) []Component {
	bounds := bin.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	visited := make([]bool, w*h)
	var comps []Component

	idx := func(x, y int) int {
		return (y-bounds.Min.Y)*w + (x - bounds.Min.X)
	}

	stack := make([]image.Point, 0, 256)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if visited[idx(x, y)] || bin.GrayAt(x, y).Y == 0 {
				continue
			}

			area := 0
			var sumX, sumY float64
			box := image.Rectangle{Min: image.Pt(x, y), Max: image.Pt(x+1, y+1)}
			stack = stack[:0]
			stack = append(stack, image.Pt(x, y))
			visited[idx(x, y)] = true

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				area++
				sumX += float64(p.X)
				sumY += float64(p.Y)
				box = box.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})

				for _, d := range [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					q := p.Add(d)
					if !q.In(bounds) || visited[idx(q.X, q.Y)] || bin.GrayAt(q.X, q.Y).Y == 0 {
						continue
					}
					visited[idx(q.X, q.Y)] = true
					stack = append(stack, q)
				}
			}

			if area < minArea || (maxArea > 0 && area > maxArea) {
				continue
			}
			comps = append(comps, Component{
				Area:     area,
				Bounds:   box,
				Centroid: Point{X: sumX / float64(area), Y: sumY / float64(area)},
			})
		}
	}
	return comps
}
