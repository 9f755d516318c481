package normalizer

import (
	"image"
	"math"
	"sort"

	"github.com/Risbinrh/OMR-Service/internal/imgproc"
)

// cornerDetection is the outcome of one corner strategy. observed is the
// number of fiducials actually seen; when it is 3 the fourth corner in
// corners is reconstructed by parallelogram completion.
type cornerDetection struct {
	found      bool
	corners    [4]imgproc.Point
	observed   int
	regularity float64
	method     string
}

// detectCornersByContours looks for the solid square fiducial markers
// printed near the sheet corners. Markers are binarized globally, filtered
// by area, squareness and solidity, then the four candidates with the
// widest mutual spread are kept.
func detectCornersByContours(gray *image.Gray) cornerDetection {
	det := cornerDetection{method: "contour"}
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	minDim := math.Min(float64(w), float64(h))

	threshold := imgproc.OtsuThreshold(gray)
	bin := imgproc.BinarizeInv(gray, threshold)

	// Fiducials occupy roughly 2-6% of the short dimension.
	expected := 0.04 * minDim
	minArea := int(0.2 * expected * expected)
	maxArea := int(8 * expected * expected)
	if minArea < 16 {
		minArea = 16
	}

	center := imgproc.Point{
		X: float64(bounds.Min.X) + float64(w)/2,
		Y: float64(bounds.Min.Y) + float64(h)/2,
	}

	var candidates []imgproc.Component
	for _, c := range imgproc.FindComponents(bin, minArea, maxArea) {
		aspect := c.AspectRatio()
		if aspect < 0.4 || aspect > 2.5 {
			continue
		}
		if c.Extent() < 0.45 {
			continue
		}
		if c.Centroid.Dist(center) < 0.25*minDim {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) < 3 {
		return det
	}

	pts := selectSpread(candidates, center, 4)
	det.observed = len(pts)
	if det.observed == 3 {
		pts = append(pts, completeParallelogram(pts[0], pts[1], pts[2]))
	}
	copy(det.corners[:], pts)
	det.regularity = quadRegularity(det.corners)
	det.found = det.regularity >= 0.5
	return det
}

// selectSpread greedily picks up to n candidate centroids maximising
// pairwise spread, starting from the one furthest from the image center.
func selectSpread(candidates []imgproc.Component, center imgproc.Point, n int) []imgproc.Point {
	remaining := make([]imgproc.Point, len(candidates))
	for i, c := range candidates {
		remaining[i] = c.Centroid
	}
	sort.Slice(remaining, func(i, j int) bool {
		return remaining[i].Dist(center) > remaining[j].Dist(center)
	})

	chosen := []imgproc.Point{remaining[0]}
	remaining = remaining[1:]
	for len(chosen) < n && len(remaining) > 0 {
		bestIdx, bestScore := -1, -1.0
		for i, p := range remaining {
			minDist := math.MaxFloat64
			for _, q := range chosen {
				if d := p.Dist(q); d < minDist {
					minDist = d
				}
			}
			if minDist > bestScore {
				bestScore = minDist
				bestIdx = i
			}
		}
		// Candidates closer than a marker width to a chosen point are
		// duplicates of the same fiducial.
		if bestScore < 20 {
			break
		}
		chosen = append(chosen, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return chosen
}

// completeParallelogram reconstructs the fourth corner from three observed
// ones. The pivot is the vertex whose edges to the other two are closest
// to perpendicular; the missing corner sits diagonally opposite it.
func completeParallelogram(a, b, c imgproc.Point) imgproc.Point {
	pivotScore := func(p, q, r imgproc.Point) float64 {
		v1x, v1y := q.X-p.X, q.Y-p.Y
		v2x, v2y := r.X-p.X, r.Y-p.Y
		n1 := math.Hypot(v1x, v1y)
		n2 := math.Hypot(v2x, v2y)
		if n1 == 0 || n2 == 0 {
			return math.MaxFloat64
		}
		return math.Abs((v1x*v2x + v1y*v2y) / (n1 * n2))
	}

	sa := pivotScore(a, b, c)
	sb := pivotScore(b, a, c)
	sc := pivotScore(c, a, b)
	switch {
	case sa <= sb && sa <= sc:
		return imgproc.Point{X: b.X + c.X - a.X, Y: b.Y + c.Y - a.Y}
	case sb <= sa && sb <= sc:
		return imgproc.Point{X: a.X + c.X - b.X, Y: a.Y + c.Y - b.Y}
	default:
		return imgproc.Point{X: a.X + b.X - c.X, Y: a.Y + b.Y - c.Y}
	}
}

// detectCornersByLines recovers the sheet outline with a coarse Hough
// transform over edge pixels and intersects the outermost line in each of
// the two dominant orientation families.
func detectCornersByLines(gray *image.Gray) cornerDetection {
	det := cornerDetection{method: "line_intersection"}

	small, scale := downsample(gray, 600)
	edges := imgproc.EdgePoints(small, 110)
	if len(edges) < 50 {
		return det
	}

	lines := houghLines(edges, small.Bounds())
	if len(lines) < 4 {
		return det
	}

	bounds := small.Bounds()
	center := imgproc.Point{
		X: float64(bounds.Min.X) + float64(bounds.Dx())/2,
		Y: float64(bounds.Min.Y) + float64(bounds.Dy())/2,
	}

	// Split into two perpendicular families around the dominant angle.
	dominant := lines[0].theta
	var famA, famB []houghLine
	for _, l := range lines {
		if angularDist(l.theta, dominant) < math.Pi/4 {
			famA = append(famA, l)
		} else {
			famB = append(famB, l)
		}
	}
	if len(famA) < 2 || len(famB) < 2 {
		return det
	}

	a1, a2, ok1 := extremeLines(famA, center)
	b1, b2, ok2 := extremeLines(famB, center)
	if !ok1 || !ok2 {
		return det
	}

	corners := [4]imgproc.Point{}
	pairs := [4][2]houghLine{{a1, b1}, {a1, b2}, {a2, b2}, {a2, b1}}
	for i, pair := range pairs {
		p, ok := intersectLines(pair[0], pair[1])
		if !ok {
			return det
		}
		corners[i] = imgproc.Point{X: p.X / scale, Y: p.Y / scale}
	}

	det.corners = corners
	det.observed = 4
	det.regularity = quadRegularity(corners)
	det.found = det.regularity >= 0.5
	return det
}

type houghLine struct {
	theta float64 // [0, pi)
	rho   float64
	votes int
}

// houghLines accumulates edge points in (theta, rho) space and returns
// local maxima sorted by vote count.
func houghLines(edges []imgproc.Point, bounds image.Rectangle) []houghLine {
	const thetaBins = 180
	diag := math.Hypot(float64(bounds.Dx()), float64(bounds.Dy()))
	rhoRes := 2.0
	rhoBins := int(2*diag/rhoRes) + 1

	acc := make([]int, thetaBins*rhoBins)
	sinT := make([]float64, thetaBins)
	cosT := make([]float64, thetaBins)
	for t := 0; t < thetaBins; t++ {
		theta := float64(t) * math.Pi / thetaBins
		sinT[t] = math.Sin(theta)
		cosT[t] = math.Cos(theta)
	}

	step := 1
	if len(edges) > 20000 {
		step = len(edges) / 20000
	}
	for i := 0; i < len(edges); i += step {
		p := edges[i]
		for t := 0; t < thetaBins; t++ {
			rho := p.X*cosT[t] + p.Y*sinT[t]
			r := int((rho + diag) / rhoRes)
			if r >= 0 && r < rhoBins {
				acc[t*rhoBins+r]++
			}
		}
	}

	maxVotes := 0
	for _, v := range acc {
		if v > maxVotes {
			maxVotes = v
		}
	}
	if maxVotes == 0 {
		return nil
	}
	minVotes := maxVotes / 4

	var lines []houghLine
	for t := 0; t < thetaBins; t++ {
		for r := 0; r < rhoBins; r++ {
			v := acc[t*rhoBins+r]
			if v < minVotes {
				continue
			}
			if !isLocalMax(acc, thetaBins, rhoBins, t, r) {
				continue
			}
			lines = append(lines, houghLine{
				theta: float64(t) * math.Pi / thetaBins,
				rho:   float64(r)*rhoRes - diag,
				votes: v,
			})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].votes > lines[j].votes })
	if len(lines) > 24 {
		lines = lines[:24]
	}
	return lines
}

func isLocalMax(acc []int, thetaBins, rhoBins, t, r int) bool {
	v := acc[t*rhoBins+r]
	for dt := -2; dt <= 2; dt++ {
		for dr := -2; dr <= 2; dr++ {
			if dt == 0 && dr == 0 {
				continue
			}
			nt := (t + dt + thetaBins) % thetaBins
			nr := r + dr
			if nr < 0 || nr >= rhoBins {
				continue
			}
			if acc[nt*rhoBins+nr] > v {
				return false
			}
		}
	}
	return true
}

// extremeLines picks the two lines of a family on opposite sides of the
// image center, furthest from it.
func extremeLines(family []houghLine, center imgproc.Point) (houghLine, houghLine, bool) {
	var best, worst houghLine
	maxOff, minOff := -math.MaxFloat64, math.MaxFloat64
	for _, l := range family {
		off := l.rho - (center.X*math.Cos(l.theta) + center.Y*math.Sin(l.theta))
		if off > maxOff {
			maxOff = off
			best = l
		}
		if off < minOff {
			minOff = off
			worst = l
		}
	}
	if maxOff <= 0 || minOff >= 0 {
		return best, worst, false
	}
	return best, worst, true
}

func intersectLines(a, b houghLine) (imgproc.Point, bool) {
	det := math.Cos(a.theta)*math.Sin(b.theta) - math.Sin(a.theta)*math.Cos(b.theta)
	if math.Abs(det) < 1e-9 {
		return imgproc.Point{}, false
	}
	x := (a.rho*math.Sin(b.theta) - b.rho*math.Sin(a.theta)) / det
	y := (b.rho*math.Cos(a.theta) - a.rho*math.Cos(b.theta)) / det
	return imgproc.Point{X: x, Y: y}, true
}

func angularDist(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > math.Pi/2 {
		d = math.Pi - d
	}
	return d
}

// quadRegularity scores how close an unordered quadrilateral is to a
// rectangle: interior angles near 90 degrees and balanced opposite sides.
func quadRegularity(corners [4]imgproc.Point) float64 {
	ordered := orderQuad(corners)

	angleScore := 0.0
	for i := 0; i < 4; i++ {
		prev := ordered[(i+3)%4]
		cur := ordered[i]
		next := ordered[(i+1)%4]
		v1x, v1y := prev.X-cur.X, prev.Y-cur.Y
		v2x, v2y := next.X-cur.X, next.Y-cur.Y
		n1, n2 := math.Hypot(v1x, v1y), math.Hypot(v2x, v2y)
		if n1 == 0 || n2 == 0 {
			return 0
		}
		cos := (v1x*v2x + v1y*v2y) / (n1 * n2)
		angle := math.Acos(math.Max(-1, math.Min(1, cos))) * 180 / math.Pi
		angleScore += 1 - math.Min(1, math.Abs(angle-90)/45)
	}
	angleScore /= 4

	top := ordered[0].Dist(ordered[1])
	bottom := ordered[3].Dist(ordered[2])
	left := ordered[0].Dist(ordered[3])
	right := ordered[1].Dist(ordered[2])
	sideScore := sideBalance(top, bottom) * sideBalance(left, right)

	return angleScore * sideScore
}

func sideBalance(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	r := a / b
	if r > 1 {
		r = 1 / r
	}
	return r
}

// orderQuad orders four corners as top-left, top-right, bottom-right,
// bottom-left. The corners are sorted cyclically around their centroid
// with a fixed winding, then the cycle is started at the corner whose
// outgoing edge is the most horizontal rightward one. This stays correct
// for sheet rotations up to 45 degrees in either direction.
func orderQuad(corners [4]imgproc.Point) [4]imgproc.Point {
	var cx, cy float64
	for _, p := range corners {
		cx += p.X / 4
		cy += p.Y / 4
	}

	ordered := corners
	sort.Slice(ordered[:], func(i, j int) bool {
		return math.Atan2(ordered[i].Y-cy, ordered[i].X-cx) <
			math.Atan2(ordered[j].Y-cy, ordered[j].X-cx)
	})

	// Shoelace sign fixes the winding so traversal runs TL, TR, BR, BL.
	var area float64
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		area += ordered[i].X*ordered[j].Y - ordered[j].X*ordered[i].Y
	}
	if area < 0 {
		ordered[0], ordered[3] = ordered[3], ordered[0]
		ordered[1], ordered[2] = ordered[2], ordered[1]
	}

	start := 0
	for i := 0; i < 4; i++ {
		next := ordered[(i+1)%4]
		phi := math.Atan2(next.Y-ordered[i].Y, next.X-ordered[i].X) * 180 / math.Pi
		if phi > -45 && phi <= 45 {
			start = i
			break
		}
	}

	var out [4]imgproc.Point
	for i := 0; i < 4; i++ {
		out[i] = ordered[(start+i)%4]
	}
	return out
}
