// Package vision provides the pixel-level analysis used by the fallback
// chain: an edge-strength map, extraction of contiguous edge regions, and
// rule-of-thirds activity scoring.
package vision

import (
	"fmt"
	"image"
	"math"
)

// EdgeDetector computes edge maps and extracts prominent regions from them.
type EdgeDetector struct {
	config EdgeConfig
}

// EdgeConfig holds thresholds for edge and region extraction.
type EdgeConfig struct {
	// EdgeThreshold is the minimum normalized gradient magnitude ([0,1]) for
	// a pixel to count as an edge.
	EdgeThreshold float64
	// MinRegionAreaRatio filters regions smaller than this fraction of the
	// frame area.
	MinRegionAreaRatio float64
	// MinAspect and MaxAspect bound a region's width/height ratio; regions
	// outside are thin noise edges.
	MinAspect float64
	MaxAspect float64
	// ThirdsWindow is the side length in pixels of the neighborhood sampled
	// around each rule-of-thirds intersection.
	ThirdsWindow int
}

// DefaultEdgeConfig returns the thresholds used when none are supplied.
func DefaultEdgeConfig() EdgeConfig {
	return EdgeConfig{
		EdgeThreshold:      0.15,
		MinRegionAreaRatio: 0.005,
		MinAspect:          0.3,
		MaxAspect:          3.0,
		ThirdsWindow:       100,
	}
}

// NewEdgeDetector creates an EdgeDetector with default configuration.
func NewEdgeDetector() *EdgeDetector {
	return &EdgeDetector{config: DefaultEdgeConfig()}
}

// NewEdgeDetectorWithConfig creates an EdgeDetector with custom thresholds.
func NewEdgeDetectorWithConfig(config EdgeConfig) *EdgeDetector {
	return &EdgeDetector{config: config}
}

// EdgeMap holds per-pixel edge strength in [0,1] for one frame.
type EdgeMap struct {
	Width    int
	Height   int
	strength []float64
}

// At returns the edge strength at (x, y); zero outside the map.
func (m *EdgeMap) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.strength[y*m.Width+x]
}

// Region is a contiguous edge region with its bounding box in pixels.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Area   int
}

// Center returns the center point of the region's bounding box.
func (r Region) Center() (float64, float64) {
	return float64(r.X) + float64(r.Width)/2, float64(r.Y) + float64(r.Height)/2
}

// BuildEdgeMap computes a gradient-magnitude edge map from the image using a
// Sobel operator over luminance. Fails on nil or zero-area images.
func (d *EdgeDetector) BuildEdgeMap(img image.Image) (*EdgeMap, error) {
	if img == nil {
		return nil, fmt.Errorf("vision: nil image")
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("vision: zero-area image %dx%d", w, h)
	}

	lum := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// Rec. 601 luma, 16-bit channels scaled to [0,1].
			lum[y*w+x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535.0
		}
	}

	m := &EdgeMap{Width: w, Height: h, strength: make([]float64, w*h)}
	at := func(x, y int) float64 {
		if x < 0 {
			x = 0
		} else if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		} else if y >= h {
			y = h - 1
		}
		return lum[y*w+x]
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) +
				at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			// Sobel magnitude maxes out at 4*sqrt(2) on unit luminance.
			m.strength[y*w+x] = math.Min(1, math.Hypot(gx, gy)/(4*math.Sqrt2))
		}
	}

	return m, nil
}

// ProminentRegions extracts contiguous edge regions from the map, filters
// them by area and aspect ratio, and returns them ordered largest first.
// Ties are broken by position so the result is deterministic.
func (d *EdgeDetector) ProminentRegions(m *EdgeMap) []Region {
	frameArea := float64(m.Width * m.Height)
	minArea := d.config.MinRegionAreaRatio * frameArea

	visited := make([]bool, m.Width*m.Height)
	var regions []Region

	// Scan order is fixed, so region discovery order is stable.
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			idx := y*m.Width + x
			if visited[idx] || m.strength[idx] < d.config.EdgeThreshold {
				continue
			}
			region := d.floodRegion(m, visited, x, y)

			if float64(region.Width*region.Height) < minArea {
				continue
			}
			aspect := float64(region.Width) / float64(region.Height)
			if aspect < d.config.MinAspect || aspect > d.config.MaxAspect {
				continue
			}
			regions = append(regions, region)
		}
	}

	sortRegions(regions)
	return regions
}

// floodRegion grows a region from (x, y) across 8-connected edge pixels.
func (d *EdgeDetector) floodRegion(m *EdgeMap, visited []bool, x, y int) Region {
	minX, maxX := x, x
	minY, maxY := y, y
	area := 0

	stack := []int{y*m.Width + x}
	visited[y*m.Width+x] = true

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		px, py := idx%m.Width, idx/m.Width
		area++

		if px < minX {
			minX = px
		}
		if px > maxX {
			maxX = px
		}
		if py < minY {
			minY = py
		}
		if py > maxY {
			maxY = py
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := px+dx, py+dy
				if nx < 0 || ny < 0 || nx >= m.Width || ny >= m.Height {
					continue
				}
				nidx := ny*m.Width + nx
				if visited[nidx] || m.strength[nidx] < d.config.EdgeThreshold {
					continue
				}
				visited[nidx] = true
				stack = append(stack, nidx)
			}
		}
	}

	return Region{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1, Area: area}
}

func sortRegions(regions []Region) {
	for i := 0; i < len(regions)-1; i++ {
		for j := i + 1; j < len(regions); j++ {
			a, b := regions[i], regions[j]
			aArea := a.Width * a.Height
			bArea := b.Width * b.Height
			if bArea > aArea || (bArea == aArea && (b.Y < a.Y || (b.Y == a.Y && b.X < a.X))) {
				regions[i], regions[j] = regions[j], regions[i]
			}
		}
	}
}

// ThirdsPoint is one rule-of-thirds intersection with its edge activity.
type ThirdsPoint struct {
	X        float64
	Y        float64
	Activity float64
}

// ThirdsActivity evaluates the four rule-of-thirds intersections by summing
// edge strength in a fixed-size window around each. Points come back in a
// fixed order (top-left, top-right, bottom-left, bottom-right).
func (d *EdgeDetector) ThirdsActivity(m *EdgeMap) []ThirdsPoint {
	fw, fh := float64(m.Width), float64(m.Height)
	coords := [4][2]float64{
		{fw / 3, fh / 3},
		{2 * fw / 3, fh / 3},
		{fw / 3, 2 * fh / 3},
		{2 * fw / 3, 2 * fh / 3},
	}

	half := d.config.ThirdsWindow / 2
	points := make([]ThirdsPoint, 0, 4)
	for _, c := range coords {
		cx, cy := int(c[0]), int(c[1])
		sum := 0.0
		for y := cy - half; y < cy+half; y++ {
			for x := cx - half; x < cx+half; x++ {
				sum += m.At(x, y)
			}
		}
		points = append(points, ThirdsPoint{X: c[0], Y: c[1], Activity: sum})
	}
	return points
}

// BestThirdsPoint returns the intersection with the highest activity and
// whether any activity was found at all. On equal activity the earlier point
// in the fixed order wins.
func (d *EdgeDetector) BestThirdsPoint(m *EdgeMap) (ThirdsPoint, bool) {
	points := d.ThirdsActivity(m)
	best := points[0]
	for _, p := range points[1:] {
		if p.Activity > best.Activity {
			best = p
		}
	}
	return best, best.Activity > 0
}
