package engine

import (
	"image"
	"image/color"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/Candseven88/3D-Logo-Maker/internal/utils"
	"github.com/Candseven88/3D-Logo-Maker/pkg/preset"
	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

// swatch is one distinct colour of the image and how many pixels use it.
type swatch struct {
	c   [3]uint8
	key uint32
	n   int
}

func packRGB(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// prepare applies the optional selective blur and grayscale conversion and
// returns the image the palette and masks are built from.
func prepare(data *types.ImageData, p preset.Parameters) *image.NRGBA {
	img := &image.NRGBA{
		Pix:    append([]uint8(nil), data.Data...),
		Stride: data.Width * 4,
		Rect:   image.Rect(0, 0, data.Width, data.Height),
	}

	if p.BlurRadius > 0 {
		blurred := imaging.Blur(img, float64(p.BlurRadius))
		// Pixels on strong edges keep their original value.
		for i := 0; i < len(img.Pix); i += 4 {
			delta := 0
			for k := 0; k < 4; k++ {
				delta += utils.Abs(int(img.Pix[i+k]) - int(blurred.Pix[i+k]))
			}
			if float64(delta) <= p.BlurDelta {
				copy(img.Pix[i:i+4], blurred.Pix[i:i+4])
			}
		}
	}

	if p.ColorSampling == preset.SamplingGrayscale {
		img = imaging.Grayscale(img)
	}
	return img
}

// histogram collects the distinct colours of img in a deterministic order.
func histogram(img *image.NRGBA) []swatch {
	counts := make(map[uint32]int)
	for i := 0; i < len(img.Pix); i += 4 {
		counts[packRGB(img.Pix[i], img.Pix[i+1], img.Pix[i+2])]++
	}

	hist := make([]swatch, 0, len(counts))
	for key, n := range counts {
		hist = append(hist, swatch{
			c:   [3]uint8{uint8(key >> 16), uint8(key >> 8), uint8(key)},
			key: key,
			n:   n,
		})
	}
	sort.Slice(hist, func(i, j int) bool { return hist[i].key < hist[j].key })
	return hist
}

// grayLevels returns n evenly spaced grey levels from black to white.
func grayLevels(n int) []color.RGBA {
	out := make([]color.RGBA, n)
	for i := range out {
		v := uint8((255*i + (n-1)/2) / (n - 1))
		out[i] = color.RGBA{v, v, v, 255}
	}
	return out
}

type cutBox struct {
	items []swatch
}

func (b cutBox) widest() (channel, spread int) {
	lo := [3]uint8{255, 255, 255}
	var hi [3]uint8
	for _, s := range b.items {
		for ch := 0; ch < 3; ch++ {
			lo[ch] = min(lo[ch], s.c[ch])
			hi[ch] = max(hi[ch], s.c[ch])
		}
	}
	for ch := 0; ch < 3; ch++ {
		if r := int(hi[ch]) - int(lo[ch]); r > spread {
			channel, spread = ch, r
		}
	}
	return channel, spread
}

func (b cutBox) split(channel int) (cutBox, cutBox) {
	sort.Slice(b.items, func(i, j int) bool {
		a, c := b.items[i], b.items[j]
		if a.c[channel] != c.c[channel] {
			return a.c[channel] < c.c[channel]
		}
		return a.key < c.key
	})

	total := 0
	for _, s := range b.items {
		total += s.n
	}
	m, acc := len(b.items)/2, 0
	for i, s := range b.items {
		acc += s.n
		if acc*2 >= total {
			m = i + 1
			break
		}
	}
	m = max(1, min(m, len(b.items)-1))
	return cutBox{items: b.items[:m]}, cutBox{items: b.items[m:]}
}

func (b cutBox) mean() color.RGBA {
	var sum [3]int
	n := 0
	for _, s := range b.items {
		for ch := 0; ch < 3; ch++ {
			sum[ch] += int(s.c[ch]) * s.n
		}
		n += s.n
	}
	return color.RGBA{uint8(sum[0] / n), uint8(sum[1] / n), uint8(sum[2] / n), 255}
}

// medianCut seeds a palette of at most n colours by repeatedly halving the
// box with the widest channel spread at its weighted median. Boxes holding a
// single colour are never split, so flat images yield a single entry.
func medianCut(hist []swatch, n int) []color.RGBA {
	items := append([]swatch(nil), hist...)
	boxes := []cutBox{{items: items}}

	for len(boxes) < n {
		target, channel, widest := -1, 0, 0
		for i, b := range boxes {
			if len(b.items) < 2 {
				continue
			}
			if ch, spread := b.widest(); spread > widest {
				target, channel, widest = i, ch, spread
			}
		}
		if target < 0 {
			break
		}
		lo, hi := boxes[target].split(channel)
		boxes[target] = lo
		boxes = append(boxes, hi)
	}

	palette := make([]color.RGBA, 0, len(boxes))
	for _, b := range boxes {
		palette = append(palette, b.mean())
	}
	return palette
}

func distance(a color.RGBA, c [3]uint8) int {
	dr := int(a.R) - int(c[0])
	dg := int(a.G) - int(c[1])
	db := int(a.B) - int(c[2])
	return dr*dr + dg*dg + db*db
}

func nearest(palette []color.RGBA, c [3]uint8, usable []bool) int {
	best, bestDist := -1, 0
	for i, p := range palette {
		if usable != nil && !usable[i] {
			continue
		}
		if d := distance(p, c); best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// refine runs k-means cycles over the palette. Entries that attract no
// pixels keep their colour.
func refine(hist []swatch, palette []color.RGBA, cycles int) {
	for cycle := 0; cycle < cycles; cycle++ {
		sums := make([][4]int, len(palette))
		for _, s := range hist {
			i := nearest(palette, s.c, nil)
			for ch := 0; ch < 3; ch++ {
				sums[i][ch] += int(s.c[ch]) * s.n
			}
			sums[i][3] += s.n
		}
		for i, sum := range sums {
			if n := sum[3]; n > 0 {
				palette[i] = color.RGBA{uint8(sum[0] / n), uint8(sum[1] / n), uint8(sum[2] / n), 255}
			}
		}
	}
}

// quantized maps every distinct colour to a palette layer.
type quantized struct {
	palette []color.RGBA
	counts  []int
	lookup  map[uint32]int
}

// quantize builds the palette for img according to p and assigns each
// distinct colour to a layer. Layers below MinColorRatio of the pixels are
// merged into their nearest surviving neighbour, and layers that converged
// to the same colour are merged together.
func quantize(img *image.NRGBA, p preset.Parameters) *quantized {
	hist := histogram(img)

	var palette []color.RGBA
	if p.ColorSampling == preset.SamplingGrayscale {
		palette = grayLevels(p.NumberOfColors)
	} else {
		palette = medianCut(hist, p.NumberOfColors)
	}
	refine(hist, palette, p.ColorQuantCycles)

	assign := make([]int, len(hist))
	counts := make([]int, len(palette))
	total := 0
	for i, s := range hist {
		assign[i] = nearest(palette, s.c, nil)
		counts[assign[i]] += s.n
		total += s.n
	}

	usable := make([]bool, len(palette))
	largest, anyUsable := 0, false
	for i, n := range counts {
		if n > counts[largest] {
			largest = i
		}
		if n > 0 && float64(n) >= p.MinColorRatio*float64(total) {
			usable[i] = true
			anyUsable = true
		}
	}
	if !anyUsable {
		usable[largest] = true
	}

	// Identical colours collapse onto the first occurrence.
	canonical := make([]int, len(palette))
	seen := make(map[uint32]int)
	for i, c := range palette {
		canonical[i] = i
		if !usable[i] {
			continue
		}
		key := packRGB(c.R, c.G, c.B)
		if first, ok := seen[key]; ok {
			canonical[i] = first
			usable[i] = false
			continue
		}
		seen[key] = i
	}

	q := &quantized{
		palette: palette,
		counts:  make([]int, len(palette)),
		lookup:  make(map[uint32]int, len(hist)),
	}
	for i, s := range hist {
		layer := canonical[assign[i]]
		if !usable[layer] {
			layer = nearest(palette, s.c, usable)
		}
		q.lookup[s.key] = layer
		q.counts[layer] += s.n
	}
	return q
}

// layers returns the non-empty layer indexes, most pixels first.
func (q *quantized) layers() []int {
	var out []int
	for i, n := range q.counts {
		if n > 0 {
			out = append(out, i)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return q.counts[out[a]] > q.counts[out[b]] })
	return out
}
