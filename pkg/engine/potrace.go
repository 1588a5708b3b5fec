package engine

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"
	"github.com/gotranspile/gotrace"

	"github.com/Candseven88/3D-Logo-Maker/internal/logger"
	"github.com/Candseven88/3D-Logo-Maker/pkg/preset"
	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

// PotraceEngine quantizes the image into colour layers and traces each
// layer's mask with potrace. Output is deterministic for identical input.
type PotraceEngine struct{}

// NewPotraceEngine creates the bundled tracing engine
func NewPotraceEngine() *PotraceEngine {
	return &PotraceEngine{}
}

// tracedPath is one path element produced by potrace, with the transform
// inherited from its enclosing groups.
type tracedPath struct {
	d         string
	transform string
}

type layer struct {
	fill  color.RGBA
	paths []tracedPath
}

// ImageDataToSVG implements Engine.
func (e *PotraceEngine) ImageDataToSVG(ctx context.Context, data *types.ImageData, p preset.Parameters) (string, error) {
	w, h := data.Width, data.Height
	img := prepare(data, p)
	q := quantize(img, p)

	params := traceParams(p)
	var out []layer
	for _, idx := range q.layers() {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		mask := layerMask(img, q, idx)
		if p.LineFilter {
			filterLines(mask)
		}

		paths, unit, err := traceMask(mask, params)
		if err != nil {
			return "", fmt.Errorf("failed to trace layer %d: %w", idx, err)
		}
		if unit > 0 && unit != 1 {
			for i := range paths {
				paths[i].transform = strings.TrimSpace(fmt.Sprintf("scale(%s) %s", formatFloat(1/unit), paths[i].transform))
			}
		}
		logger.Get().Debug("traced layer", "layer", idx, "color", rgb(q.palette[idx]), "pixels", q.counts[idx], "paths", len(paths))
		if len(paths) == 0 {
			continue
		}
		out = append(out, layer{fill: q.palette[idx], paths: paths})
	}

	var buf bytes.Buffer
	writeSVG(&buf, w, h, p, out)
	return buf.String(), nil
}

// traceParams maps the tracing knobs onto potrace parameters. A low line
// threshold favours curves over corners, the curve threshold bounds how
// aggressively adjacent curve segments are merged, and path omission drops
// speckles of up to that many pixels.
func traceParams(p preset.Parameters) *gotrace.Config {
	return &gotrace.Config{
		TurdSize:     p.PathOmit,
		AlphaMax:     math.Min(1.3334, math.Pow(p.LineThreshold, -0.25)),
		OptiCurve:    true,
		OptTolerance: 0.2 * p.CurveThreshold,
	}
}

// layerMask paints the pixels of layer idx black on a white background.
func layerMask(img *image.NRGBA, q *quantized, idx int) *image.Gray {
	b := img.Bounds()
	mask := image.NewGray(b)
	for i, j := 0, 0; i < len(img.Pix); i, j = i+4, j+1 {
		if q.lookup[packRGB(img.Pix[i], img.Pix[i+1], img.Pix[i+2])] == idx {
			mask.Pix[j] = 0
		} else {
			mask.Pix[j] = 0xff
		}
	}
	return mask
}

// filterLines clears foreground pixels with fewer than two foreground
// 4-neighbours, removing one pixel wide stray lines before tracing.
func filterLines(mask *image.Gray) {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	on := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && mask.Pix[y*mask.Stride+x] == 0
	}

	var clear []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !on(x, y) {
				continue
			}
			n := 0
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				if on(x+d[0], y+d[1]) {
					n++
				}
			}
			if n < 2 {
				clear = append(clear, y*mask.Stride+x)
			}
		}
	}
	for _, i := range clear {
		mask.Pix[i] = 0xff
	}
}

// traceMask traces the black pixels of mask and returns the rendered path
// elements. unit is the ratio between the rendered viewBox and the mask
// size, so callers can map the paths back to pixel space.
func traceMask(mask *image.Gray, params *gotrace.Config) ([]tracedPath, float64, error) {
	bm := gotrace.BitmapFromGray(mask, nil)
	paths, err := gotrace.Trace(bm, params)
	if err != nil {
		return nil, 0, err
	}
	if paths == nil {
		return nil, 1, nil
	}

	var buf bytes.Buffer
	sz := mask.Bounds().Size()
	if err := gotrace.Render("svg", nil, &buf, paths, sz.X, sz.Y); err != nil {
		return nil, 0, err
	}

	traced, viewWidth, err := extractPaths(buf.Bytes())
	if err != nil {
		return nil, 0, err
	}
	unit := 1.0
	if viewWidth > 0 {
		unit = viewWidth / float64(sz.X)
	}
	return traced, unit, nil
}

// extractPaths collects every path of a rendered document together with the
// transforms of its ancestors, and returns the width of the root viewBox.
func extractPaths(doc []byte) ([]tracedPath, float64, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = false

	var (
		out       []tracedPath
		stack     []string
		viewWidth float64
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse rendered svg: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			inherited := ""
			if len(stack) > 0 {
				inherited = stack[len(stack)-1]
			}
			own := attr(t, "transform")
			full := strings.TrimSpace(inherited + " " + own)

			switch t.Name.Local {
			case "svg":
				if vb := strings.Fields(strings.ReplaceAll(attr(t, "viewBox"), ",", " ")); len(vb) == 4 {
					viewWidth, _ = strconv.ParseFloat(vb[2], 64)
				}
			case "path":
				if d := strings.TrimSpace(attr(t, "d")); d != "" {
					out = append(out, tracedPath{d: d, transform: full})
				}
			}
			stack = append(stack, full)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return out, viewWidth, nil
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// writeSVG emits the final document: one group scaled to the output size,
// holding the layers largest first so smaller details paint on top.
func writeSVG(w io.Writer, width, height int, p preset.Parameters, layers []layer) {
	outW := int(math.Ceil(float64(width) * p.Scale))
	outH := int(math.Ceil(float64(height) * p.Scale))

	canvas := svg.New(w)
	canvas.Start(outW, outH)
	canvas.Gtransform(fmt.Sprintf("scale(%s)", formatFloat(p.Scale)))
	for _, l := range layers {
		fill := rgb(l.fill)
		attrs := []string{`fill="` + fill + `"`}
		if p.StrokeWidth > 0 {
			attrs = append(attrs,
				`stroke="`+fill+`"`,
				`stroke-width="`+formatFloat(p.StrokeWidth)+`"`,
				`vector-effect="non-scaling-stroke"`)
		} else {
			attrs = append(attrs, `stroke="none"`)
		}
		attrs = append(attrs, `opacity="1"`)

		for _, path := range l.paths {
			pathAttrs := attrs
			if path.transform != "" {
				pathAttrs = append([]string{`transform="` + path.transform + `"`}, attrs...)
			}
			canvas.Path(path.d, pathAttrs...)
		}
	}
	canvas.Gend()
	canvas.End()
}

func rgb(c color.RGBA) string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
