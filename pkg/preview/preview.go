// Package preview renders conversion results for inspection: an HTML page
// with a zoomable checkerboard viewport, and PNG thumbnails.
package preview

import (
	"bytes"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"io"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/Candseven88/3D-Logo-Maker/pkg/errs"
	"github.com/Candseven88/3D-Logo-Maker/pkg/svgdoc"
	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

// DefaultThumbnailSize is the edge length of thumbnails when none is given.
const DefaultThumbnailSize = 256

var page = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { margin: 0; font-family: system-ui, sans-serif; background: #111827; color: #e5e7eb; }
header { display: flex; gap: 1.5rem; padding: .75rem 1rem; font-size: .875rem; }
.viewport {
  height: calc(100vh - 3rem); overflow: auto;
  display: flex; align-items: center; justify-content: center;
  background-color: #fff;
  background-image:
    linear-gradient(45deg, #e5e7eb 25%, transparent 25%),
    linear-gradient(-45deg, #e5e7eb 25%, transparent 25%),
    linear-gradient(45deg, transparent 75%, #e5e7eb 75%),
    linear-gradient(-45deg, transparent 75%, #e5e7eb 75%);
  background-size: 20px 20px;
  background-position: 0 0, 0 10px, 10px -10px, -10px 0;
}
.stage { width: 80%; height: 80%; transform: scale({{.Zoom}}); transform-origin: center; }
</style>
</head>
<body>
<header>
<span>{{.Title}}</span>
<span>SVG Size: {{printf "%.2f" .SizeKB}} KB</span>
<span>Zoom: {{.Percent}}%</span>
<span>Preset: {{.Preset}}</span>
</header>
<div class="viewport"><div class="stage">{{.SVG}}</div></div>
</body>
</html>
`))

type pageData struct {
	Title   string
	SizeKB  float64
	Zoom    float64
	Percent int
	Preset  string
	SVG     template.HTML
}

// Render writes an HTML preview of result at the viewport's zoom. The SVG
// comes from the engine and is embedded as trusted markup.
func Render(w io.Writer, result *types.SVGResult, v *Viewport) error {
	if result == nil {
		return errs.ErrNoResult
	}
	if v == nil {
		v = NewViewport()
	}

	title := result.SourceName
	if title == "" {
		title = "Converted SVG"
	}
	err := page.Execute(w, pageData{
		Title:   title,
		SizeKB:  result.SizeKB(),
		Zoom:    v.Zoom(),
		Percent: v.Percent(),
		Preset:  result.Preset,
		SVG:     template.HTML(result.SVG),
	})
	if err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}
	return nil
}

// Thumbnail rasterizes result into a size x size PNG, centred and scaled to
// fit with its aspect ratio preserved.
func Thumbnail(result *types.SVGResult, size int) ([]byte, error) {
	if result == nil {
		return nil, errs.ErrNoResult
	}
	if size <= 0 {
		size = DefaultThumbnailSize
	}

	w, h, err := svgdoc.Dimensions(result.SVG)
	if err != nil {
		return nil, fmt.Errorf("failed to read svg size: %w", err)
	}
	// Percent sizes are resolved against the viewBox before rasterizing.
	doc, err := svgdoc.WithSize(result.SVG, w, h)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare svg: %w", err)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader([]byte(doc)), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse svg: %w", err)
	}

	scale := float64(size) / max(w, h)
	outW := int(w * scale)
	outH := int(h * scale)
	offsetX := (size - outW) / 2
	offsetY := (size - outH) / 2
	icon.SetTarget(float64(offsetX), float64(offsetY), float64(outW), float64(outH))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
