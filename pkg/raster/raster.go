// Package raster draws accepted images onto a reusable off-screen canvas and
// extracts the RGBA pixel buffer fed to the tracing engine.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"

	"github.com/Candseven88/3D-Logo-Maker/pkg/errs"
	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

// DefaultMaxDimension caps the longer side of the rasterized image.
const DefaultMaxDimension = 800

// Canvas owns the off-screen drawing surface shared by every conversion.
// Each Rasterize call clears it to opaque white before drawing, so nothing
// from a previous image can bleed through.
type Canvas struct {
	mu     sync.Mutex
	ctx    *gg.Context
	maxDim int
}

// NewCanvas creates a canvas that downscales images larger than maxDim.
// A non-positive maxDim selects DefaultMaxDimension.
func NewCanvas(maxDim int) *Canvas {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	return &Canvas{maxDim: maxDim}
}

// Rasterize decodes src, fits it inside the dimension cap and returns the
// composited pixels. Transparent areas come out white.
func (c *Canvas) Rasterize(ctx context.Context, src *types.SourceImage) (*types.ImageData, error) {
	if src == nil {
		return nil, errs.ErrNoImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := Decode(src.Data)
	if err != nil {
		return nil, &errs.DecodeError{Name: src.Name, Err: err}
	}

	b := img.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), c.maxDim)
	if w == 0 || h == 0 {
		return nil, &errs.DecodeError{Name: src.Name, Err: fmt.Errorf("image has no pixels (%dx%d)", b.Dx(), b.Dy())}
	}
	if w != b.Dx() || h != b.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx == nil {
		c.ctx = gg.NewContext(w, h)
	} else if err := c.ctx.Resize(w, h); err != nil {
		return nil, &errs.DecodeError{Name: src.Name, Err: err}
	}

	c.ctx.ClearWithColor(gg.White)
	c.ctx.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
		X:             0,
		Y:             0,
		DstWidth:      float64(w),
		DstHeight:     float64(h),
		Interpolation: gg.InterpBicubic,
		Opacity:       1.0,
		BlendMode:     gg.BlendNormal,
	})

	return toImageData(c.ctx.Image(), w, h), nil
}

// Close releases the canvas
func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return nil
	}
	err := c.ctx.Close()
	c.ctx = nil
	return err
}

// FitWithin returns the size of a w x h image scaled down so neither side
// exceeds maxDim. Images already inside the cap keep their size.
func FitWithin(w, h, maxDim int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	// The longer side lands on maxDim exactly; the other is floored.
	if w >= h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}

// Decode decodes image bytes, honouring EXIF orientation, with an explicit
// WebP fallback for files the registered decoders reject.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return wimg, nil
	}
	return nil, err
}

// toImageData copies the canvas into a packed, fully opaque RGBA buffer.
func toImageData(img image.Image, w, h int) *types.ImageData {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != w*4 || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}

	out := types.NewImageData(w, h)
	copy(out.Data, rgba.Pix[:w*h*4])
	for i := 3; i < len(out.Data); i += 4 {
		out.Data[i] = 0xff
	}
	return out
}
