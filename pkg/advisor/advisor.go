// Package advisor asks a vision model which tracing preset suits an image.
// Suggestions are advisory: any unusable answer falls back to the
// recommended preset, and conversion never depends on the advisor.
package advisor

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/Candseven88/3D-Logo-Maker/internal/logger"
	"github.com/Candseven88/3D-Logo-Maker/pkg/client"
	"github.com/Candseven88/3D-Logo-Maker/pkg/preset"
	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

// Defaults for the image sent to the model.
const (
	DefaultMaxDim  = 1024
	DefaultQuality = 85
)

// Advisor recommends presets using a vision model
type Advisor struct {
	client  client.VisionClient
	model   string
	format  string
	maxDim  int
	quality int
}

// New creates an advisor that queries model through c
func New(c client.VisionClient, model string) *Advisor {
	return &Advisor{
		client:  c,
		model:   model,
		format:  "jpg",
		maxDim:  DefaultMaxDim,
		quality: DefaultQuality,
	}
}

// Suggest returns a preset recommendation for img. Transport failures are
// returned as errors; answers naming no known preset fall back to the
// recommended preset with zero confidence.
func (a *Advisor) Suggest(ctx context.Context, img image.Image) (*types.Suggestion, error) {
	imgB64, err := PrepareImageForModel(img, a.format, a.maxDim, a.quality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	s, err := a.client.SuggestPreset(ctx, a.model, Prompt(), imgB64)
	if err != nil {
		return nil, fmt.Errorf("preset suggestion failed: %w", err)
	}

	if _, lookupErr := preset.Lookup(preset.Name(s.Preset)); lookupErr != nil {
		logger.Get().Debug("model suggested unusable preset", "preset", s.Preset, "reason", s.Reason)
		s = &types.Suggestion{
			Preset:     string(preset.DefaultName),
			Confidence: 0,
			Reason:     "model answer did not name a known preset",
			Tags:       append([]string{"fallback"}, s.Tags...),
		}
	}
	return s, nil
}

// Prompt builds the question sent with the image.
func Prompt() string {
	var b strings.Builder
	b.WriteString("You help convert raster logos into SVG. Pick the tracing preset that best fits this image.\n")
	b.WriteString("Presets:\n")
	for _, name := range preset.Names() {
		fmt.Fprintf(&b, "- %s: %s\n", name, preset.Label(name))
	}
	b.WriteString(`Answer with JSON only: {"preset": "<name>", "confidence": <0..1>, "reason": "<short>", "tags": ["..."]}`)
	return b.String()
}

// PrepareImageForModel downscales img so its longer side is at most maxDim
// and returns it base64 encoded as JPEG or PNG.
func PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default:
		// JPEG has no alpha; flatten onto white first.
		flat := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), image.White)
		flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)
		if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
