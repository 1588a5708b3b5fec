// Package preset resolves named tracing presets into fully specified
// parameter records.
//
// The preset table is closed and read-only. Resolve always returns a copy
// with the caller's scale and colour overrides applied, so the table can
// never be mutated by a conversion.
package preset

import (
	"fmt"
	"math"

	"github.com/Candseven88/3D-Logo-Maker/pkg/errs"
)

// Name identifies one of the fixed presets
type Name string

const (
	Default     Name = "default"
	Posterized1 Name = "posterized1"
	Posterized2 Name = "posterized2"
	Posterized3 Name = "posterized3"
	Curvy       Name = "curvy"
	Sharp       Name = "sharp"
	Detailed    Name = "detailed"
	Smoothed    Name = "smoothed"
	Grayscale   Name = "grayscale"
)

// Slider defaults and limits for the user-adjustable overrides.
const (
	DefaultName   = Posterized2
	DefaultScale  = 3.0
	DefaultColors = 8

	MinScale  = 1.0
	MaxScale  = 10.0
	ScaleStep = 0.5
	MinColors = 2
	MaxColors = 64
)

// ColorSampling selects how the quantization palette is built
type ColorSampling int

const (
	// SamplingGrayscale uses evenly spaced grey levels.
	SamplingGrayscale ColorSampling = 0
	// SamplingPalette derives the palette from the image colours.
	SamplingPalette ColorSampling = 1
)

func (c ColorSampling) String() string {
	switch c {
	case SamplingGrayscale:
		return "grayscale"
	case SamplingPalette:
		return "palette"
	}
	return fmt.Sprintf("ColorSampling(%d)", int(c))
}

// Parameters is the complete set of knobs passed to the tracing engine.
type Parameters struct {
	LineThreshold    float64       `json:"ltres" yaml:"ltres"`
	CurveThreshold   float64       `json:"qtres" yaml:"qtres"`
	PathOmit         int           `json:"pathomit" yaml:"pathomit"`
	ColorSampling    ColorSampling `json:"colorsampling" yaml:"colorsampling"`
	NumberOfColors   int           `json:"numberofcolors" yaml:"numberofcolors"`
	MinColorRatio    float64       `json:"mincolorratio" yaml:"mincolorratio"`
	ColorQuantCycles int           `json:"colorquantcycles" yaml:"colorquantcycles"`
	Scale            float64       `json:"scale" yaml:"scale"`
	StrokeWidth      float64       `json:"strokewidth" yaml:"strokewidth"`
	LineFilter       bool          `json:"linefilter" yaml:"linefilter"`
	BlurRadius       int           `json:"blurradius" yaml:"blurradius"`
	BlurDelta        float64       `json:"blurdelta" yaml:"blurdelta"`
}

// Validate checks every field against the range the engine accepts.
func (p Parameters) Validate() error {
	switch {
	case !(p.LineThreshold > 0):
		return fmt.Errorf("ltres must be positive, got %v: %w", p.LineThreshold, errs.ErrParameterRange)
	case !(p.CurveThreshold > 0):
		return fmt.Errorf("qtres must be positive, got %v: %w", p.CurveThreshold, errs.ErrParameterRange)
	case p.PathOmit < 0:
		return fmt.Errorf("pathomit must not be negative, got %d: %w", p.PathOmit, errs.ErrParameterRange)
	case p.ColorSampling != SamplingGrayscale && p.ColorSampling != SamplingPalette:
		return fmt.Errorf("unsupported colorsampling %d: %w", int(p.ColorSampling), errs.ErrParameterRange)
	case p.NumberOfColors < MinColors || p.NumberOfColors > MaxColors:
		return fmt.Errorf("numberofcolors must be between %d and %d, got %d: %w", MinColors, MaxColors, p.NumberOfColors, errs.ErrParameterRange)
	case p.MinColorRatio < 0 || p.MinColorRatio >= 1:
		return fmt.Errorf("mincolorratio must be in [0,1), got %v: %w", p.MinColorRatio, errs.ErrParameterRange)
	case p.ColorQuantCycles < 1:
		return fmt.Errorf("colorquantcycles must be at least 1, got %d: %w", p.ColorQuantCycles, errs.ErrParameterRange)
	case !(p.Scale > 0) || p.Scale > MaxScale:
		return fmt.Errorf("scale must be in (0,%v], got %v: %w", MaxScale, p.Scale, errs.ErrParameterRange)
	case p.StrokeWidth < 0:
		return fmt.Errorf("strokewidth must not be negative, got %v: %w", p.StrokeWidth, errs.ErrParameterRange)
	case p.BlurRadius < 0 || p.BlurRadius > 5:
		return fmt.Errorf("blurradius must be between 0 and 5, got %d: %w", p.BlurRadius, errs.ErrParameterRange)
	case p.BlurDelta < 0 || p.BlurDelta > 1024:
		return fmt.Errorf("blurdelta must be between 0 and 1024, got %v: %w", p.BlurDelta, errs.ErrParameterRange)
	}
	return nil
}

// base holds the values every preset starts from before its own overrides.
var base = Parameters{
	LineThreshold:    1,
	CurveThreshold:   1,
	PathOmit:         8,
	ColorSampling:    SamplingPalette,
	NumberOfColors:   16,
	MinColorRatio:    0.02,
	ColorQuantCycles: 3,
	Scale:            1,
	StrokeWidth:      1,
	LineFilter:       false,
	BlurRadius:       0,
	BlurDelta:        20,
}

type entry struct {
	label  string
	params Parameters
}

var order = []Name{Posterized2, Default, Posterized1, Posterized3, Curvy, Sharp, Detailed, Smoothed, Grayscale}

var table = map[Name]entry{
	Default: {"Default", base},
	Posterized1: {"Poster Style (4 colors)", with(func(p *Parameters) {
		p.NumberOfColors = 4
	})},
	Posterized2: {"Poster Style (Recommended)", with(func(p *Parameters) {
		p.NumberOfColors = 8
	})},
	Posterized3: {"Poster Style (16 colors)", with(func(p *Parameters) {
		p.NumberOfColors = 16
	})},
	Curvy: {"Smooth Curves", with(func(p *Parameters) {
		p.LineThreshold = 0.01
		p.LineFilter = true
	})},
	Sharp: {"Sharp Edges", with(func(p *Parameters) {
		p.LineThreshold = 1
		p.CurveThreshold = 1
	})},
	Detailed: {"High Detail", with(func(p *Parameters) {
		p.PathOmit = 0
		p.LineThreshold = 0.5
		p.CurveThreshold = 0.5
		p.NumberOfColors = 32
		p.MinColorRatio = 0.01
		p.ColorQuantCycles = 5
	})},
	Smoothed: {"Smoothed", with(func(p *Parameters) {
		p.LineThreshold = 0.01
		p.BlurRadius = 1
		p.BlurDelta = 20
	})},
	Grayscale: {"Grayscale", with(func(p *Parameters) {
		p.ColorSampling = SamplingGrayscale
		p.NumberOfColors = 7
	})},
}

func with(fn func(p *Parameters)) Parameters {
	p := base
	fn(&p)
	return p
}

// Names returns the preset names in selector order, recommended first.
func Names() []Name {
	out := make([]Name, len(order))
	copy(out, order)
	return out
}

// Label returns the display label of a preset, or the raw name if unknown.
func Label(name Name) string {
	if e, ok := table[name]; ok {
		return e.label
	}
	return string(name)
}

// Lookup returns a copy of the table entry for name.
func Lookup(name Name) (Parameters, error) {
	e, ok := table[name]
	if !ok {
		return Parameters{}, &errs.UnknownPresetError{Name: string(name)}
	}
	return e.params, nil
}

// Resolve looks up name and applies the scale and colour overrides. The
// overrides must lie on the slider ranges: scale in [1,10] with 0.5 steps,
// colours an integer in [2,64].
func Resolve(name Name, scale float64, colors int) (Parameters, error) {
	p, err := Lookup(name)
	if err != nil {
		return Parameters{}, err
	}
	if err := ValidateScale(scale); err != nil {
		return Parameters{}, err
	}
	if colors < MinColors || colors > MaxColors {
		return Parameters{}, fmt.Errorf("colors must be between %d and %d, got %d: %w", MinColors, MaxColors, colors, errs.ErrParameterRange)
	}

	p.Scale = scale
	p.NumberOfColors = colors
	return p, nil
}

// ValidateScale reports whether scale is a legal slider position.
func ValidateScale(scale float64) error {
	if math.IsNaN(scale) || scale < MinScale || scale > MaxScale {
		return fmt.Errorf("scale must be between %v and %v, got %v: %w", MinScale, MaxScale, scale, errs.ErrParameterRange)
	}
	if steps := scale / ScaleStep; steps != math.Trunc(steps) {
		return fmt.Errorf("scale must be a multiple of %v, got %v: %w", ScaleStep, scale, errs.ErrParameterRange)
	}
	return nil
}
