package types

import (
	"time"

	"github.com/Candseven88/3D-Logo-Maker/pkg/preset"
)

// SourceImage is an accepted user image awaiting conversion
type SourceImage struct {
	Name       string
	MIMEType   string
	Size       int64
	Data       []byte
	Width      int
	Height     int
	PreviewURL string
}

// ImageData is an RGBA pixel buffer laid out like a 2D canvas ImageData:
// 4 bytes per pixel, row-major, no padding between rows.
type ImageData struct {
	Width  int
	Height int
	Data   []uint8
}

// NewImageData allocates a zeroed buffer for a w x h image
func NewImageData(w, h int) *ImageData {
	return &ImageData{Width: w, Height: h, Data: make([]uint8, w*h*4)}
}

// RGBA returns the colour components of the pixel at (x, y)
func (d *ImageData) RGBA(x, y int) (r, g, b, a uint8) {
	i := (y*d.Width + x) * 4
	return d.Data[i], d.Data[i+1], d.Data[i+2], d.Data[i+3]
}

// SVGResult is the normalized output of one conversion
type SVGResult struct {
	SVG        string            `json:"svg"`
	Bytes      int               `json:"bytes"`
	SourceName string            `json:"source_name"`
	Preset     string            `json:"preset"`
	Params     preset.Parameters `json:"params"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SizeKB returns the SVG size in kilobytes
func (r *SVGResult) SizeKB() float64 {
	return float64(r.Bytes) / 1024
}

// Status is the conversion state shown to the user
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Suggestion is a preset recommendation returned by a vision model
type Suggestion struct {
	Preset     string   `json:"preset"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
	Tags       []string `json:"tags"`
}
