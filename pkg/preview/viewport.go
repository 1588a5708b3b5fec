package preview

import "github.com/Candseven88/3D-Logo-Maker/internal/utils"

// Zoom limits of the preview viewport.
const (
	MinZoom     = 0.25
	MaxZoom     = 3.0
	ZoomStep    = 0.25
	DefaultZoom = 1.0
)

// Viewport holds the preview zoom. The zero value is not usable; create
// one with NewViewport.
type Viewport struct {
	zoom float64
}

// NewViewport returns a viewport at the default zoom
func NewViewport() *Viewport {
	return &Viewport{zoom: DefaultZoom}
}

// Zoom returns the current zoom factor
func (v *Viewport) Zoom() float64 {
	return v.zoom
}

// Percent returns the zoom as a rounded percentage
func (v *Viewport) Percent() int {
	return int(v.zoom*100 + 0.5)
}

// SetZoom sets the zoom, clamped to [MinZoom, MaxZoom].
func (v *Viewport) SetZoom(z float64) {
	v.zoom = utils.Clamp(z, MinZoom, MaxZoom)
}

// ZoomIn increases the zoom by one step
func (v *Viewport) ZoomIn() {
	v.SetZoom(v.zoom + ZoomStep)
}

// ZoomOut decreases the zoom by one step
func (v *Viewport) ZoomOut() {
	v.SetZoom(v.zoom - ZoomStep)
}

// Reset restores the default zoom
func (v *Viewport) Reset() {
	v.zoom = DefaultZoom
}
