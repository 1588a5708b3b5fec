// Package logomaker converts raster logos into scalable SVG documents.
//
// A Session holds one source image at a time. Accepting a file validates its
// type and size, converting it rasterizes the image onto an off-screen canvas
// and traces the pixels into colour layers with the bundled potrace engine,
// and the normalized result can then be previewed, exported as a file or
// handed to the editor.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		logomaker "github.com/Candseven88/3D-Logo-Maker"
//		"github.com/Candseven88/3D-Logo-Maker/pkg/preset"
//	)
//
//	func main() {
//		session := logomaker.New()
//		defer session.Close()
//
//		f, err := session.Open("logo.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//		if _, err := session.Accept(f); err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := session.Convert(context.Background(), logomaker.Options{
//			Preset: preset.Posterized2,
//			Scale:  3,
//			Colors: 8,
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		blob, err := session.Export("logo")
//		if err != nil {
//			log.Fatal(err)
//		}
//		if _, err := blob.Save("."); err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("wrote %s (%.2f KB)", blob.Name, result.SizeKB())
//	}
//
// The package is built from these components:
//
//  1. Input (pkg/input): validates and loads source files
//  2. Raster (pkg/raster): draws the source onto a bounded canvas
//  3. Preset (pkg/preset): resolves named parameter sets
//  4. Engine (pkg/engine): loads the tracer and turns pixels into SVG
//  5. Svgdoc (pkg/svgdoc): makes the SVG scale with its container
//  6. Preview, Export and Handoff (pkg/preview, pkg/export, pkg/handoff)
//
// An optional advisor (pkg/advisor) asks a local vision model which preset
// suits the image best.
package logomaker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Candseven88/3D-Logo-Maker/internal/logger"
	"github.com/Candseven88/3D-Logo-Maker/pkg/advisor"
	"github.com/Candseven88/3D-Logo-Maker/pkg/engine"
	"github.com/Candseven88/3D-Logo-Maker/pkg/errs"
	"github.com/Candseven88/3D-Logo-Maker/pkg/export"
	"github.com/Candseven88/3D-Logo-Maker/pkg/handoff"
	"github.com/Candseven88/3D-Logo-Maker/pkg/input"
	"github.com/Candseven88/3D-Logo-Maker/pkg/preset"
	"github.com/Candseven88/3D-Logo-Maker/pkg/preview"
	"github.com/Candseven88/3D-Logo-Maker/pkg/raster"
	"github.com/Candseven88/3D-Logo-Maker/pkg/svgdoc"
	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

// Version of the logo maker library
const Version = "1.0.0"

// SetLogger replaces the logger used by all packages of the library. The
// default discards everything; pass nil to restore it.
func SetLogger(l *slog.Logger) {
	logger.Set(l)
}

// Config holds the session limits. Zero values select the defaults.
type Config struct {
	MaxFileSize  int64
	MaxDimension int
	// Loader builds the tracing engine. Nil selects the bundled engine.
	Loader engine.Loader
}

// Options selects the parameters of one conversion
type Options struct {
	Preset preset.Name
	Scale  float64
	Colors int
}

// DefaultOptions returns the options the converter starts with
func DefaultOptions() Options {
	return Options{
		Preset: preset.DefaultName,
		Scale:  preset.DefaultScale,
		Colors: preset.DefaultColors,
	}
}

// Session converts one source image at a time. It is safe for concurrent
// use; a conversion started while another is running supersedes it.
type Session struct {
	input    *input.Handler
	canvas   *raster.Canvas
	provider *engine.Provider

	mu         sync.Mutex
	status     types.Status
	source     *types.SourceImage
	result     *types.SVGResult
	generation uint64
	cancel     context.CancelFunc
}

// New creates a Session with default configuration
func New() *Session {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a Session with custom configuration
func NewWithConfig(cfg Config) *Session {
	return &Session{
		input:    input.NewHandler(cfg.MaxFileSize),
		canvas:   raster.NewCanvas(cfg.MaxDimension),
		provider: engine.NewProvider(cfg.Loader),
		status:   types.StatusIdle,
	}
}

// Close cancels any running conversion and releases the canvas
func (s *Session) Close() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.mu.Unlock()
	return s.canvas.Close()
}

// Open reads a local file for Accept
func (s *Session) Open(path string) (input.File, error) {
	return s.input.Open(path)
}

// OpenSmart reads a local path, an http(s) URL or "-" for stdin
func (s *Session) OpenSmart(ctx context.Context, source string) (input.File, error) {
	return s.input.OpenSmart(ctx, source)
}

// Accept validates f and makes it the current source image. A rejected file
// leaves the session untouched. An accepted file cancels any running
// conversion, drops the previous result and resets the status to idle.
func (s *Session) Accept(f input.File) (*types.SourceImage, error) {
	src, err := s.input.Accept(f)
	if err != nil {
		logger.Get().Warn("input rejected", "name", f.Name, "error", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.source = src
	s.result = nil
	s.status = types.StatusIdle

	logger.Get().Info("input accepted", "name", src.Name, "mime", src.MIMEType, "bytes", src.Size, "width", src.Width, "height", src.Height)
	return src, nil
}

// AcceptPending consumes an image left in store by another page and accepts
// it. It reports false when nothing was pending.
func (s *Session) AcceptPending(store handoff.Store) (*types.SourceImage, bool, error) {
	name, dataURL, ok, err := handoff.TakePending(store)
	if err != nil || !ok {
		return nil, false, err
	}
	f, err := input.FromDataURL(name, dataURL)
	if err != nil {
		return nil, true, err
	}
	src, err := s.Accept(f)
	return src, true, err
}

// Convert rasterizes the current source and traces it with opts. A later
// Convert or Accept cancels this one, which then returns errs.ErrSuperseded
// without touching the session. Invalid options are rejected before the
// status changes.
func (s *Session) Convert(ctx context.Context, opts Options) (*types.SVGResult, error) {
	params, err := preset.Resolve(opts.Preset, opts.Scale, opts.Colors)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	src := s.source
	if src == nil {
		s.mu.Unlock()
		return nil, errs.ErrNoImage
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.status = types.StatusLoading
	s.mu.Unlock()
	defer cancel()

	log := logger.Get().With("name", src.Name, "preset", string(opts.Preset), "scale", opts.Scale, "colors", opts.Colors)
	log.Info("conversion started")
	start := time.Now()

	result, err := s.convert(ctx, src, opts.Preset, params)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		log.Debug("conversion superseded", "duration", time.Since(start))
		return nil, errs.ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		s.status = types.StatusFailed
		log.Error("conversion failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	s.result = result
	s.status = types.StatusSuccess
	log.Info("conversion finished", "width", result.Width, "height", result.Height, "bytes", result.Bytes, "duration", time.Since(start))
	return result, nil
}

func (s *Session) convert(ctx context.Context, src *types.SourceImage, name preset.Name, params preset.Parameters) (*types.SVGResult, error) {
	data, err := s.canvas.Rasterize(ctx, src)
	if err != nil {
		return nil, err
	}

	raw, err := engine.Trace(ctx, s.provider, data, params)
	if err != nil {
		return nil, err
	}

	doc := svgdoc.Normalize(raw)
	result := &types.SVGResult{
		SVG:        doc,
		Bytes:      len(doc),
		SourceName: src.Name,
		Preset:     string(name),
		Params:     params,
		Width:      data.Width,
		Height:     data.Height,
		CreatedAt:  time.Now(),
	}
	if w, h, err := svgdoc.Dimensions(doc); err == nil {
		result.Width, result.Height = int(w), int(h)
	}
	return result, nil
}

// Export packages the current result as an SVG file named after name
func (s *Session) Export(name string) (*export.Blob, error) {
	return export.Export(s.Result(), name)
}

// Preview writes an HTML page showing the current result at v's zoom
func (s *Session) Preview(w io.Writer, v *preview.Viewport) error {
	if v == nil {
		v = preview.NewViewport()
	}
	return preview.Render(w, s.Result(), v)
}

// Thumbnail rasterizes the current result into a size x size PNG
func (s *Session) Thumbnail(size int) ([]byte, error) {
	return preview.Thumbnail(s.Result(), size)
}

// SendToEditor exports the current result and leaves it in store for the
// editor to pick up
func (s *Session) SendToEditor(store handoff.Store, name string) (*export.Blob, error) {
	blob, err := s.Export(name)
	if err != nil {
		return nil, err
	}
	if err := handoff.SendToEditor(store, blob); err != nil {
		return nil, fmt.Errorf("failed to hand off svg: %w", err)
	}
	logger.Get().Info("result sent to editor", "file", blob.Name, "bytes", blob.Size())
	return blob, nil
}

// Advise asks the advisor a which preset suits the current source image
func (s *Session) Advise(ctx context.Context, a *advisor.Advisor) (*types.Suggestion, error) {
	src := s.Source()
	if src == nil {
		return nil, errs.ErrNoImage
	}
	img, err := raster.Decode(src.Data)
	if err != nil {
		return nil, &errs.DecodeError{Name: src.Name, Err: err}
	}
	return a.Suggest(ctx, img)
}

// Status returns the state of the latest conversion
func (s *Session) Status() types.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Result returns the latest successful result, or nil
func (s *Session) Result() *types.SVGResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Source returns the accepted source image, or nil
func (s *Session) Source() *types.SourceImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Provider exposes the engine provider so callers can preload the engine
func (s *Session) Provider() *engine.Provider {
	return s.provider
}
