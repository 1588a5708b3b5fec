// Package engine turns RGBA pixel buffers into SVG markup.
//
// The tracing engine is obtained through a Provider, which loads it lazily on
// first use and caches it afterwards. A failed load is remembered until the
// next Await, which tries again.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Candseven88/3D-Logo-Maker/internal/logger"
	"github.com/Candseven88/3D-Logo-Maker/pkg/errs"
	"github.com/Candseven88/3D-Logo-Maker/pkg/preset"
	"github.com/Candseven88/3D-Logo-Maker/pkg/svgdoc"
	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

// Engine converts a pixel buffer into an SVG document. Every parameter is
// passed explicitly; implementations must not fall back to hidden defaults.
type Engine interface {
	ImageDataToSVG(ctx context.Context, data *types.ImageData, params preset.Parameters) (string, error)
}

// Loader produces a ready engine
type Loader func(ctx context.Context) (Engine, error)

// State is the load state of a Provider
type State int

const (
	NotLoaded State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case NotLoaded:
		return "not-loaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// attempt is one run of the loader. Callers that arrive while it is in
// flight wait on done and share its outcome.
type attempt struct {
	done   chan struct{}
	engine Engine
	err    error
}

// Provider lazily loads an Engine exactly once per successful load.
type Provider struct {
	loader Loader

	mu      sync.Mutex
	state   State
	current *attempt
}

// NewProvider creates a provider around loader. A nil loader selects the
// bundled potrace engine.
func NewProvider(loader Loader) *Provider {
	if loader == nil {
		loader = DefaultLoader
	}
	return &Provider{loader: loader}
}

// State reports the current load state
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Await returns the ready engine, loading it if necessary. Load failures are
// returned as *errs.EngineLoadError; the following call retries the load.
// The load runs detached from ctx, so a caller that gives up early does not
// fail the load for the callers still waiting on it.
func (p *Provider) Await(ctx context.Context) (Engine, error) {
	p.mu.Lock()
	switch p.state {
	case Ready:
		eng := p.current.engine
		p.mu.Unlock()
		return eng, nil
	case Loading:
		a := p.current
		p.mu.Unlock()
		return a.wait(ctx)
	}

	a := &attempt{done: make(chan struct{})}
	p.current = a
	p.state = Loading
	p.mu.Unlock()

	go p.load(context.WithoutCancel(ctx), a)
	return a.wait(ctx)
}

func (a *attempt) wait(ctx context.Context) (Engine, error) {
	select {
	case <-a.done:
		return a.engine, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Provider) load(ctx context.Context, a *attempt) {
	logger.Get().Debug("loading vectorization engine")
	eng, err := p.loader(ctx)
	if err == nil && eng == nil {
		err = errors.New("loader returned no engine")
	}

	p.mu.Lock()
	if err != nil {
		var loadErr *errs.EngineLoadError
		if !errors.As(err, &loadErr) {
			err = &errs.EngineLoadError{Err: err}
		}
		a.err = err
		p.state = Failed
		logger.Get().Warn("vectorization engine failed to load", "error", err)
	} else {
		a.engine = eng
		p.state = Ready
		logger.Get().Debug("vectorization engine ready")
	}
	p.mu.Unlock()
	close(a.done)
}

// Trace runs the provider's engine over data. It fails with
// *errs.EngineLoadError when no engine is available and with
// *errs.EmptyResultError when the output has no drawable shapes.
func Trace(ctx context.Context, p *Provider, data *types.ImageData, params preset.Parameters) (string, error) {
	if data == nil || data.Width <= 0 || data.Height <= 0 {
		return "", fmt.Errorf("trace: empty pixel buffer")
	}
	if len(data.Data) != data.Width*data.Height*4 {
		return "", fmt.Errorf("trace: buffer holds %d bytes, want %d", len(data.Data), data.Width*data.Height*4)
	}
	if err := params.Validate(); err != nil {
		return "", fmt.Errorf("trace: %w", err)
	}

	eng, err := p.Await(ctx)
	if err != nil {
		return "", err
	}

	svg, err := eng.ImageDataToSVG(ctx, data, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("trace: %w", err)
	}
	if !svgdoc.HasDrawable(svg) {
		return "", &errs.EmptyResultError{}
	}
	return svg, nil
}

// DefaultLoader builds the bundled potrace engine and checks it can trace a
// tiny bitmap before declaring it ready.
func DefaultLoader(ctx context.Context) (Engine, error) {
	eng := NewPotraceEngine()
	sample := types.NewImageData(4, 4)
	for i := 0; i < len(sample.Data); i += 4 {
		sample.Data[i+3] = 0xff
	}
	if _, err := eng.ImageDataToSVG(ctx, sample, selfCheckParams); err != nil {
		return nil, fmt.Errorf("engine self-check failed: %w", err)
	}
	return eng, nil
}

var selfCheckParams = preset.Parameters{
	LineThreshold:    1,
	CurveThreshold:   1,
	PathOmit:         0,
	ColorSampling:    preset.SamplingPalette,
	NumberOfColors:   2,
	MinColorRatio:    0,
	ColorQuantCycles: 1,
	Scale:            1,
	StrokeWidth:      0,
	BlurRadius:       0,
	BlurDelta:        20,
}
