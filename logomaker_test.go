package logomaker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Candseven88/3D-Logo-Maker/pkg/engine"
	"github.com/Candseven88/3D-Logo-Maker/pkg/errs"
	"github.com/Candseven88/3D-Logo-Maker/pkg/export"
	"github.com/Candseven88/3D-Logo-Maker/pkg/handoff"
	"github.com/Candseven88/3D-Logo-Maker/pkg/input"
	"github.com/Candseven88/3D-Logo-Maker/pkg/preset"
	"github.com/Candseven88/3D-Logo-Maker/pkg/preview"
	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

const fakeSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="30" height="30"><path d="M0 0L30 0L30 30Z" fill="rgb(255,0,0)"/></svg>`

// createTestImage creates a solid square PNG
func createTestImage(t *testing.T, size int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func pngFile(t *testing.T, name string) input.File {
	data := createTestImage(t, 200, color.RGBA{255, 0, 0, 255})
	return input.File{Name: name, MIMEType: "image/png", Size: int64(len(data)), Data: data}
}

type staticEngine struct{ svg string }

func (e staticEngine) ImageDataToSVG(context.Context, *types.ImageData, preset.Parameters) (string, error) {
	return e.svg, nil
}

func staticLoader(svg string) engine.Loader {
	return func(context.Context) (engine.Engine, error) { return staticEngine{svg: svg}, nil }
}

// blockingEngine blocks its first call until the context is cancelled.
type blockingEngine struct {
	calls   atomic.Int32
	started chan struct{}
}

func (e *blockingEngine) ImageDataToSVG(ctx context.Context, _ *types.ImageData, _ preset.Parameters) (string, error) {
	if e.calls.Add(1) == 1 {
		close(e.started)
		<-ctx.Done()
		return "", ctx.Err()
	}
	return fakeSVG, nil
}

func TestNew(t *testing.T) {
	session := New()
	defer session.Close()

	if session.Status() != types.StatusIdle {
		t.Errorf("Expected idle status, got %v", session.Status())
	}
	if session.Source() != nil || session.Result() != nil {
		t.Error("new session should hold no source and no result")
	}
	if session.Provider().State() != engine.NotLoaded {
		t.Errorf("engine should load lazily, got %v", session.Provider().State())
	}
}

func TestConvertRedSquare(t *testing.T) {
	session := New()
	defer session.Close()

	if _, err := session.Accept(pngFile(t, "red.png")); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	result, err := session.Convert(context.Background(), Options{Preset: preset.Posterized2, Scale: 3, Colors: 8})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if result.SVG == "" || result.Bytes != len(result.SVG) {
		t.Fatalf("unexpected result size %d for %d bytes of markup", result.Bytes, len(result.SVG))
	}
	if !strings.Contains(result.SVG, "<path") && !strings.Contains(result.SVG, "<polygon") {
		t.Error("result has no path or polygon")
	}
	if !strings.Contains(result.SVG, `width="100%"`) || !strings.Contains(result.SVG, `height="100%"`) {
		t.Error("result root is not sized to its container")
	}
	if !strings.Contains(result.SVG, "viewBox=") {
		t.Error("result has no viewBox")
	}
	if result.Width != 600 || result.Height != 600 {
		t.Errorf("Expected 600x600 output, got %dx%d", result.Width, result.Height)
	}
	if session.Status() != types.StatusSuccess {
		t.Errorf("Expected success status, got %v", session.Status())
	}
	if session.Result() != result {
		t.Error("session should hold the new result")
	}
}

func TestAcceptRejectsOversizedFile(t *testing.T) {
	session := NewWithConfig(Config{Loader: staticLoader(fakeSVG)})
	defer session.Close()

	first := pngFile(t, "first.png")
	if _, err := session.Accept(first); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	big := input.File{Name: "big.png", MIMEType: "image/png", Size: 11 * 1024 * 1024}
	_, err := session.Accept(big)
	var tooLarge *errs.FileTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("Expected FileTooLargeError, got %v", err)
	}

	if session.Source() == nil || session.Source().Name != "first.png" {
		t.Error("rejected file should keep the previous source")
	}
	if session.Provider().State() != engine.NotLoaded {
		t.Error("rejected file should not touch the engine")
	}
}

func TestAcceptRejectsNonImage(t *testing.T) {
	session := NewWithConfig(Config{Loader: staticLoader(fakeSVG)})
	defer session.Close()

	_, err := session.Accept(input.File{Name: "notes.txt", MIMEType: "text/plain", Size: 5, Data: []byte("hello")})
	var invalid *errs.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidInputError, got %v", err)
	}
	if session.Source() != nil {
		t.Error("rejected file should not become the source")
	}
}

func TestGrayscalePreset(t *testing.T) {
	session := NewWithConfig(Config{Loader: staticLoader(fakeSVG)})
	defer session.Close()

	if _, err := session.Accept(pngFile(t, "logo.png")); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Convert(context.Background(), Options{Preset: preset.Posterized2, Scale: 3, Colors: 8}); err != nil {
		t.Fatal(err)
	}
	result, err := session.Convert(context.Background(), Options{Preset: preset.Grayscale, Scale: 3, Colors: 8})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.Params.ColorSampling != preset.SamplingGrayscale {
		t.Errorf("Expected grayscale sampling, got %v", result.Params.ColorSampling)
	}
	if result.Preset != "grayscale" {
		t.Errorf("unexpected preset %q", result.Preset)
	}
	if session.Status() != types.StatusSuccess {
		t.Errorf("Expected success status, got %v", session.Status())
	}
}

func TestExportMatchesResult(t *testing.T) {
	session := NewWithConfig(Config{Loader: staticLoader(fakeSVG)})
	defer session.Close()

	if _, err := session.Export("logo"); !errors.Is(err, errs.ErrNoResult) {
		t.Errorf("Expected ErrNoResult before converting, got %v", err)
	}

	if _, err := session.Accept(pngFile(t, "logo.png")); err != nil {
		t.Fatal(err)
	}
	result, err := session.Convert(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	blob, err := session.Export("")
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if blob.ContentType != export.ContentType || blob.ContentType != "image/svg+xml" {
		t.Errorf("unexpected content type %q", blob.ContentType)
	}
	if string(blob.Data) != result.SVG {
		t.Error("exported bytes differ from the displayed SVG")
	}
	if !strings.HasPrefix(blob.Name, export.DefaultPrefix) || !strings.HasSuffix(blob.Name, ".svg") {
		t.Errorf("unexpected default name %q", blob.Name)
	}
}

func TestConvertWithoutImage(t *testing.T) {
	session := NewWithConfig(Config{Loader: staticLoader(fakeSVG)})
	defer session.Close()

	if _, err := session.Convert(context.Background(), DefaultOptions()); !errors.Is(err, errs.ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
	if session.Status() != types.StatusIdle {
		t.Errorf("status should stay idle, got %v", session.Status())
	}
}

func TestConvertRejectsBadOptions(t *testing.T) {
	session := NewWithConfig(Config{Loader: staticLoader(fakeSVG)})
	defer session.Close()
	if _, err := session.Accept(pngFile(t, "logo.png")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts Options
	}{
		{"scale too small", Options{Preset: preset.Default, Scale: 0.5, Colors: 8}},
		{"scale off step", Options{Preset: preset.Default, Scale: 2.25, Colors: 8}},
		{"too few colors", Options{Preset: preset.Default, Scale: 3, Colors: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := session.Convert(context.Background(), tt.opts); !errors.Is(err, errs.ErrParameterRange) {
				t.Errorf("Expected ErrParameterRange, got %v", err)
			}
		})
	}

	var unknown *errs.UnknownPresetError
	if _, err := session.Convert(context.Background(), Options{Preset: "neon", Scale: 3, Colors: 8}); !errors.As(err, &unknown) {
		t.Errorf("Expected UnknownPresetError, got %v", err)
	}
	if session.Status() != types.StatusIdle {
		t.Errorf("invalid options should not start a conversion, got %v", session.Status())
	}
}

func TestEmptyResultFails(t *testing.T) {
	empty := `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"></svg>`
	session := NewWithConfig(Config{Loader: staticLoader(empty)})
	defer session.Close()

	if _, err := session.Accept(pngFile(t, "logo.png")); err != nil {
		t.Fatal(err)
	}
	_, err := session.Convert(context.Background(), DefaultOptions())
	var emptyErr *errs.EmptyResultError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("Expected EmptyResultError, got %v", err)
	}
	if session.Status() != types.StatusFailed {
		t.Errorf("Expected failed status, got %v", session.Status())
	}
	if session.Source() == nil {
		t.Error("failed conversion should keep the source")
	}
}

func TestEngineLoadFailure(t *testing.T) {
	loadErr := errors.New("network down")
	session := NewWithConfig(Config{Loader: func(context.Context) (engine.Engine, error) { return nil, loadErr }})
	defer session.Close()

	if _, err := session.Accept(pngFile(t, "logo.png")); err != nil {
		t.Fatal(err)
	}
	_, err := session.Convert(context.Background(), DefaultOptions())
	var engineErr *errs.EngineLoadError
	if !errors.As(err, &engineErr) || !errors.Is(err, loadErr) {
		t.Fatalf("Expected EngineLoadError wrapping the cause, got %v", err)
	}
	if errs.Notice(err) == "" {
		t.Error("load failures should produce a notice")
	}
	if session.Status() != types.StatusFailed {
		t.Errorf("Expected failed status, got %v", session.Status())
	}
}

func TestNewConversionSupersedesRunningOne(t *testing.T) {
	eng := &blockingEngine{started: make(chan struct{})}
	session := NewWithConfig(Config{Loader: func(context.Context) (engine.Engine, error) { return eng, nil }})
	defer session.Close()

	if _, err := session.Accept(pngFile(t, "logo.png")); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := session.Convert(context.Background(), DefaultOptions())
		done <- err
	}()

	select {
	case <-eng.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first conversion never reached the engine")
	}
	if session.Status() != types.StatusLoading {
		t.Errorf("Expected loading status, got %v", session.Status())
	}

	result, err := session.Convert(context.Background(), Options{Preset: preset.Curvy, Scale: 2, Colors: 4})
	if err != nil {
		t.Fatalf("second Convert failed: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, errs.ErrSuperseded) {
			t.Errorf("Expected ErrSuperseded, got %v", err)
		}
		if errs.Notice(err) != "" {
			t.Error("superseded conversions should not produce a notice")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first conversion never returned")
	}

	if session.Result() != result || session.Status() != types.StatusSuccess {
		t.Error("late result overwrote the newer conversion")
	}
}

func TestSupersedeWhileEngineLoads(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	session := NewWithConfig(Config{Loader: func(ctx context.Context) (engine.Engine, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return staticEngine{svg: fakeSVG}, nil
	}})
	defer session.Close()

	if _, err := session.Accept(pngFile(t, "logo.png")); err != nil {
		t.Fatal(err)
	}

	first := make(chan error, 1)
	go func() {
		_, err := session.Convert(context.Background(), DefaultOptions())
		first <- err
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("engine load never started")
	}

	second := make(chan error, 1)
	go func() {
		_, err := session.Convert(context.Background(), DefaultOptions())
		second <- err
	}()

	select {
	case err := <-first:
		if !errors.Is(err, errs.ErrSuperseded) {
			t.Errorf("Expected ErrSuperseded, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first conversion never returned")
	}

	close(release)
	select {
	case err := <-second:
		if err != nil {
			t.Fatalf("superseding conversion failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second conversion never returned")
	}
	if session.Status() != types.StatusSuccess {
		t.Errorf("Expected success status, got %v", session.Status())
	}
	if session.Provider().State() != engine.Ready {
		t.Errorf("engine should be ready, got %v", session.Provider().State())
	}
}

func TestTracedShapesKeepTheirPosition(t *testing.T) {
	session := New()
	defer session.Close()

	size := 200
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if x < size/2 && y < size/2 {
				img.Set(x, y, color.RGBA{255, 0, 0, 255})
			} else {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Accept(input.File{Name: "corner.png", MIMEType: "image/png", Size: int64(buf.Len()), Data: buf.Bytes()}); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Convert(context.Background(), Options{Preset: preset.Posterized2, Scale: 2, Colors: 8}); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	thumb, err := session.Thumbnail(100)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	out, err := png.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail is not a PNG: %v", err)
	}

	isRed := func(x, y int) bool {
		r, g, b, a := out.At(x, y).RGBA()
		return a>>8 > 200 && r>>8 > 200 && g>>8 < 60 && b>>8 < 60
	}
	isWhite := func(x, y int) bool {
		r, g, b, a := out.At(x, y).RGBA()
		return a>>8 > 200 && r>>8 > 200 && g>>8 > 200 && b>>8 > 200
	}

	for _, p := range [][2]int{{10, 10}, {25, 25}, {40, 40}} {
		if !isRed(p[0], p[1]) {
			t.Errorf("pixel %v should be red, got %v", p, out.At(p[0], p[1]))
		}
	}
	for _, p := range [][2]int{{60, 60}, {75, 75}, {90, 90}, {90, 10}, {10, 90}} {
		if !isWhite(p[0], p[1]) {
			t.Errorf("pixel %v should be white, got %v", p, out.At(p[0], p[1]))
		}
	}
}

func TestAcceptResetsSession(t *testing.T) {
	session := NewWithConfig(Config{Loader: staticLoader(fakeSVG)})
	defer session.Close()

	if _, err := session.Accept(pngFile(t, "one.png")); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Convert(context.Background(), DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	src, err := session.Accept(pngFile(t, "two.png"))
	if err != nil {
		t.Fatal(err)
	}
	if session.Source() != src || session.Result() != nil || session.Status() != types.StatusIdle {
		t.Error("new input should reset the session")
	}
}

func TestPreviewAndThumbnail(t *testing.T) {
	session := NewWithConfig(Config{Loader: staticLoader(fakeSVG)})
	defer session.Close()

	var buf bytes.Buffer
	if err := session.Preview(&buf, nil); !errors.Is(err, errs.ErrNoResult) {
		t.Errorf("Expected ErrNoResult, got %v", err)
	}

	if _, err := session.Accept(pngFile(t, "logo.png")); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Convert(context.Background(), DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	v := preview.NewViewport()
	v.ZoomIn()
	if err := session.Preview(&buf, v); err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Zoom: 125%") {
		t.Error("preview does not show the zoom level")
	}

	thumb, err := session.Thumbnail(64)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
		t.Errorf("unexpected thumbnail size %v", img.Bounds())
	}
}

func TestHandoffRoundTrip(t *testing.T) {
	session := NewWithConfig(Config{Loader: staticLoader(fakeSVG)})
	defer session.Close()
	store := handoff.NewMemoryStore()

	if _, ok, err := session.AcceptPending(store); ok || err != nil {
		t.Fatalf("nothing should be pending, got ok=%v err=%v", ok, err)
	}

	f := pngFile(t, "pending.png")
	if err := handoff.LeavePending(store, f.Name, input.DataURL(f.MIMEType, f.Data)); err != nil {
		t.Fatal(err)
	}
	src, ok, err := session.AcceptPending(store)
	if err != nil || !ok {
		t.Fatalf("AcceptPending failed: ok=%v err=%v", ok, err)
	}
	if src.Name != "pending.png" || !bytes.Equal(src.Data, f.Data) {
		t.Error("pending image was not accepted intact")
	}
	if _, ok, _ := session.AcceptPending(store); ok {
		t.Error("pending image should be consumed once")
	}

	result, err := session.Convert(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	blob, err := session.SendToEditor(store, "brand")
	if err != nil {
		t.Fatalf("SendToEditor failed: %v", err)
	}
	svg, name, err := handoff.Receive(store)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if svg != result.SVG || name != blob.Name || name != "brand.svg" {
		t.Errorf("editor received %q with %d bytes", name, len(svg))
	}
}
