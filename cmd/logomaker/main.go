package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	logomaker "github.com/Candseven88/3D-Logo-Maker"
	"github.com/Candseven88/3D-Logo-Maker/internal/config"
	"github.com/Candseven88/3D-Logo-Maker/internal/utils"
	"github.com/Candseven88/3D-Logo-Maker/pkg/advisor"
	"github.com/Candseven88/3D-Logo-Maker/pkg/client"
	"github.com/Candseven88/3D-Logo-Maker/pkg/errs"
	"github.com/Candseven88/3D-Logo-Maker/pkg/handoff"
	"github.com/Candseven88/3D-Logo-Maker/pkg/llamacpp"
	"github.com/Candseven88/3D-Logo-Maker/pkg/ollama"
	"github.com/Candseven88/3D-Logo-Maker/pkg/preset"
	"github.com/Candseven88/3D-Logo-Maker/pkg/preview"
	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

type options struct {
	in, out      string
	presetName   string
	scale        float64
	colors       int
	configPath   string
	previewPath  string
	pngPath      string
	thumbSize    int
	zoom         float64
	handoffDir   string
	advise       bool
	backend      string
	url, model   string
	listPresets  bool
	verbose      bool
	explicitFlag map[string]bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the command line and returns the process exit code. Deferred
// cleanup runs before main exits.
func run(args []string) int {
	var opts options
	fs := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ContinueOnError)
	fs.StringVar(&opts.in, "in", "", "input image path, URL, directory or - for stdin")
	fs.StringVar(&opts.out, "out", "", "output svg file, directory in batch mode, or - for stdout")
	fs.StringVar(&opts.presetName, "preset", string(preset.DefaultName), "tracing preset (see -presets)")
	fs.Float64Var(&opts.scale, "scale", preset.DefaultScale, "output scale (1-10, steps of 0.5)")
	fs.IntVar(&opts.colors, "colors", preset.DefaultColors, "number of colours (2-64)")
	fs.StringVar(&opts.configPath, "config", "", "config file (json or yaml), defaults to "+config.GetConfigPath())
	fs.StringVar(&opts.previewPath, "preview", "", "write an HTML preview page")
	fs.StringVar(&opts.pngPath, "png", "", "write a PNG thumbnail")
	fs.IntVar(&opts.thumbSize, "size", preview.DefaultThumbnailSize, "thumbnail size in pixels")
	fs.Float64Var(&opts.zoom, "zoom", preview.DefaultZoom, "preview zoom (0.25-3)")
	fs.StringVar(&opts.handoffDir, "handoff", "", "hand the result to the editor through this directory")
	fs.BoolVar(&opts.advise, "advise", false, "ask a vision model which preset to use")
	fs.StringVar(&opts.backend, "backend", "ollama", "advisor backend: ollama or llamacpp")
	fs.StringVar(&opts.url, "url", "", "advisor server URL (defaults: ollama="+ollama.DefaultURL+", llamacpp="+llamacpp.DefaultURL+")")
	fs.StringVar(&opts.model, "model", "llava", "advisor model name")
	fs.BoolVar(&opts.listPresets, "presets", false, "list the available presets and exit")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	opts.explicitFlag = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { opts.explicitFlag[f.Name] = true })

	if opts.listPresets {
		for _, name := range preset.Names() {
			fmt.Printf("%-12s %s\n", name, preset.Label(name))
		}
		return 0
	}

	if opts.verbose {
		logomaker.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := loadConfig(&opts)
	if err != nil {
		log.Printf(utils.DecorateText("⚡ %v", utils.ErrorMessage), err)
		return 1
	}

	if opts.in == "" && opts.handoffDir == "" {
		log.Printf("usage: %s -in input.png|URL|dir|- [-out out.svg|-] [-preset posterized2] [-scale 3] [-colors 8] [-preview out.html] [-png thumb.png] [-advise]", fs.Name())
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	session := logomaker.NewWithConfig(logomaker.Config{
		MaxFileSize:  cfg.Input.MaxFileSize,
		MaxDimension: cfg.Raster.MaxDimension,
	})
	defer session.Close()

	if opts.in != "" && opts.in != "-" && utils.DirExists(opts.in) {
		if err := runBatch(ctx, session, cfg, &opts); err != nil {
			log.Printf(utils.DecorateText("⚡ %v", utils.ErrorMessage), err)
			return 1
		}
		return 0
	}

	if err := runSingle(ctx, session, cfg, &opts); err != nil {
		if notice := errs.Notice(err); notice != "" {
			log.Println(utils.DecorateText(notice, utils.ErrorMessage))
		}
		log.Printf(utils.DecorateText("⚡ %v", utils.ErrorMessage), err)
		return 1
	}
	return 0
}

// loadConfig reads the config file and applies explicitly set flags on top.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()
	path := opts.configPath
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := opts.explicitFlag
	if set["preset"] {
		cfg.Conversion.Preset = opts.presetName
	}
	if set["scale"] {
		cfg.Conversion.Scale = opts.scale
	}
	if set["colors"] {
		cfg.Conversion.Colors = opts.colors
	}
	if set["zoom"] {
		cfg.Output.PreviewZoom = opts.zoom
	}
	if set["size"] {
		cfg.Output.ThumbnailSize = opts.thumbSize
	}
	if set["handoff"] {
		cfg.Handoff.Dir = opts.handoffDir
	}
	if set["backend"] {
		cfg.Advisor.Backend = opts.backend
	}
	if set["url"] {
		cfg.Advisor.URL = opts.url
	}
	if set["model"] {
		cfg.Advisor.Model = opts.model
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// outputPath names the svg written for the source at name inside dir.
func outputPath(cfg *config.Config, name, dir string) string {
	return utils.GenerateOutputFilename(name, dir, cfg.Output.Prefix, "", "svg")
}

func conversionOptions(cfg *config.Config) logomaker.Options {
	return logomaker.Options{
		Preset: preset.Name(cfg.Conversion.Preset),
		Scale:  cfg.Conversion.Scale,
		Colors: cfg.Conversion.Colors,
	}
}

func runSingle(ctx context.Context, session *logomaker.Session, cfg *config.Config, opts *options) error {
	var store handoff.Store
	if opts.handoffDir != "" {
		fs, err := handoff.NewFileStore(cfg.Handoff.Dir)
		if err != nil {
			return err
		}
		store = fs
	}

	switch {
	case opts.in == "":
		src, ok, err := session.AcceptPending(store)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no pending image in %s", cfg.Handoff.Dir)
		}
		log.Printf("picked up pending image %s", src.Name)
	default:
		if opts.in == "-" && utils.IsTerminal(os.Stdin) {
			return errors.New("no image piped to stdin")
		}
		f, err := session.OpenSmart(ctx, opts.in)
		if err != nil {
			return err
		}
		if _, err := session.Accept(f); err != nil {
			return err
		}
	}

	convOpts := conversionOptions(cfg)
	if opts.advise {
		convOpts = advise(ctx, session, cfg, opts, convOpts)
	}

	result, err := convert(ctx, session, convOpts)
	if err != nil {
		return err
	}

	out := opts.out
	if out == "" {
		if opts.in == "-" || opts.in == "" {
			out = "-"
		} else {
			out = outputPath(cfg, session.Source().Name, cfg.Output.OutputDir)
		}
	}
	if err := writeResult(session, out); err != nil {
		return err
	}

	if opts.previewPath != "" {
		if err := writePreview(session, cfg, opts.previewPath); err != nil {
			return err
		}
	}
	if opts.pngPath != "" {
		thumb, err := session.Thumbnail(cfg.Output.ThumbnailSize)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.pngPath, thumb, 0o644); err != nil {
			return fmt.Errorf("failed to write thumbnail: %w", err)
		}
		log.Printf("wrote %s", opts.pngPath)
	}
	if store != nil {
		name := filepath.Base(out)
		if out == "-" {
			name = ""
		}
		blob, err := session.SendToEditor(store, name)
		if err != nil {
			return err
		}
		log.Printf("handed %s to the editor", blob.Name)
	}

	log.Printf(utils.DecorateText("✔ %s: %dx%d, %.2f KB", utils.SuccessMessage), result.SourceName, result.Width, result.Height, result.SizeKB())
	return nil
}

func runBatch(ctx context.Context, session *logomaker.Session, cfg *config.Config, opts *options) error {
	files, err := utils.ListImageFiles(opts.in)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in %s", opts.in)
	}

	outDir := opts.out
	if outDir == "" || outDir == "-" {
		outDir = cfg.Output.OutputDir
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return err
	}

	start := time.Now()
	failed := 0
	for _, path := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f, err := session.Open(path)
		if err == nil {
			_, err = session.Accept(f)
		}
		if err == nil {
			_, err = convert(ctx, session, conversionOptions(cfg))
		}
		if err == nil {
			err = writeResult(session, outputPath(cfg, path, outDir))
		}
		if err != nil {
			failed++
			log.Printf(utils.DecorateText("%s: %s", utils.ErrorMessage), path, errs.Notice(err))
		}
	}

	log.Printf(utils.DecorateText("converted %d of %d images in %s", utils.StatusMessage),
		len(files)-failed, len(files), utils.FormatTime(time.Since(start)))
	if failed > 0 {
		return fmt.Errorf("%d conversions failed", failed)
	}
	return nil
}

// convert runs one conversion behind a spinner when stderr is a terminal.
func convert(ctx context.Context, session *logomaker.Session, opts logomaker.Options) (*types.SVGResult, error) {
	if !utils.IsTerminal(os.Stderr) {
		return session.Convert(ctx, opts)
	}

	label := fmt.Sprintf("Vectorizing %s with %s ", session.Source().Name, preset.Label(opts.Preset))
	spinner := utils.NewSpinner(utils.DecorateText(label, utils.StatusMessage), 100*time.Millisecond, true)
	spinner.Start()
	start := time.Now()
	result, err := session.Convert(ctx, opts)
	if err == nil {
		spinner.StopMsg = utils.DecorateText(fmt.Sprintf("%s done in %s\n", label, utils.FormatTime(time.Since(start))), utils.SuccessMessage)
	}
	spinner.Stop()
	return result, err
}

func advise(ctx context.Context, session *logomaker.Session, cfg *config.Config, opts *options, current logomaker.Options) logomaker.Options {
	var (
		visionClient client.VisionClient
		err          error
	)
	switch cfg.Advisor.Backend {
	case "llamacpp":
		visionClient, err = llamacpp.NewClient(cfg.Advisor.URL)
	default:
		visionClient, err = ollama.NewClient(cfg.Advisor.URL)
	}
	if err != nil {
		log.Printf("advisor unavailable: %v", err)
		return current
	}

	suggestion, err := session.Advise(ctx, advisor.New(visionClient, cfg.Advisor.Model))
	if err != nil {
		log.Printf("advisor failed: %v", err)
		return current
	}
	log.Printf("advisor suggests %q (confidence %.2f): %s", suggestion.Preset, suggestion.Confidence, suggestion.Reason)

	if opts.explicitFlag["preset"] || suggestion.Confidence == 0 {
		return current
	}
	current.Preset = preset.Name(suggestion.Preset)
	return current
}

func writeResult(session *logomaker.Session, out string) error {
	if out == "-" {
		blob, err := session.Export("")
		if err != nil {
			return err
		}
		_, err = blob.WriteTo(os.Stdout)
		return err
	}

	blob, err := session.Export(filepath.Base(out))
	if err != nil {
		return err
	}
	path, err := blob.Save(filepath.Dir(out))
	if err != nil {
		return err
	}
	log.Printf("wrote %s (%s)", path, utils.FormatFileSize(int64(blob.Size())))
	return nil
}

func writePreview(session *logomaker.Session, cfg *config.Config, path string) error {
	viewport := preview.NewViewport()
	viewport.SetZoom(cfg.Output.PreviewZoom)

	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create preview: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := session.Preview(w, viewport); err != nil {
		return err
	}
	if path != "-" {
		log.Printf("wrote %s", path)
	}
	return nil
}
