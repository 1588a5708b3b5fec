package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Candseven88/3D-Logo-Maker/internal/config"
)

// createTestImage writes a solid square PNG to path
func createTestImage(t *testing.T, path string, size int, c color.Color) {
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
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeConfig(t *testing.T, modify func(c *config.Config)) string {
	t.Helper()
	cfg := config.Default()
	if modify != nil {
		modify(cfg)
	}
	path := filepath.Join(t.TempDir(), "config.json")
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		source string
		dir    string
		want   string
	}{
		{"default prefix", "converted-", "logo.png", "out", filepath.Join("out", "converted-logo.svg")},
		{"custom prefix", "brand_", "/tmp/in/mark.webp", "svg", filepath.Join("svg", "brand_mark.svg")},
		{"no prefix", "", "logo.jpeg", ".", "logo.svg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Output.Prefix = tt.prefix
			if got := outputPath(cfg, tt.source, tt.dir); got != tt.want {
				t.Errorf("outputPath(%q, %q) = %q, want %q", tt.source, tt.dir, got, tt.want)
			}
		})
	}
}

func TestRunExitCodes(t *testing.T) {
	cfgPath := writeConfig(t, nil)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"list presets", []string{"-presets"}, 0},
		{"help", []string{"-h"}, 0},
		{"unknown flag", []string{"-nope"}, 2},
		{"missing input", []string{"-config", cfgPath}, 2},
		{"bad config", []string{"-config", filepath.Join(t.TempDir(), "missing.json"), "-in", "x.png"}, 1},
		{"invalid preset", []string{"-config", cfgPath, "-in", "x.png", "-preset", "watercolor"}, 1},
		{"unreadable input", []string{"-config", cfgPath, "-in", filepath.Join(t.TempDir(), "missing.png"), "-out", "-"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(tt.args); got != tt.want {
				t.Errorf("run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestRunSingleWritesSVG(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "red.png")
	createTestImage(t, in, 60, color.RGBA{255, 0, 0, 255})
	out := filepath.Join(dir, "red.svg")

	if code := run([]string{"-config", writeConfig(t, nil), "-in", in, "-out", out, "-scale", "1"}); code != 0 {
		t.Fatalf("run exited with %d", code)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !bytes.Contains(data, []byte("<svg")) {
		t.Error("output is not an svg document")
	}
}

func TestRunBatchUsesConfiguredPrefix(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	createTestImage(t, filepath.Join(inDir, "red.png"), 60, color.RGBA{255, 0, 0, 255})
	createTestImage(t, filepath.Join(inDir, "blue.png"), 60, color.RGBA{0, 0, 255, 255})

	cfgPath := writeConfig(t, func(c *config.Config) { c.Output.Prefix = "brand_" })
	if code := run([]string{"-config", cfgPath, "-in", inDir, "-out", outDir, "-scale", "1"}); code != 0 {
		t.Fatalf("run exited with %d", code)
	}

	for _, name := range []string{"brand_red.svg", "brand_blue.svg"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "red.svg")); err == nil {
		t.Error("batch output ignored the configured prefix")
	}
}
