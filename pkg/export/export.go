// Package export packages conversion results as downloadable SVG files.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Candseven88/3D-Logo-Maker/internal/utils"
	"github.com/Candseven88/3D-Logo-Maker/pkg/errs"
	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

// ContentType is the MIME type of exported files.
const ContentType = "image/svg+xml"

// DefaultPrefix starts generated file names.
const DefaultPrefix = "converted-"

// Blob is an exported SVG ready to be written out. Data is byte-identical to
// the displayed SVG.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// Export builds the blob for result. An empty name selects
// "converted-<unix millis>.svg".
func Export(result *types.SVGResult, name string) (*Blob, error) {
	if result == nil || result.SVG == "" {
		return nil, errs.ErrNoResult
	}
	if name == "" {
		name = DefaultName(DefaultPrefix, time.Now())
	} else {
		name = utils.SanitizeFilename(name)
		if !strings.EqualFold(filepath.Ext(name), ".svg") {
			name += ".svg"
		}
	}
	return &Blob{
		Name:        name,
		ContentType: ContentType,
		Data:        []byte(result.SVG),
	}, nil
}

// DefaultName returns prefix followed by the millisecond timestamp of t.
func DefaultName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s%d.svg", prefix, t.UnixMilli())
}

// WriteTo writes the blob content to w.
func (b *Blob) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Data)
	return int64(n), err
}

// Save writes the blob into dir under its name and returns the full path.
func (b *Blob) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := utils.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, b.Name)
	if err := os.WriteFile(path, b.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// Size returns the blob size in bytes
func (b *Blob) Size() int {
	return len(b.Data)
}
