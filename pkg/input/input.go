// Package input validates user-supplied images before any pixel work happens.
package input

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Candseven88/3D-Logo-Maker/pkg/errs"
	"github.com/Candseven88/3D-Logo-Maker/pkg/types"
)

// DefaultMaxSize is the largest accepted upload, 10 MB.
const DefaultMaxSize int64 = 10 * 1024 * 1024

const userAgent = "3D-Logo-Maker/1.0 (+https://github.com/Candseven88/3D-Logo-Maker)"

// File is an upload as it arrives from the user, before validation.
type File struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

// Handler validates uploads and loads them from paths, URLs or readers
type Handler struct {
	maxSize int64
	client  *http.Client
}

// NewHandler creates a handler with the given size limit. A non-positive
// limit selects DefaultMaxSize.
func NewHandler(maxSize int64) *Handler {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Handler{
		maxSize: maxSize,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// MaxSize returns the configured size limit in bytes
func (h *Handler) MaxSize() int64 {
	return h.maxSize
}

// Accept validates f and returns the accepted source image. The type and
// size checks run before anything is decoded; dimensions are read from the
// image header on a best-effort basis.
func (h *Handler) Accept(f File) (*types.SourceImage, error) {
	mimeType := f.MIMEType
	if mimeType == "" && len(f.Data) > 0 {
		mimeType = DetectContentType(f.Data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, &errs.InvalidInputError{Name: f.Name, MIMEType: mimeType}
	}

	size := f.Size
	if size < int64(len(f.Data)) {
		size = int64(len(f.Data))
	}
	if size > h.maxSize {
		return nil, &errs.FileTooLargeError{Name: f.Name, Size: size, Limit: h.maxSize}
	}

	src := &types.SourceImage{
		Name:       f.Name,
		MIMEType:   mimeType,
		Size:       size,
		Data:       f.Data,
		PreviewURL: DataURL(mimeType, f.Data),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data)); err == nil {
		src.Width, src.Height = cfg.Width, cfg.Height
	}
	return src, nil
}

// Open reads a local file. At most MaxSize+1 bytes are read so an oversize
// file is still reported with its real size.
func (h *Handler) Open(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return File{}, fmt.Errorf("failed to stat image: %w", err)
	}

	file, err := h.OpenReader(filepath.Base(path), f)
	if err != nil {
		return File{}, err
	}
	if info.Size() > file.Size {
		file.Size = info.Size()
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(byExt, "image/") {
		file.MIMEType = byExt
	}
	return file, nil
}

// OpenReader drains r into a File named name, sniffing its content type.
func (h *Handler) OpenReader(name string, r io.Reader) (File, error) {
	data, err := io.ReadAll(io.LimitReader(r, h.maxSize+1))
	if err != nil {
		return File{}, fmt.Errorf("failed to read image data: %w", err)
	}
	return File{
		Name:     name,
		MIMEType: DetectContentType(data),
		Size:     int64(len(data)),
		Data:     data,
	}, nil
}

// OpenURL downloads an image over http or https.
func (h *Handler) OpenURL(ctx context.Context, imageURL string) (File, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return File{}, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return File{}, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return File{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return File{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return File{}, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	name := filepath.Base(parsedURL.Path)
	if name == "." || name == "/" {
		name = parsedURL.Host
	}
	file, err := h.OpenReader(name, resp.Body)
	if err != nil {
		return File{}, err
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		file.MIMEType = ct
	}
	if resp.ContentLength > file.Size {
		file.Size = resp.ContentLength
	}
	return file, nil
}

// OpenSmart loads source from a URL when it looks like one, else from disk.
func (h *Handler) OpenSmart(ctx context.Context, source string) (File, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return h.OpenURL(ctx, source)
	}
	return h.Open(source)
}

// DetectContentType sniffs the MIME type from the first 512 bytes of data.
func DetectContentType(data []byte) string {
	if len(data) > 512 {
		data = data[:512]
	}
	return http.DetectContentType(data)
}

// DataURL encodes data as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// FromDataURL turns a base64 data URL back into a File.
func FromDataURL(name, dataURL string) (File, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return File{}, fmt.Errorf("not a data URL")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return File{}, fmt.Errorf("malformed data URL")
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return File{}, fmt.Errorf("data URL is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return File{}, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return File{
		Name:     name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Data:     data,
	}, nil
}
