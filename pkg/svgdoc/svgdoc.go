// Package svgdoc inspects and rewrites SVG documents produced by the engine.
//
// Rewrites only touch the root <svg> start tag; the rest of the document is
// kept byte for byte.
package svgdoc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	rsvg "github.com/rustyoz/svg"
)

// Drawable element names. A result must contain at least one of them.
var drawable = map[string]bool{
	"path":    true,
	"polygon": true,
	"circle":  true,
}

var leadingNumber = regexp.MustCompile(`^\s*[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Normalize makes the document scale to its container: the root gets
// width="100%", height="100%" and preserveAspectRatio="xMidYMid meet", and a
// missing viewBox is synthesized from the original numeric width and height.
// A document that does not parse, or has no svg element, is returned
// unchanged.
func Normalize(raw string) string {
	out, err := rewriteRoot(raw, func(attrs []xml.Attr) []xml.Attr {
		width, hasWidth := lookup(attrs, "width")
		height, hasHeight := lookup(attrs, "height")
		if _, hasViewBox := lookup(attrs, "viewBox"); !hasViewBox && hasWidth && hasHeight {
			w, okW := parseLength(width)
			h, okH := parseLength(height)
			if okW && okH {
				attrs = set(attrs, "viewBox", fmt.Sprintf("0 0 %s %s", formatFloat(w), formatFloat(h)))
			}
		}
		attrs = set(attrs, "width", "100%")
		attrs = set(attrs, "height", "100%")
		attrs = set(attrs, "preserveAspectRatio", "xMidYMid meet")
		return attrs
	})
	if err != nil {
		return raw
	}
	return out
}

// WithSize returns a copy of doc whose root has the given width and height.
// Rasterizers that cannot resolve percentages need absolute sizes.
func WithSize(doc string, width, height float64) (string, error) {
	return rewriteRoot(doc, func(attrs []xml.Attr) []xml.Attr {
		attrs = set(attrs, "width", formatFloat(width))
		return set(attrs, "height", formatFloat(height))
	})
}

// CountDrawables counts path, polygon and circle elements in doc. Counting
// stops at the first syntax error.
func CountDrawables(doc string) int {
	dec := xml.NewDecoder(strings.NewReader(doc))
	dec.Strict = false

	n := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return n
		}
		if se, ok := tok.(xml.StartElement); ok && drawable[se.Name.Local] {
			n++
		}
	}
}

// HasDrawable reports whether doc contains at least one drawable element.
func HasDrawable(doc string) bool {
	return CountDrawables(doc) > 0
}

// Dimensions returns the width and height of the root viewBox.
func Dimensions(doc string) (float64, float64, error) {
	viewBox := ""
	if parsed, err := rsvg.ParseSvg(doc, "result", 1.0); err == nil {
		viewBox = parsed.ViewBox
	}
	if viewBox == "" {
		attrs, err := rootAttrs(doc)
		if err != nil {
			return 0, 0, err
		}
		viewBox, _ = lookup(attrs, "viewBox")
	}

	fields := strings.Fields(strings.ReplaceAll(viewBox, ",", " "))
	if len(fields) != 4 {
		return 0, 0, fmt.Errorf("svg has no usable viewBox %q", viewBox)
	}
	w, errW := strconv.ParseFloat(fields[2], 64)
	h, errH := strconv.ParseFloat(fields[3], 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("svg has invalid viewBox %q", viewBox)
	}
	return w, h, nil
}

var errNoRoot = errors.New("no svg element")

// validate runs a strict parse over the whole document.
func validate(doc string) error {
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// locateRoot finds the first svg start tag and its byte span in doc.
func locateRoot(doc string) (xml.StartElement, int, int, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		start := int(dec.InputOffset())
		tok, err := dec.RawToken()
		if err == io.EOF {
			return xml.StartElement{}, 0, 0, errNoRoot
		}
		if err != nil {
			return xml.StartElement{}, 0, 0, err
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "svg" {
			return se.Copy(), start, int(dec.InputOffset()), nil
		}
	}
}

func rootAttrs(doc string) ([]xml.Attr, error) {
	se, _, _, err := locateRoot(doc)
	if err != nil {
		return nil, err
	}
	return se.Attr, nil
}

func rewriteRoot(doc string, edit func([]xml.Attr) []xml.Attr) (string, error) {
	if err := validate(doc); err != nil {
		return "", err
	}
	se, start, end, err := locateRoot(doc)
	if err != nil {
		return "", err
	}

	tag := doc[start:end]
	selfClosing := strings.HasSuffix(tag, "/>")

	var b bytes.Buffer
	b.WriteString(doc[:start])
	b.WriteByte('<')
	b.WriteString(qualified(se.Name))
	for _, a := range edit(se.Attr) {
		b.WriteByte(' ')
		b.WriteString(qualified(a.Name))
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Value))
		b.WriteByte('"')
	}
	if selfClosing {
		b.WriteString("/>")
	} else {
		b.WriteByte('>')
	}
	b.WriteString(doc[end:])
	return b.String(), nil
}

func qualified(n xml.Name) string {
	if n.Space != "" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

func lookup(attrs []xml.Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func set(attrs []xml.Attr, name, value string) []xml.Attr {
	for i, a := range attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			attrs[i].Value = value
			return attrs
		}
	}
	return append(attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

// parseLength reads the leading number of an absolute length such as
// "240", "240px" or "180pt". Percentages are relative and rejected.
func parseLength(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if strings.HasSuffix(v, "%") {
		return 0, false
	}
	m := leadingNumber.FindString(v)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;", `"`, "&quot;", "\n", "&#xA;", "\t", "&#x9;")

func escapeAttr(v string) string {
	return attrEscaper.Replace(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
