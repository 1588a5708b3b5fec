// Package errs defines the error kinds surfaced by the conversion pipeline.
//
// Every pipeline stage returns one of these types (or wraps one), so callers
// can branch with errors.As / errors.Is and show a single user-facing notice.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrParameterRange is returned when a scale or colour override lies
	// outside the range the controls allow.
	ErrParameterRange = errors.New("parameter out of range")

	// ErrNoImage is returned when a conversion is requested before any
	// image was accepted.
	ErrNoImage = errors.New("no image selected")

	// ErrNoResult is returned when export or hand-off is requested before
	// a conversion succeeded.
	ErrNoResult = errors.New("no conversion result")

	// ErrSuperseded is returned by a conversion that was cancelled because
	// a newer one started.
	ErrSuperseded = errors.New("conversion superseded by a newer request")
)

// InvalidInputError reports a file whose MIME type is not image/*.
type InvalidInputError struct {
	Name     string
	MIMEType string
}

func (e *InvalidInputError) Error() string {
	if e.MIMEType == "" {
		return fmt.Sprintf("invalid input %q: unknown file type", e.Name)
	}
	return fmt.Sprintf("invalid input %q: %s is not an image type", e.Name, e.MIMEType)
}

// FileTooLargeError reports a file above the accepted size limit.
type FileTooLargeError struct {
	Name  string
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %q is too large: %d bytes (limit %d)", e.Name, e.Size, e.Limit)
}

// DecodeError reports an image that could not be decoded or drawn.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image %q: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EngineLoadError reports that the tracing engine could not be made ready.
type EngineLoadError struct {
	Err error
}

func (e *EngineLoadError) Error() string {
	return fmt.Sprintf("vectorization engine unavailable: %v", e.Err)
}

func (e *EngineLoadError) Unwrap() error { return e.Err }

// EmptyResultError reports an engine run that produced no drawable shapes.
type EmptyResultError struct {
	Err error
}

func (e *EmptyResultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vectorization produced no shapes: %v", e.Err)
	}
	return "vectorization produced no shapes"
}

func (e *EmptyResultError) Unwrap() error { return e.Err }

// UnknownPresetError reports a preset name outside the closed preset set.
type UnknownPresetError struct {
	Name string
}

func (e *UnknownPresetError) Error() string {
	return fmt.Sprintf("unknown preset %q", e.Name)
}

// Notice converts a pipeline error into the one-line message shown to the
// user. Unknown errors fall back to a generic conversion failure.
func Notice(err error) string {
	if err == nil {
		return ""
	}

	var (
		invalid  *InvalidInputError
		tooLarge *FileTooLargeError
		decode   *DecodeError
		load     *EngineLoadError
		empty    *EmptyResultError
		unknown  *UnknownPresetError
	)
	switch {
	case errors.As(err, &invalid):
		return "Please select an image file."
	case errors.As(err, &tooLarge):
		return fmt.Sprintf("Image must be %d MB or smaller.", tooLarge.Limit/(1024*1024))
	case errors.As(err, &decode):
		return "The image could not be read. Try a different file."
	case errors.As(err, &load):
		return "The vectorization engine failed to load. Please retry."
	case errors.As(err, &empty):
		return "No shapes were found. Try another preset or more colors."
	case errors.As(err, &unknown):
		return fmt.Sprintf("Unknown preset %q.", unknown.Name)
	case errors.Is(err, ErrParameterRange):
		return "Scale or color count is out of range."
	case errors.Is(err, ErrNoImage):
		return "Select an image first."
	case errors.Is(err, ErrNoResult):
		return "Convert an image first."
	case errors.Is(err, ErrSuperseded):
		return ""
	}
	return "Conversion failed. Please try again."
}
