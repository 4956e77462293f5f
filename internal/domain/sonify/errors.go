package sonify

import "errors"

var (
	// ErrNotFound indicates a missing image or record.
	ErrNotFound = errors.New("not found")

	// ErrResourceExhausted indicates the synthesizer ran out of capacity (GPU memory, quota).
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInvalidInput indicates a malformed request parameter.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedMedia indicates an upload that is not a JPEG or PNG image.
	ErrUnsupportedMedia = errors.New("unsupported media type")
)
