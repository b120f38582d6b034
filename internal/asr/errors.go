package asr

import (
	"fmt"

	"github.com/voxlab/cv-transcriber/internal/audio"
)

// The service boundary maps every internal failure to one of these types;
// callers never see raw decoding or inference errors.

// InvalidRequestError marks a failure caused by the caller's input. It maps
// to a client-error response and should not be retried unchanged.
type InvalidRequestError struct {
	Detail string
}

func (e *InvalidRequestError) Error() string { return e.Detail }

// NewUnsupportedFormatError wraps the normalizer's allow-list rejection as a
// client error.
func NewUnsupportedFormatError(err *audio.ErrUnsupportedFormat) *InvalidRequestError {
	return &InvalidRequestError{Detail: fmt.Sprintf("Unsupported file type. Upload an audio file. (%s)", err.Filename)}
}

// TranscriptionError marks a decoding, resampling or inference failure. It
// maps to a server-error response and carries the original cause.
type TranscriptionError struct {
	Cause error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("ASR failed: %v", e.Cause) }
func (e *TranscriptionError) Unwrap() error { return e.Cause }

// CleanupError marks a failure to release the request's staged temp
// resources. It is surfaced rather than swallowed so disk leakage does not
// go unnoticed.
type CleanupError struct {
	Path  string
	Cause error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("Cleanup failed for %s: %v", e.Path, e.Cause)
}
func (e *CleanupError) Unwrap() error { return e.Cause }
