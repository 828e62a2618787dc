package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client abstracts vision-model providers for handwriting extraction.
type Client interface {
	ExtractLaTeX(ctx context.Context, input ExtractInput) (string, error)
}

// ExtractInput captures the inputs needed for one extraction call.
type ExtractInput struct {
	// ImageJPEG is the normalized image, already encoded.
	ImageJPEG []byte
}

// ErrorKind classifies extraction failures for the presentation layer.
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindHTTPError          ErrorKind = "http_error"
	KindEmptyResponse      ErrorKind = "empty_response"
	KindNetworkError       ErrorKind = "network_error"
)

// Error is the tagged failure type returned by extraction clients.
type Error struct {
	Kind   ErrorKind
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("extraction %s (status %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("extraction %s: %s", e.Kind, e.Detail)
}

// KindOf returns the taxonomy kind for an extraction error, or "" when the
// error did not originate from an extraction client.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
