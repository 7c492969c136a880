package render

import (
	"errors"
	"fmt"
)

// RenderError is a failed rasterization or document render.
type RenderError struct {
	Op        string // "launch", "script", "render", "capture", "write", "convert"
	Target    string // destination file
	Err       error
	Retryable bool
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err carries a RenderError worth retrying.
func IsRetryable(err error) bool {
	var re *RenderError
	return errors.As(err, &re) && re.Retryable
}
