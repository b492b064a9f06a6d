package manager

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoModelLoaded is returned when an operation needs a loaded session.
var ErrNoModelLoaded = errors.New("no model loaded")

// DefaultLoadErrorMessage is stored when no attempt produced an error text.
const DefaultLoadErrorMessage = "Failed to load model after multiple attempts"

// Attempt is one rung of the fallback ladder.
type Attempt struct {
	Layers int
	Err    error
}

// LoadError is returned when every candidate layer count failed. It unwraps
// to the last native error.
type LoadError struct {
	Model    string
	Attempts []Attempt
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "load %s failed after %d attempt(s)", e.Model, len(e.Attempts))
	if msg := e.Message(); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

// Message is the last native error text, or the default message.
func (e *LoadError) Message() string {
	if err := e.Unwrap(); err != nil && err.Error() != "" {
		return err.Error()
	}
	return DefaultLoadErrorMessage
}

func (e *LoadError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// IsLoadFailed reports whether err came from an exhausted fallback ladder.
func IsLoadFailed(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
