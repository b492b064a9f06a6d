package catalog

import "errors"

type modelNotFoundError struct{ name string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.name }

// ErrModelNotFound returns an error for a name absent from the catalog.
func ErrModelNotFound(name string) error { return modelNotFoundError{name: name} }

// IsModelNotFound reports whether err indicates an unknown model name.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// notDownloadedError is returned when a model's file is missing.
type notDownloadedError struct{ name string }

func (e notDownloadedError) Error() string { return "model not downloaded: " + e.name }

// IsNotDownloaded reports whether err indicates a missing weights file.
func IsNotDownloaded(err error) bool {
	var e notDownloadedError
	return errors.As(err, &e)
}

// pausedError is returned by Download when the transfer was paused or
// cancelled. The partial file is kept.
type pausedError struct{ name string }

func (e pausedError) Error() string { return "download paused: " + e.name }

// IsPaused reports whether a download stopped because it was paused.
func IsPaused(err error) bool {
	var e pausedError
	return errors.As(err, &e)
}

// VerifyError describes a downloaded file that failed the integrity check.
type VerifyError struct {
	Name   string
	Reason string
}

func (e *VerifyError) Error() string { return "verify " + e.Name + ": " + e.Reason }

// VerifyFailedMessage is stored on a descriptor whose download did not verify.
const VerifyFailedMessage = "File verification failed. The download may be corrupted - please try again."
