package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// current phase.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrTransferInProgress is returned by Start while a task is running.
	ErrTransferInProgress = errors.New("transfer already in progress")

	ErrUnsupportedType = errors.New("unsupported media type")
	ErrFileTooLarge    = errors.New("file exceeds size limit")
	ErrEmptyFile       = errors.New("file is empty")
)

// ErrorKind classifies upload failures.
type ErrorKind string

const (
	KindValidation      ErrorKind = "ValidationError"
	KindSlotAcquisition ErrorKind = "SlotAcquisitionFailed"
	KindPayloadTransfer ErrorKind = "PayloadTransferFailed"
	KindHandoff         ErrorKind = "HandoffFailed"
	// KindCatalogLoad is only ever logged; the catalog loader degrades
	// to its fallback set instead of returning it.
	KindCatalogLoad ErrorKind = "CatalogLoadFailed"
)

// Error is an upload failure tagged with its kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of an upload error, or "" for any other error.
func KindOf(err error) ErrorKind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}
