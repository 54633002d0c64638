package templatesheet

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDocument is reported per document for JSON that does not parse or whose
	// top-level value is not an object.
	ErrMalformedDocument = errors.New("malformed template document")
	// ErrEmptyExport rejects an export with no batches or no rows at all.
	ErrEmptyExport = errors.New("nothing to export")
	// ErrUnsupportedFormat is returned for an output format other than xlsx or csv.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrUnknownKind is returned for a resource kind other than forms, views or roles.
	ErrUnknownKind = errors.New("unknown resource kind")
	// ErrSheetNaming means every sheet naming strategy was rejected.
	ErrSheetNaming = errors.New("no usable sheet name")
	// ErrInvalidFilter wraps a row filter that does not compile or does not yield a bool.
	ErrInvalidFilter = errors.New("invalid row filter")
	// ErrInvalidLayout wraps a layout workbook that cannot be parsed.
	ErrInvalidLayout = errors.New("invalid layout template")
)

// DocumentError ties a failure to the uploaded file that caused it.
type DocumentError struct {
	File string
	Err  error
}

func (e *DocumentError) Error() string { return fmt.Sprintf("%s: %v", e.File, e.Err) }

func (e *DocumentError) Unwrap() error { return e.Err }
