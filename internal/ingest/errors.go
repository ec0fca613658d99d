package ingest

import "errors"

var (
	// ErrInvalidImport marks a request rejected before any I/O (missing source or payload).
	ErrInvalidImport = errors.New("invalid import request")
	// ErrNoUsableRows means the payload had data rows but none mapped to an opportunity,
	// which almost always signals a wrong format; deactivation is skipped.
	ErrNoUsableRows = errors.New("no usable rows in payload")
	// ErrUnknownSource is returned for feed imports of ids missing from the registry.
	ErrUnknownSource = errors.New("unknown source")
	// ErrFetchFailed wraps failures downloading a registry feed.
	ErrFetchFailed = errors.New("feed fetch failed")

	errUnparseableDate = errors.New("unable to parse date")
)
