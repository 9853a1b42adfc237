package tovis

import "errors"

var (
	// ErrUnknownFormat is a configuration error: the caller asked for a
	// format or mode this package does not know.
	ErrUnknownFormat = errors.New("unknown format")
	// ErrMissingInput means a required raw content role was absent.
	ErrMissingInput = errors.New("missing input")
	// ErrMalformedField marks a field that was discarded while parsing.
	// It never aborts a parse.
	ErrMalformedField = errors.New("malformed field")
	// ErrInconsistentFeed aborts an ingestion whose feed does not describe
	// a valid block graph.
	ErrInconsistentFeed = errors.New("inconsistent diff feed")
)

// Result is the outcome envelope shared by every fallible entry point.
type Result struct {
	OK      bool   `json:"isOk"`
	Message string `json:"message"`
}

func succeed(msg string) (*Result, error) {
	return &Result{OK: true, Message: msg}, nil
}

func fail(err error) (*Result, error) {
	return &Result{OK: false, Message: err.Error()}, err
}
