package errors

import (
	"fmt"
)

var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrInvalidInput = fmt.Errorf("invalid input")

	// ErrVersionConflict rejects a conditional save whose expected version
	// no longer matches the stored collection.
	ErrVersionConflict    = fmt.Errorf("version conflict")
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")
	ErrReadOnly           = fmt.Errorf("backend is read-only")

	ErrUnauthenticated = fmt.Errorf("unauthenticated")

	ErrRateLimited   = fmt.Errorf("upstream rate limit exceeded, wait a moment or shorten the input")
	ErrInputTooLong  = fmt.Errorf("input too long, shorten it and retry")
	ErrMisconfigured = fmt.Errorf("upstream service is not configured")
	ErrUnparsable    = fmt.Errorf("upstream response could not be parsed")

	ErrMediaTooLarge    = fmt.Errorf("media file too large")
	ErrMediaNotFound    = fmt.Errorf("media file not found")
	ErrUnsupportedMedia = fmt.Errorf("unsupported media format")
)
