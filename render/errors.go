package render

import "errors"

var (
	ErrInvalidTransition   = errors.New("render: invalid job state transition")
	ErrDeadlineOutOfBounds = errors.New("render: deadline is outside the accepted range")
	ErrDeadlineExceeded    = errors.New("render: deadline exceeded while polling")
	ErrRenderFailed        = errors.New("render: remote render failed")
	ErrJobRequired         = errors.New("render: job is required")
	ErrMissingSecret       = errors.New("render: api secret is required for async renders")
	ErrUnexpectedStatus    = errors.New("render: unexpected remote status")
	ErrMalformedResponse   = errors.New("render: malformed remote response")
)
