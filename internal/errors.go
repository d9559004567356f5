package internal

import "errors"

var ErrMissingTarget = errors.New("missing target")
var ErrViewLogDisabled = errors.New("view log is disabled")

var ErrUnauthorized = errors.New("unauthorized")
var ErrForbidden = errors.New("forbidden")
