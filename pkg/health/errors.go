package health

import "errors"

// ErrCheckTimeout is reported by checks that did not finish within the probe timeout.
var ErrCheckTimeout = errors.New("health: check timeout")
