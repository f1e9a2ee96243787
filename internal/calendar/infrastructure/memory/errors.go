package memory

import "errors"

var errStoreUnavailable = errors.New("memory store unavailable")
