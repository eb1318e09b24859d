package cache

import "errors"

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("cache store is closed")
