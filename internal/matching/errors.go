package matching

import (
	"errors"

	"fenrir/internal/marketmaker"
)

// Error kinds, spec.md §7.
var (
	ErrInvalidOrder     = errors.New("matching: invalid order")
	ErrInvalidState     = errors.New("matching: engine is not running")
	ErrLiquidity        = errors.New("matching: market order could not be fully filled")
	ErrAllocation       = errors.New("matching: tick range would exceed the memory ceiling")
	ErrNotFound         = errors.New("matching: order not found")
	ErrCallbackOverflow = marketmaker.ErrCallbackOverflow
)
