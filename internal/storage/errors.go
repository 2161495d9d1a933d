package storage

import (
	"errors"
	"fmt"

	"github.com/cartridge/replaybuffer/internal/segtree"
)

var (
	// ErrInvalidArgument indicates a malformed request: bad exponent, batch
	// size, dimensions or mismatched slice lengths.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidPriority indicates a priority that is not finite and
	// positive, before or after raising it to alpha.
	ErrInvalidPriority = fmt.Errorf("%w: priority must be finite and > 0", ErrInvalidArgument)
	// ErrMassOutOfRange indicates a prefix-sum lookup outside [0, TotalSum()).
	ErrMassOutOfRange = fmt.Errorf("%w: %w", ErrInvalidArgument, segtree.ErrMassOutOfRange)
	// ErrIndexOutOfRange indicates an index outside the live or tree range.
	ErrIndexOutOfRange = segtree.ErrIndexOutOfRange
	// ErrInvalidIndex indicates a write to a sentinel leaf past capacity.
	ErrInvalidIndex = fmt.Errorf("%w: sentinel leaf", ErrIndexOutOfRange)
	// ErrInsufficientData indicates the buffer does not hold enough
	// transitions for the requested window or batch.
	ErrInsufficientData = errors.New("insufficient data")
)
