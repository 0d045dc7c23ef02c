package transfer

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libmsgstore-go/bridge"
	"github.com/bitfsorg/libmsgstore-go/transport"
)

// classify wraps a transport-side failure in its taxonomy sentinel.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, bridge.ErrClosed):
		return fmt.Errorf("%w: %s: %w", ErrClosed, op, err)
	case errors.Is(err, transport.ErrPartTooLarge):
		return fmt.Errorf("%w: %s: %w", ErrCapacity, op, err)
	case errors.Is(err, transport.ErrMessageNotFound),
		errors.Is(err, transport.ErrNoMedia),
		errors.Is(err, transport.ErrTargetNotFound):
		return fmt.Errorf("%w: %s: %w", ErrNotFound, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}
}
