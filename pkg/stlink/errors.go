package stlink

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport reports a USB transfer that did not move the exact number
	// of bytes expected, or a device that could not be opened or claimed.
	ErrTransport = errors.New("stlink: transport failure")

	// ErrConfig reports an unsupported mode transition, transport kind or
	// request shape.
	ErrConfig = errors.New("stlink: configuration error")
)

// TransferError describes a failed or short USB transfer.
type TransferError struct {
	Op       string // "write" or "read"
	Endpoint uint8
	Want     int
	Got      int
	Err      error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stlink: %s ep 0x%02X failed after %d/%d bytes: %v", e.Op, e.Endpoint, e.Got, e.Want, e.Err)
	}
	return fmt.Sprintf("stlink: short %s on ep 0x%02X: %d/%d bytes", e.Op, e.Endpoint, e.Got, e.Want)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is makes every TransferError match ErrTransport.
func (e *TransferError) Is(target error) bool {
	return target == ErrTransport
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfig}, args...)...)
}
