package contracts

import "errors"

// Error kinds recognised at the CLI and HTTP boundaries
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrUnsupported     = errors.New("unsupported")
	ErrProvider        = errors.New("provider error")
)
