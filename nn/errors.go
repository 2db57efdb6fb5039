package nn

import "github.com/pkg/errors"

// These are the caller-contract violations the network reports. They are always returned
// wrapped with the sizes involved, so compare with errors.Is or errors.Cause.
var (
	ErrInvalidTopology = errors.New("invalid topology")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidTarget   = errors.New("invalid target")
	ErrNoForwardPass   = errors.New("back propagation before any forward pass")
)
