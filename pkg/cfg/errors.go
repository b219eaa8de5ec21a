package cfg

import "github.com/pkg/errors"

var (
	// ErrMalformed reports an instruction stream that violates the structural
	// assumptions of block formation. It is fatal for the function.
	ErrMalformed = errors.New("malformed input")

	// ErrFixpointGuard reports that an iterative analysis exceeded its
	// iteration bound without converging.
	ErrFixpointGuard = errors.New("fixpoint iteration guard exceeded")
)
