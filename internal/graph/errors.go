package graph

import "errors"

var (
	// ErrDuplicateName is returned when a create or rename would give two
	// nodes the same name.
	ErrDuplicateName = errors.New("node name already in use")
	// ErrUnknownTarget is returned when a connection names a target that is
	// not a registered node.
	ErrUnknownTarget = errors.New("connection target is not a known node")
	// ErrUnknownNode is returned when an operation is handed a node the
	// store does not own.
	ErrUnknownNode = errors.New("node does not belong to this store")
	// ErrInvalidPosition is returned for a NaN or infinite coordinate.
	ErrInvalidPosition = errors.New("position must be finite")
	// ErrUnknownConnection is returned for a connection index out of range.
	ErrUnknownConnection = errors.New("no such connection")
)
