package core

import "errors"

var (
	// ErrStaleData reports persisted surfel data that no longer matches the live grid.
	ErrStaleData = errors.New("probegi: probe volume data is stale, re-capture required")
	// ErrUnallocated reports an operation on a grid or buffer that was never allocated.
	ErrUnallocated = errors.New("probegi: resource not allocated")
	// ErrMissingCollaborator reports a shading resource the capture step could not resolve.
	ErrMissingCollaborator = errors.New("probegi: missing shading collaborator")
)
