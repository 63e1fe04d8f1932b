package edge

import "errors"

// Domain errors for edge operations.
var (
	// ErrEdgeNotFound is returned when no edge has the requested ID.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrEdgeExists is returned when creating an edge whose ID is taken.
	ErrEdgeExists = errors.New("edge already exists")
)
