package meritrank

import "errors"

//---------------------------------ERROR-CODES---------------------------------

var (
	// ErrNodeDoesNotExist is returned when an operation references a node
	// id that was never added to the graph, and by GetRanks when the ego
	// has no personal hits counter.
	ErrNodeDoesNotExist = errors.New("node does not exist")

	// ErrNodeIsNotCalculated is returned by GetNodeScore when the ego has
	// no personal hits counter, i.e. Calculate was never run for it.
	ErrNodeIsNotCalculated = errors.New("node has not been calculated")

	// ErrNoPathExists is returned, under ASSERT, when a counter reports
	// hits for a target that is not reachable from the ego via positive edges.
	ErrNoPathExists = errors.New("hits recorded but no positive-edge path exists")

	// ErrInvalidWalkLength is returned when recalcInvalidatedWalk is asked
	// to extend a walk that has no last node (an empty walk).
	ErrInvalidWalkLength = errors.New("invalid walk length")

	// ErrRandomChoiceError is returned if weighted random selection fails;
	// the loop condition that calls it is constructed so this cannot
	// actually arise, but the return path exists defensively.
	ErrRandomChoiceError = errors.New("random choice failed")
)
