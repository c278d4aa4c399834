// Package handler executes component invocations.
//
// A Handler is the receiving end of a runComponent call: it resolves the
// implementation, constructs the instance with its saved state, fetches
// any staged source and runs the requested method. Each invocation moves
// through Idle, Executing and then Done or Failed.
package handler
