// Package rpc carries component invocations between processes.
//
// A Handle is what a parent component holds for a loaded child: calling a
// method on it stages any local source in the inputs, stamps a fresh
// invocation id and hands the request to a Dispatcher. Dispatchers either
// post to the engine backend (Client), or call an in-process handler
// (LocalDispatcher). Server is the engine side of the same HTTP protocol.
package rpc
