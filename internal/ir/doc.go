// Package ir holds the wire and data types shared by every layer of the
// component runtime.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal, which keeps it the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - IRValue is sealed: templates, inputs, outputs and state are all
//     expressed as IRNull/IRString/IRInt/IRFloat/IRBool/IRArray/IRObject
//   - Identity is the only addressing scheme for state and telemetry
//   - JSON tags are camelCase because they mirror the engine wire protocol
//   - Errors cross the RPC boundary as ErrorPayload {message, name, stack, code}
package ir
