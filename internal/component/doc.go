// Package component is the base every component implementation builds on.
//
// A Runtime binds one instance identity to its state, its telemetry
// channel and the means to call child components. Implementations are
// plain Go values exposing Methods; a Registry maps component references
// to the factories that build them.
package component
