// Package builtin provides components that run in process, for local mode
// and the development engine started by "components serve".
package builtin
