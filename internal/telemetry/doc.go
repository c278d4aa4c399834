// Package telemetry carries debug, log and status events from running
// component instances to the operator observing a call tree.
//
// One root invocation shares a single channel across every instance it
// spawns. Events are tagged with the emitting instance's identity and a
// per-instance sequence number; order is preserved within an instance and
// unspecified across instances.
//
// The socket protocol is small:
//
//	client -> {"action":"$default"}
//	server -> {"event":"echo","data":{"connectionId":"..."}}
//	server -> {"event":"debug|log|status","name":"api.db","data":"..."}
//
// Dial is the observing side. Hub is the server side and implements Sender,
// so a backend can route events to the connection named in the event's
// socket. SinkSender delivers events in-process when nothing is remote.
package telemetry
