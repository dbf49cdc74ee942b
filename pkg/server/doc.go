// Package server is the transport-facing surface of the PV engine.
//
// A Server owns a registry of PVs and answers the requests a Channel Access
// transport forwards to it: existence checks, attach, read, write and
// interest toggles. PVs created through the server inherit its defaults
// (text encoding, transport sink, protocol logger). Every transport-facing
// call is recorded as a protocol event on the configured log.Logger.
//
// The network layer itself lives outside this package. Loopback is an
// in-process EventSink with per-PV subscriptions, useful for tests and the
// reference server binary.
package server
