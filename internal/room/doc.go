// Package room implements the room directory and the per-room state machine.
//
// Each Room guards its members, host, status, config and run record with one
// mutex. Every operation mutates that state and emits its broadcast events as a
// single critical section, so members observe a room's events in the order the
// transitions happened. Lock order is room, then directory, then session registry;
// the directory never takes a room lock while holding its own.
//
// Status transitions:
//
//	waiting -> configured -> running -> completed
//
// The host may configure from any status, which overwrites the config and
// forces the status back to configured.
package room
