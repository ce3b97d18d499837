// Package ws carries coordination envelopes over WebSocket connections.
//
// The package implements:
//   - Client: one upgraded connection with a buffered, non-blocking send queue
//   - Hub: the set of live clients, closed together on shutdown
//   - Handler: upgrades requests and runs the read and write pumps
//
// Each inbound text frame is handed to the Router as one envelope. A client
// whose send queue overflows is closed, and its departure reaches the Router
// through Disconnect like any other dropped connection.
package ws
