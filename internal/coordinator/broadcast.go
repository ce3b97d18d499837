package coordinator

import (
	"log"

	"github.com/armada-loadtest/coordinator/internal/protocol"
	"github.com/armada-loadtest/coordinator/internal/registry"
)

// Dispatcher fans room events out to live sessions.
// Members whose transport is closed or already gone are skipped.
type Dispatcher struct {
	registry *registry.Registry
}

// NewDispatcher creates a Dispatcher that resolves transports through reg.
func NewDispatcher(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{registry: reg}
}

// Broadcast encodes the event once and sends it to each member.
func (d *Dispatcher) Broadcast(members []string, t protocol.MessageType, payload interface{}) {
	data, err := protocol.Encode(t, payload)
	if err != nil {
		log.Printf("Failed to encode %s event: %v", t, err)
		return
	}

	for _, id := range members {
		d.registry.Send(id, data)
	}
}
