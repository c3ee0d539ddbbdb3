// Package control runs the remote control plane: admission through
// the security gate, opcode dispatch to the actuator, and acks.
package control

import (
	"context"
	"log"
	"time"

	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/actuator"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/ftms"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/security"
)

// Command is one control-point write as delivered by the transport:
// the peer's hardware address and the raw frame bytes.
type Command struct {
	Identity string
	Frame    []byte
}

// AckNotifier sends the acknowledgement frame back to the peer.
type AckNotifier func(frame []byte)

// queueDepth bounds the inbox. The transport callback never blocks on
// a slow dispatcher; overflow drops the command with a log line.
const queueDepth = 32

// Dispatcher consumes Commands from a single inbox, preserving the
// write order of each peer.
type Dispatcher struct {
	gate       *security.Gate
	controller *actuator.Controller
	ack        AckNotifier
	inbox      chan Command
	now        func() time.Time
}

// NewDispatcher wires a Dispatcher. ack may be nil when the transport
// has no notify path.
func NewDispatcher(gate *security.Gate, controller *actuator.Controller, ack AckNotifier) *Dispatcher {
	return &Dispatcher{
		gate:       gate,
		controller: controller,
		ack:        ack,
		inbox:      make(chan Command, queueDepth),
		now:        time.Now,
	}
}

// Submit hands a command from the transport callback to the
// processing loop. Never blocks.
func (d *Dispatcher) Submit(cmd Command) {
	select {
	case d.inbox <- cmd:
	default:
		log.Printf("[CONTROL] inbox full, dropping command from %s", cmd.Identity)
	}
}

// Run processes commands until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-d.inbox:
			d.handle(cmd)
		}
	}
}

// handle is the admission-then-dispatch state machine for one frame.
// No actuator mutation happens for a frame that fails admission.
func (d *Dispatcher) handle(cmd Command) {
	if len(cmd.Frame) < 2 {
		log.Printf("[CONTROL] %s: malformed frame (%d bytes), dropped", cmd.Identity, len(cmd.Frame))
		return
	}
	opcode := cmd.Frame[0]

	if verdict := d.gate.Admit(cmd.Identity, opcode, d.now()); verdict != security.VerdictOK {
		log.Printf("[SECURITY] %s: opcode 0x%02X rejected: %s", cmd.Identity, opcode, verdict)
		return
	}

	switch opcode {
	case ftms.OpSetIncline:
		grade := float64(int8(cmd.Frame[1])) / 10.0
		d.controller.SetIncline(grade)
	case ftms.OpSetResistance:
		d.controller.SetResistance(int(cmd.Frame[1]))
	case ftms.OpSetGear:
		if len(cmd.Frame) < 3 {
			log.Printf("[CONTROL] %s: gear command missing rear index, dropped", cmd.Identity)
			return
		}
		d.controller.SetGear(int(cmd.Frame[1]), int(cmd.Frame[2]))
	default:
		// Whitelisted but not something this bridge acts on.
		log.Printf("[CONTROL] %s: unhandled opcode 0x%02X", cmd.Identity, opcode)
		return
	}

	if d.ack != nil {
		d.ack(ftms.Ack(opcode))
	}
}
