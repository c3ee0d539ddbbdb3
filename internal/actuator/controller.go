// Package actuator owns the exclusive serial channel to the bike and
// the in-memory actuator state read by the telemetry encoders.
package actuator

import (
	"io"
	"log"
	"math"
	"sync"

	"go.bug.st/serial"
)

// Incline range supported by the bike motor, in percent grade.
const (
	MinIncline = -10.0
	MaxIncline = 20.0
)

// inclineStep is the hysteresis threshold: a new grade within this
// distance of the last sent one is not re-sent, so sensor jitter does
// not flood the motor with commands.
const inclineStep = 1.0

// State is the bridge-wide actuator record. One instance exists per
// running bridge, owned by the Controller.
type State struct {
	Incline    float64
	Resistance int
	GearFront  int
	GearRear   int
}

// PortOpener opens the exclusive output channel for a single command
// write. The controller opens, writes, and closes per call; no
// connection is held between commands.
type PortOpener interface {
	Open() (io.WriteCloser, error)
}

// SerialOpener opens a real serial port via go.bug.st/serial.
type SerialOpener struct {
	Path string
	Baud int
}

func (o SerialOpener) Open() (io.WriteCloser, error) {
	return serial.Open(o.Path, &serial.Mode{BaudRate: o.Baud})
}

// Controller serializes every physical write onto the single channel.
// A nil opener means no hardware is attached: setters keep updating
// State so remote clients still see consistent telemetry.
type Controller struct {
	mu       sync.Mutex
	opener   PortOpener
	state    State
	lastSent float64
	hasLast  bool
}

// NewController builds a Controller over opener. opener may be nil.
func NewController(opener PortOpener) *Controller {
	return &Controller{opener: opener}
}

// SetIncline range-checks and smooths grade, then writes the incline
// command. Out-of-range grades are dropped entirely. In-range grades
// always land in State even when hysteresis suppresses the write.
func (c *Controller) SetIncline(grade float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if grade < MinIncline || grade > MaxIncline {
		return
	}
	c.state.Incline = grade

	if c.hasLast && math.Abs(grade-c.lastSent) < inclineStep {
		return
	}

	if c.write(encodeIncline(int(math.Round(grade)))) {
		c.lastSent = grade
		c.hasLast = true
	}
}

// SetResistance writes the resistance command unconditionally; no
// smoothing is applied to resistance.
func (c *Controller) SetResistance(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Resistance = level
	c.write(encodeResistance(level))
}

// SetGear writes the gear command unconditionally.
func (c *Controller) SetGear(front, rear int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.GearFront = front
	c.state.GearRear = rear
	c.write(encodeGear(front, rear))
}

// Snapshot returns a copy of the actuator state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// write pushes one command onto the channel. Failures are logged and
// reported, never propagated: the next sensor frame or remote command
// is a fresh attempt. Caller holds c.mu, so at most one write is in
// flight at a time.
func (c *Controller) write(cmd []byte) bool {
	if c.opener == nil {
		return false
	}
	port, err := c.opener.Open()
	if err != nil {
		log.Printf("[ACTUATOR] channel open failed: %v", err)
		return false
	}
	defer port.Close()
	if _, err := port.Write(cmd); err != nil {
		log.Printf("[ACTUATOR] write failed: %v", err)
		return false
	}
	return true
}
