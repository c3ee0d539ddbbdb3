// Package bridge wires the two producers (sensor feed, control plane)
// onto the shared actuator and manages their lifecycle.
package bridge

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/actuator"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/control"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/sensor"
)

// FrameSource delivers one sensor broadcast frame per call, blocking
// until a frame arrives or the underlying transport fails.
type FrameSource interface {
	Next() ([]byte, error)
}

// Snapshot is the live view served to status clients.
type Snapshot struct {
	Power      int     `json:"power"`
	Cadence    int     `json:"cadence"`
	SpeedKph   float64 `json:"speed"`
	Incline    float64 `json:"incline"`
	Resistance int     `json:"resistance"`
	GearFront  int     `json:"gearFront"`
	GearRear   int     `json:"gearRear"`
	Frames     uint64  `json:"frames"`
}

// Bridge owns the shared actuator state and both input loops.
type Bridge struct {
	controller *actuator.Controller
	processor  *sensor.Processor
	dispatcher *control.Dispatcher
	source     FrameSource

	mu     sync.Mutex
	last   sensor.Reading
	frames uint64
}

func New(controller *actuator.Controller, processor *sensor.Processor, dispatcher *control.Dispatcher, source FrameSource) *Bridge {
	return &Bridge{
		controller: controller,
		processor:  processor,
		dispatcher: dispatcher,
		source:     source,
	}
}

// Observe records a processed reading for the status surface. The
// sensor loop calls it; tests may too.
func (b *Bridge) Observe(r sensor.Reading) {
	b.mu.Lock()
	b.last = r
	b.frames++
	b.mu.Unlock()
}

// Snapshot merges the last sensor reading with the actuator state.
func (b *Bridge) Snapshot() Snapshot {
	st := b.controller.Snapshot()
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Power:      b.last.Power,
		Cadence:    b.last.Cadence,
		SpeedKph:   b.last.SpeedKph,
		Incline:    st.Incline,
		Resistance: st.Resistance,
		GearFront:  st.GearFront,
		GearRear:   st.GearRear,
		Frames:     b.frames,
	}
}

// Run starts the dispatcher loop and the sensor receive loop and
// blocks until both have stopped. Cancel ctx (and close the frame
// source's transport) to shut down; no command is left half-written
// because every serial write completes inside the actuator's lock.
func (b *Bridge) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.dispatcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.sensorLoop(ctx)
	}()

	wg.Wait()
}

func (b *Bridge) sensorLoop(ctx context.Context) {
	if b.source == nil {
		log.Println("[SYSTEM] no sensor source attached, control plane only")
		<-ctx.Done()
		return
	}
	for {
		frame, err := b.source.Next()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				log.Printf("[SENSOR] receive loop ended: %v", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if r, ok := b.processor.Process(frame); ok {
			b.Observe(r)
		}
	}
}
