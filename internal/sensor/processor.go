// Package sensor decodes FE-C broadcast frames and drives the
// actuator with the mapped incline.
package sensor

import (
	"encoding/binary"
	"log"
	"math"
	"time"

	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/actuator"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/ftms"
)

// Frame byte offsets per the FE-C broadcast page layout.
const (
	minFrameLen   = 11
	offsetGrade   = 5 // signed LE16, hundredths of a percent
	offsetPower   = 7 // LE16, watts
	offsetCadence = 10
)

// DefaultGearRatio feeds the cadence-to-speed estimate when the bike
// reports no wheel data of its own.
const DefaultGearRatio = 2.5

// Reading is one decoded and derived telemetry sample.
type Reading struct {
	Timestamp time.Time
	Power     int
	Cadence   int
	SpeedKph  float64
	Incline   float64
}

// HistorySink receives one row per processed frame. Failures are the
// sink's problem; processing never stops for them.
type HistorySink interface {
	Append(r Reading) error
}

// Notifier pushes an encoded telemetry frame to connected clients.
type Notifier func(frame []byte)

// Processor turns broadcast frames into actuator setpoints, history
// rows, and telemetry notifications.
type Processor struct {
	controller *actuator.Controller
	gearRatio  float64
	history    HistorySink
	notify     Notifier
	now        func() time.Time
}

// NewProcessor wires a Processor. history and notify may be nil.
func NewProcessor(controller *actuator.Controller, gearRatio float64, history HistorySink, notify Notifier) *Processor {
	if gearRatio <= 0 {
		gearRatio = DefaultGearRatio
	}
	return &Processor{
		controller: controller,
		gearRatio:  gearRatio,
		history:    history,
		notify:     notify,
		now:        time.Now,
	}
}

// Process consumes one broadcast frame and reports the decoded
// reading. Malformed frames are dropped with a warning and ok=false;
// nothing here escapes as a panic or error to the receive loop.
func (p *Processor) Process(frame []byte) (Reading, bool) {
	if len(frame) < minFrameLen {
		log.Printf("[SENSOR] dropping short frame (%d bytes)", len(frame))
		return Reading{}, false
	}

	power := int(binary.LittleEndian.Uint16(frame[offsetPower : offsetPower+2]))
	cadence := int(frame[offsetCadence])
	rawGrade := int16(binary.LittleEndian.Uint16(frame[offsetGrade : offsetGrade+2]))

	percentGrade := float64(rawGrade) / 100.0
	incline := clampIncline(math.Round(MapGrade(percentGrade)))
	speed := EstimateSpeed(cadence, p.gearRatio)

	p.controller.SetIncline(incline)

	reading := Reading{
		Timestamp: p.now(),
		Power:     power,
		Cadence:   cadence,
		SpeedKph:  speed,
		Incline:   incline,
	}
	if p.history != nil {
		if err := p.history.Append(reading); err != nil {
			log.Printf("[SENSOR] history append failed: %v", err)
		}
	}

	if p.notify != nil {
		st := p.controller.Snapshot()
		p.notify(ftms.EncodeTelemetry(ftms.Telemetry{
			SpeedKph:   speed,
			CadenceRPM: cadence,
			PowerWatts: power,
			Incline:    incline,
			Resistance: st.Resistance,
			GearFront:  st.GearFront,
			GearRear:   st.GearRear,
		}))
	}

	return reading, true
}

// MapGrade applies the ride-feel policy: descents are softened to half
// their grade, climbs above 10% are flattened to 30% of the excess.
// Product tuning, not physics.
func MapGrade(percentGrade float64) float64 {
	switch {
	case percentGrade < 0:
		return percentGrade * 0.5
	case percentGrade > 10:
		return 10 + (percentGrade-10)*0.3
	default:
		return percentGrade
	}
}

// EstimateSpeed derives km/h from cadence and a fixed gear ratio,
// rounded to one decimal.
func EstimateSpeed(cadence int, gearRatio float64) float64 {
	kph := float64(cadence) * gearRatio / 60.0 * 3.6
	return math.Round(kph*10) / 10
}

func clampIncline(g float64) float64 {
	if g < actuator.MinIncline {
		return actuator.MinIncline
	}
	if g > actuator.MaxIncline {
		return actuator.MaxIncline
	}
	return g
}
