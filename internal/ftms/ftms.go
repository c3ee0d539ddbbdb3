// Package ftms holds the wire constants and frame codecs for the
// fitness-machine control point and the Indoor Bike Data telemetry
// notification used by the bridge.
package ftms

import (
	"encoding/binary"
	"math"
)

// Control-point opcodes accepted by the bridge.
const (
	OpSetIncline    byte = 0x05
	OpSetResistance byte = 0x30
	OpSetGear       byte = 0x40
)

// Response header and result code for control-point acks.
const (
	ResponseCode  byte = 0x80
	ResultSuccess byte = 0x01
)

// Telemetry carries one Indoor Bike Data snapshot.
type Telemetry struct {
	SpeedKph   float64
	CadenceRPM int
	PowerWatts int
	Incline    float64
	Resistance int
	GearFront  int
	GearRear   int
}

// Ack builds the control-point acknowledgement for a handled opcode.
func Ack(opcode byte) []byte {
	return []byte{ResponseCode, opcode, ResultSuccess}
}

// telemetryFlags advertises every field the frame carries.
const telemetryFlags uint16 = 0x03FF

// EncodeTelemetry packs a Telemetry snapshot into the fixed 14-byte
// little-endian Indoor Bike Data layout.
func EncodeTelemetry(t Telemetry) []byte {
	buf := make([]byte, 14)
	binary.LittleEndian.PutUint16(buf[0:2], telemetryFlags)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(math.Round(t.SpeedKph*100)))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(t.CadenceRPM*2))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(t.PowerWatts))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(int16(math.Round(t.Incline*10))))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(t.Resistance))
	buf[12] = byte(t.GearFront)
	buf[13] = byte(t.GearRear)
	return buf
}
