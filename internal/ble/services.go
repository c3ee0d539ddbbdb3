package ble

import (
	"log"

	"tinygo.org/x/bluetooth"

	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/control"
)

var (
	charIndoorBike   bluetooth.Characteristic
	charControlPoint bluetooth.Characteristic
)

// SetupServices provisions the Fitness Machine GATT service: the
// Indoor Bike Data notify characteristic for outbound telemetry and
// the control point whose writes are forwarded to the dispatcher.
func SetupServices(submit func(control.Command)) error {
	log.Println("[BLE] provisioning GATT services")

	// Generic Access with an appearance of "cycling" so apps show the
	// right icon.
	if err := Adapter.AddService(&bluetooth.Service{
		UUID: bluetooth.New16BitUUID(0x1800),
		Characteristics: []bluetooth.CharacteristicConfig{
			{UUID: bluetooth.New16BitUUID(0x2A01), Flags: bluetooth.CharacteristicReadPermission, Value: []byte{0x82, 0x04}},
		},
	}); err != nil {
		return err
	}

	return Adapter.AddService(&bluetooth.Service{
		UUID: bluetooth.ServiceUUIDFitnessMachine,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &charIndoorBike,
				UUID:   bluetooth.CharacteristicUUIDIndoorBikeData,
				Flags:  bluetooth.CharacteristicNotifyPermission | bluetooth.CharacteristicReadPermission,
				Value:  make([]byte, 14),
			},
			{
				Handle: &charControlPoint,
				UUID:   bluetooth.CharacteristicUUIDFitnessMachineControlPoint,
				Flags:  bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicIndicatePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					frame := make([]byte, len(value))
					copy(frame, value)
					submit(control.Command{Identity: PeerAddress(), Frame: frame})
				},
			},
		},
	})
}

// Advertise starts advertising the fitness machine service under name.
func Advertise(name string) error {
	adv := Adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{bluetooth.ServiceUUIDFitnessMachine},
	}); err != nil {
		return err
	}
	return adv.Start()
}

// NotifyTelemetry pushes an encoded Indoor Bike Data frame to
// subscribed clients.
func NotifyTelemetry(frame []byte) {
	if _, err := charIndoorBike.Write(frame); err != nil {
		log.Printf("[BLE] telemetry notify failed: %v", err)
	}
}

// NotifyAck indicates a control-point acknowledgement back to the
// client.
func NotifyAck(frame []byte) {
	if _, err := charControlPoint.Write(frame); err != nil {
		log.Printf("[BLE] ack notify failed: %v", err)
	}
}
