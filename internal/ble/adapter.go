package ble

import (
	"log"
	"sync"

	"tinygo.org/x/bluetooth"
)

var Adapter = bluetooth.DefaultAdapter

var (
	peerMu   sync.Mutex
	peerAddr string
)

// Enable brings up the host bluetooth stack and installs the connect
// handler that tracks the remote peer's hardware address. That
// address is the identity every control command is gated on.
//
// One peer at a time: the peripheral tracks a single connected
// central, matching how trainer apps use the machine. If a second
// central connects it becomes the tracked identity, and a write
// arriving after a disconnect carries the empty identity, which the
// gate rejects as unauthorized.
func Enable() error {
	if err := Adapter.Enable(); err != nil {
		return err
	}

	Adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		peerMu.Lock()
		if connected {
			peerAddr = device.Address.String()
		} else {
			peerAddr = ""
		}
		peerMu.Unlock()

		if connected {
			log.Printf("[BLE] client connected: %s", device.Address.String())
		} else {
			log.Println("[BLE] client disconnected")
		}
	})
	return nil
}

// PeerAddress returns the hardware address of the connected client,
// or "" when nobody is connected.
func PeerAddress() string {
	peerMu.Lock()
	defer peerMu.Unlock()
	return peerAddr
}
