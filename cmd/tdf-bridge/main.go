package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.bug.st/serial"

	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/actuator"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/ant"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/ble"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/bridge"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/config"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/control"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/history"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/security"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/sensor"
	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/server"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	inclinePort := flag.String("incline", "", "serial port for incline control (overrides config)")
	antPort := flag.String("ant", "", "serial port of the ANT stick (overrides config)")
	enableBLE := flag.Bool("ble", true, "expose the BLE fitness machine service")
	flag.Parse()

	fmt.Println("=== TDF Data Bridge ===")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[SYSTEM] %v", err)
	}
	if *inclinePort != "" {
		cfg.Serial.InclinePort = *inclinePort
	}
	if *antPort != "" {
		cfg.Ant.Port = *antPort
	}

	// A bridge without a complete security gate must not run at all.
	gate, err := security.NewGate(cfg.SecurityConfig())
	if err != nil {
		log.Fatalf("[SYSTEM] %v", err)
	}

	var opener actuator.PortOpener
	if cfg.Serial.InclinePort != "" {
		opener = actuator.SerialOpener{Path: cfg.Serial.InclinePort, Baud: cfg.Serial.Baud}
	} else {
		log.Println("[ACTUATOR] no incline port configured, running without hardware")
	}
	controller := actuator.NewController(opener)

	var ackNotify control.AckNotifier
	var telemetryNotify sensor.Notifier
	if *enableBLE {
		if err := ble.Enable(); err != nil {
			log.Printf("[BLE] adapter unavailable, control plane disabled: %v", err)
		} else {
			ackNotify = ble.NotifyAck
			telemetryNotify = ble.NotifyTelemetry
		}
	}

	rides := history.NewWriter(cfg.History.Dir)
	defer rides.Close()
	log.Printf("[SYSTEM] ride history: %s", rides.Path())

	processor := sensor.NewProcessor(controller, cfg.Bike.GearRatio, rides, telemetryNotify)
	dispatcher := control.NewDispatcher(gate, controller, ackNotify)

	if telemetryNotify != nil {
		if err := ble.SetupServices(dispatcher.Submit); err != nil {
			log.Fatalf("[BLE] service setup failed: %v", err)
		}
		if err := ble.Advertise("TDF Bridge"); err != nil {
			log.Fatalf("[BLE] advertising failed: %v", err)
		}
	}

	var source bridge.FrameSource
	var antStream serial.Port
	if cfg.Ant.Port != "" {
		antStream, err = serial.Open(cfg.Ant.Port, &serial.Mode{BaudRate: 115200})
		if err != nil {
			log.Printf("[ANT] stick unavailable: %v", err)
			antStream = nil
		} else {
			source = ant.NewReader(antStream)
		}
	}

	b := bridge.New(controller, processor, dispatcher, source)

	go func() {
		if err := server.New(b, cfg.Server.Port).Start(); err != nil {
			log.Printf("[HTTP] server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		// Unblock the sensor loop's pending read.
		if antStream != nil {
			antStream.Close()
		}
	}()

	log.Println("[SYSTEM] bridge running")
	b.Run(ctx)
	log.Println("[SYSTEM] stopped")
}
