package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
serial:
  incline_port: /dev/ttyUSB1
ant:
  port: /dev/ttyUSB0
security:
  authorized_devices:
    - "00:11:22:33:44:55"
  allowed_opcodes: [0x05, 0x30, 0x40]
  rate_limit_seconds: 1.5
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return dir
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Serial.Baud != 115200 {
		t.Errorf("serial.baud default = %d, want 115200", cfg.Serial.Baud)
	}
	if cfg.Bike.GearRatio != 2.5 {
		t.Errorf("bike.gear_ratio default = %v, want 2.5", cfg.Bike.GearRatio)
	}
	if cfg.Serial.InclinePort != "/dev/ttyUSB1" {
		t.Errorf("serial.incline_port = %q", cfg.Serial.InclinePort)
	}
}

func TestSecurityConfigConversion(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	sec := cfg.SecurityConfig()
	if len(sec.AuthorizedDevices) != 1 || sec.AuthorizedDevices[0] != "00:11:22:33:44:55" {
		t.Errorf("AuthorizedDevices = %v", sec.AuthorizedDevices)
	}
	if len(sec.AllowedOpcodes) != 3 || sec.AllowedOpcodes[0] != 0x05 {
		t.Errorf("AllowedOpcodes = %v, want [0x05 0x30 0x40]", sec.AllowedOpcodes)
	}
	if sec.Cooldown != 1500*time.Millisecond {
		t.Errorf("Cooldown = %v, want 1.5s", sec.Cooldown)
	}
}

func TestEnvOverridesNestedKey(t *testing.T) {
	t.Setenv("SERIAL_INCLINE_PORT", "/dev/ttyACM9")
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Serial.InclinePort != "/dev/ttyACM9" {
		t.Errorf("serial.incline_port = %q, want the environment override", cfg.Serial.InclinePort)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load() should fail when config.yaml is absent")
	}
}
