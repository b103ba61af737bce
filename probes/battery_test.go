package probes

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSupply(t *testing.T, root, name, online string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if online != "" {
		if err := os.WriteFile(filepath.Join(dir, "online"), []byte(online), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBatteryDischarging(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "AC", "0\n")
	writeSupply(t, root, "BAT0", "") // batteries have no online file

	b := newBattery(root)
	if !b.Discharging() {
		t.Error("AC offline must report discharging")
	}
}

func TestBatteryOnAC(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "AC", "1\n")

	b := newBattery(root)
	if b.Discharging() {
		t.Error("AC online must not report discharging")
	}
}

func TestBatteryMultipleSupplies(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "AC0", "0\n")
	writeSupply(t, root, "AC1", "1\n")

	b := newBattery(root)
	if b.Discharging() {
		t.Error("any online AC supply must report not discharging")
	}
}

func TestBatteryNoSupplies(t *testing.T) {
	b := newBattery(t.TempDir())
	if b.Discharging() {
		t.Error("a machine without AC supplies must never report discharging")
	}
}

func TestBatteryMissingRoot(t *testing.T) {
	b := newBattery(filepath.Join(t.TempDir(), "absent"))
	if b.Discharging() {
		t.Error("a missing sysfs root must never report discharging")
	}
}
