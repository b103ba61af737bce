// Package probes implements the pause-policy predicates the frame loop
// consults: is the output hidden, is the machine discharging. Probe
// setup failures degrade to "never paused" with a warning; they must not
// take the daemon down.
package probes

import (
	"os"
	"path/filepath"
	"strings"
)

// Battery reports whether the machine runs on battery, backed by the
// Linux sysfs power-supply class.
type Battery struct {
	// acSupplies are the online files of AC-class power supplies.
	acSupplies []string
}

const powerSupplyRoot = "/sys/class/power_supply"

// NewBattery scans sysfs for AC power supplies. A machine without any
// (desktops, containers) yields a probe that always reports false.
func NewBattery() *Battery {
	return newBattery(powerSupplyRoot)
}

func newBattery(root string) *Battery {
	b := &Battery{}
	entries, err := os.ReadDir(root)
	if err != nil {
		return b
	}
	for _, e := range entries {
		online := filepath.Join(root, e.Name(), "online")
		if _, err := os.Stat(online); err == nil {
			b.acSupplies = append(b.acSupplies, online)
		}
	}
	return b
}

// Discharging reports true when every AC supply is offline. With no AC
// supply visible it reports false: there is nothing to discharge from.
func (b *Battery) Discharging() bool {
	if len(b.acSupplies) == 0 {
		return false
	}
	for _, path := range b.acSupplies {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		if strings.TrimSpace(string(data)) != "0" {
			return false
		}
	}
	return true
}
