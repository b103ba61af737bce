// Package config loads optional daemon defaults from the user's
// configuration directory. The command line always wins; the file only
// fills in options the user did not pass.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// File holds the supported defaults. Pointer fields distinguish "unset"
// from zero values.
type File struct {
	FPS         *uint32  `toml:"fps"`
	Speed       *float64 `toml:"speed"`
	PreferDGPU  *bool    `toml:"prefer-dgpu"`
	PauseHidden *bool    `toml:"pause-hidden"`
	PauseOnBat  *bool    `toml:"pause-on-bat"`
}

// Path returns the config file location,
// <user-config-dir>/wallpaperd/config.toml.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(base, "wallpaperd", "config.toml"), nil
}

// Load reads the config file. A missing file is not an error and yields
// an empty File.
func Load() (*File, error) {
	path, err := Path()
	if err != nil {
		return &File{}, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads a config file from an explicit path.
func LoadFrom(path string) (*File, error) {
	var f File
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &f, nil
	}
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}
