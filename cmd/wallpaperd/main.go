// Command wallpaperd renders a scene archive onto the desktop
// background and keeps it animated until the surface asks it to stop.
package main

import (
	"fmt"
	"os"

	"github.com/mechakotik/openwallpaper/args"
	"github.com/mechakotik/openwallpaper/lasterr"
)

func printHelp() {
	fmt.Println("Usage: wallpaperd [OPTIONS] [WALLPAPER_PATH] [WALLPAPER_OPTIONS]")
	fmt.Println("Interactive live wallpaper daemon")
	fmt.Println()
	fmt.Println("  --display=<display>")
	fmt.Println("  --fps=<fps>")
	fmt.Println("  --speed=<speed>")
	fmt.Println("  --prefer-dgpu")
	fmt.Println("  --pause-hidden")
	fmt.Println("  --pause-on-bat")
	fmt.Println("  --window")
	fmt.Println()
	fmt.Println("  --list-displays")
	fmt.Println("  --help")
}

func main() {
	parsed, err := args.Parse(os.Args[1:])
	if err != nil {
		fail(err)
	}

	if parsed.Has("help") {
		printHelp()
		return
	}
	if parsed.Has("list-displays") {
		if err := listDisplays(parsed); err != nil {
			fail(err)
		}
		return
	}

	if err := run(parsed); err != nil {
		fail(err)
	}
}

// fail prints the single-line error contract and exits non-zero. The
// error slot wins when set: it usually carries the scene-level message
// that caused the failure.
func fail(err error) {
	msg := err.Error()
	if lasterr.IsSet() {
		msg = lasterr.Get()
	}
	fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	os.Exit(1)
}
