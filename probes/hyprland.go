package probes

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Hyprland reports whether the wallpaper output is covered by a
// fullscreen window, using the compositor's IPC sockets: the event
// socket (.socket2) signals that something changed, the request socket
// answers j/activewindow queries.
type Hyprland struct {
	events net.Conn
	socket string // request socket path
	hidden bool
	buf    [128]byte
}

// NewHyprland connects to the event socket of the running Hyprland
// instance. On any setup failure it logs a warning and returns a probe
// that always reports visible.
func NewHyprland() *Hyprland {
	h := &Hyprland{}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		log.Printf("warning: XDG_RUNTIME_DIR is not set, pause-hidden will not work")
		return h
	}
	instance := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if instance == "" {
		log.Printf("warning: HYPRLAND_INSTANCE_SIGNATURE is not set, pause-hidden will not work")
		return h
	}

	dir := filepath.Join(runtimeDir, "hypr", instance)
	conn, err := net.Dial("unix", filepath.Join(dir, ".socket2.sock"))
	if err != nil {
		log.Printf("warning: failed to connect to hyprland socket, pause-hidden will not work: %v", err)
		return h
	}

	h.events = conn
	h.socket = filepath.Join(dir, ".socket.sock")
	return h
}

// Hidden drains pending compositor events and, when anything happened
// since the last call, re-queries the active window's fullscreen state.
// Without events the cached answer stands, which keeps the probe cheap
// enough for the loop's 5 Hz pause check.
func (h *Hyprland) Hidden() bool {
	if h.events == nil {
		return false
	}

	refresh := false
	for {
		_ = h.events.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, err := h.events.Read(h.buf[:])
		if n > 0 {
			refresh = true
		}
		if err != nil {
			break
		}
	}
	if !refresh {
		return h.hidden
	}

	hidden, err := h.queryFullscreen()
	if err != nil {
		return h.hidden
	}
	h.hidden = hidden
	return h.hidden
}

// activeWindow is the subset of the j/activewindow reply the probe
// reads. fullscreen is 0 (none), 1 (maximized), or 2 (fullscreen).
type activeWindow struct {
	Fullscreen int  `json:"fullscreen"`
	Floating   bool `json:"floating"`
}

func (h *Hyprland) queryFullscreen() (bool, error) {
	conn, err := net.DialTimeout("unix", h.socket, 100*time.Millisecond)
	if err != nil {
		return false, fmt.Errorf("probes: hyprland request socket: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(250 * time.Millisecond))
	if _, err := conn.Write([]byte("j/activewindow")); err != nil {
		return false, fmt.Errorf("probes: hyprland request: %w", err)
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		return false, fmt.Errorf("probes: hyprland reply: %w", err)
	}

	var win activeWindow
	if err := json.Unmarshal(reply, &win); err != nil {
		return false, fmt.Errorf("probes: hyprland reply: %w", err)
	}
	return win.Fullscreen == 2 || !win.Floating, nil
}

// Close releases the event socket.
func (h *Hyprland) Close() {
	if h.events != nil {
		h.events.Close()
		h.events = nil
	}
}
