// Package lasterr holds the most recent error message set by any
// component. Fallible calls in this codebase return errors the normal Go
// way; the slot exists for the host-API layer, which has to abort a scene
// through a wasm trap and has no return channel for the message. The
// frame loop reads the slot after a failed init/update call and prefers
// it over the runtime's generic trap diagnostic.
package lasterr

import (
	"fmt"
	"sync"
)

// MaxLen bounds the stored message; longer messages are truncated.
const MaxLen = 1024

var (
	mu  sync.Mutex
	msg string
	set bool
)

// Set formats and stores the message, truncating at MaxLen.
func Set(format string, a ...any) {
	s := fmt.Sprintf(format, a...)
	if len(s) > MaxLen {
		s = s[:MaxLen]
	}
	mu.Lock()
	msg = s
	set = true
	mu.Unlock()
}

// IsSet reports whether a message has been stored since the last Clear.
func IsSet() bool {
	mu.Lock()
	defer mu.Unlock()
	return set
}

// Get returns the stored message, or "" if none is set.
func Get() string {
	mu.Lock()
	defer mu.Unlock()
	if !set {
		return ""
	}
	return msg
}

// Clear resets the slot. Top-level operations clear it on restart.
func Clear() {
	mu.Lock()
	msg = ""
	set = false
	mu.Unlock()
}
