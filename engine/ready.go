package engine

import (
	"fmt"
	"log"
	"os"
)

// ReadyFile signals downstream controllers that the daemon has drawn its
// first frame: a zero-byte file they can watch for.
type ReadyFile struct {
	path string
	set  bool
}

// NewReadyFile returns the readiness marker for this process,
// /tmp/wallpaperd-<pid>.ready.
func NewReadyFile() *ReadyFile {
	return &ReadyFile{path: fmt.Sprintf("%s/wallpaperd-%d.ready", os.TempDir(), os.Getpid())}
}

// Set creates the marker. Failure is a warning; readiness is advisory.
func (r *ReadyFile) Set() {
	f, err := os.Create(r.path)
	if err != nil {
		log.Printf("warning: failed to set ready: %v", err)
		return
	}
	if err := f.Close(); err != nil {
		log.Printf("warning: failed to set ready: %v", err)
		return
	}
	r.set = true
}

// Unset removes the marker at exit.
func (r *ReadyFile) Unset() {
	if r.set {
		_ = os.Remove(r.path)
		r.set = false
	}
}
