package audio

import (
	"fmt"
	"io"
	"log"
	"os/exec"

	"github.com/lawl/pulseaudio"
)

// PulseCapture feeds a Visualizer from a PulseAudio monitor source. The
// source is discovered over the native protocol; the sample stream is
// recorded with parec, which both PulseAudio and PipeWire ship.
type PulseCapture struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// NewPulseCapture resolves the capture source and starts recording into
// v. An empty source records the default sink's monitor.
func NewPulseCapture(v *Visualizer, source string) (*PulseCapture, error) {
	if source == "" {
		name, err := defaultMonitorSource()
		if err != nil {
			return nil, err
		}
		source = name
	}

	cmd := exec.Command("parec",
		"--format=s16le",
		fmt.Sprintf("--rate=%d", sampleRate),
		"--channels=1",
		"-d", source,
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("audio: parec pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio: start parec: %w", err)
	}
	log.Printf("audio: capturing from %s", source)

	c := &PulseCapture{cmd: cmd, done: make(chan struct{})}
	go c.pump(stdout, v)
	return c, nil
}

// defaultMonitorSource asks the sound server for its default sink and
// returns that sink's monitor source.
func defaultMonitorSource() (string, error) {
	client, err := pulseaudio.NewClient()
	if err != nil {
		return "", fmt.Errorf("audio: connect to pulseaudio: %w", err)
	}
	defer client.Close()

	server, err := client.ServerInfo()
	if err != nil {
		return "", fmt.Errorf("audio: server info: %w", err)
	}
	if server.DefaultSink == "" {
		return "", fmt.Errorf("audio: sound server reports no default sink")
	}
	return server.DefaultSink + ".monitor", nil
}

func (c *PulseCapture) pump(r io.Reader, v *Visualizer) {
	defer close(c.done)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			v.Feed(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// Close stops the recorder and waits for the pump to drain.
func (c *PulseCapture) Close() {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.cmd.Wait()
	<-c.done
}
