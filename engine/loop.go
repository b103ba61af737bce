// Package engine paces frames and drives the scene: it acquires the
// frame, gates on the pause policies, invokes update with a clamped
// delta, and submits. It owns the main thread; everything it calls runs
// synchronously on it.
package engine

import (
	"context"
	"time"
)

// Renderer is the slice of the GPU session the loop drives.
type Renderer interface {
	// AcquireFrame obtains the frame's command buffer and swapchain
	// texture; false means the surface had nothing to give and the
	// frame must be submitted empty with no scene update.
	AcquireFrame() (bool, error)
	// SubmitFrame finalises the frame.
	SubmitFrame() error
}

// Scene is the slice of the sandbox host the loop drives.
type Scene interface {
	Update(ctx context.Context, delta float32) error
}

// Events drains the surface's event queue.
type Events interface {
	DrainEvents() (quit bool)
}

const (
	// pauseCheckInterval throttles the pause predicates: probing a
	// compositor socket every frame would cost more than the render.
	pauseCheckInterval = 200 * time.Millisecond

	// maxDelta clamps the frame delta. A system sleep must not produce
	// a physics-breaking time step.
	maxDelta = 1.0
)

// Config is the loop's tuning.
type Config struct {
	// FPS caps the frame rate; zero leaves pacing to vsync.
	FPS uint32
	// Speed multiplies the delta passed to update. Must be positive.
	Speed float32
	// PauseHidden pauses rendering while the output is hidden.
	PauseHidden bool
	// PauseOnBat pauses rendering while the machine discharges.
	PauseOnBat bool
}

// Deps are the loop's collaborators. Now and Sleep default to the real
// clock; the predicates default to "never".
type Deps struct {
	Renderer Renderer
	Scene    Scene
	Events   Events

	// Hidden is consulted when Config.PauseHidden is set.
	Hidden func() bool
	// Discharging is consulted when Config.PauseOnBat is set.
	Discharging func() bool
	// OnFirstFrame runs once after the first successful submit.
	OnFirstFrame func()

	Now   func() int64
	Sleep func(time.Duration)
}

// FrameBudget returns the per-frame time budget for an fps cap,
// rounded to the nearest nanosecond.
func FrameBudget(fps uint32) time.Duration {
	return time.Duration((uint64(time.Second) + uint64(fps)/2) / uint64(fps))
}

// Loop is one configured frame loop.
type Loop struct {
	cfg  Config
	deps Deps

	budget         time.Duration
	prev           int64
	lastPauseCheck int64
	frameSkipped   bool
	firstDraw      bool
}

// New validates the configuration and builds a loop.
func New(cfg Config, deps Deps) *Loop {
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	if deps.Now == nil {
		start := time.Now()
		deps.Now = func() int64 { return int64(time.Since(start)) }
	}
	if deps.Sleep == nil {
		deps.Sleep = time.Sleep
	}
	if deps.Hidden == nil {
		deps.Hidden = func() bool { return false }
	}
	if deps.Discharging == nil {
		deps.Discharging = func() bool { return false }
	}

	l := &Loop{cfg: cfg, deps: deps, firstDraw: true}
	if cfg.FPS != 0 {
		l.budget = FrameBudget(cfg.FPS)
	}
	return l
}

// Run iterates until the surface requests shutdown or a frame fails.
func (l *Loop) Run(ctx context.Context) error {
	l.prev = l.deps.Now()
	l.lastPauseCheck = l.prev

	for {
		quit, err := l.iterate(ctx)
		if quit || err != nil {
			return err
		}
	}
}

// iterate runs a single frame; exposed for tests.
func (l *Loop) iterate(ctx context.Context) (quit bool, err error) {
	now := l.deps.Now()

	if l.budget != 0 {
		elapsed := time.Duration(0)
		if now > l.prev {
			elapsed = time.Duration(now - l.prev)
		}
		if elapsed < l.budget {
			l.deps.Sleep(l.budget - elapsed)
		}
	}

	var delta float32
	if !l.frameSkipped && now > l.prev {
		delta = float32(now-l.prev) / 1e9
		if delta > maxDelta {
			delta = maxDelta
		}
	}
	l.prev = now
	l.frameSkipped = false

	if l.deps.Events.DrainEvents() {
		return true, nil
	}

	if !l.firstDraw && now-l.lastPauseCheck >= int64(pauseCheckInterval) {
		if (l.cfg.PauseHidden && l.deps.Hidden()) || (l.cfg.PauseOnBat && l.deps.Discharging()) {
			l.deps.Sleep(pauseCheckInterval)
			l.frameSkipped = true
			return false, nil
		}
		l.lastPauseCheck = now
	}

	acquired, err := l.deps.Renderer.AcquireFrame()
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, l.deps.Renderer.SubmitFrame()
	}

	if err := l.deps.Scene.Update(ctx, delta*l.cfg.Speed); err != nil {
		return false, err
	}

	if err := l.deps.Renderer.SubmitFrame(); err != nil {
		return false, err
	}

	if l.firstDraw {
		l.firstDraw = false
		if l.deps.OnFirstFrame != nil {
			l.deps.OnFirstFrame()
		}
	}
	return false, nil
}
