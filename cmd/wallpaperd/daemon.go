package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/mechakotik/openwallpaper/aot"
	"github.com/mechakotik/openwallpaper/archive"
	"github.com/mechakotik/openwallpaper/args"
	"github.com/mechakotik/openwallpaper/audio"
	"github.com/mechakotik/openwallpaper/config"
	"github.com/mechakotik/openwallpaper/engine"
	"github.com/mechakotik/openwallpaper/gpu"
	"github.com/mechakotik/openwallpaper/hostapi"
	"github.com/mechakotik/openwallpaper/objects"
	"github.com/mechakotik/openwallpaper/output"
	"github.com/mechakotik/openwallpaper/probes"
	"github.com/mechakotik/openwallpaper/sandbox"
)

// settings are the daemon options after merging the config file under
// the command line.
type settings struct {
	fps         uint32
	speed       float32
	preferDGPU  bool
	pauseHidden bool
	pauseOnBat  bool
	windowed    bool
	display     string
	noAudio     bool
}

func resolveSettings(a *args.Args) (settings, error) {
	s := settings{speed: 1}

	defaults, err := config.Load()
	if err != nil {
		return s, err
	}
	if defaults.FPS != nil {
		s.fps = *defaults.FPS
	}
	if defaults.Speed != nil {
		s.speed = float32(*defaults.Speed)
	}
	if defaults.PreferDGPU != nil {
		s.preferDGPU = *defaults.PreferDGPU
	}
	if defaults.PauseHidden != nil {
		s.pauseHidden = *defaults.PauseHidden
	}
	if defaults.PauseOnBat != nil {
		s.pauseOnBat = *defaults.PauseOnBat
	}

	if v, ok := a.Option("fps"); ok {
		fps, err := strconv.ParseUint(v, 10, 32)
		if err != nil || fps == 0 {
			return s, errors.New("invalid fps value")
		}
		s.fps = uint32(fps)
	}
	if v, ok := a.Option("speed"); ok {
		speed, err := strconv.ParseFloat(v, 32)
		if err != nil || speed <= 0 {
			return s, errors.New("invalid speed value")
		}
		s.speed = float32(speed)
	}
	s.preferDGPU = s.preferDGPU || a.Has("prefer-dgpu")
	s.pauseHidden = s.pauseHidden || a.Has("pause-hidden")
	s.pauseOnBat = s.pauseOnBat || a.Has("pause-on-bat")
	s.windowed = a.Has("window")
	s.noAudio = a.Has("no-audio")
	s.display, _ = a.Option("display")
	return s, nil
}

func listDisplays(a *args.Args) error {
	backend, err := output.Default(a.Has("window"))
	if err != nil {
		return err
	}
	displays, err := backend.ListDisplays()
	if err != nil {
		return err
	}
	for _, d := range displays {
		fmt.Println(d)
	}
	return nil
}

// run wires the whole daemon together and owns the teardown order:
// object-manager drop-all, scene, GPU session, archive, sandbox runtime.
func run(a *args.Args) error {
	if a.WallpaperPath == "" {
		return errors.New("no wallpaper path specified")
	}
	s, err := resolveSettings(a)
	if err != nil {
		return err
	}

	ctx := context.Background()

	// Teardown order matters: outstanding handles drop first, then the
	// scene instance, the GPU session, the archive, and the sandbox
	// runtime last.
	var (
		out     output.Output
		session *gpu.Session
		manager *objects.Manager
		arch    *archive.Archive
		scene   *sandbox.Scene
	)
	defer func() {
		if manager != nil {
			manager.DropAll()
		}
		if scene != nil {
			scene.CloseModule(ctx)
		}
		if session != nil {
			session.Destroy()
		}
		if arch != nil {
			arch.Close()
		}
		if scene != nil {
			scene.Close(ctx)
		}
		if out != nil {
			out.Close()
		}
	}()

	backend, err := output.Default(s.windowed)
	if err != nil {
		return err
	}
	out, err = backend.Open(output.Options{Display: s.display, Windowed: s.windowed})
	if err != nil {
		return err
	}

	presentMode := gpu.PresentVsync
	if s.fps != 0 {
		presentMode = gpu.PresentMailbox
	}
	session, err = gpu.New(gpu.Config{PreferDGPU: s.preferDGPU, PresentMode: presentMode}, out)
	if err != nil {
		return err
	}

	manager = objects.NewManager(func(_ objects.Type, res any) {
		session.FreeResource(res)
	})

	arch, err = archive.Open(a.WallpaperPath)
	if err != nil {
		return err
	}

	cache, err := aot.New()
	if err != nil {
		log.Printf("warning: AOT cache unavailable: %v", err)
		cache = nil
	}

	spectrum, stopAudio := setupAudio(s, a)
	defer stopAudio()

	env := &hostapi.Env{
		Session:  session,
		Objects:  manager,
		Archive:  arch,
		Output:   out,
		Spectrum: spectrum,
	}
	scene, err = sandbox.Load(ctx, arch, sandbox.Config{
		Cache:   cache,
		Env:     env,
		Options: a.SceneOptions(),
	})
	if err != nil {
		return err
	}

	// init records its uploads on the first frame's command buffer.
	if _, err := session.AcquireFrame(); err != nil {
		return err
	}
	if err := scene.Init(ctx); err != nil {
		return err
	}
	if err := session.SubmitFrame(); err != nil {
		return err
	}

	var hidden func() bool
	if s.pauseHidden {
		probe := probes.NewHyprland()
		defer probe.Close()
		hidden = func() bool { return out.Hidden() || probe.Hidden() }
	}
	var discharging func() bool
	if s.pauseOnBat {
		battery := probes.NewBattery()
		discharging = battery.Discharging
	}

	ready := engine.NewReadyFile()
	defer ready.Unset()

	loop := engine.New(engine.Config{
		FPS:         s.fps,
		Speed:       s.speed,
		PauseHidden: s.pauseHidden,
		PauseOnBat:  s.pauseOnBat,
	}, engine.Deps{
		Renderer:     session,
		Scene:        scene,
		Events:       out,
		Hidden:       hidden,
		Discharging:  discharging,
		OnFirstFrame: ready.Set,
	})
	return loop.Run(ctx)
}

// setupAudio starts spectrum capture unless audio is disabled; every
// failure degrades to the zero-filling spectrum.
func setupAudio(s settings, a *args.Args) (audio.Spectrum, func()) {
	if s.noAudio {
		return audio.Disabled{}, func() {}
	}
	source, _ := a.Option("audio-source")
	visualizer := audio.NewVisualizer()
	capture, err := audio.NewPulseCapture(visualizer, source)
	if err != nil {
		log.Printf("warning: audio capture unavailable: %v", err)
		return audio.Disabled{}, func() {}
	}
	return visualizer, capture.Close
}
