// Package sandbox loads, instantiates, and drives the scene module. The
// runtime is wazero's compiler engine; the module comes out of the scene
// archive, optionally through the AOT cache, and every host entry the
// scene imports is registered under the `env` namespace before
// instantiation.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/mechakotik/openwallpaper/aot"
	"github.com/mechakotik/openwallpaper/archive"
	"github.com/mechakotik/openwallpaper/args"
	"github.com/mechakotik/openwallpaper/hostapi"
	"github.com/mechakotik/openwallpaper/lasterr"
)

// memoryLimitPages caps the scene's linear memory at 64 MiB.
const memoryLimitPages = 1024

var wasmMagic = []byte("\x00asm")

// Config selects what the scene is wired to.
type Config struct {
	// Cache accelerates module loads. Nil disables AOT entirely.
	Cache *aot.Cache

	// Env is the host API state. Its OptionPtrs map is filled by Load.
	Env *hostapi.Env

	// Options are the scene options marshalled into guest memory.
	Options []args.Option
}

// Scene is an instantiated module.
type Scene struct {
	runtime  wazero.Runtime
	module   api.Module
	initFn   api.Function
	updateFn api.Function
}

// Load reads scene.wasm from the archive, consults the AOT cache, and
// instantiates the module with the host API registered.
func Load(ctx context.Context, arch *archive.Archive, cfg Config) (*Scene, error) {
	moduleBytes, err := arch.Read(archive.SceneModuleEntry)
	if err != nil {
		return nil, err
	}

	runtimeConfig := wazero.NewRuntimeConfigCompiler().
		WithMemoryLimitPages(memoryLimitPages)
	if cfg.Cache != nil {
		if cc, err := wazero.NewCompilationCacheWithDir(cfg.Cache.RuntimeCacheDir()); err == nil {
			runtimeConfig = runtimeConfig.WithCompilationCache(cc)
		} else {
			log.Printf("sandbox: compilation cache unavailable: %v", err)
		}
	}

	rt := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)
	s := &Scene{runtime: rt}

	if cfg.Env.OptionPtrs == nil {
		cfg.Env.OptionPtrs = make(map[string]uint32)
	}
	if err := cfg.Env.Register(ctx, rt.NewHostModuleBuilder("env")); err != nil {
		s.Close(ctx)
		return nil, err
	}

	compiled, err := compileModule(ctx, rt, moduleBytes, cfg.Cache)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	module, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName("scene").
		WithStartFunctions())
	if err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("sandbox: instantiate module: %w", err)
	}
	s.module = module

	if s.initFn = module.ExportedFunction("init"); s.initFn == nil {
		s.Close(ctx)
		return nil, fmt.Errorf("sandbox: init function not found in wasm module")
	}
	if s.updateFn = module.ExportedFunction("update"); s.updateFn == nil {
		s.Close(ctx)
		return nil, fmt.Errorf("sandbox: update function not found in wasm module")
	}

	if err := s.marshalOptions(ctx, cfg); err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// compileModule prefers the cached AOT artifact when it is something the
// runtime can load, and falls back to the original module bytes
// otherwise. AOT failure is never fatal.
func compileModule(ctx context.Context, rt wazero.Runtime, moduleBytes []byte, cache *aot.Cache) (wazero.CompiledModule, error) {
	if cache != nil {
		if artifact, ok := cache.Artifact(moduleBytes); ok && bytes.HasPrefix(artifact, wasmMagic) {
			compiled, err := rt.CompileModule(ctx, artifact)
			if err == nil {
				return compiled, nil
			}
			log.Printf("sandbox: cached artifact does not load, using original module: %v", err)
		}
	}

	compiled, err := rt.CompileModule(ctx, moduleBytes)
	if err != nil {
		return nil, fmt.Errorf("sandbox: module load failed: %w", err)
	}
	return compiled, nil
}

// marshalOptions copies every scene option value into guest memory as a
// nul-terminated string and records the pointer for ow_get_option.
func (s *Scene) marshalOptions(ctx context.Context, cfg Config) error {
	for _, opt := range cfg.Options {
		ptr, err := hostapi.GuestAlloc(ctx, s.module, uint32(len(opt.Value))+1)
		if err != nil {
			return fmt.Errorf("sandbox: marshal option %s: %w", opt.Key, err)
		}
		mem := s.module.Memory()
		if !mem.Write(ptr, []byte(opt.Value)) || !mem.WriteByte(ptr+uint32(len(opt.Value)), 0) {
			return fmt.Errorf("sandbox: marshal option %s: out of memory", opt.Key)
		}
		cfg.Env.OptionPtrs[opt.Key] = ptr
	}
	return nil
}

// call invokes an exported function, converting a host-API trap back
// into its error.
func (s *Scene) call(ctx context.Context, fn api.Function, params ...uint64) (err error) {
	lasterr.Clear()
	defer func() {
		if r := recover(); r != nil {
			trap, ok := r.(hostapi.SceneTrap)
			if !ok {
				panic(r)
			}
			err = trap
		}
	}()
	_, err = fn.Call(ctx, params...)
	return err
}

// Init runs the scene's init export. On failure the error slot's message
// wins over the runtime's own diagnostic.
func (s *Scene) Init(ctx context.Context) error {
	if err := s.call(ctx, s.initFn); err != nil {
		return s.sceneError("init", err)
	}
	return nil
}

// Update runs the scene's update export with the clamped frame delta.
func (s *Scene) Update(ctx context.Context, delta float32) error {
	if err := s.call(ctx, s.updateFn, uint64(math.Float32bits(delta))); err != nil {
		return s.sceneError("update", err)
	}
	return nil
}

// sceneError prefers the error slot set by a host entry; without one it
// surfaces the runtime's diagnostic.
func (s *Scene) sceneError(what string, err error) error {
	if lasterr.IsSet() {
		return fmt.Errorf("%s", lasterr.Get())
	}
	return fmt.Errorf("scene %s failed: %w", what, err)
}

// CloseModule tears down the instance while leaving the runtime alive.
// The daemon closes the module before the GPU session and destroys the
// runtime last.
func (s *Scene) CloseModule(ctx context.Context) {
	if s.module != nil {
		_ = s.module.Close(ctx)
		s.module = nil
		s.initFn = nil
		s.updateFn = nil
	}
}

// Close destroys the instance, the module, and the runtime.
func (s *Scene) Close(ctx context.Context) {
	s.CloseModule(ctx)
	if s.runtime != nil {
		_ = s.runtime.Close(ctx)
		s.runtime = nil
	}
}
