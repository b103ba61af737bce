package sandbox

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mechakotik/openwallpaper/aot"
	"github.com/mechakotik/openwallpaper/archive"
	"github.com/mechakotik/openwallpaper/args"
	"github.com/mechakotik/openwallpaper/hostapi"
)

// minimalModule assembles a wasm module by hand: one exported memory and
// no-op `init` and (optionally) `update(f32)` exports. Keeping the bytes
// literal avoids a wasm toolchain in the test suite.
func minimalModule(withUpdate bool) []byte {
	var b bytes.Buffer
	b.Write([]byte("\x00asm\x01\x00\x00\x00"))
	// Types: () -> () and (f32) -> ().
	b.Write([]byte{0x01, 0x08, 0x02, 0x60, 0x00, 0x00, 0x60, 0x01, 0x7d, 0x00})
	// Two functions using those types.
	b.Write([]byte{0x03, 0x03, 0x02, 0x00, 0x01})
	// One memory, minimum one page.
	b.Write([]byte{0x05, 0x03, 0x01, 0x00, 0x01})
	if withUpdate {
		b.Write([]byte{0x07, 0x1a, 0x03,
			0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
			0x04, 'i', 'n', 'i', 't', 0x00, 0x00,
			0x06, 'u', 'p', 'd', 'a', 't', 'e', 0x00, 0x01})
	} else {
		b.Write([]byte{0x07, 0x11, 0x02,
			0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
			0x04, 'i', 'n', 'i', 't', 0x00, 0x00})
	}
	// Two empty bodies.
	b.Write([]byte{0x0a, 0x07, 0x02, 0x02, 0x00, 0x0b, 0x02, 0x00, 0x0b})
	return b.Bytes()
}

func sceneArchive(t *testing.T, module []byte) *archive.Archive {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(archive.SceneModuleEntry)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(module); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "scene.owf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := archive.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestLoadInitUpdate(t *testing.T) {
	ctx := context.Background()
	arch := sceneArchive(t, minimalModule(true))

	scene, err := Load(ctx, arch, Config{Env: &hostapi.Env{}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer scene.Close(ctx)

	if err := scene.Init(ctx); err != nil {
		t.Errorf("Init: %v", err)
	}
	if err := scene.Update(ctx, 0.016); err != nil {
		t.Errorf("Update: %v", err)
	}
}

func TestLoadMissingUpdateExport(t *testing.T) {
	ctx := context.Background()
	arch := sceneArchive(t, minimalModule(false))

	_, err := Load(ctx, arch, Config{Env: &hostapi.Env{}})
	if err == nil || !strings.Contains(err.Error(), "update function not found") {
		t.Fatalf("expected missing-update error, got %v", err)
	}
}

func TestLoadMissingSceneModule(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	w.Close()
	path := filepath.Join(t.TempDir(), "empty.owf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := archive.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if _, err := Load(context.Background(), a, Config{Env: &hostapi.Env{}}); err == nil {
		t.Fatal("expected error for an archive without scene.wasm")
	}
}

func TestLoadGarbageModule(t *testing.T) {
	arch := sceneArchive(t, []byte("not wasm at all"))
	if _, err := Load(context.Background(), arch, Config{Env: &hostapi.Env{}}); err == nil {
		t.Fatal("expected module load failure")
	}
}

func TestOptionMarshalling(t *testing.T) {
	ctx := context.Background()
	arch := sceneArchive(t, minimalModule(true))
	env := &hostapi.Env{}

	scene, err := Load(ctx, arch, Config{
		Env: env,
		Options: []args.Option{
			{Key: "bg", Value: "#ff0000"},
			{Key: "flag", Value: ""},
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer scene.Close(ctx)

	ptr, ok := env.OptionPtrs["bg"]
	if !ok || ptr == 0 {
		t.Fatalf("bg option not marshalled, ptr=%d", ptr)
	}
	data, readOK := scene.module.Memory().Read(ptr, 8)
	if !readOK {
		t.Fatal("option pointer out of range")
	}
	if string(data[:7]) != "#ff0000" || data[7] != 0 {
		t.Errorf("guest memory holds %q, want nul-terminated #ff0000", data)
	}

	if _, ok := env.OptionPtrs["flag"]; !ok {
		t.Error("empty-valued option must still be marshalled")
	}
	if _, ok := env.OptionPtrs["absent"]; ok {
		t.Error("unknown option must not appear")
	}
}

// TestAOTArtifactFallback runs a load where the cache hands back a WAMR
// artifact the runtime cannot execute; the original module must win.
func TestAOTArtifactFallback(t *testing.T) {
	ctx := context.Background()
	module := minimalModule(true)
	arch := sceneArchive(t, module)

	cache := &aot.Cache{Root: t.TempDir(), Compiler: "false"}
	// Pre-plant a valid-looking but non-wasm artifact.
	if err := os.MkdirAll(filepath.Join(cache.Root, "aot"), 0o755); err != nil {
		t.Fatal(err)
	}
	artifact := append([]byte("\x00aot"), bytes.Repeat([]byte{0xee}, 16)...)
	if err := os.WriteFile(cache.ArtifactPath(module), artifact, 0o644); err != nil {
		t.Fatal(err)
	}

	scene, err := Load(ctx, arch, Config{Cache: cache, Env: &hostapi.Env{}})
	if err != nil {
		t.Fatalf("Load must fall back to the original module: %v", err)
	}
	defer scene.Close(ctx)

	if err := scene.Init(ctx); err != nil {
		t.Errorf("Init after fallback: %v", err)
	}
}
