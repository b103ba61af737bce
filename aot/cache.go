// Package aot persists ahead-of-time compiled artifacts for scene modules
// so that the second and later runs of a wallpaper skip bytecode
// compilation. Artifacts are keyed by the FNV-1a-64 hash of the module
// bytes; the compiler is an external command and every failure along the
// way degrades to "run the original module bytes".
package aot

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// DefaultCompiler is the external AOT compiler invoked as
// `<compiler> -o <out> <in>`.
const DefaultCompiler = "wamrc"

// Artifact magics accepted by Validate: WAMR AOT images and plain wasm
// modules (used when the compiler is configured to emit wasm).
var artifactMagics = [][]byte{
	[]byte("\x00aot"),
	[]byte("\x00asm"),
}

// Cache is an on-disk artifact store rooted at a per-user cache
// directory.
type Cache struct {
	// Root is the cache root, typically <user-cache-dir>/wallpaperd.
	Root string
	// Compiler is the AOT compiler command. Empty means DefaultCompiler.
	Compiler string
}

// New returns a cache rooted at <user-cache-dir>/wallpaperd, creating the
// aot and tmp subdirectories.
func New() (*Cache, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("aot: resolve user cache dir: %w", err)
	}
	c := &Cache{Root: filepath.Join(base, "wallpaperd")}
	if err := c.ensureDirs(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) ensureDirs() error {
	for _, dir := range []string{c.aotDir(), c.tmpDir(), c.RuntimeCacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("aot: create %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Cache) aotDir() string { return filepath.Join(c.Root, "aot") }
func (c *Cache) tmpDir() string { return filepath.Join(c.Root, "tmp") }

// RuntimeCacheDir is a directory the sandbox runtime may use for its own
// compilation cache. It shares the cache root so one `rm -r` clears both.
func (c *Cache) RuntimeCacheDir() string { return filepath.Join(c.Root, "wazero") }

// Key returns the cache key for a module: the FNV-1a-64 of its bytes as
// 16 zero-padded lowercase hex digits.
func Key(module []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(module) // fnv.Write never returns an error
	return fmt.Sprintf("%016x", h.Sum64())
}

// ArtifactPath returns the canonical path of the artifact for a module.
func (c *Cache) ArtifactPath(module []byte) string {
	return filepath.Join(c.aotDir(), Key(module)+".aot")
}

// Validate reports whether data looks like a loadable artifact.
func Validate(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	for _, magic := range artifactMagics {
		if bytes.HasPrefix(data, magic) {
			return true
		}
	}
	return false
}

// Artifact returns the AOT artifact for the module, compiling and caching
// it if needed. The second result is false when no artifact is available
// and the caller should run the original module bytes; that path is never
// an error.
func (c *Cache) Artifact(module []byte) ([]byte, bool) {
	if err := c.ensureDirs(); err != nil {
		log.Printf("aot: %v", err)
		return nil, false
	}

	path := c.ArtifactPath(module)
	if data, err := os.ReadFile(path); err == nil {
		if Validate(data) {
			return data, true
		}
		// Corrupt or truncated artifact: discard and recompile.
		log.Printf("aot: discarding unreadable artifact %s", path)
		_ = os.Remove(path)
	}

	data, err := c.compile(module, path)
	if err != nil {
		log.Printf("aot: compile failed, running original module: %v", err)
		return nil, false
	}
	return data, true
}

// compile writes the module to the staging directory, runs the external
// compiler, and renames the output into the canonical path. The rename
// makes concurrent readers see either the old artifact or the new one,
// never a partial write.
func (c *Cache) compile(module []byte, dest string) ([]byte, error) {
	compiler := c.Compiler
	if compiler == "" {
		compiler = DefaultCompiler
	}

	key := Key(module)
	in := filepath.Join(c.tmpDir(), key+".tmp-wasm")
	out := filepath.Join(c.tmpDir(), key+".tmp-aot")
	if err := os.WriteFile(in, module, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", in, err)
	}
	defer os.Remove(in)
	defer os.Remove(out)

	cmd := exec.Command(compiler, "-o", out, in)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w", compiler, err)
	}

	info, err := os.Stat(out)
	if err != nil {
		return nil, fmt.Errorf("%s produced no output: %w", compiler, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%s produced empty output", compiler)
	}

	if err := os.Rename(out, dest); err != nil {
		return nil, fmt.Errorf("rename into cache: %w", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		return nil, fmt.Errorf("read back %s: %w", dest, err)
	}
	if !Validate(data) {
		_ = os.Remove(dest)
		return nil, fmt.Errorf("%s produced an unrecognized artifact", compiler)
	}
	return data, nil
}
