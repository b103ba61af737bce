package hostapi

import (
	"strings"
	"testing"

	"github.com/mechakotik/openwallpaper/gpu"
	"github.com/mechakotik/openwallpaper/lasterr"
	"github.com/mechakotik/openwallpaper/objects"
)

// newTestEnv builds an Env whose session has no device: only the pass
// state machine and handle plumbing are exercised, which is exactly what
// the protocol checks run before touching the GPU.
func newTestEnv() *Env {
	return &Env{
		Session: &gpu.Session{},
		Objects: objects.NewManager(nil),
	}
}

// trapMessage runs fn and returns the message of the SceneTrap it
// raises; it fails the test when no trap fires.
func trapMessage(t *testing.T, fn func()) (msg string) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a scene trap")
		}
		trap, ok := r.(SceneTrap)
		if !ok {
			t.Fatalf("unexpected panic value %v", r)
		}
		msg = trap.Msg
	}()
	fn()
	return msg
}

func TestUpdateBufferOutsideCopyPass(t *testing.T) {
	lasterr.Clear()
	e := newTestEnv()

	msg := trapMessage(t, func() {
		e.owUpdateBuffer(nil, nil, 1, 0, 0, 64)
	})
	want := "called ow_update_buffer when no copy pass is active"
	if msg != want {
		t.Errorf("trap message %q, want %q", msg, want)
	}
	if !lasterr.IsSet() || lasterr.Get() != want {
		t.Errorf("error slot = %q (set=%v), want the trap message", lasterr.Get(), lasterr.IsSet())
	}
}

func TestBeginCopyPassTwice(t *testing.T) {
	lasterr.Clear()
	e := newTestEnv()

	e.owBeginCopyPass(nil, nil)
	msg := trapMessage(t, func() {
		e.owBeginCopyPass(nil, nil)
	})
	if msg != "called ow_begin_copy_pass when copy pass is active" {
		t.Errorf("unexpected trap message %q", msg)
	}
}

func TestEndCopyPassWithoutBegin(t *testing.T) {
	e := newTestEnv()
	msg := trapMessage(t, func() {
		e.owEndCopyPass(nil, nil)
	})
	if msg != "called ow_end_copy_pass when no pass is active" {
		t.Errorf("unexpected trap message %q", msg)
	}
}

func TestCopyPassCloseReopens(t *testing.T) {
	e := newTestEnv()
	e.owBeginCopyPass(nil, nil)
	e.owEndCopyPass(nil, nil)
	// A fresh begin after a clean close must not trap.
	e.owBeginCopyPass(nil, nil)
	e.owEndCopyPass(nil, nil)
}

func TestRenderScopedOpsOutsideRenderPass(t *testing.T) {
	cases := map[string]func(e *Env){
		"ow_render_geometry": func(e *Env) {
			e.owRenderGeometry(nil, nil, 1, 0, 0, 3, 1)
		},
		"ow_render_geometry_indexed": func(e *Env) {
			e.owRenderGeometryIndexed(nil, nil, 1, 0, 0, 3, 0, 1)
		},
		"ow_push_vertex_uniform_data": func(e *Env) {
			e.owPushVertexUniformData(nil, nil, 0, 0, 16)
		},
		"ow_push_fragment_uniform_data": func(e *Env) {
			e.owPushFragmentUniformData(nil, nil, 0, 0, 16)
		},
	}
	for entry, fn := range cases {
		e := newTestEnv()
		msg := trapMessage(t, func() { fn(e) })
		want := "called " + entry + " when no render pass is active"
		if msg != want {
			t.Errorf("%s: trap message %q, want %q", entry, msg, want)
		}
	}
}

func TestCopyScopedOpsOutsideCopyPass(t *testing.T) {
	cases := map[string]func(e *Env){
		"ow_update_texture": func(e *Env) {
			e.owUpdateTexture(nil, nil, 0, 0, 0)
		},
		"ow_generate_mipmaps": func(e *Env) {
			e.owGenerateMipmaps(nil, nil, 1)
		},
		"ow_create_texture_from_image": func(e *Env) {
			e.owCreateTextureFromImage(nil, nil, 0, 0)
		},
	}
	for entry, fn := range cases {
		e := newTestEnv()
		msg := trapMessage(t, func() { fn(e) })
		want := "called " + entry + " when no copy pass is active"
		if msg != want {
			t.Errorf("%s: trap message %q, want %q", entry, msg, want)
		}
	}
}

func TestUpdateBufferWrongHandle(t *testing.T) {
	e := newTestEnv()
	e.owBeginCopyPass(nil, nil)

	msg := trapMessage(t, func() {
		e.owUpdateBuffer(nil, nil, 42, 0, 0, 64)
	})
	if !strings.Contains(msg, "non-existent object") {
		t.Errorf("unexpected trap message %q", msg)
	}

	// A live handle of the wrong type is a distinct failure.
	h, err := e.Objects.New(objects.TypeTexture, &gpu.Texture{})
	if err != nil {
		t.Fatal(err)
	}
	msg = trapMessage(t, func() {
		e.owUpdateBuffer(nil, nil, h, 0, 0, 64)
	})
	if !strings.Contains(msg, "non-buffer object") {
		t.Errorf("unexpected trap message %q", msg)
	}
}

func TestFreeIsNotTrapping(t *testing.T) {
	lasterr.Clear()
	e := newTestEnv()
	h, err := e.Objects.New(objects.TypeVertexBuffer, &gpu.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	e.owFree(nil, nil, h)
	e.owFree(nil, nil, h) // second free is a no-op
	e.owFree(nil, nil, 0)
	e.owFree(nil, nil, 9999)
	if lasterr.IsSet() {
		t.Errorf("free must not set the error slot, got %q", lasterr.Get())
	}
}
