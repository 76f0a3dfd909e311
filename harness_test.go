package veshell

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/roscale/veshell/platform"
	"github.com/roscale/veshell/proto"
	"github.com/roscale/veshell/render"
)

/* Test harness: a fake UI engine that records channel traffic, plus a
 * server bootstrapped against a throwaway XDG_RUNTIME_DIR. Scenario
 * tests talk to the server over the real wayland socket. */

type invocation struct {
	Method string
	Args   any
}

type fakeTextInput struct {
	active bool
	buf    []rune
}

func (ti *fakeTextInput) Active() bool { return ti.active }

func (ti *fakeTextInput) PressKey(keyCode uint32, codepoint rune) {
	if codepoint != 0 {
		ti.buf = append(ti.buf, codepoint)
	}
}

type fakeEngine struct {
	invocations chan invocation
	textures    chan int64
	frames      chan int64

	textInput *fakeTextInput

	// handleKeys makes SendKeyEvent answer handled=true
	handleKeys bool

	env map[string]*string

	registerTextureErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		invocations: make(chan invocation, 256),
		textures:    make(chan int64, 64),
		frames:      make(chan int64, 64),
		textInput:   &fakeTextInput{},
		env:         make(map[string]*string),
	}
}

func (e *fakeEngine) Messenger() platform.BinaryMessenger { return e }

func (e *fakeEngine) Send(channel string, message []byte, reply func([]byte)) {
	call, err := platform.DecodeMethodCall(message)
	if err != nil {
		panic(err)
	}
	e.invocations <- invocation{Method: call.Method, Args: call.Arguments}
}

func (e *fakeEngine) SetMessageHandler(channel string, handler func(message []byte, reply func([]byte))) {
}

func (e *fakeEngine) RegisterExternalTexture(textureID int64) error {
	if e.registerTextureErr != nil {
		return e.registerTextureErr
	}
	e.textures <- textureID
	return nil
}

func (e *fakeEngine) MarkTextureFrameAvailable(textureID int64) error {
	e.frames <- textureID
	return nil
}

func (e *fakeEngine) SendKeyEvent(ev KeyEvent, reply chan<- HandledKeyEvent) {
	reply <- HandledKeyEvent{Event: ev, Handled: e.handleKeys}
}

func (e *fakeEngine) TextInput() TextInput { return e.textInput }

func (e *fakeEngine) SetEnvironmentVariable(name string, value *string) {
	e.env[name] = value
}

/* expect pulls the next engine invocation, failing the test when
 * nothing arrives in time. */
func (e *fakeEngine) expect(t *testing.T, method string) invocation {
	t.Helper()
	select {
	case inv := <-e.invocations:
		if inv.Method != method {
			t.Fatalf("expected %s, got %s %v", method, inv.Method, inv.Args)
		}
		return inv
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", method)
	}
	return invocation{}
}

/* fakeRenderer sizes textures off the buffer without touching pixels;
 * failure mode for the frame-loss tests. */
type fakeRenderer struct {
	fail bool
}

func (r *fakeRenderer) ImportBuffer(buf *proto.Buffer) (render.Texture, error) {
	if r.fail {
		return nil, errors.New("import refused")
	}
	w, h := buf.Size()
	return stubTexture{X: w, Y: h}, nil
}

func (*fakeRenderer) Flush() {}

func newTestServer(t *testing.T) (*Server, *fakeEngine) {
	t.Helper()
	return newTestServerWith(t, render.Headless{})
}

func newTestServerWith(t *testing.T, renderer render.Renderer) (*Server, *fakeEngine) {
	t.Helper()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	loop := NewLoop()
	engine := newFakeEngine()
	server, err := NewServer(loop, engine, renderer, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	server.Serve()
	go loop.Run()
	t.Cleanup(func() {
		loop.Quit()
		server.Display.Close()
	})
	return server, engine
}

// call builds an inbound RPC the way the codec would deliver it.
func call(method string, args map[string]any) platform.MethodCall {
	return platform.MethodCall{Method: method, Arguments: args}
}

// onLoop runs f on the server loop and waits for it.
func onLoop(t *testing.T, s *Server, f func()) {
	t.Helper()
	done := make(chan struct{})
	s.Loop.Post(func() {
		f()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop stalled")
	}
}

/* shmFile is an anonymous shm arena, the same construction clients
 * use for wl_shm pools. */
func shmFile(t *testing.T, size int64) *os.File {
	t.Helper()
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		t.Fatal(errors.New("XDG_RUNTIME_DIR is not defined in env"))
	}
	file, err := os.CreateTemp(dir, "wl_shm_go_*")
	if err != nil {
		t.Fatal(err)
	}
	if err := file.Truncate(size); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(file.Name()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { file.Close() })
	return file
}
