/* Package veshell is the core of a hybrid wayland compositor: the
 * wayland/x11 client population on one side, an external UI engine
 * owning composition and window management on the other. The core maps
 * protocol surfaces to stable ids, turns committed buffers into GPU
 * textures, and routes input between the two worlds. */
package veshell

import (
	"image"
	"log"
	"os"
	"time"

	"github.com/roscale/veshell/platform"
	"github.com/roscale/veshell/proto"
	"github.com/roscale/veshell/render"
)

/* Config is the compositor policy surface. Zero numeric values mean
 * defaults; InitialMaximize is a plain bool whose zero value turns the
 * policy off. See DefaultConfig for the shipped values. */
type Config struct {
	/* SocketName pins the wayland socket; empty picks the first free
	 * wayland-N slot. */
	SocketName string

	/* software key repeat, both in milliseconds */
	RepeatDelayMs int
	RepeatRateMs  int

	/* InitialMaximize forces Maximized into the first toplevel
	 * configure. Shell policy, not protocol. */
	InitialMaximize bool

	/* SwapChainDepth bounds both the texture ring per texture id and
	 * the live texture ids per surface. Two covers a one-frame overlap
	 * during resizes; raise it only with measurements in hand. */
	SwapChainDepth int

	/* cursor installed on the X11 window manager, scaled to CursorSize */
	Cursor        image.Image
	CursorSize    int
	CursorHotspot image.Point
}

func DefaultConfig() Config {
	return Config{
		RepeatDelayMs:   200,
		RepeatRateMs:    50,
		InitialMaximize: true,
		SwapChainDepth:  2,
		CursorSize:      24,
	}
}

/* TextureEntry is one live texture id of a surface together with the
 * buffer size it was allocated for. */
type TextureEntry struct {
	ID   int64
	Size image.Point
}

/* surfaceState is the per-surface record hung off proto.Surface. */
type surfaceState struct {
	id              uint64
	lastTextureSize *image.Point
	mapped          bool
}

/* Server owns the whole compositor core: the surface registry, the
 * texture bookkeeping, input routing and the bridge maps. Every field
 * is guarded by loop affinity alone. */
type Server struct {
	Loop    *Loop
	Display *proto.Display

	cfg   Config
	start time.Time

	engine   Engine
	channel  *platform.MethodChannel
	renderer render.Renderer

	keyboard *proto.Keyboard
	pointer  *proto.Pointer

	repeatDelay time.Duration
	repeatRate  time.Duration
	keyRepeater *KeyRepeater

	// handledKeyEvents carries the engine's verdicts back to the loop.
	handledKeyEvents chan HandledKeyEvent

	x11WM           WindowManager
	xwaylandDisplay *int

	nextSurfaceID    uint64
	nextX11SurfaceID uint64
	nextTextureID    int64

	mouseX, mouseY       float64
	surfaceIDUnderCursor uint64

	surfaces               map[uint64]*proto.Surface
	subsurfaces            map[uint64]*proto.Surface
	toplevels              map[uint64]*proto.Toplevel
	popups                 map[uint64]*proto.Popup
	x11SurfacePerX11Window map[uint32]*X11Surface
	x11SurfacePerWlSurface map[*proto.Surface]*X11Surface
	x11Serials             map[uint64]uint32
	x11SerialSurfaces      map[uint64]*proto.Surface
	textureIDsPerSurfaceID map[uint64][]TextureEntry
	surfaceIDPerTextureID  map[int64]uint64
	swapchains             map[int64]*SwapChain
}

/* NewServer wires the protocol layer, the seat and the engine channel,
 * and exports the session environment the way child processes expect
 * it. */
func NewServer(loop *Loop, engine Engine, renderer render.Renderer, cfg Config) (*Server, error) {
	if cfg.RepeatDelayMs == 0 {
		cfg.RepeatDelayMs = 200
	}
	if cfg.RepeatRateMs == 0 {
		cfg.RepeatRateMs = 50
	}
	if cfg.SwapChainDepth == 0 {
		cfg.SwapChainDepth = 2
	}

	s := &Server{
		Loop:     loop,
		cfg:      cfg,
		start:    time.Now(),
		engine:   engine,
		renderer: renderer,

		repeatDelay: time.Duration(cfg.RepeatDelayMs) * time.Millisecond,
		repeatRate:  time.Duration(cfg.RepeatRateMs) * time.Millisecond,

		handledKeyEvents: make(chan HandledKeyEvent, 16),

		nextSurfaceID:    1,
		nextX11SurfaceID: 1,
		nextTextureID:    1,

		surfaces:               make(map[uint64]*proto.Surface),
		subsurfaces:            make(map[uint64]*proto.Surface),
		toplevels:              make(map[uint64]*proto.Toplevel),
		popups:                 make(map[uint64]*proto.Popup),
		x11SurfacePerX11Window: make(map[uint32]*X11Surface),
		x11SurfacePerWlSurface: make(map[*proto.Surface]*X11Surface),
		textureIDsPerSurfaceID: make(map[uint64][]TextureEntry),
		surfaceIDPerTextureID:  make(map[int64]uint64),
		swapchains:             make(map[int64]*SwapChain),
	}

	display, err := proto.NewDisplay(cfg.SocketName, proto.Handlers{
		Compositor: s,
		Shell:      s,
		Dmabuf:     s,
		Selection:  s,
		Xwayland:   s,
	})
	if err != nil {
		return nil, err
	}
	s.Display = display

	log.Printf("listening on wayland socket %s", display.SocketName())

	os.Unsetenv("DISPLAY")
	os.Setenv("WAYLAND_DISPLAY", display.SocketName())
	os.Setenv("XDG_SESSION_TYPE", "wayland")
	os.Setenv("GDK_BACKEND", "wayland")    /* force GTK apps onto wayland */
	os.Setenv("QT_QPA_PLATFORM", "wayland") /* force QT apps onto wayland */

	s.keyboard = display.Seat().Keyboard()
	s.pointer = display.Seat().Pointer()
	s.keyboard.ChangeRepeatInfo(int32(cfg.RepeatDelayMs), int32(cfg.RepeatRateMs))
	s.keyboard.OnFocusChanged = s.focusChanged

	s.keyRepeater = NewKeyRepeater(loop, s.repeatKey)

	s.channel = platform.NewMethodChannel(engine.Messenger(), "platform")
	s.channel.SetMethodCallHandler(func(call platform.MethodCall, result platform.MethodResult) {
		loop.Post(func() { s.handlePlatformMessage(call, result) })
	})

	return s, nil
}

// Channel exposes the UI-engine method channel.
func (s *Server) Channel() *platform.MethodChannel { return s.channel }

/* Serve starts the accept goroutine and the key-verdict drain, then
 * keeps serving until the loop quits. Clients get one reader goroutine
 * each; all dispatching happens on the loop. */
func (s *Server) Serve() {
	go func() {
		for {
			c, err := s.Display.Accept()
			if err != nil {
				log.Printf("error adding wayland client: %v", err)
				return
			}
			s.Loop.Post(func() {
				s.Display.AddClient(c)
			})
			go s.readClient(c)
		}
	}()

	go func() {
		for ev := range s.handledKeyEvents {
			ev := ev
			s.Loop.Post(func() { s.onHandledKeyEvent(ev) })
		}
	}()
}

func (s *Server) readClient(c *proto.Client) {
	for {
		msgs, err := c.Read()
		if err != nil {
			s.Loop.Post(func() { s.Display.RemoveClient(c) })
			return
		}
		s.Loop.Post(func() { c.Dispatch(msgs) })
	}
}

/* identifier allocators: strictly monotonic, never reused in a run */

func (s *Server) newSurfaceID() uint64 {
	id := s.nextSurfaceID
	s.nextSurfaceID++
	return id
}

func (s *Server) newX11SurfaceID() uint64 {
	id := s.nextX11SurfaceID
	s.nextX11SurfaceID++
	return id
}

func (s *Server) newTextureID() int64 {
	id := s.nextTextureID
	s.nextTextureID++
	return id
}

// nowMs is the event timestamp clock, milliseconds since server start.
func (s *Server) nowMs() uint32 {
	return uint32(time.Since(s.start) / time.Millisecond)
}

/* ChangeKeyboardRepeatInfo updates both the software repeater and the
 * advertised wl_keyboard repeat parameters so clients repeating
 * server-side and locally agree. */
func (s *Server) ChangeKeyboardRepeatInfo(delayMs, rateMs int) {
	s.repeatDelay = time.Duration(delayMs) * time.Millisecond
	s.repeatRate = time.Duration(rateMs) * time.Millisecond
	s.keyboard.ChangeRepeatInfo(int32(delayMs), int32(rateMs))
}

/* ReleaseAllKeys synthesizes releases for everything held, used when
 * the UI engine loses keyboard focus. */
func (s *Server) ReleaseAllKeys() {
	for _, keyCode := range s.keyboard.PressedKeys() {
		s.HandleKeyEvent(keyCode, false, 0)
	}
}
