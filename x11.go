package veshell

import (
	"fmt"
	"image"
	"image/draw"
	"log"

	"github.com/KononK/resize"

	"github.com/roscale/veshell/proto"
)

/* The X11 bridge: an external Xwayland process plus an embedded window
 * manager on its connection. Spawning and the X11 wire live outside
 * the core; what crosses the boundary is the WindowManager contract
 * and the event stream below. */

// WindowManager is the narrow surface of the embedded X11 WM the core
// talks to.
type WindowManager interface {
	// NewSelection mirrors a wayland selection into the X11 clipboard.
	NewSelection(target proto.SelectionTarget, mimes []string) error

	// SendSelection writes the X11-owned selection for mime into fd.
	SendSelection(target proto.SelectionTarget, mime string, fd int) error

	// SetCursor installs the root cursor.
	SetCursor(img *image.RGBA, hotspot image.Point) error
}

// X11Surface is one X11 window known to the core, bound to a
// wl_surface once Xwayland attaches one through the xwayland-shell
// role.
type X11Surface struct {
	ID               uint64
	Window           uint32
	OverrideRedirect bool
	Surface          *proto.Surface
}

/* bridge lifecycle events, delivered by the embedding */

type XWaylandEvent any

type XWaylandReady struct {
	DisplayNumber int
	WM            WindowManager
}

type XWaylandError struct {
	Err error
}

/* StartXWayland consumes bridge events from the embedding's spawner.
 * Safe to call before the loop runs. */
func (s *Server) StartXWayland(events <-chan XWaylandEvent) {
	go func() {
		for ev := range events {
			ev := ev
			s.Loop.Post(func() { s.handleXWaylandEvent(ev) })
		}
	}()
}

func (s *Server) handleXWaylandEvent(ev XWaylandEvent) {
	switch ev := ev.(type) {
	case XWaylandReady:
		s.x11WM = ev.WM
		display := ev.DisplayNumber
		s.xwaylandDisplay = &display

		if s.cfg.Cursor != nil {
			if err := s.installCursor(ev.WM); err != nil {
				log.Printf("failed to set xwayland default cursor: %v", err)
			}
		}

		value := fmt.Sprintf(":%d", display)
		s.engine.SetEnvironmentVariable("DISPLAY", &value)

	case XWaylandError:
		log.Printf("xwayland bridge failed: %v", ev.Err)
		s.x11WM = nil
		s.xwaylandDisplay = nil
		s.engine.SetEnvironmentVariable("DISPLAY", nil)
	}
}

// XWaylandDisplay reports the X display number, or false while the
// bridge is down.
func (s *Server) XWaylandDisplay() (int, bool) {
	if s.xwaylandDisplay == nil {
		return 0, false
	}
	return *s.xwaylandDisplay, true
}

/* installCursor scales the catalogue image to the configured cursor
 * size and hands it to the WM. The hotspot scales with the image. */
func (s *Server) installCursor(wm WindowManager) error {
	src := s.cfg.Cursor
	size := s.cfg.CursorSize
	if size <= 0 {
		size = 24
	}
	scaled := resize.Resize(uint(size), uint(size), src, resize.Bilinear)
	img := image.NewRGBA(scaled.Bounds())
	draw.Draw(img, img.Rect, scaled, scaled.Bounds().Min, draw.Src)

	bounds := src.Bounds()
	hotspot := s.cfg.CursorHotspot
	if bounds.Dx() > 0 && bounds.Dy() > 0 {
		hotspot = image.Point{
			X: hotspot.X * size / bounds.Dx(),
			Y: hotspot.Y * size / bounds.Dy(),
		}
	}
	return wm.SetCursor(img, hotspot)
}

/* X11 window table, driven by the window manager side */

// NewX11Window records a window the WM saw and allocates its stable id.
func (s *Server) NewX11Window(window uint32, overrideRedirect bool) *X11Surface {
	xs := &X11Surface{
		ID:               s.newX11SurfaceID(),
		Window:           window,
		OverrideRedirect: overrideRedirect,
	}
	s.x11SurfacePerX11Window[window] = xs
	return xs
}

// X11WindowDestroyed drops the window and its surface binding.
func (s *Server) X11WindowDestroyed(window uint32) {
	xs, ok := s.x11SurfacePerX11Window[window]
	if !ok {
		return
	}
	delete(s.x11SurfacePerX11Window, window)
	if xs.Surface != nil {
		delete(s.x11SurfacePerWlSurface, xs.Surface)
	}
}

/* AssociateX11WindowSerial pairs a window with the serial Xwayland
 * will present through the xwayland-shell role. Whichever side arrives
 * second completes the binding. */
func (s *Server) AssociateX11WindowSerial(window uint32, serial uint64) {
	if s.x11Serials == nil {
		s.x11Serials = make(map[uint64]uint32)
	}
	if surface, ok := s.x11SerialSurfaces[serial]; ok {
		delete(s.x11SerialSurfaces, serial)
		s.bindX11Surface(window, surface)
		return
	}
	s.x11Serials[serial] = window
}

// XwaylandSurfaceSerial is the proto-side half of the handshake.
func (s *Server) XwaylandSurfaceSerial(surface *proto.Surface, serial uint64) {
	if window, ok := s.x11Serials[serial]; ok {
		delete(s.x11Serials, serial)
		s.bindX11Surface(window, surface)
		return
	}
	if s.x11SerialSurfaces == nil {
		s.x11SerialSurfaces = make(map[uint64]*proto.Surface)
	}
	s.x11SerialSurfaces[serial] = surface
}

func (s *Server) bindX11Surface(window uint32, surface *proto.Surface) {
	xs, ok := s.x11SurfacePerX11Window[window]
	if !ok {
		log.Printf("xwayland surface serial for unknown window %d", window)
		return
	}
	xs.Surface = surface
	s.x11SurfacePerWlSurface[surface] = xs
}
