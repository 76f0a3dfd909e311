package veshell

import (
	"testing"
)

/* Move and resize requests forward to the UI engine instead of
 * starting a server-side grab. */
func TestInteractiveMoveResize(t *testing.T) {
	server, engine := newTestServer(t)
	c := dialWayland(t, server)

	surface := c.createSurface()
	xdg := c.getXdgSurface(surface)
	toplevel := c.getToplevel(xdg)
	engine.expect(t, "new_surface")
	engine.expect(t, "new_toplevel")

	c.send(toplevel, 5, nil, c.seat, uint32(9)) /* move */
	move := argMap(t, engine.expect(t, "interactive_move"))
	if move["surfaceId"].(int64) != 1 {
		t.Fatalf("interactive_move = %v", move)
	}

	c.send(toplevel, 6, nil, c.seat, uint32(10), uint32(8)) /* resize, right */
	resize := argMap(t, engine.expect(t, "interactive_resize"))
	if resize["surfaceId"].(int64) != 1 || resize["edge"].(int64) != 8 {
		t.Fatalf("interactive_resize = %v", resize)
	}
}

/* Title changes notify the engine with the fresh state. */
func TestTitleChanged(t *testing.T) {
	server, engine := newTestServer(t)
	c := dialWayland(t, server)

	surface := c.createSurface()
	xdg := c.getXdgSurface(surface)
	toplevel := c.getToplevel(xdg)
	engine.expect(t, "new_surface")
	engine.expect(t, "new_toplevel")

	c.send(toplevel, 2, nil, "editor — draft.txt")
	msg := argMap(t, engine.expect(t, "title_changed"))
	if msg["title"].(string) != "editor — draft.txt" {
		t.Fatalf("title = %v", msg["title"])
	}
}

/* Toplevel destruction tears the role down and notifies. */
func TestToplevelDestroyed(t *testing.T) {
	server, engine := newTestServer(t)
	c := dialWayland(t, server)

	surface := c.createSurface()
	xdg := c.getXdgSurface(surface)
	toplevel := c.getToplevel(xdg)
	engine.expect(t, "new_surface")
	engine.expect(t, "new_toplevel")

	c.send(toplevel, 0, nil) /* destroy */
	msg := argMap(t, engine.expect(t, "destroy_toplevel"))
	if msg["surfaceId"].(int64) != 1 {
		t.Fatalf("destroy_toplevel = %v", msg)
	}
	onLoop(t, server, func() {
		if len(server.toplevels) != 0 {
			t.Errorf("toplevel record survived destroy")
		}
	})
}

/* Surface destruction is the last message for the id. */
func TestSurfaceDestroyed(t *testing.T) {
	server, engine := newTestServer(t)
	c := dialWayland(t, server)

	surface := c.createSurface()
	engine.expect(t, "new_surface")
	c.send(surface, 0, nil) /* wl_surface.destroy */
	msg := argMap(t, engine.expect(t, "destroy_surface"))
	if msg["surfaceId"].(int64) != 1 {
		t.Fatalf("destroy_surface = %v", msg)
	}
	onLoop(t, server, func() {
		if len(server.surfaces) != 0 {
			t.Errorf("surface record survived destroy")
		}
	})
}

/* Parentless popups are rejected with a protocol error rather than
 * carried with a nil parent. */
func TestParentlessPopupRejected(t *testing.T) {
	server, engine := newTestServer(t)
	c := dialWayland(t, server)

	surface := c.createSurface()
	engine.expect(t, "new_surface")
	xdg := c.getXdgSurface(surface)

	positioner := c.id()
	c.send(c.wmBase, 1, nil, positioner)
	c.send(positioner, 1, nil, int32(10), int32(10))
	c.send(positioner, 2, nil, int32(0), int32(0), int32(1), int32(1))

	popup := c.id()
	c.send(xdg, 2, nil, popup, uint32(0), positioner) /* parent = null */

	for {
		ev := c.event()
		if ev.object == 1 && ev.opcode == 0 { /* wl_display.error */
			code := tle.Uint32(ev.data[4:8])
			if code != 3 { /* xdg_wm_base invalid_popup_parent */
				t.Fatalf("error code = %d", code)
			}
			return
		}
	}
}
