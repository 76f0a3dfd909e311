package veshell

import (
	"testing"
)

/* Frame-loss policy: a failed import maps nothing this commit but
 * leaves the texture bookkeeping intact, so the next good commit of
 * the same size reuses the id. */
func TestImportFailureKeepsPriorTexture(t *testing.T) {
	renderer := &fakeRenderer{}
	server, engine := newTestServerWith(t, renderer)
	c := dialWayland(t, server)

	surface := c.createSurface()
	engine.expect(t, "new_surface")

	buf := c.createShmBuffer(64, 64)
	c.attach(surface, buf)
	c.commit(surface)
	first := argMap(t, engine.expect(t, "commit_surface"))
	if first["textureId"].(int64) != 1 {
		t.Fatalf("first texture = %v", first["textureId"])
	}

	onLoop(t, server, func() { renderer.fail = true })
	buf2 := c.createShmBuffer(64, 64)
	c.attach(surface, buf2)
	c.commit(surface)
	failed := argMap(t, engine.expect(t, "commit_surface"))
	if failed["textureId"].(int64) != -1 {
		t.Fatalf("failed import still mapped: %v", failed["textureId"])
	}

	onLoop(t, server, func() {
		if len(server.textureIDsPerSurfaceID[1]) != 1 {
			t.Errorf("texture entries dropped on failure: %v", server.textureIDsPerSurfaceID[1])
		}
		if server.swapchains[1].Latest() == nil {
			t.Errorf("swap chain lost its prior texture")
		}
	})

	onLoop(t, server, func() { renderer.fail = false })
	buf3 := c.createShmBuffer(64, 64)
	c.attach(surface, buf3)
	c.commit(surface)
	recovered := argMap(t, engine.expect(t, "commit_surface"))
	if recovered["textureId"].(int64) != 1 {
		t.Fatalf("recovered texture = %v, want the prior id", recovered["textureId"])
	}
}

/* Attaching a null buffer unmaps the surface for that commit. */
func TestBufferRemoved(t *testing.T) {
	server, engine := newTestServer(t)
	c := dialWayland(t, server)

	surface := c.createSurface()
	engine.expect(t, "new_surface")

	buf := c.createShmBuffer(32, 32)
	c.attach(surface, buf)
	c.commit(surface)
	if got := argMap(t, engine.expect(t, "commit_surface"))["textureId"].(int64); got != 1 {
		t.Fatalf("texture = %d", got)
	}

	c.attach(surface, 0) /* wl_surface.attach(null) */
	c.commit(surface)
	if got := argMap(t, engine.expect(t, "commit_surface"))["textureId"].(int64); got != -1 {
		t.Fatalf("removed buffer still mapped: %d", got)
	}
}

/* Input region: additive rects merge into one bounding rectangle;
 * unset regions default to the buffer extent. */
func TestInputRegion(t *testing.T) {
	server, engine := newTestServer(t)
	c := dialWayland(t, server)

	surface := c.createSurface()
	engine.expect(t, "new_surface")

	buf := c.createShmBuffer(100, 80)
	c.attach(surface, buf)
	c.commit(surface)
	msg := argMap(t, engine.expect(t, "commit_surface"))
	region := msg["inputRegion"].(map[string]any)
	if region["width"].(int64) != 100 || region["height"].(int64) != 80 {
		t.Fatalf("default input region = %v", region)
	}

	reg := c.id()
	c.send(c.compositor, 1, nil, reg)
	c.send(reg, 1, nil, int32(0), int32(0), int32(10), int32(10))
	c.send(reg, 1, nil, int32(50), int32(50), int32(30), int32(20))
	c.send(surface, 5, nil, reg) /* set_input_region */
	buf2 := c.createShmBuffer(100, 80)
	c.attach(surface, buf2)
	c.commit(surface)
	msg = argMap(t, engine.expect(t, "commit_surface"))
	region = msg["inputRegion"].(map[string]any)
	if region["x"].(int64) != 0 || region["y"].(int64) != 0 ||
		region["width"].(int64) != 80 || region["height"].(int64) != 70 {
		t.Fatalf("merged input region = %v", region)
	}
}
