package veshell

import (
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

/* testClient speaks the client side of the wire protocol against a
 * test server, just far enough for the end-to-end scenarios. */

type testClient struct {
	t      *testing.T
	conn   *net.UnixConn
	nextID uint32
	inBuf  []byte

	globals map[string]struct{ name, version uint32 }

	compositor    uint32
	subcompositor uint32
	shm           uint32
	seat          uint32
	wmBase        uint32
	keyboard      uint32
	pointer       uint32
	lastToplevel  uint32
}

type testEvent struct {
	object uint32
	opcode uint16
	data   []byte
}

var tle = binary.LittleEndian

func dialWayland(t *testing.T, s *Server) *testClient {
	t.Helper()
	path := filepath.Join(os.Getenv("XDG_RUNTIME_DIR"), s.Display.SocketName())
	return dialWaylandPath(t, path)
}

func dialWaylandPath(t *testing.T, path string) *testClient {
	t.Helper()
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	c := &testClient{
		t:       t,
		conn:    conn,
		nextID:  2, /* 1 is wl_display */
		globals: make(map[string]struct{ name, version uint32 }),
	}

	registry := c.id()
	c.send(1, 1, nil, registry)
	c.roundtrip(registry)
	c.bindBasics()
	return c
}

func (c *testClient) id() uint32 {
	id := c.nextID
	c.nextID++
	return id
}

func (c *testClient) send(object uint32, opcode uint16, fds []int, args ...any) {
	c.t.Helper()
	var body []byte
	for _, a := range args {
		switch a := a.(type) {
		case uint32:
			body = tle.AppendUint32(body, a)
		case int32:
			body = tle.AppendUint32(body, uint32(a))
		case string:
			body = tle.AppendUint32(body, uint32(len(a)+1))
			body = append(body, a...)
			body = append(body, 0)
			for len(body)%4 != 0 {
				body = append(body, 0)
			}
		default:
			c.t.Fatalf("unsupported arg %T", a)
		}
	}
	size := 8 + len(body)
	msg := make([]byte, size)
	tle.PutUint32(msg[0:], object)
	tle.PutUint32(msg[4:], uint32(opcode)|uint32(size)<<16)
	copy(msg[8:], body)

	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	if _, _, err := c.conn.WriteMsgUnix(msg, oob, nil); err != nil {
		c.t.Fatal(err)
	}
}

/* event reads the next event, failing on timeout. */
func (c *testClient) event() testEvent {
	c.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if len(c.inBuf) >= 8 {
			sizeOp := tle.Uint32(c.inBuf[4:8])
			size := int(sizeOp >> 16)
			if len(c.inBuf) >= size {
				ev := testEvent{
					object: tle.Uint32(c.inBuf[0:4]),
					opcode: uint16(sizeOp & 0xffff),
					data:   append([]byte(nil), c.inBuf[8:size]...),
				}
				c.inBuf = c.inBuf[size:]
				return ev
			}
		}
		c.conn.SetReadDeadline(deadline)
		buf := make([]byte, 4096)
		oob := make([]byte, 256)
		n, _, _, _, err := c.conn.ReadMsgUnix(buf, oob)
		if err != nil {
			c.t.Fatalf("reading event: %v", err)
		}
		c.inBuf = append(c.inBuf, buf[:n]...)
	}
}

/* waitFor skips events until (object, opcode) shows up, recording
 * registry globals on the way past. */
func (c *testClient) waitFor(object uint32, opcode uint16) testEvent {
	c.t.Helper()
	for {
		ev := c.event()
		if ev.object == object && ev.opcode == opcode {
			return ev
		}
		c.observe(ev)
	}
}

func (c *testClient) observe(ev testEvent) {
	if ev.object == 1 && ev.opcode == 0 { /* wl_display.error */
		code := tle.Uint32(ev.data[4:8])
		n := tle.Uint32(ev.data[8:12])
		c.t.Fatalf("protocol error %d: %s", code, string(ev.data[12:12+n-1]))
	}
}

// roundtrip waits for the done of a fresh sync; registryID != 0 also
// harvests global events.
func (c *testClient) roundtrip(registryID uint32) {
	c.t.Helper()
	cb := c.id()
	c.send(1, 0, nil, cb)
	for {
		ev := c.event()
		if ev.object == cb && ev.opcode == 0 {
			return
		}
		if registryID != 0 && ev.object == registryID && ev.opcode == 0 {
			name := tle.Uint32(ev.data[0:4])
			ifaceLen := tle.Uint32(ev.data[4:8])
			iface := string(ev.data[8 : 8+ifaceLen-1])
			padded := (int(ifaceLen) + 3) &^ 3
			version := tle.Uint32(ev.data[8+padded:])
			c.globals[iface] = struct{ name, version uint32 }{name, version}
			continue
		}
		c.observe(ev)
	}
}

func (c *testClient) bind(iface string, version uint32) uint32 {
	c.t.Helper()
	g, ok := c.globals[iface]
	if !ok {
		c.t.Fatalf("global %s not advertised", iface)
	}
	if version > g.version {
		version = g.version
	}
	id := c.id()
	c.send(2, 0, nil, g.name, iface, version, id)
	return id
}

func (c *testClient) bindBasics() {
	c.compositor = c.bind("wl_compositor", 6)
	c.subcompositor = c.bind("wl_subcompositor", 1)
	c.shm = c.bind("wl_shm", 1)
	c.seat = c.bind("wl_seat", 7)
	c.wmBase = c.bind("xdg_wm_base", 3)
}

func (c *testClient) createSurface() uint32 {
	id := c.id()
	c.send(c.compositor, 0, nil, id)
	return id
}

func (c *testClient) getXdgSurface(surface uint32) uint32 {
	id := c.id()
	c.send(c.wmBase, 2, nil, id, surface)
	return id
}

func (c *testClient) getToplevel(xdgSurface uint32) uint32 {
	id := c.id()
	c.send(xdgSurface, 1, nil, id)
	c.lastToplevel = id
	return id
}

func (c *testClient) commit(surface uint32) {
	c.send(surface, 6, nil)
}

/* ackNextConfigure waits for xdg_surface.configure and acks it. */
func (c *testClient) ackNextConfigure(xdgSurface uint32) {
	ev := c.waitFor(xdgSurface, 0)
	serial := tle.Uint32(ev.data[0:4])
	c.send(xdgSurface, 4, nil, serial)
}

/* createShmBuffer makes a pool-backed buffer filled with a solid
 * pixel value. */
func (c *testClient) createShmBuffer(width, height int32) uint32 {
	c.t.Helper()
	stride := width * 4
	size := int64(stride * height)
	file := shmFile(c.t, size)

	data := make([]byte, size)
	for i := range data {
		data[i] = 0x80
	}
	if _, err := file.WriteAt(data, 0); err != nil {
		c.t.Fatal(err)
	}

	pool := c.id()
	c.send(c.shm, 0, []int{int(file.Fd())}, pool, int32(size))
	buf := c.id()
	c.send(pool, 0, nil, buf, int32(0), width, height, stride, uint32(0) /* argb8888 */)
	return buf
}

func (c *testClient) attach(surface, buffer uint32) {
	c.send(surface, 1, nil, buffer, int32(0), int32(0))
}

func (c *testClient) getKeyboard() uint32 {
	id := c.id()
	c.send(c.seat, 1, nil, id)
	c.keyboard = id
	return id
}

func (c *testClient) getPointer() uint32 {
	id := c.id()
	c.send(c.seat, 0, nil, id)
	c.pointer = id
	return id
}
