package proto

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path"

	"golang.org/x/sys/unix"
)

/* Display is the server side of a wayland connection: the listening
 * socket, the connected clients and the advertised globals. All methods
 * except Accept and client reads are loop-affine; the owning reactor
 * serializes every mutation. */
type Display struct {
	socketName string
	socketPath string
	lockPath   string
	listenFd   int
	lockFd     int

	clients map[*Client]struct{}
	globals []global

	serial uint32

	handlers Handlers

	// seat is the single seat served by this display.
	seat *Seat

	selection *selectionState

	output          OutputMode
	outputResources map[*Client][]uint32
}

/* Handlers are the callbacks a compositor core installs to observe
 * protocol activity. Every field must be set before serving clients. */
type Handlers struct {
	Compositor CompositorHandler
	Shell      ShellHandler
	Dmabuf     DmabufHandler
	Selection  SelectionHandler
	Xwayland   XwaylandShellHandler
}

type CompositorHandler interface {
	NewSurface(*Surface)
	NewSubsurface(surface, parent *Surface)
	Commit(*Surface)
	SurfaceDestroyed(*Surface)
}

type ShellHandler interface {
	NewToplevel(*Toplevel)
	NewPopup(*Popup)
	Move(*Toplevel, uint32)
	Resize(*Toplevel, uint32, ResizeEdge)
	Grab(*Popup, uint32)
	Reposition(*Popup, uint32)
	AppIDChanged(*Toplevel)
	TitleChanged(*Toplevel)
	ToplevelDestroyed(*Toplevel)
	PopupDestroyed(*Popup)
}

type DmabufHandler interface {
	// DmabufImported reports whether the buffer can be sampled by the
	// renderer. A false return makes the protocol layer fail the import.
	DmabufImported(*Buffer) bool
}

type SelectionTarget int

const (
	SelectionClipboard SelectionTarget = iota
	SelectionPrimary
)

type SelectionHandler interface {
	NewSelection(target SelectionTarget, source *DataSource)
	SendSelection(target SelectionTarget, mime string, fd int)
}

type XwaylandShellHandler interface {
	XwaylandSurfaceSerial(*Surface, uint64)
}

type global struct {
	name    uint32
	iface   string
	version uint32
	bind    func(c *Client, id uint32, version uint32) object
}

// object is one protocol object owned by a client.
type object interface {
	dispatch(c *Client, opcode uint16, r *argReader) error
}

/* NewDisplay creates the listening socket in XDG_RUNTIME_DIR. With an
 * empty name the first free wayland-N slot is taken, guarded by a lock
 * file the way libwayland does it. */
func NewDisplay(socketName string, h Handlers) (*Display, error) {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		return nil, errors.New("XDG_RUNTIME_DIR is not defined in env")
	}

	d := &Display{
		clients:  make(map[*Client]struct{}),
		handlers: h,
		listenFd: -1,
		lockFd:   -1,
	}

	if socketName != "" {
		if err := d.bindSocket(dir, socketName); err != nil {
			return nil, err
		}
	} else {
		var err error
		for n := range 32 {
			err = d.bindSocket(dir, fmt.Sprintf("wayland-%d", n))
			if err == nil {
				break
			}
		}
		if d.listenFd < 0 {
			return nil, fmt.Errorf("no free wayland socket: %w", err)
		}
	}

	d.registerGlobals()
	return d, nil
}

func (d *Display) bindSocket(dir, name string) error {
	lockPath := path.Join(dir, name+".lock")
	lockFd, err := unix.Open(lockPath, unix.O_CREAT|unix.O_CLOEXEC|unix.O_RDWR, 0o660)
	if err != nil {
		return err
	}
	if err := unix.Flock(lockFd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(lockFd)
		return fmt.Errorf("socket %s is in use: %w", name, err)
	}

	sockPath := path.Join(dir, name)
	os.Remove(sockPath)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		unix.Close(lockFd)
		return err
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: sockPath}); err != nil {
		unix.Close(fd)
		unix.Close(lockFd)
		return err
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		unix.Close(lockFd)
		os.Remove(sockPath)
		return err
	}

	d.socketName = name
	d.socketPath = sockPath
	d.lockPath = lockPath
	d.listenFd = fd
	d.lockFd = lockFd
	return nil
}

func (d *Display) SocketName() string { return d.socketName }

// Seat returns the single seat, creating it on first use.
func (d *Display) Seat() *Seat {
	if d.seat == nil {
		d.seat = newSeat(d)
	}
	return d.seat
}

// NextSerial returns a fresh serial for input and configure events.
func (d *Display) NextSerial() uint32 {
	d.serial++
	return d.serial
}

/* Accept blocks for one new connection. Meant to run on its own
 * goroutine; the returned client must be handed to the loop thread
 * before serving. */
func (d *Display) Accept() (*Client, error) {
	for {
		fd, _, err := unix.Accept(d.listenFd)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		return newClient(d, fd), nil
	}
}

// AddClient registers a connected client. Loop-affine.
func (d *Display) AddClient(c *Client) {
	d.clients[c] = struct{}{}
}

func (d *Display) RemoveClient(c *Client) {
	if _, ok := d.clients[c]; !ok {
		return
	}
	delete(d.clients, c)
	c.teardown()
}

func (d *Display) Close() {
	for c := range d.clients {
		d.RemoveClient(c)
	}
	if d.listenFd >= 0 {
		unix.Close(d.listenFd)
		os.Remove(d.socketPath)
	}
	if d.lockFd >= 0 {
		unix.Close(d.lockFd)
		os.Remove(d.lockPath)
	}
}

func (d *Display) addGlobal(iface string, version uint32, bind func(c *Client, id, version uint32) object) {
	d.globals = append(d.globals, global{
		name:    uint32(len(d.globals) + 1),
		iface:   iface,
		version: version,
		bind:    bind,
	})
}

/* Client is one connected wayland client and its object table.
 * Server-allocated ids live in the 0xff000000 range. */
type Client struct {
	display *Display
	conn    *conn
	objects map[uint32]object
	nextID  uint32
	dead    bool

	// UserData carries compositor-core per-client state.
	UserData any
}

const serverIDBase = 0xff000000

func newClient(d *Display, fd int) *Client {
	c := &Client{
		display: d,
		conn:    &conn{fd: fd},
		objects: make(map[uint32]object),
		nextID:  serverIDBase,
	}
	c.objects[1] = &displayObject{}
	return c
}

func (c *Client) Display() *Display { return c.display }

// Read blocks for the next batch of requests. Runs off-loop.
func (c *Client) Read() ([]message, error) {
	return c.conn.read()
}

/* Dispatch runs one batch of requests against the object table.
 * Loop-affine. Any protocol error disconnects the client. */
func (c *Client) Dispatch(msgs []message) {
	for _, m := range msgs {
		if c.dead {
			return
		}
		if m.object == 0 {
			/* framing error marker from conn.drain */
			c.protocolError(1, displayErrInvalidMethod, "malformed message framing")
			c.display.RemoveClient(c)
			return
		}
		obj, ok := c.objects[m.object]
		if !ok {
			/* requests racing a server-side destroy are dropped */
			continue
		}
		r := &argReader{c: c.conn, data: m.data}
		if err := obj.dispatch(c, m.opcode, r); err != nil {
			log.Printf("client error on object %d opcode %d: %v", m.object, m.opcode, err)
			c.protocolError(m.object, displayErrInvalidMethod, err.Error())
			c.display.RemoveClient(c)
			return
		}
	}
}

func (c *Client) newServerID() uint32 {
	c.nextID++
	return c.nextID
}

func (c *Client) register(id uint32, obj object) error {
	if _, taken := c.objects[id]; taken {
		return fmt.Errorf("object id %d already in use", id)
	}
	c.objects[id] = obj
	return nil
}

func (c *Client) unregister(id uint32) {
	delete(c.objects, id)
}

func (c *Client) send(object uint32, opcode uint16, w *argWriter) {
	if c.dead {
		return
	}
	var data []byte
	var fds []int
	if w != nil {
		data, fds = w.data, w.fds
	}
	if err := c.conn.write(object, opcode, data, fds); err != nil {
		log.Printf("client write failed: %v", err)
		c.dead = true
	}
}

const (
	displayErrInvalidObject  = 0
	displayErrInvalidMethod  = 1
	displayErrImplementation = 3
)

// protocolError sends wl_display.error and poisons the connection.
func (c *Client) protocolError(object uint32, code uint32, msg string) {
	w := &argWriter{}
	w.Uint32(object).Uint32(code).String(msg)
	c.send(1, 0, w)
	c.dead = true
}

// PostError is the handler-facing way to issue a protocol error on a
// role object, per the role's error codes.
func (c *Client) PostError(object, code uint32, msg string) {
	c.protocolError(object, code, msg)
	c.display.RemoveClient(c)
}

func (c *Client) teardown() {
	for id, obj := range c.objects {
		if res, ok := obj.(resource); ok {
			res.destroy(c)
		}
		delete(c.objects, id)
	}
	c.conn.close()
	c.dead = true
}

// resource is implemented by objects with teardown side effects
// (surfaces notify the compositor handler, pools unmap, ...).
type resource interface {
	destroy(c *Client)
}

/* wl_display */

type displayObject struct{}

func (displayObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* sync */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		/* fire wl_callback.done immediately: all prior requests are
		 * processed by the time we get here */
		w := &argWriter{}
		w.Uint32(c.display.NextSerial())
		c.send(id, 0, w)
		/* wl_display.delete_id */
		dw := &argWriter{}
		dw.Uint32(id)
		c.send(1, 1, dw)
	case 1: /* get_registry */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		reg := &registryObject{}
		if err := c.register(id, reg); err != nil {
			return err
		}
		for _, g := range c.display.globals {
			w := &argWriter{}
			w.Uint32(g.name).String(g.iface).Uint32(g.version)
			c.send(id, 0, w)
		}
	default:
		return fmt.Errorf("wl_display: bad opcode %d", opcode)
	}
	return nil
}

/* wl_registry */

type registryObject struct{}

func (registryObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	if opcode != 0 {
		return fmt.Errorf("wl_registry: bad opcode %d", opcode)
	}
	name, err := r.Uint32()
	if err != nil {
		return err
	}
	iface, err := r.String()
	if err != nil {
		return err
	}
	version, err := r.Uint32()
	if err != nil {
		return err
	}
	id, err := r.Uint32()
	if err != nil {
		return err
	}
	for _, g := range c.display.globals {
		if g.name == name {
			if g.iface != iface {
				return fmt.Errorf("global %d is %s, not %s", name, g.iface, iface)
			}
			if version > g.version {
				return fmt.Errorf("%s: version %d > %d", iface, version, g.version)
			}
			return c.register(id, g.bind(c, id, version))
		}
	}
	return fmt.Errorf("unknown global %d", name)
}

/* inertObject backs objects whose requests carry no compositor-visible
 * semantics (frame callbacks, wl_touch); every request sent to it is
 * accepted and ignored so clients can proceed. */
type inertObject struct{}

func (inertObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	return nil
}
