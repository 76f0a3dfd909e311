package proto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
	"honnef.co/go/safeish"
)

var le = binary.LittleEndian

/* wire format: 32-bit object id, then 16-bit size | 16-bit opcode,
 * little endian, arguments padded to 32-bit words. File descriptors
 * travel out of band as SCM_RIGHTS. */

const headerSize = 8

// maxMessageSize is the size field limit imposed by the 16-bit length.
const maxMessageSize = 1 << 16

type message struct {
	object uint32
	opcode uint16
	data   []byte
	fds    []int
}

var errMalformed = errors.New("malformed message")

type msgHeader struct {
	Object     uint32
	SizeOpcode uint32
}

// conn is one client connection. Reads happen on a dedicated goroutine,
// writes on the loop thread. inBuf accumulates partial reads.
type conn struct {
	fd         int
	inBuf      []byte
	pendingFds []int
}

func (c *conn) close() {
	unix.Close(c.fd)
}

/* read pulls bytes and control messages off the socket until at least one
 * complete message is buffered, then returns all complete messages. */
func (c *conn) read() ([]message, error) {
	buf := make([]byte, 4096)
	oob := make([]byte, unix.CmsgSpace(4*8))
	for {
		n, oobn, _, _, err := unix.Recvmsg(c.fd, buf, oob, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, errors.New("connection closed")
		}
		c.inBuf = append(c.inBuf, buf[:n]...)
		if oobn > 0 {
			scms, err := unix.ParseSocketControlMessage(oob[:oobn])
			if err != nil {
				return nil, fmt.Errorf("parse control message: %w", err)
			}
			for _, scm := range scms {
				fds, err := unix.ParseUnixRights(&scm)
				if err != nil {
					continue
				}
				c.pendingFds = append(c.pendingFds, fds...)
			}
		}
		if msgs := c.drain(); len(msgs) > 0 {
			return msgs, nil
		}
	}
}

func (c *conn) drain() []message {
	var msgs []message
	for len(c.inBuf) >= headerSize {
		hdr := safeish.Cast[*msgHeader](&c.inBuf[0])
		size := int(hdr.SizeOpcode >> 16)
		if size < headerSize {
			/* unrecoverable framing error; the dispatcher kills the client */
			msgs = append(msgs, message{object: 0, opcode: 0xffff})
			c.inBuf = nil
			return msgs
		}
		if len(c.inBuf) < size {
			break
		}
		m := message{
			object: hdr.Object,
			opcode: uint16(hdr.SizeOpcode & 0xffff),
			data:   append([]byte(nil), c.inBuf[headerSize:size]...),
		}
		c.inBuf = c.inBuf[size:]
		msgs = append(msgs, m)
	}
	return msgs
}

/* takeFd hands the oldest queued SCM_RIGHTS descriptor to a request that
 * declared an fd argument. */
func (c *conn) takeFd() (int, error) {
	if len(c.pendingFds) == 0 {
		return -1, errMalformed
	}
	fd := c.pendingFds[0]
	c.pendingFds = c.pendingFds[1:]
	return fd, nil
}

func (c *conn) write(object uint32, opcode uint16, args []byte, fds []int) error {
	size := headerSize + len(args)
	if size >= maxMessageSize {
		return fmt.Errorf("message too large: %d bytes", size)
	}
	buf := make([]byte, size)
	le.PutUint32(buf[0:], object)
	le.PutUint32(buf[4:], uint32(opcode)|uint32(size)<<16)
	copy(buf[headerSize:], args)

	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	for {
		_, err := unix.SendmsgN(c.fd, buf, oob, nil, 0)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

/* argument decoding */

type argReader struct {
	c    *conn
	data []byte
}

func (r *argReader) Uint32() (uint32, error) {
	if len(r.data) < 4 {
		return 0, errMalformed
	}
	v := le.Uint32(r.data)
	r.data = r.data[4:]
	return v, nil
}

func (r *argReader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

func (r *argReader) Fixed() (Fixed, error) {
	v, err := r.Uint32()
	return Fixed(v), err
}

func (r *argReader) String() (string, error) {
	n, err := r.Uint32()
	if err != nil {
		return "", err
	}
	padded := (int(n) + 3) &^ 3
	if n == 0 || len(r.data) < padded {
		return "", errMalformed
	}
	s := string(r.data[:n-1]) /* drop NUL */
	r.data = r.data[padded:]
	return s, nil
}

func (r *argReader) Array() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	padded := (int(n) + 3) &^ 3
	if len(r.data) < padded {
		return nil, errMalformed
	}
	a := append([]byte(nil), r.data[:n]...)
	r.data = r.data[padded:]
	return a, nil
}

func (r *argReader) Fd() (int, error) {
	return r.c.takeFd()
}

/* argument encoding */

type argWriter struct {
	data []byte
	fds  []int
}

func (w *argWriter) Uint32(v uint32) *argWriter {
	w.data = le.AppendUint32(w.data, v)
	return w
}

func (w *argWriter) Int32(v int32) *argWriter {
	return w.Uint32(uint32(v))
}

func (w *argWriter) Fixed(v Fixed) *argWriter {
	return w.Uint32(uint32(v))
}

func (w *argWriter) String(s string) *argWriter {
	w.Uint32(uint32(len(s) + 1))
	w.data = append(w.data, s...)
	w.data = append(w.data, 0)
	for len(w.data)%4 != 0 {
		w.data = append(w.data, 0)
	}
	return w
}

func (w *argWriter) Array(a []byte) *argWriter {
	w.Uint32(uint32(len(a)))
	w.data = append(w.data, a...)
	for len(w.data)%4 != 0 {
		w.data = append(w.data, 0)
	}
	return w
}

// Uint32Array encodes a wl_array of 32-bit words, as used by
// xdg_toplevel.configure states and wl_keyboard.enter keys.
func (w *argWriter) Uint32Array(vs []uint32) *argWriter {
	w.Uint32(uint32(len(vs) * 4))
	if len(vs) > 0 {
		w.data = append(w.data, safeish.SliceCast[[]byte](vs)...)
	}
	return w
}

func (w *argWriter) Fd(fd int) *argWriter {
	w.fds = append(w.fds, fd)
	return w
}

// Fixed is the wayland 24.8 signed fixed-point number.
type Fixed int32

func FixedFromFloat(f float64) Fixed { return Fixed(f * 256) }

func (f Fixed) Float64() float64 { return float64(f) / 256 }

func FixedFromInt(i int) Fixed { return Fixed(i << 8) }
