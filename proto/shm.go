package proto

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ShmFormat is the wl_shm pixel format code. Only the two mandatory
// formats are advertised.
type ShmFormat uint32

const (
	ShmFormatArgb8888 ShmFormat = 0
	ShmFormatXrgb8888 ShmFormat = 1
)

/* wl_shm */

type shmObject struct{}

const (
	shmErrInvalidFormat = 0
	shmErrInvalidStride = 1
	shmErrInvalidFd     = 2
)

func (shmObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* create_pool */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		fd, err := r.Fd()
		if err != nil {
			return err
		}
		size, err := r.Int32()
		if err != nil {
			return err
		}
		if size <= 0 {
			unix.Close(fd)
			return fmt.Errorf("shm pool size %d", size)
		}
		data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			unix.Close(fd)
			return fmt.Errorf("mmap shm pool: %w", err)
		}
		pool := &ShmPool{id: id, fd: fd, data: data}
		return c.register(id, pool)
	case 1: /* release */
		c.unregister(findID(c, shmObject{}))
	default:
		return fmt.Errorf("wl_shm: bad opcode %d", opcode)
	}
	return nil
}

func sendShmFormats(c *Client, id uint32) {
	for _, f := range []ShmFormat{ShmFormatArgb8888, ShmFormatXrgb8888} {
		w := &argWriter{}
		w.Uint32(uint32(f))
		c.send(id, 0, w)
	}
}

/* ShmPool is a client's mapped pixel arena. Buffers reference slices
 * of it; the mapping stays alive until the pool and all its buffers
 * are gone. */
type ShmPool struct {
	id       uint32
	fd       int
	data     []byte
	refs     int
	released bool
}

func (p *ShmPool) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* create_buffer */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		offset, err := r.Int32()
		if err != nil {
			return err
		}
		width, err := r.Int32()
		if err != nil {
			return err
		}
		height, err := r.Int32()
		if err != nil {
			return err
		}
		stride, err := r.Int32()
		if err != nil {
			return err
		}
		format, err := r.Uint32()
		if err != nil {
			return err
		}
		switch ShmFormat(format) {
		case ShmFormatArgb8888, ShmFormatXrgb8888:
		default:
			return fmt.Errorf("unsupported shm format %#x", format)
		}
		if stride < width*4 || offset < 0 || int(offset)+int(stride)*int(height) > len(p.data) {
			return fmt.Errorf("buffer %dx%d stride %d exceeds pool", width, height, stride)
		}
		buf := &Buffer{
			id:     id,
			client: c,
			Shm: &ShmBacking{
				pool:   p,
				Offset: int(offset),
				Width:  int(width),
				Height: int(height),
				Stride: int(stride),
				Format: ShmFormat(format),
			},
		}
		p.refs++
		return c.register(id, buf)
	case 1: /* destroy */
		c.unregister(p.id)
		p.released = true
		p.maybeUnmap()
	case 2: /* resize */
		size, err := r.Int32()
		if err != nil {
			return err
		}
		data, err := unix.Mremap(p.data, int(size), unix.MREMAP_MAYMOVE)
		if err != nil {
			return fmt.Errorf("mremap shm pool: %w", err)
		}
		p.data = data
	default:
		return fmt.Errorf("wl_shm_pool: bad opcode %d", opcode)
	}
	return nil
}

func (p *ShmPool) unref() {
	p.refs--
	p.maybeUnmap()
}

func (p *ShmPool) maybeUnmap() {
	if p.released && p.refs <= 0 && p.data != nil {
		unix.Munmap(p.data)
		unix.Close(p.fd)
		p.data = nil
	}
}

func (p *ShmPool) destroy(c *Client) {
	if p.data != nil {
		unix.Munmap(p.data)
		unix.Close(p.fd)
		p.data = nil
	}
}

/* ShmBacking describes one buffer inside a pool. */
type ShmBacking struct {
	pool   *ShmPool
	Offset int
	Width  int
	Height int
	Stride int
	Format ShmFormat
}

// Bytes returns the live pixel rows of the buffer. The slice aliases
// client memory and must not be held across loop iterations.
func (b *ShmBacking) Bytes() []byte {
	return b.pool.data[b.Offset : b.Offset+b.Stride*b.Height]
}

/* Buffer is a wl_buffer of either backing. Exactly one of Shm and
 * Dmabuf is set. */
type Buffer struct {
	id     uint32
	client *Client
	Shm    *ShmBacking
	Dmabuf *DmabufBacking
}

func (b *Buffer) dispatch(c *Client, opcode uint16, r *argReader) error {
	if opcode != 0 {
		return fmt.Errorf("wl_buffer: bad opcode %d", opcode)
	}
	c.unregister(b.id)
	b.destroy(c)
	return nil
}

func (b *Buffer) destroy(c *Client) {
	if b.Shm != nil && b.Shm.pool != nil {
		b.Shm.pool.unref()
		b.Shm.pool = nil
	}
	if b.Dmabuf != nil {
		b.Dmabuf.close()
	}
}

// Release tells the client it may reuse the backing storage.
func (b *Buffer) Release() {
	b.client.send(b.id, 0, nil)
}

// Size reports the buffer dimensions in buffer pixels.
func (b *Buffer) Size() (w, h int) {
	switch {
	case b.Shm != nil:
		return b.Shm.Width, b.Shm.Height
	case b.Dmabuf != nil:
		return b.Dmabuf.Width, b.Dmabuf.Height
	}
	return 0, 0
}
