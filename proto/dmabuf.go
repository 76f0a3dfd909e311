package proto

import (
	"fmt"

	"golang.org/x/sys/unix"
)

/* zwp_linux_dmabuf_v1, version 3. The compositor advertises the same
 * two formats as wl_shm plus their implicit modifier; real format
 * negotiation belongs to the renderer behind the import callback. */

const dmabufModifierInvalid = 0x00ffffffffffffff

type DmabufPlane struct {
	Fd       int
	Offset   uint32
	Stride   uint32
	Modifier uint64
}

type DmabufBacking struct {
	Planes []DmabufPlane
	Width  int
	Height int
	Format uint32
	Flags  uint32
}

func (b *DmabufBacking) close() {
	for _, p := range b.Planes {
		if p.Fd >= 0 {
			unix.Close(p.Fd)
		}
	}
	b.Planes = nil
}

type dmabufObject struct{ id uint32 }

func (d *dmabufObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* destroy */
		c.unregister(d.id)
	case 1: /* create_params */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		return c.register(id, &dmabufParams{id: id})
	default:
		return fmt.Errorf("zwp_linux_dmabuf_v1: bad opcode %d", opcode)
	}
	return nil
}

func sendDmabufFormats(c *Client, id uint32) {
	for _, f := range []uint32{0x34325241 /* ARGB8888 */, 0x34325258 /* XRGB8888 */} {
		w := &argWriter{}
		w.Uint32(f)
		c.send(id, 0, w)
		mw := &argWriter{}
		mw.Uint32(f).Uint32(dmabufModifierInvalid >> 32).Uint32(dmabufModifierInvalid & 0xffffffff)
		c.send(id, 1, mw)
	}
}

type dmabufParams struct {
	id      uint32
	backing DmabufBacking
	used    bool
}

const (
	dmabufParamsErrAlreadyUsed = 0
	dmabufParamsErrPlaneIdx    = 1
	dmabufParamsErrPlaneSet    = 2
	dmabufParamsErrIncomplete  = 3
)

func (p *dmabufParams) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* destroy */
		c.unregister(p.id)
		if !p.used {
			p.backing.close()
		}
	case 1: /* add */
		fd, err := r.Fd()
		if err != nil {
			return err
		}
		idx, err := r.Uint32()
		if err != nil {
			return err
		}
		offset, err := r.Uint32()
		if err != nil {
			return err
		}
		stride, err := r.Uint32()
		if err != nil {
			return err
		}
		modHi, err := r.Uint32()
		if err != nil {
			return err
		}
		modLo, err := r.Uint32()
		if err != nil {
			return err
		}
		if int(idx) != len(p.backing.Planes) {
			unix.Close(fd)
			return fmt.Errorf("dmabuf plane index %d out of order", idx)
		}
		p.backing.Planes = append(p.backing.Planes, DmabufPlane{
			Fd:       fd,
			Offset:   offset,
			Stride:   stride,
			Modifier: uint64(modHi)<<32 | uint64(modLo),
		})
	case 2, 3: /* create, create_immed */
		immed := opcode == 3
		var bufID uint32
		var err error
		if immed {
			bufID, err = r.Uint32()
			if err != nil {
				return err
			}
		}
		width, err := r.Int32()
		if err != nil {
			return err
		}
		height, err := r.Int32()
		if err != nil {
			return err
		}
		format, err := r.Uint32()
		if err != nil {
			return err
		}
		flags, err := r.Uint32()
		if err != nil {
			return err
		}
		if p.used || len(p.backing.Planes) == 0 {
			return fmt.Errorf("dmabuf params incomplete or reused")
		}
		p.used = true
		p.backing.Width = int(width)
		p.backing.Height = int(height)
		p.backing.Format = format
		p.backing.Flags = flags

		buf := &Buffer{client: c, Dmabuf: &p.backing}
		ok := c.display.handlers.Dmabuf.DmabufImported(buf)
		if !ok {
			if immed {
				return fmt.Errorf("dmabuf import failed")
			}
			c.send(p.id, 1 /* failed */, nil)
			p.backing.close()
			return nil
		}
		if !immed {
			bufID = c.newServerID()
		}
		buf.id = bufID
		if err := c.register(bufID, buf); err != nil {
			return err
		}
		if !immed {
			w := &argWriter{}
			w.Uint32(bufID)
			c.send(p.id, 0 /* created */, w)
		}
	default:
		return fmt.Errorf("zwp_linux_buffer_params_v1: bad opcode %d", opcode)
	}
	return nil
}
