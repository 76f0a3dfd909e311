package proto

import "fmt"

/* xwayland_shell_v1: the private role Xwayland uses to tie its X11
 * windows to wl_surfaces. The serial matches the one the window
 * manager reads off the X11 connection. */

type xwaylandShellObject struct{ id uint32 }

func (x *xwaylandShellObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* destroy */
		c.unregister(x.id)
	case 1: /* get_xwayland_surface */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		surfID, err := r.Uint32()
		if err != nil {
			return err
		}
		s, ok := c.objects[surfID].(*Surface)
		if !ok {
			return fmt.Errorf("get_xwayland_surface: %d is not a wl_surface", surfID)
		}
		xs := &xwaylandSurfaceObject{id: id, surface: s}
		if err := s.SetRole(RoleXwayland, xs); err != nil {
			c.PostError(x.id, XdgErrRole, err.Error())
			return nil
		}
		return c.register(id, xs)
	default:
		return fmt.Errorf("xwayland_shell_v1: bad opcode %d", opcode)
	}
	return nil
}

type xwaylandSurfaceObject struct {
	id      uint32
	surface *Surface
	serial  uint64
}

func (xs *xwaylandSurfaceObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* set_serial */
		lo, err := r.Uint32()
		if err != nil {
			return err
		}
		hi, err := r.Uint32()
		if err != nil {
			return err
		}
		xs.serial = uint64(hi)<<32 | uint64(lo)
		c.display.handlers.Xwayland.XwaylandSurfaceSerial(xs.surface, xs.serial)
	case 1: /* destroy */
		c.unregister(xs.id)
		xs.surface.role = RoleNone
		xs.surface.roleData = nil
	default:
		return fmt.Errorf("xwayland_surface_v1: bad opcode %d", opcode)
	}
	return nil
}
