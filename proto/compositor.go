package proto

import (
	"fmt"
	"image"
	"slices"
)

// Role is the semantic function assigned to a surface, at most once.
type Role int

const (
	RoleNone Role = iota
	RoleToplevel
	RolePopup
	RoleSubsurface
	RoleXwayland
)

func (r Role) String() string {
	switch r {
	case RoleToplevel:
		return "xdg_toplevel"
	case RolePopup:
		return "xdg_popup"
	case RoleSubsurface:
		return "wl_subsurface"
	case RoleXwayland:
		return "xwayland_surface"
	}
	return "none"
}

// BufferKind resolves what the client asked for in the last commit.
type BufferKind int

const (
	BufferUnchanged BufferKind = iota
	BufferRemoved
	BufferNew
)

type BufferAssignment struct {
	Kind   BufferKind
	Buffer *Buffer
}

type RegionKind int

const (
	RegionAdd RegionKind = iota
	RegionSubtract
)

type RegionRect struct {
	Kind RegionKind
	Rect image.Rectangle
}

// Region is the rectangle soup built through wl_region requests.
type Region struct {
	Rects []RegionRect
}

/* SurfaceState is the double-buffered part of a surface. Buffer
 * assignment is consumed separately through TakeBuffer. */
type SurfaceState struct {
	buffer      BufferAssignment
	BufferDelta *image.Point
	BufferScale int32
	InputRegion *Region
}

/* Surface is a wl_surface resource. Child stacking, role and the
 * pending/current state pair live here; everything the compositor core
 * attaches goes through UserData. */
type Surface struct {
	client *Client
	id     uint32

	role     Role
	roleData any /* *Toplevel, *Popup, *Subsurface */

	pending, current SurfaceState

	/* direct children in stacking order relative to this surface */
	below, above []*Surface
	parent       *Surface

	frameCallbacks []uint32

	destroyed bool

	UserData any
}

func (s *Surface) Client() *Client     { return s.client }
func (s *Surface) Role() Role          { return s.role }
func (s *Surface) RoleData() any       { return s.roleData }
func (s *Surface) Parent() *Surface    { return s.parent }
func (s *Surface) Destroyed() bool     { return s.destroyed }
func (s *Surface) Current() *SurfaceState { return &s.current }

// DirectSubsurfaces returns the depth-1 children split by z-order,
// each side in stacking order.
func (s *Surface) DirectSubsurfaces() (below, above []*Surface) {
	return s.below, s.above
}

// SetRole tags the surface. A second role is a protocol error on the
// client, surfaced by the caller; here it only reports failure.
func (s *Surface) SetRole(role Role, data any) error {
	if s.role != RoleNone && s.role != role {
		return fmt.Errorf("surface already has role %s", s.role)
	}
	if s.roleData != nil {
		return fmt.Errorf("surface role %s already bound", s.role)
	}
	s.role = role
	s.roleData = data
	return nil
}

/* TakeBuffer consumes the pending buffer assignment. The next commit
 * without an attach reads as Unchanged. */
func (s *Surface) TakeBuffer() BufferAssignment {
	b := s.pending.buffer
	s.pending.buffer = BufferAssignment{}
	return b
}

// ApplyPending moves the double-buffered attributes to current.
func (s *Surface) ApplyPending() {
	if s.pending.BufferDelta != nil {
		s.current.BufferDelta = s.pending.BufferDelta
		s.pending.BufferDelta = nil
	}
	if s.pending.BufferScale != 0 {
		s.current.BufferScale = s.pending.BufferScale
	}
	s.current.InputRegion = s.pending.InputRegion
}

/* SendFrameDone fires and releases all queued frame callbacks. */
func (s *Surface) SendFrameDone(timeMs uint32) {
	for _, id := range s.frameCallbacks {
		w := &argWriter{}
		w.Uint32(timeMs)
		s.client.send(id, 0, w)
		dw := &argWriter{}
		dw.Uint32(id)
		s.client.send(1, 1, dw) /* wl_display.delete_id */
		s.client.unregister(id)
	}
	s.frameCallbacks = s.frameCallbacks[:0]
}

func (s *Surface) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* destroy */
		s.destroy(c)
		c.unregister(s.id)
	case 1: /* attach */
		bufID, err := r.Uint32()
		if err != nil {
			return err
		}
		x, err := r.Int32()
		if err != nil {
			return err
		}
		y, err := r.Int32()
		if err != nil {
			return err
		}
		if bufID == 0 {
			s.pending.buffer = BufferAssignment{Kind: BufferRemoved}
		} else {
			buf, ok := c.objects[bufID].(*Buffer)
			if !ok {
				return fmt.Errorf("attach: object %d is not a wl_buffer", bufID)
			}
			s.pending.buffer = BufferAssignment{Kind: BufferNew, Buffer: buf}
		}
		if x != 0 || y != 0 {
			s.pending.BufferDelta = &image.Point{X: int(x), Y: int(y)}
		}
	case 2, 9: /* damage, damage_buffer: tracked per-buffer by the renderer, not here */
		if _, err := r.Int32(); err != nil {
			return err
		}
	case 3: /* frame */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		if err := c.register(id, inertObject{}); err != nil {
			return err
		}
		s.frameCallbacks = append(s.frameCallbacks, id)
	case 4: /* set_opaque_region: unused, occlusion is the UI engine's business */
	case 5: /* set_input_region */
		regID, err := r.Uint32()
		if err != nil {
			return err
		}
		if regID == 0 {
			s.pending.InputRegion = nil
			break
		}
		reg, ok := c.objects[regID].(*regionObject)
		if !ok {
			return fmt.Errorf("set_input_region: object %d is not a wl_region", regID)
		}
		cp := Region{Rects: slices.Clone(reg.region.Rects)}
		s.pending.InputRegion = &cp
	case 6: /* commit */
		c.display.handlers.Compositor.Commit(s)
	case 7: /* set_buffer_transform: only normal supported */
		if _, err := r.Int32(); err != nil {
			return err
		}
	case 8: /* set_buffer_scale */
		scale, err := r.Int32()
		if err != nil {
			return err
		}
		if scale <= 0 {
			return fmt.Errorf("buffer scale %d out of range", scale)
		}
		s.pending.BufferScale = scale
	case 10: /* offset */
		x, err := r.Int32()
		if err != nil {
			return err
		}
		y, err := r.Int32()
		if err != nil {
			return err
		}
		s.pending.BufferDelta = &image.Point{X: int(x), Y: int(y)}
	default:
		return fmt.Errorf("wl_surface: bad opcode %d", opcode)
	}
	return nil
}

func (s *Surface) destroy(c *Client) {
	if s.destroyed {
		return
	}
	s.destroyed = true
	if s.parent != nil {
		s.parent.unlinkChild(s)
	}
	for _, child := range slices.Concat(s.below, s.above) {
		child.parent = nil
	}
	c.display.handlers.Compositor.SurfaceDestroyed(s)
}

func (s *Surface) unlinkChild(child *Surface) {
	s.below = slices.DeleteFunc(s.below, func(c *Surface) bool { return c == child })
	s.above = slices.DeleteFunc(s.above, func(c *Surface) bool { return c == child })
}

/* wl_compositor */

type compositorObject struct{}

func (compositorObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* create_surface */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		s := &Surface{client: c, id: id}
		s.current.BufferScale = 1
		if err := c.register(id, s); err != nil {
			return err
		}
		c.display.handlers.Compositor.NewSurface(s)
	case 1: /* create_region */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		return c.register(id, &regionObject{})
	default:
		return fmt.Errorf("wl_compositor: bad opcode %d", opcode)
	}
	return nil
}

/* wl_region */

type regionObject struct {
	region Region
}

func (reg *regionObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	readRect := func() (image.Rectangle, error) {
		x, err := r.Int32()
		if err != nil {
			return image.Rectangle{}, err
		}
		y, err := r.Int32()
		if err != nil {
			return image.Rectangle{}, err
		}
		w, err := r.Int32()
		if err != nil {
			return image.Rectangle{}, err
		}
		h, err := r.Int32()
		if err != nil {
			return image.Rectangle{}, err
		}
		return image.Rect(int(x), int(y), int(x+w), int(y+h)), nil
	}
	switch opcode {
	case 0: /* destroy */
		c.unregister(findID(c, reg))
	case 1: /* add */
		rect, err := readRect()
		if err != nil {
			return err
		}
		reg.region.Rects = append(reg.region.Rects, RegionRect{Kind: RegionAdd, Rect: rect})
	case 2: /* subtract */
		rect, err := readRect()
		if err != nil {
			return err
		}
		reg.region.Rects = append(reg.region.Rects, RegionRect{Kind: RegionSubtract, Rect: rect})
	default:
		return fmt.Errorf("wl_region: bad opcode %d", opcode)
	}
	return nil
}

// findID is the reverse object-table lookup for objects that don't
// carry their own id.
func findID(c *Client, obj object) uint32 {
	for id, o := range c.objects {
		if o == obj {
			return id
		}
	}
	return 0
}

/* wl_subcompositor */

type subcompositorObject struct{}

func (subcompositorObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* destroy */
		c.unregister(findID(c, subcompositorObject{}))
	case 1: /* get_subsurface */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		surfID, err := r.Uint32()
		if err != nil {
			return err
		}
		parentID, err := r.Uint32()
		if err != nil {
			return err
		}
		s, ok := c.objects[surfID].(*Surface)
		if !ok {
			return fmt.Errorf("get_subsurface: %d is not a wl_surface", surfID)
		}
		parent, ok := c.objects[parentID].(*Surface)
		if !ok {
			return fmt.Errorf("get_subsurface: %d is not a wl_surface", parentID)
		}
		sub := &Subsurface{surface: s, id: id}
		if err := s.SetRole(RoleSubsurface, sub); err != nil {
			return err
		}
		s.parent = parent
		parent.above = append(parent.above, s) /* new subsurfaces start on top */
		if err := c.register(id, sub); err != nil {
			return err
		}
		c.display.handlers.Compositor.NewSubsurface(s, parent)
	default:
		return fmt.Errorf("wl_subcompositor: bad opcode %d", opcode)
	}
	return nil
}

/* wl_subsurface */

type Subsurface struct {
	surface  *Surface
	id       uint32
	Position image.Point
}

func (sub *Subsurface) Surface() *Surface { return sub.surface }

func (sub *Subsurface) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* destroy */
		c.unregister(sub.id)
		if sub.surface.parent != nil {
			sub.surface.parent.unlinkChild(sub.surface)
			sub.surface.parent = nil
		}
	case 1: /* set_position */
		x, err := r.Int32()
		if err != nil {
			return err
		}
		y, err := r.Int32()
		if err != nil {
			return err
		}
		sub.Position = image.Point{X: int(x), Y: int(y)}
	case 2, 3: /* place_above, place_below */
		siblingID, err := r.Uint32()
		if err != nil {
			return err
		}
		sibling, ok := c.objects[siblingID].(*Surface)
		if !ok {
			return fmt.Errorf("place: %d is not a wl_surface", siblingID)
		}
		parent := sub.surface.parent
		if parent == nil {
			return nil
		}
		parent.restack(sub.surface, sibling, opcode == 2)
	case 4, 5: /* set_sync, set_desync: commits are always parent-driven here */
	default:
		return fmt.Errorf("wl_subsurface: bad opcode %d", opcode)
	}
	return nil
}

/* restack moves child next to sibling. The sibling may be the parent
 * itself, which switches the child between the below and above sides. */
func (p *Surface) restack(child, sibling *Surface, above bool) {
	p.unlinkChild(child)
	if sibling == p {
		if above {
			p.above = slices.Insert(p.above, 0, child)
		} else {
			p.below = append(p.below, child)
		}
		return
	}
	if i := slices.Index(p.below, sibling); i >= 0 {
		if above {
			i++
		}
		p.below = slices.Insert(p.below, i, child)
		return
	}
	if i := slices.Index(p.above, sibling); i >= 0 {
		if above {
			i++
		}
		p.above = slices.Insert(p.above, i, child)
		return
	}
	/* sibling is not a sibling; put the child back on top */
	p.above = append(p.above, child)
}
