package proto

import (
	"fmt"
	"image"
)

/* xdg_wm_base protocol error codes */
const (
	XdgErrRole                = 0
	XdgErrDefunctSurfaces     = 1
	XdgErrNotTheTopmostPopup  = 2
	XdgErrInvalidPopupParent  = 3
	XdgErrInvalidSurfaceState = 4
	XdgErrInvalidPositioner   = 5
)

// ToplevelStates is the xdg_toplevel state bitset. Bit positions match
// the protocol enum so values can serialize straight to the wire.
type ToplevelStates uint32

const (
	StateMaximized  ToplevelStates = 1 << 1
	StateFullscreen ToplevelStates = 1 << 2
	StateResizing   ToplevelStates = 1 << 3
	StateActivated  ToplevelStates = 1 << 4
)

func (s *ToplevelStates) Set(flag ToplevelStates)     { *s |= flag }
func (s *ToplevelStates) Unset(flag ToplevelStates)   { *s &^= flag }
func (s ToplevelStates) Has(flag ToplevelStates) bool { return s&flag != 0 }

func (s ToplevelStates) values() []uint32 {
	var vs []uint32
	for bit := uint32(1); bit <= 4; bit++ {
		if s&(1<<bit) != 0 {
			vs = append(vs, bit)
		}
	}
	return vs
}

// ResizeEdge is the xdg_toplevel resize edge enum.
type ResizeEdge uint32

/* xdg_wm_base */

type wmBaseObject struct {
	id uint32
}

func (wm *wmBaseObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* destroy */
		c.unregister(wm.id)
	case 1: /* create_positioner */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		return c.register(id, &Positioner{})
	case 2: /* get_xdg_surface */
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
			return fmt.Errorf("get_xdg_surface: %d is not a wl_surface", surfID)
		}
		return c.register(id, &XdgSurface{id: id, wmBase: wm, surface: s})
	case 3: /* pong */
		if _, err := r.Uint32(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("xdg_wm_base: bad opcode %d", opcode)
	}
	return nil
}

/* xdg_positioner */

type Positioner struct {
	Size       image.Point
	AnchorRect image.Rectangle
	Anchor     uint32
	Gravity    uint32
	Offset     image.Point
}

const (
	anchorTop         = 1
	anchorBottom      = 2
	anchorLeft        = 3
	anchorRight       = 4
	anchorTopLeft     = 5
	anchorBottomLeft  = 6
	anchorTopRight    = 7
	anchorBottomRight = 8
)

/* Geometry resolves the positioner the way clients expect the simple
 * cases to resolve: anchor point on the anchor rect, gravity picking
 * which way the box extends, plus the offset. Constraint adjustment is
 * the UI engine's problem. */
func (p *Positioner) Geometry() image.Rectangle {
	a := p.AnchorRect
	pt := image.Point{X: (a.Min.X + a.Max.X) / 2, Y: (a.Min.Y + a.Max.Y) / 2}
	switch p.Anchor {
	case anchorTop, anchorTopLeft, anchorTopRight:
		pt.Y = a.Min.Y
	case anchorBottom, anchorBottomLeft, anchorBottomRight:
		pt.Y = a.Max.Y
	}
	switch p.Anchor {
	case anchorLeft, anchorTopLeft, anchorBottomLeft:
		pt.X = a.Min.X
	case anchorRight, anchorTopRight, anchorBottomRight:
		pt.X = a.Max.X
	}
	loc := pt.Add(p.Offset)
	switch p.Gravity {
	case anchorTop, anchorTopLeft, anchorTopRight:
		loc.Y -= p.Size.Y
	}
	switch p.Gravity {
	case anchorLeft, anchorTopLeft, anchorBottomLeft:
		loc.X -= p.Size.X
	}
	return image.Rectangle{Min: loc, Max: loc.Add(p.Size)}
}

func (p *Positioner) dispatch(c *Client, opcode uint16, r *argReader) error {
	ints := func(n int) ([]int32, error) {
		vs := make([]int32, n)
		for i := range vs {
			v, err := r.Int32()
			if err != nil {
				return nil, err
			}
			vs[i] = v
		}
		return vs, nil
	}
	switch opcode {
	case 0: /* destroy */
		c.unregister(findID(c, p))
	case 1: /* set_size */
		vs, err := ints(2)
		if err != nil {
			return err
		}
		if vs[0] <= 0 || vs[1] <= 0 {
			return fmt.Errorf("positioner size %dx%d", vs[0], vs[1])
		}
		p.Size = image.Point{X: int(vs[0]), Y: int(vs[1])}
	case 2: /* set_anchor_rect */
		vs, err := ints(4)
		if err != nil {
			return err
		}
		p.AnchorRect = image.Rect(int(vs[0]), int(vs[1]), int(vs[0]+vs[2]), int(vs[1]+vs[3]))
	case 3: /* set_anchor */
		v, err := r.Uint32()
		if err != nil {
			return err
		}
		p.Anchor = v
	case 4: /* set_gravity */
		v, err := r.Uint32()
		if err != nil {
			return err
		}
		p.Gravity = v
	case 5: /* set_constraint_adjustment */
		if _, err := r.Uint32(); err != nil {
			return err
		}
	case 6: /* set_offset */
		vs, err := ints(2)
		if err != nil {
			return err
		}
		p.Offset = image.Point{X: int(vs[0]), Y: int(vs[1])}
	case 7, 8, 9: /* set_reactive, set_parent_size, set_parent_configure */
		for len(r.data) >= 4 {
			if _, err := r.Int32(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("xdg_positioner: bad opcode %d", opcode)
	}
	return nil
}

/* xdg_surface */

type XdgSurface struct {
	id      uint32
	wmBase  *wmBaseObject
	surface *Surface

	// WindowGeometry is the client-declared window extent; zero means
	// unset, in which case the buffer extent applies.
	WindowGeometry image.Rectangle

	lastConfigure uint32
	ackedSerial   uint32
}

func (x *XdgSurface) sendConfigure(c *Client) uint32 {
	serial := c.display.NextSerial()
	x.lastConfigure = serial
	w := &argWriter{}
	w.Uint32(serial)
	c.send(x.id, 0, w)
	return serial
}

func (x *XdgSurface) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* destroy */
		c.unregister(x.id)
	case 1: /* get_toplevel */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		t := &Toplevel{id: id, xdg: x}
		if err := x.surface.SetRole(RoleToplevel, t); err != nil {
			c.PostError(x.wmBase.id, XdgErrRole, err.Error())
			return nil
		}
		if err := c.register(id, t); err != nil {
			return err
		}
		c.display.handlers.Shell.NewToplevel(t)
	case 2: /* get_popup */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		parentID, err := r.Uint32()
		if err != nil {
			return err
		}
		posID, err := r.Uint32()
		if err != nil {
			return err
		}
		if parentID == 0 {
			/* the protocol allows parentless popups; this compositor
			 * does not (see xdg_popup.parent handling in the core) */
			c.PostError(x.wmBase.id, XdgErrInvalidPopupParent, "popups require a parent surface")
			return nil
		}
		parentXdg, ok := c.objects[parentID].(*XdgSurface)
		if !ok {
			return fmt.Errorf("get_popup: %d is not an xdg_surface", parentID)
		}
		pos, ok := c.objects[posID].(*Positioner)
		if !ok {
			return fmt.Errorf("get_popup: %d is not an xdg_positioner", posID)
		}
		if pos.Size == (image.Point{}) {
			c.PostError(x.wmBase.id, XdgErrInvalidPositioner, "positioner is incomplete")
			return nil
		}
		p := &Popup{id: id, xdg: x, parent: parentXdg.surface, positioner: *pos}
		p.pending.Geometry = pos.Geometry()
		if err := x.surface.SetRole(RolePopup, p); err != nil {
			c.PostError(x.wmBase.id, XdgErrRole, err.Error())
			return nil
		}
		if err := c.register(id, p); err != nil {
			return err
		}
		c.display.handlers.Shell.NewPopup(p)
	case 3: /* set_window_geometry */
		vals := make([]int32, 4)
		for i := range vals {
			v, err := r.Int32()
			if err != nil {
				return err
			}
			vals[i] = v
		}
		x.WindowGeometry = image.Rect(int(vals[0]), int(vals[1]), int(vals[0]+vals[2]), int(vals[1]+vals[3]))
	case 4: /* ack_configure */
		serial, err := r.Uint32()
		if err != nil {
			return err
		}
		x.ackedSerial = serial
	default:
		return fmt.Errorf("xdg_surface: bad opcode %d", opcode)
	}
	return nil
}

/* xdg_toplevel */

type ToplevelState struct {
	Size   image.Point
	States ToplevelStates
}

type Toplevel struct {
	id  uint32
	xdg *XdgSurface

	pending, current ToplevelState

	AppID  string
	Title  string
	parent *Surface

	initialConfigureSent bool
}

func (t *Toplevel) Surface() *Surface { return t.xdg.surface }

// ParentSurface is the wl_surface of the parent toplevel, if any.
func (t *Toplevel) ParentSurface() *Surface { return t.parent }

// WindowGeometry is the client-declared extent, zero when unset.
func (t *Toplevel) WindowGeometry() image.Rectangle { return t.xdg.WindowGeometry }

func (t *Toplevel) InitialConfigureSent() bool { return t.initialConfigureSent }

func (t *Toplevel) WithPendingState(f func(*ToplevelState)) {
	f(&t.pending)
}

/* SendConfigure flushes the pending state to the client and records
 * that the initial configure round has started. */
func (t *Toplevel) SendConfigure() {
	c := t.xdg.surface.client
	w := &argWriter{}
	w.Int32(int32(t.pending.Size.X)).Int32(int32(t.pending.Size.Y))
	w.Uint32Array(t.pending.States.values())
	c.send(t.id, 0, w)
	t.xdg.sendConfigure(c)
	t.current = t.pending
	t.initialConfigureSent = true
}

// SendClose asks the client to tear the window down.
func (t *Toplevel) SendClose() {
	t.xdg.surface.client.send(t.id, 1, nil)
}

func (t *Toplevel) dispatch(c *Client, opcode uint16, r *argReader) error {
	h := c.display.handlers.Shell
	switch opcode {
	case 0: /* destroy */
		c.unregister(t.id)
		t.xdg.surface.role = RoleNone
		t.xdg.surface.roleData = nil
		h.ToplevelDestroyed(t)
	case 1: /* set_parent */
		parentID, err := r.Uint32()
		if err != nil {
			return err
		}
		t.parent = nil
		if parentID != 0 {
			if pt, ok := c.objects[parentID].(*Toplevel); ok {
				t.parent = pt.xdg.surface
			}
		}
	case 2: /* set_title */
		title, err := r.String()
		if err != nil {
			return err
		}
		t.Title = title
		h.TitleChanged(t)
	case 3: /* set_app_id */
		appID, err := r.String()
		if err != nil {
			return err
		}
		t.AppID = appID
		h.AppIDChanged(t)
	case 4: /* show_window_menu */
		for range 4 {
			if _, err := r.Uint32(); err != nil {
				return err
			}
		}
	case 5: /* move */
		if _, err := r.Uint32(); err != nil { /* seat */
			return err
		}
		serial, err := r.Uint32()
		if err != nil {
			return err
		}
		h.Move(t, serial)
	case 6: /* resize */
		if _, err := r.Uint32(); err != nil { /* seat */
			return err
		}
		serial, err := r.Uint32()
		if err != nil {
			return err
		}
		edge, err := r.Uint32()
		if err != nil {
			return err
		}
		h.Resize(t, serial, ResizeEdge(edge))
	case 7, 8: /* set_max_size, set_min_size */
		for range 2 {
			if _, err := r.Int32(); err != nil {
				return err
			}
		}
	case 9: /* set_maximized */
		t.pending.States.Set(StateMaximized)
		t.SendConfigure()
	case 10: /* unset_maximized */
		t.pending.States.Unset(StateMaximized)
		t.SendConfigure()
	case 11: /* set_fullscreen */
		if len(r.data) >= 4 {
			if _, err := r.Uint32(); err != nil {
				return err
			}
		}
		t.pending.States.Set(StateFullscreen)
		t.SendConfigure()
	case 12: /* unset_fullscreen */
		t.pending.States.Unset(StateFullscreen)
		t.SendConfigure()
	case 13: /* set_minimized */
	default:
		return fmt.Errorf("xdg_toplevel: bad opcode %d", opcode)
	}
	return nil
}

/* xdg_popup */

type PopupState struct {
	Geometry image.Rectangle
}

type Popup struct {
	id         uint32
	xdg        *XdgSurface
	parent     *Surface
	positioner Positioner

	pending, current PopupState

	initialConfigureSent bool
}

func (p *Popup) Surface() *Surface { return p.xdg.surface }
func (p *Popup) Parent() *Surface  { return p.parent }

// Position is the popup location relative to the parent, in logical
// coordinates.
func (p *Popup) Position() image.Point { return p.pending.Geometry.Min }

func (p *Popup) InitialConfigureSent() bool { return p.initialConfigureSent }

// WindowGeometry is the client-declared extent, zero when unset.
func (p *Popup) WindowGeometry() image.Rectangle { return p.xdg.WindowGeometry }

func (p *Popup) WithPendingState(f func(*PopupState)) {
	f(&p.pending)
}

func (p *Popup) SendConfigure() {
	c := p.xdg.surface.client
	g := p.pending.Geometry
	w := &argWriter{}
	w.Int32(int32(g.Min.X)).Int32(int32(g.Min.Y))
	w.Int32(int32(g.Dx())).Int32(int32(g.Dy()))
	c.send(p.id, 0, w)
	p.xdg.sendConfigure(c)
	p.current = p.pending
	p.initialConfigureSent = true
}

// SendRepositioned acknowledges an xdg_popup.reposition round.
func (p *Popup) SendRepositioned(token uint32) {
	w := &argWriter{}
	w.Uint32(token)
	p.xdg.surface.client.send(p.id, 2, w)
}

func (p *Popup) SendPopupDone() {
	p.xdg.surface.client.send(p.id, 1, nil)
}

func (p *Popup) dispatch(c *Client, opcode uint16, r *argReader) error {
	h := c.display.handlers.Shell
	switch opcode {
	case 0: /* destroy */
		c.unregister(p.id)
		p.xdg.surface.role = RoleNone
		p.xdg.surface.roleData = nil
		h.PopupDestroyed(p)
	case 1: /* grab */
		if _, err := r.Uint32(); err != nil { /* seat */
			return err
		}
		serial, err := r.Uint32()
		if err != nil {
			return err
		}
		h.Grab(p, serial)
	case 2: /* reposition */
		posID, err := r.Uint32()
		if err != nil {
			return err
		}
		token, err := r.Uint32()
		if err != nil {
			return err
		}
		if pos, ok := c.objects[posID].(*Positioner); ok {
			p.positioner = *pos
			p.pending.Geometry = pos.Geometry()
		}
		h.Reposition(p, token)
	default:
		return fmt.Errorf("xdg_popup: bad opcode %d", opcode)
	}
	return nil
}
