package proto

import (
	"fmt"

	"golang.org/x/sys/unix"
)

/* One DataSource model backs wl_data_source, the primary-selection
 * source and the wlr data-control source; only the surrounding object
 * ids differ. */
type DataSource struct {
	id     uint32
	client *Client
	target SelectionTarget
	mimes  []string

	/* server-owned sources (X11 mirroring) deliver through sendFunc
	 * instead of a client resource */
	sendFunc func(mime string, fd int)

	cancelled bool
}

// NewServerSource creates a compositor-owned source, used to publish
// X11 selections to wayland clients.
func NewServerSource(mimes []string, send func(mime string, fd int)) *DataSource {
	return &DataSource{mimes: mimes, sendFunc: send}
}

func (s *DataSource) Client() *Client     { return s.client }
func (s *DataSource) MimeTypes() []string { return s.mimes }

// IsServerSource reports whether the source lives in the compositor
// rather than in a client.
func (s *DataSource) IsServerSource() bool { return s.client == nil }

/* Send asks the owner to write the selection for mime into fd. For
 * client sources the server's copy of the descriptor is closed once
 * passed on; server sources take ownership of it. */
func (s *DataSource) Send(mime string, fd int) {
	if s.sendFunc != nil {
		s.sendFunc(mime, fd)
		return
	}
	w := &argWriter{}
	w.String(mime).Fd(fd)
	s.client.send(s.id, sourceSendOpcode(s.target), w)
	unix.Close(fd)
}

func (s *DataSource) cancel() {
	if s.cancelled || s.client == nil {
		return
	}
	s.cancelled = true
	s.client.send(s.id, sourceCancelledOpcode(s.target), nil)
}

func sourceSendOpcode(t SelectionTarget) uint16 {
	if t == SelectionPrimary {
		return 0 /* zwp_primary_selection_source_v1.send */
	}
	return 1 /* wl_data_source.send */
}

func sourceCancelledOpcode(t SelectionTarget) uint16 {
	if t == SelectionPrimary {
		return 1
	}
	return 2
}

type selectionState struct {
	sources [2]*DataSource

	dataDevices    map[*Client][]uint32
	primaryDevices map[*Client][]uint32
	controlDevices map[*Client][]uint32
}

func (d *Display) selState() *selectionState {
	if d.selection == nil {
		d.selection = &selectionState{
			dataDevices:    make(map[*Client][]uint32),
			primaryDevices: make(map[*Client][]uint32),
			controlDevices: make(map[*Client][]uint32),
		}
	}
	return d.selection
}

// Selection returns the current source for a target, nil when unset.
func (d *Display) Selection(target SelectionTarget) *DataSource {
	return d.selState().sources[target]
}

/* SetSelection replaces the selection for target, cancelling the
 * previous source, notifying the handler and re-offering to data
 * control clients (clipboard managers see every change). */
func (d *Display) SetSelection(target SelectionTarget, src *DataSource) {
	st := d.selState()
	if prev := st.sources[target]; prev != nil && prev != src {
		prev.cancel()
	}
	st.sources[target] = src
	d.handlers.Selection.NewSelection(target, src)
	for c, ids := range st.controlDevices {
		for _, id := range ids {
			d.offerTo(c, id, target, src, true)
		}
	}
}

/* SetSelectionFocus delivers the current clipboard and primary offers
 * to the selection devices of the client owning the keyboard focus. No
 * focus is recorded: a nil client sends nothing, and the previously
 * focused client's devices are not notified. */
func (d *Display) SetSelectionFocus(c *Client) {
	if c == nil {
		return
	}
	st := d.selState()
	for _, id := range st.dataDevices[c] {
		d.offerTo(c, id, SelectionClipboard, st.sources[SelectionClipboard], false)
	}
	for _, id := range st.primaryDevices[c] {
		d.offerTo(c, id, SelectionPrimary, st.sources[SelectionPrimary], false)
	}
}

/* offerTo introduces src to one device resource: a new offer object
 * advertising the mime types, then a selection event referencing it. */
func (d *Display) offerTo(c *Client, deviceID uint32, target SelectionTarget, src *DataSource, control bool) {
	selOpcode := deviceSelectionOpcode(target, control)
	if src == nil {
		w := &argWriter{}
		w.Uint32(0)
		c.send(deviceID, selOpcode, w)
		return
	}
	offerID := c.newServerID()
	c.register(offerID, &dataOffer{
		id:     offerID,
		source: src,
		wl:     !control && target == SelectionClipboard,
	})
	nw := &argWriter{}
	nw.Uint32(offerID)
	c.send(deviceID, 0 /* data_offer */, nw)
	for _, mime := range src.mimes {
		mw := &argWriter{}
		mw.String(mime)
		c.send(offerID, 0 /* offer */, mw)
	}
	sw := &argWriter{}
	sw.Uint32(offerID)
	c.send(deviceID, selOpcode, sw)
}

func deviceSelectionOpcode(target SelectionTarget, control bool) uint16 {
	switch {
	case control && target == SelectionPrimary:
		return 3 /* zwlr_data_control_device_v1.primary_selection */
	case control:
		return 1 /* zwlr_data_control_device_v1.selection */
	case target == SelectionPrimary:
		return 1 /* zwp_primary_selection_device_v1.selection */
	}
	return 5 /* wl_data_device.selection */
}

/* dataOffer serves receive requests for every manager flavour; the
 * receive opcode is 1 for wl_data_offer and 0 for the other two, so
 * the wl flag selects which opcode table the offer accepts. */
type dataOffer struct {
	id     uint32
	source *DataSource
	wl     bool
}

func (o *dataOffer) dispatch(c *Client, opcode uint16, r *argReader) error {
	receive := func() error {
		mime, err := r.String()
		if err != nil {
			return err
		}
		fd, err := r.Fd()
		if err != nil {
			return err
		}
		o.source.Send(mime, fd)
		return nil
	}
	if o.wl {
		switch opcode {
		case 0: /* accept */
			if _, err := r.Uint32(); err != nil {
				return err
			}
			if len(r.data) >= 4 {
				r.String()
			}
			return nil
		case 1:
			return receive()
		case 2: /* destroy */
			c.unregister(o.id)
			return nil
		case 3, 4: /* finish, set_actions */
			return nil
		}
		return fmt.Errorf("wl_data_offer: bad opcode %d", opcode)
	}
	switch opcode {
	case 0:
		return receive()
	case 1: /* destroy */
		c.unregister(o.id)
		return nil
	}
	return fmt.Errorf("data offer: bad opcode %d", opcode)
}

/* wl_data_device_manager */

type dataDeviceManagerObject struct{ id uint32 }

func (m *dataDeviceManagerObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* create_data_source */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		return c.register(id, &dataSourceObject{src: &DataSource{id: id, client: c, target: SelectionClipboard}})
	case 1: /* get_data_device */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		if _, err := r.Uint32(); err != nil { /* seat */
			return err
		}
		if err := c.register(id, &dataDeviceObject{id: id}); err != nil {
			return err
		}
		st := c.display.selState()
		st.dataDevices[c] = append(st.dataDevices[c], id)
	default:
		return fmt.Errorf("wl_data_device_manager: bad opcode %d", opcode)
	}
	return nil
}

type dataSourceObject struct {
	src *DataSource
}

func (so *dataSourceObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* offer */
		mime, err := r.String()
		if err != nil {
			return err
		}
		so.src.mimes = append(so.src.mimes, mime)
	case 1: /* destroy */
		c.unregister(so.src.id)
		st := c.display.selState()
		if st.sources[so.src.target] == so.src {
			c.display.SetSelection(so.src.target, nil)
		}
	case 2: /* set_actions */
		if _, err := r.Uint32(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("data source: bad opcode %d", opcode)
	}
	return nil
}

type dataDeviceObject struct{ id uint32 }

func (dd *dataDeviceObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* start_drag: drag-and-drop is not routed */
		for len(r.data) >= 4 {
			if _, err := r.Uint32(); err != nil {
				return err
			}
		}
	case 1: /* set_selection */
		srcID, err := r.Uint32()
		if err != nil {
			return err
		}
		if _, err := r.Uint32(); err != nil { /* serial */
			return err
		}
		var src *DataSource
		if srcID != 0 {
			so, ok := c.objects[srcID].(*dataSourceObject)
			if !ok {
				return fmt.Errorf("set_selection: %d is not a data source", srcID)
			}
			src = so.src
		}
		c.display.SetSelection(SelectionClipboard, src)
	case 2: /* release */
		c.unregister(dd.id)
		removeResource(c.display.selState().dataDevices, c, dd.id)
	default:
		return fmt.Errorf("wl_data_device: bad opcode %d", opcode)
	}
	return nil
}

/* zwp_primary_selection_device_manager_v1 */

type primaryManagerObject struct{ id uint32 }

func (m *primaryManagerObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* create_source */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		return c.register(id, &dataSourceObject{src: &DataSource{id: id, client: c, target: SelectionPrimary}})
	case 1: /* get_device */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		if _, err := r.Uint32(); err != nil { /* seat */
			return err
		}
		if err := c.register(id, &primaryDeviceObject{id: id}); err != nil {
			return err
		}
		st := c.display.selState()
		st.primaryDevices[c] = append(st.primaryDevices[c], id)
	case 2: /* destroy */
		c.unregister(m.id)
	default:
		return fmt.Errorf("primary selection manager: bad opcode %d", opcode)
	}
	return nil
}

type primaryDeviceObject struct{ id uint32 }

func (pd *primaryDeviceObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* set_selection */
		srcID, err := r.Uint32()
		if err != nil {
			return err
		}
		if _, err := r.Uint32(); err != nil { /* serial */
			return err
		}
		var src *DataSource
		if srcID != 0 {
			so, ok := c.objects[srcID].(*dataSourceObject)
			if !ok {
				return fmt.Errorf("set_selection: %d is not a data source", srcID)
			}
			src = so.src
		}
		c.display.SetSelection(SelectionPrimary, src)
	case 1: /* destroy */
		c.unregister(pd.id)
		removeResource(c.display.selState().primaryDevices, c, pd.id)
	default:
		return fmt.Errorf("primary selection device: bad opcode %d", opcode)
	}
	return nil
}

/* zwlr_data_control_manager_v1 */

type dataControlManagerObject struct{ id uint32 }

func (m *dataControlManagerObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	switch opcode {
	case 0: /* create_data_source */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		return c.register(id, &dataSourceObject{src: &DataSource{id: id, client: c, target: SelectionClipboard}})
	case 1: /* get_data_device */
		id, err := r.Uint32()
		if err != nil {
			return err
		}
		if _, err := r.Uint32(); err != nil { /* seat */
			return err
		}
		if err := c.register(id, &dataControlDeviceObject{id: id}); err != nil {
			return err
		}
		st := c.display.selState()
		st.controlDevices[c] = append(st.controlDevices[c], id)
		/* data control clients learn the current state immediately */
		c.display.offerTo(c, id, SelectionClipboard, st.sources[SelectionClipboard], true)
		c.display.offerTo(c, id, SelectionPrimary, st.sources[SelectionPrimary], true)
	case 2: /* destroy */
		c.unregister(m.id)
	default:
		return fmt.Errorf("data control manager: bad opcode %d", opcode)
	}
	return nil
}

type dataControlDeviceObject struct{ id uint32 }

func (dc *dataControlDeviceObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	setSel := func(target SelectionTarget) error {
		srcID, err := r.Uint32()
		if err != nil {
			return err
		}
		var src *DataSource
		if srcID != 0 {
			so, ok := c.objects[srcID].(*dataSourceObject)
			if !ok {
				return fmt.Errorf("set_selection: %d is not a data source", srcID)
			}
			src = so.src
			src.target = target
		}
		c.display.SetSelection(target, src)
		return nil
	}
	switch opcode {
	case 0:
		return setSel(SelectionClipboard)
	case 1: /* destroy */
		c.unregister(dc.id)
		removeResource(c.display.selState().controlDevices, c, dc.id)
	case 2:
		return setSel(SelectionPrimary)
	default:
		return fmt.Errorf("data control device: bad opcode %d", opcode)
	}
	return nil
}
