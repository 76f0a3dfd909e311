package proto

/* The authoritative set of globals this compositor serves. */

func (d *Display) registerGlobals() {
	d.addGlobal("wl_compositor", 6, func(c *Client, id, version uint32) object {
		return compositorObject{}
	})
	d.addGlobal("wl_subcompositor", 1, func(c *Client, id, version uint32) object {
		return subcompositorObject{}
	})
	d.addGlobal("wl_shm", 1, func(c *Client, id, version uint32) object {
		sendShmFormats(c, id)
		return shmObject{}
	})
	d.addGlobal("wl_seat", 7, func(c *Client, id, version uint32) object {
		/* capabilities, then name for v2+ */
		w := &argWriter{}
		w.Uint32(seatCapPointer | seatCapKeyboard)
		c.send(id, 0, w)
		if version >= 2 {
			nw := &argWriter{}
			nw.String(d.Seat().name)
			c.send(id, 1, nw)
		}
		return &seatObject{id: id}
	})
	d.addGlobal("xdg_wm_base", 3, func(c *Client, id, version uint32) object {
		return &wmBaseObject{id: id}
	})
	d.addGlobal("zwp_linux_dmabuf_v1", 3, func(c *Client, id, version uint32) object {
		sendDmabufFormats(c, id)
		return &dmabufObject{id: id}
	})
	d.addGlobal("wl_data_device_manager", 3, func(c *Client, id, version uint32) object {
		return &dataDeviceManagerObject{id: id}
	})
	d.addGlobal("zwp_primary_selection_device_manager_v1", 1, func(c *Client, id, version uint32) object {
		return &primaryManagerObject{id: id}
	})
	d.addGlobal("zwlr_data_control_manager_v1", 2, func(c *Client, id, version uint32) object {
		return &dataControlManagerObject{id: id}
	})
	d.addGlobal("xwayland_shell_v1", 1, func(c *Client, id, version uint32) object {
		return &xwaylandShellObject{id: id}
	})
	d.addGlobal("wl_output", 3, func(c *Client, id, version uint32) object {
		if d.outputResources == nil {
			d.outputResources = make(map[*Client][]uint32)
		}
		d.outputResources[c] = append(d.outputResources[c], id)
		sendOutput(c, id, d.outputMode())
		return &outputObject{id: id}
	})
}
