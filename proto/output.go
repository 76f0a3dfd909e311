package proto

import "fmt"

/* wl_output: one logical output whose real geometry belongs to the UI
 * engine. Clients mostly want it for scale and for binding xdg
 * surfaces; mode updates arrive through SetOutputMode. */

type OutputMode struct {
	Width, Height int32
	RefreshMHz    int32
	Scale         int32
}

type outputObject struct{ id uint32 }

func (o *outputObject) dispatch(c *Client, opcode uint16, r *argReader) error {
	if opcode != 0 {
		return fmt.Errorf("wl_output: bad opcode %d", opcode)
	}
	c.unregister(o.id)
	removeResource(c.display.outputResources, c, o.id)
	return nil
}

func (d *Display) outputMode() OutputMode {
	if d.output == (OutputMode{}) {
		d.output = OutputMode{Width: 1280, Height: 720, RefreshMHz: 60000, Scale: 1}
	}
	return d.output
}

// SetOutputMode updates the advertised mode on all bound outputs.
func (d *Display) SetOutputMode(mode OutputMode) {
	d.output = mode
	for c, ids := range d.outputResources {
		for _, id := range ids {
			sendOutput(c, id, mode)
		}
	}
}

func sendOutput(c *Client, id uint32, mode OutputMode) {
	gw := &argWriter{}
	gw.Int32(0).Int32(0) /* position */
	gw.Int32(0).Int32(0) /* physical size unknown */
	gw.Int32(0)          /* subpixel unknown */
	gw.String("veshell").String("virtual")
	gw.Int32(0) /* transform normal */
	c.send(id, 0, gw)

	mw := &argWriter{}
	mw.Uint32(1 /* current */).Int32(mode.Width).Int32(mode.Height).Int32(mode.RefreshMHz)
	c.send(id, 1, mw)

	sw := &argWriter{}
	sw.Int32(mode.Scale)
	c.send(id, 3, sw)

	c.send(id, 2, nil) /* done */
}
