package veshell

import (
	"image"
)

/* The message shapes crossing the UI-engine channel. Values are plain
 * codec maps so the dart side can pick them apart without a schema;
 * FromValue exists because the compositor round-trips them in tests
 * and tooling. */

type SurfaceMessage struct {
	SurfaceID        uint64
	Role             *SurfaceRoleMessage
	TextureID        int64
	BufferDelta      *image.Point
	BufferSize       *image.Point
	Scale            int32
	InputRegion      image.Rectangle
	SubsurfacesBelow []uint64
	SubsurfacesAbove []uint64
}

/* SurfaceRoleMessage is the tagged role variant: exactly one field is
 * set, or the X11 tag alone. */
type SurfaceRoleMessage struct {
	XdgSurface *XdgSurfaceMessage
	Subsurface *SubsurfaceMessage
	X11Surface bool
}

type XdgSurfaceMessage struct {
	Mapped   bool
	Geometry image.Rectangle
	Toplevel *ToplevelMessage
	Popup    *PopupMessage
}

type ToplevelMessage struct {
	ParentSurfaceID *uint64
	AppID           string
	Title           string
}

type PopupMessage struct {
	Parent   uint64
	Position image.Point
}

type SubsurfaceMessage struct {
	Position image.Point
	Parent   uint64
}

func pointValue(p image.Point) map[string]any {
	return map[string]any{"x": int64(p.X), "y": int64(p.Y)}
}

func rectValue(r image.Rectangle) map[string]any {
	return map[string]any{
		"x": int64(r.Min.X), "y": int64(r.Min.Y),
		"width": int64(r.Dx()), "height": int64(r.Dy()),
	}
}

func idsValue(ids []uint64) []any {
	vs := make([]any, len(ids))
	for i, id := range ids {
		vs[i] = int64(id)
	}
	return vs
}

func (m SurfaceMessage) ToValue() map[string]any {
	v := map[string]any{
		"surfaceId":        int64(m.SurfaceID),
		"textureId":        m.TextureID,
		"scale":            m.Scale,
		"inputRegion":      rectValue(m.InputRegion),
		"subsurfacesBelow": idsValue(m.SubsurfacesBelow),
		"subsurfacesAbove": idsValue(m.SubsurfacesAbove),
	}
	if m.BufferDelta != nil {
		v["bufferDelta"] = pointValue(*m.BufferDelta)
	}
	if m.BufferSize != nil {
		v["bufferSize"] = pointValue(*m.BufferSize)
	}
	if m.Role != nil {
		v["role"] = m.Role.toValue()
	}
	return v
}

func (r SurfaceRoleMessage) toValue() map[string]any {
	switch {
	case r.XdgSurface != nil:
		x := map[string]any{
			"kind":     "xdgSurface",
			"mapped":   r.XdgSurface.Mapped,
			"geometry": rectValue(r.XdgSurface.Geometry),
		}
		switch {
		case r.XdgSurface.Toplevel != nil:
			t := map[string]any{
				"kind":  "toplevel",
				"appId": r.XdgSurface.Toplevel.AppID,
				"title": r.XdgSurface.Toplevel.Title,
			}
			if r.XdgSurface.Toplevel.ParentSurfaceID != nil {
				t["parentSurfaceId"] = int64(*r.XdgSurface.Toplevel.ParentSurfaceID)
			}
			x["role"] = t
		case r.XdgSurface.Popup != nil:
			x["role"] = map[string]any{
				"kind":     "popup",
				"parent":   int64(r.XdgSurface.Popup.Parent),
				"position": pointValue(r.XdgSurface.Popup.Position),
			}
		}
		return x
	case r.Subsurface != nil:
		return map[string]any{
			"kind":     "subsurface",
			"position": pointValue(r.Subsurface.Position),
			"parent":   int64(r.Subsurface.Parent),
		}
	}
	return map[string]any{"kind": "x11Surface"}
}

/* decoding */

func pointFromValue(v any) image.Point {
	m, _ := v.(map[string]any)
	x, _ := m["x"].(int64)
	y, _ := m["y"].(int64)
	return image.Point{X: int(x), Y: int(y)}
}

func rectFromValue(v any) image.Rectangle {
	m, _ := v.(map[string]any)
	x, _ := m["x"].(int64)
	y, _ := m["y"].(int64)
	w, _ := m["width"].(int64)
	h, _ := m["height"].(int64)
	return image.Rect(int(x), int(y), int(x+w), int(y+h))
}

func idsFromValue(v any) []uint64 {
	vs, _ := v.([]any)
	if len(vs) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(vs))
	for _, e := range vs {
		id, _ := e.(int64)
		ids = append(ids, uint64(id))
	}
	return ids
}

func SurfaceMessageFromValue(v any) SurfaceMessage {
	m, _ := v.(map[string]any)
	var msg SurfaceMessage
	if id, ok := m["surfaceId"].(int64); ok {
		msg.SurfaceID = uint64(id)
	}
	msg.TextureID, _ = m["textureId"].(int64)
	msg.Scale, _ = m["scale"].(int32)
	msg.InputRegion = rectFromValue(m["inputRegion"])
	msg.SubsurfacesBelow = idsFromValue(m["subsurfacesBelow"])
	msg.SubsurfacesAbove = idsFromValue(m["subsurfacesAbove"])
	if d, ok := m["bufferDelta"]; ok {
		p := pointFromValue(d)
		msg.BufferDelta = &p
	}
	if d, ok := m["bufferSize"]; ok {
		p := pointFromValue(d)
		msg.BufferSize = &p
	}
	if r, ok := m["role"].(map[string]any); ok {
		msg.Role = roleFromValue(r)
	}
	return msg
}

func roleFromValue(m map[string]any) *SurfaceRoleMessage {
	kind, _ := m["kind"].(string)
	switch kind {
	case "xdgSurface":
		x := &XdgSurfaceMessage{
			Geometry: rectFromValue(m["geometry"]),
		}
		x.Mapped, _ = m["mapped"].(bool)
		if r, ok := m["role"].(map[string]any); ok {
			inner, _ := r["kind"].(string)
			switch inner {
			case "toplevel":
				t := &ToplevelMessage{}
				t.AppID, _ = r["appId"].(string)
				t.Title, _ = r["title"].(string)
				if p, ok := r["parentSurfaceId"].(int64); ok {
					id := uint64(p)
					t.ParentSurfaceID = &id
				}
				x.Toplevel = t
			case "popup":
				p := &PopupMessage{Position: pointFromValue(r["position"])}
				if id, ok := r["parent"].(int64); ok {
					p.Parent = uint64(id)
				}
				x.Popup = p
			}
		}
		return &SurfaceRoleMessage{XdgSurface: x}
	case "subsurface":
		sub := &SubsurfaceMessage{Position: pointFromValue(m["position"])}
		if id, ok := m["parent"].(int64); ok {
			sub.Parent = uint64(id)
		}
		return &SurfaceRoleMessage{Subsurface: sub}
	case "x11Surface":
		return &SurfaceRoleMessage{X11Surface: true}
	}
	return nil
}
