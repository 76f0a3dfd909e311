package veshell

import (
	"image"
	"log"

	"github.com/roscale/veshell/proto"
)

/* Commit is the per-commit pipeline (the CompositorHandler half the
 * proto layer calls on wl_surface.commit). Order matters:
 *
 *   1. direct subsurfaces first, depth-first — wayland commits on a
 *      parent implicitly flush child state, and the UI engine needs
 *      child textures current when the parent message lands;
 *   2. resolve the buffer assignment into a texture;
 *   3. texture-id bookkeeping with the per-surface ring bound;
 *   4. flush the renderer so the texture is safe to sample from the
 *      engine's context (done right after a successful import, ahead
 *      of the bookkeeping);
 *   5. frame-available signal;
 *   6-7. build and emit the commit_surface message. */
func (s *Server) Commit(surface *proto.Surface) {
	below, above := surface.DirectSubsurfaces()
	for _, child := range below {
		s.Commit(child)
	}
	for _, child := range above {
		s.Commit(child)
	}

	st := s.surfaceState(surface)
	surface.ApplyPending()

	assignment := surface.TakeBuffer()
	switch assignment.Kind {
	case proto.BufferNew:
		texture, err := s.renderer.ImportBuffer(assignment.Buffer)
		if err != nil {
			/* frame-loss policy: this commit maps nothing, the swap
			 * chain keeps the prior texture */
			log.Printf("buffer import failed for surface %d: %v", st.id, err)
			st.mapped = false
			break
		}
		s.renderer.Flush()
		assignment.Buffer.Release()

		size := texture.Size()
		sizeChanged := st.lastTextureSize == nil || *st.lastTextureSize != size
		st.lastTextureSize = &size

		var textureID int64
		if !sizeChanged {
			if entries := s.textureIDsPerSurfaceID[st.id]; len(entries) > 0 {
				textureID = entries[len(entries)-1].ID
			}
		}
		if textureID == 0 {
			textureID = s.newTextureID()
			entries := s.textureIDsPerSurfaceID[st.id]
			for len(entries) >= s.cfg.SwapChainDepth {
				evicted := entries[0]
				entries = entries[1:]
				delete(s.surfaceIDPerTextureID, evicted.ID)
				delete(s.swapchains, evicted.ID)
			}
			entries = append(entries, TextureEntry{ID: textureID, Size: size})
			s.textureIDsPerSurfaceID[st.id] = entries
			s.surfaceIDPerTextureID[textureID] = st.id
			if err := s.engine.RegisterExternalTexture(textureID); err != nil {
				log.Printf("register external texture %d: %v", textureID, err)
			}
		}

		sc, ok := s.swapchains[textureID]
		if !ok {
			sc = NewSwapChain(s.cfg.SwapChainDepth)
			s.swapchains[textureID] = sc
		}
		sc.Commit(texture)
		st.mapped = true

		if err := s.engine.MarkTextureFrameAvailable(textureID); err != nil {
			log.Printf("mark texture frame available %d: %v", textureID, err)
		}
	case proto.BufferRemoved:
		st.mapped = false
	case proto.BufferUnchanged:
		/* reuse the last texture, no upload */
	}

	msg := s.constructSurfaceMessage(surface)
	s.channel.InvokeMethod("commit_surface", msg.ToValue())

	surface.SendFrameDone(s.nowMs())
}

// SwapChainFor is the engine-facing accessor backing the
// external-texture callback: the latest committed entry is the handoff.
func (s *Server) SwapChainFor(textureID int64) *SwapChain {
	return s.swapchains[textureID]
}

func (s *Server) constructSurfaceMessage(surface *proto.Surface) SurfaceMessage {
	st := s.surfaceState(surface)
	cur := surface.Current()

	textureID := int64(-1)
	var bufferSize *image.Point
	if st.mapped {
		if entries := s.textureIDsPerSurfaceID[st.id]; len(entries) > 0 {
			last := entries[len(entries)-1]
			textureID = last.ID
			size := last.Size
			bufferSize = &size
		}
	}

	below, above := s.directSubsurfaces(surface)

	return SurfaceMessage{
		SurfaceID:        st.id,
		Role:             s.constructRoleMessage(surface, textureID),
		TextureID:        textureID,
		BufferDelta:      cur.BufferDelta,
		BufferSize:       bufferSize,
		Scale:            cur.BufferScale,
		InputRegion:      inputRegionRect(cur.InputRegion, bufferSize),
		SubsurfacesBelow: below,
		SubsurfacesAbove: above,
	}
}

/* inputRegionRect merges the additive rectangles into one bounding
 * rectangle. Subtractive rects and disjoint unions lose fidelity; the
 * full list would have to cross the channel to fix that. Unset regions
 * default to the whole buffer. */
func inputRegionRect(region *proto.Region, bufferSize *image.Point) image.Rectangle {
	if region == nil {
		if bufferSize == nil {
			return image.Rectangle{}
		}
		return image.Rect(0, 0, bufferSize.X, bufferSize.Y)
	}
	var acc image.Rectangle
	for _, r := range region.Rects {
		if r.Kind == proto.RegionAdd {
			acc = acc.Union(r.Rect)
		}
	}
	return acc
}

func (s *Server) constructRoleMessage(surface *proto.Surface, textureID int64) *SurfaceRoleMessage {
	switch surface.Role() {
	case proto.RoleToplevel, proto.RolePopup:
		return &SurfaceRoleMessage{XdgSurface: s.constructXdgSurfaceMessage(surface, textureID)}
	case proto.RoleSubsurface:
		return &SurfaceRoleMessage{Subsurface: s.constructSubsurfaceRoleMessage(surface)}
	case proto.RoleXwayland:
		return &SurfaceRoleMessage{X11Surface: true}
	}
	return nil
}

func (s *Server) constructXdgSurfaceMessage(surface *proto.Surface, textureID int64) *XdgSurfaceMessage {
	st := s.surfaceState(surface)

	msg := &XdgSurfaceMessage{Mapped: textureID != -1}
	switch surface.Role() {
	case proto.RoleToplevel:
		msg.Toplevel = s.constructToplevelRoleMessage(surface)
	case proto.RolePopup:
		msg.Popup = s.constructPopupRoleMessage(surface)
	default:
		panic("constructXdgSurfaceMessage called with role " + surface.Role().String())
	}

	geometry := xdgWindowGeometry(surface)
	if geometry.Empty() && st.lastTextureSize != nil {
		geometry = image.Rect(0, 0, st.lastTextureSize.X, st.lastTextureSize.Y)
	}
	msg.Geometry = geometry
	return msg
}

func xdgWindowGeometry(surface *proto.Surface) image.Rectangle {
	switch role := surface.RoleData().(type) {
	case *proto.Toplevel:
		return role.WindowGeometry()
	case *proto.Popup:
		return role.WindowGeometry()
	}
	return image.Rectangle{}
}

/* constructToplevelRoleMessage gates on the initial configure: the
 * first construction forces the shell policy states, sends the
 * configure and suppresses the role until the next commit. */
func (s *Server) constructToplevelRoleMessage(surface *proto.Surface) *ToplevelMessage {
	id := s.lookupID(surface)
	toplevel, ok := s.toplevels[id]
	if !ok {
		return nil
	}

	if s.cfg.InitialMaximize {
		toplevel.WithPendingState(func(state *proto.ToplevelState) {
			state.States.Set(proto.StateMaximized)
		})
	}

	if !toplevel.InitialConfigureSent() {
		toplevel.SendConfigure()
		return nil
	}

	msg := &ToplevelMessage{
		AppID: toplevel.AppID,
		Title: toplevel.Title,
	}
	if parent := toplevel.ParentSurface(); parent != nil {
		parentID := s.lookupID(parent)
		msg.ParentSurfaceID = &parentID
	}
	return msg
}

func (s *Server) constructSubsurfaceRoleMessage(surface *proto.Surface) *SubsurfaceMessage {
	sub, ok := surface.RoleData().(*proto.Subsurface)
	if !ok {
		panic("subsurface role without a subsurface record")
	}
	msg := &SubsurfaceMessage{Position: sub.Position}
	if parent := surface.Parent(); parent != nil {
		msg.Parent = s.lookupID(parent)
	}
	return msg
}

func (s *Server) constructPopupRoleMessage(surface *proto.Surface) *PopupMessage {
	id := s.lookupID(surface)
	popup, ok := s.popups[id]
	if !ok {
		return nil
	}

	if !popup.InitialConfigureSent() {
		popup.SendConfigure()
		return nil
	}

	return &PopupMessage{
		Parent:   s.lookupID(popup.Parent()),
		Position: popup.Position(),
	}
}

// DmabufImported hands the buffer to the renderer for a trial import.
func (s *Server) DmabufImported(buf *proto.Buffer) bool {
	if _, err := s.renderer.ImportBuffer(buf); err != nil {
		log.Printf("dmabuf import failed: %v", err)
		return false
	}
	return true
}
