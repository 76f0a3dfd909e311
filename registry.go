package veshell

import (
	"fmt"

	"github.com/roscale/veshell/proto"
)

/* Surface registry: the authoritative mapping between protocol
 * surfaces and the stable numeric ids the UI engine holds. The proto
 * layer calls in through the CompositorHandler half below; everything
 * else resolves ids through lookupID. */

// NewSurface registers a fresh wl_surface and announces it.
func (s *Server) NewSurface(surface *proto.Surface) {
	id := s.newSurfaceID()
	surface.UserData = &surfaceState{id: id}
	s.surfaces[id] = surface

	s.channel.InvokeMethod("new_surface", map[string]any{
		"surfaceId": int64(id),
	})
}

// NewSubsurface records the role link and announces the parent.
func (s *Server) NewSubsurface(surface, parent *proto.Surface) {
	id := s.lookupID(surface)
	parentID := s.lookupID(parent)
	s.subsurfaces[id] = surface

	s.channel.InvokeMethod("new_subsurface", map[string]any{
		"surfaceId": int64(id),
		"parent":    int64(parentID),
	})
}

// SurfaceDestroyed drops every record tied to the surface. The destroy
// message is the last the UI engine sees for this id.
func (s *Server) SurfaceDestroyed(surface *proto.Surface) {
	id := s.lookupID(surface)
	delete(s.surfaces, id)
	delete(s.subsurfaces, id)
	/* a disconnecting client tears surfaces down without the role
	 * destroy requests; the role records go with the surface */
	if toplevel, ok := s.toplevels[id]; ok {
		s.ToplevelDestroyed(toplevel)
	}
	if popup, ok := s.popups[id]; ok {
		s.PopupDestroyed(popup)
	}
	if xs, ok := s.x11SurfacePerWlSurface[surface]; ok {
		xs.Surface = nil
		delete(s.x11SurfacePerWlSurface, surface)
	}
	for _, entry := range s.textureIDsPerSurfaceID[id] {
		delete(s.surfaceIDPerTextureID, entry.ID)
		delete(s.swapchains, entry.ID)
	}
	delete(s.textureIDsPerSurfaceID, id)

	s.channel.InvokeMethod("destroy_surface", map[string]any{
		"surfaceId": int64(id),
	})
}

/* lookupID reads the attached state. A surface without one means a
 * protocol object slipped past NewSurface, which is a core bug, not a
 * client error. */
func (s *Server) lookupID(surface *proto.Surface) uint64 {
	st, ok := surface.UserData.(*surfaceState)
	if !ok {
		panic(fmt.Sprintf("surface %p was never registered", surface))
	}
	return st.id
}

func (s *Server) surfaceState(surface *proto.Surface) *surfaceState {
	st, ok := surface.UserData.(*surfaceState)
	if !ok {
		panic(fmt.Sprintf("surface %p was never registered", surface))
	}
	return st
}

/* directSubsurfaces is the depth-1 subsurface split, each side in
 * wayland stacking order. */
func (s *Server) directSubsurfaces(surface *proto.Surface) (below, above []uint64) {
	b, a := surface.DirectSubsurfaces()
	for _, child := range b {
		below = append(below, s.lookupID(child))
	}
	for _, child := range a {
		above = append(above, s.lookupID(child))
	}
	return below, above
}
