package veshell

import (
	"github.com/roscale/veshell/proto"
)

/* ShellHandler half of the Server: the xdg toplevel and popup role
 * machines. Window management decisions come back from the UI engine;
 * the core only records, configures and forwards. */

func (s *Server) NewToplevel(toplevel *proto.Toplevel) {
	id := s.lookupID(toplevel.Surface())
	s.toplevels[id] = toplevel

	toplevel.WithPendingState(func(state *proto.ToplevelState) {
		state.States.Set(proto.StateActivated)
	})

	s.channel.InvokeMethod("new_toplevel", map[string]any{
		"surfaceId": int64(id),
	})
}

func (s *Server) ToplevelDestroyed(toplevel *proto.Toplevel) {
	id := s.lookupID(toplevel.Surface())
	delete(s.toplevels, id)

	s.channel.InvokeMethod("destroy_toplevel", map[string]any{
		"surfaceId": int64(id),
	})
}

func (s *Server) NewPopup(popup *proto.Popup) {
	id := s.lookupID(popup.Surface())
	s.popups[id] = popup

	/* the proto layer already rejected parentless popups */
	parent := s.lookupID(popup.Parent())
	position := popup.Position()

	s.channel.InvokeMethod("new_popup", map[string]any{
		"surfaceId": int64(id),
		"parent":    int64(parent),
		"position":  pointValue(position),
	})
}

func (s *Server) PopupDestroyed(popup *proto.Popup) {
	id := s.lookupID(popup.Surface())
	delete(s.popups, id)

	s.channel.InvokeMethod("destroy_popup", map[string]any{
		"surfaceId": int64(id),
	})
}

/* Interactive move/resize: no server-side grab — the UI engine owns
 * the gesture and calls back with the final placement. */

func (s *Server) Move(toplevel *proto.Toplevel, serial uint32) {
	s.channel.InvokeMethod("interactive_move", map[string]any{
		"surfaceId": int64(s.lookupID(toplevel.Surface())),
	})
}

func (s *Server) Resize(toplevel *proto.Toplevel, serial uint32, edge proto.ResizeEdge) {
	s.channel.InvokeMethod("interactive_resize", map[string]any{
		"surfaceId": int64(s.lookupID(toplevel.Surface())),
		"edge":      int64(edge),
	})
}

func (s *Server) Grab(popup *proto.Popup, serial uint32) {
	/* popup grabs are implicit: the engine routes pointer input to the
	 * topmost popup anyway */
}

func (s *Server) Reposition(popup *proto.Popup, token uint32) {
	popup.SendRepositioned(token)
}

func (s *Server) AppIDChanged(toplevel *proto.Toplevel) {
	s.channel.InvokeMethod("app_id_changed", map[string]any{
		"surfaceId": int64(s.lookupID(toplevel.Surface())),
		"appId":     toplevel.AppID,
	})
}

func (s *Server) TitleChanged(toplevel *proto.Toplevel) {
	s.channel.InvokeMethod("title_changed", map[string]any{
		"surfaceId": int64(s.lookupID(toplevel.Surface())),
		"title":     toplevel.Title,
	})
}
