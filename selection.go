package veshell

import (
	"log"

	"golang.org/x/sys/unix"

	"github.com/roscale/veshell/proto"
)

/* Selection & clipboard bridge: keyboard focus drives selection-device
 * focus, and selections shuttle both ways between the wayland side and
 * the embedded X11 window manager. */

/* focusChanged follows the keyboard: the newly focused surface's
 * client owns the selection devices. Losing focus also silences key
 * repeat, so no chain outlives the window it started in. */
func (s *Server) focusChanged(target *proto.Surface) {
	var client *proto.Client
	if target != nil {
		client = target.Client()
	}
	s.Display.SetSelectionFocus(client)
	if target == nil {
		s.keyRepeater.CancelAll()
	}
}

/* NewSelection mirrors wayland selection changes to the X11 clipboard
 * when the bridge is up. Selections the bridge itself published are
 * not echoed back. */
func (s *Server) NewSelection(target proto.SelectionTarget, source *proto.DataSource) {
	if source != nil && source.IsServerSource() {
		return
	}
	if s.x11WM == nil {
		return
	}
	var mimes []string
	if source != nil {
		mimes = source.MimeTypes()
	}
	if err := s.x11WM.NewSelection(target, mimes); err != nil {
		log.Printf("failed to set xwayland selection: %v", err)
	}
}

/* SendSelection asks the X11 side to write its selection into fd,
 * for wayland readers of an X11-owned selection. */
func (s *Server) SendSelection(target proto.SelectionTarget, mime string, fd int) {
	if s.x11WM == nil {
		unix.Close(fd)
		return
	}
	if err := s.x11WM.SendSelection(target, mime, fd); err != nil {
		log.Printf("failed to send selection from x11: %v", err)
		unix.Close(fd)
	}
}

/* SetX11Selection publishes an X11-owned selection to wayland clients;
 * the window manager calls this when an X client takes a selection. */
func (s *Server) SetX11Selection(target proto.SelectionTarget, mimes []string) {
	src := proto.NewServerSource(mimes, func(mime string, fd int) {
		s.SendSelection(target, mime, fd)
	})
	s.Display.SetSelection(target, src)
}
