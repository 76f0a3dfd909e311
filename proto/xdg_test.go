package proto

import (
	"image"
	"reflect"
	"testing"
)

func TestToplevelStates(t *testing.T) {
	var s ToplevelStates
	s.Set(StateActivated)
	s.Set(StateMaximized)
	if !s.Has(StateActivated) || !s.Has(StateMaximized) || s.Has(StateFullscreen) {
		t.Fatalf("states = %b", s)
	}
	/* wire values are the protocol enum: maximized=1, activated=4 */
	if got := s.values(); !reflect.DeepEqual(got, []uint32{1, 4}) {
		t.Fatalf("values = %v", got)
	}
	s.Unset(StateMaximized)
	if got := s.values(); !reflect.DeepEqual(got, []uint32{4}) {
		t.Fatalf("values after unset = %v", got)
	}
}

func TestPositionerGeometry(t *testing.T) {
	cases := []struct {
		name string
		p    Positioner
		want image.Rectangle
	}{
		{
			name: "point anchor, no gravity",
			p: Positioner{
				Size:       image.Pt(50, 40),
				AnchorRect: image.Rect(10, 20, 10, 20),
			},
			want: image.Rect(10, 20, 60, 60),
		},
		{
			name: "bottom-right anchor",
			p: Positioner{
				Size:       image.Pt(20, 10),
				AnchorRect: image.Rect(0, 0, 100, 50),
				Anchor:     anchorBottomRight,
			},
			want: image.Rect(100, 50, 120, 60),
		},
		{
			name: "top gravity extends upward",
			p: Positioner{
				Size:       image.Pt(20, 10),
				AnchorRect: image.Rect(40, 40, 40, 40),
				Gravity:    anchorTop,
			},
			want: image.Rect(40, 30, 60, 40),
		},
		{
			name: "offset applies after anchoring",
			p: Positioner{
				Size:       image.Pt(8, 8),
				AnchorRect: image.Rect(0, 0, 0, 0),
				Offset:     image.Pt(3, 4),
			},
			want: image.Rect(3, 4, 11, 12),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.Geometry(); got != tc.want {
				t.Fatalf("geometry = %v, want %v", got, tc.want)
			}
		})
	}
}
