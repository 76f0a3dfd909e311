package veshell

import (
	"image"
	"reflect"
	"testing"

	"github.com/roscale/veshell/platform"
)

/* Round-trip: every field of a SurfaceMessage survives the codec. */
func TestSurfaceMessageRoundTrip(t *testing.T) {
	delta := image.Pt(3, -4)
	size := image.Pt(200, 100)
	parent := uint64(7)

	cases := []struct {
		name string
		msg  SurfaceMessage
	}{
		{
			name: "toplevel",
			msg: SurfaceMessage{
				SurfaceID:        3,
				TextureID:        5,
				BufferDelta:      &delta,
				BufferSize:       &size,
				Scale:            2,
				InputRegion:      image.Rect(0, 0, 200, 100),
				SubsurfacesBelow: []uint64{4},
				SubsurfacesAbove: []uint64{5, 6},
				Role: &SurfaceRoleMessage{
					XdgSurface: &XdgSurfaceMessage{
						Mapped:   true,
						Geometry: image.Rect(0, 0, 200, 100),
						Toplevel: &ToplevelMessage{
							ParentSurfaceID: &parent,
							AppID:           "org.example.term",
							Title:           "terminal",
						},
					},
				},
			},
		},
		{
			name: "popup",
			msg: SurfaceMessage{
				SurfaceID:   2,
				TextureID:   -1,
				Scale:       1,
				InputRegion: image.Rect(0, 0, 50, 40),
				Role: &SurfaceRoleMessage{
					XdgSurface: &XdgSurfaceMessage{
						Geometry: image.Rect(0, 0, 50, 40),
						Popup:    &PopupMessage{Parent: 1, Position: image.Pt(10, 20)},
					},
				},
			},
		},
		{
			name: "subsurface",
			msg: SurfaceMessage{
				SurfaceID:   9,
				TextureID:   4,
				Scale:       1,
				InputRegion: image.Rect(0, 0, 16, 16),
				Role: &SurfaceRoleMessage{
					Subsurface: &SubsurfaceMessage{Position: image.Pt(5, 6), Parent: 1},
				},
			},
		},
		{
			name: "x11",
			msg: SurfaceMessage{
				SurfaceID:   12,
				TextureID:   8,
				Scale:       1,
				InputRegion: image.Rect(0, 0, 640, 480),
				Role:        &SurfaceRoleMessage{X11Surface: true},
			},
		},
		{
			name: "roleless",
			msg: SurfaceMessage{
				SurfaceID: 1,
				TextureID: -1,
				Scale:     1,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := platform.EncodeValue(tc.msg.ToValue())
			if err != nil {
				t.Fatal(err)
			}
			decoded, err := platform.DecodeValue(encoded)
			if err != nil {
				t.Fatal(err)
			}
			got := SurfaceMessageFromValue(decoded)
			if !reflect.DeepEqual(got, tc.msg) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, tc.msg)
			}
		})
	}
}
