package render

import (
	"fmt"
	"image"

	"github.com/daaku/swizzle"

	"github.com/roscale/veshell/proto"
)

/* StageSHM copies a client's shm pixels into an RGBA image the
 * uploader (or a headless texture) can consume. wl_shm stores ARGB in
 * little-endian words, so rows arrive as BGRA bytes and get swizzled
 * in place after the stride-trimming copy. */
func StageSHM(b *proto.ShmBacking) (*image.RGBA, error) {
	if b.Width <= 0 || b.Height <= 0 {
		return nil, fmt.Errorf("shm buffer %dx%d", b.Width, b.Height)
	}
	src := b.Bytes()
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	rowLen := b.Width * 4
	for y := range b.Height {
		copy(img.Pix[y*img.Stride:y*img.Stride+rowLen], src[y*b.Stride:])
	}
	swizzle.BGRA(img.Pix)
	if b.Format == proto.ShmFormatXrgb8888 {
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 0xff
		}
	}
	return img, nil
}
