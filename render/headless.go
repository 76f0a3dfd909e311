package render

import (
	"errors"
	"image"

	"github.com/roscale/veshell/proto"
)

/* Headless keeps imported pixels on the CPU. It exists for protocol
 * debugging and for the test suite; a real embedding substitutes the
 * GLES importer. Dmabuf imports are refused since there is no device
 * to attach them to. */
type Headless struct{}

var ErrNoDevice = errors.New("headless renderer has no dma-buf device")

type stagedTexture struct {
	img *image.RGBA
}

func (t *stagedTexture) Size() image.Point {
	return t.img.Rect.Size()
}

// Image exposes the staged pixels, mainly to tests.
func (t *stagedTexture) Image() *image.RGBA { return t.img }

func (Headless) ImportBuffer(buf *proto.Buffer) (Texture, error) {
	if buf.Shm == nil {
		return nil, ErrNoDevice
	}
	img, err := StageSHM(buf.Shm)
	if err != nil {
		return nil, err
	}
	return &stagedTexture{img: img}, nil
}

func (Headless) Flush() {}
