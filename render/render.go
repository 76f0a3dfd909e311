/* Package render is the contract between the compositor core and
 * whatever GPU backend the embedding wires in. The core only imports
 * buffers and flushes; sampling happens on the UI engine's context. */
package render

import (
	"image"

	"github.com/roscale/veshell/proto"
)

// Texture is an imported client buffer.
type Texture interface {
	// Size in buffer pixels.
	Size() image.Point
}

type Renderer interface {
	// ImportBuffer turns a committed client buffer into a texture.
	ImportBuffer(buf *proto.Buffer) (Texture, error)

	/* Flush blocks until every import is visible to other GL contexts;
	 * the one permitted blocking call on the loop thread. */
	Flush()
}
