package veshell

import (
	"github.com/roscale/veshell/render"
)

/* SwapChain is the bounded texture ring for one texture id. The commit
 * path pushes, the UI engine's external-texture callback pulls the
 * newest entry at render time. Last-committed wins: when the renderer
 * is slower than the client, intermediate frames fall off the front,
 * so a render never waits for an upload. */
type SwapChain struct {
	depth    int
	textures []render.Texture
}

func NewSwapChain(depth int) *SwapChain {
	if depth < 1 {
		depth = 1
	}
	return &SwapChain{depth: depth}
}

// Commit pushes a freshly imported texture, evicting the oldest when
// the ring is full.
func (sc *SwapChain) Commit(t render.Texture) {
	for len(sc.textures) >= sc.depth {
		sc.textures = sc.textures[1:]
	}
	sc.textures = append(sc.textures, t)
}

// Latest is the newest committed texture, nil when empty.
func (sc *SwapChain) Latest() render.Texture {
	if len(sc.textures) == 0 {
		return nil
	}
	return sc.textures[len(sc.textures)-1]
}

func (sc *SwapChain) Len() int { return len(sc.textures) }
