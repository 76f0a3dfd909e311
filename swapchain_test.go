package veshell

import (
	"image"
	"testing"
)

type stubTexture image.Point

func (t stubTexture) Size() image.Point { return image.Point(t) }

func TestSwapChainBoundAndLatest(t *testing.T) {
	sc := NewSwapChain(2)
	if sc.Latest() != nil {
		t.Fatal("empty chain has a latest texture")
	}

	a := stubTexture{X: 1}
	b := stubTexture{X: 2}
	c := stubTexture{X: 3}

	sc.Commit(a)
	if sc.Latest() != a || sc.Len() != 1 {
		t.Fatalf("after one commit: latest=%v len=%d", sc.Latest(), sc.Len())
	}

	sc.Commit(b)
	sc.Commit(c) /* a falls off the front */
	if sc.Len() != 2 {
		t.Fatalf("chain length = %d", sc.Len())
	}
	if sc.Latest() != c {
		t.Fatalf("latest = %v, want the last committed", sc.Latest())
	}
}

func TestSwapChainMinimumDepth(t *testing.T) {
	sc := NewSwapChain(0)
	sc.Commit(stubTexture{X: 1})
	sc.Commit(stubTexture{X: 2})
	if sc.Len() != 1 || sc.Latest() != (stubTexture{X: 2}) {
		t.Fatalf("degenerate depth: len=%d latest=%v", sc.Len(), sc.Latest())
	}
}
