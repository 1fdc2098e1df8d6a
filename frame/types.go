// Package frame drives the per-frame rendering loop: it reacts to window
// events, keeps the swapchain and its framebuffers in step with the window,
// records one command buffer per redraw and chains each submission on the
// completion of the previous one.
package frame

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrOutOfDate is returned by acquire and flush operations when the swapchain
// no longer matches its surface and has to be recreated.
var ErrOutOfDate = errors.New("swapchain out of date")

// Extent is a width/height pair in pixels.
type Extent struct {
	Width  int
	Height int
}

// IsZero reports whether either dimension is zero, as happens when a window
// is minimized.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// Viewport maps normalized device coordinates onto the framebuffer.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// FullViewport covers extent entirely with a [0,1] depth range.
func FullViewport(extent Extent) Viewport {
	return Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

// ClearColor is the RGBA value the color attachment is cleared to.
type ClearColor [4]float32

// Event is a window event delivered to the loop.
type Event int

const (
	CloseRequested Event = iota
	Resized
	RedrawRequested
)

func (e Event) String() string {
	switch e {
	case CloseRequested:
		return "CloseRequested"
	case Resized:
		return "Resized"
	case RedrawRequested:
		return "RedrawRequested"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}
