// Package window hosts the SDL2 window the triangle is presented to and the
// event loop that drives rendering.
package window

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"

	"github.com/vkngwrapper/triangle/frame"
)

const minimizedFlags = sdl.WINDOW_MINIMIZED | sdl.WINDOW_HIDDEN

// Window is a resizable SDL window with Vulkan support.
type Window struct {
	window          *sdl.Window
	redrawRequested bool
}

var _ frame.Window = (*Window)(nil)

// New initializes SDL video and opens the window.
func New(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "failed to initialize SDL")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "failed to create window")
	}

	return &Window{window: window}, nil
}

// VulkanDriver loads the Vulkan loader SDL found for this window.
func (w *Window) VulkanDriver() (core1_0.GlobalDriver, error) {
	driver, err := core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load Vulkan")
	}
	return driver, nil
}

func (w *Window) VulkanInstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *Window) CreateSurface(instance core1_0.Instance, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error) {
	return vkng_sdl2.CreateSurface(instance, surfaceExtension, w.window)
}

// InnerSize is the drawable size in pixels. It is zero while the window is
// minimized or hidden.
func (w *Window) InnerSize() frame.Extent {
	if w.window.GetFlags()&minimizedFlags != 0 {
		return frame.Extent{}
	}

	width, height := w.window.VulkanGetDrawableSize()
	return frame.Extent{Width: int(width), Height: int(height)}
}

func (w *Window) RequestRedraw() {
	w.redrawRequested = true
}

func (w *Window) takeRedrawRequest() bool {
	requested := w.redrawRequested
	w.redrawRequested = false
	return requested
}

func (w *Window) minimized() bool {
	return w.InnerSize().IsZero()
}

func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
