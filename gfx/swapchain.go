package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/triangle/frame"
)

const minSwapchainImages = 2

var compositeAlphaPreference = []khr_surface.CompositeAlphaFlags{
	khr_surface.CompositeAlphaOpaque,
	khr_surface.CompositeAlphaPreMultiplied,
	khr_surface.CompositeAlphaPostMultiplied,
	khr_surface.CompositeAlphaInherit,
}

// swapchainCreateInfo derives the creation parameters for a swapchain of the
// given extent from what the surface supports.
func swapchainCreateInfo(surface khr_surface.Surface, capabilities *khr_surface.SurfaceCapabilities, formats []khr_surface.SurfaceFormat, extent frame.Extent) (khr_swapchain.SwapchainCreateInfo, error) {
	if len(formats) == 0 {
		return khr_swapchain.SwapchainCreateInfo{}, errors.New("surface reports no formats")
	}

	compositeAlpha, found := khr_surface.CompositeAlphaFlags(0), false
	for _, alpha := range compositeAlphaPreference {
		if capabilities.SupportedCompositeAlpha&alpha != 0 {
			compositeAlpha, found = alpha, true
			break
		}
	}
	if !found {
		return khr_swapchain.SwapchainCreateInfo{}, errors.New("surface supports no composite alpha mode")
	}

	imageCount := capabilities.MinImageCount
	if imageCount < minSwapchainImages {
		imageCount = minSwapchainImages
	}

	return khr_swapchain.SwapchainCreateInfo{
		Surface: surface,

		MinImageCount:    imageCount,
		ImageFormat:      formats[0].Format,
		ImageColorSpace:  formats[0].ColorSpace,
		ImageExtent:      toExtent2D(extent),
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode: core1_0.SharingModeExclusive,

		PreTransform:   capabilities.CurrentTransform,
		CompositeAlpha: compositeAlpha,
		PresentMode:    khr_surface.PresentModeFIFO,
		Clipped:        true,
	}, nil
}

func toExtent2D(extent frame.Extent) core1_0.Extent2D {
	return core1_0.Extent2D{Width: extent.Width, Height: extent.Height}
}

// Swapchain is a swapchain on the context's window surface. Each image has
// its own render-finished semaphore: the present that waits on it is only
// known to be done once the same image is acquired again.
type Swapchain struct {
	ctx            *Context
	handle         khr_swapchain.Swapchain
	createInfo     khr_swapchain.SwapchainCreateInfo
	images         []core1_0.Image
	renderFinished []core1_0.Semaphore
	retired        bool
}

var _ frame.Swapchain = (*Swapchain)(nil)

func (c *Context) createSwapchain(extent frame.Extent) (*Swapchain, error) {
	capabilities, _, err := c.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(c.surface, c.physicalDevice)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query surface capabilities")
	}

	formats, _, err := c.surfaceExtension.GetPhysicalDeviceSurfaceFormats(c.surface, c.physicalDevice)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query surface formats")
	}

	createInfo, err := swapchainCreateInfo(c.surface, capabilities, formats, extent)
	if err != nil {
		return nil, err
	}
	return c.newSwapchain(createInfo)
}

func (c *Context) newSwapchain(createInfo khr_swapchain.SwapchainCreateInfo) (*Swapchain, error) {
	handle, _, err := c.swapchainExtension.CreateSwapchain(nil, createInfo)
	if err != nil {
		return nil, err
	}

	createInfo.OldSwapchain = khr_swapchain.Swapchain{}
	swapchain := &Swapchain{
		ctx:        c,
		handle:     handle,
		createInfo: createInfo,
	}

	swapchain.images, _, err = c.swapchainExtension.GetSwapchainImages(handle)
	if err != nil {
		swapchain.destroy()
		return nil, errors.Wrap(err, "failed to get swapchain images")
	}

	for range swapchain.images {
		semaphore, _, err := c.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			swapchain.destroy()
			return nil, errors.Wrap(err, "failed to create render finished semaphore")
		}
		swapchain.renderFinished = append(swapchain.renderFinished, semaphore)
	}

	return swapchain, nil
}

func (s *Swapchain) Extent() frame.Extent {
	return frame.Extent{
		Width:  s.createInfo.ImageExtent.Width,
		Height: s.createInfo.ImageExtent.Height,
	}
}

func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

func (s *Swapchain) format() core1_0.Format {
	return s.createInfo.ImageFormat
}

func (s *Swapchain) Recreate(extent frame.Extent) (frame.Swapchain, error) {
	createInfo := s.createInfo
	createInfo.ImageExtent = toExtent2D(extent)
	createInfo.OldSwapchain = s.handle

	swapchain, err := s.ctx.newSwapchain(createInfo)
	if err != nil {
		return nil, err
	}

	s.Release()
	return swapchain, nil
}

func (s *Swapchain) AcquireNextImage() (int, bool, frame.Future, error) {
	t := s.ctx.tracker

	acquired, err := t.semaphore()
	if err != nil {
		return 0, false, nil, errors.Wrap(err, "failed to create semaphore")
	}

	imageIndex, res, err := s.ctx.swapchainExtension.AcquireNextImage(s.handle, common.NoTimeout, &acquired, nil)
	err = checkOutOfDate(res, err, "failed to acquire swapchain image")
	if err != nil {
		t.recycleSemaphore(acquired)
		return 0, false, nil, err
	}

	// An image from this swapchain came back, so the presents queued on
	// the ones it replaced have been picked up.
	s.ctx.releaseRetiredSwapchains()

	future := &Future{
		ctx:            s.ctx,
		waitSemaphores: []core1_0.Semaphore{acquired},
		waitStages:     []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
	}
	return imageIndex, res == khr_swapchain.VKSuboptimal, future, nil
}

// renderFinishedSemaphore is the semaphore the present of imageIndex waits on.
func (s *Swapchain) renderFinishedSemaphore(imageIndex int) (core1_0.Semaphore, error) {
	if imageIndex < 0 || imageIndex >= len(s.renderFinished) {
		return core1_0.Semaphore{}, errors.Newf("image %d is not in a swapchain of %d images", imageIndex, len(s.renderFinished))
	}
	return s.renderFinished[imageIndex], nil
}

// Release retires the swapchain. It is destroyed after an image has been
// acquired from another swapchain and the GPU has finished every submission
// made by then, or when the device next goes idle.
func (s *Swapchain) Release() {
	if s.retired || !s.handle.Initialized() {
		return
	}

	s.retired = true
	s.ctx.retiredSwapchains = append(s.ctx.retiredSwapchains, s)
}

func (s *Swapchain) destroy() {
	for _, semaphore := range s.renderFinished {
		s.ctx.deviceDriver.DestroySemaphore(semaphore, nil)
	}
	s.renderFinished = nil

	if s.handle.Initialized() {
		s.ctx.swapchainExtension.DestroySwapchain(s.handle, nil)
		s.handle = khr_swapchain.Swapchain{}
	}
}
