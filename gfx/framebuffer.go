package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/triangle/frame"
)

// Framebuffer wraps one swapchain image, through a default 2D color view,
// for use with a render pass.
type Framebuffer struct {
	ctx        *Context
	handle     core1_0.Framebuffer
	view       core1_0.ImageView
	renderPass *RenderPass
	extent     frame.Extent
}

var _ frame.Framebuffer = (*Framebuffer)(nil)

func (c *Context) createFramebuffers(renderPass *RenderPass, swapchain *Swapchain) ([]*Framebuffer, error) {
	var framebuffers []*Framebuffer
	for index, image := range swapchain.images {
		framebuffer, err := c.createFramebuffer(renderPass, image, swapchain.format(), swapchain.Extent())
		if err != nil {
			for _, created := range framebuffers {
				created.Release()
			}
			return nil, errors.Wrapf(err, "swapchain image %d", index)
		}
		framebuffers = append(framebuffers, framebuffer)
	}
	return framebuffers, nil
}

func (c *Context) createFramebuffer(renderPass *RenderPass, image core1_0.Image, format core1_0.Format, extent frame.Extent) (*Framebuffer, error) {
	view, _, err := c.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create image view")
	}

	framebuffer, _, err := c.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass: renderPass.handle,
		Layers:     1,
		Attachments: []core1_0.ImageView{
			view,
		},
		Width:  extent.Width,
		Height: extent.Height,
	})
	if err != nil {
		c.deviceDriver.DestroyImageView(view, nil)
		return nil, errors.Wrap(err, "failed to create framebuffer")
	}

	return &Framebuffer{
		ctx:        c,
		handle:     framebuffer,
		view:       view,
		renderPass: renderPass,
		extent:     extent,
	}, nil
}

func (f *Framebuffer) Extent() frame.Extent {
	return f.extent
}

func (f *Framebuffer) Release() {
	if !f.handle.Initialized() {
		return
	}

	handle, view, driver := f.handle, f.view, f.ctx.deviceDriver
	f.handle = core1_0.Framebuffer{}
	f.view = core1_0.ImageView{}
	f.ctx.tracker.retire(func() {
		driver.DestroyFramebuffer(handle, nil)
		driver.DestroyImageView(view, nil)
	})
}
