package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/triangle/frame"
)

// RenderPass clears a single swapchain-format color attachment and leaves it
// ready for presentation.
type RenderPass struct {
	ctx    *Context
	handle core1_0.RenderPass
	format core1_0.Format
}

var _ frame.RenderPass = (*RenderPass)(nil)

func (c *Context) createRenderPass(format core1_0.Format) (*RenderPass, error) {
	renderPass, _, err := c.deviceDriver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         format,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create render pass")
	}

	return &RenderPass{ctx: c, handle: renderPass, format: format}, nil
}

func (p *RenderPass) Release() {
	if !p.handle.Initialized() {
		return
	}

	handle, driver := p.handle, p.ctx.deviceDriver
	p.handle = core1_0.RenderPass{}
	p.ctx.tracker.retire(func() {
		driver.DestroyRenderPass(handle, nil)
	})
}
