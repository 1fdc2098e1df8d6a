package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/triangle/frame"
)

// CommandBuffer is a recorded primary command buffer. Ownership moves to the
// submission that executes it.
type CommandBuffer struct {
	ctx    *Context
	handle core1_0.CommandBuffer
}

var _ frame.CommandBuffer = (*CommandBuffer)(nil)

func (b *CommandBuffer) take() core1_0.CommandBuffer {
	handle := b.handle
	b.handle = core1_0.CommandBuffer{}
	return handle
}

// Release frees a buffer that was never submitted.
func (b *CommandBuffer) Release() {
	if b.handle.Initialized() {
		b.ctx.deviceDriver.FreeCommandBuffers(b.take())
	}
}

// CommandBuilder records into a freshly allocated one-time-submit buffer.
// Recording calls that can't report an error directly keep the first one for
// End.
type CommandBuilder struct {
	ctx    *Context
	buffer core1_0.CommandBuffer
	err    error
}

var _ frame.CommandBuilder = (*CommandBuilder)(nil)

func (c *Context) beginCommands() (*CommandBuilder, error) {
	buffers, _, err := c.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        c.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate command buffer")
	}

	_, err = c.deviceDriver.BeginCommandBuffer(buffers[0], core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		c.deviceDriver.FreeCommandBuffers(buffers...)
		return nil, err
	}

	return &CommandBuilder{ctx: c, buffer: buffers[0]}, nil
}

func (b *CommandBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *CommandBuilder) BeginRenderPass(fb frame.Framebuffer, clear frame.ClearColor) error {
	framebuffer, ok := fb.(*Framebuffer)
	if !ok {
		err := errors.Wrapf(ErrForeignObject, "framebuffer %T", fb)
		b.fail(err)
		return err
	}

	err := b.ctx.deviceDriver.CmdBeginRenderPass(b.buffer, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  framebuffer.renderPass.handle,
			Framebuffer: framebuffer.handle,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: toExtent2D(framebuffer.extent),
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat(clear),
			},
		})
	if err != nil {
		b.fail(err)
	}
	return err
}

func (b *CommandBuilder) SetViewport(viewports ...frame.Viewport) {
	converted := make([]core1_0.Viewport, 0, len(viewports))
	for _, viewport := range viewports {
		converted = append(converted, core1_0.Viewport{
			X:        viewport.X,
			Y:        viewport.Y,
			Width:    viewport.Width,
			Height:   viewport.Height,
			MinDepth: viewport.MinDepth,
			MaxDepth: viewport.MaxDepth,
		})
	}
	b.ctx.deviceDriver.CmdSetViewport(b.buffer, converted...)
}

func (b *CommandBuilder) BindPipeline(p frame.Pipeline) {
	pipeline, ok := p.(*Pipeline)
	if !ok {
		b.fail(errors.Wrapf(ErrForeignObject, "pipeline %T", p))
		return
	}
	b.ctx.deviceDriver.CmdBindPipeline(b.buffer, core1_0.PipelineBindPointGraphics, pipeline.handle)
}

func (b *CommandBuilder) BindVertexBuffers(firstBinding int, buffers ...frame.VertexBuffer) {
	handles := make([]core1_0.Buffer, 0, len(buffers))
	offsets := make([]int, 0, len(buffers))
	for _, buffer := range buffers {
		vertexBuffer, ok := buffer.(*VertexBuffer)
		if !ok {
			b.fail(errors.Wrapf(ErrForeignObject, "vertex buffer %T", buffer))
			return
		}
		handles = append(handles, vertexBuffer.buffer)
		offsets = append(offsets, 0)
	}
	b.ctx.deviceDriver.CmdBindVertexBuffers(b.buffer, firstBinding, handles, offsets)
}

func (b *CommandBuilder) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	b.ctx.deviceDriver.CmdDraw(b.buffer, vertexCount, instanceCount, uint32(firstVertex), uint32(firstInstance))
}

func (b *CommandBuilder) EndRenderPass() {
	b.ctx.deviceDriver.CmdEndRenderPass(b.buffer)
}

func (b *CommandBuilder) End() (frame.CommandBuffer, error) {
	if b.err != nil {
		b.ctx.deviceDriver.FreeCommandBuffers(b.buffer)
		return nil, b.err
	}

	_, err := b.ctx.deviceDriver.EndCommandBuffer(b.buffer)
	if err != nil {
		b.ctx.deviceDriver.FreeCommandBuffers(b.buffer)
		return nil, err
	}

	return &CommandBuffer{ctx: b.ctx, handle: b.buffer}, nil
}
