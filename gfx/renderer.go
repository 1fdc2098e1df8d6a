package gfx

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/triangle/frame"
)

// Renderer draws the triangle through a Context. It owns the static assets
// and hands the frame loop everything that depends on the window.
type Renderer struct {
	ctx          *Context
	shaders      ShaderCode
	vertexBuffer *VertexBuffer
}

var _ frame.Graphics = (*Renderer)(nil)

func NewRenderer(ctx *Context, shaders ShaderCode) (*Renderer, error) {
	// Fail on bad shader code before any window-dependent work starts.
	_, err := bytesToBytecode(shaders.Vertex)
	if err != nil {
		return nil, errors.Wrap(err, "vertex shader")
	}
	_, err = bytesToBytecode(shaders.Fragment)
	if err != nil {
		return nil, errors.Wrap(err, "fragment shader")
	}

	vertexBuffer, err := NewVertexBuffer(ctx, TriangleVertices)
	if err != nil {
		return nil, err
	}

	return &Renderer{
		ctx:          ctx,
		shaders:      shaders,
		vertexBuffer: vertexBuffer,
	}, nil
}

func (r *Renderer) Now() frame.Future {
	return r.ctx.now()
}

func (r *Renderer) CreateSwapchain(window frame.Window) (frame.Swapchain, error) {
	swapchain, err := r.ctx.createSwapchain(window.InnerSize())
	if err != nil {
		return nil, err
	}
	return swapchain, nil
}

func (r *Renderer) CreateRenderPass(swapchain frame.Swapchain) (frame.RenderPass, error) {
	sc, ok := swapchain.(*Swapchain)
	if !ok {
		return nil, errors.Wrapf(ErrForeignObject, "swapchain %T", swapchain)
	}

	renderPass, err := r.ctx.createRenderPass(sc.format())
	if err != nil {
		return nil, err
	}
	return renderPass, nil
}

func (r *Renderer) CreatePipeline(renderPass frame.RenderPass) (frame.Pipeline, error) {
	rp, ok := renderPass.(*RenderPass)
	if !ok {
		return nil, errors.Wrapf(ErrForeignObject, "render pass %T", renderPass)
	}

	pipeline, err := r.ctx.createPipeline(rp, r.shaders)
	if err != nil {
		return nil, err
	}
	return pipeline, nil
}

func (r *Renderer) CreateFramebuffers(renderPass frame.RenderPass, swapchain frame.Swapchain) ([]frame.Framebuffer, error) {
	rp, ok := renderPass.(*RenderPass)
	if !ok {
		return nil, errors.Wrapf(ErrForeignObject, "render pass %T", renderPass)
	}
	sc, ok := swapchain.(*Swapchain)
	if !ok {
		return nil, errors.Wrapf(ErrForeignObject, "swapchain %T", swapchain)
	}

	framebuffers, err := r.ctx.createFramebuffers(rp, sc)
	if err != nil {
		return nil, err
	}

	result := make([]frame.Framebuffer, 0, len(framebuffers))
	for _, framebuffer := range framebuffers {
		result = append(result, framebuffer)
	}
	return result, nil
}

func (r *Renderer) VertexBuffer() frame.VertexBuffer {
	return r.vertexBuffer
}

func (r *Renderer) BeginCommands() (frame.CommandBuilder, error) {
	builder, err := r.ctx.beginCommands()
	if err != nil {
		return nil, err
	}
	return builder, nil
}

// Destroy waits for the device and frees the static assets. The frame loop
// must have been closed first.
func (r *Renderer) Destroy() error {
	err := r.ctx.WaitIdle()
	r.vertexBuffer.Destroy()
	return err
}
