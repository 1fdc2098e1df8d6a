package frame

// Resource is a GPU object whose destruction may have to wait for in-flight
// work. Release hands it back to its owner, which frees it once nothing
// submitted to the GPU still references it.
type Resource interface {
	Release()
}

// Window is the OS window the loop renders into.
type Window interface {
	// InnerSize is the current drawable size, zero while minimized.
	InnerSize() Extent
	RequestRedraw()
}

// Control lets event handlers stop the event loop.
type Control interface {
	Exit()
}

// Swapchain is a ring of presentable images bound to the window surface.
type Swapchain interface {
	Resource
	Extent() Extent
	ImageCount() int
	// Recreate builds a replacement swapchain that keeps every creation
	// parameter except the image extent. The receiver is retired.
	Recreate(extent Extent) (Swapchain, error)
	// AcquireNextImage waits without timeout for a free image. It returns
	// ErrOutOfDate when the swapchain has to be rebuilt first.
	AcquireNextImage() (imageIndex int, suboptimal bool, acquired Future, err error)
}

type RenderPass interface {
	Resource
}

type Pipeline interface {
	Resource
}

// Framebuffer binds one swapchain image to a render pass.
type Framebuffer interface {
	Resource
	Extent() Extent
}

type VertexBuffer interface {
	Len() int
}

// CommandBuffer is a finished recording, ready for submission.
type CommandBuffer interface {
	Resource
}

// CommandBuilder records a primary, one-time-submit command buffer.
type CommandBuilder interface {
	BeginRenderPass(framebuffer Framebuffer, clear ClearColor) error
	// SetViewport sets the dynamic viewports starting at index 0.
	SetViewport(viewports ...Viewport)
	BindPipeline(pipeline Pipeline)
	BindVertexBuffers(firstBinding int, buffers ...VertexBuffer)
	// Draw cannot check that the bound vertex shader stays within the
	// vertex buffer; the caller vouches for it.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance int)
	EndRenderPass()
	End() (CommandBuffer, error)
}

// Future stands for the completion of GPU work. Each combinator consumes its
// receiver and returns a new handle; nothing reaches the GPU before
// ThenSignalFenceAndFlush.
type Future interface {
	// CleanupFinished frees host resources held by work the GPU has finished.
	CleanupFinished()
	Join(other Future) Future
	ThenExecute(commands CommandBuffer) (Future, error)
	ThenSwapchainPresent(swapchain Swapchain, imageIndex int) Future
	// ThenSignalFenceAndFlush submits everything chained so far. It returns
	// ErrOutOfDate when presentation found the swapchain stale; the work is
	// still submitted and tracked in that case.
	ThenSignalFenceAndFlush() (Future, error)
	// Wait blocks until the represented work has completed.
	Wait() error
}

// Graphics is the GPU side the loop draws with. It owns the device, the
// queue and the static assets.
type Graphics interface {
	// Now returns a future with no outstanding work.
	Now() Future
	CreateSwapchain(window Window) (Swapchain, error)
	CreateRenderPass(swapchain Swapchain) (RenderPass, error)
	CreatePipeline(renderPass RenderPass) (Pipeline, error)
	CreateFramebuffers(renderPass RenderPass, swapchain Swapchain) ([]Framebuffer, error)
	VertexBuffer() VertexBuffer
	BeginCommands() (CommandBuilder, error)
}
