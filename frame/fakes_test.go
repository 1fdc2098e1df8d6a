package frame

import (
	"fmt"
	"io"

	"golang.org/x/exp/slog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type acquireResult struct {
	imageIndex int
	suboptimal bool
	err        error
}

// fakeGraphics records every operation the loop performs, in order.
type fakeGraphics struct {
	ops []string

	imageCount int
	acquires   []acquireResult
	flushErrs  []error
	beginErr   error

	nowCalls     int
	cleanups     int
	waits        int
	executed     []CommandBuffer
	presented    []int
	recreates    int
	builders     []*fakeBuilder
	swapchains   []*fakeSwapchain
	framebuffers []*fakeFramebuffer
	renderPasses []*fakeResource
	pipelines    []*fakeResource

	vertexBuffer fakeVertexBuffer
}

func newFakeGraphics() *fakeGraphics {
	return &fakeGraphics{
		imageCount:   3,
		vertexBuffer: fakeVertexBuffer{length: 3},
	}
}

func (g *fakeGraphics) record(format string, args ...any) {
	g.ops = append(g.ops, fmt.Sprintf(format, args...))
}

func (g *fakeGraphics) Now() Future {
	g.nowCalls++
	return &fakeFuture{graphics: g, name: fmt.Sprintf("now-%d", g.nowCalls)}
}

func (g *fakeGraphics) CreateSwapchain(window Window) (Swapchain, error) {
	swapchain := &fakeSwapchain{graphics: g, extent: window.InnerSize(), images: g.imageCount}
	g.swapchains = append(g.swapchains, swapchain)
	return swapchain, nil
}

func (g *fakeGraphics) CreateRenderPass(Swapchain) (RenderPass, error) {
	renderPass := &fakeResource{}
	g.renderPasses = append(g.renderPasses, renderPass)
	return renderPass, nil
}

func (g *fakeGraphics) CreatePipeline(RenderPass) (Pipeline, error) {
	pipeline := &fakeResource{}
	g.pipelines = append(g.pipelines, pipeline)
	return pipeline, nil
}

func (g *fakeGraphics) CreateFramebuffers(_ RenderPass, swapchain Swapchain) ([]Framebuffer, error) {
	var framebuffers []Framebuffer
	for i := 0; i < swapchain.ImageCount(); i++ {
		framebuffer := &fakeFramebuffer{extent: swapchain.Extent()}
		g.framebuffers = append(g.framebuffers, framebuffer)
		framebuffers = append(framebuffers, framebuffer)
	}
	return framebuffers, nil
}

func (g *fakeGraphics) VertexBuffer() VertexBuffer {
	return g.vertexBuffer
}

func (g *fakeGraphics) BeginCommands() (CommandBuilder, error) {
	g.record("begin-commands")
	builder := &fakeBuilder{graphics: g}
	g.builders = append(g.builders, builder)
	return builder, nil
}

type fakeResource struct {
	released int
}

func (r *fakeResource) Release() {
	r.released++
}

type fakeVertexBuffer struct {
	length int
}

func (b fakeVertexBuffer) Len() int {
	return b.length
}

type fakeFramebuffer struct {
	fakeResource
	extent Extent
}

func (f *fakeFramebuffer) Extent() Extent {
	return f.extent
}

type fakeSwapchain struct {
	fakeResource
	graphics *fakeGraphics
	extent   Extent
	images   int
}

func (s *fakeSwapchain) Extent() Extent {
	return s.extent
}

func (s *fakeSwapchain) ImageCount() int {
	return s.images
}

func (s *fakeSwapchain) Recreate(extent Extent) (Swapchain, error) {
	s.graphics.recreates++
	s.graphics.record("recreate %s", extent)

	swapchain := &fakeSwapchain{graphics: s.graphics, extent: extent, images: s.images}
	s.graphics.swapchains = append(s.graphics.swapchains, swapchain)
	s.Release()
	return swapchain, nil
}

func (s *fakeSwapchain) AcquireNextImage() (int, bool, Future, error) {
	s.graphics.record("acquire")

	result := acquireResult{}
	if len(s.graphics.acquires) > 0 {
		result = s.graphics.acquires[0]
		s.graphics.acquires = s.graphics.acquires[1:]
	}
	if result.err != nil {
		return 0, false, nil, result.err
	}
	return result.imageIndex, result.suboptimal, &fakeFuture{graphics: s.graphics, name: "acquire"}, nil
}

type fakeCommandBuffer struct {
	fakeResource
	builder *fakeBuilder
}

type fakeBuilder struct {
	graphics *fakeGraphics

	framebuffer Framebuffer
	clear       ClearColor
	viewports   []Viewport
	pipeline    Pipeline
	draw        [4]int
	ended       *fakeCommandBuffer
}

func (b *fakeBuilder) BeginRenderPass(framebuffer Framebuffer, clear ClearColor) error {
	b.graphics.record("begin-render-pass")
	b.framebuffer = framebuffer
	b.clear = clear
	return b.graphics.beginErr
}

func (b *fakeBuilder) SetViewport(viewports ...Viewport) {
	b.graphics.record("set-viewport")
	b.viewports = viewports
}

func (b *fakeBuilder) BindPipeline(pipeline Pipeline) {
	b.graphics.record("bind-pipeline")
	b.pipeline = pipeline
}

func (b *fakeBuilder) BindVertexBuffers(firstBinding int, _ ...VertexBuffer) {
	b.graphics.record("bind-vertex-buffers %d", firstBinding)
}

func (b *fakeBuilder) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	b.graphics.record("draw")
	b.draw = [4]int{vertexCount, instanceCount, firstVertex, firstInstance}
}

func (b *fakeBuilder) EndRenderPass() {
	b.graphics.record("end-render-pass")
}

func (b *fakeBuilder) End() (CommandBuffer, error) {
	b.graphics.record("end")
	b.ended = &fakeCommandBuffer{builder: b}
	return b.ended, nil
}

type fakeFuture struct {
	graphics *fakeGraphics
	name     string
}

func (f *fakeFuture) CleanupFinished() {
	f.graphics.cleanups++
}

func (f *fakeFuture) Join(other Future) Future {
	f.graphics.record("join")
	return &fakeFuture{graphics: f.graphics, name: f.name + "+" + other.(*fakeFuture).name}
}

func (f *fakeFuture) ThenExecute(commands CommandBuffer) (Future, error) {
	f.graphics.record("execute")
	f.graphics.executed = append(f.graphics.executed, commands)
	return &fakeFuture{graphics: f.graphics, name: f.name + ">execute"}, nil
}

func (f *fakeFuture) ThenSwapchainPresent(_ Swapchain, imageIndex int) Future {
	f.graphics.record("present %d", imageIndex)
	f.graphics.presented = append(f.graphics.presented, imageIndex)
	return &fakeFuture{graphics: f.graphics, name: f.name + ">present"}
}

func (f *fakeFuture) ThenSignalFenceAndFlush() (Future, error) {
	f.graphics.record("flush")

	var err error
	if len(f.graphics.flushErrs) > 0 {
		err = f.graphics.flushErrs[0]
		f.graphics.flushErrs = f.graphics.flushErrs[1:]
	}
	if err != nil {
		return nil, err
	}
	return &fakeFuture{graphics: f.graphics, name: fmt.Sprintf("frame-%d", len(f.graphics.presented))}, nil
}

func (f *fakeFuture) Wait() error {
	f.graphics.waits++
	return nil
}

type fakeWindow struct {
	size    Extent
	redraws int
}

func (w *fakeWindow) InnerSize() Extent {
	return w.size
}

func (w *fakeWindow) RequestRedraw() {
	w.redraws++
}

type fakeControl struct {
	exited bool
}

func (c *fakeControl) Exit() {
	c.exited = true
}
