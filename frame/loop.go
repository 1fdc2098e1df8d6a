package frame

import (
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// DefaultClearColor is opaque blue.
var DefaultClearColor = ClearColor{0, 0, 1, 1}

type Options struct {
	ClearColor    ClearColor
	StatsInterval time.Duration
	Logger        *slog.Logger
}

// SwapchainState is the lifecycle position of the window-size dependent
// objects.
type SwapchainState int

const (
	NoWindow SwapchainState = iota
	Live
	NeedsRebuild
)

func (s SwapchainState) String() string {
	switch s {
	case NoWindow:
		return "NoWindow"
	case Live:
		return "Live"
	case NeedsRebuild:
		return "NeedsRebuild"
	default:
		return "SwapchainState(?)"
	}
}

// state is uninitialized (no window yet, or closed), *minimized (a window
// that resumed with a zero drawable size) or *active.
type state interface {
	isState()
}

type uninitialized struct{}

func (uninitialized) isState() {}

type minimized struct {
	window Window
}

func (*minimized) isState() {}

type active struct {
	window       Window
	swapchain    Swapchain
	renderPass   RenderPass
	pipeline     Pipeline
	framebuffers []Framebuffer
	viewport     Viewport
}

func (*active) isState() {}

// Loop is the event-driven frame state machine. All methods must be called
// from the goroutine running the window event loop.
type Loop struct {
	graphics   Graphics
	logger     *slog.Logger
	stats      *Stats
	clearColor ClearColor

	state             state
	recreateSwapchain bool
	previousFrameEnd  Future
}

func NewLoop(graphics Graphics, options Options) *Loop {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := options.StatsInterval
	if interval <= 0 {
		interval = DefaultStatsInterval
	}

	clearColor := options.ClearColor
	if clearColor == (ClearColor{}) {
		clearColor = DefaultClearColor
	}

	return &Loop{
		graphics:         graphics,
		logger:           logger,
		stats:            NewStats(logger, interval),
		clearColor:       clearColor,
		state:            uninitialized{},
		previousFrameEnd: graphics.Now(),
	}
}

func (l *Loop) SwapchainState() SwapchainState {
	if _, ok := l.state.(*active); !ok {
		return NoWindow
	}
	if l.recreateSwapchain {
		return NeedsRebuild
	}
	return Live
}

// Stats returns the frame counters.
func (l *Loop) Stats() *Stats {
	return l.stats
}

// Resumed builds the swapchain, render pass, pipeline and framebuffers for a
// window that has become active. A window with no drawable area is kept
// until a later resize or redraw finds it visible.
func (l *Loop) Resumed(window Window) (err error) {
	if _, ok := l.state.(*active); ok {
		return nil
	}

	if window.InnerSize().IsZero() {
		l.state = &minimized{window: window}
		l.logger.Debug("window resumed without a drawable area, deferring setup")
		return nil
	}

	var created []Resource
	defer func() {
		if err != nil {
			for i := len(created) - 1; i >= 0; i-- {
				created[i].Release()
			}
		}
	}()

	swapchain, err := l.graphics.CreateSwapchain(window)
	if err != nil {
		return errors.Wrap(err, "failed to create swapchain")
	}
	created = append(created, swapchain)

	renderPass, err := l.graphics.CreateRenderPass(swapchain)
	if err != nil {
		return errors.Wrap(err, "failed to create render pass")
	}
	created = append(created, renderPass)

	pipeline, err := l.graphics.CreatePipeline(renderPass)
	if err != nil {
		return errors.Wrap(err, "failed to create graphics pipeline")
	}
	created = append(created, pipeline)

	a := &active{
		window:     window,
		swapchain:  swapchain,
		renderPass: renderPass,
		pipeline:   pipeline,
	}
	err = l.windowSizeDependentSetup(a)
	if err != nil {
		return err
	}

	l.state = a
	l.logger.Info("window active",
		slog.String("extent", swapchain.Extent().String()),
		slog.Int("images", swapchain.ImageCount()))
	return nil
}

// WindowEvent handles one window event. Events arriving before the window is
// resumed are ignored.
func (l *Loop) WindowEvent(control Control, event Event) error {
	if m, ok := l.state.(*minimized); ok {
		return l.minimizedEvent(m, control, event)
	}

	a, ok := l.state.(*active)
	if !ok {
		l.logger.Debug("ignoring event without active window", slog.String("event", event.String()))
		return nil
	}

	switch event {
	case CloseRequested:
		control.Exit()
	case Resized:
		l.recreateSwapchain = true
	case RedrawRequested:
		return l.redraw(a)
	}

	return nil
}

func (l *Loop) minimizedEvent(m *minimized, control Control, event Event) error {
	switch event {
	case CloseRequested:
		control.Exit()
		return nil
	case Resized, RedrawRequested:
		return l.Resumed(m.window)
	}
	return nil
}

// AboutToWait requests another redraw so frames are rendered continuously.
func (l *Loop) AboutToWait() {
	switch s := l.state.(type) {
	case *active:
		s.window.RequestRedraw()
	case *minimized:
		s.window.RequestRedraw()
	}
}

// Close waits for the last submitted frame and releases every window-size
// dependent object. The loop returns to NoWindow.
func (l *Loop) Close() error {
	err := l.previousFrameEnd.Wait()
	l.previousFrameEnd = l.graphics.Now()

	if a, ok := l.state.(*active); ok {
		releaseAll(a.framebuffers)
		a.framebuffers = nil
		a.pipeline.Release()
		a.renderPass.Release()
		a.swapchain.Release()
	}
	l.state = uninitialized{}
	l.recreateSwapchain = false

	if err != nil {
		return errors.Wrap(err, "failed to wait for the last frame")
	}
	return nil
}

func (l *Loop) redraw(a *active) error {
	// Nothing can be presented to a minimized window, and a swapchain can't
	// be created with a zero extent.
	imageExtent := a.window.InnerSize()
	if imageExtent.IsZero() {
		return nil
	}

	l.previousFrameEnd.CleanupFinished()

	if l.recreateSwapchain {
		swapchain, err := a.swapchain.Recreate(imageExtent)
		if err != nil {
			return errors.Wrap(err, "failed to recreate swapchain")
		}
		a.swapchain = swapchain

		err = l.windowSizeDependentSetup(a)
		if err != nil {
			return err
		}
		l.recreateSwapchain = false

		l.logger.Debug("recreated swapchain",
			slog.String("extent", swapchain.Extent().String()),
			slog.Int("images", swapchain.ImageCount()))
	}

	imageIndex, suboptimal, acquireFuture, err := a.swapchain.AcquireNextImage()
	if errors.Is(err, ErrOutOfDate) {
		l.recreateSwapchain = true
		return nil
	} else if err != nil {
		return errors.Wrap(err, "failed to acquire next image")
	}

	// The image is still presentable, so draw this frame and rebuild on the
	// next one.
	if suboptimal {
		l.recreateSwapchain = true
	}

	commandBuffer, err := l.record(a, imageIndex)
	if err != nil {
		return err
	}

	future, err := l.previousFrameEnd.
		Join(acquireFuture).
		ThenExecute(commandBuffer)
	if err != nil {
		commandBuffer.Release()
		return errors.Wrap(err, "failed to execute command buffer")
	}

	future, err = future.
		ThenSwapchainPresent(a.swapchain, imageIndex).
		ThenSignalFenceAndFlush()
	switch {
	case err == nil:
		l.previousFrameEnd = future
	case errors.Is(err, ErrOutOfDate):
		l.recreateSwapchain = true
		l.previousFrameEnd = l.graphics.Now()
	default:
		return errors.Wrap(err, "failed to flush future")
	}

	l.stats.Frame()
	return nil
}

func (l *Loop) record(a *active, imageIndex int) (CommandBuffer, error) {
	if imageIndex < 0 || imageIndex >= len(a.framebuffers) {
		return nil, errors.Newf("acquired image %d but only %d framebuffers exist", imageIndex, len(a.framebuffers))
	}

	builder, err := l.graphics.BeginCommands()
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin command buffer")
	}

	err = builder.BeginRenderPass(a.framebuffers[imageIndex], l.clearColor)
	if err != nil {
		// End hands back the buffer, or frees it when recording failed.
		commandBuffer, endErr := builder.End()
		if endErr == nil {
			commandBuffer.Release()
		}
		return nil, errors.Wrap(err, "failed to begin render pass")
	}

	vertexBuffer := l.graphics.VertexBuffer()

	builder.SetViewport(a.viewport)
	builder.BindPipeline(a.pipeline)
	builder.BindVertexBuffers(0, vertexBuffer)
	builder.Draw(vertexBuffer.Len(), 1, 0, 0)
	builder.EndRenderPass()

	commandBuffer, err := builder.End()
	if err != nil {
		return nil, errors.Wrap(err, "failed to end command buffer")
	}
	return commandBuffer, nil
}

// windowSizeDependentSetup replaces the framebuffers with a set built over
// the current swapchain images and refreshes the cached viewport.
func (l *Loop) windowSizeDependentSetup(a *active) error {
	framebuffers, err := l.graphics.CreateFramebuffers(a.renderPass, a.swapchain)
	if err != nil {
		return errors.Wrap(err, "failed to create framebuffers")
	}
	if len(framebuffers) == 0 {
		return errors.New("swapchain has no images")
	}

	releaseAll(a.framebuffers)
	a.framebuffers = framebuffers
	a.viewport = FullViewport(framebuffers[0].Extent())
	return nil
}

func releaseAll[T Resource](resources []T) {
	for _, resource := range resources {
		resource.Release()
	}
}
