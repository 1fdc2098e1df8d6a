package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/triangle/frame"
)

type present struct {
	swapchain  *Swapchain
	imageIndex int
}

// Future accumulates waits, command buffers and presents until it is
// flushed as a single queue submission followed by a present.
type Future struct {
	ctx *Context

	waitSemaphores []core1_0.Semaphore
	waitStages     []core1_0.PipelineStageFlags
	commandBuffers []*CommandBuffer
	presents       []present

	// flushed is the newest submission this future depends on, if any.
	flushed *submission
	err     error
}

var _ frame.Future = (*Future)(nil)

func (c *Context) now() *Future {
	return &Future{ctx: c}
}

func (f *Future) CleanupFinished() {
	err := f.ctx.tracker.reclaim()
	if err != nil {
		f.ctx.logger.Warn("failed to reclaim finished submissions", slog.Any("error", err))
	}
}

func (f *Future) Join(other frame.Future) frame.Future {
	joined := &Future{
		ctx:            f.ctx,
		waitSemaphores: append([]core1_0.Semaphore{}, f.waitSemaphores...),
		waitStages:     append([]core1_0.PipelineStageFlags{}, f.waitStages...),
		commandBuffers: append([]*CommandBuffer{}, f.commandBuffers...),
		presents:       append([]present{}, f.presents...),
		flushed:        f.flushed,
		err:            f.err,
	}

	o, ok := other.(*Future)
	if !ok {
		joined.err = errors.CombineErrors(joined.err, errors.Wrapf(ErrForeignObject, "future %T", other))
		return joined
	}

	joined.waitSemaphores = append(joined.waitSemaphores, o.waitSemaphores...)
	joined.waitStages = append(joined.waitStages, o.waitStages...)
	joined.commandBuffers = append(joined.commandBuffers, o.commandBuffers...)
	joined.presents = append(joined.presents, o.presents...)
	joined.err = errors.CombineErrors(joined.err, o.err)
	if joined.flushed == nil || (o.flushed != nil && !o.flushed.done) {
		joined.flushed = o.flushed
	}
	return joined
}

func (f *Future) ThenExecute(commands frame.CommandBuffer) (frame.Future, error) {
	commandBuffer, ok := commands.(*CommandBuffer)
	if !ok {
		return nil, errors.Wrapf(ErrForeignObject, "command buffer %T", commands)
	}
	if len(f.presents) > 0 {
		return nil, errors.New("cannot execute commands after a pending present")
	}

	next := *f
	next.commandBuffers = append(append([]*CommandBuffer{}, f.commandBuffers...), commandBuffer)
	return &next, nil
}

func (f *Future) ThenSwapchainPresent(swapchain frame.Swapchain, imageIndex int) frame.Future {
	next := *f

	sc, ok := swapchain.(*Swapchain)
	if !ok {
		next.err = errors.CombineErrors(next.err, errors.Wrapf(ErrForeignObject, "swapchain %T", swapchain))
		return &next
	}

	next.presents = append(append([]present{}, f.presents...), present{swapchain: sc, imageIndex: imageIndex})
	return &next
}

// ThenSignalFenceAndFlush submits the accumulated command buffers in one
// batch that waits on the accumulated semaphores, then queues the presents.
func (f *Future) ThenSignalFenceAndFlush() (frame.Future, error) {
	if f.err != nil {
		return nil, f.err
	}

	t := f.ctx.tracker

	fence, err := t.fence()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fence")
	}

	// The presents wait on per-image semaphores owned by their swapchains,
	// so only the acquire semaphores go back to the tracker.
	var signal []core1_0.Semaphore
	for _, p := range f.presents {
		renderFinished, err := p.swapchain.renderFinishedSemaphore(p.imageIndex)
		if err != nil {
			t.freeFences = append(t.freeFences, fence)
			return nil, err
		}
		signal = append(signal, renderFinished)
	}

	handles := make([]core1_0.CommandBuffer, 0, len(f.commandBuffers))
	for _, commandBuffer := range f.commandBuffers {
		handles = append(handles, commandBuffer.take())
	}

	_, err = f.ctx.deviceDriver.QueueSubmit(f.ctx.queue, &fence, core1_0.SubmitInfo{
		WaitSemaphores:   f.waitSemaphores,
		WaitDstStageMask: f.waitStages,
		CommandBuffers:   handles,
		SignalSemaphores: signal,
	})
	if err != nil {
		t.freeFences = append(t.freeFences, fence)
		if len(handles) > 0 {
			f.ctx.deviceDriver.FreeCommandBuffers(handles...)
		}
		return nil, errors.Wrap(err, "failed to submit draw command buffer")
	}

	s := &submission{
		fence:          fence,
		commandBuffers: handles,
		semaphores:     append([]core1_0.Semaphore{}, f.waitSemaphores...),
	}
	t.track(s)

	flushed := &Future{ctx: f.ctx, flushed: s}

	if len(f.presents) == 0 {
		return flushed, nil
	}

	presentInfo := khr_swapchain.PresentInfo{WaitSemaphores: signal}
	for _, p := range f.presents {
		presentInfo.Swapchains = append(presentInfo.Swapchains, p.swapchain.handle)
		presentInfo.ImageIndices = append(presentInfo.ImageIndices, p.imageIndex)
	}

	res, err := f.ctx.swapchainExtension.QueuePresent(f.ctx.queue, presentInfo)
	err = checkOutOfDate(res, err, "failed to present swapchain image")
	if err != nil {
		return nil, err
	}

	return flushed, nil
}

func (f *Future) Wait() error {
	if f.flushed == nil {
		return nil
	}
	return f.ctx.tracker.wait(f.flushed)
}
