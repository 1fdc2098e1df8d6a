package gfx

import (
	"io"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/loader"
	"github.com/vkngwrapper/core/v3/mocks"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/triangle/frame"
)

// fakeSwapchainDriver stands in for the swapchain extension. Only acquire,
// present and destroy are implemented.
type fakeSwapchainDriver struct {
	khr_swapchain.ExtensionDriver

	imageIndex    int
	acquireResult common.VkResult
	presentResult common.VkResult

	acquireSemaphores []core1_0.Semaphore
	presents          []khr_swapchain.PresentInfo
	destroyed         []khr_swapchain.Swapchain
}

func (d *fakeSwapchainDriver) AcquireNextImage(_ khr_swapchain.Swapchain, _ time.Duration, semaphore *core1_0.Semaphore, _ *core1_0.Fence) (int, common.VkResult, error) {
	d.acquireSemaphores = append(d.acquireSemaphores, *semaphore)
	return d.imageIndex, d.acquireResult, d.acquireResult.ToError()
}

func (d *fakeSwapchainDriver) QueuePresent(_ core1_0.Queue, o khr_swapchain.PresentInfo) (common.VkResult, error) {
	d.presents = append(d.presents, o)
	return d.presentResult, d.presentResult.ToError()
}

func (d *fakeSwapchainDriver) DestroySwapchain(swapchain khr_swapchain.Swapchain, _ *loader.AllocationCallbacks) {
	d.destroyed = append(d.destroyed, swapchain)
}

func newTestContext(t *testing.T) (*Context, *testDevice, *fakeSwapchainDriver) {
	d := newTestDevice(t)
	swapchains := &fakeSwapchainDriver{}

	ctx := &Context{
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		deviceDriver:       d.driver,
		queue:              mocks.NewDummyQueue(d.device),
		swapchainExtension: swapchains,
		tracker:            newTracker(d.driver),
	}
	return ctx, d, swapchains
}

func (d *testDevice) swapchain(ctx *Context, images int) *Swapchain {
	swapchain := &Swapchain{
		ctx:    ctx,
		handle: khr_swapchain.NewDummySwapchain(d.device),
	}
	for i := 0; i < images; i++ {
		swapchain.images = append(swapchain.images, mocks.NewDummyImage(d.device))
		swapchain.renderFinished = append(swapchain.renderFinished, mocks.NewDummySemaphore(d.device))
	}
	return swapchain
}

// acquiredFrame is a future that waits on a fresh acquire semaphore and runs
// one recorded command buffer.
func acquiredFrame(t *testing.T, ctx *Context, d *testDevice) (frame.Future, core1_0.Semaphore, *CommandBuffer) {
	t.Helper()

	acquired := mocks.NewDummySemaphore(d.device)
	commandBuffer := &CommandBuffer{ctx: ctx, handle: d.commandBuffer()}

	acquire := &Future{
		ctx:            ctx,
		waitSemaphores: []core1_0.Semaphore{acquired},
		waitStages:     []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
	}
	future, err := acquire.ThenExecute(commandBuffer)
	require.NoError(t, err)
	return future, acquired, commandBuffer
}

type foreignFuture struct {
	frame.Future
}

func TestJoinMergesWaitsAndCommandBuffers(t *testing.T) {
	ctx, d, _ := newTestContext(t)

	firstSemaphore := mocks.NewDummySemaphore(d.device)
	secondSemaphore := mocks.NewDummySemaphore(d.device)
	thirdSemaphore := mocks.NewDummySemaphore(d.device)
	firstBuffer := &CommandBuffer{ctx: ctx, handle: d.commandBuffer()}
	secondBuffer := &CommandBuffer{ctx: ctx, handle: d.commandBuffer()}

	// Spare capacity must not let two joins of the same future share storage.
	first := &Future{
		ctx:            ctx,
		waitSemaphores: append(make([]core1_0.Semaphore, 0, 4), firstSemaphore),
		waitStages:     []core1_0.PipelineStageFlags{core1_0.PipelineStageTopOfPipe},
		commandBuffers: []*CommandBuffer{firstBuffer},
	}
	second := &Future{
		ctx:            ctx,
		waitSemaphores: []core1_0.Semaphore{secondSemaphore},
		waitStages:     []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
		commandBuffers: []*CommandBuffer{secondBuffer},
	}
	third := &Future{
		ctx:            ctx,
		waitSemaphores: []core1_0.Semaphore{thirdSemaphore},
		waitStages:     []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
	}

	joined := first.Join(second).(*Future)
	other := first.Join(third).(*Future)

	require.NoError(t, joined.err)
	assert.Equal(t, []core1_0.Semaphore{firstSemaphore, secondSemaphore}, joined.waitSemaphores)
	assert.Equal(t, []core1_0.PipelineStageFlags{
		core1_0.PipelineStageTopOfPipe,
		core1_0.PipelineStageColorAttachmentOutput,
	}, joined.waitStages)
	assert.Equal(t, []*CommandBuffer{firstBuffer, secondBuffer}, joined.commandBuffers)

	assert.Equal(t, []core1_0.Semaphore{firstSemaphore, thirdSemaphore}, other.waitSemaphores)
	assert.Equal(t, []*CommandBuffer{firstBuffer}, other.commandBuffers)
	assert.Equal(t, []core1_0.Semaphore{firstSemaphore}, first.waitSemaphores)
}

func TestJoinKeepsUnfinishedSubmission(t *testing.T) {
	ctx, d, _ := newTestContext(t)

	finished, inFlight := d.submission(), d.submission()
	finished.done = true

	joined := (&Future{ctx: ctx, flushed: finished}).Join(&Future{ctx: ctx, flushed: inFlight}).(*Future)
	assert.Same(t, inFlight, joined.flushed)

	joined = (&Future{ctx: ctx, flushed: inFlight}).Join(ctx.now()).(*Future)
	assert.Same(t, inFlight, joined.flushed)
}

func TestJoinWithForeignFutureFailsFlush(t *testing.T) {
	ctx, _, _ := newTestContext(t)

	joined := ctx.now().Join(foreignFuture{})

	// Any driver call fails the mock.
	_, err := joined.ThenSignalFenceAndFlush()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForeignObject))
}

func TestWaitWithoutSubmissionReturnsImmediately(t *testing.T) {
	ctx, d, _ := newTestContext(t)

	finished := d.submission()
	finished.done = true

	require.NoError(t, ctx.now().Wait())
	require.NoError(t, (&Future{ctx: ctx, flushed: finished}).Wait())
}

func TestThenExecuteAfterPresentFails(t *testing.T) {
	ctx, d, _ := newTestContext(t)
	swapchain := d.swapchain(ctx, 2)

	future, _, _ := acquiredFrame(t, ctx, d)
	_, err := future.ThenSwapchainPresent(swapchain, 0).
		ThenExecute(&CommandBuffer{ctx: ctx, handle: d.commandBuffer()})

	require.Error(t, err)
}

func TestFlushSignalsPresentedImageSemaphore(t *testing.T) {
	ctx, d, swapchains := newTestContext(t)
	swapchain := d.swapchain(ctx, 3)
	fence := mocks.NewDummyFence(d.device)
	ctx.tracker.freeFences = []core1_0.Fence{fence}

	future, acquired, commandBuffer := acquiredFrame(t, ctx, d)
	handle := commandBuffer.handle

	d.driver.EXPECT().QueueSubmit(ctx.queue, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ core1_0.Queue, signalled *core1_0.Fence, o ...core1_0.SubmitInfo) (common.VkResult, error) {
			require.Len(t, o, 1)
			assert.Equal(t, fence, *signalled)
			assert.Equal(t, []core1_0.Semaphore{acquired}, o[0].WaitSemaphores)
			assert.Equal(t, []core1_0.CommandBuffer{handle}, o[0].CommandBuffers)
			assert.Equal(t, []core1_0.Semaphore{swapchain.renderFinished[1]}, o[0].SignalSemaphores)
			return core1_0.VKSuccess, nil
		})

	flushed, err := future.ThenSwapchainPresent(swapchain, 1).ThenSignalFenceAndFlush()
	require.NoError(t, err)
	assert.False(t, commandBuffer.handle.Initialized())

	require.Len(t, swapchains.presents, 1)
	assert.Equal(t, []core1_0.Semaphore{swapchain.renderFinished[1]}, swapchains.presents[0].WaitSemaphores)
	assert.Equal(t, []khr_swapchain.Swapchain{swapchain.handle}, swapchains.presents[0].Swapchains)
	assert.Equal(t, []int{1}, swapchains.presents[0].ImageIndices)

	// The present may still be waiting on the image semaphore after the
	// fence signals, so only the acquire semaphore is handed out again.
	d.driver.EXPECT().GetFenceStatus(fence).Return(core1_0.VKSuccess, nil)
	d.driver.EXPECT().FreeCommandBuffers(handle)
	d.driver.EXPECT().ResetFences(fence).Return(core1_0.VKSuccess, nil)

	flushed.CleanupFinished()

	assert.Equal(t, []core1_0.Semaphore{acquired}, ctx.tracker.freeSemaphores)
	assert.Equal(t, []core1_0.Fence{fence}, ctx.tracker.freeFences)
	assert.Empty(t, ctx.tracker.pending)
}

func TestOutOfDatePresentLeavesSubmissionTracked(t *testing.T) {
	ctx, d, swapchains := newTestContext(t)
	swapchain := d.swapchain(ctx, 2)
	fence := mocks.NewDummyFence(d.device)
	ctx.tracker.freeFences = []core1_0.Fence{fence}
	swapchains.presentResult = khr_swapchain.VKErrorOutOfDate

	future, acquired, commandBuffer := acquiredFrame(t, ctx, d)
	handle := commandBuffer.handle
	d.driver.EXPECT().QueueSubmit(ctx.queue, gomock.Any(), gomock.Any()).Return(core1_0.VKSuccess, nil)

	_, err := future.ThenSwapchainPresent(swapchain, 0).ThenSignalFenceAndFlush()

	require.Error(t, err)
	assert.True(t, errors.Is(err, frame.ErrOutOfDate))
	require.Len(t, ctx.tracker.pending, 1)
	leftover := ctx.tracker.pending[0]
	assert.Equal(t, fence, leftover.fence)
	assert.Equal(t, []core1_0.CommandBuffer{handle}, leftover.commandBuffers)
	assert.Equal(t, []core1_0.Semaphore{acquired}, leftover.semaphores)

	// A fresh future still reclaims what the failed frame left behind.
	d.driver.EXPECT().GetFenceStatus(fence).Return(core1_0.VKSuccess, nil)
	d.driver.EXPECT().FreeCommandBuffers(handle)
	d.driver.EXPECT().ResetFences(fence).Return(core1_0.VKSuccess, nil)

	ctx.now().CleanupFinished()

	assert.True(t, leftover.done)
	assert.Empty(t, ctx.tracker.pending)
	assert.Equal(t, []core1_0.Semaphore{acquired}, ctx.tracker.freeSemaphores)
}

func TestSubmitFailureFreesCommandBuffers(t *testing.T) {
	ctx, d, swapchains := newTestContext(t)
	swapchain := d.swapchain(ctx, 2)
	fence := mocks.NewDummyFence(d.device)
	ctx.tracker.freeFences = []core1_0.Fence{fence}

	future, _, commandBuffer := acquiredFrame(t, ctx, d)
	handle := commandBuffer.handle
	deviceLost := errors.New("device lost")
	d.driver.EXPECT().QueueSubmit(ctx.queue, gomock.Any(), gomock.Any()).Return(core1_0.VKErrorDeviceLost, deviceLost)
	d.driver.EXPECT().FreeCommandBuffers(handle)

	_, err := future.ThenSwapchainPresent(swapchain, 0).ThenSignalFenceAndFlush()

	require.Error(t, err)
	assert.True(t, errors.Is(err, deviceLost))
	assert.Empty(t, ctx.tracker.pending)
	assert.Equal(t, []core1_0.Fence{fence}, ctx.tracker.freeFences)
	assert.Empty(t, swapchains.presents)
}

func TestFlushRejectsImageOutsideSwapchain(t *testing.T) {
	ctx, d, swapchains := newTestContext(t)
	swapchain := d.swapchain(ctx, 2)
	fence := mocks.NewDummyFence(d.device)
	ctx.tracker.freeFences = []core1_0.Fence{fence}

	future, _, _ := acquiredFrame(t, ctx, d)
	_, err := future.ThenSwapchainPresent(swapchain, 2).ThenSignalFenceAndFlush()

	require.Error(t, err)
	assert.Equal(t, []core1_0.Fence{fence}, ctx.tracker.freeFences)
	assert.Empty(t, swapchains.presents)
}
