package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// submission is one queue submit and everything the GPU may touch until its
// fence signals.
type submission struct {
	fence          core1_0.Fence
	commandBuffers []core1_0.CommandBuffer
	semaphores     []core1_0.Semaphore
	retired        []func()
	done           bool
}

// tracker owns in-flight submissions and recycles their fences, semaphores
// and command buffers once the GPU is done with them. Submissions go to a
// single queue, so fences signal in submission order.
type tracker struct {
	driver core1_0.DeviceDriver

	pending        []*submission
	freeFences     []core1_0.Fence
	freeSemaphores []core1_0.Semaphore
}

func newTracker(driver core1_0.DeviceDriver) *tracker {
	return &tracker{driver: driver}
}

func (t *tracker) semaphore() (core1_0.Semaphore, error) {
	if n := len(t.freeSemaphores); n > 0 {
		semaphore := t.freeSemaphores[n-1]
		t.freeSemaphores = t.freeSemaphores[:n-1]
		return semaphore, nil
	}

	semaphore, _, err := t.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	return semaphore, err
}

// recycleSemaphore returns a semaphore that no pending operation waits on or
// signals.
func (t *tracker) recycleSemaphore(semaphore core1_0.Semaphore) {
	t.freeSemaphores = append(t.freeSemaphores, semaphore)
}

func (t *tracker) fence() (core1_0.Fence, error) {
	if n := len(t.freeFences); n > 0 {
		fence := t.freeFences[n-1]
		t.freeFences = t.freeFences[:n-1]
		return fence, nil
	}

	fence, _, err := t.driver.CreateFence(nil, core1_0.FenceCreateInfo{})
	return fence, err
}

func (t *tracker) track(s *submission) {
	t.pending = append(t.pending, s)
}

// retire runs destroy once every submission made so far has completed.
func (t *tracker) retire(destroy func()) {
	if n := len(t.pending); n > 0 {
		newest := t.pending[n-1]
		newest.retired = append(newest.retired, destroy)
		return
	}
	destroy()
}

// reclaim completes every submission whose fence has signalled.
func (t *tracker) reclaim() error {
	for len(t.pending) > 0 {
		oldest := t.pending[0]

		res, err := t.driver.GetFenceStatus(oldest.fence)
		if err != nil {
			return errors.Wrap(err, "failed to query fence status")
		}
		if res != core1_0.VKSuccess {
			return nil
		}

		t.pending = t.pending[1:]
		err = t.complete(oldest)
		if err != nil {
			return err
		}
	}
	return nil
}

// wait blocks until s has completed, then reclaims it and everything
// submitted before it.
func (t *tracker) wait(s *submission) error {
	if s.done {
		return nil
	}

	_, err := t.driver.WaitForFences(true, common.NoTimeout, s.fence)
	if err != nil {
		return errors.Wrap(err, "failed to wait for fence")
	}
	return t.reclaim()
}

func (t *tracker) complete(s *submission) error {
	s.done = true

	if len(s.commandBuffers) > 0 {
		t.driver.FreeCommandBuffers(s.commandBuffers...)
		s.commandBuffers = nil
	}

	t.freeSemaphores = append(t.freeSemaphores, s.semaphores...)
	s.semaphores = nil

	for _, destroy := range s.retired {
		destroy()
	}
	s.retired = nil

	_, err := t.driver.ResetFences(s.fence)
	if err != nil {
		return errors.Wrap(err, "failed to reset fence")
	}
	t.freeFences = append(t.freeFences, s.fence)
	return nil
}

// destroy releases everything the tracker holds. The device must be idle.
func (t *tracker) destroy() {
	for _, s := range t.pending {
		if len(s.commandBuffers) > 0 {
			t.driver.FreeCommandBuffers(s.commandBuffers...)
		}
		for _, destroy := range s.retired {
			destroy()
		}
		t.driver.DestroyFence(s.fence, nil)
		t.freeSemaphores = append(t.freeSemaphores, s.semaphores...)
		s.done = true
	}
	t.pending = nil

	for _, fence := range t.freeFences {
		t.driver.DestroyFence(fence, nil)
	}
	t.freeFences = nil

	for _, semaphore := range t.freeSemaphores {
		t.driver.DestroySemaphore(semaphore, nil)
	}
	t.freeSemaphores = nil
}
