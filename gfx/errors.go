package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/triangle/frame"
)

var (
	ErrNoSuitableDevice = errors.New("no device with a graphics and present capable queue")
	ErrInvalidSPIRV     = errors.New("invalid SPIR-V")
	ErrForeignObject    = errors.New("object was not created by this renderer")
)

// checkOutOfDate turns an out-of-date result into frame.ErrOutOfDate so the
// frame loop can recover from it.
func checkOutOfDate(res common.VkResult, err error, action string) error {
	if res == khr_swapchain.VKErrorOutOfDate {
		return errors.Wrap(frame.ErrOutOfDate, action)
	}
	if err != nil {
		return errors.Wrap(err, action)
	}
	return nil
}
