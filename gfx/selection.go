package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// DeviceClass orders physical device types by preference, lowest first.
type DeviceClass int

const (
	ClassDiscrete DeviceClass = iota
	ClassIntegrated
	ClassVirtual
	ClassCPU
	ClassOther
)

func (c DeviceClass) String() string {
	switch c {
	case ClassDiscrete:
		return "discrete"
	case ClassIntegrated:
		return "integrated"
	case ClassVirtual:
		return "virtual"
	case ClassCPU:
		return "cpu"
	default:
		return "other"
	}
}

func classify(deviceType core1_0.PhysicalDeviceType) DeviceClass {
	switch deviceType {
	case core1_0.PhysicalDeviceTypeDiscreteGPU:
		return ClassDiscrete
	case core1_0.PhysicalDeviceTypeIntegratedGPU:
		return ClassIntegrated
	case core1_0.PhysicalDeviceTypeVirtualGPU:
		return ClassVirtual
	case core1_0.PhysicalDeviceTypeCPU:
		return ClassCPU
	default:
		return ClassOther
	}
}

// QueueFamilySupport is what a queue family can do for us.
type QueueFamilySupport struct {
	Graphics bool
	Present  bool
}

// Candidate describes one enumerated physical device.
type Candidate struct {
	Index             int
	Name              string
	Class             DeviceClass
	CacheUUID         uuid.UUID
	SupportsSwapchain bool
	QueueFamilies     []QueueFamilySupport
}

// queueFamily is the lowest indexed family that can both draw and present,
// or -1.
func (c Candidate) queueFamily() int {
	for index, family := range c.QueueFamilies {
		if family.Graphics && family.Present {
			return index
		}
	}
	return -1
}

type Selection struct {
	Candidate   Candidate
	QueueFamily int
}

// SelectDevice picks the most preferred device class among candidates that
// support swapchains and have a graphics+present queue family. Ties go to
// the earliest enumerated device.
func SelectDevice(candidates []Candidate) (Selection, error) {
	var best Selection
	found := false

	for _, candidate := range candidates {
		if !candidate.SupportsSwapchain {
			continue
		}

		family := candidate.queueFamily()
		if family < 0 {
			continue
		}

		if !found || candidate.Class < best.Candidate.Class {
			best = Selection{Candidate: candidate, QueueFamily: family}
			found = true
		}
	}

	if !found {
		return Selection{}, errors.Wrapf(ErrNoSuitableDevice, "%d devices enumerated", len(candidates))
	}
	return best, nil
}
