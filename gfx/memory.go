package gfx

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/bits"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// memoryUsage describes how an allocation will be accessed, as property
// flags the memory type must have, should have, and should rather not have.
type memoryUsage struct {
	required     core1_0.MemoryPropertyFlags
	preferred    core1_0.MemoryPropertyFlags
	notPreferred core1_0.MemoryPropertyFlags
}

// hostSequentialWrite is for data written once from the CPU and read by the
// GPU afterwards.
var hostSequentialWrite = memoryUsage{
	required:     core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
	preferred:    core1_0.MemoryPropertyDeviceLocal,
	notPreferred: core1_0.MemoryPropertyHostCached,
}

// findMemoryType returns the allowed memory type with every required flag and
// the fewest missing preferred or present unwanted flags.
func findMemoryType(memoryTypes []core1_0.MemoryPropertyFlags, typeBits uint32, usage memoryUsage) (int, error) {
	best := -1
	bestCost := math.MaxInt

	for index, flags := range memoryTypes {
		if typeBits&(1<<uint(index)) == 0 {
			continue
		}
		if flags&usage.required != usage.required {
			continue
		}

		cost := bits.OnesCount32(uint32(usage.preferred&^flags)) +
			bits.OnesCount32(uint32(flags&usage.notPreferred))
		if cost < bestCost {
			best = index
			bestCost = cost
		}
	}

	if best < 0 {
		return 0, errors.Newf("no memory type in %#x has flags %v", typeBits, usage.required)
	}
	return best, nil
}

func encode(data any) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeData(driver core1_0.DeviceDriver, memory core1_0.DeviceMemory, offset int, data any) error {
	encoded, err := encode(data)
	if err != nil {
		return err
	}

	memoryPtr, _, err := driver.MapMemory(memory, offset, len(encoded), 0)
	if err != nil {
		return err
	}
	defer driver.UnmapMemory(memory)

	copy(unsafe.Slice((*byte)(memoryPtr), len(encoded)), encoded)
	return nil
}
