package gfx

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/triangle/frame"
)

type Vertex struct {
	Position mgl32.Vec2
}

// TriangleVertices is the one triangle the renderer draws.
var TriangleVertices = []Vertex{
	{Position: mgl32.Vec2{-0.5, -0.25}},
	{Position: mgl32.Vec2{0, 0.5}},
	{Position: mgl32.Vec2{0.25, -0.1}},
}

func vertexBindingDescriptions() []core1_0.VertexInputBindingDescription {
	v := Vertex{}
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    int(unsafe.Sizeof(v)),
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

func vertexAttributeDescriptions() []core1_0.VertexInputAttributeDescription {
	v := Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
	}
}

// VertexBuffer holds immutable vertex data in host-visible memory.
type VertexBuffer struct {
	ctx    *Context
	buffer core1_0.Buffer
	memory core1_0.DeviceMemory
	count  int
}

var _ frame.VertexBuffer = (*VertexBuffer)(nil)

func NewVertexBuffer(ctx *Context, vertices []Vertex) (*VertexBuffer, error) {
	if len(vertices) == 0 {
		return nil, errors.New("vertex buffer needs at least one vertex")
	}

	encoded, err := encode(vertices)
	if err != nil {
		return nil, err
	}

	vb := &VertexBuffer{ctx: ctx, count: len(vertices)}
	vb.buffer, vb.memory, err = ctx.createBuffer(len(encoded), core1_0.BufferUsageVertexBuffer, hostSequentialWrite)
	if err != nil {
		vb.Destroy()
		return nil, errors.Wrap(err, "failed to create vertex buffer")
	}

	err = writeData(ctx.deviceDriver, vb.memory, 0, vertices)
	if err != nil {
		vb.Destroy()
		return nil, errors.Wrap(err, "failed to upload vertices")
	}

	return vb, nil
}

func (b *VertexBuffer) Len() int {
	return b.count
}

func (b *VertexBuffer) Destroy() {
	if b.buffer.Initialized() {
		b.ctx.deviceDriver.DestroyBuffer(b.buffer, nil)
		b.buffer = core1_0.Buffer{}
	}

	if b.memory.Initialized() {
		b.ctx.deviceDriver.FreeMemory(b.memory, nil)
		b.memory = core1_0.DeviceMemory{}
	}
}

func (c *Context) createBuffer(size int, usage core1_0.BufferUsageFlags, access memoryUsage) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	buffer, _, err := c.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	memRequirements := c.deviceDriver.GetBufferMemoryRequirements(buffer)
	memoryTypeIndex, err := findMemoryType(c.memoryTypes, memRequirements.MemoryTypeBits, access)
	if err != nil {
		return buffer, core1_0.DeviceMemory{}, err
	}

	memory, _, err := c.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return buffer, core1_0.DeviceMemory{}, err
	}

	_, err = c.deviceDriver.BindBufferMemory(buffer, memory, 0)
	return buffer, memory, err
}
