package gfx

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/triangle/frame"
)

// Pipeline draws unculled, unblended triangle lists with a dynamic viewport.
type Pipeline struct {
	ctx    *Context
	handle core1_0.Pipeline
	layout core1_0.PipelineLayout
}

var _ frame.Pipeline = (*Pipeline)(nil)

func (c *Context) createPipeline(renderPass *RenderPass, shaders ShaderCode) (*Pipeline, error) {
	modules, err := c.createShaderModules(shaders)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create shader modules")
	}
	defer modules.destroy(c.deviceDriver)

	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions:   vertexBindingDescriptions(),
		VertexAttributeDescriptions: vertexAttributeDescriptions(),
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: modules.vertex,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: modules.fragment,
		Name:   "main",
	}

	// The viewport is set while recording; only its count matters here.
	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{
			{MinDepth: 0, MaxDepth: 1},
		},
		Scissors: []core1_0.Rect2D{
			{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: core1_0.Extent2D{Width: math.MaxInt32, Height: math.MaxInt32},
			},
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		FrontFace:   core1_0.FrontFaceCounterClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	dynamicState := &core1_0.PipelineDynamicStateCreateInfo{
		DynamicStates: []core1_0.DynamicState{
			core1_0.DynamicStateViewport,
		},
	}

	layout, _, err := c.deviceDriver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pipeline layout")
	}

	pipelines, _, err := c.deviceDriver.CreateGraphicsPipelines(nil, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			ColorBlendState:    colorBlend,
			DynamicState:       dynamicState,
			Layout:             layout,
			RenderPass:         renderPass.handle,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		c.deviceDriver.DestroyPipelineLayout(layout, nil)
		return nil, errors.Wrap(err, "failed to create graphics pipeline")
	}

	return &Pipeline{ctx: c, handle: pipelines[0], layout: layout}, nil
}

func (p *Pipeline) Release() {
	if !p.handle.Initialized() {
		return
	}

	handle, layout, driver := p.handle, p.layout, p.ctx.deviceDriver
	p.handle = core1_0.Pipeline{}
	p.layout = core1_0.PipelineLayout{}
	p.ctx.tracker.retire(func() {
		driver.DestroyPipeline(handle, nil)
		driver.DestroyPipelineLayout(layout, nil)
	})
}
