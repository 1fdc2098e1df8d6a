package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/sync/errgroup"
)

const spirvMagic = 0x07230203

// ShaderCode is the compiled SPIR-V for each pipeline stage.
type ShaderCode struct {
	Vertex   []byte
	Fragment []byte
}

func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidSPIRV, "length %d is not a positive multiple of 4", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	if byteCode[0] != spirvMagic {
		return nil, errors.Wrapf(ErrInvalidSPIRV, "bad magic number %#08x", byteCode[0])
	}
	return byteCode, nil
}

type shaderModules struct {
	vertex   core1_0.ShaderModule
	fragment core1_0.ShaderModule
}

func (m *shaderModules) destroy(driver core1_0.DeviceDriver) {
	if m.vertex.Initialized() {
		driver.DestroyShaderModule(m.vertex, nil)
		m.vertex = core1_0.ShaderModule{}
	}
	if m.fragment.Initialized() {
		driver.DestroyShaderModule(m.fragment, nil)
		m.fragment = core1_0.ShaderModule{}
	}
}

// createShaderModules decodes and creates both stages concurrently.
func (c *Context) createShaderModules(code ShaderCode) (*shaderModules, error) {
	modules := &shaderModules{}

	var group errgroup.Group
	group.Go(func() error {
		var err error
		modules.vertex, err = c.createShaderModule(code.Vertex)
		return errors.Wrap(err, "vertex shader")
	})
	group.Go(func() error {
		var err error
		modules.fragment, err = c.createShaderModule(code.Fragment)
		return errors.Wrap(err, "fragment shader")
	})

	err := group.Wait()
	if err != nil {
		modules.destroy(c.deviceDriver)
		return nil, err
	}
	return modules, nil
}

func (c *Context) createShaderModule(code []byte) (core1_0.ShaderModule, error) {
	byteCode, err := bytesToBytecode(code)
	if err != nil {
		return core1_0.ShaderModule{}, err
	}

	module, _, err := c.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: byteCode,
	})
	if err != nil {
		return core1_0.ShaderModule{}, err
	}
	return module, nil
}
