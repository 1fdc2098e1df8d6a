package main

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/triangle/frame"
)

func TestDefaultConfig(t *testing.T) {
	config := defaultConfig()

	assert.Equal(t, "Vulkan", config.Title)
	assert.Equal(t, 800, config.Width)
	assert.Equal(t, 600, config.Height)
	assert.Equal(t, frame.ClearColor{0, 0, 1, 1}, config.ClearColor)
}

func TestEmbeddedShadersAreSPIRV(t *testing.T) {
	for _, name := range []string{"shaders/vert.spv", "shaders/frag.spv"} {
		code, err := fileSystem.ReadFile(name)
		require.NoError(t, err, name)
		require.GreaterOrEqual(t, len(code), 20, name)
		assert.Equal(t, []byte{0x03, 0x02, 0x23, 0x07}, code[:4], name)
	}
}

// glslc stamps its generator id in the high half of the header's third word.
const shadercGenerator = 13

func TestEmbeddedShadersComeFromGLSLSources(t *testing.T) {
	for _, shader := range []struct {
		spirv   string
		symbols []string
	}{
		{"shaders/vert.spv", []string{"gl_PerVertex", "gl_Position", "position"}},
		{"shaders/frag.spv", []string{"f_color"}},
	} {
		code, err := fileSystem.ReadFile(shader.spirv)
		require.NoError(t, err, shader.spirv)
		require.Zero(t, len(code)%4, shader.spirv)

		generator := binary.LittleEndian.Uint32(code[8:12])
		assert.Equal(t, uint32(shadercGenerator), generator>>16, shader.spirv)
		assert.True(t, bytes.Contains(code, []byte("GL_GOOGLE_include_directive\x00")), shader.spirv)
		for _, symbol := range shader.symbols {
			assert.True(t, bytes.Contains(code, []byte(symbol+"\x00")), "%s lacks %s", shader.spirv, symbol)
		}
	}
}
