package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShaderCompile is wrapped by shader reflection and creation failures.
var ErrShaderCompile = errors.New("gpu: shader compile failed")

const spirvMagic = 0x07230203

// SPIR-V opcodes and operand values used by the reflection pass.
const (
	opEntryPoint = 15
	opVariable   = 59

	storageClassUniformConstant = 0
	storageClassUniform         = 2

	executionModelVertex   = 0
	executionModelFragment = 4
)

// shaderMeta is the metadata reflected from a shader's bytecode once at
// creation time. samplerCount is the number of combined texture-sampler
// bindings the fragment stage expects; it fixes the pipeline's bind group
// layout.
type shaderMeta struct {
	stage          ShaderStage
	samplerCount   int
	uniformBuffers int
}

// reflectSPIRV walks the instruction stream and extracts the metadata
// needed to build pipeline layouts. The bytecode is not validated beyond
// what the walk itself requires; the driver does full validation later.
func reflectSPIRV(code []byte, want ShaderStage) (shaderMeta, error) {
	if len(code) < 20 || len(code)%4 != 0 {
		return shaderMeta{}, fmt.Errorf("%w: bytecode size %d is not a SPIR-V module", ErrShaderCompile, len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return shaderMeta{}, fmt.Errorf("%w: bad SPIR-V magic %#08x", ErrShaderCompile, words[0])
	}

	meta := shaderMeta{stage: want}
	stageSeen := false

	for at := 5; at < len(words); {
		op := words[at] & 0xffff
		count := int(words[at] >> 16)
		if count == 0 || at+count > len(words) {
			return shaderMeta{}, fmt.Errorf("%w: malformed SPIR-V instruction stream", ErrShaderCompile)
		}
		switch op {
		case opEntryPoint:
			model := words[at+1]
			switch {
			case model == executionModelVertex && want == StageVertex:
				stageSeen = true
			case model == executionModelFragment && want == StageFragment:
				stageSeen = true
			}
		case opVariable:
			if count >= 4 {
				switch words[at+3] {
				case storageClassUniformConstant:
					meta.samplerCount++
				case storageClassUniform:
					meta.uniformBuffers++
				}
			}
		}
		at += count
	}

	if !stageSeen {
		return shaderMeta{}, fmt.Errorf("%w: bytecode has no %s entry point", ErrShaderCompile, want)
	}
	return meta, nil
}

// spirvWords converts bytecode to the little-endian word slice the device
// consumes.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}
