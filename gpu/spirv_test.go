package gpu

import (
	"encoding/binary"
	"errors"
	"testing"
)

// buildSPIRV assembles a minimal instruction stream for reflection tests.
func buildSPIRV(instructions ...[]uint32) []byte {
	words := []uint32{spirvMagic, 0x00010000, 0, 100, 0}
	for _, inst := range instructions {
		words = append(words, inst...)
	}
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func inst(op uint32, operands ...uint32) []uint32 {
	return append([]uint32{op | uint32(len(operands)+1)<<16}, operands...)
}

func TestReflectFragmentSamplers(t *testing.T) {
	code := buildSPIRV(
		inst(opEntryPoint, executionModelFragment, 1, 0x6e69616d), // "main"
		inst(opVariable, 10, 11, storageClassUniformConstant),
		inst(opVariable, 12, 13, storageClassUniformConstant),
		inst(opVariable, 14, 15, storageClassUniform),
	)
	meta, err := reflectSPIRV(code, StageFragment)
	if err != nil {
		t.Fatalf("reflectSPIRV: %v", err)
	}
	if meta.samplerCount != 2 {
		t.Errorf("samplerCount = %d, want 2", meta.samplerCount)
	}
	if meta.uniformBuffers != 1 {
		t.Errorf("uniformBuffers = %d, want 1", meta.uniformBuffers)
	}
}

func TestReflectStageMismatch(t *testing.T) {
	code := buildSPIRV(inst(opEntryPoint, executionModelFragment, 1, 0))
	if _, err := reflectSPIRV(code, StageVertex); !errors.Is(err, ErrShaderCompile) {
		t.Fatalf("expected ErrShaderCompile for missing vertex entry point, got %v", err)
	}
}

func TestReflectVertexEntryPoint(t *testing.T) {
	code := buildSPIRV(inst(opEntryPoint, executionModelVertex, 1, 0))
	meta, err := reflectSPIRV(code, StageVertex)
	if err != nil {
		t.Fatalf("reflectSPIRV: %v", err)
	}
	if meta.stage != StageVertex || meta.samplerCount != 0 {
		t.Errorf("unexpected meta: %+v", meta)
	}
}

func TestReflectRejectsBadMagic(t *testing.T) {
	code := buildSPIRV()
	code[0] = 0xff
	if _, err := reflectSPIRV(code, StageVertex); !errors.Is(err, ErrShaderCompile) {
		t.Fatalf("expected ErrShaderCompile for bad magic, got %v", err)
	}
}

func TestReflectRejectsShortAndUnaligned(t *testing.T) {
	if _, err := reflectSPIRV([]byte{1, 2, 3}, StageVertex); !errors.Is(err, ErrShaderCompile) {
		t.Errorf("short input: expected ErrShaderCompile, got %v", err)
	}
	code := append(buildSPIRV(inst(opEntryPoint, executionModelVertex, 1, 0)), 0)
	if _, err := reflectSPIRV(code, StageVertex); !errors.Is(err, ErrShaderCompile) {
		t.Errorf("unaligned input: expected ErrShaderCompile, got %v", err)
	}
}

func TestReflectRejectsTruncatedInstruction(t *testing.T) {
	// An instruction claiming more words than remain in the stream.
	code := buildSPIRV([]uint32{opVariable | 10<<16, 1, 2})
	if _, err := reflectSPIRV(code, StageVertex); !errors.Is(err, ErrShaderCompile) {
		t.Fatalf("expected ErrShaderCompile, got %v", err)
	}
}

func TestSpirvWordsRoundTrip(t *testing.T) {
	code := buildSPIRV(inst(opEntryPoint, executionModelVertex, 1, 0))
	words := spirvWords(code)
	if words[0] != spirvMagic {
		t.Errorf("words[0] = %#x, want %#x", words[0], spirvMagic)
	}
	if len(words) != len(code)/4 {
		t.Errorf("len(words) = %d, want %d", len(words), len(code)/4)
	}
}
