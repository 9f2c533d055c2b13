package loaders

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

const spirvMagic uint32 = 0x07230203

// A SPIR-V module starts with a five word header.
const spirvHeaderWords = 5

var ErrInvalidShader = errors.New("invalid SPIR-V module")

type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	code, err := ParseSPIRV(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Resource{
		Name:     resourceName(path),
		FullPath: path,
		Type:     ResourceTypeShader,
		Data:     code,
	}, nil
}

// ParseSPIRV turns little-endian SPIR-V bytes into the words the driver
// expects.
func ParseSPIRV(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: size %d is not a multiple of 4", ErrInvalidShader, len(b))
	}
	if len(b) < spirvHeaderWords*4 {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidShader, len(b))
	}
	code := make([]uint32, len(b)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	if code[0] != spirvMagic {
		return nil, fmt.Errorf("%w: bad magic %#08x", ErrInvalidShader, code[0])
	}
	return code, nil
}
