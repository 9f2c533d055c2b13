package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 2, Clamp(5, 0, 2))
	assert.Equal(t, 0, Clamp(-1, 0, 2))
	assert.Equal(t, float32(1.5), Clamp(float32(1.5), -1.5, 1.5))
	assert.Equal(t, float32(-1.5), Clamp(float32(-3), -1.5, 1.5))
	assert.Equal(t, uint32(7), Clamp(uint32(7), 1, 10))
}
