package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPtrCopiesValue(t *testing.T) {
	v := 42
	p := Ptr(v)
	v = 100

	assert.Equal(t, 42, *p)
	assert.Equal(t, 100, v)
	assert.False(t, *Ptr(false))
}
