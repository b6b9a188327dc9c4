package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(4)
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.Regexp(t, `^[0-9A-F]+$`, code)

	other, err := GenerateCode(4)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}
