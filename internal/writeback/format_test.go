package writeback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatGo_FormatsGo(t *testing.T) {
	// gofumpt needs a complete Go file
	// with inconsistent spacing that gofumpt will fix
	got, err := FormatGo("package main\n\nfunc A()  {\nreturn\n}\n", "")
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc A() {\n\treturn\n}\n", got)
}

func TestFormatGo_KeepsCRLF(t *testing.T) {
	got, err := FormatGo("package main\r\n\r\nfunc A()  {\r\nreturn\r\n}\r\n", "")
	require.NoError(t, err)
	assert.Equal(t, "package main\r\n\r\nfunc A() {\r\n\treturn\r\n}\r\n", got)
}

func TestFormatGo_InvalidGoReturnsError(t *testing.T) {
	input := "func broken {{{"
	got, err := FormatGo(input, "")
	assert.Error(t, err)
	assert.Equal(t, input, got, "unparseable Go should return original buffer")
}

func TestFormatGo_Idempotent(t *testing.T) {
	once, err := FormatGo("package p\nvar  x=1\n", "")
	require.NoError(t, err)
	twice, err := FormatGo(once, "")
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}
