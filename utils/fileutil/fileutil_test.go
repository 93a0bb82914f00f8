package fileutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("claim text"), 0644))

	data, err := SafeReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "claim text", string(data))

	_, err = SafeReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestReadText(t *testing.T) {
	text, err := ReadText(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = ReadText(bytes.NewReader([]byte{0xff, 0xfe, 0xfd}))
	assert.ErrorContains(t, err, "UTF-8")
}
