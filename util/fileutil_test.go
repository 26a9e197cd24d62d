package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteFileBySeekStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seek.dat")
	assert.NoError(t, os.WriteFile(path, make([]byte, 64), 0644))

	buff := []byte{'A', 'B'}
	WriteFileBySeekStart(path, 38, buff)
	result := ReadFileBySeekStartWithSize(path, 38, 2)
	assert.Equal(t, buff, result)
}

func TestWriteByte(t *testing.T) {
	path := filepath.Join(t.TempDir(), "write.dat")
	startData := "1234567890123456789012345678901234567890"
	assert.NoError(t, os.WriteFile(path, []byte(startData), 0644))

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	assert.NoError(t, err)
	defer f.Close()

	_, err = f.WriteAt([]byte("A"), 15)
	assert.NoError(t, err)

	got, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, byte('A'), got[15])
}
